package fakeapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"delegation_sync/internal/models"
)

var errNotFound = errors.New("not found")

// validationError carries field-keyed messages back to the handler.
type validationError map[string][]string

func (v validationError) Error() string { return "validation failed" }

// change is one row-level notification queued until the write commits.
type change struct {
	kind   models.Kind
	action string
	id     string
}

type changes []change

func (c *changes) add(kind models.Kind, action, id string) {
	for i, x := range *c {
		if x.kind == kind && x.id == id {
			if action == "deleted" {
				// A row updated and then removed in one write is reported
				// as deleted.
				(*c)[i].action = action
			}
			return
		}
	}
	*c = append(*c, change{kind, action, id})
}

func (s *Server) load(tx *gorm.DB) (*dataset, error) {
	var rows []*Row
	if err := tx.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return newDataset(rows), nil
}

// write runs fn in a transaction, serialised with every other write, and
// publishes the resulting changes once it commits.
func (s *Server) write(fn func(tx *gorm.DB, ds *dataset, ch *changes) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var ch changes
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ds, err := s.load(tx)
		if err != nil {
			return err
		}
		return fn(tx, ds, &ch)
	})
	if err != nil {
		return err
	}
	for _, c := range ch {
		s.hub.Publish(c.kind.Model(), c.action, c.id)
	}
	return nil
}

func (s *Server) fail(c *gin.Context, kind models.Kind, err error) {
	var verr validationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, verr)
	case errors.Is(err, errNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	default:
		s.log.WithError(err).WithField("kind", kind).Error("Write failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Could not save " + strings.ReplaceAll(string(kind), "_", " ")})
	}
}

func (s *Server) list(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, err := s.load(s.db)
		if err != nil {
			s.fail(c, kind, err)
			return
		}
		query := c.Request.URL.Query()
		results := []Fields{}
		for _, r := range ds.ofKind(kind) {
			out := ds.render(r)
			if matches(out, query) {
				results = append(results, out)
			}
		}

		pageParam := c.Query("page")
		if pageParam == "" {
			c.JSON(http.StatusOK, results)
			return
		}
		page, err := strconv.Atoi(pageParam)
		if err != nil || page < 1 {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return
		}
		size := s.cfg.PageSize
		if ps, err := strconv.Atoi(c.Query("page_size")); err == nil && ps > 0 {
			size = ps
		}
		start := (page - 1) * size
		if start > len(results) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return
		}
		end := min(start+size, len(results))
		c.JSON(http.StatusOK, gin.H{
			"count":    len(results),
			"next":     pageLink(c, page+1, end < len(results)),
			"previous": pageLink(c, page-1, page > 1),
			"results":  results[start:end],
		})
	}
}

// matches applies list query filters such as ?delegation_id=...
func matches(out Fields, query map[string][]string) bool {
	for key, values := range query {
		if key == "page" || key == "page_size" || len(values) == 0 {
			continue
		}
		if str(out[key]) != values[0] {
			return false
		}
	}
	return true
}

func pageLink(c *gin.Context, page int, ok bool) any {
	if !ok {
		return nil
	}
	u := *c.Request.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Server) get(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, err := s.load(s.db)
		if err != nil {
			s.fail(c, kind, err)
			return
		}
		r := ds.find(kind, c.Param("id"))
		if r == nil {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		c.JSON(http.StatusOK, ds.render(r))
	}
}

func (s *Server) create(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input Fields
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		if input == nil {
			input = Fields{}
		}
		clean(kind, input)

		var out Fields
		err := s.write(func(tx *gorm.DB, ds *dataset, ch *changes) error {
			if verr := ds.validate(kind, input, ""); verr != nil {
				return validationError(verr)
			}
			row := &Row{Kind: string(kind), Fields: input}
			index(row)
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			ds.add(row)
			ch.add(kind, "created", row.ID)
			if err := s.settle(tx, ds, ch, affectedDelegations(kind, nil, row)...); err != nil {
				return err
			}
			out = ds.render(row)
			return nil
		})
		if err != nil {
			s.fail(c, kind, err)
			return
		}
		s.log.WithFields(logrus.Fields{"kind": kind, "id": out["id"]}).Info("Record created")
		c.JSON(http.StatusCreated, out)
	}
}

func (s *Server) update(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input Fields
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		if input == nil {
			input = Fields{}
		}
		clean(kind, input)
		id := c.Param("id")

		var out Fields
		err := s.write(func(tx *gorm.DB, ds *dataset, ch *changes) error {
			row := ds.find(kind, id)
			if row == nil {
				return errNotFound
			}
			before := *row
			merged := make(Fields, len(row.Fields)+len(input))
			for k, v := range row.Fields {
				merged[k] = v
			}
			for k, v := range input {
				merged[k] = v
			}
			if verr := ds.validate(kind, merged, id); verr != nil {
				return validationError(verr)
			}
			row.Fields = merged
			index(row)
			if err := tx.Save(row).Error; err != nil {
				return err
			}
			ch.add(kind, "updated", row.ID)
			if err := s.settle(tx, ds, ch, affectedDelegations(kind, &before, row)...); err != nil {
				return err
			}
			out = ds.render(row)
			return nil
		})
		if err != nil {
			s.fail(c, kind, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) destroy(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := s.write(func(tx *gorm.DB, ds *dataset, ch *changes) error {
			row := ds.find(kind, id)
			if row == nil {
				return errNotFound
			}
			removed := append(ds.descendants(id), row)
			gone := make(map[string]bool, len(removed))
			for _, r := range removed {
				gone[r.ID] = true
			}

			var touched []string
			for _, r := range removed {
				if models.Kind(r.Kind) == models.KindMember || models.Kind(r.Kind) == models.KindDepartureSession {
					touched = append(touched, r.Parent)
				}
			}
			if err := s.detach(tx, ds, ch, kind, gone); err != nil {
				return err
			}
			for _, r := range removed {
				if err := tx.Delete(&Row{}, "id = ?", r.ID).Error; err != nil {
					return err
				}
				ds.remove(r.ID)
				ch.add(models.Kind(r.Kind), "deleted", r.ID)
			}
			var alive []string
			for _, d := range touched {
				if !gone[d] {
					alive = append(alive, d)
				}
			}
			return s.settle(tx, ds, ch, alive...)
		})
		if err != nil {
			s.fail(c, kind, err)
			return
		}
		s.log.WithFields(logrus.Fields{"kind": kind, "id": id}).Info("Record deleted")
		c.Status(http.StatusNoContent)
	}
}

// detach removes references to rows that are about to disappear: deleted
// members leave their sessions and deleted lookups are unset.
func (s *Server) detach(tx *gorm.DB, ds *dataset, ch *changes, kind models.Kind, gone map[string]bool) error {
	for _, r := range ds.order {
		if gone[r.ID] {
			continue
		}
		dirty := false
		if models.Kind(r.Kind) == models.KindDepartureSession {
			ids, _ := stringsOf(r.Fields["members"])
			var kept []any
			for _, m := range ids {
				if gone[m] {
					dirty = true
					continue
				}
				kept = append(kept, m)
			}
			if dirty {
				r.Fields["members"] = kept
			}
		}
		if kind.IsLookup() {
			for _, rf := range schemas[models.Kind(r.Kind)].refs {
				if gone[str(r.Fields[rf.field])] {
					r.Fields[rf.field] = nil
					dirty = true
				}
			}
		}
		if dirty {
			if err := tx.Save(r).Error; err != nil {
				return err
			}
			ch.add(models.Kind(r.Kind), "updated", r.ID)
		}
	}
	return nil
}

// settle recomputes member departure state for each delegation and
// reports the members and delegations that changed.
func (s *Server) settle(tx *gorm.DB, ds *dataset, ch *changes, delegationIDs ...string) error {
	seen := map[string]bool{}
	for _, d := range delegationIDs {
		if d == "" || seen[d] || ds.find(models.KindDelegation, d) == nil {
			continue
		}
		seen[d] = true
		left := ds.departures(d)
		for _, m := range ds.children(models.KindMember, d) {
			status, date := string(models.MemberNotDeparted), ""
			if on, ok := left[m.ID]; ok {
				status, date = string(models.MemberDeparted), on
			}
			if str(m.Fields["status"]) == status && str(m.Fields["departure_date"]) == date {
				continue
			}
			m.Fields["status"] = status
			m.Fields["departure_date"] = nil
			if date != "" {
				m.Fields["departure_date"] = date
			}
			if err := tx.Save(m).Error; err != nil {
				return err
			}
			ch.add(models.KindMember, "updated", m.ID)
		}
		ch.add(models.KindDelegation, "updated", d)
	}
	return nil
}

// affectedDelegations lists the delegations whose members or sessions a
// write touched.
func affectedDelegations(kind models.Kind, before, after *Row) []string {
	if kind != models.KindMember && kind != models.KindDepartureSession {
		return nil
	}
	out := []string{after.Parent}
	if before != nil && before.Parent != after.Parent {
		out = append(out, before.Parent)
	}
	return out
}

// clean drops server-owned fields from client input.
func clean(kind models.Kind, f Fields) {
	for _, k := range []string{"id", "created_at", "updated_at"} {
		delete(f, k)
	}
	for _, rf := range schemas[kind].allRefs() {
		delete(f, rf.nameAs)
	}
	switch kind {
	case models.KindDelegation:
		for _, k := range []string{"status", "current_members", "departed_count", "main_event_id"} {
			delete(f, k)
		}
	case models.KindMember:
		delete(f, "status")
		delete(f, "departure_date")
	}
}

// index refreshes the columns derived from the row's fields.
func index(r *Row) {
	kind := models.Kind(r.Kind)
	r.Parent = ""
	if p := schemas[kind].parent; p != nil {
		r.Parent = str(r.Fields[p.field])
	}
	r.NameKey = nameKey(str(r.Fields[kind.NameField()]))
	if kind == models.KindMember && r.Fields["status"] == nil {
		r.Fields["status"] = string(models.MemberNotDeparted)
	}
}
