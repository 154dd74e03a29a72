package fakeapi

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"delegation_sync/internal/models"
)

// ref is a foreign key whose display name is rendered next to it.
type ref struct {
	field  string
	kind   models.Kind
	nameAs string
}

type schema struct {
	parent   *ref
	refs     []ref
	required []string
}

var (
	mainEventRef     = ref{"main_event_id", models.KindMainEvent, "main_event_name"}
	subEventRef      = ref{"sub_event_id", models.KindSubEvent, "sub_event_name"}
	delegationRef    = ref{"delegation_id", models.KindDelegation, "delegation_name"}
	nationalityRef   = ref{"nationality_id", models.KindNationality, "nationality_name"}
	airportRef       = ref{"airport_id", models.KindAirport, "airport_name"}
	airlineRef       = ref{"airline_id", models.KindAirline, "airline_name"}
	cityRef          = ref{"city_id", models.KindCity, "city_name"}
	equivalentJobRef = ref{"equivalent_job_id", models.KindEquivalentJob, "equivalent_job_name"}
)

var schemas = map[models.Kind]schema{
	models.KindMainEvent: {required: []string{"event_name"}},
	models.KindSubEvent: {
		parent:   &mainEventRef,
		required: []string{"event_name", "main_event_id"},
	},
	models.KindDelegation: {
		parent:   &subEventRef,
		refs:     []ref{nationalityRef, airportRef, airlineRef, cityRef},
		required: []string{"sub_event_id"},
	},
	models.KindMember: {
		parent:   &delegationRef,
		refs:     []ref{equivalentJobRef},
		required: []string{"delegation_id", "name"},
	},
	models.KindDepartureSession: {
		parent:   &delegationRef,
		refs:     []ref{airportRef, airlineRef, cityRef},
		required: []string{"delegation_id", "checkout_date", "members"},
	},
	models.KindNationality:   {required: []string{"name"}},
	models.KindAirport:       {required: []string{"name"}},
	models.KindAirline:       {required: []string{"name"}},
	models.KindCity:          {required: []string{"city_name"}},
	models.KindEquivalentJob: {required: []string{"name"}},
}

// allRefs returns the parent reference followed by the lookup references.
func (s schema) allRefs() []ref {
	if s.parent == nil {
		return s.refs
	}
	return append([]ref{*s.parent}, s.refs...)
}

var clockPattern = regexp.MustCompile(`^[0-2][0-9]:[0-5][0-9](:[0-5][0-9])?$`)

// str renders a JSON value the way it would appear in a query string.
func str(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func intOf(v any) int {
	switch v := v.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func stringsOf(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, true
		}
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func nameKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// dataset is an in-memory view of every stored row, loaded per request.
type dataset struct {
	rows  map[string]*Row
	order []*Row
}

func newDataset(rows []*Row) *dataset {
	ds := &dataset{rows: make(map[string]*Row, len(rows))}
	for _, r := range rows {
		ds.add(r)
	}
	return ds
}

func (ds *dataset) add(r *Row) {
	ds.rows[r.ID] = r
	ds.order = append(ds.order, r)
}

func (ds *dataset) remove(id string) {
	delete(ds.rows, id)
	ds.order = slices.DeleteFunc(ds.order, func(r *Row) bool { return r.ID == id })
}

// find returns the row with id if it is of kind.
func (ds *dataset) find(kind models.Kind, id string) *Row {
	r := ds.rows[id]
	if r == nil || r.Kind != string(kind) {
		return nil
	}
	return r
}

func (ds *dataset) ofKind(kind models.Kind) []*Row {
	var out []*Row
	for _, r := range ds.order {
		if r.Kind == string(kind) {
			out = append(out, r)
		}
	}
	return out
}

func (ds *dataset) children(kind models.Kind, parent string) []*Row {
	var out []*Row
	for _, r := range ds.order {
		if r.Kind == string(kind) && r.Parent == parent {
			out = append(out, r)
		}
	}
	return out
}

// render produces the client representation with derived fields.
func (ds *dataset) render(r *Row) Fields {
	kind := models.Kind(r.Kind)
	out := make(Fields, len(r.Fields)+8)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	out["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339)
	out["updated_at"] = r.UpdatedAt.UTC().Format(time.RFC3339)

	for _, rf := range schemas[kind].allRefs() {
		out[rf.nameAs] = nil
		if target := ds.find(rf.kind, str(out[rf.field])); target != nil {
			out[rf.nameAs] = target.Fields[rf.kind.NameField()]
		}
	}

	switch kind {
	case models.KindDelegation:
		members := ds.children(models.KindMember, r.ID)
		departed := 0
		for _, m := range members {
			if str(m.Fields["status"]) == string(models.MemberDeparted) {
				departed++
			}
		}
		out["current_members"] = len(members)
		out["departed_count"] = departed
		out["status"] = models.DeriveDelegationStatus(intOf(out["member_count"]), departed)
		out["main_event_id"] = nil
		if se := ds.find(models.KindSubEvent, str(out["sub_event_id"])); se != nil {
			out["main_event_id"] = se.Fields["main_event_id"]
		}
	case models.KindMember:
		if out["status"] == nil {
			out["status"] = models.MemberNotDeparted
		}
	}
	return out
}

// validate checks fields for a row of kind; selfID is set on update.
// Failures are keyed by field the way the REST framework reports them.
func (ds *dataset) validate(kind models.Kind, f Fields, selfID string) map[string][]string {
	errs := map[string][]string{}
	add := func(field, msg string) { errs[field] = append(errs[field], msg) }
	sch := schemas[kind]

	for _, field := range sch.required {
		v := f[field]
		if list, ok := v.([]any); ok && len(list) == 0 {
			add(field, "This list may not be empty.")
			continue
		}
		if strings.TrimSpace(str(v)) == "" {
			add(field, "This field is required.")
		}
	}
	for _, rf := range sch.allRefs() {
		id := str(f[rf.field])
		if id != "" && ds.find(rf.kind, id) == nil {
			add(rf.field, fmt.Sprintf("Invalid pk %q - object does not exist.", id))
		}
	}

	if kind.IsLookup() {
		key := nameKey(str(f[kind.NameField()]))
		for _, other := range ds.ofKind(kind) {
			if key != "" && other.ID != selfID && other.NameKey == key {
				add(kind.NameField(), fmt.Sprintf("%s with this name already exists.", kind.Model()))
				break
			}
		}
	}

	switch kind {
	case models.KindDelegation:
		if t := str(f["type"]); t != "" && !models.DelegationType(t).Valid() {
			add("type", fmt.Sprintf("%q is not a valid choice.", t))
		}
		if n := f["member_count"]; n != nil && intOf(n) < 0 {
			add("member_count", "Ensure this value is greater than or equal to 0.")
		}
		if t := str(f["arrive_time"]); t != "" && !clockPattern.MatchString(t) {
			add("arrive_time", "Time has wrong format. Use hh:mm[:ss].")
		}
	case models.KindDepartureSession:
		if t := str(f["checkout_time"]); t != "" && !clockPattern.MatchString(t) {
			add("checkout_time", "Time has wrong format. Use hh:mm[:ss].")
		}
		ds.validateCheckoutMembers(f, selfID, add)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (ds *dataset) validateCheckoutMembers(f Fields, selfID string, add func(field, msg string)) {
	members, ok := stringsOf(f["members"])
	if !ok {
		add("members", "Expected a list of member ids.")
		return
	}
	delegationID := str(f["delegation_id"])
	taken := map[string]bool{}
	for _, s := range ds.children(models.KindDepartureSession, delegationID) {
		if s.ID == selfID {
			continue
		}
		ids, _ := stringsOf(s.Fields["members"])
		for _, id := range ids {
			taken[id] = true
		}
	}
	for _, id := range members {
		m := ds.find(models.KindMember, id)
		switch {
		case m == nil:
			add("members", fmt.Sprintf("Invalid pk %q - object does not exist.", id))
		case m.Parent != delegationID:
			add("members", fmt.Sprintf("Member %s does not belong to this delegation.", id))
		case taken[id]:
			add("members", fmt.Sprintf("Member %s already departed in another session.", id))
		}
	}
	if d := ds.find(models.KindDelegation, delegationID); d != nil {
		if total := intOf(d.Fields["member_count"]); total > 0 && len(members)+len(taken) > total {
			add("members", "Departing members exceed the delegation member count.")
		}
	}
}

// descendants lists the rows removed together with id, children first.
func (ds *dataset) descendants(id string) []*Row {
	var out []*Row
	var walk func(parent string)
	walk = func(parent string) {
		for _, r := range ds.order {
			if r.Parent == parent && r.ID != parent {
				walk(r.ID)
				out = append(out, r)
			}
		}
	}
	walk(id)
	return out
}

// departures maps each member of a delegation to the date of the session
// that took them.
func (ds *dataset) departures(delegationID string) map[string]string {
	out := map[string]string{}
	sessions := ds.children(models.KindDepartureSession, delegationID)
	slices.SortStableFunc(sessions, func(a, b *Row) int {
		return strings.Compare(str(a.Fields["checkout_date"]), str(b.Fields["checkout_date"]))
	})
	for _, s := range sessions {
		ids, _ := stringsOf(s.Fields["members"])
		for _, id := range ids {
			if _, ok := out[id]; !ok {
				out[id] = str(s.Fields["checkout_date"])
			}
		}
	}
	return out
}
