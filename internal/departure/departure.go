// Package departure holds the rules for planning departure sessions: which
// members can still leave, what a valid session looks like and how a form
// turns into a request payload.
package departure

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"delegation_sync/internal/models"
)

var (
	ErrNoMembers            = errors.New("at least one member must be selected")
	ErrNoneAvailable        = errors.New("no members are available to depart")
	ErrMemberInOtherSession = errors.New("member already belongs to another departure session")
	ErrForeignMember        = errors.New("member does not belong to this delegation")
	ErrExceedsMemberCount   = errors.New("departing members exceed the delegation member count")
	ErrRequired             = errors.New("field is required")
)

// FieldError ties a validation failure to the form field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

// Draft is the departure session form as the user filled it in. Lookups are
// referenced by display name.
type Draft struct {
	// ID is empty for a new session.
	ID           string
	DelegationID string
	Date         string
	TimeHHMM     string
	Airport      string
	Airline      string
	Destination  string
	FlightNumber string
	Depositor    string
	Goods        string
	Notes        string
	Members      []string
}

// Resolver maps a lookup display name to its id.
type Resolver interface {
	ResolveLookup(kind models.Kind, name string) (string, bool)
}

func sessionsOf(delegationID string, sessions []models.Record) []models.Record {
	var out []models.Record
	for _, s := range sessions {
		if s.String("delegation_id") == delegationID {
			out = append(out, s)
		}
	}
	return out
}

// takenElsewhere returns the members already assigned to a session of the
// delegation other than editingID.
func takenElsewhere(delegationID, editingID string, sessions []models.Record) map[string]string {
	taken := make(map[string]string)
	for _, s := range sessionsOf(delegationID, sessions) {
		if editingID != "" && s.ID() == editingID {
			continue
		}
		for _, m := range s.Strings("members") {
			taken[m] = s.ID()
		}
	}
	return taken
}

// AvailableMembers lists the members of a delegation that can be put on the
// session being edited (editingID, empty for a new one): they are in no other
// session of the delegation and either have not departed yet or are already
// part of the edited session.
func AvailableMembers(delegationID string, members, sessions []models.Record, editingID string) []models.Record {
	taken := takenElsewhere(delegationID, editingID, sessions)
	selected := make(map[string]bool)
	if editingID != "" {
		for _, s := range sessionsOf(delegationID, sessions) {
			if s.ID() == editingID {
				for _, m := range s.Strings("members") {
					selected[m] = true
				}
			}
		}
	}

	var out []models.Record
	for _, m := range members {
		id := m.ID()
		if m.String("delegation_id") != delegationID {
			continue
		}
		if _, ok := taken[id]; ok {
			continue
		}
		if models.MemberStatus(m.String("status")) == models.MemberDeparted && !selected[id] {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Validate checks the draft against the delegation and its other sessions.
// memberCount is the delegation's declared member count.
func (d Draft) Validate(memberCount int, members, sessions []models.Record) error {
	var errs []error
	required := []struct{ field, value string }{
		{"date", d.Date},
		{"time", d.TimeHHMM},
		{"airport", d.Airport},
		{"airline", d.Airline},
		{"flight_number", d.FlightNumber},
		{"destination", d.Destination},
		{"depositor", d.Depositor},
		{"goods", d.Goods},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, &FieldError{Field: r.field, Err: ErrRequired})
		}
	}
	if strings.TrimSpace(d.TimeHHMM) != "" {
		if _, err := models.ClockFromHHMM(d.TimeHHMM); err != nil {
			errs = append(errs, &FieldError{Field: "time", Err: err})
		}
	}
	if err := d.validateMembers(memberCount, members, sessions); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d Draft) validateMembers(memberCount int, members, sessions []models.Record) error {
	if len(d.Members) == 0 {
		if len(AvailableMembers(d.DelegationID, members, sessions, d.ID)) == 0 {
			return &FieldError{Field: "members", Err: ErrNoneAvailable}
		}
		return &FieldError{Field: "members", Err: ErrNoMembers}
	}

	own := make(map[string]bool)
	for _, m := range members {
		if m.String("delegation_id") == d.DelegationID {
			own[m.ID()] = true
		}
	}
	taken := takenElsewhere(d.DelegationID, d.ID, sessions)
	seen := make(map[string]bool, len(d.Members))
	for _, id := range d.Members {
		if seen[id] {
			continue
		}
		seen[id] = true
		if len(own) > 0 && !own[id] {
			return &FieldError{Field: "members", Err: fmt.Errorf("%w: %s", ErrForeignMember, id)}
		}
		if other, ok := taken[id]; ok {
			return &FieldError{Field: "members", Err: fmt.Errorf("%w: %s is on %s", ErrMemberInOtherSession, id, other)}
		}
	}

	departing := len(seen) + len(taken)
	if departing > memberCount {
		return &FieldError{Field: "members", Err: fmt.Errorf("%w: %d of %d", ErrExceedsMemberCount, departing, memberCount)}
	}
	return nil
}

// Payload converts the draft into the request body. Lookup names that do not
// resolve are sent as null, the way the server treats an unset reference.
func (d Draft) Payload(r Resolver) (models.DepartureSessionInput, error) {
	clock, err := models.ClockFromHHMM(d.TimeHHMM)
	if err != nil {
		return models.DepartureSessionInput{}, &FieldError{Field: "time", Err: err}
	}
	members := slices.Compact(slices.Sorted(slices.Values(d.Members)))
	return models.DepartureSessionInput{
		DelegationID:  d.DelegationID,
		CheckoutDate:  strings.TrimSpace(d.Date),
		CheckoutTime:  clock,
		AirportID:     resolve(r, models.KindAirport, d.Airport),
		AirlineID:     resolve(r, models.KindAirline, d.Airline),
		CityID:        resolve(r, models.KindCity, d.Destination),
		FlightNumber:  strings.TrimSpace(d.FlightNumber),
		DepositorName: strings.TrimSpace(d.Depositor),
		Goods:         d.Goods,
		Notes:         d.Notes,
		Members:       members,
	}, nil
}

func resolve(r Resolver, kind models.Kind, name string) *string {
	if r == nil {
		return nil
	}
	id, ok := r.ResolveLookup(kind, name)
	if !ok {
		return nil
	}
	return &id
}

// DraftFromRecord loads an existing session into a draft for editing.
func DraftFromRecord(s models.Record) Draft {
	return Draft{
		ID:           s.ID(),
		DelegationID: s.String("delegation_id"),
		Date:         s.String("checkout_date"),
		TimeHHMM:     models.NormalizeHHMM(s.String("checkout_time")),
		Airport:      s.String("airport_name"),
		Airline:      s.String("airline_name"),
		Destination:  s.String("city_name"),
		FlightNumber: s.String("flight_number"),
		Depositor:    s.String("depositor_name"),
		Goods:        s.String("goods"),
		Notes:        s.String("notes"),
		Members:      s.Strings("members"),
	}
}

// Remaining is how many of the delegation's members have not been put on
// any session yet.
func Remaining(delegationID string, memberCount int, sessions []models.Record) int {
	n := memberCount - len(takenElsewhere(delegationID, "", sessions))
	if n < 0 {
		return 0
	}
	return n
}
