package table

import (
	"delegation_sync/internal/models"
)

const (
	MemberDeparted    = "departed"
	MemberNotDeparted = "not_departed"
)

// MemberRow is a member joined with its delegation and events.
type MemberRow struct {
	ID             string
	DelegationID   string
	MemberStatus   string
	Rank           string
	Name           string
	Role           string
	EquivalentJob  string
	Nationality    string
	DelegationHead string
	Delegation     string
	SubEvent       string
	MainEvent      string
	ArrivalDate    string
	DepartureDate  string
}

// MemberJoins indexes the records a member row is joined against.
type MemberJoins struct {
	Delegations map[string]models.Record
	SubEvents   map[string]models.Record
	MainEvents  map[string]models.Record
}

func NewMemberJoins(delegations, subEvents, mainEvents []models.Record) MemberJoins {
	return MemberJoins{
		Delegations: models.Index(delegations),
		SubEvents:   models.Index(subEvents),
		MainEvents:  models.Index(mainEvents),
	}
}

// ProjectMember builds the display row. Unknown joins leave fields empty.
func ProjectMember(r models.Record, j MemberJoins) MemberRow {
	status := MemberNotDeparted
	if models.MemberStatus(r.String("status")) == models.MemberDeparted {
		status = MemberDeparted
	}
	role := r.String("role")
	if role == "" {
		role = r.String("job_title")
	}
	row := MemberRow{
		ID:            r.ID(),
		DelegationID:  r.String("delegation_id"),
		MemberStatus:  status,
		Rank:          r.String("rank"),
		Name:          r.String("name"),
		Role:          role,
		EquivalentJob: r.String("equivalent_job_name"),
		DepartureDate: r.String("departure_date"),
	}

	subEventID := r.String("sub_event_id")
	if d, ok := j.Delegations[row.DelegationID]; ok {
		row.Nationality = d.String("nationality_name")
		row.DelegationHead = d.String("delegation_leader_name")
		row.ArrivalDate = d.String("arrive_date")
		if subEventID == "" {
			subEventID = d.String("sub_event_id")
		}
	}
	switch {
	case row.Nationality != "" && row.DelegationHead != "":
		row.Delegation = row.Nationality + " - " + row.DelegationHead
	default:
		row.Delegation = row.Nationality + row.DelegationHead
	}
	if se, ok := j.SubEvents[subEventID]; ok {
		row.SubEvent = se.String("event_name")
		if me, ok := j.MainEvents[se.String("main_event_id")]; ok {
			row.MainEvent = me.String("event_name")
		}
	}
	return row
}

func ProjectMembers(records []models.Record, j MemberJoins) []MemberRow {
	out := make([]MemberRow, 0, len(records))
	for _, r := range records {
		out = append(out, ProjectMember(r, j))
	}
	return out
}

// MemberColumns is the all-members table column set.
func MemberColumns() []Column[MemberRow] {
	text := func(id string, v func(MemberRow) string) Column[MemberRow] {
		return Column[MemberRow]{ID: id, Kind: Text, Value: v, Sortable: true, Searchable: true}
	}
	return []Column[MemberRow]{
		{ID: "memberStatus", Kind: Exact, Value: func(r MemberRow) string { return r.MemberStatus }, Sortable: true},
		text("rank", func(r MemberRow) string { return r.Rank }),
		text("name", func(r MemberRow) string { return r.Name }),
		text("role", func(r MemberRow) string { return r.Role }),
		text("equivalentJob", func(r MemberRow) string { return r.EquivalentJob }),
		text("nationality", func(r MemberRow) string { return r.Nationality }),
		text("delegation", func(r MemberRow) string { return r.Delegation }),
		text("subEvent", func(r MemberRow) string { return r.SubEvent }),
		text("mainEvent", func(r MemberRow) string { return r.MainEvent }),
		{ID: "arrivalDate", Kind: Date, Value: func(r MemberRow) string { return r.ArrivalDate }, Sortable: true},
		{ID: "departureDate", Kind: Date, Value: func(r MemberRow) string { return r.DepartureDate }, Sortable: true},
	}
}
