package table

import (
	"strconv"

	"delegation_sync/internal/models"
)

// Display values of the delegation status and type columns.
const (
	AllDeparted     = "all_departed"
	PartialDeparted = "partial_departed"
	NotDeparted     = "not_departed"

	Military    = "military"
	Civil       = "civil"
	UnknownType = "unknown"
)

// DelegationRow is a delegation as the arrivals table shows it.
type DelegationRow struct {
	ID                  string
	SubEventID          string
	DelegationStatus    string
	DelegationType      string
	Nationality         string
	DelegationHead      string
	MembersCount        int
	CurrentMembers      int
	ArrivalHall         string
	ArrivalAirline      string
	ArrivalOrigin       string
	ArrivalFlightNumber string
	ArrivalDate         string
	ArrivalTime         string
	ArrivalReceptor     string
	ArrivalDestination  string
	ArrivalShipments    string
}

// DisplayStatus maps a server delegation status to its display value.
func DisplayStatus(s models.DelegationStatus) string {
	switch s {
	case models.StatusFullyDeparted:
		return AllDeparted
	case models.StatusPartiallyDeparted:
		return PartialDeparted
	default:
		return NotDeparted
	}
}

// DisplayType maps a server delegation type to its display value.
func DisplayType(t string) string {
	switch models.DelegationType(t) {
	case models.TypeMilitary:
		return Military
	case models.TypeCivilian:
		return Civil
	default:
		return UnknownType
	}
}

// ProjectDelegation builds the display row. Missing fields become "" or 0.
func ProjectDelegation(r models.Record) DelegationRow {
	status := models.DelegationStatus(r.String("status"))
	if status == "" && r.Get("departed_count").Exists() {
		status = models.DeriveDelegationStatus(r.Int("member_count"), r.Int("departed_count"))
	}
	return DelegationRow{
		ID:                  r.ID(),
		SubEventID:          r.String("sub_event_id"),
		DelegationStatus:    DisplayStatus(status),
		DelegationType:      DisplayType(r.String("type")),
		Nationality:         r.String("nationality_name"),
		DelegationHead:      r.String("delegation_leader_name"),
		MembersCount:        r.Int("member_count"),
		CurrentMembers:      r.Int("current_members"),
		ArrivalHall:         r.String("airport_name"),
		ArrivalAirline:      r.String("airline_name"),
		ArrivalOrigin:       r.String("going_to"),
		ArrivalFlightNumber: r.String("flight_number"),
		ArrivalDate:         r.String("arrive_date"),
		ArrivalTime:         models.NormalizeHHMM(r.String("arrive_time")),
		ArrivalReceptor:     r.String("receiver_name"),
		ArrivalDestination:  r.String("city_name"),
		ArrivalShipments:    r.String("goods"),
	}
}

// ProjectDelegations projects every record.
func ProjectDelegations(records []models.Record) []DelegationRow {
	out := make([]DelegationRow, 0, len(records))
	for _, r := range records {
		out = append(out, ProjectDelegation(r))
	}
	return out
}

// DelegationColumns is the arrivals table column set.
func DelegationColumns() []Column[DelegationRow] {
	text := func(id string, v func(DelegationRow) string) Column[DelegationRow] {
		return Column[DelegationRow]{ID: id, Kind: Text, Value: v, Sortable: true, Searchable: true}
	}
	return []Column[DelegationRow]{
		{ID: "delegationStatus", Kind: Exact, Value: func(r DelegationRow) string { return r.DelegationStatus }, Sortable: true},
		{ID: "delegationType", Kind: Exact, Value: func(r DelegationRow) string { return r.DelegationType }, Sortable: true},
		text("nationality", func(r DelegationRow) string { return r.Nationality }),
		text("delegationHead", func(r DelegationRow) string { return r.DelegationHead }),
		{ID: "membersCount", Kind: Numeric, Value: func(r DelegationRow) string { return strconv.Itoa(r.MembersCount) }, Sortable: true, Searchable: true},
		text("arrivalHall", func(r DelegationRow) string { return r.ArrivalHall }),
		text("arrivalAirline", func(r DelegationRow) string { return r.ArrivalAirline }),
		text("arrivalOrigin", func(r DelegationRow) string { return r.ArrivalOrigin }),
		{ID: "arrivalFlightNumber", Kind: Numeric, Value: func(r DelegationRow) string { return r.ArrivalFlightNumber }, Sortable: true, Searchable: true},
		{ID: "arrivalDate", Kind: Date, Value: func(r DelegationRow) string { return r.ArrivalDate }, Sortable: true, Searchable: true},
		text("arrivalTime", func(r DelegationRow) string { return r.ArrivalTime }),
		text("arrivalReceptor", func(r DelegationRow) string { return r.ArrivalReceptor }),
		text("arrivalDestination", func(r DelegationRow) string { return r.ArrivalDestination }),
		text("arrivalShipments", func(r DelegationRow) string { return r.ArrivalShipments }),
	}
}
