package table

import (
	"strconv"

	"delegation_sync/internal/models"
)

// SessionRow is a departure session as the departures list shows it.
type SessionRow struct {
	ID           string
	DelegationID string
	CheckoutDate string
	CheckoutTime string
	Airport      string
	Airline      string
	Destination  string
	FlightNumber string
	Depositor    string
	Goods        string
	Notes        string
	MembersCount int
}

func ProjectSession(r models.Record) SessionRow {
	return SessionRow{
		ID:           r.ID(),
		DelegationID: r.String("delegation_id"),
		CheckoutDate: r.String("checkout_date"),
		CheckoutTime: models.NormalizeHHMM(r.String("checkout_time")),
		Airport:      r.String("airport_name"),
		Airline:      r.String("airline_name"),
		Destination:  r.String("city_name"),
		FlightNumber: r.String("flight_number"),
		Depositor:    r.String("depositor_name"),
		Goods:        r.String("goods"),
		Notes:        r.String("notes"),
		MembersCount: len(r.Strings("members")),
	}
}

func ProjectSessions(records []models.Record) []SessionRow {
	out := make([]SessionRow, 0, len(records))
	for _, r := range records {
		out = append(out, ProjectSession(r))
	}
	return out
}

func SessionColumns() []Column[SessionRow] {
	text := func(id string, v func(SessionRow) string) Column[SessionRow] {
		return Column[SessionRow]{ID: id, Kind: Text, Value: v, Sortable: true, Searchable: true}
	}
	return []Column[SessionRow]{
		{ID: "checkoutDate", Kind: Date, Value: func(r SessionRow) string { return r.CheckoutDate }, Sortable: true},
		text("checkoutTime", func(r SessionRow) string { return r.CheckoutTime }),
		text("airport", func(r SessionRow) string { return r.Airport }),
		text("airline", func(r SessionRow) string { return r.Airline }),
		text("destination", func(r SessionRow) string { return r.Destination }),
		{ID: "flightNumber", Kind: Numeric, Value: func(r SessionRow) string { return r.FlightNumber }, Sortable: true, Searchable: true},
		text("depositor", func(r SessionRow) string { return r.Depositor }),
		{ID: "membersCount", Kind: Numeric, Value: func(r SessionRow) string { return strconv.Itoa(r.MembersCount) }, Sortable: true},
	}
}
