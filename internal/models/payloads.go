package models

// Payloads sent on create/update. Lookups are referenced by id; optional
// references are pointers so an unresolved name is sent as null.

type MainEventInput struct {
	EventName string `json:"event_name"`
}

type SubEventInput struct {
	MainEventID string `json:"main_event_id"`
	EventName   string `json:"event_name"`
}

type LookupInput struct {
	Name string `json:"-"`
}

// Body renders the lookup payload under the kind's name field.
func (in LookupInput) Body(kind Kind) map[string]string {
	return map[string]string{kind.NameField(): in.Name}
}

type DelegationInput struct {
	SubEventID           string         `json:"sub_event_id"`
	NationalityID        *string        `json:"nationality_id"`
	DelegationLeaderName string         `json:"delegation_leader_name"`
	MemberCount          int            `json:"member_count"`
	Type                 DelegationType `json:"type"`
	AirportID            *string        `json:"airport_id"`
	AirlineID            *string        `json:"airline_id"`
	CityID               *string        `json:"city_id"`
	GoingTo              string         `json:"going_to"`
	FlightNumber         string         `json:"flight_number"`
	ArriveDate           string         `json:"arrive_date,omitempty"`
	ArriveTime           string         `json:"arrive_time,omitempty"`
	ReceiverName         string         `json:"receiver_name"`
	Goods                string         `json:"goods"`
}

type MemberInput struct {
	DelegationID    string  `json:"delegation_id"`
	SubEventID      string  `json:"sub_event_id,omitempty"`
	Rank            string  `json:"rank"`
	Name            string  `json:"name"`
	Role            string  `json:"role"`
	EquivalentJobID *string `json:"equivalent_job_id"`
}

type DepartureSessionInput struct {
	DelegationID  string   `json:"delegation_id"`
	CheckoutDate  string   `json:"checkout_date"`
	CheckoutTime  string   `json:"checkout_time"`
	AirportID     *string  `json:"airport_id"`
	AirlineID     *string  `json:"airline_id"`
	CityID        *string  `json:"city_id"`
	FlightNumber  string   `json:"flight_number"`
	DepositorName string   `json:"depositor_name"`
	Goods         string   `json:"goods"`
	Notes         string   `json:"notes"`
	Members       []string `json:"members"`
}
