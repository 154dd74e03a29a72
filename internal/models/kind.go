package models

// Kind identifies a resource on the REST contract.
type Kind string

const (
	KindMainEvent        Kind = "main_event"
	KindSubEvent         Kind = "sub_event"
	KindDelegation       Kind = "delegation"
	KindMember           Kind = "member"
	KindDepartureSession Kind = "departure_session"
	KindNationality      Kind = "nationality"
	KindAirport          Kind = "airport"
	KindAirline          Kind = "airline"
	KindCity             Kind = "city"
	KindEquivalentJob    Kind = "equivalent_job"
)

type kindInfo struct {
	path      string // REST collection path, no slashes
	model     string // model name used by push notifications
	nameField string // display name field
	lookup    bool
}

var kinds = map[Kind]kindInfo{
	KindMainEvent:        {path: "main-events", model: "MainEvent", nameField: "event_name"},
	KindSubEvent:         {path: "sub-events", model: "SubEvent", nameField: "event_name"},
	KindDelegation:       {path: "delegations", model: "Delegation", nameField: "delegation_leader_name"},
	KindMember:           {path: "members", model: "Member", nameField: "name"},
	KindDepartureSession: {path: "check-outs", model: "CheckOut", nameField: "flight_number"},
	KindNationality:      {path: "nationalities", model: "Nationality", nameField: "name", lookup: true},
	KindAirport:          {path: "airports", model: "AirPort", nameField: "name", lookup: true},
	KindAirline:          {path: "airlines", model: "AirLine", nameField: "name", lookup: true},
	KindCity:             {path: "cities", model: "Cities", nameField: "city_name", lookup: true},
	KindEquivalentJob:    {path: "equivalent-jobs", model: "EquivalentJob", nameField: "name", lookup: true},
}

// Kinds returns every known kind, primary entities first.
func Kinds() []Kind {
	return []Kind{
		KindMainEvent, KindSubEvent, KindDelegation, KindMember, KindDepartureSession,
		KindNationality, KindAirport, KindAirline, KindCity, KindEquivalentJob,
	}
}

// LookupKinds returns the kinds that are referenced by name in forms.
func LookupKinds() []Kind {
	return []Kind{KindNationality, KindAirport, KindAirline, KindCity, KindEquivalentJob}
}

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Path is the collection path relative to the API root, e.g. "delegations".
func (k Kind) Path() string { return kinds[k].path }

// Model is the entity name the push channel uses for this kind.
func (k Kind) Model() string { return kinds[k].model }

// NameField is the record field that holds the display name.
func (k Kind) NameField() string { return kinds[k].nameField }

func (k Kind) IsLookup() bool { return kinds[k].lookup }

// KindForModel maps a push model name back to its kind.
func KindForModel(model string) (Kind, bool) {
	for k, info := range kinds {
		if info.model == model {
			return k, true
		}
	}
	return "", false
}

// KindForPath maps a REST collection path back to its kind.
func KindForPath(path string) (Kind, bool) {
	for k, info := range kinds {
		if info.path == path {
			return k, true
		}
	}
	return "", false
}
