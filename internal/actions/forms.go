package actions

import (
	"context"
	"errors"
	"strings"

	"delegation_sync/internal/gateway"
	"delegation_sync/internal/models"
	"delegation_sync/internal/notify"
)

// DelegationForm is the arrival form. Lookups are given by display name and
// the arrival time as HHMM.
type DelegationForm struct {
	ID           string
	SubEventID   string
	Nationality  string
	Head         string
	MemberCount  int
	Type         models.DelegationType
	Hall         string
	Airline      string
	Origin       string
	FlightNumber string
	ArrivalDate  string
	ArrivalHHMM  string
	Receptor     string
	Destination  string
	Shipments    string
}

// Input converts the form into the request body.
func (f DelegationForm) Input(r Lookups) (models.DelegationInput, error) {
	var errs []error
	if strings.TrimSpace(f.SubEventID) == "" {
		errs = append(errs, &gateway.Error{Kind: gateway.KindValidation, Field: "sub_event_id", Message: "sub event is required"})
	}
	if strings.TrimSpace(f.Head) == "" {
		errs = append(errs, &gateway.Error{Kind: gateway.KindValidation, Field: "delegation_leader_name", Message: "delegation head is required"})
	}
	if f.MemberCount < 0 {
		errs = append(errs, &gateway.Error{Kind: gateway.KindValidation, Field: "member_count", Message: "member count cannot be negative"})
	}
	if f.Type != "" && !f.Type.Valid() {
		errs = append(errs, &gateway.Error{Kind: gateway.KindValidation, Field: "type", Message: "unknown delegation type " + string(f.Type)})
	}
	var clock string
	if strings.TrimSpace(f.ArrivalHHMM) != "" {
		c, err := models.ClockFromHHMM(f.ArrivalHHMM)
		if err != nil {
			errs = append(errs, &gateway.Error{Kind: gateway.KindValidation, Field: "arrive_time", Message: err.Error(), Err: err})
		}
		clock = c
	}
	if err := errors.Join(errs...); err != nil {
		return models.DelegationInput{}, err
	}
	return models.DelegationInput{
		SubEventID:           f.SubEventID,
		NationalityID:        lookupID(r, models.KindNationality, f.Nationality),
		DelegationLeaderName: strings.TrimSpace(f.Head),
		MemberCount:          f.MemberCount,
		Type:                 f.Type,
		AirportID:            lookupID(r, models.KindAirport, f.Hall),
		AirlineID:            lookupID(r, models.KindAirline, f.Airline),
		CityID:               lookupID(r, models.KindCity, f.Destination),
		GoingTo:              strings.TrimSpace(f.Origin),
		FlightNumber:         strings.TrimSpace(f.FlightNumber),
		ArriveDate:           strings.TrimSpace(f.ArrivalDate),
		ArriveTime:           clock,
		ReceiverName:         strings.TrimSpace(f.Receptor),
		Goods:                f.Shipments,
	}, nil
}

// MemberForm adds or edits a delegation member.
type MemberForm struct {
	ID            string
	DelegationID  string
	SubEventID    string
	Rank          string
	Name          string
	Role          string
	EquivalentJob string
}

func (f MemberForm) Input(r Lookups) (models.MemberInput, error) {
	if strings.TrimSpace(f.DelegationID) == "" {
		return models.MemberInput{}, &gateway.Error{Kind: gateway.KindValidation, Field: "delegation_id", Message: "delegation is required"}
	}
	if strings.TrimSpace(f.Name) == "" {
		return models.MemberInput{}, &gateway.Error{Kind: gateway.KindValidation, Field: "name", Message: "name is required"}
	}
	return models.MemberInput{
		DelegationID:    f.DelegationID,
		SubEventID:      f.SubEventID,
		Rank:            strings.TrimSpace(f.Rank),
		Name:            strings.TrimSpace(f.Name),
		Role:            strings.TrimSpace(f.Role),
		EquivalentJobID: lookupID(r, models.KindEquivalentJob, f.EquivalentJob),
	}, nil
}

func (d *Desk) SaveDelegation(ctx context.Context, f DelegationForm) (models.Record, error) {
	in, err := f.Input(d.lookups)
	if err != nil {
		d.rejectForm(models.KindDelegation, f.ID, err)
		return nil, err
	}
	if f.ID == "" {
		return d.Create(ctx, models.KindDelegation, in)
	}
	return d.Update(ctx, models.KindDelegation, f.ID, in)
}

func (d *Desk) SaveMember(ctx context.Context, f MemberForm) (models.Record, error) {
	in, err := f.Input(d.lookups)
	if err != nil {
		d.rejectForm(models.KindMember, f.ID, err)
		return nil, err
	}
	if f.ID == "" {
		return d.Create(ctx, models.KindMember, in)
	}
	return d.Update(ctx, models.KindMember, f.ID, in)
}

func (d *Desk) rejectForm(kind models.Kind, id string, err error) {
	op := "create"
	if id != "" {
		op = "update"
	}
	n := notify.Notice{Level: notify.Error, Title: title(kind, op), Message: err.Error()}
	var ge *gateway.Error
	if errors.As(err, &ge) {
		n.Field = ge.Field
		n.Message = ge.Message
	}
	d.notify(n)
}

func lookupID(r Lookups, kind models.Kind, name string) *string {
	if r == nil || strings.TrimSpace(name) == "" {
		return nil
	}
	id, ok := r.ResolveLookup(kind, name)
	if !ok {
		return nil
	}
	return &id
}
