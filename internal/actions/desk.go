// Package actions runs user-initiated mutations: it calls the gateway,
// tells the user how it went and announces the change on the bus.
package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"delegation_sync/internal/auth"
	"delegation_sync/internal/bus"
	"delegation_sync/internal/departure"
	"delegation_sync/internal/gateway"
	"delegation_sync/internal/models"
	"delegation_sync/internal/notify"
)

var (
	// ErrDuplicateName is returned when a lookup with the same name exists.
	ErrDuplicateName = errors.New("name already exists")
	// ErrPermissionDenied is returned when the signed-in role may not
	// perform a mutation. The gateway is not called.
	ErrPermissionDenied = errors.New("permission denied")
)

// Gateway is the write side of the REST client.
type Gateway interface {
	Create(ctx context.Context, kind models.Kind, payload any) (models.Record, error)
	Update(ctx context.Context, kind models.Kind, id string, partial any) (models.Record, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
}

// Emitter publishes bus signals.
type Emitter interface {
	Emit(bus.Signal) error
}

// Lookups answers name questions against the cached lookup collections.
type Lookups interface {
	ResolveLookup(kind models.Kind, name string) (string, bool)
	LookupNameTaken(kind models.Kind, name, exceptID string) bool
}

// Desk performs mutations on behalf of the user. Every call ends with
// exactly one success or failure notice, except when the session expired,
// which the login boundary already handles.
type Desk struct {
	gw       Gateway
	emitter  Emitter
	notifier notify.Notifier
	lookups  Lookups
	role     func() auth.Role
	log      *logrus.Entry
}

type Option func(*Desk)

// WithRole checks every mutation against the role fn returns. While the
// role is empty the server alone decides.
func WithRole(fn func() auth.Role) Option { return func(d *Desk) { d.role = fn } }

func NewDesk(gw Gateway, emitter Emitter, notifier notify.Notifier, lookups Lookups, opts ...Option) *Desk {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	d := &Desk{
		gw:       gw,
		emitter:  emitter,
		notifier: notifier,
		lookups:  lookups,
		log:      logrus.WithField("component", "actions"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// changeSignals lists what a create or update of kind invalidates.
var changeSignals = map[models.Kind][]bus.Signal{
	models.KindMainEvent:        {bus.MainEventChanged},
	models.KindSubEvent:         {bus.SubEventChanged},
	models.KindDelegation:       {bus.DelegationChanged},
	models.KindMember:           {bus.MemberChanged, bus.DelegationChanged},
	models.KindDepartureSession: {bus.DepartureSessionChanged, bus.MemberChanged, bus.DelegationChanged},
	models.KindNationality:      {bus.LookupChanged},
	models.KindAirport:          {bus.LookupChanged},
	models.KindAirline:          {bus.LookupChanged},
	models.KindCity:             {bus.LookupChanged},
	models.KindEquivalentJob:    {bus.LookupChanged},
}

// deleteSignals lists what deleting a record of kind invalidates. Parents
// fan out to every kind the server may have removed with them.
var deleteSignals = map[models.Kind][]bus.Signal{
	models.KindMainEvent: {
		bus.MainEventChanged, bus.SubEventChanged,
		bus.DelegationChanged, bus.DelegationDeleted,
		bus.MemberChanged, bus.MemberDeleted,
		bus.DepartureSessionChanged,
	},
	models.KindSubEvent: {
		bus.SubEventChanged,
		bus.DelegationChanged, bus.DelegationDeleted,
		bus.MemberChanged, bus.MemberDeleted,
		bus.DepartureSessionChanged,
	},
	models.KindDelegation: {
		bus.DelegationChanged, bus.DelegationDeleted,
		bus.MemberChanged, bus.MemberDeleted,
		bus.DepartureSessionChanged,
	},
	models.KindMember:           {bus.MemberChanged, bus.MemberDeleted, bus.DelegationChanged, bus.DepartureSessionChanged},
	models.KindDepartureSession: {bus.DepartureSessionChanged, bus.MemberChanged, bus.DelegationChanged},
}

// SignalsFor returns the signals announced after a mutation of kind.
func SignalsFor(kind models.Kind, deleted bool) []bus.Signal {
	if deleted {
		if s, ok := deleteSignals[kind]; ok {
			return s
		}
	}
	return changeSignals[kind]
}

// permissions maps a kind to what creating, updating and deleting it needs.
var permissions = map[models.Kind][3]auth.Permission{
	models.KindMainEvent:        {auth.ManageEvents, auth.ManageEvents, auth.ManageEvents},
	models.KindSubEvent:         {auth.ManageEvents, auth.ManageEvents, auth.ManageEvents},
	models.KindDelegation:       {auth.AddDelegations, auth.EditDelegations, auth.DeleteDelegations},
	models.KindMember:           {auth.AddMembers, auth.EditMembers, auth.DeleteMembers},
	models.KindDepartureSession: {auth.AddDepartures, auth.EditDepartures, auth.DeleteDepartures},
}

// PermissionFor returns the permission op ("create", "update" or "delete")
// on kind requires. Lookups can be added from the delegation form; changing
// or removing them is a settings task.
func PermissionFor(kind models.Kind, op string) auth.Permission {
	i := map[string]int{"create": 0, "update": 1, "delete": 2}[op]
	if kind.IsLookup() {
		if i == 0 {
			return auth.AddDelegations
		}
		return auth.SystemSettings
	}
	return permissions[kind][i]
}

func (d *Desk) authorize(kind models.Kind, op string) error {
	if d.role == nil {
		return nil
	}
	role := d.role()
	if role == "" {
		return nil
	}
	p := PermissionFor(kind, op)
	if role.Can(p) {
		return nil
	}
	d.log.WithFields(logrus.Fields{"kind": kind, "op": op, "role": role, "permission": p}).Warn("Mutation refused")
	d.notify(notify.Notice{
		Level:   notify.Error,
		Title:   title(kind, op),
		Message: fmt.Sprintf("your role (%s) may not %s %s records", role, op, label(kind)),
	})
	return fmt.Errorf("%w: %s needs %s", ErrPermissionDenied, role, p)
}

func (d *Desk) Create(ctx context.Context, kind models.Kind, payload any) (models.Record, error) {
	if err := d.authorize(kind, "create"); err != nil {
		return nil, err
	}
	rec, err := d.gw.Create(ctx, kind, payload)
	if err != nil {
		d.fail(kind, "create", err)
		return nil, err
	}
	d.succeed(kind, "created", SignalsFor(kind, false))
	return rec, nil
}

func (d *Desk) Update(ctx context.Context, kind models.Kind, id string, partial any) (models.Record, error) {
	if err := d.authorize(kind, "update"); err != nil {
		return nil, err
	}
	rec, err := d.gw.Update(ctx, kind, id, partial)
	if err != nil {
		d.fail(kind, "update", err)
		return nil, err
	}
	d.succeed(kind, "updated", SignalsFor(kind, false))
	return rec, nil
}

// Delete removes a record. Main events, sub events and delegations go
// through the cascade so everything below them is invalidated.
func (d *Desk) Delete(ctx context.Context, kind models.Kind, id string) error {
	if err := d.authorize(kind, "delete"); err != nil {
		return err
	}
	if err := d.gw.Delete(ctx, kind, id); err != nil {
		d.fail(kind, "delete", err)
		return err
	}
	d.succeed(kind, "deleted", SignalsFor(kind, true))
	return nil
}

func (d *Desk) DeleteMainEvent(ctx context.Context, id string) error {
	return d.Delete(ctx, models.KindMainEvent, id)
}

func (d *Desk) DeleteSubEvent(ctx context.Context, id string) error {
	return d.Delete(ctx, models.KindSubEvent, id)
}

func (d *Desk) DeleteDelegation(ctx context.Context, id string) error {
	return d.Delete(ctx, models.KindDelegation, id)
}

// CreateLookup adds a lookup value after checking the cached names, so an
// obvious duplicate never reaches the server.
func (d *Desk) CreateLookup(ctx context.Context, kind models.Kind, name string) (models.Record, error) {
	if err := d.checkLookupName(kind, name, ""); err != nil {
		return nil, err
	}
	return d.Create(ctx, kind, models.LookupInput{Name: strings.TrimSpace(name)}.Body(kind))
}

// RenameLookup changes the name of an existing lookup value.
func (d *Desk) RenameLookup(ctx context.Context, kind models.Kind, id, name string) (models.Record, error) {
	if err := d.checkLookupName(kind, name, id); err != nil {
		return nil, err
	}
	return d.Update(ctx, kind, id, models.LookupInput{Name: strings.TrimSpace(name)}.Body(kind))
}

func (d *Desk) checkLookupName(kind models.Kind, name, exceptID string) error {
	if !kind.IsLookup() {
		return fmt.Errorf("%s is not a lookup", kind)
	}
	field := kind.NameField()
	name = strings.TrimSpace(name)
	if name == "" {
		err := &gateway.Error{Kind: gateway.KindValidation, Field: field, Message: "name is required"}
		d.notify(notify.Notice{Level: notify.Error, Title: title(kind, "create"), Message: err.Message, Field: field})
		return err
	}
	if d.lookups != nil && d.lookups.LookupNameTaken(kind, name, exceptID) {
		err := &gateway.Error{
			Kind:    gateway.KindValidation,
			Field:   field,
			Message: fmt.Sprintf("%q already exists", name),
			Err:     ErrDuplicateName,
		}
		d.notify(notify.Notice{Level: notify.Error, Title: title(kind, "create"), Message: err.Message, Field: field})
		return err
	}
	return nil
}

// SaveDepartureSession validates the draft against the delegation's members
// and sessions, then creates or updates it.
func (d *Desk) SaveDepartureSession(ctx context.Context, draft departure.Draft, memberCount int, members, sessions []models.Record) (models.Record, error) {
	kind := models.KindDepartureSession
	op := "create"
	if draft.ID != "" {
		op = "update"
	}
	if err := draft.Validate(memberCount, members, sessions); err != nil {
		d.notify(notify.Notice{Level: notify.Error, Title: title(kind, op), Message: err.Error(), Field: fieldOf(err)})
		return nil, err
	}
	payload, err := draft.Payload(d.lookups)
	if err != nil {
		d.notify(notify.Notice{Level: notify.Error, Title: title(kind, op), Message: err.Error(), Field: fieldOf(err)})
		return nil, err
	}
	if draft.ID == "" {
		return d.Create(ctx, kind, payload)
	}
	return d.Update(ctx, kind, draft.ID, payload)
}

func (d *Desk) succeed(kind models.Kind, verb string, signals []bus.Signal) {
	d.notify(notify.Notice{Level: notify.Success, Title: title(kind, verb), Message: label(kind) + " " + verb})
	if d.emitter == nil {
		return
	}
	for _, s := range signals {
		if err := d.emitter.Emit(s); err != nil {
			d.log.WithError(err).WithField("signal", s).Warn("Could not announce change")
		}
	}
}

func (d *Desk) fail(kind models.Kind, op string, err error) {
	if errors.Is(err, gateway.ErrSessionExpired) {
		d.log.WithField("kind", kind).Debug("Mutation stopped by expired session")
		return
	}
	n := notify.Notice{Level: notify.Error, Title: title(kind, op), Message: err.Error()}
	var ge *gateway.Error
	if errors.As(err, &ge) {
		n.Message = ge.Message
		if ge.Kind == gateway.KindValidation {
			n.Field = ge.Field
		}
	}
	d.log.WithError(err).WithFields(logrus.Fields{"kind": kind, "op": op}).Warn("Mutation failed")
	d.notify(n)
}

func (d *Desk) notify(n notify.Notice) { d.notifier.Notify(n) }

func fieldOf(err error) string {
	var fe *departure.FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}

func label(kind models.Kind) string {
	return strings.ReplaceAll(string(kind), "_", " ")
}

func title(kind models.Kind, op string) string {
	return label(kind) + " " + op
}
