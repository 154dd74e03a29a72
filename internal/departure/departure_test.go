package departure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delegation_sync/internal/models"
)

func recs(raw ...string) []models.Record {
	out := make([]models.Record, 0, len(raw))
	for _, r := range raw {
		out = append(out, models.Record(r))
	}
	return out
}

func idsOf(rs []models.Record) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.ID())
	}
	return out
}

var (
	members = recs(
		`{"id":"m1","delegation_id":"d1","status":"NOT_DEPARTED"}`,
		`{"id":"m2","delegation_id":"d1","status":"DEPARTED"}`,
		`{"id":"m3","delegation_id":"d1","status":"DEPARTED"}`,
		`{"id":"m4","delegation_id":"d1","status":"NOT_DEPARTED"}`,
		`{"id":"x1","delegation_id":"d2","status":"NOT_DEPARTED"}`,
	)
	sessions = recs(
		`{"id":"s1","delegation_id":"d1","members":["m2"]}`,
		`{"id":"s2","delegation_id":"d1","members":["m3"]}`,
		`{"id":"s9","delegation_id":"d2","members":["m1"]}`,
	)
)

func TestAvailableMembers(t *testing.T) {
	assert.Equal(t, []string{"m1", "m4"}, idsOf(AvailableMembers("d1", members, sessions, "")))
	// Editing s1 keeps its own departed member selectable.
	assert.Equal(t, []string{"m1", "m2", "m4"}, idsOf(AvailableMembers("d1", members, sessions, "s1")))
	assert.Equal(t, []string{"x1"}, idsOf(AvailableMembers("d2", members, sessions, "")))
	assert.Empty(t, AvailableMembers("d3", members, sessions, ""))
}

func validDraft() Draft {
	return Draft{
		DelegationID: "d1",
		Date:         "2024-02-01",
		TimeHHMM:     "1430",
		Airport:      "Hall 1",
		Airline:      "Gulf Air",
		Destination:  "Muscat",
		FlightNumber: "GF123",
		Depositor:    "Ali",
		Goods:        "none",
		Members:      []string{"m1"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validDraft().Validate(4, members, sessions))

	d := validDraft()
	d.Members = nil
	err := d.Validate(4, members, sessions)
	assert.ErrorIs(t, err, ErrNoMembers)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "members", fe.Field)

	d = validDraft()
	d.Members = []string{"m1", "m2"}
	assert.ErrorIs(t, d.Validate(4, members, sessions), ErrMemberInOtherSession)

	d = validDraft()
	d.Members = []string{"x1"}
	assert.ErrorIs(t, d.Validate(4, members, sessions), ErrForeignMember)

	d = validDraft()
	d.Members = []string{"m1", "m4"}
	assert.ErrorIs(t, d.Validate(3, members, sessions), ErrExceedsMemberCount)
	assert.NoError(t, d.Validate(4, members, sessions))

	// A delegation declaring no members cannot send anyone off.
	d = validDraft()
	assert.ErrorIs(t, d.Validate(0, members, sessions), ErrExceedsMemberCount)

	d = validDraft()
	d.ID = "s1"
	d.Members = []string{"m2", "m1"}
	assert.NoError(t, d.Validate(4, members, sessions))

	d = validDraft()
	d.TimeHHMM = "14:30"
	d.Airport = " "
	err = d.Validate(4, members, sessions)
	assert.ErrorIs(t, err, models.ErrInvalidClock)
	assert.ErrorIs(t, err, ErrRequired)
}

func TestValidateNoneAvailable(t *testing.T) {
	all := recs(`{"id":"m1","delegation_id":"d1","status":"DEPARTED"}`)
	taken := recs(`{"id":"s1","delegation_id":"d1","members":["m1"]}`)
	d := validDraft()
	d.Members = nil
	assert.ErrorIs(t, d.Validate(1, all, taken), ErrNoneAvailable)
}

type names map[string]string

func (n names) ResolveLookup(kind models.Kind, name string) (string, bool) {
	id, ok := n[string(kind)+":"+name]
	return id, ok
}

func TestPayload(t *testing.T) {
	d := validDraft()
	d.Members = []string{"m4", "m1", "m4"}
	in, err := d.Payload(names{"airport:Hall 1": "ap1", "city:Muscat": "c1"})
	require.NoError(t, err)

	assert.Equal(t, "14:30:00", in.CheckoutTime)
	assert.Equal(t, "2024-02-01", in.CheckoutDate)
	require.NotNil(t, in.AirportID)
	assert.Equal(t, "ap1", *in.AirportID)
	assert.Nil(t, in.AirlineID, "unknown names are sent as null")
	require.NotNil(t, in.CityID)
	assert.Equal(t, "c1", *in.CityID)
	assert.Equal(t, []string{"m1", "m4"}, in.Members)

	d.TimeHHMM = "2460"
	_, err = d.Payload(nil)
	assert.ErrorIs(t, err, models.ErrInvalidClock)
}

func TestDraftRoundTrip(t *testing.T) {
	d := DraftFromRecord(models.Record(`{"id":"s1","delegation_id":"d1","checkout_date":"2024-02-01","checkout_time":"14:30:00","airport_name":"Hall 1","members":["m2"]}`))
	assert.Equal(t, "1430", d.TimeHHMM)
	assert.Equal(t, "Hall 1", d.Airport)
	assert.Equal(t, []string{"m2"}, d.Members)

	in, err := d.Payload(nil)
	require.NoError(t, err)
	assert.Equal(t, "14:30:00", in.CheckoutTime)
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 2, Remaining("d1", 4, sessions))
	assert.Equal(t, 0, Remaining("d1", 1, sessions))
}
