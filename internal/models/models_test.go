package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveDelegationStatus(t *testing.T) {
	cases := []struct {
		total, departed int
		want            DelegationStatus
	}{
		{10, 0, StatusNotDeparted},
		{10, 4, StatusPartiallyDeparted},
		{10, 10, StatusFullyDeparted},
		{0, 0, StatusNotDeparted},
		{3, 5, StatusFullyDeparted},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveDelegationStatus(tc.total, tc.departed), "%d/%d", tc.departed, tc.total)
	}
}

func TestClockFromHHMM(t *testing.T) {
	got, err := ClockFromHHMM("1430")
	require.NoError(t, err)
	assert.Equal(t, "14:30:00", got)

	for _, bad := range []string{"", "143", "14:30", "2460", "abcd", "14300"} {
		_, err := ClockFromHHMM(bad)
		assert.ErrorIs(t, err, ErrInvalidClock, bad)
	}
}

func TestNormalizeHHMM(t *testing.T) {
	assert.Equal(t, "1430", NormalizeHHMM("14:30:00"))
	assert.Equal(t, "1430", NormalizeHHMM("14:30"))
	assert.Equal(t, "0930", NormalizeHHMM("930"))
	assert.Equal(t, "", NormalizeHHMM(""))

	clock, err := ClockFromHHMM("1430")
	require.NoError(t, err)
	assert.Equal(t, "1430", NormalizeHHMM(clock))
}

func TestRecordLenientAccess(t *testing.T) {
	r := Record(`{"id":"a1","member_count":"7","name":null,"members":["m1",null,"m2"]}`)
	assert.Equal(t, "a1", r.ID())
	assert.Equal(t, 7, r.Int("member_count"))
	assert.Equal(t, "", r.String("name"))
	assert.Equal(t, "", r.String("missing.nested"))
	assert.Equal(t, []string{"m1", "m2"}, r.Strings("members"))

	broken := Record(`not json`)
	assert.Equal(t, "", broken.ID())
	assert.Equal(t, 0, broken.Int("member_count"))
}

func TestRecordJSON(t *testing.T) {
	var holder struct {
		Item Record `json:"item"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"item":{"id":5}}`), &holder))
	assert.Equal(t, "5", holder.Item.ID())

	out, err := json.Marshal(holder)
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":{"id":5}}`, string(out))
}

func TestKindCatalogue(t *testing.T) {
	k, ok := KindForModel("CheckOut")
	require.True(t, ok)
	assert.Equal(t, KindDepartureSession, k)
	assert.Equal(t, "check-outs", k.Path())

	k, ok = KindForPath("cities")
	require.True(t, ok)
	assert.Equal(t, "city_name", k.NameField())
	assert.True(t, k.IsLookup())

	_, ok = KindForModel("Unknown")
	assert.False(t, ok)
	assert.Len(t, Kinds(), 10)
}
