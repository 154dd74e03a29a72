package table

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delegation_sync/internal/cache"
	"delegation_sync/internal/models"
)

func delegation(json string) DelegationRow { return ProjectDelegation(models.Record(json)) }

func ids(rows []DelegationRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestStatusClassification(t *testing.T) {
	for _, tc := range []struct {
		total, departed int
		want            string
	}{
		{10, 0, NotDeparted},
		{10, 4, PartialDeparted},
		{10, 10, AllDeparted},
	} {
		row := delegation(`{"id":"d","member_count":` + strconv.Itoa(tc.total) + `,"departed_count":` + strconv.Itoa(tc.departed) + `}`)
		assert.Equal(t, tc.want, row.DelegationStatus, "%d/%d", tc.departed, tc.total)
	}

	assert.Equal(t, AllDeparted, delegation(`{"status":"FULLY_DEPARTED"}`).DelegationStatus)
	assert.Equal(t, PartialDeparted, delegation(`{"status":"PARTIALLY_DEPARTED"}`).DelegationStatus)
	assert.Equal(t, NotDeparted, delegation(`{"status":"WHATEVER"}`).DelegationStatus)
	assert.Equal(t, Military, delegation(`{"type":"MILITARY"}`).DelegationType)
	assert.Equal(t, Civil, delegation(`{"type":"CIVILIAN"}`).DelegationType)
	assert.Equal(t, UnknownType, delegation(`{}`).DelegationType)
}

func TestMissingFieldsProjectToEmpty(t *testing.T) {
	row := delegation(`{"id":"d1","arrive_time":null}`)
	assert.Equal(t, "", row.ArrivalTime)
	assert.Equal(t, "", row.Nationality)
	assert.Equal(t, 0, row.MembersCount)

	row = delegation(`{"id":"d2"}`)
	assert.Equal(t, "", row.ArrivalTime)
}

func TestArrivalFieldMapping(t *testing.T) {
	row := delegation(`{
		"id":"d1","nationality_name":"Oman","delegation_leader_name":"Said",
		"member_count":12,"airport_name":"Hall 1","airline_name":"Gulf Air",
		"going_to":"Muscat","flight_number":"GF123","arrive_date":"2024-01-15",
		"arrive_time":"14:30:00","receiver_name":"Ali","city_name":"Riyadh","goods":"boxes"}`)
	assert.Equal(t, DelegationRow{
		ID: "d1", DelegationStatus: NotDeparted, DelegationType: UnknownType,
		Nationality: "Oman", DelegationHead: "Said", MembersCount: 12,
		ArrivalHall: "Hall 1", ArrivalAirline: "Gulf Air", ArrivalOrigin: "Muscat",
		ArrivalFlightNumber: "GF123", ArrivalDate: "2024-01-15", ArrivalTime: "1430",
		ArrivalReceptor: "Ali", ArrivalDestination: "Riyadh", ArrivalShipments: "boxes",
	}, row)
}

func TestEmptySentinelFilter(t *testing.T) {
	rows := []DelegationRow{
		delegation(`{"id":"a","city_name":null}`),
		delegation(`{"id":"b"}`),
		delegation(`{"id":"c","city_name":""}`),
		delegation(`{"id":"d","city_name":"Riyadh"}`),
		delegation(`{"id":"e","city_name":"-"}`),
	}
	got, err := Apply(rows, DelegationColumns(), Query{Filters: map[string]FilterValue{"arrivalDestination": Token("empty")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "e"}, ids(got))

	got, err = Apply(rows, DelegationColumns(), Query{Filters: map[string]FilterValue{"arrivalDestination": Token("riy")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(got))
}

func TestDateFilters(t *testing.T) {
	rows := []DelegationRow{
		delegation(`{"id":"jan15","arrive_date":"2024-01-15"}`),
		delegation(`{"id":"feb01","arrive_date":"2024-02-01"}`),
		delegation(`{"id":"dec31","arrive_date":"2023-12-31T23:00:00Z"}`),
		delegation(`{"id":"bad","arrive_date":"soon"}`),
		delegation(`{"id":"none"}`),
	}
	apply := func(f FilterValue) []string {
		got, err := Apply(rows, DelegationColumns(), Query{Filters: map[string]FilterValue{"arrivalDate": f}})
		require.NoError(t, err)
		return ids(got)
	}

	assert.Equal(t, []string{"jan15"}, apply(DateRange{Start: "2024-01-01", End: "2024-01-31"}))
	assert.Equal(t, []string{"jan15", "feb01"}, apply(DateRange{Start: "2024-01-01"}))
	assert.Equal(t, []string{"jan15", "dec31"}, apply(DateRange{End: "2024-01-31"}))
	assert.Equal(t, []string{"feb01"}, apply(Token("2024-02-01")))
	assert.Equal(t, []string{"dec31"}, apply(Token("2023-12-31")))
	assert.Empty(t, apply(Token("not a date")))
	assert.Empty(t, apply(DateRange{Start: "garbage"}))
	assert.Len(t, apply(DateRange{}), 5)
	assert.Equal(t, []string{"none"}, apply(Token(EmptySentinel)))
}

func TestColumnAndGlobalFiltersCombine(t *testing.T) {
	rows := []DelegationRow{
		delegation(`{"id":"1","nationality_name":"Oman","type":"MILITARY","member_count":12,"flight_number":"WY 601"}`),
		delegation(`{"id":"2","nationality_name":"Jordan","type":"MILITARY","member_count":5}`),
		delegation(`{"id":"3","nationality_name":"Romania","type":"CIVILIAN","member_count":21}`),
	}
	cols := DelegationColumns()

	got, err := Apply(rows, cols, Query{Filters: map[string]FilterValue{"membersCount": Token("2")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ids(got))

	got, err = Apply(rows, cols, Query{Filters: map[string]FilterValue{"delegationType": Token(Military)}, Search: "AN"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(got))

	got, err = Apply(rows, cols, Query{Filters: map[string]FilterValue{"delegationType": Token("milit")}})
	require.NoError(t, err)
	assert.Empty(t, got, "enum columns match exactly")

	got, err = Apply(rows, cols, Query{Search: "601"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(got))

	_, err = Apply(rows, cols, Query{Filters: map[string]FilterValue{"nope": Token("x")}})
	assert.Error(t, err)
	_, err = Apply(rows, cols, Query{Filters: map[string]FilterValue{"nationality": DateRange{Start: "2024-01-01"}}})
	assert.NoError(t, err)
}

func TestStableSort(t *testing.T) {
	rows := []DelegationRow{
		delegation(`{"id":"a","nationality_name":"Oman","member_count":5}`),
		delegation(`{"id":"b","nationality_name":"Chad","member_count":12}`),
		delegation(`{"id":"c","nationality_name":"oman","member_count":5}`),
		delegation(`{"id":"d","member_count":5}`),
		delegation(`{"id":"e","nationality_name":"Chad","member_count":9}`),
	}
	cols := DelegationColumns()

	got, err := Apply(rows, cols, Query{SortBy: "nationality"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "e", "a", "c", "d"}, ids(got))

	got, err = Apply(rows, cols, Query{SortBy: "membersCount", Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "e", "a", "c", "d"}, ids(got))

	got, err = Apply(rows, cols, Query{SortBy: "membersCount"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d", "e", "b"}, ids(got))

	assert.Equal(t, "a", rows[0].ID, "input untouched")
}

func TestProjectMemberJoins(t *testing.T) {
	j := NewMemberJoins(
		[]models.Record{models.Record(`{"id":"d1","nationality_name":"Oman","delegation_leader_name":"Said","sub_event_id":"s1","arrive_date":"2024-01-15"}`)},
		[]models.Record{models.Record(`{"id":"s1","event_name":"Opening","main_event_id":"e1"}`)},
		[]models.Record{models.Record(`{"id":"e1","event_name":"Summit"}`)},
	)
	row := ProjectMember(models.Record(`{"id":"m1","delegation_id":"d1","name":"Ali","job_title":"Officer","status":"DEPARTED","departure_date":"2024-01-20"}`), j)
	assert.Equal(t, MemberRow{
		ID: "m1", DelegationID: "d1", MemberStatus: MemberDeparted, Name: "Ali", Role: "Officer",
		Nationality: "Oman", DelegationHead: "Said", Delegation: "Oman - Said",
		SubEvent: "Opening", MainEvent: "Summit", ArrivalDate: "2024-01-15", DepartureDate: "2024-01-20",
	}, row)

	orphan := ProjectMember(models.Record(`{"id":"m2","delegation_id":"gone","rank":"-"}`), j)
	assert.Equal(t, MemberNotDeparted, orphan.MemberStatus)
	assert.Equal(t, "", orphan.Delegation)

	got, err := Apply([]MemberRow{row, orphan}, MemberColumns(), Query{Filters: map[string]FilterValue{"rank": Token("empty")}})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = Apply([]MemberRow{row, orphan}, MemberColumns(), Query{Filters: map[string]FilterValue{"memberStatus": Token(MemberDeparted)}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
}

func TestProjectSession(t *testing.T) {
	row := ProjectSession(models.Record(`{"id":"s1","delegation_id":"d1","checkout_time":"08:05:00","members":["m1","m2"],"airport_name":"Hall 2"}`))
	assert.Equal(t, "0805", row.CheckoutTime)
	assert.Equal(t, 2, row.MembersCount)
	assert.Equal(t, "Hall 2", row.Airport)

	got, err := Apply(ProjectSessions([]models.Record{models.Record(`{"id":"x"}`)}), SessionColumns(), Query{SortBy: "checkoutDate"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestViewFollowsCache(t *testing.T) {
	data := []models.Record{models.Record(`{"id":"1","nationality_name":"Oman"}`)}
	src := cache.New("delegations", func(ctx context.Context) ([]models.Record, error) { return data, nil })

	v := NewView(func() []DelegationRow { return ProjectDelegations(src.Records()) }, DelegationColumns(), src)
	assert.Empty(t, v.Rows())

	var changes int
	v.OnChange(func([]DelegationRow) { changes++ })

	require.NoError(t, src.Refresh(context.Background()))
	assert.Len(t, v.Rows(), 1)
	assert.Equal(t, 1, changes)

	require.NoError(t, v.SetQuery(Query{Search: "jordan"}))
	assert.Empty(t, v.Rows())
	assert.Error(t, v.SetQuery(Query{SortBy: "missing"}))

	v.Close()
	data = append(data, models.Record(`{"id":"2","nationality_name":"Jordan"}`))
	require.NoError(t, src.Refresh(context.Background()))
	assert.Empty(t, v.Rows())
	assert.Equal(t, 2, changes)
}

func TestViewRebuildsAfterConcurrentChange(t *testing.T) {
	var head atomic.Value
	head.Store("A")
	var calls atomic.Int32
	entered, release := make(chan struct{}), make(chan struct{})
	project := func() []string {
		if calls.Add(1) == 2 {
			close(entered)
			<-release
		}
		return []string{head.Load().(string)}
	}
	cols := []Column[string]{{ID: "v", Kind: Text, Value: func(s string) string { return s }}}

	v := NewView(project, cols)
	defer v.Close()
	var seen []string
	v.OnChange(func(rows []string) { seen = append(seen, rows[0]) })

	done := make(chan struct{})
	go func() {
		_ = v.SetQuery(Query{})
		close(done)
	}()
	<-entered
	// The cache moves on while the first rebuild is still reading it.
	head.Store("B")
	require.NoError(t, v.SetQuery(Query{}))
	close(release)
	<-done

	assert.Equal(t, []string{"B"}, v.Rows())
	assert.Equal(t, "B", seen[len(seen)-1])
}
