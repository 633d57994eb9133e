package planner

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalogStub struct {
	known      map[string]struct{}
	workouts   []WorkoutInfo
	knownCalls int
}

func (c *catalogStub) KnownWorkoutIDs(_ context.Context) (map[string]struct{}, error) {
	c.knownCalls++
	return c.known, nil
}

func (c *catalogStub) ListWorkouts(_ context.Context) ([]WorkoutInfo, error) {
	return c.workouts, nil
}

type resyncerStub struct {
	calls int
}

func (r *resyncerStub) Resync(_ context.Context) error {
	r.calls++
	return nil
}

// test clock: 2025-06-30 (monday) at 10:00 local
func testNow() time.Time {
	return time.Date(2025, 6, 30, 10, 0, 0, 0, time.Local)
}

func testServiceSetup(t *testing.T, known ...string) (*Service, redismock.ClientMock, *resyncerStub) {
	t.Helper()

	db, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		_ = db.Close()
	})

	knownIDs := make(map[string]struct{}, len(known))
	for _, id := range known {
		knownIDs[id] = struct{}{}
	}

	service := NewService(NewStore(db), &catalogStub{known: knownIDs})
	service.now = testNow

	resyncer := &resyncerStub{}
	service.SetResyncer(resyncer)

	return service, mock, resyncer
}

// expectPlanRead registers the override lookup for a date: the local key, and
// the UTC-derived key too when the two differ on the machine's timezone
func expectPlanRead(t *testing.T, mock redismock.ClientMock, dateKey string, val *string) {
	t.Helper()

	if val == nil {
		mock.ExpectGet(planKeyPrefix + dateKey).RedisNil()
	} else {
		mock.ExpectGet(planKeyPrefix + dateKey).SetVal(*val)
	}

	date, err := ParseDateKey(dateKey)
	require.NoError(t, err)
	if utcKey := ToUTCDateKey(date); utcKey != dateKey {
		mock.ExpectGet(planKeyPrefix + utcKey).RedisNil()
	}
}

func expectScheduleRead(mock redismock.ClientMock, scheduleJson string) {
	if scheduleJson == "" {
		mock.ExpectGet(scheduleKey).RedisNil()
		return
	}
	mock.ExpectGet(scheduleKey).SetVal(scheduleJson)
}

func strPtr(s string) *string { return &s }

func mustDate(t *testing.T, dateKey string) time.Time {
	t.Helper()
	date, err := ParseDateKey(dateKey)
	require.NoError(t, err)
	return date
}

func TestService_Add_MaterializesScheduleFill(t *testing.T) {
	service, mock, resyncer := testServiceSetup(t, "push", "extra")
	tomorrow := mustDate(t, "2025-07-01") // tuesday

	expectPlanRead(t, mock, "2025-07-01", nil)
	expectScheduleRead(mock, `{"2":["push"]}`)
	// the schedule fill is materialized into the override together with
	// the added entry
	mock.ExpectSet(
		planKeyPrefix+"2025-07-01",
		`[{"workoutId":"push"},{"workoutId":"extra"}]`,
		0,
	).SetVal("OK")

	err := service.Add(context.Background(), tomorrow, "extra")
	require.NoError(t, err)
	assert.Equal(t, 1, resyncer.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Add_CapacityExceeded(t *testing.T) {
	service, mock, resyncer := testServiceSetup(t, "a", "b", "c", "d")
	tomorrow := mustDate(t, "2025-07-01")

	expectPlanRead(t, mock, "2025-07-01", strPtr(`["a","b","c"]`))
	expectScheduleRead(mock, "")

	err := service.Add(context.Background(), tomorrow, "d")
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// nothing was written, no resync fired
	assert.Equal(t, 0, resyncer.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Add_UnknownWorkoutRejected(t *testing.T) {
	service, mock, resyncer := testServiceSetup(t, "push")
	tomorrow := mustDate(t, "2025-07-01")

	// nothing is read or written: the catalog check comes first
	err := service.Add(context.Background(), tomorrow, "ghost")
	assert.ErrorIs(t, err, ErrUnknownWorkout)
	assert.Equal(t, 0, resyncer.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_AddWithDetails(t *testing.T) {
	service, mock, resyncer := testServiceSetup(t, "legs")
	// logging a past training: the override key holds full entry objects
	lastWeek := mustDate(t, "2025-06-23")

	expectPlanRead(t, mock, "2025-06-23", nil)
	expectScheduleRead(mock, "")
	mock.ExpectSet(
		planKeyPrefix+"2025-06-23",
		`[{"workoutId":"legs","completed":true,"durationMinutes":50}]`,
		0,
	).SetVal("OK")

	err := service.AddWithDetails(context.Background(), lastWeek, "legs", true, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, resyncer.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_AddWithDetails_DeletedWorkoutOnPastDate(t *testing.T) {
	// retroactive logging of a since-deleted workout: past dates are exempt
	// from the catalog check
	service, mock, resyncer := testServiceSetup(t)
	lastWeek := mustDate(t, "2025-06-23")

	expectPlanRead(t, mock, "2025-06-23", nil)
	expectScheduleRead(mock, "")
	mock.ExpectSet(
		planKeyPrefix+"2025-06-23",
		`[{"workoutId":"deleted-one","completed":true,"durationMinutes":30}]`,
		0,
	).SetVal("OK")

	err := service.AddWithDetails(context.Background(), lastWeek, "deleted-one", true, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, resyncer.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_RemoveAt(t *testing.T) {
	service, mock, _ := testServiceSetup(t, "a", "b")
	tomorrow := mustDate(t, "2025-07-01")

	expectPlanRead(t, mock, "2025-07-01", strPtr(`["a","b"]`))
	expectScheduleRead(mock, "")
	mock.ExpectSet(planKeyPrefix+"2025-07-01", `[{"workoutId":"b"}]`, 0).SetVal("OK")

	err := service.RemoveAt(context.Background(), tomorrow, 0)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_RemoveAt_LastEntryWritesPauseMarker(t *testing.T) {
	service, mock, _ := testServiceSetup(t, "a")
	tomorrow := mustDate(t, "2025-07-01")

	expectPlanRead(t, mock, "2025-07-01", strPtr(`["a"]`))
	expectScheduleRead(mock, "")
	// the empty day is persisted as "", not deleted: the pause marker
	// keeps shadowing the default schedule
	mock.ExpectSet(planKeyPrefix+"2025-07-01", "", 0).SetVal("OK")

	err := service.RemoveAt(context.Background(), tomorrow, 0)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_RemoveAt_OutOfBounds(t *testing.T) {
	service, mock, resyncer := testServiceSetup(t, "a")
	tomorrow := mustDate(t, "2025-07-01")

	expectPlanRead(t, mock, "2025-07-01", strPtr(`["a"]`))
	expectScheduleRead(mock, "")
	err := service.RemoveAt(context.Background(), tomorrow, 5)
	require.NoError(t, err)

	expectPlanRead(t, mock, "2025-07-01", strPtr(`["a"]`))
	expectScheduleRead(mock, "")
	err = service.RemoveAt(context.Background(), tomorrow, -1)
	require.NoError(t, err)

	assert.Equal(t, 0, resyncer.calls)
}

func TestService_UpdateAt(t *testing.T) {
	service, mock, resyncer := testServiceSetup(t, "a", "b")
	tomorrow := mustDate(t, "2025-07-01")

	expectPlanRead(t, mock, "2025-07-01", strPtr(`["a","b"]`))
	expectScheduleRead(mock, "")
	mock.ExpectSet(
		planKeyPrefix+"2025-07-01",
		`[{"workoutId":"a"},{"workoutId":"b","completed":true,"durationMinutes":45}]`,
		0,
	).SetVal("OK")

	completed := true
	duration := 45
	err := service.UpdateAt(context.Background(), tomorrow, 1, EntryPatch{
		Completed:       &completed,
		DurationMinutes: &duration,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resyncer.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Move(t *testing.T) {
	service, mock, resyncer := testServiceSetup(t, "w1", "w2")
	from := mustDate(t, "2025-07-01")
	to := mustDate(t, "2025-07-02")

	expectPlanRead(t, mock, "2025-07-01", strPtr(`["w1","w2"]`))
	expectScheduleRead(mock, "")
	expectPlanRead(t, mock, "2025-07-02", nil)
	expectScheduleRead(mock, "")

	// source first, then target
	mock.ExpectSet(planKeyPrefix+"2025-07-01", `[{"workoutId":"w2"}]`, 0).SetVal("OK")
	mock.ExpectSet(planKeyPrefix+"2025-07-02", `[{"workoutId":"w1"}]`, 0).SetVal("OK")

	err := service.Move(context.Background(), from, to, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, resyncer.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Move_TargetFull(t *testing.T) {
	service, mock, resyncer := testServiceSetup(t, "w1", "a", "b", "c")
	from := mustDate(t, "2025-07-01")
	to := mustDate(t, "2025-07-02")

	expectPlanRead(t, mock, "2025-07-01", strPtr(`["w1"]`))
	expectScheduleRead(mock, "")
	expectPlanRead(t, mock, "2025-07-02", strPtr(`["a","b","c"]`))
	expectScheduleRead(mock, "")

	// rejected before any write: the source day keeps its entry
	err := service.Move(context.Background(), from, to, "w1")
	assert.ErrorIs(t, err, ErrTargetFull)
	assert.Equal(t, 0, resyncer.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Move_MissingSourceEntry(t *testing.T) {
	service, mock, resyncer := testServiceSetup(t, "other")
	from := mustDate(t, "2025-07-01")
	to := mustDate(t, "2025-07-02")

	expectPlanRead(t, mock, "2025-07-01", strPtr(`["other"]`))
	expectScheduleRead(mock, "")

	err := service.Move(context.Background(), from, to, "w1")
	require.NoError(t, err)
	assert.Equal(t, 0, resyncer.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Entries_PastDateSkipsCatalog(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	catalog := &catalogStub{known: map[string]struct{}{"push": {}}}
	service := NewService(NewStore(db), catalog)
	service.now = testNow

	lastWeek := mustDate(t, "2025-06-23")
	expectPlanRead(t, mock, "2025-06-23", strPtr(`["push","ghost"]`))
	expectScheduleRead(mock, "")

	entries, err := service.Entries(context.Background(), lastWeek)
	require.NoError(t, err)

	// past overrides keep dangling ids and never consult the catalog
	require.Len(t, entries, 2)
	assert.Equal(t, "ghost", entries[1].WorkoutID)
	assert.Equal(t, 0, catalog.knownCalls)
}

func TestService_Entries_FiltersUnknownToday(t *testing.T) {
	service, mock, _ := testServiceSetup(t, "push")

	today := mustDate(t, "2025-06-30")
	expectPlanRead(t, mock, "2025-06-30", strPtr(`["push","ghost"]`))
	expectScheduleRead(mock, "")

	entries, err := service.Entries(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "push", entries[0].WorkoutID)
}
