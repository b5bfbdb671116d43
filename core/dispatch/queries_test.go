package dispatch_test

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"container-dispatch/core/dispatch"
	"container-dispatch/core/models"
)

func ids(jobs []*models.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.JobNumber)
	}
	return out
}

func TestListActiveAndCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j1 := f.createJob(t, "J-1")
	j2 := f.createJob(t, "J-2")
	f.createJob(t, "J-3")
	_, err := f.svc.AssignDriver(ctx, dispatcher, j1.ID, driver1.UserID)
	require.NoError(t, err)
	_, err = f.svc.AssignDriver(ctx, dispatcher, j2.ID, driver2.UserID)
	require.NoError(t, err)
	f.advanceTo(t, j1.ID, models.StageDone)

	assert.Equal(t, []string{"J-3", "J-2"}, ids(collect(t, f.svc.ListActiveJobs(ctx, dispatcher))))
	assert.Equal(t, []string{"J-1"}, ids(collect(t, f.svc.ListCompletedJobs(ctx, admin))))

	// drivers only see their own work
	assert.Empty(t, collect(t, f.svc.ListActiveJobs(ctx, driver1)))
	assert.Equal(t, []string{"J-1"}, ids(collect(t, f.svc.ListCompletedJobs(ctx, driver1))))
	assert.Equal(t, []string{"J-2"}, ids(collect(t, f.svc.ListActiveJobs(ctx, driver2))))
	assert.Empty(t, collect(t, f.svc.ListCompletedJobs(ctx, driver2)))

	seq, err := f.svc.ListUnassigned(ctx, dispatcher)
	require.NoError(t, err)
	assert.Equal(t, []string{"J-3"}, ids(collect(t, seq)))

	_, err = f.svc.ListUnassigned(ctx, driver1)
	assert.ErrorIs(t, err, dispatch.ErrForbidden)
}

func TestListJobsForDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, n := range []string{"J-1", "J-2", "J-3", "J-4"} {
		job := f.createJob(t, n)
		driver := driver1
		if i == 3 {
			driver = driver2
		}
		_, err := f.svc.AssignDriver(ctx, dispatcher, job.ID, driver.UserID)
		require.NoError(t, err)
		if i == 0 {
			f.advanceTo(t, job.ID, models.StageDone)
		}
	}

	seq, err := f.svc.ListJobsForDriver(ctx, driver1, driver1.UserID, false)
	require.NoError(t, err)
	active := collect(t, seq)
	assert.Equal(t, []string{"J-3", "J-2"}, ids(active))
	for _, job := range active {
		assert.True(t, job.IsAssignedTo(driver1.UserID))
		assert.False(t, job.IsCompleted)
	}

	seq, err = f.svc.ListJobsForDriver(ctx, dispatcher, driver1.UserID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"J-1"}, ids(collect(t, seq)))

	_, err = f.svc.ListJobsForDriver(ctx, driver2, driver1.UserID, false)
	assert.ErrorIs(t, err, dispatch.ErrForbidden)
}

func TestListsAreRestartable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createJob(t, "J-1")

	seq := f.svc.ListActiveJobs(ctx, admin)
	assert.Len(t, collect(t, seq), 1)

	f.createJob(t, "J-2")
	assert.Len(t, collect(t, seq), 2, "a second run sees fresh data")
}

func TestListCompletedInRange(t *testing.T) {
	loc, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)
	f := newFixture(t, dispatch.WithLocation(loc))
	ctx := context.Background()

	complete := func(number string, at time.Time) {
		job := f.createJob(t, number)
		_, err := f.svc.AssignDriver(ctx, dispatcher, job.ID, driver1.UserID)
		require.NoError(t, err)
		f.advanceTo(t, job.ID, models.StageOffload)
		f.clock.Set(at)
		_, err = f.svc.AdvanceStage(ctx, driver1, job.ID, models.StageDone)
		require.NoError(t, err)
	}

	// 2026-03-10 in Auckland (UTC+13) runs from 2026-03-09T11:00Z to 2026-03-10T10:59:59Z
	complete("J-before", time.Date(2026, 3, 9, 10, 59, 0, 0, time.UTC))
	complete("J-start", time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC))
	complete("J-end", time.Date(2026, 3, 10, 10, 59, 59, 0, time.UTC))
	complete("J-after", time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC))
	f.createJob(t, "J-open")

	day, err := f.svc.ParseDate("2026-03-10")
	require.NoError(t, err)

	seq, err := f.svc.ListCompletedOnDate(ctx, admin, day)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"J-start", "J-end"}, ids(collect(t, seq)))

	from, err := f.svc.ParseDate("2026-03-09")
	require.NoError(t, err)
	seq, err = f.svc.ListCompletedInRange(ctx, dispatcher, from, day)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"J-before", "J-start", "J-end"}, ids(collect(t, seq)))

	_, err = f.svc.ListCompletedInRange(ctx, admin, day, from)
	assert.ErrorIs(t, err, dispatch.ErrInvalidRange)

	_, err = f.svc.ListCompletedInRange(ctx, driver1, from, day)
	assert.ErrorIs(t, err, dispatch.ErrForbidden)

	_, err = f.svc.ParseDate("10/03/2026")
	assert.ErrorIs(t, err, dispatch.ErrInvalidRange)
}

func TestJobsCreatedTodayAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC))
	old := f.createJob(t, "J-old")
	f.clock.Set(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	f.createJob(t, "J-new")

	_, err := f.svc.AssignDriver(ctx, dispatcher, old.ID, driver1.UserID)
	require.NoError(t, err)
	f.advanceTo(t, old.ID, models.StageDone)

	seq, err := f.svc.JobsCreatedToday(ctx, dispatcher)
	require.NoError(t, err)
	assert.Equal(t, []string{"J-new"}, ids(collect(t, seq)))

	summary, err := f.svc.Summary(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, dispatch.Summary{Total: 2, Completed: 1, Active: 1}, summary)

	_, err = f.svc.Summary(ctx, driver1)
	assert.ErrorIs(t, err, dispatch.ErrForbidden)
}
