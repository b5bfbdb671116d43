package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"container-dispatch/core/models"
	"container-dispatch/core/repository"
)

func boolPtr(b bool) *bool { return &b }

func TestJobRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewJobRepository(db)
	ctx := context.Background()

	seedJob(t, db, "job-1", "J-100", 0)

	job, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "J-100", job.JobNumber)
	assert.Equal(t, "Acme", job.Customer)
	assert.Nil(t, job.AssignedTo)
	assert.Nil(t, job.Driver)
	assert.Nil(t, job.Proof)
	assert.False(t, job.IsCompleted)
	require.Len(t, job.Status, 1)
	assert.Equal(t, models.StageAccept, job.Status[0].Stage)
	assert.True(t, baseTime.Equal(job.Status[0].Timestamp))
	assert.True(t, baseTime.Equal(job.CreatedAt))
}

func TestJobRepository_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	_, err := repository.NewJobRepository(db).GetJob(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestJobRepository_DuplicateJobNumber(t *testing.T) {
	db := setupTestDB(t)
	seedJob(t, db, "job-1", "J-100", 0)

	dup := &models.Job{
		ID:        "job-2",
		JobNumber: "J-100",
		Status:    []models.StatusEvent{{Stage: models.StageAccept, Timestamp: baseTime}},
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	err := repository.NewJobRepository(db).CreateJob(context.Background(), dup)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestJobRepository_AppendStage(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewJobRepository(db)
	ctx := context.Background()
	seedJob(t, db, "job-1", "J-100", 0)

	at := baseTime.Add(time.Hour)
	err := repo.AppendStage(ctx, "job-1", models.StageAccept, models.StatusEvent{Stage: models.StageUplift, Timestamp: at}, false, "drv-1")
	require.NoError(t, err)

	// a second writer that observed accept loses
	err = repo.AppendStage(ctx, "job-1", models.StageAccept, models.StatusEvent{Stage: models.StageUplift, Timestamp: at}, false, "drv-1")
	assert.ErrorIs(t, err, repository.ErrStaleWrite)

	job, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, job.Status, 2)
	assert.Equal(t, models.StageUplift, job.CurrentStage())
	assert.True(t, at.Equal(job.UpdatedAt))

	events, err := repository.NewEventRepository(db).GetJobEvents(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Nil(t, events[0].FromStage)
	require.NotNil(t, events[1].FromStage)
	assert.Equal(t, models.StageAccept, *events[1].FromStage)
	assert.Equal(t, "drv-1", events[1].ActorID)
	assert.Equal(t, 1, events[1].Seq)
}

func TestJobRepository_CompletedJobRefusesWrites(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewJobRepository(db)
	ctx := context.Background()
	seedUser(t, db, "drv-1", models.RoleDriver)
	seedJob(t, db, "job-1", "J-100", 0)

	stages := []models.Stage{models.StageUplift, models.StageOffload, models.StageDone}
	prev := models.StageAccept
	for i, stage := range stages {
		ev := models.StatusEvent{Stage: stage, Timestamp: baseTime.Add(time.Duration(i+1) * time.Minute)}
		require.NoError(t, repo.AppendStage(ctx, "job-1", prev, ev, stage == models.StageDone, "adm"))
		prev = stage
	}

	err := repo.AppendStage(ctx, "job-1", models.StageDone, models.StatusEvent{Stage: models.StageDone, Timestamp: baseTime}, true, "adm")
	assert.ErrorIs(t, err, repository.ErrStaleWrite)

	err = repo.AssignDriver(ctx, "job-1", "drv-1", baseTime)
	assert.ErrorIs(t, err, repository.ErrStaleWrite)

	err = repo.UpdateDetails(ctx, "job-1", models.JobDetails{JobNumber: "J-101"}, baseTime)
	assert.ErrorIs(t, err, repository.ErrStaleWrite)

	job, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, job.IsCompleted)
	assert.Nil(t, job.AssignedTo)
	assert.Equal(t, "J-100", job.JobNumber)
	assert.Len(t, job.Status, 4)
}

func TestJobRepository_CompleteWithProof(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewJobRepository(db)
	ctx := context.Background()
	seedJob(t, db, "job-1", "J-100", 0)

	proof := models.Proof{Notes: "ok", Images: []string{"img1"}, SubmittedAt: baseTime.Add(time.Hour)}
	done := models.StatusEvent{Stage: models.StageDone, Timestamp: baseTime.Add(time.Hour)}

	// not at offload yet: nothing is written
	err := repo.CompleteWithProof(ctx, "job-1", models.StageOffload, proof, done, "drv-1")
	assert.ErrorIs(t, err, repository.ErrStaleWrite)
	job, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, job.Proof)
	assert.Len(t, job.Status, 1)

	require.NoError(t, repo.AppendStage(ctx, "job-1", models.StageAccept, models.StatusEvent{Stage: models.StageUplift, Timestamp: baseTime}, false, "drv-1"))
	require.NoError(t, repo.AppendStage(ctx, "job-1", models.StageUplift, models.StatusEvent{Stage: models.StageOffload, Timestamp: baseTime}, false, "drv-1"))
	require.NoError(t, repo.CompleteWithProof(ctx, "job-1", models.StageOffload, proof, done, "drv-1"))

	job, err = repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, job.IsCompleted)
	require.NotNil(t, job.Proof)
	assert.Equal(t, "ok", job.Proof.Notes)
	assert.Equal(t, []string{"img1"}, job.Proof.Images)
	assert.Equal(t, models.StageDone, job.CurrentStage())
}

func TestJobRepository_AssignResolvesDriver(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewJobRepository(db)
	ctx := context.Background()
	seedUser(t, db, "drv-1", models.RoleDriver)
	seedJob(t, db, "job-1", "J-100", 0)

	require.NoError(t, repo.AssignDriver(ctx, "job-1", "drv-1", baseTime.Add(time.Minute)))

	job, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, job.AssignedTo)
	assert.Equal(t, "drv-1", *job.AssignedTo)
	require.NotNil(t, job.Driver)
	assert.Equal(t, "drv-1", job.Driver.Username)

	assert.ErrorIs(t, repo.AssignDriver(ctx, "missing", "drv-1", baseTime), repository.ErrStaleWrite)
}

// completeJob walks a job from accept to done.
func completeJob(t *testing.T, repo *repository.JobRepository, id string) {
	t.Helper()
	prev := models.StageAccept
	for i, stage := range []models.Stage{models.StageUplift, models.StageOffload, models.StageDone} {
		ev := models.StatusEvent{Stage: stage, Timestamp: baseTime.Add(time.Duration(i+1) * time.Minute)}
		require.NoError(t, repo.AppendStage(context.Background(), id, prev, ev, stage == models.StageDone, "adm"))
		prev = stage
	}
}

func TestJobRepository_DeleteUserReleasesActiveJobs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "drv-1", models.RoleDriver)
	seedJob(t, db, "job-1", "J-100", 0)
	repo := repository.NewJobRepository(db)
	require.NoError(t, repo.AssignDriver(ctx, "job-1", "drv-1", baseTime))

	require.NoError(t, repository.NewUserRepository(db).DeleteUser(ctx, "drv-1"))

	job, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, job.AssignedTo)
}

func TestJobRepository_DeleteUserKeepsCompletedHistory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "drv-1", models.RoleDriver)
	seedJob(t, db, "job-1", "J-100", 0)
	seedJob(t, db, "job-2", "J-200", time.Minute)
	repo := repository.NewJobRepository(db)
	require.NoError(t, repo.AssignDriver(ctx, "job-1", "drv-1", baseTime))
	require.NoError(t, repo.AssignDriver(ctx, "job-2", "drv-1", baseTime))
	completeJob(t, repo, "job-1")

	err := repository.NewUserRepository(db).DeleteUser(ctx, "drv-1")
	assert.ErrorIs(t, err, repository.ErrInUse)

	// the refused delete changes nothing
	done, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, done.AssignedTo)
	assert.Equal(t, "drv-1", *done.AssignedTo)
	active, err := repo.GetJob(ctx, "job-2")
	require.NoError(t, err)
	require.NotNil(t, active.AssignedTo)
	assert.Equal(t, "drv-1", *active.AssignedTo)

	_, err = repository.NewUserRepository(db).GetUser(ctx, "drv-1")
	assert.NoError(t, err)
}

func TestJobRepository_UpdateUserReleasesActiveJobs(t *testing.T) {
	tests := []struct {
		name   string
		change func(u *models.User)
	}{
		{name: "deactivated", change: func(u *models.User) { u.IsActive = false }},
		{name: "promoted", change: func(u *models.User) { u.Role = models.RoleDispatcher }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			ctx := context.Background()
			user := seedUser(t, db, "drv-1", models.RoleDriver)
			seedJob(t, db, "job-1", "J-100", 0)
			seedJob(t, db, "job-2", "J-200", time.Minute)
			repo := repository.NewJobRepository(db)
			require.NoError(t, repo.AssignDriver(ctx, "job-1", "drv-1", baseTime))
			require.NoError(t, repo.AssignDriver(ctx, "job-2", "drv-1", baseTime))
			completeJob(t, repo, "job-1")

			tt.change(user)
			require.NoError(t, repository.NewUserRepository(db).UpdateUser(ctx, user))

			done, err := repo.GetJob(ctx, "job-1")
			require.NoError(t, err)
			require.NotNil(t, done.AssignedTo)
			assert.Equal(t, "drv-1", *done.AssignedTo)

			active, err := repo.GetJob(ctx, "job-2")
			require.NoError(t, err)
			assert.Nil(t, active.AssignedTo)
		})
	}
}

func TestJobRepository_UpdateUserKeepsActiveDriverJobs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "drv-1", models.RoleDriver)
	seedJob(t, db, "job-1", "J-100", 0)
	repo := repository.NewJobRepository(db)
	require.NoError(t, repo.AssignDriver(ctx, "job-1", "drv-1", baseTime))

	user.Email = "new@example.com"
	require.NoError(t, repository.NewUserRepository(db).UpdateUser(ctx, user))

	job, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, job.AssignedTo)
	assert.Equal(t, "drv-1", *job.AssignedTo)
}

func TestJobRepository_JobsFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewJobRepository(db)
	ctx := context.Background()
	seedUser(t, db, "drv-1", models.RoleDriver)
	seedUser(t, db, "drv-2", models.RoleDriver)

	seedJob(t, db, "job-1", "J-1", 1*time.Minute)
	seedJob(t, db, "job-2", "J-2", 2*time.Minute)
	seedJob(t, db, "job-3", "J-3", 3*time.Minute)
	require.NoError(t, repo.AssignDriver(ctx, "job-1", "drv-1", baseTime))
	require.NoError(t, repo.AssignDriver(ctx, "job-2", "drv-2", baseTime))
	require.NoError(t, repo.AppendStage(ctx, "job-1", models.StageAccept, models.StatusEvent{Stage: models.StageUplift, Timestamp: baseTime}, false, "drv-1"))

	collect := func(f repository.JobFilter) []string {
		var ids []string
		for job, err := range repo.Jobs(ctx, f) {
			require.NoError(t, err)
			ids = append(ids, job.ID)
		}
		return ids
	}

	assert.Equal(t, []string{"job-3", "job-2", "job-1"}, collect(repository.JobFilter{}))
	assert.Equal(t, []string{"job-1"}, collect(repository.JobFilter{AssignedTo: "drv-1", Completed: boolPtr(false)}))
	assert.Empty(t, collect(repository.JobFilter{AssignedTo: "drv-1", Completed: boolPtr(true)}))
	assert.Equal(t, []string{"job-3"}, collect(repository.JobFilter{Unassigned: true}))

	from := baseTime.Add(2 * time.Minute)
	assert.Equal(t, []string{"job-3", "job-2"}, collect(repository.JobFilter{CreatedFrom: &from}))
}

func TestJobRepository_JobsPagesAndRestarts(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewJobRepository(db)
	ctx := context.Background()

	const n = 230
	for i := 0; i < n; i++ {
		seedJob(t, db, fmt.Sprintf("job-%03d", i), fmt.Sprintf("J-%03d", i), time.Duration(i)*time.Second)
	}

	seq := repo.Jobs(ctx, repository.JobFilter{Completed: boolPtr(false)})
	for run := 0; run < 2; run++ {
		count := 0
		var prev *models.Job
		for job, err := range seq {
			require.NoError(t, err)
			require.Len(t, job.Status, 1)
			if prev != nil {
				assert.True(t, job.CreatedAt.Before(prev.CreatedAt))
			}
			prev = job
			count++
		}
		assert.Equal(t, n, count)
	}

	// early break releases the connection
	for range seq {
		break
	}
	_, err := repo.GetJob(ctx, "job-000")
	require.NoError(t, err)
}

func TestJobRepository_UpdateDetailsAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewJobRepository(db)
	ctx := context.Background()
	seedJob(t, db, "job-1", "J-1", 0)
	seedJob(t, db, "job-2", "J-2", time.Minute)

	err := repo.UpdateDetails(ctx, "job-1", models.JobDetails{JobNumber: "J-2"}, baseTime)
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, repo.UpdateDetails(ctx, "job-1", models.JobDetails{JobNumber: "J-1", Customer: "Globex", DangerousGoods: true}, baseTime.Add(time.Hour)))
	job, err := repo.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "Globex", job.Customer)
	assert.True(t, job.DangerousGoods)
	assert.Len(t, job.Status, 1)

	total, completed, err := repo.CountJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, completed)

	require.NoError(t, repo.DeleteJob(ctx, "job-1"))
	assert.ErrorIs(t, repo.DeleteJob(ctx, "job-1"), repository.ErrNotFound)
	_, err = repo.GetJob(ctx, "job-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
