package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/models"
)

func newTestRegistry() *Registry {
	return NewRegistry(arbor.NewLogger())
}

func TestRegistry_CreateAndGet(t *testing.T) {
	registry := newTestRegistry()

	job, err := registry.Create(models.JobTypeOutline, &models.OutlineRequest{Title: "Q3 Review"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Nil(t, job.Result)
	assert.Empty(t, job.Error)

	got, found := registry.Get(job.ID)
	require.True(t, found)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobTypeOutline, got.Type)
}

func TestRegistry_GetUnknown(t *testing.T) {
	registry := newTestRegistry()

	_, found := registry.Get("does-not-exist")
	assert.False(t, found)
}

func TestRegistry_CreateRejectsUnknownType(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Create(models.JobType("video"), nil)
	assert.ErrorIs(t, err, ErrUnknownJobType)
}

func TestRegistry_CreateRerollsOnCollision(t *testing.T) {
	registry := newTestRegistry()
	ids := []string{"same", "same", "other"}
	registry.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := registry.Create(models.JobTypeImage, nil)
	require.NoError(t, err)
	second, err := registry.Create(models.JobTypeImage, nil)
	require.NoError(t, err)

	assert.Equal(t, "same", first.ID)
	assert.Equal(t, "other", second.ID)
}

func TestRegistry_LifecycleTransitions(t *testing.T) {
	registry := newTestRegistry()
	job, err := registry.Create(models.JobTypeImage, nil)
	require.NoError(t, err)

	// queued -> done skips running
	_, err = registry.Update(job.ID, models.JobStatusDone, &models.JobResult{ImageURL: "file:///x.png"}, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	running, err := registry.Update(job.ID, models.JobStatusRunning, nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, running.Status)
	assert.NotNil(t, running.StartedAt)

	done, err := registry.Update(job.ID, models.JobStatusDone, &models.JobResult{ImageURL: "file:///x.png"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, done.Status)
	assert.Equal(t, "file:///x.png", done.Result.ImageURL)
	assert.NotNil(t, done.FinishedAt)

	// Terminal states are final
	_, err = registry.Update(job.ID, models.JobStatusError, nil, "late failure")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = registry.Update(job.ID, models.JobStatusRunning, nil, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, _ := registry.Get(job.ID)
	assert.Equal(t, models.JobStatusDone, got.Status)
	assert.Empty(t, got.Error)
}

func TestRegistry_QueuedToError(t *testing.T) {
	registry := newTestRegistry()
	job, err := registry.Create(models.JobTypeDeck, nil)
	require.NoError(t, err)

	failed, err := registry.Update(job.ID, models.JobStatusError, nil, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", failed.Error)
	assert.Nil(t, failed.Result)
}

func TestRegistry_UpdateRejectsMismatchedOutcome(t *testing.T) {
	registry := newTestRegistry()
	job, err := registry.Create(models.JobTypeImage, nil)
	require.NoError(t, err)
	_, err = registry.Update(job.ID, models.JobStatusRunning, nil, "")
	require.NoError(t, err)

	_, err = registry.Update(job.ID, models.JobStatusDone, nil, "")
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = registry.Update(job.ID, models.JobStatusError, nil, "")
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = registry.Update(job.ID, models.JobStatusDone, &models.JobResult{ImageURL: "x"}, "also failed")
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = registry.Update(job.ID, models.JobStatusQueued, nil, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, _ := registry.Get(job.ID)
	assert.Equal(t, models.JobStatusRunning, got.Status)
}

func TestRegistry_UpdateUnknown(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Update("missing", models.JobStatusRunning, nil, "")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	registry := newTestRegistry()
	job, _ := registry.Create(models.JobTypeOutline, nil)
	_, _ = registry.Update(job.ID, models.JobStatusRunning, nil, "")
	_, err := registry.Update(job.ID, models.JobStatusDone, &models.JobResult{
		Slides: []models.Slide{{Title: "One", Bullets: []string{"a", "b"}}},
	}, "")
	require.NoError(t, err)

	first, _ := registry.Get(job.ID)
	first.Result.Slides[0].Title = "mutated"
	first.Status = models.JobStatusError

	second, _ := registry.Get(job.ID)
	assert.Equal(t, "One", second.Result.Slides[0].Title)
	assert.Equal(t, models.JobStatusDone, second.Status)

	// Repeated reads of a terminal job are identical
	third, _ := registry.Get(job.ID)
	assert.Equal(t, second, third)
}

func TestRegistry_ListAndStats(t *testing.T) {
	registry := newTestRegistry()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	registry.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	outline, _ := registry.Create(models.JobTypeOutline, nil)
	image, _ := registry.Create(models.JobTypeImage, nil)
	deck, _ := registry.Create(models.JobTypeDeck, nil)

	_, _ = registry.Update(image.ID, models.JobStatusRunning, nil, "")
	_, _ = registry.Update(deck.ID, models.JobStatusError, nil, "boom")

	all := registry.List(models.JobFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, []string{outline.ID, image.ID, deck.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	running := registry.List(models.JobFilter{Status: models.JobStatusRunning})
	require.Len(t, running, 1)
	assert.Equal(t, image.ID, running[0].ID)

	decks := registry.List(models.JobFilter{Type: models.JobTypeDeck})
	require.Len(t, decks, 1)

	stats := registry.Stats()
	assert.Equal(t, models.JobStats{Total: 3, Queued: 1, Running: 1, Error: 1}, stats)
}

func TestRegistry_PruneFinishedBefore(t *testing.T) {
	registry := newTestRegistry()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return now }

	old, _ := registry.Create(models.JobTypeImage, nil)
	_, _ = registry.Update(old.ID, models.JobStatusError, nil, "failed")

	stillQueued, _ := registry.Create(models.JobTypeImage, nil)

	now = now.Add(time.Hour)
	recent, _ := registry.Create(models.JobTypeImage, nil)
	_, _ = registry.Update(recent.ID, models.JobStatusError, nil, "failed")

	removed := registry.PruneFinishedBefore(now.Add(-30 * time.Minute))
	assert.Equal(t, 1, removed)

	_, found := registry.Get(old.ID)
	assert.False(t, found)
	_, found = registry.Get(stillQueued.ID)
	assert.True(t, found)
	_, found = registry.Get(recent.ID)
	assert.True(t, found)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := registry.Create(models.JobTypeOutline, nil)
			if !assert.NoError(t, err) {
				return
			}
			_, _ = registry.Update(job.ID, models.JobStatusRunning, nil, "")
			_, _ = registry.Get(job.ID)
			_, _ = registry.Update(job.ID, models.JobStatusDone, &models.JobResult{Slides: []models.Slide{{Title: "t"}}}, "")
			_ = registry.List(models.JobFilter{})
		}()
	}
	wg.Wait()

	stats := registry.Stats()
	assert.Equal(t, 50, stats.Total)
	assert.Equal(t, 50, stats.Done)
}
