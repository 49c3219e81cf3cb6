package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthsignal-service/internal/models"
	"healthsignal-service/internal/store"
)

type countingRunner struct {
	mu    sync.Mutex
	users []string
	err   error
}

func (c *countingRunner) Run(_ context.Context, userID string, day time.Time) (models.DailyRecord, error) {
	c.mu.Lock()
	c.users = append(c.users, userID)
	c.mu.Unlock()
	return models.DailyRecord{UserID: userID, Date: store.DateKey(day)}, c.err
}

func TestPool_ProcessesJobs(t *testing.T) {
	runner := &countingRunner{}
	p := NewPool(runner, 10)
	p.Start(3)
	defer p.Stop()

	for _, uid := range []string{"a", "b", "c"} {
		require.True(t, p.Submit(Job{UserID: uid, Day: testDay}))
	}

	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case res := <-p.Results():
			assert.NoError(t, res.Err)
			assert.Equal(t, res.Job.UserID, res.Record.UserID)
			assert.Equal(t, "2025-03-10", res.Record.Date)
			seen[res.Job.UserID] = true
		case <-timeout:
			t.Fatalf("only %d of 3 jobs finished", len(seen))
		}
	}
}

func TestPool_ReportsErrors(t *testing.T) {
	p := NewPool(&countingRunner{err: errors.New("boom")}, 1)
	p.Start(1)
	defer p.Stop()

	require.True(t, p.Submit(Job{UserID: "a", Day: testDay}))
	select {
	case res := <-p.Results():
		assert.EqualError(t, res.Err, "boom")
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
}

func TestPool_SubmitWhenFull(t *testing.T) {
	p := NewPool(&countingRunner{}, 1)

	assert.True(t, p.Submit(Job{UserID: "a"}))
	assert.False(t, p.Submit(Job{UserID: "b"}), "queue is full without workers")
	assert.Equal(t, 1, p.QueueLen())
	p.Stop()
}

func TestPool_WithOrchestrator(t *testing.T) {
	st := store.NewMemoryStore(time.UTC)
	seedDay(t, st, "u1")
	o := New(st, &fakeNarrator{out: models.Narrative{Summary: "bg"}}, nil)

	p := NewPool(o, 4)
	p.Start(2)
	defer p.Stop()

	require.True(t, p.Submit(Job{UserID: "u1", Day: testDay}))
	select {
	case res := <-p.Results():
		require.NoError(t, res.Err)
		assert.Equal(t, 17, res.Record.StressIndex)
		assert.Equal(t, "bg", res.Record.Narrative.Summary)
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
	assert.Equal(t, 1, st.AnalysisCount())
}
