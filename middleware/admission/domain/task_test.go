package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatus_Transitions(t *testing.T) {
	all := []TaskStatus{TaskQueued, TaskProcessing, TaskDone, TaskFailed}
	allowed := map[TaskStatus][]TaskStatus{
		TaskQueued:     {TaskProcessing},
		TaskProcessing: {TaskDone, TaskFailed},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	assert.False(t, TaskQueued.Terminal())
	assert.False(t, TaskProcessing.Terminal())
	assert.True(t, TaskDone.Terminal())
	assert.True(t, TaskFailed.Terminal())
}

func TestVerdict_RetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	v := Verdict{Outcome: OutcomeBlocked, BlockedUntil: now.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, v.RetryAfter(now))
	assert.Equal(t, time.Duration(0), v.RetryAfter(now.Add(2*time.Minute)))
}
