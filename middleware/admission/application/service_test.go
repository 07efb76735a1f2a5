package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"admission-gateway/middleware/admission/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_TenDistinctClientsYieldSevenAdmitsThreeQueued(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	var admitted int
	var positions []int
	for i := 0; i < 10; i++ {
		dec, err := svc.Decide(ctx, Request{
			Key:    domain.Key(fmt.Sprintf("10.0.0.%d", i)),
			Method: "POST",
			Path:   "/generate_quiz",
		}, at(float64(i)*0.1))
		require.NoError(t, err)

		switch dec.Outcome {
		case domain.OutcomeAdmit:
			admitted++
		case domain.OutcomeQueued:
			positions = append(positions, dec.Position)
			assert.Equal(t, domain.TaskQueued, dec.Task.Status)
			assert.NotEmpty(t, dec.Task.ID)
		default:
			t.Fatalf("unexpected outcome %s", dec.Outcome)
		}
	}

	assert.Equal(t, 7, admitted)
	assert.Equal(t, []int{1, 2, 3}, positions)
}

func TestService_BlockedClientIsNeverQueued(t *testing.T) {
	svc, q := newService(nil)
	ctx := context.Background()

	// esgota a capacidade global com outros clientes
	for i := 0; i < 7; i++ {
		_, err := svc.Decide(ctx, Request{Key: domain.Key(fmt.Sprintf("c%d", i))}, at(0))
		require.NoError(t, err)
	}

	var last domain.Decision
	for _, s := range []float64{1, 1.1, 1.2} {
		dec, err := svc.Decide(ctx, Request{Key: "abuser"}, at(s))
		require.NoError(t, err)
		last = dec
	}
	assert.Equal(t, domain.OutcomeBlocked, last.Outcome)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "only the two non-blocked requests were queued")
}

func TestService_CapturesBodyOnlyWhenQueued(t *testing.T) {
	svc, q := newService(nil)
	ctx := context.Background()

	reads := 0
	read := func() ([]byte, error) {
		reads++
		return []byte(`{"topic":"atoms","grade":7}`), nil
	}

	for i := 0; i < 8; i++ {
		_, err := svc.Decide(ctx, Request{Key: domain.Key(fmt.Sprintf("c%d", i)), Path: "/generate_notes", ReadBody: read}, at(0))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reads)

	task, ok, err := q.Dequeue(ctx, at(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"topic":"atoms","grade":7}`, string(task.Body))
	assert.Equal(t, "/generate_notes", task.Path)
}

func TestService_BodyCaptureError(t *testing.T) {
	svc, _ := newService(nil)
	svc.Throttle.Capacity = 0
	boom := errors.New("boom")

	_, err := svc.Decide(context.Background(), Request{
		Key:      "c",
		ReadBody: func() ([]byte, error) { return nil, boom },
	}, at(0))
	assert.ErrorIs(t, err, ErrBodyCapture)
	assert.ErrorIs(t, err, boom)
}

func TestService_StatusReportsLivePosition(t *testing.T) {
	svc, q := newService(nil)
	svc.Throttle.Capacity = 0
	ctx := context.Background()

	var ids []domain.TaskID
	for i := 0; i < 3; i++ {
		dec, err := svc.Decide(ctx, Request{Key: domain.Key(fmt.Sprintf("c%d", i))}, at(0))
		require.NoError(t, err)
		require.Equal(t, i+1, dec.Position)
		ids = append(ids, dec.Task.ID)
	}

	_, _, err := q.Dequeue(ctx, at(1))
	require.NoError(t, err)

	st, err := svc.Status(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, domain.TaskQueued, st.Task.Status)
	assert.Equal(t, 2, st.Position)

	st, err = svc.Status(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.TaskProcessing, st.Task.Status)
	assert.Zero(t, st.Position)

	_, err = svc.Status(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUnknownTask)
}
