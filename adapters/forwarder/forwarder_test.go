package forwarder

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexx-gsm/core/lead"
	"nexx-gsm/internal/errors"
	"nexx-gsm/internal/metrics"
)

type flakySender struct {
	failures int32
	calls    atomic.Int32
	block    chan struct{}
}

func (s *flakySender) Name() string { return "flaky" }

func (s *flakySender) Send(ctx context.Context, l lead.Lead) error {
	n := s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n <= s.failures {
		return errors.Forwarding("down", nil)
	}
	return nil
}

type recorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorder) Forward(sink, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorder) ForwardDone(string, time.Duration) {}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func fastConfig() *Config {
	return &Config{Retries: 2, RetryDelay: time.Millisecond, Timeout: time.Second}
}

func TestDeliverRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		wantCalls int32
		wantErr   bool
		outcomes  []string
	}{
		{"first try", 0, 1, false, []string{metrics.OutcomeDelivered}},
		{"second try", 1, 2, false, []string{metrics.OutcomeRetried, metrics.OutcomeDelivered}},
		{"last try", 2, 3, false, []string{metrics.OutcomeRetried, metrics.OutcomeRetried, metrics.OutcomeDelivered}},
		{"exhausted", 5, 3, true, []string{metrics.OutcomeRetried, metrics.OutcomeRetried, metrics.OutcomeFailed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &flakySender{failures: tt.failures}
			rec := &recorder{}
			f := New(fastConfig(), rec, s)

			err := f.Deliver(context.Background(), s, lead.Lead{ID: "l1"})
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
			assert.Equal(t, tt.wantCalls, s.calls.Load())
			assert.Equal(t, tt.outcomes, rec.snapshot())
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.TypeForwarding))
			}
		})
	}
}

func TestDeliverStopsAtDeadline(t *testing.T) {
	s := &flakySender{failures: 100}
	f := New(&Config{Retries: 2, RetryDelay: time.Hour, Timeout: time.Second}, nil, s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := f.Deliver(ctx, s, lead.Lead{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), s.calls.Load())
}

type unconfiguredSender struct{ calls atomic.Int32 }

func (s *unconfiguredSender) Name() string { return "webhook" }

func (s *unconfiguredSender) Send(context.Context, lead.Lead) error {
	s.calls.Add(1)
	return errors.Config("webhook endpoint not configured", nil)
}

func TestDeliverDoesNotRetryConfigErrors(t *testing.T) {
	s := &unconfiguredSender{}
	rec := &recorder{}
	err := New(fastConfig(), rec, s).Deliver(context.Background(), s, lead.Lead{})
	assert.True(t, errors.IsType(err, errors.TypeConfig), "err = %v", err)
	assert.Equal(t, int32(1), s.calls.Load())
	assert.Equal(t, []string{metrics.OutcomeFailed}, rec.snapshot())
}

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{step: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}

func TestForwardIsAsyncAndCloseWaits(t *testing.T) {
	s := &flakySender{block: make(chan struct{})}
	rec := &recorder{}
	f := New(fastConfig(), rec, s)

	f.Forward(lead.Lead{ID: "l2"})
	assert.Empty(t, rec.snapshot())

	closed := make(chan error, 1)
	go func() { closed <- f.Close(context.Background()) }()

	select {
	case <-closed:
		t.Fatal("Close returned while a delivery was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(s.block)
	require.NoError(t, <-closed)
	assert.Equal(t, []string{metrics.OutcomeDelivered}, rec.snapshot())

	f.Forward(lead.Lead{ID: "l3"})
	assert.Equal(t, []string{metrics.OutcomeDelivered, metrics.OutcomeDropped}, rec.snapshot())
}

func TestForwardWithoutSenders(t *testing.T) {
	f := New(nil, nil)
	assert.False(t, f.Enabled())
	f.Forward(lead.Lead{})
	require.NoError(t, f.Close(context.Background()))
}
