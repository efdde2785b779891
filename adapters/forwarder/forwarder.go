// Package forwarder delivers leads to the CRM in the background.
//
// Forwarding never blocks or fails the request that produced the lead:
// each lead gets its own goroutine per sink, a fixed number of retries with
// linear backoff and an overall deadline. Failures are logged and counted.
package forwarder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"nexx-gsm/core/lead"
	"nexx-gsm/internal/errors"
	"nexx-gsm/internal/logging"
	"nexx-gsm/internal/metrics"
)

// Sender delivers one lead, once
type Sender interface {
	Name() string
	Send(ctx context.Context, l lead.Lead) error
}

// Recorder receives forwarding outcomes
type Recorder interface {
	Forward(sink, outcome string)
	ForwardDone(sink string, took time.Duration)
}

// Config configures retries
type Config struct {
	// Retries after the first attempt
	Retries int `json:"retries"`

	// RetryDelay is multiplied by the attempt number
	RetryDelay time.Duration `json:"retry_delay"`

	// Timeout bounds all attempts for one lead
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Retries:    2,
		RetryDelay: 500 * time.Millisecond,
		Timeout:    10 * time.Second,
	}
}

// Forwarder fans leads out to its senders
type Forwarder struct {
	config   *Config
	senders  []Sender
	recorder Recorder
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a forwarder. A nil recorder discards outcomes.
func New(config *Config, recorder Recorder, senders ...Sender) *Forwarder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Forwarder{
		config:   config,
		senders:  senders,
		recorder: recorder,
		logger:   logging.Named("forwarder"),
	}
}

// Enabled reports whether any sink is configured
func (f *Forwarder) Enabled() bool {
	return f != nil && len(f.senders) > 0
}

// Forward starts delivery of l to every sender and returns immediately.
func (f *Forwarder) Forward(l lead.Lead) {
	if !f.Enabled() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		for _, s := range f.senders {
			f.recorder.Forward(s.Name(), metrics.OutcomeDropped)
		}
		f.logger.Warn("forwarder closed, lead dropped", zap.String("lead_id", l.ID))
		return
	}

	for _, s := range f.senders {
		f.wg.Add(1)
		go func(s Sender) {
			defer f.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), f.config.Timeout)
			defer cancel()
			_ = f.Deliver(ctx, s, l)
		}(s)
	}
}

// Deliver sends l to s with retries and returns the last error.
func (f *Forwarder) Deliver(ctx context.Context, s Sender, l lead.Lead) error {
	start := time.Now()
	defer func() { f.recorder.ForwardDone(s.Name(), time.Since(start)) }()

	log := f.logger.With(zap.String("sink", s.Name()), zap.String("lead_id", l.ID), zap.String("source", l.Source))
	attempts := 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := s.Send(ctx, l)
		if err != nil && errors.IsType(err, errors.TypeConfig) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(&linearBackOff{step: f.config.RetryDelay}),
		backoff.WithMaxTries(uint(f.config.Retries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			f.recorder.Forward(s.Name(), metrics.OutcomeRetried)
			log.Debug("attempt failed", zap.Int("attempt", attempts), zap.Duration("next", next), zap.Error(err))
		}),
	)
	if err == nil {
		f.recorder.Forward(s.Name(), metrics.OutcomeDelivered)
		log.Info("lead forwarded", zap.Int("attempts", attempts))
		return nil
	}

	f.recorder.Forward(s.Name(), metrics.OutcomeFailed)
	err = fmt.Errorf("%s failed after %d attempts: %w", s.Name(), attempts, err)
	log.Warn("lead forwarding failed", zap.Error(err))
	return err
}

// linearBackOff waits step, 2*step, 3*step...
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.step * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Close stops accepting leads and waits for in-flight deliveries or ctx.
func (f *Forwarder) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopRecorder struct{}

func (nopRecorder) Forward(string, string)            {}
func (nopRecorder) ForwardDone(string, time.Duration) {}
