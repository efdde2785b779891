package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"nexx-gsm/internal/errors"
	"nexx-gsm/internal/logging"
)

// Loader fetches the raw catalog document
type Loader interface {
	Load(ctx context.Context) ([]DeviceRecord, error)
}

// Decode reads a catalog document: either a bare JSON array of records or
// an object with a "devices" array.
func Decode(r io.Reader) ([]DeviceRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty catalog document")
	}

	if data[0] == '{' {
		var wrapped struct {
			Devices []DeviceRecord `json:"devices"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return wrapped.Devices, nil
	}

	var devices []DeviceRecord
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return devices, nil
}

// FileLoader reads the catalog from disk
type FileLoader struct {
	Path string
}

// Load implements Loader
func (l FileLoader) Load(ctx context.Context) ([]DeviceRecord, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, errors.DataUnavailable("open catalog", err).WithContext("path", l.Path)
	}
	defer f.Close()

	devices, err := Decode(f)
	if err != nil {
		return nil, errors.DataUnavailable("read catalog", err).WithContext("path", l.Path)
	}
	return devices, nil
}

// HTTPLoader fetches the catalog with a GET request
type HTTPLoader struct {
	URL    string
	Client *http.Client
}

// Load implements Loader
func (l HTTPLoader) Load(ctx context.Context) ([]DeviceRecord, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, errors.DataUnavailable("build catalog request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.DataUnavailable("fetch catalog", err).WithContext("url", l.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.DataUnavailable(fmt.Sprintf("catalog returned status %d", resp.StatusCode), nil).
			WithContext("url", l.URL)
	}

	devices, err := Decode(resp.Body)
	if err != nil {
		return nil, errors.DataUnavailable("read catalog", err).WithContext("url", l.URL)
	}
	return devices, nil
}

// Source owns the process-wide catalog. Until a store is installed every
// read reports DATA_UNAVAILABLE; once installed the store never changes
// except through another successful load.
type Source struct {
	loader Loader
	store  atomic.Pointer[Store]
	logger *zap.Logger

	// OnLoad, when set, is called with the device count after each install
	OnLoad func(devices int)
	// OnFail, when set, is called after each failed load attempt
	OnFail func()
}

// NewSource creates a Source backed by loader
func NewSource(loader Loader) *Source {
	return &Source{
		loader: loader,
		logger: logging.Named("catalog"),
	}
}

// Load performs one load attempt and installs the result.
func (s *Source) Load(ctx context.Context) error {
	if s.loader == nil {
		return errors.DataUnavailable("no catalog loader configured", nil)
	}

	start := time.Now()
	devices, err := s.loader.Load(ctx)
	if err != nil {
		if s.OnFail != nil {
			s.OnFail()
		}
		return err
	}
	store := NewStore(devices)
	s.Install(store)
	s.logger.Info("catalog loaded",
		zap.Int("devices", store.Len()),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Install publishes store to readers
func (s *Source) Install(store *Store) {
	s.store.Store(store)
	if s.OnLoad != nil {
		s.OnLoad(store.Len())
	}
}

// Run retries Load every interval until it succeeds or ctx is done.
func (s *Source) Run(ctx context.Context, timeout, interval time.Duration) {
	attempt := 0
	_, _ = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		loadCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return struct{}{}, s.Load(loadCtx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("catalog load failed, category pricing only",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", next),
				zap.Error(err))
		}),
	)
}

// Ready reports whether a store has been installed
func (s *Source) Ready() bool {
	return s.store.Load() != nil
}

// Store returns the installed store or a DATA_UNAVAILABLE error
func (s *Source) Store() (*Store, error) {
	st := s.store.Load()
	if st == nil {
		return nil, errors.DataUnavailable("device catalog is not loaded yet", nil)
	}
	return st, nil
}
