package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexx-gsm/core/lead"
	"nexx-gsm/internal/errors"
)

func TestSend(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"acknowledged", http.StatusOK, `{"success":true}`, false},
		{"created", http.StatusCreated, `{"success":true,"id":"x"}`, false},
		{"not acknowledged", http.StatusOK, `{"success":false,"error":"dup"}`, true},
		{"plain text", http.StatusOK, `ok`, true},
		{"server error", http.StatusInternalServerError, `{"success":true}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := New(DefaultConfig(srv.URL)).Send(context.Background(), lead.Lead{Source: lead.SourceCalculator})
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.TypeForwarding), "err = %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSendPayloadAndSignature(t *testing.T) {
	var got lead.Lead
	var sig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sig = r.Header.Get("X-Signature")
		assert.Equal(t, "sha256="+Sign(body, "k"), sig)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.Secret = "k"
	l := lead.Lead{
		Source:         lead.SourceCalculator,
		Device:         lead.Device{Brand: "apple", Type: "phone", Model: "iPhone 14"},
		Issue:          "Baterie",
		EstimatedPrice: "165-297 lei",
	}
	require.NoError(t, New(cfg).Send(context.Background(), l))
	assert.Equal(t, "iPhone 14", got.Device.Model)
	assert.Equal(t, "165-297 lei", got.EstimatedPrice)
	assert.NotEmpty(t, sig)
}

func TestSendTruncatedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "64")
		w.Write([]byte(`{"success":`))
	}))
	defer srv.Close()

	err := New(DefaultConfig(srv.URL)).Send(context.Background(), lead.Lead{Source: lead.SourceCalculator})
	assert.True(t, errors.IsType(err, errors.TypeForwarding), "err = %v", err)
}

func TestSendUnconfigured(t *testing.T) {
	err := New(DefaultConfig("")).Send(context.Background(), lead.Lead{})
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}
