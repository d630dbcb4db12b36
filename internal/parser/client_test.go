package parser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tripcraft/tripcraft/internal/domain"
)

func newParseServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/parse", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientParse(t *testing.T) {
	srv := newParseServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req parseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Message != "add the Louvre to day 2" {
			t.Errorf("message = %q", req.Message)
		}
		json.NewEncoder(w).Encode(parseResponse{
			Intent:     "add_activity",
			Entities:   map[string]any{"poi": "Louvre", "day": "2"},
			Confidence: 0.85,
		})
	})

	client, err := NewClient(ClientConfig{
		BaseURL:        srv.URL,
		ConnectTimeout: time.Second,
		RequestTimeout: time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	parsed, err := client.Parse(context.Background(), "add the Louvre to day 2", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Intent != "add_activity" || parsed.Confidence != 0.85 {
		t.Errorf("parsed = %+v", parsed)
	}
	// The command is lowered locally, never trusted from the wire.
	if parsed.Command.Action != domain.ActionAdd || parsed.Command.Day == nil || *parsed.Command.Day != 2 {
		t.Errorf("command = %+v", parsed.Command)
	}
	if parsed.HumanPreview == "" {
		t.Error("preview not filled in when the service omits it")
	}
}

func TestClientParseServerErrorIsUnavailable(t *testing.T) {
	srv := newParseServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	})

	client, err := NewClient(ClientConfig{
		BaseURL:        srv.URL,
		ConnectTimeout: time.Second,
		RequestTimeout: time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Parse(context.Background(), "add the Louvre", nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestNewClientFailsWhenServiceIsDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewClient(ClientConfig{
		BaseURL:        srv.URL,
		ConnectTimeout: 200 * time.Millisecond,
		RequestTimeout: time.Second,
	}, nil)
	if err == nil {
		t.Error("NewClient succeeded against a dead endpoint")
	}
}
