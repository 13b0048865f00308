package genai

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apperrors "github.com/garyellow/tis-sync-go/internal/errors"
)

func TestEmbedRequiresAPIKey(t *testing.T) {
	t.Parallel()
	client := NewEmbeddingClient("")
	_, err := client.Embed(context.Background(), "some text")
	if !errors.Is(err, apperrors.ErrEmbeddingUnavailable) {
		t.Errorf("Embed() error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	t.Parallel()
	client := NewEmbeddingClient("test-key")
	_, err := client.Embed(context.Background(), "   \n  ")
	if err == nil {
		t.Fatal("Embed() error = nil, want validation error")
	}
	var valErr *apperrors.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Embed() error = %T, want *apperrors.ValidationError", err)
	}
}

func TestEmbedNormalizesVector(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"embedding": map[string]any{"values": []float32{3, 4}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewEmbeddingClient("test-key").WithBaseURL(srv.URL)
	vec, err := client.Embed(context.Background(), "課程文字")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("len(vec) = %d, want 2", len(vec))
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("vector norm^2 = %v, want 1.0", norm)
	}
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Errorf("vec = %v, want [0.6 0.8]", vec)
	}
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		resp := map[string]any{
			"embedding": map[string]any{"values": []float32{1, 0}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewEmbeddingClient("test-key").WithBaseURL(srv.URL)
	vec, err := client.Embed(context.Background(), "retry me")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("len(vec) = %d, want 2", len(vec))
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("handler calls = %d, want 2", got)
	}
}

func TestEmbedDoesNotRetryAPIErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		resp := map[string]any{
			"error": map[string]any{
				"code":    400,
				"message": "invalid input",
				"status":  "INVALID_ARGUMENT",
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewEmbeddingClient("test-key").WithBaseURL(srv.URL)
	if _, err := client.Embed(context.Background(), "bad input"); err == nil {
		t.Fatal("Embed() error = nil, want API error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("handler calls = %d, want 1 (no retry on 400)", got)
	}
}

func TestIsConfigured(t *testing.T) {
	t.Parallel()
	if NewEmbeddingClient("").IsConfigured() {
		t.Error("IsConfigured() = true without key")
	}
	if !NewEmbeddingClient("key").IsConfigured() {
		t.Error("IsConfigured() = false with key")
	}
}
