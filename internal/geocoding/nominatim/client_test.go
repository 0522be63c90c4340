package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Reverse_Success(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "WITW-Events/1.0 (ops@example.com)") {
			t.Errorf("unexpected User-Agent: %s", ua)
		}
		query := r.URL.Query()
		if query.Get("lat") != "40.416900" || query.Get("lon") != "-3.703500" {
			t.Errorf("unexpected coordinates: %s,%s", query.Get("lat"), query.Get("lon"))
		}
		if query.Get("format") != "jsonv2" {
			t.Errorf("unexpected format: %s", query.Get("format"))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ReverseResult{
			PlaceID:     987,
			DisplayName: "Puerta del Sol, Madrid, España",
			Address:     Address{City: "Madrid", Country: "España", CountryCode: "es"},
		})
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL+"/", "ops@example.com", WithRateLimit(100))
	result, err := client.Reverse(context.Background(), 40.4169, -3.7035)
	if err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}
	if result.DisplayName != "Puerta del Sol, Madrid, España" {
		t.Errorf("unexpected DisplayName: %s", result.DisplayName)
	}
	if result.Address.City != "Madrid" {
		t.Errorf("unexpected City: %s", result.Address.City)
	}
}

func TestClient_Reverse_InvalidCoordinates(t *testing.T) {
	client := NewClient(DefaultBaseURL, "")

	if _, err := client.Reverse(context.Background(), 91.0, 0.0); err == nil || !strings.Contains(err.Error(), "invalid latitude") {
		t.Fatalf("expected invalid latitude error, got %v", err)
	}
	if _, err := client.Reverse(context.Background(), 0.0, -181.0); err == nil || !strings.Contains(err.Error(), "invalid longitude") {
		t.Fatalf("expected invalid longitude error, got %v", err)
	}
}

func TestClient_NoRetryByDefault(t *testing.T) {
	var attempts atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, "", WithRateLimit(100))
	_, err := client.Reverse(context.Background(), 1, 1)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 status error, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestClient_Retry_ServerError(t *testing.T) {
	var attempts atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(ReverseResult{DisplayName: "ok"})
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, "", WithRateLimit(100), WithRetries(2, time.Millisecond))
	result, err := client.Reverse(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Reverse failed after retry: %v", err)
	}
	if result.DisplayName != "ok" || attempts.Load() != 2 {
		t.Errorf("expected success on attempt 2, got %q after %d", result.DisplayName, attempts.Load())
	}
}

func TestClient_Retry_MaxRetries(t *testing.T) {
	var attempts atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, "", WithRateLimit(100), WithRetries(2, time.Millisecond))
	if _, err := client.Reverse(context.Background(), 1, 1); err == nil {
		t.Fatal("expected error after max retries, got nil")
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, "", WithRateLimit(100), WithRetries(2, time.Millisecond))
	if _, err := client.Reverse(context.Background(), 1, 1); err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestClient_ReadTimeout(t *testing.T) {
	release := make(chan struct{})
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer mockServer.Close()
	defer close(release)

	client := NewClient(mockServer.URL, "", WithRateLimit(100), WithTimeouts(50*time.Millisecond, 50*time.Millisecond))
	start := time.Now()
	if _, err := client.Reverse(context.Background(), 1, 1); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestClient_RateLimit(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ReverseResult{DisplayName: "x"})
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, "", WithRateLimit(10))
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.Reverse(context.Background(), 1, 1); err != nil {
			t.Fatalf("Reverse failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("rate limiting not applied, 3 requests took %v", elapsed)
	}
}
