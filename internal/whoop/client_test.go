package whoop

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dcrowell/homeboard/internal/upstream"
)

func testCaller() *upstream.Caller {
	return upstream.NewCaller("whoop", 2*time.Second, 1, time.Millisecond, time.Millisecond)
}

// whoopStub serves the token, cycles, recovery, and sleeps routes and counts
// token grants so tests can assert on caching.
type whoopStub struct {
	t           *testing.T
	tokenGrants int
	expiresIn   int
}

func (s *whoopStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/oauth/token":
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				s.t.Errorf("decode token body: %v", err)
			}
			if body["grant_type"] != "password" {
				s.t.Errorf("grant_type = %q, want password", body["grant_type"])
			}
			if body["username"] != "drew@example.com" || body["password"] != "hunter22" {
				s.t.Errorf("unexpected credentials %q/%q", body["username"], body["password"])
			}
			s.tokenGrants++
			expiresIn := s.expiresIn
			if expiresIn == 0 {
				expiresIn = 3600
			}
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-abc",
				"expires_in":   expiresIn,
				"user":         map[string]any{"id": 42},
			})

		case r.URL.Path == "/users/42/cycles":
			if got := r.URL.Query().Get("access_token"); got != "tok-abc" {
				s.t.Errorf("cycles access_token = %q", got)
			}
			if r.URL.Query().Get("start") == "" || r.URL.Query().Get("end") == "" {
				s.t.Error("cycles missing start/end range")
			}
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 7001, "score": map[string]any{"strain": 12.3}},
			})

		case strings.HasSuffix(r.URL.Path, "/cycles/7001/recovery"):
			json.NewEncoder(w).Encode(map[string]any{
				"score": map[string]any{"recovery_score": 85.0},
			})

		case r.URL.Path == "/users/42/sleeps":
			json.NewEncoder(w).Encode([]map[string]any{
				{"score": map[string]any{"sleep_performance_percentage": 91.0}},
			})

		default:
			s.t.Errorf("unexpected request path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("http://example.com", "", "pw", testCaller()); err == nil {
		t.Error("New() with empty username should error")
	}
	if _, err := New("http://example.com", "user", "", testCaller()); err == nil {
		t.Error("New() with empty password should error")
	}
	if _, err := New("http://example.com", "user", "pw", testCaller()); err != nil {
		t.Errorf("New() error = %v", err)
	}
}

func TestRecovery(t *testing.T) {
	stub := &whoopStub{t: t}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	client, err := New(srv.URL, "drew@example.com", "hunter22", testCaller())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	day := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	score, err := client.Recovery(context.Background(), day)
	if err != nil {
		t.Fatalf("Recovery() error = %v", err)
	}
	if score != 85 {
		t.Fatalf("Recovery() = %d, want 85", score)
	}
	if stub.tokenGrants != 1 {
		t.Fatalf("token grants = %d, want 1", stub.tokenGrants)
	}
}

func TestSleep(t *testing.T) {
	stub := &whoopStub{t: t}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	client, err := New(srv.URL, "drew@example.com", "hunter22", testCaller())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	day := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	score, err := client.Sleep(context.Background(), day)
	if err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if score != 91 {
		t.Fatalf("Sleep() = %d, want 91", score)
	}
}

func TestTokenReusedAcrossCalls(t *testing.T) {
	stub := &whoopStub{t: t}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	client, err := New(srv.URL, "drew@example.com", "hunter22", testCaller())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	day := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	if _, err := client.Recovery(context.Background(), day); err != nil {
		t.Fatalf("Recovery() error = %v", err)
	}
	if _, err := client.Sleep(context.Background(), day); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if stub.tokenGrants != 1 {
		t.Fatalf("token grants = %d, want 1 (token should be cached)", stub.tokenGrants)
	}
}

func TestTokenRefreshedOnExpiry(t *testing.T) {
	// expires_in of 30s is inside the 60s early-refresh margin, so every
	// call re-authenticates.
	stub := &whoopStub{t: t, expiresIn: 30}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	client, err := New(srv.URL, "drew@example.com", "hunter22", testCaller())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	day := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	if _, err := client.Recovery(context.Background(), day); err != nil {
		t.Fatalf("Recovery() error = %v", err)
	}
	if _, err := client.Sleep(context.Background(), day); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if stub.tokenGrants != 2 {
		t.Fatalf("token grants = %d, want 2 (expired token should refresh)", stub.tokenGrants)
	}
}

func TestRecovery_NoCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/oauth/token" {
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-abc",
				"expires_in":   3600,
				"user":         map[string]any{"id": 42},
			})
			return
		}
		json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	client, err := New(srv.URL, "drew@example.com", "hunter22", testCaller())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	day := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	if _, err := client.Recovery(context.Background(), day); err == nil {
		t.Fatal("Recovery() error = nil, want error for empty cycle list")
	}
	if _, err := client.Sleep(context.Background(), day); err == nil {
		t.Fatal("Sleep() error = nil, want error for empty sleep list")
	}
}

func TestAuthenticationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "drew@example.com", "wrong", testCaller())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Recovery(context.Background(), time.Now()); err == nil {
		t.Fatal("Recovery() error = nil, want authentication error")
	}
}
