package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orchestrator-backend/core/workflow"
	auth "orchestrator-backend/storage/auth"
)

func callerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFrom(r.Context())
		if !ok {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(caller))
	})
}

func TestAPIAuth(t *testing.T) {
	store := auth.NewAPIKeyStore()
	store.Seed("secret", "0xalice", "test")
	h := APIAuth(store)(callerEcho())

	tests := []struct {
		name       string
		method     string
		header     string
		value      string
		wantStatus int
		wantBody   string
	}{
		{"get without key", http.MethodGet, "", "", http.StatusOK, "anonymous"},
		{"post without key", http.MethodPost, "", "", http.StatusUnauthorized, "api_key_required"},
		{"x-api-key", http.MethodPost, "X-API-Key", "secret", http.StatusOK, "0xalice"},
		{"bearer", http.MethodPost, "Authorization", "Bearer secret", http.StatusOK, "0xalice"},
		{"invalid key on get", http.MethodGet, "X-API-Key", "nope", http.StatusForbidden, "api_key_invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/bounties", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d but got %d", tt.wantStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("Expected body to contain %q but got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAPIAuthPublicPaths(t *testing.T) {
	h := APIAuth(auth.NewAPIKeyStore(), "/api/auth/login")(callerEcho())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Errorf("Expected the public path to pass anonymously but got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/keys", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 but got %d", rec.Code)
	}
}

func TestWithCaller(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := CallerFrom(req.Context()); ok {
		t.Error("Expected no caller on a bare request")
	}
	ctx := WithCaller(req.Context(), workflow.Address("0xbob"))
	if caller, ok := CallerFrom(ctx); !ok || caller != "0xbob" {
		t.Errorf("Expected caller 0xbob but got %q", caller)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("Request %d: expected status %d but got %d", i, want, rec.Code)
		}
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected other clients to be unaffected but got %d", rec.Code)
	}
}

func TestTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	})
	rec := httptest.NewRecorder()
	Timeout(10*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusRequestTimeout {
		t.Errorf("Expected status 408 but got %d", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 but got %d", rec.Code)
	}
}

func TestContentType(t *testing.T) {
	h := ContentType(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected status 415 but got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 but got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.org"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.org" {
		t.Errorf("Expected the origin to be echoed but got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.org")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allow-origin header but got %q", got)
	}
}

type recordingObserver struct {
	route  string
	status int
}

func (o *recordingObserver) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	o.route, o.status = route, status
}

func TestInstrumentAndRequestID(t *testing.T) {
	obs := &recordingObserver{}
	h := Chain(
		Instrument(obs, "GET /api/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RequestIDFrom(r.Context()) == "" {
				t.Error("Expected a request id in the context")
			}
			w.WriteHeader(http.StatusTeapot)
		})),
		RequestID, Logging,
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	if obs.route != "GET /api/x" || obs.status != http.StatusTeapot {
		t.Errorf("Expected route and status to be observed but got %+v", obs)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
}
