package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/B-Step62/mlflow-sub000/internal/log"
)

func TestRecoveryMiddleware_Panic(t *testing.T) {
	panicHandler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("test panic")
	})

	handler := recoveryMiddleware(log.NewNop())(panicHandler)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("recoveryMiddleware(panic) status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var envelope errorResponse
	decodeJSON(t, w, &envelope)

	if envelope.ErrorCode != CodeInternalError {
		t.Errorf("recoveryMiddleware(panic) error_code = %q, want %q", envelope.ErrorCode, CodeInternalError)
	}
}

func TestRecoveryMiddleware_NoPanic(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
	})

	handler := recoveryMiddleware(log.NewNop())(okHandler)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("recoveryMiddleware(ok) status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestCORSMiddleware_AllowedOriginPreflight(t *testing.T) {
	origins := []string{"http://localhost:4200"}
	handler := corsMiddleware(origins)(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("next handler should not be called for OPTIONS")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/api/2.0/charts/generate", nil)
	r.Header.Set("Origin", "http://localhost:4200")

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("CORS preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:4200")
	}

	if got := w.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("Access-Control-Allow-Headers should be set")
	}

	// The API is token-free and cookie-free, so credentials must not be
	// advertised.
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want empty", got)
	}
}

func TestCORSMiddleware_DisallowedOriginPreflight(t *testing.T) {
	origins := []string{"http://localhost:4200"}
	handler := corsMiddleware(origins)(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("next handler should not be called for OPTIONS")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/api/2.0/charts/generate", nil)
	r.Header.Set("Origin", "http://evil.example.com")

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("CORS disallowed preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty for disallowed origin", got)
	}
}

func TestCORSMiddleware_NormalRequest(t *testing.T) {
	origins := []string{"http://localhost:4200"}
	called := false
	handler := corsMiddleware(origins)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/2.0/charts/list", nil)
	r.Header.Set("Origin", "http://localhost:4200")

	handler.ServeHTTP(w, r)

	if !called {
		t.Error("next handler was not called")
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:4200")
	}
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	setSecurityHeaders(w)

	expected := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'none'",
	}

	for header, want := range expected {
		if got := w.Header().Get(header); got != want {
			t.Errorf("setSecurityHeaders() %q = %q, want %q", header, got, want)
		}
	}
}

func TestLoggingWriter_CapturesStatus(t *testing.T) {
	lw := &loggingWriter{w: httptest.NewRecorder()}

	lw.WriteHeader(http.StatusTeapot)
	if _, err := lw.Write([]byte("short and stout")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if lw.statusCode != http.StatusTeapot {
		t.Errorf("loggingWriter statusCode = %d, want %d", lw.statusCode, http.StatusTeapot)
	}
	if want := int64(len("short and stout")); lw.bytesWritten != want {
		t.Errorf("loggingWriter bytesWritten = %d, want %d", lw.bytesWritten, want)
	}
}

func TestLoggingWriter_DefaultStatus(t *testing.T) {
	lw := &loggingWriter{w: httptest.NewRecorder()}

	// Write without an explicit WriteHeader implies 200.
	if _, err := lw.Write([]byte("ok")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if lw.statusCode != http.StatusOK {
		t.Errorf("loggingWriter implicit statusCode = %d, want %d", lw.statusCode, http.StatusOK)
	}
}
