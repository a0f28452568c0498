package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fixedTimeout(d time.Duration) func(*http.Request) time.Duration {
	return func(*http.Request) time.Duration { return d }
}

func writeGatewayTimeout(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, context.DeadlineExceeded) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusGatewayTimeout)
}

func TestDeadline_PassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			t.Error("expected a deadline on the request context")
		}
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	})

	rr := httptest.NewRecorder()
	Deadline(fixedTimeout(time.Second), writeGatewayTimeout)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rr.Code)
	}
	if rr.Body.String() != "created" || rr.Header().Get("X-Test") != "yes" {
		t.Errorf("response not copied: body %q, header %q", rr.Body.String(), rr.Header().Get("X-Test"))
	}
}

func TestDeadline_Expires(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("too late"))
	})

	const timeout = 50 * time.Millisecond
	start := time.Now()
	rr := httptest.NewRecorder()
	Deadline(fixedTimeout(timeout), writeGatewayTimeout)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rr.Code)
	}
	if elapsed := time.Since(start); elapsed > timeout+500*time.Millisecond {
		t.Errorf("responded after %v, want within deadline + 500ms", elapsed)
	}
	if rr.Body.String() != "" {
		t.Errorf("late handler output leaked: %q", rr.Body.String())
	}
}

func TestDeadline_DefaultStatus(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	Deadline(fixedTimeout(time.Second), writeGatewayTimeout)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("got %d %q, want 200 ok", rr.Code, rr.Body.String())
	}
}
