package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"moneymind/internal/shared/requestctx"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		reuse   bool
	}{
		{name: "reuses well-formed id", inbound: "req-123_abc.1", reuse: true},
		{name: "generates when absent", inbound: ""},
		{name: "rejects unsafe characters", inbound: "bad id\n"},
		{name: "rejects oversized id", inbound: strings.Repeat("a", maxRequestIDLen+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = requestctx.RequestID(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set(RequestIDHeader, tt.inbound)
			}
			rr := httptest.NewRecorder()
			RequestID(next).ServeHTTP(rr, req)

			echoed := rr.Header().Get(RequestIDHeader)
			if echoed != seen {
				t.Errorf("echoed %q, context had %q", echoed, seen)
			}
			if tt.reuse {
				if seen != tt.inbound {
					t.Errorf("request id = %q, want %q", seen, tt.inbound)
				}
				return
			}
			if _, err := uuid.Parse(seen); err != nil {
				t.Errorf("request id %q is not a generated uuid: %v", seen, err)
			}
		})
	}
}
