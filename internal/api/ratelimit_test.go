package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiterBurstExhaustion(t *testing.T) {
	t.Parallel()

	// Zero refill: the burst is all an IP ever gets.
	rl := newRateLimiter(0, 2)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request within burst must be allowed")
	}
	if !rl.allow("10.0.0.1") {
		t.Fatal("second request within burst must be allowed")
	}
	if rl.allow("10.0.0.1") {
		t.Error("request beyond burst must be denied")
	}

	// Other IPs have their own bucket.
	if !rl.allow("10.0.0.2") {
		t.Error("a fresh IP must not inherit another IP's exhaustion")
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "203.0.113.7:1234",
			want:       "203.0.113.7",
		},
		{
			name:       "proxy headers ignored without trust",
			remoteAddr: "203.0.113.7:1234",
			realIP:     "198.51.100.9",
			want:       "203.0.113.7",
		},
		{
			name:       "x-real-ip preferred",
			remoteAddr: "203.0.113.7:1234",
			realIP:     "198.51.100.9",
			forwarded:  "192.0.2.1",
			trustProxy: true,
			want:       "198.51.100.9",
		},
		{
			name:       "first forwarded entry",
			remoteAddr: "203.0.113.7:1234",
			forwarded:  "192.0.2.1, 198.51.100.9",
			trustProxy: true,
			want:       "192.0.2.1",
		},
		{
			name:       "non-ip header falls through",
			remoteAddr: "203.0.113.7:1234",
			realIP:     "not-an-ip",
			trustProxy: true,
			want:       "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
