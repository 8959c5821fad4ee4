package clientip_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/rollcall/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.1.2.3:5555", "10.1.2.3"},
		{"remote addr without port", nil, "10.1.2.3", "10.1.2.3"},
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Real-IP": "2.2.2.2"}, "10.0.0.1:1", "1.1.1.1"},
		{"first valid forwarded", map[string]string{"X-Forwarded-For": "garbage, 3.3.3.3, 4.4.4.4"}, "10.0.0.1:1", "3.3.3.3"},
		{"invalid headers fall through", map[string]string{"X-Real-IP": "nope"}, "10.0.0.1:1", "10.0.0.1"},
		{"ipv6 normalized", map[string]string{"X-Real-IP": "2001:DB8::0001"}, "", "2001:db8::1"},
		{"nothing parses", nil, "bogus", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.GetIP(r))
		})
	}
}

func TestFromHeaders_CustomOrder(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "5.5.5.5")
	r.Header.Set("CF-Connecting-IP", "6.6.6.6")
	assert.Equal(t, "5.5.5.5", clientip.FromHeaders(r, "X-Real-IP"))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var seen string
	h := clientip.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = clientip.FromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "7.7.7.7")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "7.7.7.7", seen)
}
