package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// WithURLParams attaches a chi route context carrying params, the way the
// router does before a handler runs. An empty params leaves req untouched.
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	if len(params) == 0 {
		return req
	}
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// NewRequestWithURLParams creates a bodiless request for a handler reading
// chi.URLParam.
//
//	req := testutil.NewRequestWithURLParams(http.MethodGet,
//	    "/api/portfolio/"+id+"/lots", map[string]string{"uuid": id})
func NewRequestWithURLParams(method, path string, params map[string]string) *http.Request {
	return WithURLParams(httptest.NewRequest(method, path, nil), params)
}

// NewRequestWithQueryParams creates a bodiless request with an encoded query
// string, e.g. {"period": "3m", "benchmark": "SPY"}.
func NewRequestWithQueryParams(method, path string, queryParams map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if len(queryParams) > 0 {
		q := req.URL.Query()
		for key, value := range queryParams {
			q.Set(key, value)
		}
		req.URL.RawQuery = q.Encode()
	}
	return req
}

// NewJSONRequest creates an HTTP request whose body is body encoded as JSON,
// with chi URL parameters attached when params is non-empty.
//
// Example:
//
//	req := testutil.NewJSONRequest(t,
//	    http.MethodPost,
//	    "/api/portfolio/123-456/transaction",
//	    map[string]string{"uuid": "123-456"},
//	    map[string]any{"type": "cash", "date": "2024-01-02", "amount": 1000},
//	)
func NewJSONRequest(t *testing.T, method, path string, params map[string]string, body any) *http.Request {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err, "encode request body")
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return WithURLParams(req, params)
}

// DecodeJSON decodes a recorded response body into T and fails the test on error.
func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out), "decode response body %q", w.Body.String())
	return out
}
