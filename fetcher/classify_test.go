package fetcher

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lockhttp "github.com/lockwatch/lockdash/http"
)

func httpErr(status int, body string) error {
	return lockhttp.NewHTTPError(nethttp.StatusText(status), status, []byte(body))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantClass  Classification
		wantStatus int
	}{
		{"timeout error", lockhttp.NewTimeoutError("request timeout", time.Second, context.DeadlineExceeded), Timeout, 0},
		{"bare deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), Timeout, 0},
		{"network error", lockhttp.NewNetworkError("dial", errors.New("refused")), NetworkUnreachable, 0},
		{"unauthorized", httpErr(401, ""), Unauthorized, 401},
		{"forbidden", httpErr(403, ""), Forbidden, 403},
		{"not found", httpErr(404, ""), NotFound, 404},
		{"internal", httpErr(500, ""), ServerError, 500},
		{"gateway", httpErr(504, ""), ServerError, 504},
		{"bad request", httpErr(400, ""), Unknown, 400},
		{"conflict", httpErr(409, ""), Unknown, 409},
		{"invalid json", fmt.Errorf("%w (status 200)", errInvalidJSON), ClientProtocolError, 0},
		{"validation", lockhttp.NewValidationError("URL cannot be empty", "url"), Unknown, 0},
		{"classified", &Error{Classification: Forbidden, Status: 403}, Forbidden, 403},
		{"nil", nil, Unknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, status := Classify(tt.err)
			assert.Equal(t, tt.wantClass, class)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, MsgTimeout, Message(Timeout, 0, nil))
	assert.Equal(t, MsgUnreachable, Message(NetworkUnreachable, 0, nil))
	assert.Equal(t, MsgUnauthorized, Message(Unauthorized, 401, nil))
	assert.Equal(t, MsgForbidden, Message(Forbidden, 403, nil))
	assert.Equal(t, MsgNotFound, Message(NotFound, 404, nil))
	assert.Equal(t, "Server error (503). Please try again later or contact support.", Message(ServerError, 503, nil))
	assert.Equal(t, MsgUnknown, Message(Unknown, 418, nil))
	assert.Equal(t, MsgUnknown, Message(ClientProtocolError, 0, nil))
}

func TestMessageErrorField(t *testing.T) {
	assert.Equal(t, "Lock is offline", Message(ServerError, 500, []byte(`{"error": "Lock is offline"}`)))
	assert.Equal(t, "Bad token", Message(Timeout, 0, []byte(`{"error":"Bad token","code":7}`)))

	// absent, empty, or null error fields fall back to the classification
	assert.Equal(t, MsgNotFound, Message(NotFound, 404, []byte(`{"message": "nope"}`)))
	assert.Equal(t, MsgNotFound, Message(NotFound, 404, []byte(`{"error": ""}`)))
	assert.Equal(t, MsgNotFound, Message(NotFound, 404, []byte(`{"error": null}`)))
	assert.Equal(t, MsgNotFound, Message(NotFound, 404, []byte(`<html>not json</html>`)))
	assert.Equal(t, MsgNotFound, Message(NotFound, 404, []byte(`[1,2]`)))

	// non-string error values are ignored
	assert.Equal(t, "Server error (500). Please try again later or contact support.",
		Message(ServerError, 500, []byte(`{"error": {"reason":"x"}}`)))
	assert.Equal(t, "Server error (500). Please try again later or contact support.",
		Message(ServerError, 500, []byte(`{"error": 0}`)))
	assert.Equal(t, MsgUnknown, Message(Unknown, 400, []byte(`{"error": false}`)))
	assert.Equal(t, MsgForbidden, Message(Forbidden, 403, []byte(`{"error": "   "}`)))

	// an expired session never shows the body's text
	assert.Equal(t, MsgUnauthorized, Message(Unauthorized, 401, []byte(`{"error": "Token expired"}`)))
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "server_error", ServerError.String())
	assert.Equal(t, "client_protocol_error", ClientProtocolError.String())
	assert.Equal(t, "classification(42)", Classification(42).String())
}

func TestRequestSpecValidate(t *testing.T) {
	assert.NoError(t, Get("/api/status").Validate())
	assert.NoError(t, RequestSpec{Endpoint: "/api/status"}.Validate())
	assert.NoError(t, RequestSpec{Endpoint: "/api/locks/1/action", Method: "POST", Body: []int{1}}.Validate())

	assert.Error(t, RequestSpec{}.Validate())
	assert.Error(t, RequestSpec{Endpoint: "/api/status", Method: "PATCH"}.Validate())
	assert.Error(t, RequestSpec{Endpoint: "/api/status", Timeout: -time.Second}.Validate())
	assert.Error(t, RequestSpec{Endpoint: "/api/activity", Body: []string{"limit"}}.Validate(),
		"GET bodies must be maps")
}

func TestRequestSpecGETEncodesQuery(t *testing.T) {
	spec := RequestSpec{Endpoint: "/api/activity", Body: map[string]any{"limit": 5, "lock": "front", "tags": []string{"a", "b"}}}
	req, err := spec.request()
	require.NoError(t, err)

	assert.Equal(t, "/api/activity", req.URL)
	assert.Nil(t, req.Body)
	assert.Equal(t, url.Values{"limit": {"5"}, "lock": {"front"}, "tags": {"a", "b"}}, req.Query)
}

func TestRequestSpecDefaults(t *testing.T) {
	spec := RequestSpec{Endpoint: "/api/status"}
	assert.Equal(t, nethttp.MethodGet, spec.method())
	assert.Equal(t, DefaultTimeout, spec.timeout())
	assert.Equal(t, "GET /api/status", spec.String())

	spec = RequestSpec{Endpoint: "/api/status", Method: "delete", Timeout: time.Second}
	assert.Equal(t, nethttp.MethodDelete, spec.method())
	assert.Equal(t, time.Second, spec.timeout())
}
