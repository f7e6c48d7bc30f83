package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	lockhttp "github.com/lockwatch/lockdash/http"
)

// Classification is the failure category of one attempt.
type Classification int

const (
	Unknown Classification = iota
	NetworkUnreachable
	Timeout
	Unauthorized
	Forbidden
	NotFound
	ServerError
	ClientProtocolError
)

var classificationNames = map[Classification]string{
	Unknown:             "unknown",
	NetworkUnreachable:  "network_unreachable",
	Timeout:             "timeout",
	Unauthorized:        "unauthorized",
	Forbidden:           "forbidden",
	NotFound:            "not_found",
	ServerError:         "server_error",
	ClientProtocolError: "client_protocol_error",
}

func (c Classification) String() string {
	if name, ok := classificationNames[c]; ok {
		return name
	}
	return fmt.Sprintf("classification(%d)", int(c))
}

// User-facing messages.
const (
	MsgTimeout        = "Request timed out. Server might be under heavy load."
	MsgUnreachable    = "Cannot connect to server. Please check your network connection."
	MsgUnauthorized   = "Session expired. Please login again."
	MsgForbidden      = "You do not have permission to access this resource."
	MsgNotFound       = "Resource not found. The API endpoint may have changed."
	MsgServerErrorFmt = "Server error (%d). Please try again later or contact support."
	MsgUnknown        = "Failed to load data from server."
	MsgProcessing     = "Error processing data"
)

// errInvalidJSON marks a successful response whose body could not be parsed.
var errInvalidJSON = errors.New("response is not valid JSON")

// Classify derives the classification of a failed attempt and the HTTP status
// it carried (0 when no response was received).
func Classify(err error) (Classification, int) {
	if err == nil {
		return Unknown, 0
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Classification, fe.Status
	}
	if errors.Is(err, errInvalidJSON) {
		return ClientProtocolError, 0
	}
	if lockhttp.IsErrorType(err, lockhttp.TimeoutError) || errors.Is(err, context.DeadlineExceeded) {
		return Timeout, 0
	}

	status := lockhttp.StatusCodeOf(err)
	switch {
	case status == 0 && lockhttp.IsErrorType(err, lockhttp.NetworkError):
		return NetworkUnreachable, 0
	case status == 401:
		return Unauthorized, status
	case status == 403:
		return Forbidden, status
	case status == 404:
		return NotFound, status
	case status >= 500:
		return ServerError, status
	default:
		return Unknown, status
	}
}

// Message returns the text shown to the user. An expired session always
// reads MsgUnauthorized; otherwise a non-empty string "error" field in the
// response body takes precedence over the classification's message.
func Message(c Classification, status int, body []byte) string {
	if c == Unauthorized {
		return MsgUnauthorized
	}
	if msg := errorField(body); msg != "" {
		return msg
	}
	switch c {
	case Timeout:
		return MsgTimeout
	case NetworkUnreachable:
		return MsgUnreachable
	case Forbidden:
		return MsgForbidden
	case NotFound:
		return MsgNotFound
	case ServerError:
		return fmt.Sprintf(MsgServerErrorFmt, status)
	default:
		return MsgUnknown
	}
}

// errorField returns the body's "error" field when it is a string. Numbers,
// objects and other non-string values are ignored.
func errorField(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(payload.Error, &text); err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func responseBody(err error) []byte {
	var se lockhttp.StatusError
	if errors.As(err, &se) {
		return se.Body()
	}
	return nil
}
