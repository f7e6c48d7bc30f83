package fetcher

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	lockhttp "github.com/lockwatch/lockdash/http"
)

// DefaultTimeout bounds a single attempt when a RequestSpec leaves Timeout unset.
const DefaultTimeout = 20 * time.Second

var validate = validator.New(validator.WithRequiredStructEnabled())

// RequestSpec describes one API call. It is treated as immutable once a
// fetch starts; retries re-issue the same spec.
type RequestSpec struct {
	Endpoint string        `validate:"required"`
	Method   string        `validate:"omitempty,oneof=GET POST PUT DELETE get post put delete"`
	Body     any           `validate:"-"`
	Timeout  time.Duration `validate:"gte=0"`
}

// Get returns a GET spec for endpoint with the default timeout.
func Get(endpoint string) RequestSpec {
	return RequestSpec{Endpoint: endpoint, Method: nethttp.MethodGet}
}

// Validate checks the endpoint, method and the shape of the body.
func (s RequestSpec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid request spec: %w", err)
	}
	if s.method() == nethttp.MethodGet && s.Body != nil {
		if _, err := queryFromBody(s.Body); err != nil {
			return fmt.Errorf("invalid request spec: %w", err)
		}
	}
	return nil
}

func (s RequestSpec) method() string {
	if s.Method == "" {
		return nethttp.MethodGet
	}
	return strings.ToUpper(s.Method)
}

func (s RequestSpec) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return s.Timeout
}

// String renders the request as "METHOD endpoint".
func (s RequestSpec) String() string {
	return s.method() + " " + s.Endpoint
}

// request builds the transport request. GET bodies become query parameters;
// any other method sends the body as JSON.
func (s RequestSpec) request() (*lockhttp.Request, error) {
	req := &lockhttp.Request{URL: s.Endpoint}
	if s.Body == nil {
		return req, nil
	}

	if s.method() == nethttp.MethodGet {
		q, err := queryFromBody(s.Body)
		if err != nil {
			return nil, err
		}
		req.Query = q
		return req, nil
	}

	payload, err := json.Marshal(s.Body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	req.Body = payload
	req.Headers = map[string]string{"Content-Type": "application/json"}
	return req, nil
}

func queryFromBody(body any) (url.Values, error) {
	switch b := body.(type) {
	case url.Values:
		return b, nil
	case map[string]string:
		q := make(url.Values, len(b))
		for k, v := range b {
			q.Set(k, v)
		}
		return q, nil
	case map[string]any:
		q := make(url.Values, len(b))
		keys := make([]string, 0, len(b))
		for k := range b {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch v := b[k].(type) {
			case []string:
				for _, item := range v {
					q.Add(k, item)
				}
			case nil:
				q.Set(k, "")
			default:
				q.Set(k, fmt.Sprint(v))
			}
		}
		return q, nil
	default:
		return nil, fmt.Errorf("GET body must be a map or url.Values, got %T", body)
	}
}
