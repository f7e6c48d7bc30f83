package mocks

import (
	"context"
	nethttp "net/http"

	"github.com/stretchr/testify/mock"

	lockhttp "github.com/lockwatch/lockdash/http"
)

// MockClient provides a testify-based mock implementation of http.Client.
// Get, Post, Put and Delete route through Do, so expectations are set on Do.
//
// Example usage:
//
//	client := &mocks.MockClient{}
//	client.ExpectStatus(nethttp.MethodGet, "/api/status", 500, "").Times(3)
//	client.ExpectStatus(nethttp.MethodGet, "/api/status", 200, `[]`).Once()
type MockClient struct {
	mock.Mock
}

var _ lockhttp.Client = (*MockClient)(nil)

// Get implements http.Client
func (m *MockClient) Get(ctx context.Context, req *lockhttp.Request) (*lockhttp.Response, error) {
	return m.Do(ctx, nethttp.MethodGet, req)
}

// Post implements http.Client
func (m *MockClient) Post(ctx context.Context, req *lockhttp.Request) (*lockhttp.Response, error) {
	return m.Do(ctx, nethttp.MethodPost, req)
}

// Put implements http.Client
func (m *MockClient) Put(ctx context.Context, req *lockhttp.Request) (*lockhttp.Response, error) {
	return m.Do(ctx, nethttp.MethodPut, req)
}

// Delete implements http.Client
func (m *MockClient) Delete(ctx context.Context, req *lockhttp.Request) (*lockhttp.Response, error) {
	return m.Do(ctx, nethttp.MethodDelete, req)
}

// Do implements http.Client
func (m *MockClient) Do(ctx context.Context, method string, req *lockhttp.Request) (*lockhttp.Response, error) {
	args := m.Called(ctx, method, req)
	resp, _ := args.Get(0).(*lockhttp.Response)
	return resp, args.Error(1)
}

// ForURL matches requests whose URL equals url.
func ForURL(url string) any {
	return mock.MatchedBy(func(req *lockhttp.Request) bool {
		return req != nil && req.URL == url
	})
}

// ExpectStatus sets up Do to answer requests for url with the given status
// and body. Non-2xx statuses also return an HTTP error, like the real client.
func (m *MockClient) ExpectStatus(method, url string, status int, body string) *mock.Call {
	resp, err := StatusResponse(status, body)
	return m.On("Do", mock.Anything, method, ForURL(url)).Return(resp, err)
}

// ExpectError sets up Do to fail requests for url without a response.
func (m *MockClient) ExpectError(method, url string, err error) *mock.Call {
	return m.On("Do", mock.Anything, method, ForURL(url)).Return(nil, err)
}

// ExpectBlocking sets up Do to block until the request context is done and
// then fail with the context error.
func (m *MockClient) ExpectBlocking(method, url string) *mock.Call {
	return m.On("Do", mock.Anything, method, ForURL(url)).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return(nil, context.Canceled)
}

// StatusResponse builds the (response, error) pair the real client returns
// for a completed request.
func StatusResponse(status int, body string) (*lockhttp.Response, error) {
	resp := &lockhttp.Response{StatusCode: status, Body: []byte(body), Headers: nethttp.Header{}}
	if lockhttp.IsSuccessStatus(status) {
		return resp, nil
	}
	return resp, lockhttp.NewHTTPError(nethttp.StatusText(status), status, []byte(body))
}
