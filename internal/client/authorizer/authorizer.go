// Package authorizer decorates outgoing HTTP requests that ask for a bearer
// token, or answers them locally with 401 when no usable token exists.
package authorizer

import (
	"context"
	"net/http"
)

// NotLoggedInText is the status text of a locally synthesized 401.
const NotLoggedInText = "Cannot make an authorized request as the user is not logged in"

// Proceed hands a request to the next stage of the chain.
type Proceed func(*http.Request) (*http.Response, error)

// Interceptor decides, per request, whether and how it continues. It returns
// either the result of next or a response of its own, never both.
type Interceptor interface {
	Intercept(req *http.Request, next Proceed) (*http.Response, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(req *http.Request, next Proceed) (*http.Response, error)

func (f InterceptorFunc) Intercept(req *http.Request, next Proceed) (*http.Response, error) {
	return f(req, next)
}

type bearerKey struct{}

// WithBearer marks every request built with ctx as requiring authorization.
func WithBearer(ctx context.Context) context.Context {
	return context.WithValue(ctx, bearerKey{}, true)
}

// MarkBearer returns a shallow copy of req marked as requiring authorization.
func MarkBearer(req *http.Request) *http.Request {
	return req.WithContext(WithBearer(req.Context()))
}

// RequiresBearer reports whether req was marked.
func RequiresBearer(req *http.Request) bool {
	marked, _ := req.Context().Value(bearerKey{}).(bool)
	return marked
}

// TokenSource is the read side of the token store.
type TokenSource interface {
	Get() (string, bool)
	IsValid() bool
}

// Bearer attaches "<prefix><token>" to marked requests.
type Bearer struct {
	tokens TokenSource
	prefix string
}

// NewBearer builds the interceptor. An empty prefix selects "Bearer ".
func NewBearer(tokens TokenSource, prefix string) *Bearer {
	if prefix == "" {
		prefix = "Bearer "
	}
	return &Bearer{tokens: tokens, prefix: prefix}
}

func (b *Bearer) Intercept(req *http.Request, next Proceed) (*http.Response, error) {
	if !RequiresBearer(req) {
		return next(req)
	}
	tok, ok := b.tokens.Get()
	if !ok || !b.tokens.IsValid() {
		return Unauthorized(req), nil
	}
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", b.prefix+tok)
	return next(out)
}

// Unauthorized synthesizes the response used when a marked request cannot be
// sent. It has the same shape as a 401 from the server. The request body, if
// any, is closed as a RoundTripper would.
func Unauthorized(req *http.Request) *http.Response {
	if req.Body != nil {
		_ = req.Body.Close()
	}
	return &http.Response{
		Status:        "401 " + NotLoggedInText,
		StatusCode:    http.StatusUnauthorized,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{},
		Body:          http.NoBody,
		ContentLength: 0,
		Request:       req,
	}
}

// Transport runs Interceptors in order in front of Base.
type Transport struct {
	Base         http.RoundTripper
	Interceptors []Interceptor
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.proceed(0)(req)
}

func (t *Transport) proceed(i int) Proceed {
	if i == len(t.Interceptors) {
		base := t.Base
		if base == nil {
			base = http.DefaultTransport
		}
		return base.RoundTrip
	}
	return func(req *http.Request) (*http.Response, error) {
		return t.Interceptors[i].Intercept(req, t.proceed(i+1))
	}
}
