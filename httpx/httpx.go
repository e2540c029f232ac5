package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/byteglow/backstop"
)

// Classifier maps an HTTP status code to an error from the backstop
// taxonomy, or nil when the status counts as success.
//
// Pattern: Strategy — the caller injects classification logic without
// modifying the adapter.
type Classifier func(statusCode int) *backstop.AppError

// DefaultClassifier maps status codes the way most JSON APIs behave:
// 2xx/3xx succeed; 401, 403, 404 and other 4xx are permanent; 408, 429 and
// all 5xx are retryable.
func DefaultClassifier(statusCode int) *backstop.AppError {
	switch {
	case statusCode < 400:
		return nil
	case statusCode == http.StatusUnauthorized:
		return backstop.NewAPIError(
			backstop.CodeAuthentication,
			"authentication failed",
			backstop.WithStatus(statusCode),
		)
	case statusCode == http.StatusForbidden:
		return backstop.NewAPIError(
			backstop.CodeAuthorization,
			"authorization failed",
			backstop.WithStatus(statusCode),
		)
	case statusCode == http.StatusNotFound:
		return backstop.NewAPIError(
			backstop.CodeNotFound,
			"resource not found",
			backstop.WithStatus(statusCode),
		)
	case statusCode == http.StatusRequestTimeout:
		return backstop.NewAPIError(
			backstop.CodeTimeout,
			"request timed out",
			backstop.WithStatus(statusCode),
			backstop.WithRetryable(true),
		)
	case statusCode == http.StatusTooManyRequests:
		return backstop.NewAPIError(
			backstop.CodeRateLimited,
			"rate limited",
			backstop.WithStatus(statusCode),
		)
	case statusCode >= 500:
		return backstop.NewAPIError(
			backstop.CodeServerError,
			fmt.Sprintf("server error: status %d", statusCode),
			backstop.WithStatus(statusCode),
		)
	default:
		return backstop.NewAPIError(
			backstop.CodeUnknown,
			fmt.Sprintf("request rejected: status %d", statusCode),
			backstop.WithStatus(statusCode),
			backstop.WithRetryable(false),
		)
	}
}

// Client wraps an http.Client with a backstop recovery policy and HTTP
// status classification.
//
// Pattern: Adapter — bridges net/http and the recovery policy by
// translating status codes into the typed error taxonomy, which drives
// retry decisions.
type Client struct {
	hc *http.Client
	p  *backstop.Policy[*http.Response]
	cl Classifier
}

// NewClient creates a Client that executes HTTP requests through the given
// policy options. A nil classifier uses [DefaultClassifier].
func NewClient(
	name string,
	hc *http.Client,
	cl Classifier,
	opts ...any,
) *Client {
	if cl == nil {
		cl = DefaultClassifier
	}

	return &Client{
		hc: hc,
		p:  backstop.NewPolicy[*http.Response](name, opts...),
		cl: cl,
	}
}

// Do executes a request built by newReq through the recovery policy.
// A fresh request is built for every attempt so that request bodies can be
// re-read on retry. Responses classified as errors have their bodies closed
// before the error propagates; the HTTP status is recorded on the returned
// AppError.
func (c *Client) Do(
	ctx context.Context,
	newReq func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	return c.p.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, backstop.NewValidationError(
				"request",
				"building request: "+err.Error(),
				backstop.WithCause(err),
			)
		}

		resp, err := c.hc.Do(req.WithContext(ctx))
		if err != nil {
			return nil, backstop.NewAPIError(
				backstop.CodeNetwork,
				"network error: "+err.Error(),
				backstop.WithCause(err),
			)
		}

		if appErr := c.cl(resp.StatusCode); appErr != nil {
			// The failed response won't be returned; release its
			// connection before any retry.
			resp.Body.Close() //nolint:errcheck,gosec // best-effort drain

			return nil, appErr
		}

		return resp, nil
	})
}

// Get issues a GET request to url through the recovery policy.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}
