package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"fipeline/internal/catalog"
	"fipeline/internal/config"
	"fipeline/internal/constants"
	"fipeline/internal/logger"
	"fipeline/pkg/circuitbreaker"
	pkgerrors "fipeline/pkg/errors"
	"fipeline/pkg/metrics"
)

// Catalog is the read port onto the upstream vehicle pricing API.
type Catalog interface {
	FetchBrands(ctx context.Context) ([]catalog.Brand, error)
	FetchVehiclesByBrand(ctx context.Context, brandCode string) ([]catalog.Vehicle, error)
}

// brandPayload and modelsPayload mirror the upstream wire format.
type brandPayload struct {
	Code string `json:"codigo"`
	Name string `json:"nome"`
}

type modelsPayload struct {
	Models []modelPayload `json:"modelos"`
}

type modelPayload struct {
	Code json.Number `json:"codigo"`
	Name string      `json:"nome"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	limiter    *QuotaLimiter
	breaker    *circuitbreaker.Wrapper
	logger     logger.Logger
}

func NewClient(cfg config.UpstreamConfig, limiter *QuotaLimiter, breaker *circuitbreaker.Wrapper, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultUpstreamTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = constants.DefaultUpstreamMaxRetries
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		limiter:    limiter,
		breaker:    breaker,
		logger:     log,
	}
}

func (c *Client) FetchBrands(ctx context.Context) ([]catalog.Brand, error) {
	body, err := c.get(ctx, "/carros/marcas", "brands")
	if err != nil {
		return nil, err
	}

	var payload []brandPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.ErrDecode.
			WithDetail("message", "unexpected brands payload").
			WithCause(err)
	}

	brands := make([]catalog.Brand, 0, len(payload))
	for _, p := range payload {
		brands = append(brands, catalog.NewBrand(p.Code, p.Name))
	}

	return brands, nil
}

// FetchVehiclesByBrand stamps the brand code onto every vehicle at mapping
// time, because the upstream payload does not carry it. An unknown-but-empty
// brand simply yields an empty slice.
func (c *Client) FetchVehiclesByBrand(ctx context.Context, brandCode string) ([]catalog.Vehicle, error) {
	path := fmt.Sprintf("/carros/marcas/%s/modelos", brandCode)

	body, err := c.get(ctx, path, "vehicles")
	if err != nil {
		return nil, err
	}

	var payload modelsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.ErrDecode.
			WithDetail("message", "unexpected models payload").
			WithCause(err)
	}

	vehicles := make([]catalog.Vehicle, 0, len(payload.Models))
	for _, m := range payload.Models {
		vehicles = append(vehicles, catalog.NewVehicle(m.Code.String(), brandCode, m.Name))
	}

	return vehicles, nil
}

// get acquires a quota slot, then issues the request with bounded retries.
// Each attempt consumes its own quota slot; quota rejection is reported to
// the caller rather than counted against the circuit breaker.
func (c *Client) get(ctx context.Context, path, endpoint string) ([]byte, error) {
	attempt := func() ([]byte, error) {
		if c.breaker == nil {
			return c.doRequest(ctx, path, endpoint)
		}

		result, err := c.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
			return c.doRequest(ctx, path, endpoint)
		})
		if err != nil {
			return nil, err
		}
		return result.([]byte), nil
	}

	var body []byte
	err := backoff.Retry(func() error {
		// An exhausted quota will not recover within the request retry
		// window; stop here and let the message-level policy reschedule.
		if qErr := c.limiter.Acquire(ctx); qErr != nil {
			return backoff.Permanent(qErr)
		}

		raw, opErr := attempt()
		if opErr == nil {
			body = raw
			return nil
		}

		if !pkgerrors.IsRetryable(opErr) {
			return backoff.Permanent(opErr)
		}

		metrics.RetryAttemptsTotal.WithLabelValues("upstream", endpoint).Inc()
		c.logger.WarnwCtx(ctx, "Retrying upstream request",
			"endpoint", endpoint,
			"error", opErr,
		)
		return opErr
	}, backoff.WithContext(backoff.WithMaxRetries(newRequestBackOff(), uint64(c.maxRetries)), ctx))

	if err != nil {
		return nil, err
	}
	return body, nil
}

func newRequestBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 10 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	return b
}

func (c *Client) doRequest(ctx context.Context, path, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", constants.UpstreamUserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	metrics.ObserveUpstreamRequest(endpoint, elapsed)
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.ErrUpstream.AsRetryable().WithCause(err)
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	return body, nil
}

// classifyStatus tags retryability at the point of failure: 429 and 5xx are
// transient, any other 4xx means the request itself is wrong and will never
// succeed on retry.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return pkgerrors.ErrRateLimited.
			WithDetail("status", status).
			AsRetryable()
	case status >= 500:
		return pkgerrors.ErrUpstream.
			WithDetail("status", status).
			AsRetryable()
	default:
		return pkgerrors.ErrUpstream.
			WithDetail("status", status).
			AsFatal()
	}
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pkgerrors.ErrTimeout.AsRetryable().WithCause(err)
	}
	return pkgerrors.ErrUpstream.AsRetryable().WithCause(err)
}
