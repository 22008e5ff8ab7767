package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"civilregistry/internal/metrics"
)

const (
	userAgent = "CivilRegistry/1.0"

	DefaultMaxBodyBytes = 10 << 20
)

var errTimeout = errors.New("upstream request timed out")

// ErrBodyTooLarge is returned instead of a truncated body when an upstream
// reply exceeds the forwarder's limit.
var ErrBodyTooLarge = errors.New("upstream response body too large")

// Response is an upstream reply captured verbatim.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Forwarder relays requests to one upstream service without interpreting
// the reply.
type Forwarder struct {
	service string
	client  *http.Client
	timeout time.Duration
	maxBody int64
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewForwarder(service string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Forwarder {
	return &Forwarder{
		service: service,
		client:  &http.Client{},
		timeout: timeout,
		maxBody: DefaultMaxBodyBytes,
		logger:  logger.Named("proxy").With(zap.String("service", service)),
		metrics: m,
	}
}

// WithMaxBody sets the largest upstream body the forwarder will relay.
func (f *Forwarder) WithMaxBody(n int64) *Forwarder {
	f.maxBody = n
	return f
}

func (f *Forwarder) Get(ctx context.Context, target string, query url.Values, header http.Header) (Response, error) {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return f.do(ctx, http.MethodGet, target, nil, header)
}

func (f *Forwarder) PostForm(ctx context.Context, target string, form url.Values) (Response, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(ctx, http.MethodPost, target, strings.NewReader(form.Encode()), header)
}

func (f *Forwarder) do(ctx context.Context, method, target string, body io.Reader, header http.Header) (Response, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeoutCause(ctx, f.timeout, errTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			err = fmt.Errorf("%w: %w", cause, err)
		}
		f.metrics.ObserveUpstream(f.service+"_proxy", "transport_error", started)
		f.logger.Warn("proxy request failed", zap.String("method", method), zap.Error(err))
		return Response{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		f.metrics.ObserveUpstream(f.service+"_proxy", "transport_error", started)
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if int64(len(b)) > f.maxBody {
		f.metrics.ObserveUpstream(f.service+"_proxy", "too_large", started)
		f.logger.Warn("proxy response exceeds limit", zap.String("method", method), zap.Int64("limit", f.maxBody))
		return Response{}, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, f.maxBody)
	}

	f.metrics.ObserveUpstream(f.service+"_proxy", statusClass(resp.StatusCode), started)
	return Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        b,
	}, nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
