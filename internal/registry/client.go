package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"civilregistry/internal/apperr"
	"civilregistry/internal/metrics"
	"civilregistry/internal/models"
)

const (
	DefaultBaseURL = "https://api.eservice.aiocp.org/api"
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 10 << 20
	msgNoResults = "لا توجد نتائج"
)

var errTimeout = errors.New("registry request timed out")

// Paths for both registry generations, relative to the base URL. Exposed so
// the raw proxy forwards to the same endpoints.
const (
	PathByID2019   = "/Citizen/by-id2019/"
	PathByName2019 = "/Citizen/by-name2019"
	PathByID2023   = "/Citizen/by-id/"
	PathByName2023 = "/Citizen/by-name"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger.Named("registry"),
		metrics:    m,
		now:        time.Now,
	}
}

// Search validates c, queries the selected registry and returns canonical
// citizens. Records that fail conversion are dropped, not fatal.
func (c *Client) Search(ctx context.Context, criteria Criteria) (models.CitizenSearchResult, error) {
	criteria = criteria.Normalize()
	if err := criteria.Validate(); err != nil {
		return models.CitizenSearchResult{}, err
	}
	if !criteria.Source.Remote() {
		return models.CitizenSearchResult{}, apperr.Validation(msgCriteriaInvalid, map[string][]string{"source": {msgSourceInvalid}})
	}

	env, err := c.fetch(ctx, c.requestURL(criteria))
	if err != nil {
		return models.CitizenSearchResult{}, err
	}

	raw, err := env.records()
	if err != nil {
		return models.CitizenSearchResult{}, apperr.Upstream(env.Message, err)
	}

	ref := c.now()
	citizens := make([]models.Citizen, 0, len(raw))
	for i, rec := range raw {
		citizen, err := convert(criteria.Source, rec, ref)
		if err != nil {
			c.logger.Warn("dropping registry record",
				zap.Int("index", i),
				zap.Int("source", int(criteria.Source)),
				zap.Error(err),
			)
			continue
		}
		citizens = append(citizens, citizen)
	}

	message := env.Message
	if len(citizens) == 0 && message == "" {
		message = msgNoResults
	}

	return models.CitizenSearchResult{
		Citizens: citizens,
		Count:    len(citizens),
		Message:  message,
		Source:   criteria.Source,
	}, nil
}

func convert(source models.SourceYear, raw json.RawMessage, ref time.Time) (models.Citizen, error) {
	switch source {
	case models.Source2019:
		var rec record2019
		if err := json.Unmarshal(raw, &rec); err != nil {
			return models.Citizen{}, fmt.Errorf("decode 2019 record: %w", err)
		}
		return rec.toCitizen(ref)
	case models.Source2023:
		var rec record2023
		if err := json.Unmarshal(raw, &rec); err != nil {
			return models.Citizen{}, fmt.Errorf("decode 2023 record: %w", err)
		}
		return rec.toCitizen(ref)
	default:
		return models.Citizen{}, fmt.Errorf("unknown source %d", source)
	}
}

func (c *Client) requestURL(criteria Criteria) string {
	if criteria.ByID() {
		path := PathByID2023
		if criteria.Source == models.Source2019 {
			path = PathByID2019
		}
		return c.baseURL + path + url.PathEscape(criteria.NationalID)
	}

	path := PathByName2023
	if criteria.Source == models.Source2019 {
		path = PathByName2019
	}
	q := url.Values{}
	q.Set("firstName", criteria.FirstName)
	q.Set("lastName", criteria.LastName)
	if criteria.FatherName != "" {
		q.Set("fatherName", criteria.FatherName)
	}
	if criteria.GrandfatherName != "" {
		q.Set("grandfatherName", criteria.GrandfatherName)
	}
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) fetch(ctx context.Context, target string) (envelope, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, errTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return envelope{}, fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream("registry", "transport_error", started)
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, errTimeout) {
			return envelope{}, apperr.Cancelled(cause)
		}
		return envelope{}, apperr.Upstream("", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.ObserveUpstream("registry", "transport_error", started)
		return envelope{}, apperr.Upstream("", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveUpstream("registry", "http_error", started)
		return envelope{}, apperr.Upstream(env.Message, fmt.Errorf("registry returned status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		c.metrics.ObserveUpstream("registry", "decode_error", started)
		return envelope{}, apperr.Upstream("", fmt.Errorf("decode registry response: %w", decodeErr))
	}
	if !env.Success {
		c.metrics.ObserveUpstream("registry", "rejected", started)
		return envelope{}, apperr.Upstream(env.Message, fmt.Errorf("registry reported failure (code %d)", env.ErrorCode))
	}

	c.metrics.ObserveUpstream("registry", "ok", started)
	return env, nil
}
