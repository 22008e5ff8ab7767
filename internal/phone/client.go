package phone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"civilregistry/internal/apperr"
	"civilregistry/internal/metrics"
	"civilregistry/internal/models"
)

const (
	DefaultBaseURL = "https://e-gaza.com/api"
	DefaultTimeout = 15 * time.Second

	PathLogin     = "/login"
	PathFetchByID = "/fetch-by-id/"

	maxBodyBytes = 1 << 20

	msgLoginFailed   = "فشل تسجيل الدخول. يرجى المحاولة لاحقاً"
	msgRetryFailed   = "فشل جلب رقم الهاتف"
	msgNationalIDReq = "رقم الهوية مطلوب"
)

var (
	// ErrSuperseded cancels a lookup when a newer one for the same ID starts.
	ErrSuperseded = errors.New("superseded by a newer lookup")

	errTimeout      = errors.New("phone lookup timed out")
	errUnauthorized = errors.New("phone service rejected the token")
)

type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	timeout    time.Duration
	variants   FieldVariants
	logger     *zap.Logger
	metrics    *metrics.Metrics

	tokenMu    sync.Mutex
	token      string
	obtainedAt time.Time
	logins     singleflight.Group

	inflightMu sync.Mutex
	inflight   map[string]inflightLookup
	seq        uint64
}

type inflightLookup struct {
	seq    uint64
	cancel context.CancelCauseFunc
}

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	Variants *FieldVariants
}

func NewClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	variants := DefaultFieldVariants
	if cfg.Variants != nil {
		variants = *cfg.Variants
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{},
		timeout:    cfg.Timeout,
		variants:   variants,
		logger:     logger.Named("phone"),
		metrics:    m,
		inflight:   make(map[string]inflightLookup),
	}
}

// Lookup fetches phone and location data for nationalID. A 401 triggers one
// relogin and one retry. Starting a lookup cancels any in-flight lookup for
// the same ID.
func (c *Client) Lookup(ctx context.Context, nationalID string) (models.PhoneInfo, error) {
	nationalID = strings.TrimSpace(nationalID)
	if nationalID == "" {
		return models.PhoneInfo{}, apperr.Validation(msgNationalIDReq, map[string][]string{"nationalId": {msgNationalIDReq}})
	}

	ctx, done := c.begin(ctx, nationalID)
	defer done()

	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, errTimeout)
	defer cancel()

	token, err := c.ensureToken(ctx)
	if err != nil {
		return models.PhoneInfo{}, c.wrap(ctx, err, msgLoginFailed)
	}

	info, err := c.fetch(ctx, token, nationalID)
	if !errors.Is(err, errUnauthorized) {
		if err != nil {
			return models.PhoneInfo{}, c.wrap(ctx, err, apperr.MsgPhoneFallback)
		}
		return info, nil
	}

	c.invalidate(token)
	token, err = c.ensureToken(ctx)
	if err != nil {
		return models.PhoneInfo{}, c.wrap(ctx, err, msgLoginFailed)
	}

	info, err = c.fetch(ctx, token, nationalID)
	if err != nil {
		return models.PhoneInfo{}, c.wrap(ctx, err, msgRetryFailed)
	}
	return info, nil
}

func (c *Client) begin(ctx context.Context, nationalID string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	c.inflightMu.Lock()
	if prev, ok := c.inflight[nationalID]; ok {
		prev.cancel(ErrSuperseded)
	}
	c.seq++
	seq := c.seq
	c.inflight[nationalID] = inflightLookup{seq: seq, cancel: cancel}
	c.inflightMu.Unlock()

	return ctx, func() {
		c.inflightMu.Lock()
		if cur, ok := c.inflight[nationalID]; ok && cur.seq == seq {
			delete(c.inflight, nationalID)
		}
		c.inflightMu.Unlock()
		cancel(nil)
	}
}

// wrap classifies err: an ended context becomes Cancelled with its cause,
// anything else an upstream failure.
func (c *Client) wrap(ctx context.Context, err error, fallback string) error {
	if ctx.Err() != nil {
		return apperr.Cancelled(context.Cause(ctx))
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Upstream(fallback, err)
}

func (c *Client) cachedToken() string {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.token
}

// invalidate clears the cached token only if it is still the one that was
// rejected, so a token refreshed by a concurrent lookup survives.
func (c *Client) invalidate(rejected string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token == rejected {
		c.token = ""
	}
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if token := c.cachedToken(); token != "" {
		return token, nil
	}

	ch := c.logins.DoChan("login", func() (any, error) {
		if token := c.cachedToken(); token != "" {
			return token, nil
		}
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		token, err := c.login(loginCtx)
		if err != nil {
			return "", err
		}
		c.tokenMu.Lock()
		c.token = token
		c.obtainedAt = time.Now()
		c.tokenMu.Unlock()
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", context.Cause(ctx)
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) login(ctx context.Context) (string, error) {
	started := time.Now()
	c.metrics.IncrementPhoneTokenRefreshes()

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathLogin, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream("phone_login", "transport_error", started)
		return "", fmt.Errorf("phone login: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.ObserveUpstream("phone_login", "transport_error", started)
		return "", fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveUpstream("phone_login", "http_error", started)
		return "", fmt.Errorf("phone login returned status %d", resp.StatusCode)
	}

	token, err := ExtractToken(body)
	if err != nil {
		c.metrics.ObserveUpstream("phone_login", "decode_error", started)
		return "", err
	}
	c.metrics.ObserveUpstream("phone_login", "ok", started)
	c.logger.Info("obtained phone service token")
	return token, nil
}

// ExtractToken reads the token from a login response: one of token,
// access_token, data.token or accessToken in a JSON object, or the bare body.
func ExtractToken(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", errors.New("empty login response")
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body), nil
	}

	switch v := decoded.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s, nil
		}
	case map[string]any:
		if s, ok := text(v["token"]); ok {
			return s, nil
		}
		if s, ok := text(v["access_token"]); ok {
			return s, nil
		}
		if data, ok := v["data"].(map[string]any); ok {
			if s, ok := text(data["token"]); ok {
				return s, nil
			}
		}
		if s, ok := text(v["accessToken"]); ok {
			return s, nil
		}
	}
	return "", errors.New("no token in login response")
}

func (c *Client) fetch(ctx context.Context, token, nationalID string) (models.PhoneInfo, error) {
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathFetchByID+url.PathEscape(nationalID), nil)
	if err != nil {
		return models.PhoneInfo{}, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream("phone", "transport_error", started)
		return models.PhoneInfo{}, fmt.Errorf("phone fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.metrics.ObserveUpstream("phone", "unauthorized", started)
		return models.PhoneInfo{}, errUnauthorized
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.ObserveUpstream("phone", "transport_error", started)
		return models.PhoneInfo{}, fmt.Errorf("read fetch response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveUpstream("phone", "http_error", started)
		return models.PhoneInfo{}, fmt.Errorf("phone fetch returned status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		c.metrics.ObserveUpstream("phone", "decode_error", started)
		return models.PhoneInfo{}, fmt.Errorf("decode fetch response: %w", err)
	}

	c.metrics.ObserveUpstream("phone", "ok", started)
	return c.variants.Normalize(decoded), nil
}
