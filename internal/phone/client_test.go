package phone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"civilregistry/internal/apperr"
)

// fakePhoneService issues tokens "t1", "t2", ... and accepts only the tokens
// listed in valid.
type fakePhoneService struct {
	logins  atomic.Int32
	fetches atomic.Int32
	valid   func(token string) bool
	body    string
	block   chan struct{}
}

func (f *fakePhoneService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "svc", r.PostFormValue("username"))
		assert.Equal(t, "pw", r.PostFormValue("password"))
		n := f.logins.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "t" + string(rune('0'+n))})
	})
	mux.HandleFunc("/fetch-by-id/", func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		if f.block != nil && strings.HasSuffix(r.URL.Path, "/slow") {
			select {
			case <-f.block:
			case <-r.Context().Done():
				return
			}
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !f.valid(token) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.body))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakePhoneService, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Username: "svc", Password: "pw", Timeout: timeout}, zap.NewNop(), nil)
}

const okBody = `{"status":true,"code":200,"data":{"mobile":" 0599123456 ","city":"غزة","area":"","governorate":"غزة"}}`

func TestLookupLogsInOnceAndCachesToken(t *testing.T) {
	f := &fakePhoneService{valid: func(string) bool { return true }, body: okBody}
	c := newTestClient(t, f, time.Second)

	for i := 0; i < 3; i++ {
		info, err := c.Lookup(context.Background(), "400123456")
		require.NoError(t, err)
		require.NotNil(t, info.Mobile)
		assert.Equal(t, "0599123456", *info.Mobile)
		assert.Equal(t, "غزة", *info.City)
		assert.Nil(t, info.Area)
	}
	assert.Equal(t, int32(1), f.logins.Load())
	assert.Equal(t, int32(3), f.fetches.Load())
}

func TestLookupRelogsInOnceOn401(t *testing.T) {
	f := &fakePhoneService{valid: func(tok string) bool { return tok == "t2" }, body: okBody}
	c := newTestClient(t, f, time.Second)

	info, err := c.Lookup(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "0599123456", *info.Mobile)
	assert.Equal(t, int32(2), f.logins.Load())
	assert.Equal(t, int32(2), f.fetches.Load())
}

func TestLookupSecond401IsSingleUpstreamError(t *testing.T) {
	f := &fakePhoneService{valid: func(string) bool { return false }, body: okBody}
	c := newTestClient(t, f, time.Second)

	_, err := c.Lookup(context.Background(), "1")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeUpstream, appErr.Code)
	assert.Equal(t, msgRetryFailed, appErr.Message)
	assert.Equal(t, int32(2), f.logins.Load())
	assert.Equal(t, int32(2), f.fetches.Load())
}

func TestConcurrentReloginsCollapse(t *testing.T) {
	f := &fakePhoneService{valid: func(tok string) bool { return tok != "t1" }, body: okBody}
	c := newTestClient(t, f, 2*time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Lookup(context.Background(), "id-"+string(rune('a'+i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(2), f.logins.Load())
}

func TestLookupSupersededBySameID(t *testing.T) {
	f := &fakePhoneService{valid: func(string) bool { return true }, body: okBody, block: make(chan struct{})}
	c := newTestClient(t, f, 2*time.Second)
	_, err := c.Lookup(context.Background(), "warmup")
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := c.Lookup(context.Background(), "slow")
		first <- err
	}()
	require.Eventually(t, func() bool { return f.fetches.Load() == 2 }, time.Second, 5*time.Millisecond)

	other := make(chan error, 1)
	go func() {
		_, err := c.Lookup(context.Background(), "other")
		other <- err
	}()
	require.NoError(t, <-other)

	second := make(chan error, 1)
	go func() {
		_, err := c.Lookup(context.Background(), "slow")
		second <- err
	}()

	err = <-first
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeCancelled, appErr.Code)
	assert.ErrorIs(t, err, ErrSuperseded)

	close(f.block)
	require.NoError(t, <-second)
}

func TestLookupTimeoutIsCancelled(t *testing.T) {
	f := &fakePhoneService{valid: func(string) bool { return true }, body: okBody, block: make(chan struct{})}
	defer close(f.block)
	c := newTestClient(t, f, 50*time.Millisecond)

	_, err := c.Lookup(context.Background(), "slow")
	assert.Equal(t, apperr.CodeCancelled, apperr.CodeOf(err))
	assert.ErrorIs(t, err, errTimeout)
}

func TestLookupRequiresID(t *testing.T) {
	f := &fakePhoneService{valid: func(string) bool { return true }, body: okBody}
	c := newTestClient(t, f, time.Second)

	_, err := c.Lookup(context.Background(), "  ")
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Equal(t, int32(0), f.logins.Load())
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		`{"token":"a"}`:                  "a",
		`{"access_token":"b"}`:           "b",
		`{"data":{"token":"c"}}`:         "c",
		`{"accessToken":"d"}`:            "d",
		`"e"`:                            "e",
		"plain-token\n":                  "plain-token",
		`{"token":"","accessToken":"f"}`: "f",
	}
	for body, want := range cases {
		got, err := ExtractToken([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, want, got, body)
	}

	_, err := ExtractToken([]byte(`{"message":"ok"}`))
	assert.Error(t, err)
	_, err = ExtractToken(nil)
	assert.Error(t, err)
}

func TestNormalizeVariants(t *testing.T) {
	decode := func(s string) any {
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		var v any
		require.NoError(t, dec.Decode(&v))
		return v
	}

	info := DefaultFieldVariants.Normalize(decode(`{"MobileNumber":970599123456,"CITY":"خانيونس","Area":"  ","governorate":"الجنوب"}`))
	require.NotNil(t, info.Mobile)
	assert.Equal(t, "970599123456", *info.Mobile)
	assert.Equal(t, "خانيونس", *info.City)
	assert.Nil(t, info.Area)
	assert.Equal(t, "الجنوب", *info.Governorate)

	info = DefaultFieldVariants.Normalize(decode(`{"data":"not an object","phone":"059"}`))
	assert.Equal(t, "059", *info.Mobile)

	info = DefaultFieldVariants.Normalize(decode(`[]`))
	assert.Nil(t, info.Mobile)

	custom := FieldVariants{Mobile: []string{"tel"}}
	info = custom.Normalize(decode(`{"tel":"1","mobile":"2"}`))
	assert.Equal(t, "1", *info.Mobile)
}
