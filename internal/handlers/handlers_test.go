package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"civilregistry/internal/audit"
	"civilregistry/internal/auth"
	"civilregistry/internal/citizens"
	"civilregistry/internal/metrics"
	"civilregistry/internal/middleware"
	"civilregistry/internal/models"
	"civilregistry/internal/phone"
	"civilregistry/internal/proxy"
	"civilregistry/internal/registry"
	"civilregistry/internal/search"
	"civilregistry/internal/storage/sqlite"
)

const adminPassword = "admin123"

type testServer struct {
	handler       http.Handler
	store         *sqlite.Store
	users         *auth.UserService
	recorder      *audit.Recorder
	registryCalls atomic.Int32
	registry      *httptest.Server
	phone         *httptest.Server
}

type testOption func(*testOptions)

type testOptions struct {
	proxyRegistryURL string
	proxyMaxBody     int64
}

// withProxyRegistry points the raw registry proxy at a different upstream
// than the search client.
func withProxyRegistry(u string) testOption {
	return func(o *testOptions) { o.proxyRegistryURL = u }
}

func withProxyMaxBody(n int64) testOption {
	return func(o *testOptions) { o.proxyMaxBody = n }
}

func newTestServer(t *testing.T, opts ...testOption) *testServer {
	t.Helper()
	ts := &testServer{}
	var o testOptions
	for _, opt := range opts {
		opt(&o)
	}

	ts.registry = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.registryCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, registry.PathByID2019) {
			_, _ = w.Write([]byte(`{"Success":true,"Message":"","Data":{"CI_ID_NUM":"400000001","CI_FIRST_ARB":"محمد","CI_FAMILY_ARB":"علي","CI_SEX_CD":"ذكر","CI_BIRTH_DT":"1990-01-01"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"Success":true,"Message":"لا توجد نتائج","Data":[]}`))
	}))
	t.Cleanup(ts.registry.Close)

	ts.phone = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == phone.PathLogin:
			_, _ = w.Write([]byte(`{"token":"phone-token"}`))
		case strings.HasPrefix(r.URL.Path, phone.PathFetchByID):
			if r.Header.Get("Authorization") != "Bearer phone-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"data":{"mobile":"0599000000","city":"غزة"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.phone.Close)

	store, err := sqlite.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ts.store = store

	logger := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())

	ts.users = auth.NewUserService(store)
	created, err := ts.users.EnsureDefaultAdmin(context.Background(), "admin", adminPassword)
	require.NoError(t, err)
	require.True(t, created)

	tokens := auth.NewTokenManager("test-secret", "civilregistry-test", time.Hour)
	sessions := auth.NewSessionManager("0123456789abcdef0123456789abcdef", 3600, false)
	revoked := auth.NewMemoryRevocationList()
	ts.recorder = audit.NewRecorder(store, logger, m, time.Second)

	regClient := registry.NewClient(ts.registry.URL, time.Second, logger, m)
	phoneClient := phone.NewClient(phone.Config{
		BaseURL:  ts.phone.URL,
		Username: "svc",
		Password: "svc",
		Timeout:  time.Second,
	}, logger, m)
	localCitizens := citizens.NewService(store)
	orchestrator := search.NewOrchestrator(regClient, localCitizens, phoneClient, ts.recorder)

	proxyRegistryURL := ts.registry.URL
	if o.proxyRegistryURL != "" {
		proxyRegistryURL = o.proxyRegistryURL
	}
	registryFwd := proxy.NewForwarder("registry", time.Second, logger, m)
	if o.proxyMaxBody > 0 {
		registryFwd.WithMaxBody(o.proxyMaxBody)
	}

	ts.handler = NewRouter(Routes{
		Auth:     NewAuthHandler(ts.users, tokens, sessions, revoked, ts.recorder, logger),
		Users:    NewUserHandler(ts.users, ts.recorder, logger),
		Citizens: NewCitizenHandler(orchestrator, localCitizens, ts.recorder, logger),
		Logs:     NewLogHandler(audit.NewService(store, store), ts.recorder, logger),
		Proxy: NewProxyHandler(proxyRegistryURL, ts.phone.URL,
			registryFwd,
			proxy.NewForwarder("phone", time.Second, logger, m),
			ts.recorder, logger),
		Health:  NewHealthHandler("test"),
		Gate:    middleware.NewAuthMiddleware(tokens, sessions, revoked, ts.users, logger),
		Logger:  logger,
		Metrics: m,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handlers-test")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (ts *testServer) createUser(t *testing.T, username string, active bool) models.User {
	t.Helper()
	u, err := ts.users.Create(context.Background(), auth.CreateUserInput{
		Username: username,
		Password: "secret1",
		IsActive: &active,
	})
	require.NoError(t, err)
	return u
}

// entries waits for pending audit writes and returns the trail, newest first.
func (ts *testServer) entries(t *testing.T, action audit.Action) []models.AuditLog {
	t.Helper()
	ts.recorder.Wait()
	logs, _, err := ts.store.ListAuditLogs(context.Background(), models.PageRequest{Page: 1, PerPage: 100})
	require.NoError(t, err)
	var out []models.AuditLog
	for _, l := range logs {
		if l.Action == string(action) {
			out = append(out, l)
		}
	}
	return out
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
