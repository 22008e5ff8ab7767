package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"civilregistry/internal/auth"
	"civilregistry/internal/metrics"
	"civilregistry/internal/models"
	"civilregistry/internal/requestctx"
	"civilregistry/internal/storage"
	"civilregistry/internal/storage/sqlite"
)

// fakeAuditStore records inserts and can be made to fail or block.
type fakeAuditStore struct {
	storage.AuditStore
	mu      sync.Mutex
	entries []models.AuditLog
	err     error
	block   chan struct{}
}

func (f *fakeAuditStore) InsertAuditLog(ctx context.Context, entry models.AuditLog) (models.AuditLog, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return models.AuditLog{}, ctx.Err()
		}
	}
	if f.err != nil {
		return models.AuditLog{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeAuditStore) snapshot() []models.AuditLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AuditLog(nil), f.entries...)
}

var alice = auth.Identity{UserID: 2, Username: "alice", IsActive: true}

func TestRecordWritesEntry(t *testing.T) {
	store := &fakeAuditStore{}
	m := metrics.New(prometheus.NewRegistry())
	r := NewRecorder(store, zap.NewNop(), m, time.Second)

	ctx := requestctx.WithClientMetadata(context.Background(), "10.1.2.3",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	r.Record(ctx, alice, ActionSearch, `{"nationalId":"123"}`)
	r.Wait()

	entries := store.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "SEARCH", entries[0].Action)
	assert.Equal(t, int64(2), *entries[0].UserID)
	assert.Equal(t, `{"nationalId":"123"}`, *entries[0].Details)
	assert.Equal(t, "10.1.2.3", entries[0].IPAddress)
	assert.Contains(t, entries[0].UserAgent, "Chrome")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWrites.WithLabelValues("SEARCH")))
}

func TestRecordEmptyDetailsIsNull(t *testing.T) {
	store := &fakeAuditStore{}
	r := NewRecorder(store, zap.NewNop(), nil, time.Second)

	r.Record(context.Background(), alice, ActionLogout, "")
	r.Wait()

	entries := store.snapshot()
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Details)
}

func TestRecordRejectsUnknownActionAndAnonymousActor(t *testing.T) {
	store := &fakeAuditStore{}
	m := metrics.New(prometheus.NewRegistry())
	r := NewRecorder(store, zap.NewNop(), m, time.Second)

	r.Record(context.Background(), alice, Action("DELETE_EVERYTHING"), "")
	r.Record(context.Background(), auth.Identity{}, ActionLogin, "")
	r.Wait()

	assert.Empty(t, store.snapshot())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteFailures.WithLabelValues("DELETE_EVERYTHING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteFailures.WithLabelValues("LOGIN")))
}

func TestRecordFailureIsCountedNotReturned(t *testing.T) {
	store := &fakeAuditStore{err: errors.New("disk full")}
	m := metrics.New(prometheus.NewRegistry())
	r := NewRecorder(store, zap.NewNop(), m, time.Second)

	r.Record(context.Background(), alice, ActionLogin, "")
	r.Wait()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteFailures.WithLabelValues("LOGIN")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AuditWrites.WithLabelValues("LOGIN")))
}

func TestRecordDoesNotBlockCaller(t *testing.T) {
	store := &fakeAuditStore{block: make(chan struct{})}
	r := NewRecorder(store, zap.NewNop(), nil, time.Second)

	done := make(chan struct{})
	go func() {
		r.Record(context.Background(), alice, ActionSearch, "{}")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Record blocked on the store")
	}

	close(store.block)
	r.Wait()
	assert.Len(t, store.snapshot(), 1)
}

func TestRecordSurvivesRequestCancellation(t *testing.T) {
	store := &fakeAuditStore{}
	r := NewRecorder(store, zap.NewNop(), nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Record(ctx, alice, ActionLogout, "")
	r.Wait()

	assert.Len(t, store.snapshot(), 1)
}

func TestRecordTimesOut(t *testing.T) {
	store := &fakeAuditStore{block: make(chan struct{})}
	m := metrics.New(prometheus.NewRegistry())
	r := NewRecorder(store, zap.NewNop(), m, 20*time.Millisecond)

	r.Record(context.Background(), alice, ActionSearch, "{}")
	r.Wait()

	assert.Empty(t, store.snapshot())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteFailures.WithLabelValues("SEARCH")))
}

func TestRecordPersistsToSQLite(t *testing.T) {
	store, err := sqlite.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	u, err := store.CreateUser(ctx, models.User{Username: "alice", DisplayName: "alice", PasswordHash: "h", IsActive: true})
	require.NoError(t, err)

	r := NewRecorder(store, zap.NewNop(), nil, time.Second)
	actor := auth.Identity{UserID: u.ID, Username: u.Username}
	for i := 0; i < 5; i++ {
		r.Record(ctx, actor, ActionNavigate, "/dashboard")
	}
	r.Wait()

	svc := NewService(store, store)
	page, err := svc.ListForUser(ctx, u.ID, models.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, "alice", *page.Data[0].Username)

	_, err = svc.ListForUser(ctx, 999, models.PageRequest{})
	assert.Error(t, err)
}

func TestParamDetails(t *testing.T) {
	got := ParamDetails(map[string]string{
		"lastName":   "Haddad",
		"firstName":  "Omar",
		"fatherName": "",
		"source":     "2023",
	})
	assert.Equal(t, `{"firstName":"Omar","lastName":"Haddad","source":"2023"}`, got)
	assert.Equal(t, "{}", ParamDetails(nil))
}

func TestParseClientAction(t *testing.T) {
	a, ok := ParseClientAction(" navigate ")
	assert.True(t, ok)
	assert.Equal(t, ActionNavigate, a)

	_, ok = ParseClientAction("CREATE_USER")
	assert.False(t, ok)
	_, ok = ParseClientAction("SEARCH")
	assert.False(t, ok)
}
