package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mssola/useragent"
	"go.uber.org/zap"

	"civilregistry/internal/auth"
	"civilregistry/internal/metrics"
	"civilregistry/internal/models"
	"civilregistry/internal/requestctx"
	"civilregistry/internal/storage"
)

var errWriteTimeout = errors.New("audit write timed out")

// Recorder writes audit entries off the request path. Writes are at most once:
// a failed write is logged and counted, never retried.
type Recorder struct {
	store   storage.AuditStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewRecorder(store storage.AuditStore, logger *zap.Logger, m *metrics.Metrics, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{
		store:   store,
		logger:  logger.Named("audit"),
		metrics: m,
		timeout: timeout,
		now:     time.Now,
	}
}

// Record schedules one entry attributed to actor and returns immediately.
// Request metadata is captured from ctx now; the write itself is detached from
// ctx cancellation.
func (r *Recorder) Record(ctx context.Context, actor auth.Identity, action Action, details string) {
	if !action.Valid() {
		r.logger.Error("rejected unknown audit action", zap.String("action", string(action)), zap.Int64("user_id", actor.UserID))
		r.metrics.IncrementAuditWriteFailures(string(action))
		return
	}
	if actor.UserID == 0 {
		r.logger.Error("rejected audit entry without actor", zap.String("action", string(action)))
		r.metrics.IncrementAuditWriteFailures(string(action))
		return
	}

	userID := actor.UserID
	entry := models.AuditLog{
		UserID:    &userID,
		Action:    string(action),
		IPAddress: requestctx.ClientIP(ctx),
		UserAgent: summarizeUserAgent(requestctx.UserAgent(ctx)),
		CreatedAt: r.now().UTC(),
	}
	if details != "" {
		entry.Details = &details
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		writeCtx, cancel := context.WithTimeoutCause(context.WithoutCancel(ctx), r.timeout, errWriteTimeout)
		defer cancel()

		if _, err := r.store.InsertAuditLog(writeCtx, entry); err != nil {
			if cause := context.Cause(writeCtx); cause != nil {
				err = errors.Join(err, cause)
			}
			r.logger.Error("audit write failed",
				zap.String("action", entry.Action),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			r.metrics.IncrementAuditWriteFailures(entry.Action)
			return
		}
		r.metrics.IncrementAuditWrites(entry.Action)
	}()
}

// Wait blocks until every scheduled write has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func summarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		name, _ := ua.Browser()
		return strings.TrimSpace("bot " + name)
	}

	name, version := ua.Browser()
	parts := []string{}
	if name != "" {
		parts = append(parts, strings.TrimSpace(name+" "+version))
	}
	if osName := ua.OS(); osName != "" {
		parts = append(parts, osName)
	}
	if ua.Mobile() {
		parts = append(parts, "mobile")
	}
	if len(parts) == 0 {
		return truncate(raw, 255)
	}
	return strings.Join(parts, "; ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
