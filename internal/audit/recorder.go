// Package audit records security-relevant events. Recording is best effort:
// failures are logged and never reach the caller.
package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/utilities"
)

const defaultTimeout = 5 * time.Second

type Store interface {
	Insert(ctx context.Context, e *entity.Event) error
}

// Meta identifies the client that triggered an event.
type Meta struct {
	IP        string
	UserAgent string
}

// MetaFromRequest extracts the client address and user agent of r.
func MetaFromRequest(r *http.Request) Meta {
	ua := r.UserAgent()
	if ua == "" {
		ua = "Unknown"
	}
	return Meta{IP: ClientIP(r), UserAgent: ua}
}

// ClientIP returns the first X-Forwarded-For hop if present, else the host
// part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type Recorder struct {
	store   Store
	logger  *zap.SugaredLogger
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewRecorder(store Store, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{
		store:   store,
		logger:  logger,
		timeout: defaultTimeout,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// Record writes the event synchronously, bounded by the recorder timeout.
// The caller's cancellation is ignored so a dropped client still gets audited.
func (r *Recorder) Record(ctx context.Context, userID, action, details string, meta Meta) {
	if r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	e := &entity.Event{
		ID:        utilities.NewSnowflakeID(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: r.now(),
	}
	if err := r.store.Insert(ctx, e); err != nil {
		r.logger.Warnw("audit write failed", "action", action, "user_id", userID, "err", err)
		return
	}
	r.logger.Debugw("audit event", "id", e.ID, "action", action, "user_id", userID)
}

// RecordAsync is Record on its own goroutine, detached from the request.
func (r *Recorder) RecordAsync(ctx context.Context, userID, action, details string, meta Meta) {
	if r == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Record(ctx, userID, action, details, meta)
	}()
}

// RecordRequest records an event attributed to the client of r.
func (r *Recorder) RecordRequest(req *http.Request, userID, action, details string) {
	r.Record(req.Context(), userID, action, details, MetaFromRequest(req))
}

// RecordRequestAsync is RecordRequest without waiting for the write.
func (r *Recorder) RecordRequestAsync(req *http.Request, userID, action, details string) {
	r.RecordAsync(req.Context(), userID, action, details, MetaFromRequest(req))
}

// Wait blocks until pending asynchronous writes have finished.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
