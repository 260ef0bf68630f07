package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brunoSandoval210/authorization-service/internal/auth"
	"github.com/brunoSandoval210/authorization-service/internal/ids"
	"github.com/brunoSandoval210/authorization-service/internal/obs"
)

// Status of an audited action.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"

	// Anonymous is recorded when the action ran without an authenticated principal.
	Anonymous = "ANONYMOUS"
)

// Entry is one row of the activity log.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Module    string    `json:"module"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Query filters the activity log. Zero fields match everything; Date
// matches entries on the same UTC day.
type Query struct {
	Module string
	Date   time.Time
}

// Store persists activity log entries.
type Store interface {
	AppendActivity(ctx context.Context, e Entry) error
	SearchActivity(ctx context.Context, q Query, page auth.PageRequest) (auth.Page[Entry], error)
}

// LogEvent writes an audit log line enriched with request and principal context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	zf := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
	}
	if ac, ok := auth.AuthorizationFromContext(ctx); ok {
		zf = append(zf, zap.String("principal", ac.Principal().Username))
		if id := ac.Principal().UserID; id != "" {
			zf = append(zf, zap.String("user_id", id))
		}
	}
	if len(fields) > 0 {
		zf = append(zf, zap.Any("fields", fields))
	}
	obs.WithContext(ctx).Info("audit", zf...)
	return nil
}

// Recorder appends activity entries and mirrors them to the audit log.
// A failed append is logged and never surfaces to the caller.
type Recorder struct {
	store Store
	feed  Publisher
	now   func() time.Time
}

// Publisher receives every recorded entry, typically a live feed.
type Publisher interface {
	Publish(Entry)
}

type RecorderOption func(*Recorder)

// WithPublisher mirrors recorded entries to p.
func WithPublisher(p Publisher) RecorderOption {
	return func(r *Recorder) { r.feed = p }
}

func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record fills in the id, timestamp, request id and acting user, then
// persists e.
func (r *Recorder) Record(ctx context.Context, e Entry) Entry {
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.Timestamp.IsZero() {
		now := time.Now
		if r != nil && r.now != nil {
			now = r.now
		}
		e.Timestamp = now().UTC()
	}
	if e.RequestID == "" {
		e.RequestID = obs.RequestIDFromContext(ctx)
	}
	if e.UserID == "" {
		e.UserID = Anonymous
		if ac, ok := auth.AuthorizationFromContext(ctx); ok && ac.Principal().Username != "" {
			e.UserID = ac.Principal().Username
		}
	}
	if e.Status == "" {
		e.Status = StatusSuccess
	}
	if r != nil && r.store != nil {
		if err := r.store.AppendActivity(ctx, e); err != nil {
			obs.WithContext(ctx).Error("append activity log failed",
				zap.String("module", e.Module),
				zap.String("action", e.Action),
				zap.Error(err),
			)
		}
	}
	if r != nil && r.feed != nil {
		r.feed.Publish(e)
	}
	_ = LogEvent(ctx, e.Module+"."+e.Action, map[string]any{
		"status": string(e.Status),
		"user":   e.UserID,
		"ip":     e.IPAddress,
	})
	return e
}

func (r *Recorder) Search(ctx context.Context, q Query, page auth.PageRequest) (auth.Page[Entry], error) {
	if r == nil || r.store == nil {
		return auth.NewPage[Entry](nil, page, 0), nil
	}
	return r.store.SearchActivity(ctx, q, page.Normalize())
}
