package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brunoSandoval210/authorization-service/internal/audit"
	"github.com/brunoSandoval210/authorization-service/internal/auth"
	"github.com/brunoSandoval210/authorization-service/internal/obs"
)

const auditDateLayout = "2006-01-02"

// record appends an activity entry for a mutating request. A non-nil err
// marks the entry as a failure.
func (a *API) record(r *http.Request, module, action, subject string, err error) {
	e := audit.Entry{
		Module:    module,
		Action:    action,
		Details:   subject,
		IPAddress: clientIP(r),
		Status:    audit.StatusSuccess,
	}
	if err != nil {
		e.Status = audit.StatusFailure
		e.Details = strings.TrimSpace(subject + ": " + err.Error())
	}
	a.recorder.Record(r.Context(), e)
}

func (a *API) searchAuditLogs(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	q := audit.Query{Module: strings.TrimSpace(r.URL.Query().Get("module"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		day, err := time.Parse(auditDateLayout, raw)
		if err != nil {
			handleError(w, r, fmt.Errorf("%w: date must be YYYY-MM-DD", auth.ErrInvalidInput))
			return
		}
		q.Date = day
	}
	result, err := a.recorder.Search(r.Context(), q, page)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// streamAuditLogs pushes activity entries to the client as Server-Sent
// Events until it disconnects. The module query parameter filters entries.
func (a *API) streamAuditLogs(w http.ResponseWriter, r *http.Request) {
	if a.feed == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	module := strings.TrimSpace(r.URL.Query().Get("module"))
	ch := a.feed.Subscribe(r.Context())

	_, _ = w.Write([]byte(": stream started\n\n"))
	if err := rc.Flush(); err != nil {
		obs.WithContext(r.Context()).Warn("audit stream cannot flush", zap.Error(err))
		return
	}
	for e := range ch {
		if module != "" && !strings.EqualFold(module, e.Module) {
			continue
		}
		payload, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "id: %s\nevent: activity\ndata: %s\n\n", e.ID, payload); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
