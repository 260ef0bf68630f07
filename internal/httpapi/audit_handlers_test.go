package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/brunoSandoval210/authorization-service/internal/audit"
)

// openAuditStream connects to the live feed and consumes the greeting.
func (e *testEnv) openAuditStream(query string) *bufio.Reader {
	e.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	e.t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+"/api/audit-logs/stream"+query, nil)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.adminToken)
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		e.t.Fatalf("open stream: %v", err)
	}
	e.t.Cleanup(func() { resp.Body.Close() })
	expectStatus(e.t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		e.t.Fatalf("content type = %q", ct)
	}
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || line != ": stream started\n" {
		e.t.Fatalf("greeting = %q, %v", line, err)
	}
	return reader
}

func nextActivity(t *testing.T, reader *bufio.Reader) audit.Entry {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var e audit.Entry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			t.Fatalf("decode event %q: %v", payload, err)
		}
		return e
	}
}

func TestAuditStreamDeliversEntries(t *testing.T) {
	env := newTestEnv(t)
	reader := env.openAuditStream("")

	created := env.createModule("Billing")

	e := nextActivity(t, reader)
	if e.Module != moduleModules || e.Action != "CREATE" || e.Details != created.ID {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.UserID != "admin@example.com" || e.ID == "" {
		t.Fatalf("event missing identity: %+v", e)
	}
}

func TestAuditStreamFiltersByModule(t *testing.T) {
	env := newTestEnv(t)
	reader := env.openAuditStream("?module=roles")

	env.createModule("Billing")
	resp := env.do(http.MethodPost, "/api/roles", env.adminToken, map[string]string{"name": "SUPPORT"})
	expectStatus(t, resp, http.StatusCreated)

	e := nextActivity(t, reader)
	if e.Module != moduleRoles || e.Action != "CREATE" {
		t.Fatalf("expected the role event only, got %+v", e)
	}
}

func TestAuditStreamRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/audit-logs/stream", env.readerToken, nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = env.do(http.MethodGet, "/api/audit-logs/stream", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}
