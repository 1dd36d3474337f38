package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ehtisham-afzal/outline/internal/search"
)

func serve(t *testing.T, env *testEnv, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	NewHTTPServer(env.svc, "*").Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	rr := serve(t, newTestEnv(t), http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ok := decode(t, rr)["ok"]; ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestReadyEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := serve(t, env, http.MethodGet, "/api/ready", nil)
	if rr.Code != http.StatusOK || decode(t, rr)["status"] != "ready" {
		t.Fatalf("expected ready, got %d %s", rr.Code, rr.Body.String())
	}

	env.store.pingFn = func(context.Context) error { return errors.New("connection refused") }
	rr = serve(t, env, http.MethodGet, "/api/ready", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	checks := decode(t, rr)["checks"].(map[string]any)
	if db := checks["database"].(map[string]any); db["error"] != "connection refused" {
		t.Errorf("expected database error, got %v", db)
	}
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(t, env, http.MethodPost, "/api/documents", map[string]any{"markdown": "# Setup\n\nInstall it."})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	doc := decode(t, rr)["document"].(map[string]any)
	id := doc["id"].(string)

	rr = serve(t, env, http.MethodGet, "/api/documents", nil)
	if list := decode(t, rr)["documents"].([]any); len(list) != 1 {
		t.Fatalf("expected one document, got %v", list)
	}

	rr = serve(t, env, http.MethodPost, "/api/documents/"+id+"/transactions", map[string]any{
		"baseVersion": 0,
		"steps":       json.RawMessage(appendNow),
		"clientId":    "client-a",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if version := decode(t, rr)["document"].(map[string]any)["version"]; version != float64(1) {
		t.Fatalf("expected version 1, got %v", version)
	}

	rr = serve(t, env, http.MethodPost, "/api/documents/"+id+"/transactions", map[string]any{
		"baseVersion": 0,
		"steps":       json.RawMessage(appendNow),
	})
	if rr.Code != http.StatusConflict || decode(t, rr)["code"] != "VERSION_CONFLICT" {
		t.Fatalf("expected version conflict, got %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(t, env, http.MethodGet, "/api/documents/"+id+"/steps?since=0", nil)
	if steps := decode(t, rr)["steps"].([]any); len(steps) != 1 {
		t.Fatalf("expected one step batch, got %v", steps)
	}

	rr = serve(t, env, http.MethodGet, "/api/documents/"+id+"/anchors", nil)
	anchors := decode(t, rr)["anchors"].([]any)
	if len(anchors) != 1 || anchors[0].(map[string]any)["id"] != "setup" {
		t.Fatalf("unexpected anchors %v", anchors)
	}

	rr = serve(t, env, http.MethodGet, "/api/documents/"+id+"/versions/abc1234", nil)
	if rr.Code != http.StatusOK || decode(t, rr)["title"] != "Setup" {
		t.Fatalf("unexpected version response %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(t, env, http.MethodGet, "/api/documents/"+id+"/versions/deadbee", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown version, got %d", rr.Code)
	}
}

func TestTransactionValidation(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "text")

	rr := serve(t, env, http.MethodPost, "/api/documents/"+view.ID+"/transactions", map[string]any{"steps": []any{}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 without baseVersion, got %d", rr.Code)
	}

	rr = serve(t, env, http.MethodPost, "/api/documents/missing/transactions", map[string]any{"baseVersion": 0, "steps": []any{}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for missing document, got %d", rr.Code)
	}
}

func TestCommandEndpoint(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "Install it.")

	rr := serve(t, env, http.MethodGet, "/api/documents/"+view.ID+"/commands", nil)
	names := decode(t, rr)["commands"].([]any)
	found := false
	for _, name := range names {
		found = found || name == "heading"
	}
	if !found {
		t.Fatalf("expected heading command in %v", names)
	}

	rr = serve(t, env, http.MethodPost, "/api/documents/"+view.ID+"/commands", map[string]any{
		"name":      "heading",
		"attrs":     map[string]any{"level": 1},
		"selection": map[string]any{"anchor": 1, "head": 1},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	if payload["applied"] != true {
		t.Fatalf("expected applied command, got %v", payload)
	}
	if md := payload["document"].(map[string]any)["markdown"]; md != "# Install it." {
		t.Fatalf("unexpected markdown %v", md)
	}

	rr = serve(t, env, http.MethodPost, "/api/documents/"+view.ID+"/commands", map[string]any{})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 without name, got %d", rr.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "# Setup\n\nInstall it.")

	rr := serve(t, env, http.MethodGet, "/api/documents/"+view.ID+"/export?format=html", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html content type, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), `<h1 id="setup">Setup</h1>`) {
		t.Errorf("expected heading id in export, got %s", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "Setup.html") {
		t.Errorf("unexpected content disposition %q", cd)
	}

	rr = serve(t, env, http.MethodGet, "/api/documents/"+view.ID+"/export", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != view.Markdown {
		t.Fatalf("expected markdown export, got %d %q", rr.Code, rr.Body.String())
	}

	rr = serve(t, env, http.MethodGet, "/api/documents/"+view.ID+"/export?format=odt", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown format, got %d", rr.Code)
	}

	rr = serve(t, env, http.MethodGet, "/api/documents/"+view.ID+"/export?format=md&publish=true", nil)
	if rr.Code != http.StatusServiceUnavailable || decode(t, rr)["code"] != "STORAGE_UNAVAILABLE" {
		t.Fatalf("expected storage unavailable, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.search.response = search.Response{
		Results: []search.Result{{Type: search.ResultSection, ID: "doc_setup", DocumentID: "doc", Anchor: "setup"}},
		Total:   1,
		Query:   "setup",
	}

	rr := serve(t, env, http.MethodGet, "/api/search?q=setup&type=section&limit=500", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if total := decode(t, rr)["total"]; total != float64(1) {
		t.Fatalf("expected total 1, got %v", total)
	}
	q := env.search.queries[0]
	if q.FilterType != search.ResultSection || q.Limit != 100 {
		t.Fatalf("unexpected query %+v", q)
	}

	if rr = serve(t, env, http.MethodGet, "/api/search", nil); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 without q, got %d", rr.Code)
	}
	if rr = serve(t, env, http.MethodGet, "/api/search?q=x&type=user", nil); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for bad type, got %d", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	rr := serve(t, newTestEnv(t), http.MethodGet, "/api/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
