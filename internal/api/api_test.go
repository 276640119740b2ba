package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starford/onto/internal/service"
	"github.com/starford/onto/internal/sse"
	"github.com/starford/onto/internal/storage"
	"github.com/starford/onto/internal/testutil"
)

// testEnv sets up a fixture store, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*storage.FS, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*storage.FS, http.Handler) {
	t.Helper()
	_, store := testutil.TestStore(t, testutil.Fixture())
	db := testutil.TestDB(t)

	svc := service.New(store,
		service.WithIndex(db),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	router := NewRouter(svc, authEnabled, token, sseHandler, GraphLimits{DefaultDepth: 1, MaxDepth: 3})
	return store, router
}

func do(t *testing.T, router http.Handler, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestValidateEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/validate?strict=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("validate status = %d", w.Code)
	}
	var resp ValidateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Passed || !resp.Strict {
		t.Errorf("passed=%v strict=%v, errors=%v", resp.Passed, resp.Strict, resp.Report.Errors)
	}
	if resp.Report.Counts.Instances != 3 {
		t.Errorf("instances = %d, want 3", resp.Report.Counts.Instances)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q="+url.QueryEscape("(:Person)-[:MEMBER_OF].role->: lead"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(resp.Results))
	}
	hit := resp.Results[0]
	if hit.Kind != service.HitRelation || hit.Edge == nil || hit.Edge.To != "zulu" {
		t.Errorf("unexpected hit %+v", hit)
	}
}

func TestSearchSyntaxError(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q="+url.QueryEscape("jdoe AND"), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Position == nil {
		t.Errorf("syntax error should carry a position: %s", w.Body.String())
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/graph/jdoe?depth=0", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("graph status = %d", w.Code)
	}
	var resp GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Depth != 0 || len(resp.Steps) != 2 {
		t.Errorf("depth=%d steps=%v, want jdoe's 2 direct edges", resp.Depth, resp.Steps)
	}

	w = do(t, router, http.MethodGet, "/graph/jdoe?depth=99", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Depth != 3 {
		t.Errorf("depth = %d, want clamp to 3", resp.Depth)
	}

	if w := do(t, router, http.MethodGet, "/graph/ghost", nil); w.Code != http.StatusNotFound {
		t.Errorf("ghost = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/graph/jdoe?depth=-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("negative depth = %d, want 400", w.Code)
	}
}

func TestListAndGetInstances(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/instances?class=Person&limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list InstanceListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || len(list.Instances) != 1 || list.Instances[0].ID != "asmith" {
		t.Errorf("list = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/instances/jdoe", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var d InstanceDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Class != "Person" || len(d.Outgoing) != 2 || len(d.Backlinks) != 1 {
		t.Errorf("detail = %+v", d)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+d.Checksum+`"` {
		t.Errorf("etag = %q", etag)
	}

	if w := do(t, router, http.MethodGet, "/instances/ghost", nil); w.Code != http.StatusNotFound {
		t.Errorf("ghost = %d, want 404", w.Code)
	}
}

func TestClassCounts(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/classes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ClassCountsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Classes) != 2 || resp.Classes[0].Class != "Person" || resp.Classes[0].Count != 2 {
		t.Errorf("classes = %+v", resp.Classes)
	}
}

func TestCreateInstance(t *testing.T) {
	store, router := testEnv(t, "")

	req := CreateInstanceRequest{
		ID:         "bob",
		Class:      "Person",
		Components: map[string]map[string]any{"contact": {"email": "bob@company.com"}},
	}
	w := do(t, router, http.MethodPost, "/instances", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	if ok, _ := store.Exists("default/Person/bob.yaml"); !ok {
		t.Error("instance file not written")
	}

	if w := do(t, router, http.MethodPost, "/instances", req); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateInstance_Rejected(t *testing.T) {
	store, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/instances", CreateInstanceRequest{ID: "carol", Class: "Person"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp ValidationFailedResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Report == nil || len(resp.Report.Errors) == 0 {
		t.Errorf("rejection should carry the report: %s", w.Body.String())
	}
	if ok, _ := store.Exists("default/Person/carol.yaml"); ok {
		t.Error("rejected file should be rolled back")
	}

	if w := do(t, router, http.MethodPost, "/instances", CreateInstanceRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty request = %d, want 400", w.Code)
	}
}

func TestDeleteInstance(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/instances", CreateInstanceRequest{ID: "ops", Class: "Team"}); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/instances/ops", nil); w.Code != http.StatusOK {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/instances/ops", nil); w.Code != http.StatusNotFound {
		t.Errorf("deleted instance = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/instances/asmith", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("delete referenced instance = %d, want 422", w.Code)
	}
}

func TestWriteFileWithOptimisticLocking(t *testing.T) {
	store, router := testEnv(t, "")

	current, err := store.Read("people/asmith.yaml")
	if err != nil {
		t.Fatal(err)
	}
	updated := strings.Replace(testutil.AsmithYAML, "alice@company.com", "alice@corp.example", 1)
	body := WriteFileRequest{Content: updated}

	w := do(t, router, http.MethodPut, "/files/people/asmith.yaml", body, "If-Match", `"`+storage.Checksum(current)+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("write with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Same checksum is stale now.
	w = do(t, router, http.MethodPut, "/files/people/asmith.yaml", body, "If-Match", storage.Checksum(current))
	if w.Code != http.StatusConflict {
		t.Errorf("stale checksum = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPut, "/files/people%2Fasmith.yaml", WriteFileRequest{Content: updated})
	if w.Code != http.StatusOK {
		t.Errorf("encoded path without If-Match = %d, want 200", w.Code)
	}

	if w := do(t, router, http.MethodPut, "/files/people/asmith.yaml", WriteFileRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty content = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/validate", nil, "Authorization", "Bearer secret123")
	if w.Code != http.StatusOK {
		t.Errorf("authed validate = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/instances", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/instances", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	b := sse.NewBroker(100 * time.Millisecond)
	defer b.Close()
	_, router := testEnvWithSSE(t, true, "secret", b)

	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	b := sse.NewBroker(100 * time.Millisecond)
	defer b.Close()
	_, router := testEnvWithSSE(t, true, "tok", b)

	b.PublishValidation(map[string]bool{"valid": true})
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
	if !strings.Contains(w.Body.String(), "event: validation.completed") {
		t.Errorf("new subscriber should receive the last validation, got %q", w.Body.String())
	}
}
