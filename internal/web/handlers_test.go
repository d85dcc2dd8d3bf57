package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/db"
	"github.com/hpungsan/memoreal/internal/identity"
	"github.com/hpungsan/memoreal/internal/ops"
)

type testViewer struct {
	h      *Handlers
	author *identity.Keypair
	now    *int64
}

func setupTest(t *testing.T) *testViewer {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	author, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	now := int64(1690000000)
	clk := clock.Func(func() int64 { return now })

	return &testViewer{
		h:      NewHandlers(database, clk, NewRenderer(templateSub, "test")),
		author: author,
		now:    &now,
	}
}

// seedCapsule stores a capsule and returns its ID.
func seedCapsule(t *testing.T, v *testViewer, input ops.CreateInput) string {
	t.Helper()
	input.Authority = v.author.Authority()
	out, err := ops.Create(context.Background(), v.h.db, nil, v.h.clock, input)
	if err != nil {
		t.Fatalf("seed capsule %q: %v", input.Title, err)
	}
	return out.ID
}

func seedTimeLocked(t *testing.T, v *testViewer) string {
	t.Helper()
	unlockAt := int64(1700000000)
	location := "Seoul"
	return seedCapsule(t, v, ops.CreateInput{
		Title:    "Graduation",
		Message:  "**Congratulations!**",
		Type:     "time_locked",
		UnlockAt: &unlockAt,
		Location: &location,
	})
}

func getDetail(v *testViewer, id, query string, headers map[string]string) *httptest.ResponseRecorder {
	target := "/capsules/" + id
	if query != "" {
		target += "?" + query
	}
	req := httptest.NewRequest("GET", target, nil)
	req.SetPathValue("id", id)
	for k, val := range headers {
		req.Header.Set(k, val)
	}
	rec := httptest.NewRecorder()
	v.h.HandleDetail(rec, req)
	return rec
}

// --- HandleList ---

func TestHandleList_Default(t *testing.T) {
	v := setupTest(t)
	seedCapsule(t, v, ops.CreateInput{Title: "alpha", Message: "hidden body"})

	req := httptest.NewRequest("GET", "/capsules", nil)
	rec := httptest.NewRecorder()
	v.h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "alpha") {
		t.Error("expected capsule title 'alpha' in response")
	}
	if !strings.Contains(body, "Capsules") {
		t.Error("expected page title 'Capsules' in response")
	}
	if strings.Contains(body, "hidden body") {
		t.Error("list page must not include the message")
	}
}

func TestHandleList_TypeFilter(t *testing.T) {
	v := setupTest(t)
	seedTimeLocked(t, v)
	seedCapsule(t, v, ops.CreateInput{Title: "plain"})

	req := httptest.NewRequest("GET", "/capsules?type=time_locked", nil)
	rec := httptest.NewRecorder()
	v.h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Graduation") {
		t.Error("expected time-locked capsule in filtered results")
	}
	if strings.Contains(body, ">plain<") {
		t.Error("did not expect general capsule in filtered results")
	}
}

func TestHandleList_Empty(t *testing.T) {
	v := setupTest(t)

	req := httptest.NewRequest("GET", "/capsules", nil)
	rec := httptest.NewRecorder()
	v.h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No capsules yet") {
		t.Error("expected empty state message")
	}
}

func TestHandleList_HtmxReturnsContentOnly(t *testing.T) {
	v := setupTest(t)
	seedCapsule(t, v, ops.CreateInput{Title: "alpha"})

	req := httptest.NewRequest("GET", "/capsules", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	v.h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("htmx response should not contain full layout")
	}
	if !strings.Contains(body, "alpha") {
		t.Error("expected capsule in htmx content")
	}
}

func TestHandleList_JSON(t *testing.T) {
	v := setupTest(t)
	seedCapsule(t, v, ops.CreateInput{Title: "alpha"})

	req := httptest.NewRequest("GET", "/capsules", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	v.h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ops.ListOutput
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Title != "alpha" {
		t.Errorf("items = %+v", resp.Items)
	}
}

func TestHandleList_InvalidAuthor(t *testing.T) {
	v := setupTest(t)

	req := httptest.NewRequest("GET", "/capsules?author=0OIl", nil)
	rec := httptest.NewRecorder()
	v.h.HandleList(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleList_InvalidLimitFallsBack(t *testing.T) {
	v := setupTest(t)

	req := httptest.NewRequest("GET", "/capsules?limit=abc", nil)
	rec := httptest.NewRecorder()
	v.h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// --- HandleDetail ---

func TestHandleDetail_GeneralShowsContents(t *testing.T) {
	v := setupTest(t)
	id := seedCapsule(t, v, ops.CreateInput{Title: "Hello", Message: "# Dear future", MediaReference: "ipfs://bafy"})

	rec := getDetail(v, id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Dear future</h1>") {
		t.Error("expected rendered markdown message")
	}
	if !strings.Contains(body, "ipfs://bafy") {
		t.Error("expected media reference")
	}
}

func TestHandleDetail_LockedHidesContents(t *testing.T) {
	v := setupTest(t)
	id := seedTimeLocked(t, v)

	*v.now = 1699999999
	rec := getDetail(v, id, "location=Seoul", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "Congratulations") {
		t.Error("locked capsule leaked its message")
	}
	if !strings.Contains(body, "locked until") {
		t.Error("expected sealed notice")
	}
	if !strings.Contains(body, "Graduation") {
		t.Error("expected header to be shown")
	}
}

func TestHandleDetail_UnlockedWithLocation(t *testing.T) {
	v := setupTest(t)
	id := seedTimeLocked(t, v)

	*v.now = 1700000001
	rec := getDetail(v, id, "location=Seoul", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<strong>Congratulations!</strong>") {
		t.Error("expected rendered message after unlock")
	}

	rec = getDetail(v, id, "location=Busan", nil)
	body := rec.Body.String()
	if strings.Contains(body, "Congratulations") {
		t.Error("mismatched location leaked the message")
	}
	if !strings.Contains(body, "does not match") {
		t.Error("expected location mismatch notice")
	}
}

func TestHandleDetail_EmptyLocationIsPresented(t *testing.T) {
	v := setupTest(t)
	unlockAt := int64(1700000000)
	empty := ""
	id := seedCapsule(t, v, ops.CreateInput{
		Title:    "Nowhere",
		Message:  "found it",
		Type:     "time_locked",
		UnlockAt: &unlockAt,
		Location: &empty,
	})
	seoul := seedTimeLocked(t, v)

	*v.now = 1700000001
	tests := []struct {
		name   string
		id     string
		query  string
		opened bool
	}{
		{"empty matches empty", id, "location=", true},
		{"other does not match empty", id, "location=Seoul", false},
		{"absent is not checked", id, "", true},
		{"empty does not match Seoul", seoul, "location=", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := getDetail(v, tt.id, tt.query, map[string]string{"Accept": "application/json"})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode JSON: %v", err)
			}
			if got := resp["content"] != nil; got != tt.opened {
				t.Errorf("opened = %v, want %v (sealed = %v)", got, tt.opened, resp["sealed"])
			}
		})
	}
}

func TestLocationParam(t *testing.T) {
	if got := locationParam(httptest.NewRequest("GET", "/capsules/x", nil)); got != nil {
		t.Errorf("absent location = %q, want nil", *got)
	}
	got := locationParam(httptest.NewRequest("GET", "/capsules/x?location=", nil))
	if got == nil || *got != "" {
		t.Errorf("empty location = %v, want pointer to empty string", got)
	}
}

func TestHandleDetail_JSON(t *testing.T) {
	v := setupTest(t)
	id := seedTimeLocked(t, v)

	*v.now = 1699999999
	rec := getDetail(v, id, "", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["content"] != nil {
		t.Errorf("content = %v, want null while locked", resp["content"])
	}
	sealed, ok := resp["sealed"].(map[string]any)
	if !ok || sealed["code"] != "CAPSULE_LOCKED" {
		t.Errorf("sealed = %v", resp["sealed"])
	}
	status := resp["status"].(map[string]any)
	if status["unlockable"] != false {
		t.Errorf("unlockable = %v", status["unlockable"])
	}
	if _, ok := status["location"]; ok {
		t.Error("status must not reveal the location")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	v := setupTest(t)

	rec := getDetail(v, "01ARZ3NDEKTSV4RRFFQ69G5FAV", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_EmptyID(t *testing.T) {
	v := setupTest(t)

	req := httptest.NewRequest("GET", "/capsules/", nil)
	rec := httptest.NewRecorder()
	v.h.HandleDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- Error rendering ---

func TestErrorRendering_HtmxFragment(t *testing.T) {
	v := setupTest(t)

	rec := getDetail(v, "NONEXISTENT", "", map[string]string{"HX-Request": "true"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "error-message") {
		t.Error("expected error-message div in htmx error response")
	}
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("htmx error should not contain full layout")
	}
}

func TestErrorRendering_JSONError(t *testing.T) {
	v := setupTest(t)

	rec := getDetail(v, "01ARZ3NDEKTSV4RRFFQ69G5FAV", "", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", errObj["code"])
	}
}

func TestErrorRendering_FullErrorPage(t *testing.T) {
	v := setupTest(t)

	rec := getDetail(v, "01ARZ3NDEKTSV4RRFFQ69G5FAV", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("expected full page layout")
	}
	if !strings.Contains(body, "404") {
		t.Error("expected status code on error page")
	}
}

// --- Server ---

func TestSecurityHeaders(t *testing.T) {
	srv, err := NewServer(setupTest(t).h.db, clock.Fixed(1), "test", "127.0.0.1", 0)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	req := httptest.NewRequest("GET", "/capsules", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Error("missing Content-Security-Policy")
	}
}

func TestRootRedirects(t *testing.T) {
	srv, err := NewServer(setupTest(t).h.db, clock.Fixed(1), "test", "127.0.0.1", 0)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/capsules" {
		t.Errorf("Location = %q, want /capsules", loc)
	}
}

// --- Helpers ---

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=abc", 20},
		{"limit=-1", -1},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/capsules?"+tt.query, nil)
		if got := parseIntParam(req, "limit", 20); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	if got := displayTitle("Hello", "01ARZ3NDEKTSV4RRFFQ69G5FAV"); got != "Hello" {
		t.Errorf("displayTitle = %q, want Hello", got)
	}
	if got := displayTitle("", "01ARZ3NDEKTSV4RRFFQ69G5FAV"); got != "01ARZ3NDEK..." {
		t.Errorf("displayTitle = %q, want truncated ID", got)
	}
	if got := displayTitle("", "short"); got != "short" {
		t.Errorf("displayTitle = %q, want short", got)
	}
}

func TestShortKey(t *testing.T) {
	k := identity.NamespaceKey("test")
	s := k.String()
	got := shortKey(k)
	if !strings.HasPrefix(got, s[:4]) || !strings.HasSuffix(got, s[len(s)-4:]) {
		t.Errorf("shortKey = %q, from %q", got, s)
	}
}

func TestRenderMarkdown_OmitsRawHTML(t *testing.T) {
	out := string(renderMarkdown("hi <script>alert(1)</script>"))
	if strings.Contains(out, "<script>") {
		t.Errorf("raw HTML rendered: %s", out)
	}
}
