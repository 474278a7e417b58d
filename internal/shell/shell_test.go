package shell

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"courseattend/internal/apiclient"
	"courseattend/internal/auth"
	"courseattend/internal/checkin"
	"courseattend/internal/config"
	"courseattend/internal/queue"
	"courseattend/internal/session"
	"courseattend/internal/visits"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeBackend struct {
	mu       sync.Mutex
	token    string
	role     string
	expired  bool
	students []apiclient.Student
	bulk     [][]string
	marks    []apiclient.MarkRequest
	auths    []string
	cookies  []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auths = append(b.auths, r.Header.Get("Authorization"))
	b.cookies = append(b.cookies, r.Header.Get("Cookie"))
	w.Header().Set("Content-Type", "application/json")

	public := strings.HasPrefix(r.URL.Path, "/sessions/") || strings.HasPrefix(r.URL.Path, "/attendance/") || r.URL.Path == "/auth/login"
	if !public && (b.expired || r.Header.Get("Authorization") != "Bearer "+b.token) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Token expired"}`)
		return
	}

	switch {
	case r.URL.Path == "/auth/login":
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token": b.token, "_id": "u1", "name": "Staff", "email": "staff@example.com", "role": b.role,
		})
	case r.URL.Path == "/auth/me":
		_, _ = io.WriteString(w, `{"_id":"u1","name":"Staff","role":"`+b.role+`"}`)
	case r.URL.Path == "/courses":
		_, _ = io.WriteString(w, `[{"_id":"c1","name":"Full Stack Java"}]`)
	case r.URL.Path == "/students" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(b.students)
	case r.URL.Path == "/students/bulk-delete":
		var in struct{ IDs []string }
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.bulk = append(b.bulk, in.IDs)
		kept := b.students[:0]
		for _, s := range b.students {
			if !contains(in.IDs, s.ID) {
				kept = append(kept, s)
			}
		}
		b.students = kept
		_ = json.NewEncoder(w).Encode(map[string]int{"deleted": len(in.IDs)})
	case r.URL.Path == "/sessions" && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `[]`)
	case r.URL.Path == "/reports/analytics":
		_, _ = io.WriteString(w, `[{"_id":"s1","name":"Asha","present":3,"total":4,"percentage":"75.0"}]`)
	case strings.HasPrefix(r.URL.Path, "/sessions/"):
		now := time.Now().UTC()
		res := map[string]any{"session": map[string]any{
			"slug":     strings.TrimPrefix(r.URL.Path, "/sessions/"),
			"course":   map[string]string{"_id": "c1", "name": "Full Stack Java"},
			"batch":    "Batch 1",
			"opensAt":  now.Add(-time.Second),
			"closesAt": now.Add(2 * time.Minute),
		}}
		if r.URL.Query().Get("phone") == "9876543210" {
			res["student"] = map[string]string{"_id": "s1", "name": "Asha"}
		}
		_ = json.NewEncoder(w).Encode(res)
	case strings.HasPrefix(r.URL.Path, "/attendance/mark/"):
		var in apiclient.MarkRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.marks = append(b.marks, in)
		_ = json.NewEncoder(w).Encode(map[string]string{"_id": "m1", "status": string(in.Status)})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	}
}

func (b *fakeBackend) last() (authz, cookie string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.auths) - 1
	return b.auths[n], b.cookies[n]
}

func (b *fakeBackend) setExpired(v bool) {
	b.mu.Lock()
	b.expired = v
	b.mu.Unlock()
}

func (b *fakeBackend) calls() (bulk [][]string, marks []apiclient.MarkRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.bulk...), append([]apiclient.MarkRequest(nil), b.marks...)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type harness struct {
	t       *testing.T
	backend *fakeBackend
	server  *Server
	router  *gin.Engine
	store   *session.MemoryStore
	visits  <-chan queue.Message
}

func newHarness(t *testing.T, role string, tweaks ...func(*config.App)) *harness {
	t.Helper()
	b := &fakeBackend{token: "backend-token", role: role}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>console</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.App{
		BackendURL:      srv.URL,
		PublicURL:       "http://console.test",
		StaticDir:       static,
		JWTIssuer:       "courseattend-console",
		JWTSigningKey:   "test-key",
		SessionTTL:      time.Hour,
		RateLimitPerMin: config.DefaultRateLimitPerMin,
		FlowRateLimit:   config.DefaultFlowRateLimitPerMin,
		CampusName:      "Velachery campus",
		FlowIdleTTL:     time.Minute,
	}
	for _, tweak := range tweaks {
		tweak(&cfg)
	}
	store := session.NewMemoryStore()
	q := queue.NewInMemory(16)
	s := New(Deps{
		Config:   cfg,
		API:      apiclient.New(srv.URL, 5*time.Second),
		Sessions: store,
		Recorder: visits.NewRecorder(q),
	})
	t.Cleanup(s.closeFlows)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	events, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{t: t, backend: b, server: s, router: s.Router(), store: store, visits: events}
}

func (h *harness) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()
	raw := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			h.t.Fatal(err)
		}
		raw = string(b)
	}
	return h.doRaw(method, path, raw, cookies...)
}

// doRaw sends raw as the JSON body; an empty raw sends no body.
func (h *harness) doRaw(method, path, raw string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.doFrom("192.0.2.1:1234", method, path, raw, cookies...)
}

func (h *harness) doFrom(remote, method, path, raw string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd io.Reader
	if raw != "" {
		rd = strings.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = remote
	if raw != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) login() *http.Cookie {
	h.t.Helper()
	w := h.do(http.MethodPost, "/auth/login", map[string]string{"email": "staff@example.com", "password": "secret"})
	if w.Code != http.StatusOK {
		h.t.Fatalf("login: %d %s", w.Code, w.Body)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	h.t.Fatal("no session cookie")
	return nil
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body, err)
	}
	return v
}

func TestRouteTableGatesStaffPages(t *testing.T) {
	h := newHarness(t, "admin")

	w := h.do(http.MethodGet, "/students", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Fatalf("staff route: %d %q", w.Code, w.Header().Get("Location"))
	}
	for _, p := range []string{"/login", "/attend/batch1-oct5", "/some/deep/link"} {
		if w := h.do(http.MethodGet, p, nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "console") {
			t.Fatalf("%s: %d %s", p, w.Code, w.Body)
		}
	}
	if w := h.do(http.MethodGet, "/ui/unknown", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown ui endpoint: %d", w.Code)
	}

	cookie := h.login()
	if w := h.do(http.MethodGet, "/students", nil, cookie); w.Code != http.StatusOK {
		t.Fatalf("signed-in staff route: %d", w.Code)
	}
}

func TestLoginRejectsResponseWithoutToken(t *testing.T) {
	h := newHarness(t, "admin")
	h.backend.token = ""
	w := h.do(http.MethodPost, "/auth/login", map[string]string{"email": "a@b.c", "password": "x"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("code = %d", w.Code)
	}
	if got := decode[map[string]string](t, w)["error"]; got != "Invalid response from server." {
		t.Fatalf("error = %q", got)
	}
}

func TestDashboardAndMe(t *testing.T) {
	h := newHarness(t, "trainer")
	h.backend.students = []apiclient.Student{{ID: "s1", Name: "Asha"}}
	cookie := h.login()

	w := h.do(http.MethodGet, "/ui/dashboard", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", w.Code, w.Body)
	}
	dash := decode[struct {
		Students int `json:"students"`
	}](t, w)
	if dash.Students != 1 {
		t.Fatalf("students = %d", dash.Students)
	}
	if authz, _ := h.backend.last(); authz != "Bearer backend-token" {
		t.Fatalf("authorization = %q", authz)
	}

	w = h.do(http.MethodGet, "/auth/me", nil, cookie)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"role":"trainer"`) {
		t.Fatalf("me: %d %s", w.Code, w.Body)
	}
}

func TestBackend401TearsDownSession(t *testing.T) {
	h := newHarness(t, "admin")
	cookie := h.login()
	claims, err := auth.Parse(cookie.Value, "test-key", "courseattend-console")
	if err != nil {
		t.Fatal(err)
	}

	h.backend.setExpired(true)
	w := h.do(http.MethodGet, "/ui/students", nil, cookie)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
	if got := decode[map[string]string](t, w)["redirect"]; got != "/login" {
		t.Fatalf("redirect = %q", got)
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), auth.CookieName+"=;") {
		t.Fatalf("cookie not cleared: %q", w.Header().Get("Set-Cookie"))
	}
	if _, err := h.store.Get(context.Background(), claims.SessionID); err == nil {
		t.Fatal("session still stored after 401")
	}

	h.backend.setExpired(false)
	if w := h.do(http.MethodGet, "/ui/students", nil, cookie); w.Code != http.StatusUnauthorized {
		t.Fatalf("old cookie still works: %d", w.Code)
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t, "admin")
	cookie := h.login()
	if w := h.do(http.MethodPost, "/auth/logout", nil, cookie); w.Code != http.StatusOK {
		t.Fatalf("logout: %d", w.Code)
	}
	if w := h.do(http.MethodGet, "/ui/dashboard", nil, cookie); w.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: %d", w.Code)
	}
}

func TestBulkDeleteOverHTTP(t *testing.T) {
	h := newHarness(t, "admin")
	h.backend.students = []apiclient.Student{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	cookie := h.login()

	if w := h.do(http.MethodGet, "/ui/students", nil, cookie); w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body)
	}
	w := h.do(http.MethodPost, "/ui/students/selection", map[string]any{"ids": []string{"a", "b"}, "selected": true}, cookie)
	if got := decode[struct{ Selected []string }](t, w).Selected; len(got) != 2 {
		t.Fatalf("selected = %v", got)
	}

	w = h.do(http.MethodPost, "/ui/students/bulk-delete", map[string]bool{"confirm": false}, cookie)
	if bulk, _ := h.backend.calls(); w.Code != http.StatusConflict || len(bulk) != 0 {
		t.Fatalf("cancelled: %d, bulk calls %d", w.Code, len(bulk))
	}

	w = h.do(http.MethodPost, "/ui/students/bulk-delete", map[string]bool{"confirm": true}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("bulk delete: %d %s", w.Code, w.Body)
	}
	if bulk, _ := h.backend.calls(); len(bulk) != 1 || strings.Join(bulk[0], ",") != "a,b" {
		t.Fatalf("bulk = %v", bulk)
	}
	res := decode[struct {
		Deleted int `json:"deleted"`
		Page    struct {
			Students []apiclient.Student `json:"students"`
			Selected []string            `json:"selected"`
		} `json:"page"`
	}](t, w)
	if res.Deleted != 2 || len(res.Page.Students) != 1 || len(res.Page.Selected) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestTrainerCannotBulkDelete(t *testing.T) {
	h := newHarness(t, "trainer")
	h.backend.students = []apiclient.Student{{ID: "a"}}
	cookie := h.login()
	h.do(http.MethodGet, "/ui/students", nil, cookie)
	h.do(http.MethodPost, "/ui/students/selection", map[string]any{"ids": []string{"a"}, "selected": true}, cookie)
	if w := h.do(http.MethodPost, "/ui/students/bulk-delete", map[string]bool{"confirm": true}, cookie); w.Code != http.StatusForbidden {
		t.Fatalf("code = %d", w.Code)
	}
}

type flowResponse struct {
	FlowID string           `json:"flowId"`
	Flow   checkin.Snapshot `json:"flow"`
}

func TestCheckinFlowOverHTTP(t *testing.T) {
	h := newHarness(t, "admin")

	w := h.do(http.MethodGet, "/checkin/batch1-oct5/bootstrap", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"timeout":10000`) {
		t.Fatalf("bootstrap: %d %s", w.Code, w.Body)
	}

	w = h.do(http.MethodPost, "/checkin/batch1-oct5/flows", map[string]float64{"lat": 12.97, "lng": 80.21})
	if w.Code != http.StatusCreated {
		t.Fatalf("start: %d %s", w.Code, w.Body)
	}
	fr := decode[flowResponse](t, w)
	if fr.Flow.State != checkin.SessionLoaded || fr.Flow.Remaining < 119 || !fr.Flow.WindowOpen {
		t.Fatalf("flow = %+v", fr.Flow)
	}
	base := "/checkin/flows/" + fr.FlowID

	w = h.do(http.MethodPost, base+"/continue", map[string]string{"phone": "9999999999"})
	fr = decode[flowResponse](t, w)
	if w.Code != http.StatusNotFound || fr.Flow.State != checkin.SessionLoaded || fr.Flow.Error != checkin.KindIdentityNotFound {
		t.Fatalf("unknown phone: %d %+v", w.Code, fr.Flow)
	}

	w = h.do(http.MethodPost, base+"/continue", map[string]string{"phone": "9876543210"})
	fr = decode[flowResponse](t, w)
	if w.Code != http.StatusOK || fr.Flow.State != checkin.IdentityResolved || !fr.Flow.CanSubmit {
		t.Fatalf("known phone: %d %+v", w.Code, fr.Flow)
	}

	w = h.do(http.MethodPost, base+"/mark", map[string]string{"status": "present"})
	fr = decode[flowResponse](t, w)
	if w.Code != http.StatusOK || fr.Flow.State != checkin.Marked {
		t.Fatalf("mark: %d %+v", w.Code, fr.Flow)
	}
	if _, marks := h.backend.calls(); len(marks) != 1 || marks[0].StudentID != "s1" || marks[0].Lat != 12.97 {
		t.Fatalf("marks = %+v", marks)
	}
	if w := h.do(http.MethodPost, base+"/mark", map[string]string{"status": "absent"}); w.Code != http.StatusConflict {
		t.Fatalf("second mark: %d", w.Code)
	}

	v := nextVisit(t, h.visits)
	if v.Slug != "batch1-oct5" || v.State != string(checkin.Marked) || v.StudentID != "s1" || v.Status != "present" {
		t.Fatalf("visit = %+v", v)
	}

	if w := h.do(http.MethodDelete, base, nil); w.Code != http.StatusNoContent {
		t.Fatalf("close: %d", w.Code)
	}
	if w := h.do(http.MethodGet, base, nil); w.Code != http.StatusNotFound {
		t.Fatalf("closed flow still served: %d", w.Code)
	}
}

func TestCheckinLocationErrors(t *testing.T) {
	h := newHarness(t, "admin")
	cases := []struct {
		body  any
		state checkin.State
		kind  checkin.ErrorKind
	}{
		{map[string]any{"error": map[string]any{"code": 1, "message": "denied"}}, checkin.LocationDenied, checkin.KindLocationDenied},
		{map[string]any{"unsupported": true}, checkin.LocationFailed, checkin.KindLocationUnsupported},
		{map[string]any{"error": map[string]any{"code": 3}}, checkin.LocationFailed, checkin.KindLocationFailed},
	}
	for _, tc := range cases {
		w := h.do(http.MethodPost, "/checkin/s/flows", tc.body)
		fr := decode[flowResponse](t, w)
		if fr.Flow.State != tc.state || fr.Flow.Error != tc.kind {
			t.Fatalf("%v: %+v", tc.body, fr.Flow)
		}
		if v := nextVisit(t, h.visits); v.State != string(tc.state) || v.ErrorKind != string(tc.kind) {
			t.Fatalf("visit = %+v", v)
		}
	}
	if w := h.do(http.MethodPost, "/checkin/s/flows", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("empty report: %d", w.Code)
	}
}

func nextVisit(t *testing.T, events <-chan queue.Message) visits.Visit {
	t.Helper()
	select {
	case msg, ok := <-events:
		if !ok {
			t.Fatal("no visit published")
		}
		var v visits.Visit
		if err := msg.Decode(&v); err != nil {
			t.Fatal(err)
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("no visit published")
	}
	return visits.Visit{}
}

// The proxy needs a real connection, so these requests go through a server.
func TestProxyForwardsWithBearer(t *testing.T) {
	h := newHarness(t, "admin")
	cookie := h.login()
	console := httptest.NewServer(h.router)
	defer console.Close()

	get := func(path string) (*http.Response, string) {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, console.URL+path, nil)
		if err != nil {
			t.Fatal(err)
		}
		req.AddCookie(cookie)
		resp, err := console.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp, string(body)
	}

	resp, body := get("/api/courses")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Full Stack Java") {
		t.Fatalf("proxy: %d %s", resp.StatusCode, body)
	}
	if authz, fwd := h.backend.last(); authz != "Bearer backend-token" || fwd != "" {
		t.Fatalf("forwarded auth %q cookie %q", authz, fwd)
	}

	h.backend.setExpired(true)
	resp, _ = get("/api/courses")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired: %d", resp.StatusCode)
	}
	if sc := resp.Header.Get("Set-Cookie"); !strings.Contains(sc, auth.CookieName+"=;") || !strings.Contains(sc, "Max-Age=0") {
		t.Fatalf("cookie not expired: %q", sc)
	}
	h.backend.setExpired(false)
	if resp, _ := get("/ui/dashboard"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("session survived proxied 401: %d", resp.StatusCode)
	}
}

func TestClassBehindOneAddressChecksIn(t *testing.T) {
	h := newHarness(t, "admin")
	const campus = "203.0.113.7:40000"
	const visitors = 30

	blocked := 0
	count := func(w *httptest.ResponseRecorder) *httptest.ResponseRecorder {
		if w.Code == http.StatusTooManyRequests {
			blocked++
		}
		return w
	}
	for i := 0; i < visitors; i++ {
		count(h.doFrom(campus, http.MethodGet, "/checkin/batch1-oct5/bootstrap", ""))
		w := count(h.doFrom(campus, http.MethodPost, "/checkin/batch1-oct5/flows", `{"lat":12.97,"lng":80.21}`))
		if w.Code != http.StatusCreated {
			t.Fatalf("visitor %d start: %d %s", i, w.Code, w.Body)
		}
		base := "/checkin/flows/" + decode[flowResponse](t, w).FlowID
		count(h.doFrom(campus, http.MethodGet, base, ""))
		count(h.doFrom(campus, http.MethodPost, base+"/continue", `{"phone":"9876543210"}`))
		count(h.doFrom(campus, http.MethodGet, base, ""))
		if w := count(h.doFrom(campus, http.MethodPost, base+"/mark", `{"status":"present"}`)); w.Code != http.StatusOK {
			t.Fatalf("visitor %d mark: %d %s", i, w.Code, w.Body)
		}
		count(h.doFrom(campus, http.MethodDelete, base, ""))
	}
	if blocked != 0 {
		t.Fatalf("%d requests blocked for one classroom", blocked)
	}
	if _, marks := h.backend.calls(); len(marks) != visitors {
		t.Fatalf("marks = %d", len(marks))
	}
}

func TestFlowLimitIsPerFlow(t *testing.T) {
	h := newHarness(t, "admin")
	start := func() string {
		w := h.do(http.MethodPost, "/checkin/s/flows", map[string]float64{"lat": 1, "lng": 2})
		return "/checkin/flows/" + decode[flowResponse](t, w).FlowID
	}
	noisy, quiet := start(), start()

	blocked := 0
	for i := 0; i < 2*config.DefaultFlowRateLimitPerMin; i++ {
		if h.do(http.MethodGet, noisy, nil).Code == http.StatusTooManyRequests {
			blocked++
		}
	}
	if blocked == 0 {
		t.Fatal("a flow polling without pause was never limited")
	}
	if w := h.do(http.MethodGet, quiet, nil); w.Code != http.StatusOK {
		t.Fatalf("other flow: %d", w.Code)
	}
}

func TestFlowStartsLimitedPerAddress(t *testing.T) {
	h := newHarness(t, "admin", func(c *config.App) { c.RateLimitPerMin = 2 })
	for i, want := range []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests} {
		if w := h.doFrom("198.51.100.4:1", http.MethodPost, "/checkin/s/flows", `{"unsupported":true}`); w.Code != want {
			t.Fatalf("start %d: %d, want %d", i, w.Code, want)
		}
	}
	if w := h.doFrom("198.51.100.5:1", http.MethodPost, "/checkin/s/flows", `{"unsupported":true}`); w.Code != http.StatusCreated {
		t.Fatalf("other address: %d", w.Code)
	}
}

func TestBootstrapUsesConfiguredGeolocation(t *testing.T) {
	h := newHarness(t, "admin", func(c *config.App) {
		c.GeoTimeout = 5 * time.Second
		c.GeoMaximumAge = 0
	})
	w := h.do(http.MethodGet, "/checkin/s/bootstrap", nil)
	if !strings.Contains(w.Body.String(), `"timeout":5000`) || !strings.Contains(w.Body.String(), `"maximumAge":60000`) {
		t.Fatalf("bootstrap = %s", w.Body)
	}
}

func TestMalformedBodiesAreRejected(t *testing.T) {
	h := newHarness(t, "admin")
	h.backend.students = []apiclient.Student{{ID: "a"}}
	cookie := h.login()
	h.do(http.MethodGet, "/ui/students", nil, cookie)
	h.do(http.MethodPost, "/ui/students/selection", map[string]any{"ids": []string{"a"}, "selected": true}, cookie)

	if w := h.doRaw(http.MethodDelete, "/ui/students/a", `{"confirm":tru`, cookie); w.Code != http.StatusBadRequest {
		t.Fatalf("delete malformed: %d", w.Code)
	}
	if w := h.doRaw(http.MethodDelete, "/ui/students/a", "", cookie); w.Code != http.StatusConflict {
		t.Fatalf("delete without body: %d", w.Code)
	}
	if w := h.doRaw(http.MethodPost, "/ui/students/bulk-delete", `[1,2]`, cookie); w.Code != http.StatusBadRequest {
		t.Fatalf("bulk malformed: %d", w.Code)
	}
	if bulk, _ := h.backend.calls(); len(bulk) != 0 {
		t.Fatalf("bulk = %v", bulk)
	}

	w := h.do(http.MethodPost, "/checkin/s/flows", map[string]float64{"lat": 1, "lng": 2})
	base := "/checkin/flows/" + decode[flowResponse](t, w).FlowID
	if w := h.doRaw(http.MethodPost, base+"/continue", `{"phone":`); w.Code != http.StatusBadRequest {
		t.Fatalf("continue malformed: %d", w.Code)
	}
	if w := h.doRaw(http.MethodPost, base+"/continue", ""); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("continue without phone: %d", w.Code)
	}
}

func TestRegistrySweep(t *testing.T) {
	now := time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)
	var evicted []string
	r := newRegistry(time.Minute, func() time.Time { return now }, func(id string, _ int) { evicted = append(evicted, id) })
	r.put("old", 1)
	now = now.Add(30 * time.Second)
	r.put("new", 2)
	now = now.Add(45 * time.Second)
	if _, ok := r.get("new"); !ok {
		t.Fatal("new missing")
	}
	if n := r.sweep(); n != 1 || len(evicted) != 1 || evicted[0] != "old" {
		t.Fatalf("swept %d %v", n, evicted)
	}
	if r.len() != 1 {
		t.Fatalf("len = %d", r.len())
	}
}
