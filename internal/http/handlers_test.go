package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/fairyhunter13/inventory-dashboard/internal/config"
	"github.com/fairyhunter13/inventory-dashboard/internal/model"
	"github.com/fairyhunter13/inventory-dashboard/internal/provision"
	"github.com/fairyhunter13/inventory-dashboard/internal/reconcile"
	"github.com/fairyhunter13/inventory-dashboard/internal/session"
	"github.com/fairyhunter13/inventory-dashboard/internal/store"
)

type viewResp struct {
	Columns     []map[string]any   `json:"columns"`
	Rows        []map[string]any   `json:"rows"`
	Selected    int                `json:"selected"`
	Page        int                `json:"page"`
	Pages       int                `json:"pages"`
	Total       int                `json:"total"`
	Affordances session.Affordances `json:"affordances"`
	Error       string             `json:"error"`
}

type actionResp struct {
	Seq      uint64         `json:"seq"`
	Action   string         `json:"action"`
	Outcome  string         `json:"outcome"`
	Mutation map[string]any `json:"mutation"`
	View     viewResp       `json:"view"`
}

var testCreds = model.Credentials{Username: "user", Password: "password"}

func setupApp(t *testing.T, docs ...bson.D) (*App, *store.Memory, *store.MemoryConnector, http.Handler) {
	t.Helper()
	cfg := config.Defaults()
	cfg.StoreBackend = config.BackendMemory
	cfg.SessionSecret = "0123456789abcdef0123456789abcdef"

	mem := store.NewMemory()
	if len(docs) > 0 {
		if err := mem.InsertMany(context.Background(), docs); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	conn := store.NewMemoryConnector(mem, nil)
	prov := provision.New(provision.MemoryUsers{Connector: conn}, conn, cfg.Database, cfg.SeedCount)
	if err := prov.Bootstrap(context.Background(), testCreds); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	app, err := NewApp(cfg, session.NewGate(conn, time.Second), reconcile.New(), prov)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app, mem, conn, NewRouter(app)
}

func postJSON(mux http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func get(mux http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func login(t *testing.T, mux http.Handler) {
	t.Helper()
	rr := postJSON(mux, "/api/login", `{"username":"user","password":"password"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func findProduct(t *testing.T, mem *store.Memory, id int64) bson.M {
	t.Helper()
	docs, err := mem.Find(context.Background(), model.ByID(id))
	if err != nil || len(docs) != 1 {
		t.Fatalf("find %d: %d docs, err=%v", id, len(docs), err)
	}
	return docs[0].Map()
}

func TestHealthzOK(t *testing.T) {
	_, _, _, mux := setupApp(t)
	rr := get(mux, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRoutingErrors(t *testing.T) {
	_, _, _, mux := setupApp(t)
	if rr := get(mux, "/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := get(mux, "/api/actions"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestViewUnauthenticated(t *testing.T) {
	_, _, _, mux := setupApp(t)
	v := decode[viewResp](t, get(mux, "/api/view"))
	if len(v.Rows) != 0 || v.Total != 0 || v.Selected != -1 {
		t.Fatalf("expected empty view, got %+v", v)
	}
	want := session.Affordances{LoginFieldsVisible: true, LoginButton: "Login"}
	if v.Affordances != want || v.Error != "Login first!" {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	_, _, _, mux := setupApp(t)
	rr := postJSON(mux, "/api/login", `{"username":"user","password":"wrongpass"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	e := decode[jsonError](t, rr)
	if e.Error != "invalid_credentials" || e.Details != "Invalid Credentials!" {
		t.Fatalf("unexpected error: %+v", e)
	}
}

func TestLoginRejectsBadBodies(t *testing.T) {
	_, _, _, mux := setupApp(t)
	rr := postJSON(mux, "/api/login", `{"username":"user","password":"password","role":"admin"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rr.Code)
	}
}

func TestLoginShowsSeededTable(t *testing.T) {
	_, _, _, mux := setupApp(t)
	login(t, mux)
	v := decode[viewResp](t, get(mux, "/api/view?page=4"))
	if v.Total != 100 || v.Pages != 4 || v.Page != 4 || len(v.Rows) != 25 {
		t.Fatalf("unexpected paging: total=%d pages=%d page=%d rows=%d", v.Total, v.Pages, v.Page, len(v.Rows))
	}
	if v.Rows[24]["product_id"] != float64(99) {
		t.Fatalf("expected last id 99, got %v", v.Rows[24]["product_id"])
	}
	if len(v.Columns) != 4 || v.Columns[0]["id"] != "product_id" {
		t.Fatalf("unexpected columns: %v", v.Columns)
	}
	if !v.Affordances.ModificationFieldsVisible || v.Affordances.LoginButton != "Logout" {
		t.Fatalf("unexpected affordances: %+v", v.Affordances)
	}
}

func TestActionUpdate(t *testing.T) {
	_, mem, _, mux := setupApp(t)
	login(t, mux)
	rr := postJSON(mux, "/api/actions", `{"action":"update","row":5,"name":"Widget","price":"2.50","quantity":"20"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	res := decode[actionResp](t, rr)
	if res.Outcome != "ok" || res.Action != "update" || res.Mutation == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.View.Selected != 0 {
		t.Fatalf("selection must reset after an action, got %d", res.View.Selected)
	}
	p := findProduct(t, mem, 5)
	if p[model.FieldName] != "Widget" || p[model.FieldPrice] != 2.5 || p[model.FieldQuantity] != int64(20) {
		t.Fatalf("unexpected document: %v", p)
	}
}

func TestActionValidation(t *testing.T) {
	_, mem, _, mux := setupApp(t)
	login(t, mux)
	rr := postJSON(mux, "/api/actions", `{"action":"update","row":0,"price":"abc","quantity":"1"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	res := decode[actionResp](t, rr)
	if res.Outcome != "validation_error" || res.View.Error != "Cannot convert!" || res.Mutation != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.View.Total != 100 || mem.Len() != 100 {
		t.Fatalf("store must be untouched")
	}
}

func TestActionRejectsPriceBeyondFloatRange(t *testing.T) {
	_, mem, _, mux := setupApp(t)
	login(t, mux)
	rr := postJSON(mux, "/api/actions", `{"action":"update","row":0,"price":"1e400","quantity":"1"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	res := decode[actionResp](t, rr)
	if res.View.Error != "Cannot convert!" || res.Mutation != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if p := findProduct(t, mem, 0); p[model.FieldPrice] != 0.0 {
		t.Fatalf("price must be untouched, got %v", p[model.FieldPrice])
	}
	if rr := get(mux, "/api/view"); rr.Code != http.StatusOK || rr.Body.Len() == 0 {
		t.Fatalf("expected a view after the rejected action, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestViewWithUnencodableDocumentFails(t *testing.T) {
	doc := bson.D{
		{Key: model.FieldID, Value: int64(0)},
		{Key: model.FieldName, Value: "broken"},
		{Key: model.FieldPrice, Value: math.Inf(1)},
		{Key: model.FieldQuantity, Value: int64(1)},
	}
	_, _, _, mux := setupApp(t, doc)
	login(t, mux)
	rr := get(mux, "/api/view")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if e := decode[jsonError](t, rr); e.Error != "internal_error" {
		t.Fatalf("unexpected error body: %+v", e)
	}
}

func TestActionUnauthenticated(t *testing.T) {
	_, mem, _, mux := setupApp(t)
	rr := postJSON(mux, "/api/actions", `{"action":"delete","row":0}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	res := decode[actionResp](t, rr)
	if res.View.Error != "Login first!" || len(res.View.Rows) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if mem.Len() != 100 {
		t.Fatalf("store mutated while logged out")
	}
}

func TestActionDeleteOnFilteredTable(t *testing.T) {
	_, mem, _, mux := setupApp(t)
	login(t, mux)
	rr := postJSON(mux, "/api/actions", `{"action":"delete","row":1,"filters":{"product_id":">= 40"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if mem.Len() != 99 {
		t.Fatalf("expected 99 documents, got %d", mem.Len())
	}
	docs, _ := mem.Find(context.Background(), model.ByID(41))
	if len(docs) != 0 {
		t.Fatalf("expected product 41 deleted")
	}
}

// Add continues from the last displayed row, so a descending sort reuses id 1.
func TestAddIDFollowsDisplayedLastRow(t *testing.T) {
	_, mem, _, mux := setupApp(t)
	login(t, mux)

	rr := postJSON(mux, "/api/actions", `{"action":"add","name":"Gadget","price":"9.99","quantity":"3"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if p := findProduct(t, mem, 100); p[model.FieldName] != "Gadget" {
		t.Fatalf("unexpected document: %v", p)
	}

	rr = postJSON(mux, "/api/actions", `{"action":"add","price":"0","quantity":"0","sort":"-product_id"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	docs, _ := mem.Find(context.Background(), model.ByID(1))
	if len(docs) != 2 {
		t.Fatalf("expected the displayed-order id rule to produce a second id 1, got %d", len(docs))
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	_, _, _, mux := setupApp(t)
	rr := postJSON(mux, "/api/logout", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if v := decode[viewResp](t, rr); v.Error != "The connection could not be closed!" {
		t.Fatalf("unexpected error %q", v.Error)
	}
}

func TestDropDatabase(t *testing.T) {
	_, mem, conn, mux := setupApp(t)
	login(t, mux)
	rr := postJSON(mux, "/api/database/drop", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	v := decode[viewResp](t, rr)
	if !v.Affordances.LoginFieldsVisible || v.Affordances.DropDatabaseVisible {
		t.Fatalf("expected logged out affordances, got %+v", v.Affordances)
	}
	if mem.Len() != 0 || conn.HasUser("user") {
		t.Fatalf("database or user left behind")
	}
}

func TestMetricsHandler(t *testing.T) {
	_, _, _, mux := setupApp(t)
	login(t, mux)
	postJSON(mux, "/api/actions", `{"action":"update","row":0,"price":"x","quantity":"1"}`)

	m := decode[map[string]any](t, get(mux, "/debug/metrics"))
	if m["actions_dispatched"] != float64(1) || m["actions_failed"] != float64(1) {
		t.Fatalf("unexpected counters: %v", m)
	}
	if m["state"] != "idle" || m["authenticated"] != true {
		t.Fatalf("unexpected metrics: %v", m)
	}
	if _, ok := m["uptime_sec"]; !ok {
		t.Fatalf("missing uptime_sec")
	}
}

func TestShutdownBehavior(t *testing.T) {
	app, _, _, mux := setupApp(t)
	login(t, mux)
	app.StartShutdown()
	rr := postJSON(mux, "/api/actions", `{"action":"delete","row":0}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestDashboardViewGolden(t *testing.T) {
	_, _, _, mux := setupApp(t,
		model.Product{ProductID: 0, Name: "bolt", Price: 0.5, Quantity: 100}.Document(),
		model.Product{ProductID: 1, Name: "Widget", Price: 2.5, Quantity: 10}.Document(),
		model.Product{ProductID: 2, Name: "gear", Price: 1.25, Quantity: 4}.Document(),
	)
	login(t, mux)
	rr := get(mux, "/api/view?sort=-product_price&row=1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	actual, err := json.MarshalIndent(decode[map[string]any](t, rr), "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dashboard_view", actual)
}

func TestHTMLDashboardFlow(t *testing.T) {
	_, mem, _, mux := setupApp(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	page := func(resp *http.Response, err error) string {
		t.Helper()
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, b)
		}
		return string(b)
	}

	body := page(client.Get(srv.URL + "/"))
	if !strings.Contains(body, `name="username"`) || strings.Contains(body, "Delete Database") {
		t.Fatalf("expected login form only")
	}

	body = page(client.PostForm(srv.URL+"/login", url.Values{"username": {"user"}, "password": {"wrongpass"}}))
	if !strings.Contains(body, "Invalid Credentials!") {
		t.Fatalf("expected credentials error in page")
	}
	if body = page(client.Get(srv.URL + "/")); strings.Contains(body, "Invalid Credentials!") {
		t.Fatalf("flash message shown twice")
	}

	body = page(client.PostForm(srv.URL+"/login", url.Values{"username": {"user"}, "password": {"password"}}))
	if !strings.Contains(body, ">Logout<") || !strings.Contains(body, "Delete Database") {
		t.Fatalf("expected logged in page")
	}
	if !strings.Contains(body, `class="selected"`) || !strings.Contains(body, "Page 1 of 4") {
		t.Fatalf("expected first row selected on page 1")
	}

	body = page(client.PostForm(srv.URL+"/actions", url.Values{"action": {"delete"}, "row": {"3"}}))
	if mem.Len() != 99 {
		t.Fatalf("expected one deletion, got %d documents", mem.Len())
	}
	if docs, _ := mem.Find(context.Background(), model.ByID(3)); len(docs) != 0 {
		t.Fatalf("expected product 3 deleted")
	}
	if strings.Contains(body, `class="error"`) {
		t.Fatalf("unexpected error on page")
	}

	body = page(client.PostForm(srv.URL+"/actions", url.Values{"action": {"add"}, "price": {"abc"}, "quantity": {"1"}}))
	if !strings.Contains(body, "Cannot convert!") {
		t.Fatalf("expected conversion error")
	}
	if !strings.Contains(body, `name="price" value="abc"`) || !strings.Contains(body, `name="quantity" value="1"`) {
		t.Fatalf("expected typed values kept after a rejected action")
	}
	if body = page(client.Get(srv.URL + "/")); strings.Contains(body, `value="abc"`) {
		t.Fatalf("kept form shown twice")
	}

	body = page(client.PostForm(srv.URL+"/login", url.Values{}))
	if !strings.Contains(body, `name="username"`) {
		t.Fatalf("expected login toggle to log out")
	}
}
