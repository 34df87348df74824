package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/fairyhunter13/inventory-dashboard/internal/apperr"
	"github.com/fairyhunter13/inventory-dashboard/internal/config"
	"github.com/fairyhunter13/inventory-dashboard/internal/http/web"
	"github.com/fairyhunter13/inventory-dashboard/internal/model"
	"github.com/fairyhunter13/inventory-dashboard/internal/obs"
	"github.com/fairyhunter13/inventory-dashboard/internal/projection"
	"github.com/fairyhunter13/inventory-dashboard/internal/provision"
	"github.com/fairyhunter13/inventory-dashboard/internal/reconcile"
	"github.com/fairyhunter13/inventory-dashboard/internal/session"
)

const cookieName = "inventory-dashboard"

type App struct {
	Cfg         config.Config
	Gate        *session.Gate
	Reconciler  *reconcile.Reconciler
	Provisioner *provision.Provisioner // optional, removes the user after Delete Database

	cookies  *sessions.CookieStore
	renderer *PageRenderer
	closing  atomic.Bool
	started  time.Time
}

func NewApp(cfg config.Config, gate *session.Gate, rec *reconcile.Reconciler, prov *provision.Provisioner) (*App, error) {
	key := []byte(cfg.SessionSecret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, fmt.Errorf("generate session key")
		}
	}
	cookies := sessions.NewCookieStore(key)
	cookies.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((24 * time.Hour).Seconds()),
	}
	renderer, err := NewPageRenderer(web.Templates, web.Pages)
	if err != nil {
		return nil, err
	}
	return &App{
		Cfg:         cfg,
		Gate:        gate,
		Reconciler:  rec,
		Provisioner: prov,
		cookies:     cookies,
		renderer:    renderer,
		started:     time.Now(),
	}, nil
}

// StartShutdown makes mutating endpoints answer 503 while the server drains.
func (a *App) StartShutdown() {
	a.closing.Store(true)
}

func (a *App) refuseWhileClosing(w http.ResponseWriter) bool {
	if !a.closing.Load() {
		return false
	}
	WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
	return true
}

// Session keys of the form values kept across a failed action.
const (
	keyFormName     = "form_name"
	keyFormPrice    = "form_price"
	keyFormQuantity = "form_quantity"
)

// flash stores msg for the next page view. A non-nil form is kept with it so
// the fields can be shown again as typed.
func (a *App) flash(w http.ResponseWriter, r *http.Request, msg string, form *reconcile.Form) {
	if msg == "" {
		return
	}
	s, _ := a.cookies.Get(r, cookieName)
	s.AddFlash(msg)
	if form != nil {
		s.Values[keyFormName] = form.Name
		s.Values[keyFormPrice] = form.Price
		s.Values[keyFormQuantity] = form.Quantity
	}
	if err := s.Save(r, w); err != nil {
		obs.Logger.Warn("cookie_save_failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
	}
}

// takeFlash returns and clears the pending message and kept form.
func (a *App) takeFlash(w http.ResponseWriter, r *http.Request) (string, reconcile.Form) {
	s, _ := a.cookies.Get(r, cookieName)
	flashes := s.Flashes()
	if len(flashes) == 0 {
		return "", reconcile.Form{}
	}
	var form reconcile.Form
	form.Name, _ = s.Values[keyFormName].(string)
	form.Price, _ = s.Values[keyFormPrice].(string)
	form.Quantity, _ = s.Values[keyFormQuantity].(string)
	delete(s.Values, keyFormName)
	delete(s.Values, keyFormPrice)
	delete(s.Values, keyFormQuantity)
	if err := s.Save(r, w); err != nil {
		obs.Logger.Warn("cookie_save_failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
	}
	msg, _ := flashes[len(flashes)-1].(string)
	return msg, form
}

func (a *App) redirect(w http.ResponseWriter, r *http.Request, v projection.View) {
	target := "/"
	if q := v.Encode().Encode(); q != "" {
		target += "?" + q
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// selectedRow reads the row parameter. A missing row selects the first one.
func selectedRow(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func (a *App) getDashboardHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := projection.ParseView(q, a.Cfg.PageSize)
	msg, form := a.takeFlash(w, r)
	d := a.loadDashboard(r.Context(), v, selectedRow(q.Get("row")), msg)
	p := a.render(d, v)
	p.Form = form

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.renderer.RenderTemplate(w, "dashboard.html", p); err != nil {
		obs.Logger.Error("render_failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

// postLoginHandler toggles the session: it logs out when logged in and logs
// in with the posted credentials otherwise.
func (a *App) postLoginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}
	v := projection.ParseView(r.Form, a.Cfg.PageSize)
	var err error
	if a.Gate.Authenticated() {
		err = a.Gate.Logout(r.Context())
	} else {
		err = a.Gate.Login(r.Context(), model.Credentials{
			Username: r.FormValue("username"),
			Password: r.FormValue("password"),
		})
	}
	a.flash(w, r, apperr.UserMessage(err), nil)
	a.redirect(w, r, v)
}

func (a *App) postLogoutHandler(w http.ResponseWriter, r *http.Request) {
	err := a.Gate.Logout(r.Context())
	a.flash(w, r, apperr.UserMessage(err), nil)
	a.redirect(w, r, projection.View{})
}

// dispatch runs one reconciliation cycle on the table displayed through v.
// In-flight store calls are not cancelled with the request.
func (a *App) dispatch(ctx context.Context, action string, v projection.View, row int, form reconcile.Form) reconcile.Result {
	act, ok := reconcile.ParseAction(action)
	if !ok {
		act = reconcile.Action(action)
	}
	return a.Reconciler.Dispatch(context.WithoutCancel(ctx), a.Gate, reconcile.Request{
		Action:   act,
		Selected: row,
		View:     &v,
		Form:     form,
	})
}

func (a *App) postActionHandler(w http.ResponseWriter, r *http.Request) {
	if a.refuseWhileClosing(w) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}
	v := projection.ParseView(r.Form, a.Cfg.PageSize)
	form := reconcile.Form{
		Name:     r.FormValue("name"),
		Price:    r.FormValue("price"),
		Quantity: r.FormValue("quantity"),
	}
	res := a.dispatch(r.Context(), r.FormValue("action"), v, selectedRow(r.FormValue("row")), form)
	a.flash(w, r, apperr.UserMessage(res.Err), &form)
	a.redirect(w, r, v)
}

// dropDatabase drops the database, logs out and removes the user.
func (a *App) dropDatabase(ctx context.Context) error {
	user, err := a.Gate.DropDatabase(ctx)
	if err != nil {
		return err
	}
	if a.Provisioner != nil {
		if err := a.Provisioner.DropUser(ctx, user); err != nil {
			obs.Logger.Warn("drop_user_failed", "user", user, "error", err)
			return apperr.Wrap(apperr.KindStoreFailure, "http.drop", apperr.MsgDropFailed, err)
		}
	}
	return nil
}

func (a *App) postDropHandler(w http.ResponseWriter, r *http.Request) {
	if a.refuseWhileClosing(w) {
		return
	}
	err := a.dropDatabase(context.WithoutCancel(r.Context()))
	a.flash(w, r, apperr.UserMessage(err), nil)
	a.redirect(w, r, projection.View{})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type actionRequest struct {
	Action   string            `json:"action"`
	Row      *int              `json:"row,omitempty"`
	Name     string            `json:"name"`
	Price    string            `json:"price"`
	Quantity string            `json:"quantity"`
	Sort     string            `json:"sort,omitempty"`
	Filters  map[string]string `json:"filters,omitempty"`
	Page     int               `json:"page,omitempty"`
}

type mutationBody struct {
	Action   string         `json:"action"`
	Filter   map[string]any `json:"filter,omitempty"`
	Patch    map[string]any `json:"patch,omitempty"`
	Document map[string]any `json:"document,omitempty"`
}

type actionResponse struct {
	Seq      uint64        `json:"seq"`
	Action   string        `json:"action"`
	Outcome  string        `json:"outcome"`
	Mutation *mutationBody `json:"mutation,omitempty"`
	View     dashboard     `json:"view"`
}

func docMap(d bson.D) map[string]any {
	if len(d) == 0 {
		return nil
	}
	m := make(map[string]any, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}

// decodeJSON reads a JSON body the way every API endpoint expects it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func (a *App) apiViewHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := projection.ParseView(q, a.Cfg.PageSize)
	msg := ""
	if !a.Gate.Authenticated() {
		msg = apperr.MsgLoginFirst
	}
	writeJSON(w, http.StatusOK, a.loadDashboard(r.Context(), v, selectedRow(q.Get("row")), msg))
}

func (a *App) apiLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := a.Gate.Login(r.Context(), model.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		WriteJSONError(w, statusFor(err), string(apperr.KindOf(err)), apperr.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, a.loadDashboard(r.Context(), projection.View{PageSize: a.Cfg.PageSize}, 0, ""))
}

// apiLogoutHandler reports a missing connection in the view's error field.
func (a *App) apiLogoutHandler(w http.ResponseWriter, r *http.Request) {
	err := a.Gate.Logout(r.Context())
	writeJSON(w, http.StatusOK, a.loadDashboard(r.Context(), projection.View{PageSize: a.Cfg.PageSize}, 0, apperr.UserMessage(err)))
}

func (a *App) apiActionHandler(w http.ResponseWriter, r *http.Request) {
	if a.refuseWhileClosing(w) {
		return
	}
	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v := projection.View{Sort: projection.ParseSort(req.Sort), Filters: req.Filters, PageSize: a.Cfg.PageSize}
	if req.Page > 0 {
		v.Page = req.Page - 1
	}
	row := 0
	if req.Row != nil {
		row = *req.Row
	}
	res := a.dispatch(r.Context(), req.Action, v, row, reconcile.Form{Name: req.Name, Price: req.Price, Quantity: req.Quantity})

	out := actionResponse{
		Seq:     res.Seq,
		Action:  string(res.Action),
		Outcome: "ok",
		View:    a.present(res.Snapshot, v, 0, apperr.UserMessage(res.Err)),
	}
	if res.Err != nil {
		out.Outcome = "error"
		if k := apperr.KindOf(res.Err); k != "" {
			out.Outcome = string(k)
		}
	}
	if m := res.Mutation; m != nil {
		out.Mutation = &mutationBody{
			Action:   string(m.Action),
			Filter:   docMap(m.Filter),
			Patch:    docMap(m.Patch),
			Document: docMap(m.Document),
		}
	}
	writeJSON(w, statusFor(res.Err), out)
}

func (a *App) apiDropHandler(w http.ResponseWriter, r *http.Request) {
	if a.refuseWhileClosing(w) {
		return
	}
	err := a.dropDatabase(context.WithoutCancel(r.Context()))
	d := a.loadDashboard(r.Context(), projection.View{PageSize: a.Cfg.PageSize}, 0, apperr.UserMessage(err))
	writeJSON(w, statusFor(err), d)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	st := a.Reconciler.Stats()
	m := map[string]any{
		"actions_dispatched": st.Dispatched,
		"actions_failed":     st.Failed,
		"state":              st.State,
		"last_seq":           st.LastSeq,
		"authenticated":      a.Gate.Authenticated(),
		"uptime_sec":         time.Since(a.started).Seconds(),
	}
	writeJSON(w, http.StatusOK, m)
}
