// Package reconcile turns one action signal on the displayed table into a
// single store mutation and refreshes the table afterwards.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/fairyhunter13/inventory-dashboard/internal/apperr"
	"github.com/fairyhunter13/inventory-dashboard/internal/model"
	"github.com/fairyhunter13/inventory-dashboard/internal/obs"
	"github.com/fairyhunter13/inventory-dashboard/internal/projection"
)

// Session is the gated store surface the reconciler works through.
type Session interface {
	Authenticated() bool
	Create(ctx context.Context, doc bson.D) error
	Read(ctx context.Context, filter bson.D) ([]bson.D, error)
	Update(ctx context.Context, filter, patch bson.D) error
	Delete(ctx context.Context, filter bson.D) error
}

// Result is the outcome of one cycle.
type Result struct {
	Seq    uint64
	Action Action
	// Mutation is set when a store call was issued.
	Mutation *Mutation
	// Snapshot is always a fresh read, or empty when unauthenticated or the
	// read failed.
	Snapshot projection.Snapshot
	Err      error
}

// Stats are counters since process start.
type Stats struct {
	Dispatched uint64 `json:"actions_dispatched"`
	Failed     uint64 `json:"actions_failed"`
	State      string `json:"state"`
	LastSeq    uint64 `json:"last_seq"`
}

// Reconciler processes action signals one at a time.
type Reconciler struct {
	mu    sync.Mutex
	seq   Sequencer
	state atomic.Int32

	dispatched atomic.Uint64
	failed     atomic.Uint64
}

func New() *Reconciler {
	return &Reconciler{}
}

// State returns the current state.
func (r *Reconciler) State() State { return State(r.state.Load()) }

// Stats returns a copy of the counters.
func (r *Reconciler) Stats() Stats {
	return Stats{
		Dispatched: r.dispatched.Load(),
		Failed:     r.failed.Load(),
		State:      r.State().String(),
		LastSeq:    r.seq.Last(),
	}
}

// Plan derives the mutation for req without touching the store.
//
// Update patches product_price and product_quantity, and product_name only
// when a name was typed. Add continues the ids from the last row of
// req.Snapshot, which is the table as displayed and not necessarily the
// highest id stored.
func (r *Reconciler) Plan(req Request) (Mutation, error) {
	switch req.Action {
	case ActionUpdate:
		id, err := selectedID(req, apperr.MsgSelectRow)
		if err != nil {
			return Mutation{}, err
		}
		price, err := parsePrice(req.Form.Price)
		if err != nil {
			return Mutation{}, err
		}
		qty, err := parseQuantity(req.Form.Quantity)
		if err != nil {
			return Mutation{}, err
		}
		patch := bson.D{}
		if req.Form.Name != "" {
			patch = append(patch, bson.E{Key: model.FieldName, Value: req.Form.Name})
		}
		patch = append(patch,
			bson.E{Key: model.FieldPrice, Value: price.InexactFloat64()},
			bson.E{Key: model.FieldQuantity, Value: qty},
		)
		return Mutation{Action: ActionUpdate, Filter: model.ByID(id), Patch: patch}, nil

	case ActionDelete:
		id, err := selectedID(req, apperr.MsgSpecifyDelete)
		if err != nil {
			return Mutation{}, err
		}
		return Mutation{Action: ActionDelete, Filter: model.ByID(id)}, nil

	case ActionAdd:
		price, err := parsePrice(req.Form.Price)
		if err != nil {
			return Mutation{}, err
		}
		qty, err := parseQuantity(req.Form.Quantity)
		if err != nil {
			return Mutation{}, err
		}
		last, ok := req.Snapshot.Last()
		if !ok {
			return Mutation{}, apperr.New(apperr.KindValidation, "reconcile.add", apperr.MsgEmptyTable)
		}
		id, ok := projection.ProductID(last)
		if !ok {
			return Mutation{}, apperr.New(apperr.KindValidation, "reconcile.add", apperr.MsgCannotConvert)
		}
		p := model.Product{ProductID: id + 1, Name: req.Form.Name, Price: price.InexactFloat64(), Quantity: qty}
		return Mutation{Action: ActionAdd, Document: p.Document()}, nil
	}
	return Mutation{}, apperr.New(apperr.KindValidation, "reconcile.plan", apperr.MsgUnknownAction)
}

func selectedID(req Request, msg string) (int64, error) {
	row, ok := req.Snapshot.At(req.Selected)
	if !ok {
		return 0, apperr.New(apperr.KindValidation, "reconcile.select", msg)
	}
	id, ok := projection.ProductID(row)
	if !ok {
		return 0, apperr.New(apperr.KindValidation, "reconcile.select", msg)
	}
	return id, nil
}

// Dispatch runs one cycle: plan, apply at most one mutation, then re-read the
// whole collection. Cycles never overlap and always end in Idle. When the
// displayed table cannot be read the cycle stops with that error.
func (r *Reconciler) Dispatch(ctx context.Context, sess Session, req Request) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := Result{Seq: r.seq.Next(), Action: req.Action}
	r.dispatched.Add(1)
	defer func() {
		if res.Err != nil {
			r.failed.Add(1)
		}
		obs.Logger.Info("action_dispatched",
			"seq", res.Seq,
			"action", string(req.Action),
			"outcome", outcome(res.Err),
			"rows", res.Snapshot.Len(),
		)
	}()

	if !sess.Authenticated() {
		res.Snapshot = projection.Empty()
		res.Err = apperr.New(apperr.KindAuthRequired, "reconcile.dispatch", apperr.MsgLoginFirst)
		return res
	}

	r.state.Store(int32(stateFor(req.Action)))
	defer r.state.Store(int32(Idle))

	if req.View != nil {
		snap, err := refresh(ctx, sess)
		if err != nil {
			res.Snapshot = snap
			res.Err = err
			return res
		}
		req.Snapshot = req.View.Apply(snap)
	}

	m, err := r.Plan(req)
	if err == nil {
		res.Mutation = &m
		err = apply(ctx, sess, m)
	}
	res.Err = err

	snap, rerr := refresh(ctx, sess)
	res.Snapshot = snap
	if rerr != nil {
		if res.Err == nil {
			res.Err = rerr
		} else {
			obs.Logger.Warn("refresh_failed", "seq", res.Seq, "error", rerr)
		}
	}
	return res
}

// Refresh re-reads the collection outside of an action cycle.
func (r *Reconciler) Refresh(ctx context.Context, sess Session) (projection.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !sess.Authenticated() {
		return projection.Empty(), apperr.New(apperr.KindAuthRequired, "reconcile.refresh", apperr.MsgLoginFirst)
	}
	return refresh(ctx, sess)
}

func apply(ctx context.Context, sess Session, m Mutation) error {
	switch m.Action {
	case ActionUpdate:
		return sess.Update(ctx, m.Filter, m.Patch)
	case ActionDelete:
		return sess.Delete(ctx, m.Filter)
	case ActionAdd:
		return sess.Create(ctx, m.Document)
	}
	return apperr.New(apperr.KindValidation, "reconcile.apply", apperr.MsgUnknownAction)
}

func refresh(ctx context.Context, sess Session) (projection.Snapshot, error) {
	docs, err := sess.Read(ctx, nil)
	if err != nil {
		return projection.Empty(), err
	}
	return projection.ToSnapshot(docs), nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
