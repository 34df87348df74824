package reconcile

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/fairyhunter13/inventory-dashboard/internal/apperr"
	"github.com/fairyhunter13/inventory-dashboard/internal/projection"
)

// Action tags one user triggered mutation.
type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionAdd    Action = "add"
)

// ParseAction accepts the action tag case-insensitively.
func ParseAction(s string) (Action, bool) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionUpdate, ActionDelete, ActionAdd:
		return a, true
	}
	return "", false
}

// State is the reconciler state. Every cycle leaves it at Idle.
type State int32

const (
	Idle State = iota
	Updating
	Deleting
	Adding
)

func (s State) String() string {
	switch s {
	case Updating:
		return "updating"
	case Deleting:
		return "deleting"
	case Adding:
		return "adding"
	}
	return "idle"
}

func stateFor(a Action) State {
	switch a {
	case ActionUpdate:
		return Updating
	case ActionDelete:
		return Deleting
	case ActionAdd:
		return Adding
	}
	return Idle
}

// Form holds the raw modification fields as typed by the user.
type Form struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// Request is one action signal together with the table it was fired on.
type Request struct {
	Action Action
	// Selected indexes Snapshot.Rows.
	Selected int
	Snapshot projection.Snapshot
	// View, when set, makes Dispatch read the collection and derive Snapshot
	// through it inside the cycle.
	View *projection.View
	Form Form
}

// Mutation is the single store call derived from a Request.
type Mutation struct {
	Action   Action `json:"action"`
	Filter   bson.D `json:"filter,omitempty"`
	Patch    bson.D `json:"patch,omitempty"`
	Document bson.D `json:"document,omitempty"`
}

func parsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.KindValidation, "reconcile.parse", apperr.MsgCannotConvert, err)
	}
	// The price is stored as a float64 and has to stay finite.
	if f := d.InexactFloat64(); d.IsNegative() || math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Zero, apperr.New(apperr.KindValidation, "reconcile.parse", apperr.MsgCannotConvert)
	}
	return d, nil
}

func parseQuantity(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindValidation, "reconcile.parse", apperr.MsgCannotConvert, err)
	}
	if n < 0 {
		return 0, apperr.New(apperr.KindValidation, "reconcile.parse", apperr.MsgCannotConvert)
	}
	return n, nil
}
