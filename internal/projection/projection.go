// Package projection converts stored product documents into the flat table
// shown by the dashboard and back.
package projection

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/fairyhunter13/inventory-dashboard/internal/apperr"
	"github.com/fairyhunter13/inventory-dashboard/internal/model"
)

// Row is one table record keyed by column name.
type Row map[string]any

// Column describes a table column to the UI.
type Column struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Deletable  bool   `json:"deletable"`
	Selectable bool   `json:"selectable"`
}

// Snapshot is a full tabular view of the collection at one point in time.
// Snapshots are replaced wholesale, never edited.
type Snapshot struct {
	Columns []string
	Rows    []Row
	// Issue is set when the source documents lacked the internal identifier.
	// The snapshot is still complete.
	Issue error
}

// Empty returns a snapshot with no columns and no rows.
func Empty() Snapshot {
	return Snapshot{Columns: []string{}, Rows: []Row{}}
}

// ToSnapshot derives columns from the key set of docs in first-seen order and
// one row per document in iteration order. The internal identifier is never a
// column. Every row carries every column; absent fields are nil.
func ToSnapshot(docs []bson.D) Snapshot {
	s := Empty()
	seen := make(map[string]bool)
	missingID := false
	for _, d := range docs {
		hasID := false
		for _, e := range d {
			if e.Key == model.FieldInternalID {
				hasID = true
				continue
			}
			if !seen[e.Key] {
				seen[e.Key] = true
				s.Columns = append(s.Columns, e.Key)
			}
		}
		if !hasID {
			missingID = true
		}
	}
	for _, d := range docs {
		row := make(Row, len(s.Columns))
		for _, c := range s.Columns {
			row[c] = nil
		}
		for _, e := range d {
			if e.Key != model.FieldInternalID {
				row[e.Key] = e.Value
			}
		}
		s.Rows = append(s.Rows, row)
	}
	if missingID {
		s.Issue = apperr.New(apperr.KindProjectionInconsistency, "projection.snapshot", apperr.MsgIDNotFound)
	}
	return s
}

// FromRow builds a store-ready document from row following the column order.
// The internal identifier is stripped; nil cells are kept.
func FromRow(row Row, columns []string) bson.D {
	doc := make(bson.D, 0, len(columns))
	for _, c := range columns {
		if c == model.FieldInternalID {
			continue
		}
		v, ok := row[c]
		if !ok {
			continue
		}
		doc = append(doc, bson.E{Key: c, Value: v})
	}
	return doc
}

// Len returns the number of rows.
func (s Snapshot) Len() int { return len(s.Rows) }

// At returns the row at index i.
func (s Snapshot) At(i int) (Row, bool) {
	if i < 0 || i >= len(s.Rows) {
		return nil, false
	}
	return s.Rows[i], true
}

// Last returns the final row.
func (s Snapshot) Last() (Row, bool) {
	return s.At(len(s.Rows) - 1)
}

// ColumnDefs returns the UI column descriptors.
func (s Snapshot) ColumnDefs() []Column {
	out := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		out = append(out, Column{ID: c, Name: c, Deletable: false, Selectable: true})
	}
	return out
}

// ProductID returns the product id held by row.
func ProductID(row Row) (int64, bool) {
	if row == nil {
		return 0, false
	}
	return model.AsInt64(row[model.FieldID])
}
