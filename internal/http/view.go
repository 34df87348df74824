package httpapi

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/fairyhunter13/inventory-dashboard/internal/apperr"
	"github.com/fairyhunter13/inventory-dashboard/internal/projection"
	"github.com/fairyhunter13/inventory-dashboard/internal/reconcile"
	"github.com/fairyhunter13/inventory-dashboard/internal/session"
)

// dashboard is the full replacement state sent to the UI on every cycle.
type dashboard struct {
	Columns []projection.Column `json:"columns"`
	Rows    []projection.Row    `json:"rows"`
	// Selected indexes the filtered and sorted table, -1 when it is empty.
	Selected    int                 `json:"selected"`
	Offset      int                 `json:"offset"`
	Page        int                 `json:"page"`
	Pages       int                 `json:"pages"`
	Total       int                 `json:"total"`
	Sort        string              `json:"sort,omitempty"`
	Filters     map[string]string   `json:"filters,omitempty"`
	User        string              `json:"user,omitempty"`
	Affordances session.Affordances `json:"affordances"`
	Error       string              `json:"error,omitempty"`
}

type header struct {
	Name   string
	Link   string
	Marker string
	Filter string
}

type line struct {
	Link     string
	Cells    []string
	Selected bool
}

type field struct {
	Name  string
	Value string
}

// page is the template data of dashboard.html.
type page struct {
	dashboard
	Headers  []header
	Lines    []line
	Hidden   []field
	PrevLink string
	NextLink string
	Form     reconcile.Form
}

// loadDashboard reads the collection through the gate and presents it.
func (a *App) loadDashboard(ctx context.Context, v projection.View, selected int, msg string) dashboard {
	s := projection.Empty()
	if a.Gate.Authenticated() {
		var err error
		s, err = a.Reconciler.Refresh(ctx, a.Gate)
		if msg == "" && err != nil {
			msg = apperr.UserMessage(err)
		}
	}
	return a.present(s, v, selected, msg)
}

// present derives the dashboard for s as seen through v.
func (a *App) present(s projection.Snapshot, v projection.View, selected int, msg string) dashboard {
	if msg == "" && s.Issue != nil {
		msg = apperr.UserMessage(s.Issue)
	}
	table := v.Apply(s)
	shown, offset, pages := v.Paginate(table)
	switch {
	case table.Len() == 0:
		selected = -1
	case selected < 0 || selected >= table.Len():
		selected = 0
	}
	return dashboard{
		Columns:     shown.ColumnDefs(),
		Rows:        shown.Rows,
		Selected:    selected,
		Offset:      offset,
		Page:        offset/max(v.PageSize, 1) + 1,
		Pages:       pages,
		Total:       table.Len(),
		Sort:        v.SortParam(),
		Filters:     v.Filters,
		User:        a.Gate.Username(),
		Affordances: a.Gate.Affordances(),
		Error:       msg,
	}
}

func (a *App) render(d dashboard, v projection.View) page {
	p := page{dashboard: d}
	for _, c := range d.Columns {
		h := header{Name: c.Name, Filter: v.Filters[c.ID]}
		sv := v
		sv.Sort = projection.ParseSort(v.Toggle(c.ID))
		h.Link = link(sv, d.Selected, d.Page)
		for _, k := range v.Sort {
			if k.Column == c.ID {
				h.Marker = " ▲"
				if k.Desc {
					h.Marker = " ▼"
				}
			}
		}
		p.Headers = append(p.Headers, h)
	}
	for i, r := range d.Rows {
		idx := d.Offset + i
		l := line{Link: link(v, idx, d.Page), Selected: idx == d.Selected}
		for _, c := range d.Columns {
			l.Cells = append(l.Cells, cell(r[c.ID]))
		}
		p.Lines = append(p.Lines, l)
	}
	if d.Page > 1 {
		p.PrevLink = link(v, d.Selected, d.Page-1)
	}
	if d.Page < d.Pages {
		p.NextLink = link(v, d.Selected, d.Page+1)
	}
	q := v.Encode()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Hidden = append(p.Hidden, field{Name: k, Value: q.Get(k)})
	}
	return p
}

// link returns the dashboard URL for v with the given selection and 1-based page.
func link(v projection.View, row, pageNum int) string {
	q := v.Encode()
	q.Del("page")
	if pageNum > 1 {
		q.Set("page", strconv.Itoa(pageNum))
	}
	if row >= 0 {
		q.Set("row", strconv.Itoa(row))
	}
	return "/?" + q.Encode()
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
