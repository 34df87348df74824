package projection

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/fairyhunter13/inventory-dashboard/internal/model"
)

// SortKey orders rows by one column.
type SortKey struct {
	Column string
	Desc   bool
}

// View holds the table presentation state: multi-column sort, per-column
// filters and paging. Applying a View never changes the source snapshot.
type View struct {
	Sort     []SortKey
	Filters  map[string]string
	Page     int // zero-based
	PageSize int
}

const filterPrefix = "filter_"

// ParseView reads view parameters: sort=col,-col2 ; filter_<col>=expr ; page=N (1-based).
func ParseView(q url.Values, pageSize int) View {
	v := View{Sort: ParseSort(q.Get("sort")), Filters: map[string]string{}, PageSize: pageSize}
	for k, vals := range q {
		if !strings.HasPrefix(k, filterPrefix) || len(vals) == 0 {
			continue
		}
		if expr := strings.TrimSpace(vals[0]); expr != "" {
			v.Filters[strings.TrimPrefix(k, filterPrefix)] = expr
		}
	}
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		v.Page = p - 1
	}
	return v
}

// ParseSort reads a sort parameter such as "product_price,-product_id".
func ParseSort(param string) []SortKey {
	var keys []SortKey
	for _, part := range strings.Split(param, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "-" {
			continue
		}
		if strings.HasPrefix(part, "-") {
			keys = append(keys, SortKey{Column: part[1:], Desc: true})
		} else {
			keys = append(keys, SortKey{Column: part})
		}
	}
	return keys
}

// SortParam renders the sort keys back to the sort parameter form.
func (v View) SortParam() string {
	parts := make([]string, 0, len(v.Sort))
	for _, k := range v.Sort {
		if k.Desc {
			parts = append(parts, "-"+k.Column)
		} else {
			parts = append(parts, k.Column)
		}
	}
	return strings.Join(parts, ",")
}

// Toggle returns the sort parameter after clicking column: ascending, then
// descending, then removed. Other keys are kept.
func (v View) Toggle(column string) string {
	next := View{}
	found := false
	for _, k := range v.Sort {
		if k.Column != column {
			next.Sort = append(next.Sort, k)
			continue
		}
		found = true
		if !k.Desc {
			next.Sort = append(next.Sort, SortKey{Column: column, Desc: true})
		}
	}
	if !found {
		next.Sort = append(next.Sort, SortKey{Column: column})
	}
	return next.SortParam()
}

// Encode renders the view as query parameters.
func (v View) Encode() url.Values {
	q := url.Values{}
	if s := v.SortParam(); s != "" {
		q.Set("sort", s)
	}
	for col, expr := range v.Filters {
		q.Set(filterPrefix+col, expr)
	}
	if v.Page > 0 {
		q.Set("page", strconv.Itoa(v.Page+1))
	}
	return q
}

// Apply filters and then sorts s, returning a new snapshot.
func (v View) Apply(s Snapshot) Snapshot {
	out := Snapshot{Columns: s.Columns, Rows: make([]Row, 0, len(s.Rows)), Issue: s.Issue}
	for _, r := range s.Rows {
		if v.keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	if len(v.Sort) > 0 {
		slices.SortStableFunc(out.Rows, func(a, b Row) int {
			for _, k := range v.Sort {
				c := compareCells(a[k.Column], b[k.Column])
				if k.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}
	return out
}

// Paginate returns the rows of the current page, the offset of its first row
// within s, and the page count.
func (v View) Paginate(s Snapshot) (page Snapshot, offset, pages int) {
	size := v.PageSize
	if size <= 0 {
		size = len(s.Rows)
	}
	if size == 0 {
		return Snapshot{Columns: s.Columns, Rows: []Row{}, Issue: s.Issue}, 0, 1
	}
	pages = (len(s.Rows) + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	p := min(max(v.Page, 0), pages-1)
	offset = p * size
	end := min(offset+size, len(s.Rows))
	return Snapshot{Columns: s.Columns, Rows: s.Rows[offset:end], Issue: s.Issue}, offset, pages
}

func (v View) keep(r Row) bool {
	for col, expr := range v.Filters {
		if !matchFilter(r[col], expr) {
			return false
		}
	}
	return true
}

var operators = []string{">=", "<=", "!=", ">", "<", "="}

func matchFilter(cell any, expr string) bool {
	op := ""
	for _, o := range operators {
		if strings.HasPrefix(expr, o) {
			op = o
			expr = strings.TrimSpace(expr[len(o):])
			break
		}
	}
	if n, ok := model.AsFloat64(cell); ok {
		if f, err := strconv.ParseFloat(expr, 64); err == nil {
			switch op {
			case ">=":
				return n >= f
			case "<=":
				return n <= f
			case "!=":
				return n != f
			case ">":
				return n > f
			case "<":
				return n < f
			default:
				return n == f
			}
		}
	}
	text := cellText(cell)
	switch op {
	case "=":
		return text == expr
	case "!=":
		return text != expr
	case "":
		return strings.Contains(strings.ToLower(text), strings.ToLower(expr))
	}
	return false
}

func cellText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// compareCells orders nil before numbers before text.
func compareCells(a, b any) int {
	rank := func(v any) int {
		if v == nil {
			return 0
		}
		if _, ok := model.AsFloat64(v); ok {
			return 1
		}
		return 2
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		fa, _ := model.AsFloat64(a)
		fb, _ := model.AsFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 2:
		return strings.Compare(cellText(a), cellText(b))
	}
	return 0
}
