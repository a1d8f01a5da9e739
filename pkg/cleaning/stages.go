package cleaning

import (
	"strings"

	"github.com/ekaya-inc/mongofilm/pkg/models"
	"github.com/ekaya-inc/mongofilm/pkg/pyliteral"
	"github.com/ekaya-inc/mongofilm/pkg/tabular"
)

// Stage names used in reports and metrics.
const (
	StageCoerce         = "coerce"
	StageDropNulls      = "drop_nulls"
	StageUnique         = "unique"
	StageParseDates     = "parse_dates"
	StageFilterEmbedded = "filter_embedded"
	StageReconcile      = "reconcile"
)

// DropNulls keeps the rows that have a value in every listed column.
// Columns missing from the table count as null.
func DropNulls(t *tabular.Table, columns ...string) *tabular.Table {
	cols := make([][]string, 0, len(columns))
	for _, c := range columns {
		cells, err := t.Column(c)
		if err != nil {
			return t.Filter(func(int) bool { return false })
		}
		cols = append(cols, cells)
	}
	return t.Filter(func(row int) bool {
		for _, cells := range cols {
			if cells[row] == "" {
				return false
			}
		}
		return true
	})
}

// Unique keeps the first row for each distinct combination of the listed
// columns and drops the later ones. Nulls compare equal to each other.
func Unique(t *tabular.Table, columns ...string) *tabular.Table {
	cols := make([][]string, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, t.MustColumn(c))
	}

	seen := make(map[string]struct{}, t.Len())
	var key strings.Builder
	return t.Filter(func(row int) bool {
		key.Reset()
		for i, cells := range cols {
			if i > 0 {
				key.WriteByte(0)
			}
			if cells[row] == "" {
				// Distinguish null from any real value.
				key.WriteByte(1)
				continue
			}
			key.WriteString(cells[row])
		}
		k := key.String()
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
}

// ParseDates rewrites column as YYYY-MM-DD and drops rows whose value is
// missing or not a valid calendar date in that format.
func ParseDates(t *tabular.Table, column string) *tabular.Table {
	cells := t.MustColumn(column)
	out := t.Filter(func(row int) bool {
		_, ok := models.ParseReleaseDate(cells[row])
		return ok
	})
	normalized := out.MustColumn(column)
	for row, v := range normalized {
		d, _ := models.ParseReleaseDate(v)
		if s := d.Format(models.ReleaseDateLayout); s != v {
			_ = out.Set(row, column, s)
		}
	}
	return out
}

// FilterEmbedded keeps the rows where every listed column is either null or a
// valid list or object literal.
func FilterEmbedded(t *tabular.Table, columns ...string) *tabular.Table {
	for _, c := range columns {
		cells := t.MustColumn(c)
		t = t.Filter(func(row int) bool {
			return cells[row] == "" || pyliteral.IsListOrObject(cells[row])
		})
	}
	return t
}

// KeySet collects the non-null values of a column.
func KeySet(t *tabular.Table, column string) map[string]struct{} {
	cells := t.MustColumn(column)
	set := make(map[string]struct{}, len(cells))
	for _, v := range cells {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// SemiJoin keeps the rows whose column value is in keys. Null never matches.
func SemiJoin(t *tabular.Table, column string, keys map[string]struct{}) *tabular.Table {
	cells := t.MustColumn(column)
	return t.Filter(func(row int) bool {
		if cells[row] == "" {
			return false
		}
		_, ok := keys[cells[row]]
		return ok
	})
}

// Intersect returns the keys present in every set.
func Intersect(sets ...map[string]struct{}) map[string]struct{} {
	if len(sets) == 0 {
		return map[string]struct{}{}
	}
	out := make(map[string]struct{}, len(sets[0]))
	for k := range sets[0] {
		inAll := true
		for _, s := range sets[1:] {
			if _, ok := s[k]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out[k] = struct{}{}
		}
	}
	return out
}
