package cleaning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/ekaya-inc/mongofilm/pkg/models"
	"github.com/ekaya-inc/mongofilm/pkg/pyliteral"
	"github.com/ekaya-inc/mongofilm/pkg/tabular"
)

// ColumnProfile summarizes a single column.
type ColumnProfile struct {
	Column string
	Type   ColumnType
	Length int
	Nulls  int
	// Uniques counts distinct values, null included.
	Uniques int
	// Repeats counts rows whose value, null included, appeared earlier.
	Repeats int
	Min     string
	Max     string
	Head    string
}

// ProfileHeader is the header of the table returned by ProfileTable.
var ProfileHeader = []string{"column", "type", "length", "nulls", "uniques", "repeats", "min", "max", "head"}

// Profile summarizes every column of t using the declared types of schema.
func Profile(t *tabular.Table, schema Schema) []ColumnProfile {
	header := t.Header()
	out := make([]ColumnProfile, 0, len(header))
	for _, column := range header {
		out = append(out, profileColumn(column, schema.TypeOf(column), t.MustColumn(column)))
	}
	return out
}

func profileColumn(name string, typ ColumnType, cells []string) ColumnProfile {
	p := ColumnProfile{Column: name, Type: typ, Length: len(cells)}
	if len(cells) > 0 {
		p.Head = cells[0]
	}

	distinct := make(map[string]struct{}, len(cells))
	hasNull := false
	first := true
	for _, v := range cells {
		if v == "" {
			p.Nulls++
			hasNull = true
			continue
		}
		distinct[v] = struct{}{}

		if first {
			p.Min, p.Max = v, v
			first = false
			continue
		}
		if less(typ, v, p.Min) {
			p.Min = v
		}
		if less(typ, p.Max, v) {
			p.Max = v
		}
	}

	p.Uniques = len(distinct)
	if hasNull {
		p.Uniques++
	}
	p.Repeats = p.Length - p.Uniques
	return p
}

func less(typ ColumnType, a, b string) bool {
	switch typ {
	case Int, Float:
		fa, errA := strconv.ParseFloat(a, 64)
		fb, errB := strconv.ParseFloat(b, 64)
		if errA == nil && errB == nil {
			return fa < fb
		}
	case Date:
		da, okA := models.ParseReleaseDate(a)
		db, okB := models.ParseReleaseDate(b)
		if okA && okB {
			return da.Before(db)
		}
	case Bool:
		return a == "false" && b == "true"
	}
	return a < b
}

// ProfileTable renders profiles as a table, one row per column.
func ProfileTable(name string, profiles []ColumnProfile) *tabular.Table {
	t := tabular.New(name+"_profile", ProfileHeader)
	for _, p := range profiles {
		_ = t.Append([]string{
			p.Column,
			p.Type.String(),
			strconv.Itoa(p.Length),
			strconv.Itoa(p.Nulls),
			strconv.Itoa(p.Uniques),
			strconv.Itoa(p.Repeats),
			p.Min,
			p.Max,
			p.Head,
		})
	}
	return t
}

// ProfileEmbedded flattens the items of an embedded column into a table with
// one column per item key, keeping each distinct item once. List cells
// contribute each element, object cells contribute themselves. Cells that do
// not parse are skipped.
func ProfileEmbedded(t *tabular.Table, column string) (*tabular.Table, error) {
	cells, err := t.Column(column)
	if err != nil {
		return nil, err
	}

	var items []map[string]json.RawMessage
	seen := make(map[string]struct{})
	keys := make(map[string]struct{})

	add := func(raw json.RawMessage) {
		var item map[string]json.RawMessage
		if err := json.Unmarshal(raw, &item); err != nil {
			return
		}
		// Re-marshalling a map sorts its keys, which gives a canonical identity.
		canonical, err := json.Marshal(item)
		if err != nil {
			return
		}
		if _, dup := seen[string(canonical)]; dup {
			return
		}
		seen[string(canonical)] = struct{}{}
		for k := range item {
			keys[k] = struct{}{}
		}
		items = append(items, item)
	}

	for _, cell := range cells {
		if cell == "" {
			continue
		}
		data, err := pyliteral.ToJSON(cell)
		if err != nil {
			continue
		}
		var list []json.RawMessage
		if json.Unmarshal(data, &list) == nil {
			for _, raw := range list {
				add(raw)
			}
			continue
		}
		add(data)
	}

	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	out := tabular.New(fmt.Sprintf("%s.%s", t.Name, column), header)
	record := make([]string, len(header))
	for _, item := range items {
		for i, k := range header {
			record[i] = itemCell(item[k])
		}
		_ = out.Append(record)
	}
	return out, nil
}

// itemCell renders one field of an embedded item. Missing fields and JSON null
// become the null cell, integral numbers drop their fraction and nested values
// stay as raw JSON.
func itemCell(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}

	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	default:
		return string(raw)
	}
}
