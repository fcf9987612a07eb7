package docstore

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// lookup resolves a dotted path in a decoded JSON object.
func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// compare orders two JSON scalars of the same kind. ok is false when the
// kinds differ, which never matches a filter.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if x == y {
			return 0, true
		}
		if !x {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func matches(doc map[string]any, filters []Filter) bool {
	for _, f := range filters {
		got, ok := lookup(doc, f.Field)
		if !ok {
			return false
		}
		want, _ := normalize(f.Value)
		c, ok := compare(got, want)
		if !ok {
			return false
		}
		var pass bool
		switch f.Op {
		case Eq:
			pass = c == 0
		case Lt:
			pass = c < 0
		case Lte:
			pass = c <= 0
		case Gt:
			pass = c > 0
		case Gte:
			pass = c >= 0
		}
		if !pass {
			return false
		}
	}
	return true
}

type candidate struct {
	doc  Document
	body map[string]any
}

// apply runs a query over documents already sorted by id.
func apply(docs []Document, q Query) ([]Document, error) {
	var hits []candidate
	for _, d := range docs {
		body := map[string]any{}
		if err := json.Unmarshal(d.Data, &body); err != nil {
			return nil, err
		}
		if matches(body, q.Where) {
			hits = append(hits, candidate{doc: d, body: body})
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(hits, func(i, j int) bool {
			a, aok := lookup(hits[i].body, q.OrderBy)
			b, bok := lookup(hits[j].body, q.OrderBy)
			// missing values sort first ascending, like NULL in SQLite
			if !aok || !bok {
				if q.Desc {
					return aok && !bok
				}
				return !aok && bok
			}
			c, _ := compare(a, b)
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	out := make([]Document, len(hits))
	for i, h := range hits {
		out[i] = h.doc
	}
	return out, nil
}
