// Package docstore is a keyed JSON document store with simple where/order/limit queries.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Op is a comparison operator of a where filter.
type Op string

const (
	Eq  Op = "=="
	Lt  Op = "<"
	Lte Op = "<="
	Gt  Op = ">"
	Gte Op = ">="
)

// Filter compares a top-level or dotted document field to a value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query selects documents of one collection. A zero Limit means no limit.
type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Document is a stored document with its raw JSON body.
type Document struct {
	ID   string
	Data []byte
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", d.ID, err)
	}
	return nil
}

// Store is a collection/document key-value store.
type Store interface {
	// Get decodes the document into dest, or returns ErrNotFound.
	Get(ctx context.Context, collection, id string, dest any) error
	Set(ctx context.Context, collection, id string, v any) error
	// Update merges fields into the top level of an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	// BulkSet writes all documents atomically.
	BulkSet(ctx context.Context, collection string, docs map[string]any) error
	DeleteCollection(ctx context.Context, collection string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Close() error
}

// DecodeAll unmarshals query results.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func (q Query) validate() error {
	for _, f := range q.Where {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("invalid field %q", f.Field)
		}
		switch f.Op {
		case Eq, Lt, Lte, Gt, Gte:
		default:
			return fmt.Errorf("invalid operator %q", f.Op)
		}
		if _, ok := normalize(f.Value); !ok {
			return fmt.Errorf("unsupported value %T for %s", f.Value, f.Field)
		}
	}
	if q.OrderBy != "" && !fieldPattern.MatchString(q.OrderBy) {
		return fmt.Errorf("invalid order field %q", q.OrderBy)
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// normalize maps filter values onto the JSON scalar kinds: float64, string, bool.
func normalize(v any) (any, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string, bool:
		return x, true
	}
	// named numeric types such as status enums
	if n, ok := asFloat(v); ok {
		return n, true
	}
	return nil, false
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

func mergeFields(body []byte, fields map[string]any) ([]byte, error) {
	doc := map[string]any{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return encode(doc)
}
