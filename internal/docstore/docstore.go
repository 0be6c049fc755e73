// Package docstore is the document-database contract used by the heist
// workflow and sign-up: named collections of JSON documents keyed by id.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Collection names.
const (
	Users  = "users"
	Heists = "heists"
)

// Store is implemented by every backend.
type Store interface {
	// ListAll returns every document in the collection ordered by key.
	ListAll(ctx context.Context, collection string) ([]Document, error)
	// WriteNew stores record under a store-assigned key and returns it.
	WriteNew(ctx context.Context, collection string, record any) (string, error)
	// WriteAt stores record under key, replacing any previous document.
	WriteAt(ctx context.Context, collection, key string, record any) error
}

// Document is a stored record as raw JSON.
type Document struct {
	ID   string
	Data json.RawMessage
}

// DataTo decodes the document into v.
func (d Document) DataTo(v any) error {
	return json.Unmarshal(d.Data, v)
}

// StoreError wraps a backend failure with the operation and collection.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("docstore %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Wrap attaches op and collection to err unless it already is a StoreError.
func Wrap(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Collection: collection, Err: err}
}

// serverTimestampField is the single key of the object written for a pending
// server timestamp. A JSON string cannot encode to an object, so user text
// never matches it.
const serverTimestampField = "$serverTimestamp"

var serverTimestampJSON = []byte(`{"` + serverTimestampField + `":true}`)

// ServerTimestampSentinel returns the JSON written for a pending server timestamp.
func ServerTimestampSentinel() string { return string(serverTimestampJSON) }

// Timestamp is a time field that may be left for the store to assign.
type Timestamp struct {
	time.Time
	server bool
}

// ServerTimestamp returns a placeholder resolved by the store on write.
func ServerTimestamp() Timestamp {
	return Timestamp{server: true}
}

// At wraps a concrete time.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// IsServer reports whether the value is still a placeholder.
func (t Timestamp) IsServer() bool { return t.server }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.server {
		return serverTimestampJSON, nil
	}
	return json.Marshal(t.Time.UTC())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if isPlaceholderJSON(data) {
		*t = ServerTimestamp()
		return nil
	}
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var tm time.Time
	if err := json.Unmarshal(data, &tm); err != nil {
		return err
	}
	*t = Timestamp{Time: tm}
	return nil
}

// Encode marshals record and substitutes every pending server timestamp
// with now. Backends with their own clock may substitute instead.
func Encode(record any, now time.Time) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return ResolveServerTimestamps(data, now)
}

// ResolveServerTimestamps replaces every pending server timestamp in data
// with now. Only placeholder objects are touched; strings are left alone.
func ResolveServerTimestamps(data []byte, now time.Time) ([]byte, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	stamp := now.UTC().Format(time.RFC3339Nano)
	return json.Marshal(resolve(doc, stamp))
}

// ServerTimestampPaths lists the location of every pending server timestamp
// in data, as object keys and array indexes, in a stable order.
func ServerTimestampPaths(data []byte) ([][]string, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	var paths [][]string
	collectPaths(doc, nil, &paths)
	return paths, nil
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func isPlaceholder(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	flag, ok := m[serverTimestampField].(bool)
	return ok && flag
}

func isPlaceholderJSON(data []byte) bool {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	return isPlaceholder(m)
}

func resolve(v any, stamp string) any {
	if isPlaceholder(v) {
		return stamp
	}
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			x[k] = resolve(child, stamp)
		}
	case []any:
		for i, child := range x {
			x[i] = resolve(child, stamp)
		}
	}
	return v
}

func collectPaths(v any, prefix []string, out *[][]string) {
	if isPlaceholder(v) {
		*out = append(*out, append([]string(nil), prefix...))
		return
	}
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectPaths(x[k], append(prefix, k), out)
		}
	case []any:
		for i, child := range x {
			collectPaths(child, append(prefix, strconv.Itoa(i)), out)
		}
	}
}
