package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is one structured line of orchestrator output.
type Record struct {
	Timestamp float64 `json:"timestamp"` // ms since epoch
	Level     string  `json:"level"`
	AgentID   string  `json:"agentId"`
	Message   string  `json:"message"`
	Data      Data    `json:"data"`
}

// Time returns the record's timestamp in loc.
func (r Record) Time(loc *time.Location) time.Time {
	return time.UnixMilli(int64(r.Timestamp)).In(loc)
}

// Field is one key/value pair of a record's auxiliary data.
type Field struct {
	Key   string
	Value any
}

// Data is a record's auxiliary data. Unlike a map it remembers key order, which is the order fields are rendered in.
// Numbers are kept as json.Number so integers and fractions can be told apart.
type Data struct {
	fields []Field
	raw    json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler. null and non-object values decode to empty Data.
func (d *Data) UnmarshalJSON(b []byte) error {
	d.fields = nil
	d.raw = append(d.raw[:0], b...)

	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return err
	}
	index := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		if i, seen := index[key]; seen {
			d.fields[i].Value = v
			continue
		}
		index[key] = len(d.fields)
		d.fields = append(d.fields, Field{Key: key, Value: v})
	}
	return nil
}

// NewData builds Data from fields in order. Intended for tests and callers that synthesize records.
func NewData(fields ...Field) Data {
	return Data{fields: append([]Field(nil), fields...)}
}

// Fields returns the fields in their original order.
func (d Data) Fields() []Field {
	return d.fields
}

// Len returns the number of fields.
func (d Data) Len() int {
	return len(d.fields)
}

// Get returns the value stored under key.
func (d Data) Get(key string) (any, bool) {
	for _, f := range d.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the string value stored under key, or "" if it is missing or not a string.
func (d Data) String(key string) string {
	v, _ := d.Get(key)
	s, _ := v.(string)
	return s
}

// Int returns the integer value stored under key. Fractions are truncated; missing or non-numeric values are 0.
func (d Data) Int(key string) int64 {
	v, _ := d.Get(key)
	n, _ := asInt(v)
	return n
}

// Float returns the numeric value stored under key, or 0.
func (d Data) Float(key string) float64 {
	v, _ := d.Get(key)
	f, _ := asFloat(v)
	return f
}

func asInt(val any) (int64, bool) {
	switch v := val.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func asFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
