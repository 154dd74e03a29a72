package models

import (
	"github.com/tidwall/gjson"
)

// Record is a server record kept in its raw JSON form. Fields are read
// leniently so a malformed record degrades to zero values.
type Record []byte

func (r Record) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}

// Get returns the value at a gjson path.
func (r Record) Get(path string) gjson.Result {
	return gjson.GetBytes(r, path)
}

// String returns the field as a string, "" when absent or null.
func (r Record) String(path string) string {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return v.String()
}

// Int returns the field as an int, 0 when absent or not numeric.
func (r Record) Int(path string) int {
	v := r.Get(path)
	switch v.Type {
	case gjson.Number:
		return int(v.Int())
	case gjson.String:
		return int(v.Int())
	}
	return 0
}

// ID returns the record identifier as a string.
func (r Record) ID() string { return r.String("id") }

// Strings returns an array field as strings.
func (r Record) Strings(path string) []string {
	v := r.Get(path)
	if !v.IsArray() {
		return nil
	}
	out := make([]string, 0, len(v.Array()))
	for _, item := range v.Array() {
		if item.Type == gjson.Null {
			continue
		}
		out = append(out, item.String())
	}
	return out
}

// Index builds an id keyed map of records.
func Index(records []Record) map[string]Record {
	m := make(map[string]Record, len(records))
	for _, r := range records {
		if id := r.ID(); id != "" {
			m[id] = r
		}
	}
	return m
}
