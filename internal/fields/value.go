// Package fields turns normalized document text into typed field values.
package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind is the dynamic type held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindDate
)

const dateLayout = "2006-01-02"

// Value is a string, integer or calendar date.
type Value struct {
	kind Kind
	s    string
	i    int64
	d    time.Time
}

// Fields maps stable field names (companyName, capital, ...) to values.
type Fields map[string]Value

func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }

// Date keeps only the calendar day, in UTC.
func Date(t time.Time) Value {
	return Value{kind: KindDate, d: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (v Value) Kind() Kind { return v.kind }

// Int64 returns the integer and whether the value holds one.
func (v Value) Int64() (int64, bool) { return v.i, v.kind == KindInt }

// Time returns the date and whether the value holds one.
func (v Value) Time() (time.Time, bool) { return v.d, v.kind == KindDate }

// String renders the value the way reviewers see it: dates as YYYY-MM-DD.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindDate:
		return v.d.Format(dateLayout)
	default:
		return v.s
	}
}

func (v Value) IsEmpty() bool {
	return v.kind == KindString && v.s == ""
}

// Any returns the value as a plain Go value (string, int64 or time.Time).
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindDate:
		return v.d
	default:
		return v.s
	}
}

// jsonDate is the wire form of a date, kept apart from plain strings so a
// string that happens to look like a date stays a string.
type jsonDate struct {
	Date string `json:"date"`
}

// MarshalJSON writes integers as numbers, dates as {"date":"YYYY-MM-DD"} and
// everything else as a string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindDate:
		return json.Marshal(jsonDate{Date: v.String()})
	default:
		return json.Marshal(v.s)
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return err
		}
		*v = Int(i)
	case string:
		*v = String(x)
	case map[string]any:
		s, ok := x["date"].(string)
		if !ok || len(x) != 1 {
			return fmt.Errorf("field value: unsupported JSON %s", b)
		}
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return fmt.Errorf("field value: %w", err)
		}
		*v = Date(d)
	case nil:
		*v = String("")
	default:
		return fmt.Errorf("field value: unsupported JSON %s", b)
	}
	return nil
}
