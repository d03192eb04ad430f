package table

import (
	"fmt"
	"time"
)

// Kind is the column kind decided once, at load time.
type Kind int

const (
	Text Kind = iota
	Numeric
	Datetime
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Datetime:
		return "datetime"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TimestampLayout is the wire and key format for datetime values.
const TimestampLayout = "2006-01-02 15:04:05"

// Value is a single cell. Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind
	Null bool
	Num  float64
	Time time.Time
	Str  string
}

func NumberValue(f float64) Value { return Value{Kind: Numeric, Num: f} }
func TimeValue(t time.Time) Value { return Value{Kind: Datetime, Time: t} }
func TextValue(s string) Value    { return Value{Kind: Text, Str: s} }
func NullValue(kind Kind) Value   { return Value{Kind: kind, Null: true} }

// String renders the cell for display.
func (v Value) String() string {
	if v.Null {
		return ""
	}
	switch v.Kind {
	case Numeric:
		return fmt.Sprintf("%g", v.Num)
	case Datetime:
		return v.Time.Format(TimestampLayout)
	default:
		return v.Str
	}
}

// ConfigError reports a user selection that cannot be applied: a missing
// column, a column of the wrong kind or inverted bounds. The operation is
// not attempted.
type ConfigError struct {
	Column string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("configuration error: column %q: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// Configf builds a ConfigError for the given column.
func Configf(column, format string, args ...any) *ConfigError {
	return &ConfigError{Column: column, Reason: fmt.Sprintf(format, args...)}
}
