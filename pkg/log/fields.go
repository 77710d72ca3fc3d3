package log

import "time"

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

func Str(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field     { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field   { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Dur records a duration in milliseconds.
func Dur(key string, d time.Duration) Field {
	return Field{Key: key, Value: d.Milliseconds()}
}

// Time records t in RFC3339 with milliseconds.
func Time(key string, t time.Time) Field {
	return Field{Key: key, Value: t.Format("2006-01-02T15:04:05.000Z07:00")}
}

// Err records err under "error". A nil error yields an empty string.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err}
}

// Component tags the owning subsystem.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }
