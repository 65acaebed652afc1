package flow

import "github.com/spf13/cast"

// Vars holds a session's extracted variables. Keys are unique, last write
// wins. A Vars map is owned by exactly one session and never shared.
type Vars map[string]any

// Get returns the raw value for key and whether it exists.
func (v Vars) Get(key string) (any, bool) {
	val, ok := v[key]
	return val, ok
}

// GetString returns the value for key coerced to a string. Missing keys
// coerce to the zero value.
func (v Vars) GetString(key string) string {
	return cast.ToString(v[key])
}

// GetInt returns the value for key coerced to an int.
func (v Vars) GetInt(key string) int {
	return cast.ToInt(v[key])
}

// GetBool returns the value for key coerced to a bool.
func (v Vars) GetBool(key string) bool {
	return cast.ToBool(v[key])
}

// GetFloat returns the value for key coerced to a float64.
func (v Vars) GetFloat(key string) float64 {
	return cast.ToFloat64(v[key])
}

// Set writes key. Last write wins.
func (v Vars) Set(key string, value any) {
	v[key] = value
}

// Clone returns a shallow copy so snapshots cannot mutate the original.
func (v Vars) Clone() Vars {
	out := make(Vars, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
