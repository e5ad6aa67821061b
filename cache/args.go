package cache

import (
	"strconv"
	"strings"
)

// Args holds a parsed policy parameter string of the form "k1=v1,k2=v2".
//
// Keys are case-insensitive. A constructor reads the keys it knows with the
// typed getters, which record the effective value (default or given); Err
// then reports the first malformed value, any key nobody read, or a
// "print" request. A nil *Args behaves like an empty parameter string.
type Args struct {
	policy string
	vals   map[string]string
	order  []string
	used   map[string]bool

	effective []string
	print     bool
	err       error
}

// ParseArgs parses s for policy. Empty s yields empty Args.
func ParseArgs(policy, s string) (*Args, error) {
	a := &Args{policy: policy, vals: map[string]string{}, used: map[string]bool{}}
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if !ok || k == "" {
			return nil, &ConfigError{Policy: policy, Key: kv, Reason: "expected key=value"}
		}
		if strings.EqualFold(v, "print") {
			a.print = true
			continue
		}
		if _, dup := a.vals[k]; dup {
			return nil, &ConfigError{Policy: policy, Key: k, Value: v, Reason: "duplicate key"}
		}
		a.vals[k] = v
		a.order = append(a.order, k)
	}
	return a, nil
}

// MustParseArgs is ParseArgs for literals in tests and examples.
func MustParseArgs(policy, s string) *Args {
	a, err := ParseArgs(policy, s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Args) lookup(key string) (string, bool) {
	key = strings.ToLower(key)
	a.used[key] = true
	v, ok := a.vals[key]
	return v, ok
}

func (a *Args) record(key, v string) {
	a.effective = append(a.effective, strings.ToLower(key)+"="+v)
}

func (a *Args) fail(key, v, reason string) {
	if a.err == nil {
		a.err = &ConfigError{Policy: a.policy, Key: strings.ToLower(key), Value: v, Reason: reason}
	}
}

// Float returns the float value of key, or def.
func (a *Args) Float(key string, def float64) float64 {
	if a == nil {
		return def
	}
	v, ok := a.lookup(key)
	if !ok {
		a.record(key, strconv.FormatFloat(def, 'g', -1, 64))
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		a.fail(key, v, "not a number")
		return def
	}
	a.record(key, v)
	return f
}

// Int returns the integer value of key, or def.
func (a *Args) Int(key string, def int64) int64 {
	if a == nil {
		return def
	}
	v, ok := a.lookup(key)
	if !ok {
		a.record(key, strconv.FormatInt(def, 10))
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		a.fail(key, v, "not an integer")
		return def
	}
	a.record(key, v)
	return n
}

// Bool returns the boolean value of key, or def.
func (a *Args) Bool(key string, def bool) bool {
	if a == nil {
		return def
	}
	v, ok := a.lookup(key)
	if !ok {
		a.record(key, strconv.FormatBool(def))
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		a.fail(key, v, "not a boolean")
		return def
	}
	a.record(key, v)
	return b
}

// String returns the value of key, or def.
func (a *Args) String(key, def string) string {
	if a == nil {
		return def
	}
	v, ok := a.lookup(key)
	if !ok {
		v = def
	}
	a.record(key, v)
	return v
}

// Check records a range error for key when ok is false.
func (a *Args) Check(ok bool, key, reason string) {
	if a == nil || ok {
		return
	}
	a.fail(key, a.vals[strings.ToLower(key)], reason)
}

// Effective returns the parameters read so far as "k=v,k=v".
func (a *Args) Effective() string {
	if a == nil {
		return ""
	}
	return strings.Join(a.effective, ",")
}

// Err reports the first parse or range error, then any unread key, then a
// pending "print" request.
func (a *Args) Err() error {
	if a == nil {
		return nil
	}
	if a.err != nil {
		return a.err
	}
	for _, k := range a.order {
		if !a.used[k] {
			return &ConfigError{Policy: a.policy, Key: k, Value: a.vals[k], Reason: "unknown parameter"}
		}
	}
	if a.print {
		return &PrintParamsError{Policy: a.policy, Params: a.Effective()}
	}
	return nil
}
