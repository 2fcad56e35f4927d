package anvl

import (
	"fmt"
	"iter"
	"slices"
)

// Reserved keys understood by the registry. Every other key is ordinary
// metadata and passes through unchanged.
const (
	KeyIdentifier = "_id"
	KeyTarget     = "_target"
	KeyStatus     = "_status"
	KeyProfile    = "_profile"
	KeyOwner      = "_owner"
	KeyOwnerGroup = "_ownergroup"
	KeyCreated    = "_created"
	KeyUpdated    = "_updated"
	KeyExport     = "_export"
)

// Pair is a single key/value entry of a Record.
type Pair struct {
	Key   string
	Value string
}

// Record is an ordered key/value mapping. The zero value is an empty record.
type Record struct {
	pairs []Pair
	index map[string]int
}

// DuplicateKeyError reports a key that appears more than once.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("anvl: duplicate key %q", e.Key)
}

// ErrorKind classifies the error for batch reporting.
func (e *DuplicateKeyError) ErrorKind() string { return "format" }

// New builds a record from pairs, preserving their order.
func New(pairs ...Pair) (Record, error) {
	rec := Record{
		pairs: make([]Pair, 0, len(pairs)),
		index: make(map[string]int, len(pairs)),
	}
	for _, p := range pairs {
		if _, dup := rec.index[p.Key]; dup {
			return Record{}, &DuplicateKeyError{Key: p.Key}
		}
		rec.index[p.Key] = len(rec.pairs)
		rec.pairs = append(rec.pairs, p)
	}
	return rec, nil
}

// MustNew is New for literals known to be valid. It panics on duplicate keys.
func MustNew(pairs ...Pair) Record {
	rec, err := New(pairs...)
	if err != nil {
		panic(err)
	}
	return rec
}

// FromStrings builds a record from alternating keys and values.
func FromStrings(kv ...string) (Record, error) {
	if len(kv)%2 != 0 {
		return Record{}, fmt.Errorf("anvl: odd number of key/value arguments (%d)", len(kv))
	}
	pairs := make([]Pair, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		pairs = append(pairs, Pair{Key: kv[i], Value: kv[i+1]})
	}
	return New(pairs...)
}

// Len returns the number of pairs.
func (r Record) Len() int { return len(r.pairs) }

// IsEmpty reports whether the record has no pairs.
func (r Record) IsEmpty() bool { return len(r.pairs) == 0 }

// Get returns the value stored under key.
func (r Record) Get(key string) (string, bool) {
	i, ok := r.index[key]
	if !ok {
		return "", false
	}
	return r.pairs[i].Value, true
}

// Value returns the value stored under key or "" when absent.
func (r Record) Value(key string) string {
	v, _ := r.Get(key)
	return v
}

// Has reports whether key is present, even with an empty value.
func (r Record) Has(key string) bool {
	_, ok := r.index[key]
	return ok
}

// Identifier returns the reserved identifier value, if any.
func (r Record) Identifier() string { return r.Value(KeyIdentifier) }

// Target returns the reserved target URL value, if any.
func (r Record) Target() string { return r.Value(KeyTarget) }

// Keys returns the keys in record order.
func (r Record) Keys() []string {
	keys := make([]string, len(r.pairs))
	for i, p := range r.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Pairs returns a copy of the pairs in record order.
func (r Record) Pairs() []Pair {
	return slices.Clone(r.pairs)
}

// All iterates over the pairs in record order.
func (r Record) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, p := range r.pairs {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// With returns a copy of r where key holds value. An existing key keeps its
// position; a new key is appended.
func (r Record) With(key, value string) Record {
	out := r.clone(1)
	if i, ok := out.index[key]; ok {
		out.pairs[i].Value = value
		return out
	}
	out.index[key] = len(out.pairs)
	out.pairs = append(out.pairs, Pair{Key: key, Value: value})
	return out
}

// WithFirst returns a copy of r where key holds value and sits in front of
// every other pair.
func (r Record) WithFirst(key, value string) Record {
	pairs := make([]Pair, 0, len(r.pairs)+1)
	pairs = append(pairs, Pair{Key: key, Value: value})
	for _, p := range r.pairs {
		if p.Key != key {
			pairs = append(pairs, p)
		}
	}
	return MustNew(pairs...)
}

// Without returns a copy of r with the given keys removed.
func (r Record) Without(keys ...string) Record {
	if len(keys) == 0 {
		return r.clone(0)
	}
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	pairs := make([]Pair, 0, len(r.pairs))
	for _, p := range r.pairs {
		if _, ok := drop[p.Key]; ok {
			continue
		}
		pairs = append(pairs, p)
	}
	return MustNew(pairs...)
}

// Merge returns a copy of r overlaid with other. Values from other win;
// keys new to r are appended in other's order.
func (r Record) Merge(other Record) Record {
	out := r.clone(len(other.pairs))
	for _, p := range other.pairs {
		if i, ok := out.index[p.Key]; ok {
			out.pairs[i].Value = p.Value
			continue
		}
		out.index[p.Key] = len(out.pairs)
		out.pairs = append(out.pairs, p)
	}
	return out
}

// Equal reports whether both records hold the same pairs in the same order.
func (r Record) Equal(other Record) bool {
	return slices.Equal(r.pairs, other.pairs)
}

// EqualUnordered reports whether both records hold the same pairs regardless
// of order.
func (r Record) EqualUnordered(other Record) bool {
	if len(r.pairs) != len(other.pairs) {
		return false
	}
	for _, p := range r.pairs {
		v, ok := other.Get(p.Key)
		if !ok || v != p.Value {
			return false
		}
	}
	return true
}

// String renders the record in wire format.
func (r Record) String() string { return Encode(r) }

func (r Record) clone(extra int) Record {
	out := Record{
		pairs: make([]Pair, len(r.pairs), len(r.pairs)+extra),
		index: make(map[string]int, len(r.pairs)+extra),
	}
	copy(out.pairs, r.pairs)
	for i, p := range out.pairs {
		out.index[p.Key] = i
	}
	return out
}
