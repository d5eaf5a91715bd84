// Package jttoken implements the json-tree value model and the strict
// RFC 8259 recursive-descent parser that produces it.
//
// A parsed document is an ordered tree of Value nodes. Object members are
// kept in parse order and duplicate keys are retained; deduplication is a
// policy decision left to callers (see Equal for the consequence).
package jttoken

// Kind identifies the variant of a Value.
type Kind uint8

const (
	// KindNull is the zero value of Kind; a released or freshly declared
	// Value is null.
	KindNull Kind = iota
	// KindTrue identifies the literal true.
	KindTrue
	// KindFalse identifies the literal false.
	KindFalse
	// KindNumber identifies an IEEE 754 binary64 number.
	KindNumber
	// KindString identifies a UTF-8 string; it may contain 0x00 bytes.
	KindString
	// KindArray identifies an ordered element sequence.
	KindArray
	// KindObject identifies an ordered member sequence.
	KindObject
)

var kindNames = [...]string{"null", "true", "false", "number", "string", "array", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is one node of a parsed JSON tree. Only the payload field matching
// Kind is meaningful; the parser and Release maintain that invariant.
// Every sub-Value is owned by exactly one parent slot, so releasing a root
// releases the whole tree.
type Value struct {
	Kind    Kind
	Num     float64  // KindNumber
	Str     string   // KindString; valid UTF-8, may embed 0x00
	Elems   []Value  // KindArray; non-nil even when empty
	Members []Member // KindObject; non-nil even when empty
}

// Member is a key-value pair held by an object. Keys follow the same
// encoding rules as string payloads.
type Member struct {
	Key   string
	Value Value
}

// FindMember scans the members of an object for the first one whose key
// equals key, comparing length first and then bytes. It returns the
// member's index, or -1 when v is not an object or has no such member.
func (v *Value) FindMember(key string) int {
	if v == nil || v.Kind != KindObject {
		return -1
	}
	for i := range v.Members {
		if v.Members[i].Key == key {
			return i
		}
	}
	return -1
}

// Lookup returns a borrow of the value of the first member with the given
// key, or nil when absent. The returned pointer is owned by v.
func (v *Value) Lookup(key string) *Value {
	i := v.FindMember(key)
	if i < 0 {
		return nil
	}
	return &v.Members[i].Value
}

// Equal reports structural equality: identical kinds and equal payloads.
// Arrays compare element-wise in order. Objects compare order-insensitively
// by looking up each left-hand key on the right-hand side; the lookup takes
// the first match, so when duplicate keys are present Equal can be
// asymmetric. Number comparison is plain float64 equality.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNumber:
		return a.Num == b.Num
	case KindString:
		return a.Str == b.Str
	case KindArray:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(&a.Elems[i], &b.Elems[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.Members) != len(b.Members) {
			return false
		}
		for i := range a.Members {
			j := b.FindMember(a.Members[i].Key)
			if j < 0 || !Equal(&a.Members[i].Value, &b.Members[j].Value) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Release recursively drops every payload v owns and resets it to the null
// variant. It is idempotent: releasing a null Value is a no-op, and a
// released Value can be reused or released again safely.
func (v *Value) Release() {
	if v == nil {
		return
	}
	switch v.Kind {
	case KindArray:
		for i := range v.Elems {
			v.Elems[i].Release()
		}
	case KindObject:
		for i := range v.Members {
			v.Members[i].Value.Release()
		}
	}
	*v = Value{}
}
