package sgo

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a validation failure. Every failure is fail-fast: the
// operation that detects it returns immediately with the offending values
// and performs no partial work.
type Kind string

const (
	// KindMalformedInput covers unparseable rows, wrong headers, wrong
	// field counts, and unknown operator names.
	KindMalformedInput Kind = "malformed_input"
	// KindDomainInvariant covers ordering violations, out-of-range
	// fractions and weights, duplicate keys, and incidents outside the
	// ledger's covered window.
	KindDomainInvariant Kind = "domain_invariant"
	// KindBadParameter covers invalid numerical solver parameters such as
	// non-positive shape or rate, or a probability outside (0,1).
	KindBadParameter Kind = "bad_parameter"
)

// Error is a structured validation error: a kind tag, a message, and the
// offending values as ordered key/value pairs.
type Error struct {
	Kind   Kind
	Msg    string
	Fields []Field
}

// Field is one offending value attached to an Error.
type Field struct {
	Key   string
	Value any
}

// E builds an Error from a kind, a message, and alternating key/value
// pairs. An odd trailing key is kept with a nil value rather than dropped.
func E(kind Kind, msg string, kv ...any) *Error {
	e := &Error{Kind: kind, Msg: msg}
	for i := 0; i < len(kv); i += 2 {
		f := Field{Key: fmt.Sprint(kv[i])}
		if i+1 < len(kv) {
			f.Value = kv[i+1]
		}
		e.Fields = append(e.Fields, f)
	}
	return e
}

// Error renders "kind: msg (k=v, k=v)".
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Msg)
	if len(e.Fields) > 0 {
		b.WriteString(" (")
		for i, f := range e.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", f.Key, f.Value)
		}
		b.WriteString(")")
	}
	return b.String()
}

// IsKind reports whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
