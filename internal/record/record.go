// Package record defines what the territory engine needs from a business
// record: a kind, an identifier and named (possibly nested) field access.
package record

import (
	"errors"
	"strings"
)

// Kind tags the type of an assignable record.
type Kind string

const (
	KindLead         Kind = "Lead"
	KindOrganization Kind = "Organization"
	KindPerson       Kind = "Person"
)

var ErrUnknownKind = errors.New("unknown_assignable_type")

var knownKinds = []Kind{KindLead, KindOrganization, KindPerson}

// Kinds returns every supported assignable kind.
func Kinds() []Kind {
	out := make([]Kind, len(knownKinds))
	copy(out, knownKinds)
	return out
}

// ParseKind matches case-insensitively against the supported kinds.
func ParseKind(value string) (Kind, error) {
	value = strings.TrimSpace(value)
	for _, k := range knownKinds {
		if strings.EqualFold(value, string(k)) {
			return k, nil
		}
	}
	return "", ErrUnknownKind
}

func (k Kind) String() string { return string(k) }

// Record is the capability the evaluator reads through.
//
// FieldValue reports (value, true) for a present field, including a present
// null as (nil, true), and (nil, false) when any path segment is absent.
type Record interface {
	Kind() Kind
	ID() string
	FieldValue(path string) (any, bool)
}

// FieldResolver is implemented by nested values that resolve their own fields.
type FieldResolver interface {
	FieldValue(path string) (any, bool)
}

// Reference points at one assignable record by kind and id.
type Reference struct {
	Kind Kind   `json:"assignable_type"`
	ID   string `json:"assignable_id"`
}

func RefOf(r Record) Reference {
	return Reference{Kind: r.Kind(), ID: r.ID()}
}

func (r Reference) Valid() bool {
	return r.Kind != "" && strings.TrimSpace(r.ID) != ""
}

// Resolve walks a dotted path starting from root. Each segment is looked up
// in the current value; the walk continues only through maps, Fields and
// FieldResolver values.
func Resolve(root any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	current := root
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		if segment == "" {
			return nil, false
		}
		switch typed := current.(type) {
		case FieldResolver:
			// A resolver owns the remainder of the path.
			return typed.FieldValue(strings.Join(segments[i:], "."))
		case Fields:
			v, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]any:
			v, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}
