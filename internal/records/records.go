// Package records defines the payloads served by the arcade backend and fetched in batches.
//
// Every record is a JSON object with an "id" and exactly one domain field whose name
// depends on the record kind, for example {"id":"1","name":"Pacman"} for a game.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind identifies a record type and its backend route
type Kind string

const (
	// KindGame is an arcade game, {"id","name"}
	KindGame Kind = "game"

	// KindProfile is a user profile, {"id","name"}
	KindProfile Kind = "profile"

	// KindEntitlement is an access entitlement, {"id","access"}
	KindEntitlement Kind = "entitlement"

	// KindPreference is a user preference, {"id","vehicle"}
	KindPreference Kind = "preference"
)

// ErrMalformedRecord is returned when a payload is not a valid record of the expected kind
var ErrMalformedRecord = errors.New("malformed record")

// ErrUnknownKind is returned for kinds the backend does not serve
var ErrUnknownKind = errors.New("unknown record kind")

// Kinds returns every known kind in a stable order
func Kinds() []Kind {
	return []Kind{KindGame, KindProfile, KindEntitlement, KindPreference}
}

// ParseKind validates s as a record kind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k.Field() == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Field returns the name of the kind's domain field, or "" for unknown kinds
func (k Kind) Field() string {
	switch k {
	case KindGame, KindProfile:
		return "name"
	case KindEntitlement:
		return "access"
	case KindPreference:
		return "vehicle"
	default:
		return ""
	}
}

// Ref points at one record on the backend
type Ref struct {
	Kind Kind
	ID   string
}

// String returns the ref in "kind/id" form
func (r Ref) String() string {
	return string(r.Kind) + "/" + r.ID
}

// ParseRef parses "kind/id"
func ParseRef(s string) (Ref, error) {
	kindStr, id, ok := strings.Cut(s, "/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return Ref{}, fmt.Errorf("invalid record reference %q, expected kind/id", s)
	}
	kind, err := ParseKind(kindStr)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Kind: kind, ID: id}, nil
}

// Record is a fetched payload. It is owned by whoever fetched it.
type Record struct {
	Kind  Kind
	ID    string
	Value string
}

// Ref returns the reference the record answers
func (r Record) Ref() Ref {
	return Ref{Kind: r.Kind, ID: r.ID}
}

// MarshalJSON emits the wire form, {"id":..,"<field>":..}
func (r Record) MarshalJSON() ([]byte, error) {
	field := r.Kind.Field()
	if field == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
	return json.Marshal(map[string]string{
		"id":  r.ID,
		field: r.Value,
	})
}

// Decode parses a payload of the given kind
func Decode(kind Kind, data []byte) (Record, error) {
	field := kind.Field()
	if field == "" {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if !gjson.ValidBytes(data) {
		return Record{}, fmt.Errorf("%w: %s payload is not valid JSON", ErrMalformedRecord, kind)
	}

	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return Record{}, fmt.Errorf("%w: %s payload is not an object", ErrMalformedRecord, kind)
	}

	id := parsed.Get("id")
	if !id.Exists() || id.String() == "" {
		return Record{}, fmt.Errorf("%w: %s payload has no id", ErrMalformedRecord, kind)
	}

	value := parsed.Get(field)
	if !value.Exists() || value.Type != gjson.String {
		return Record{}, fmt.Errorf("%w: %s %s has no %q string field", ErrMalformedRecord, kind, id.String(), field)
	}

	return Record{Kind: kind, ID: id.String(), Value: value.String()}, nil
}
