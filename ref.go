package quickentity

import (
	"bytes"
	"encoding/json"
)

// FullRef is the long-form QN reference: an entity ID plus an optional
// external-scene resource hash and an optional exposed-entity name.
type FullRef struct {
	EntityID      EntityID
	ExternalScene *string
	ExposedEntity *string
}

// Ref is the QN reference discriminated union (spec.md §3). Its wire
// form is untagged: a bare string or JSON null is a Short reference; an
// object is a Full reference. A Full reference with neither
// ExternalScene nor ExposedEntity set is canonicalized to Short on both
// marshal and construction (spec.md invariant 5).
type Ref struct {
	isFull  bool
	shortID *EntityID // nil => Short(None); non-nil => Short(Some)
	full    FullRef
}

// NullRef is the canonical absent reference (Short(None)).
func NullRef() Ref { return Ref{} }

// ShortRef builds a local by-ID reference.
func ShortRef(id EntityID) Ref {
	v := id
	return Ref{shortID: &v}
}

// FullRefOf builds a long-form reference, canonicalizing to Short when
// neither optional field is set.
func FullRefOf(id EntityID, externalScene, exposedEntity *string) Ref {
	if externalScene == nil && exposedEntity == nil {
		return ShortRef(id)
	}
	return Ref{isFull: true, full: FullRef{EntityID: id, ExternalScene: externalScene, ExposedEntity: exposedEntity}}
}

// IsNull reports whether this is the Short(None) / null reference.
func (r Ref) IsNull() bool { return !r.isFull && r.shortID == nil }

// IsFull reports whether this reference carries the long form.
func (r Ref) IsFull() bool { return r.isFull }

// ShortID returns the referenced ID and true when this is a non-null
// Short reference.
func (r Ref) ShortID() (EntityID, bool) {
	if r.isFull || r.shortID == nil {
		return 0, false
	}
	return *r.shortID, true
}

// Full returns the long-form payload and true when IsFull.
func (r Ref) Full() (FullRef, bool) {
	if !r.isFull {
		return FullRef{}, false
	}
	return r.full, true
}

// EntityID returns the referenced entity ID regardless of short/full
// form, and false for a null reference.
func (r Ref) EntityID() (EntityID, bool) {
	if r.isFull {
		return r.full.EntityID, true
	}
	if r.shortID != nil {
		return *r.shortID, true
	}
	return 0, false
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.isFull {
		obj := map[string]any{"ref": r.full.EntityID.String()}
		if r.full.ExternalScene != nil {
			obj["externalScene"] = *r.full.ExternalScene
		}
		if r.full.ExposedEntity != nil {
			obj["exposedEntity"] = *r.full.ExposedEntity
		}
		return json.Marshal(obj)
	}
	if r.shortID == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.shortID.String())
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*r = NullRef()
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return wrapErr(TypeMismatch, err, "ref short form must be a string")
		}
		id, err := ParseEntityID(s)
		if err != nil {
			return err
		}
		*r = ShortRef(id)
		return nil
	}

	var obj struct {
		Ref           string  `json:"ref"`
		ExternalScene *string `json:"externalScene"`
		ExposedEntity *string `json:"exposedEntity"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return wrapErr(TypeMismatch, err, "ref full form must be an object with a ref field")
	}
	id, err := ParseEntityID(obj.Ref)
	if err != nil {
		return err
	}
	*r = FullRefOf(id, obj.ExternalScene, obj.ExposedEntity)
	return nil
}

// RefWithConstantValue pairs a reference with a constant input value,
// used for pin connections that bypass the target's normal trigger.
type RefWithConstantValue struct {
	EntityRef Ref            `json:"ref"`
	Value     SimpleProperty `json:"value"`
}

// RefMaybeConstantValue is the untagged union of a bare Ref and a
// RefWithConstantValue, used as the pin-connection target type.
type RefMaybeConstantValue struct {
	constant *RefWithConstantValue
	plain    Ref
}

// PlainRef builds a RefMaybeConstantValue carrying only a reference.
func PlainRef(r Ref) RefMaybeConstantValue { return RefMaybeConstantValue{plain: r} }

// ConstantRef builds a RefMaybeConstantValue carrying a constant value.
func ConstantRef(r Ref, value SimpleProperty) RefMaybeConstantValue {
	return RefMaybeConstantValue{constant: &RefWithConstantValue{EntityRef: r, Value: value}}
}

// HasConstant reports whether this target carries a constant value.
func (m RefMaybeConstantValue) HasConstant() bool { return m.constant != nil }

// Ref returns the underlying reference regardless of form.
func (m RefMaybeConstantValue) Ref() Ref {
	if m.constant != nil {
		return m.constant.EntityRef
	}
	return m.plain
}

// Constant returns the constant payload and true when HasConstant.
func (m RefMaybeConstantValue) Constant() (SimpleProperty, bool) {
	if m.constant == nil {
		return SimpleProperty{}, false
	}
	return m.constant.Value, true
}

func (m RefMaybeConstantValue) MarshalJSON() ([]byte, error) {
	if m.constant != nil {
		return json.Marshal(*m.constant)
	}
	return json.Marshal(m.plain)
}

func (m *RefMaybeConstantValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || (len(trimmed) > 0 && trimmed[0] == '"') {
		var r Ref
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return err
		}
		*m = PlainRef(r)
		return nil
	}

	// Disambiguate object-form: a RefWithConstantValue has a "value" key;
	// a bare Full ref does not.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return wrapErr(TypeMismatch, err, "pin connection target must be a ref or {ref,value}")
	}
	if _, hasValue := probe["value"]; hasValue {
		var rc RefWithConstantValue
		if err := json.Unmarshal(trimmed, &rc); err != nil {
			return err
		}
		*m = RefMaybeConstantValue{constant: &rc}
		return nil
	}
	var r Ref
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return err
	}
	*m = PlainRef(r)
	return nil
}
