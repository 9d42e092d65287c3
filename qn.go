package quickentity

import (
	"encoding/json"
)

// SubType is the QN entity's sub-type, serialized lowercase.
type SubType int

const (
	SubTypeBrick SubType = iota
	SubTypeScene
	SubTypeTemplate
)

func (s SubType) String() string {
	switch s {
	case SubTypeBrick:
		return "brick"
	case SubTypeScene:
		return "scene"
	case SubTypeTemplate:
		return "template"
	default:
		return "scene"
	}
}

func (s SubType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SubType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return wrapErr(TypeMismatch, err, "subType must be a string")
	}
	switch str {
	case "brick":
		*s = SubTypeBrick
	case "scene":
		*s = SubTypeScene
	case "template":
		*s = SubTypeTemplate
	default:
		return newErr(TypeMismatch, "unknown subType %q", str)
	}
	return nil
}

// Property is a typed, JSON-valued property that may be deferred to
// after entity initialisation.
type Property struct {
	Type     string          `json:"type"`
	Value    json.RawMessage `json:"value"`
	PostInit bool            `json:"postInit,omitempty"`
}

// SimpleProperty is a Property without PostInit, used wherever post-init
// has no meaning: pin constants and property overrides.
type SimpleProperty struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// OverriddenProperty is the value carried by a PropertyOverride entry.
// Structurally identical to SimpleProperty; named separately because it
// plays a distinct role (spec.md §4.4 step 9) in the override fold.
type OverriddenProperty = SimpleProperty

// ExposedEntity publishes one or more sub-entities under a name so
// parents referencing this entity can reach them via a Full ref.
type ExposedEntity struct {
	IsArray  bool  `json:"isArray"`
	RefersTo []Ref `json:"refersTo"`
}

// PropertyAlias lets a sub-entity present another entity's property as
// its own.
type PropertyAlias struct {
	OriginalProperty string `json:"originalProperty"`
	OriginalEntity   Ref    `json:"originalEntity"`
}

// PinConnectionOverride adds a pin (event) connection between two
// entities (local or external) at load time.
type PinConnectionOverride struct {
	FromEntity Ref             `json:"fromEntity"`
	FromPin    string          `json:"fromPin"`
	ToEntity   Ref             `json:"toEntity"`
	ToPin      string          `json:"toPin"`
	Value      *SimpleProperty `json:"value,omitempty"`
}

// PinConnectionOverrideDelete removes a pin connection override at load time.
type PinConnectionOverrideDelete struct {
	FromEntity Ref             `json:"fromEntity"`
	FromPin    string          `json:"fromPin"`
	ToEntity   Ref             `json:"toEntity"`
	ToPin      string          `json:"toPin"`
	Value      *SimpleProperty `json:"value,omitempty"`
}

// PropertyOverride overrides named properties on a set of entities
// (local or external) when this entity is loaded.
type PropertyOverride struct {
	Entities   []Ref                      `json:"entities"`
	Properties *OrderedMap[OverriddenProperty] `json:"properties"`
}

// CommentEntity attaches an editor-only comment to a sub-entity.
type CommentEntity struct {
	Parent Ref    `json:"parent"`
	Name   string `json:"name"`
	Text   string `json:"text"`
}

// PinMap is the nested event/input-copy/output-copy structure:
// trigger-pin -> target-pin -> ordered list of targets.
type PinMap = *OrderedMap[*OrderedMap[[]RefMaybeConstantValue]]

// SubEntity is one addressable node inside a QN Entity; the unit of the
// RT sub-entity arrays.
type SubEntity struct {
	Parent                      Ref
	Name                        string
	Factory                     string
	FactoryFlag                 *string
	Blueprint                   string
	EditorOnly                  bool
	Properties                  *OrderedMap[Property]
	PlatformSpecificProperties  *OrderedMap[*OrderedMap[Property]]
	Events                      PinMap
	InputCopying                PinMap
	OutputCopying               PinMap
	PropertyAliases             *OrderedMap[[]PropertyAlias]
	ExposedEntities             *OrderedMap[ExposedEntity]
	ExposedInterfaces           *OrderedMap[EntityID]
	Subsets                     *OrderedMap[[]EntityID]
}

// NewSubEntity constructs a SubEntity with all ordered collections
// initialised empty, mirroring the teacher's constructor-function idiom
// (app_builder.go's NewApp).
func NewSubEntity(parent Ref, name, factory string, blueprint string) *SubEntity {
	return &SubEntity{
		Parent:                     parent,
		Name:                       name,
		Factory:                    factory,
		Blueprint:                  blueprint,
		Properties:                 NewOrderedMap[Property](),
		PlatformSpecificProperties: NewOrderedMap[*OrderedMap[Property]](),
		Events:                     NewOrderedMap[*OrderedMap[[]RefMaybeConstantValue]](),
		InputCopying:               NewOrderedMap[*OrderedMap[[]RefMaybeConstantValue]](),
		OutputCopying:              NewOrderedMap[*OrderedMap[[]RefMaybeConstantValue]](),
		PropertyAliases:            NewOrderedMap[[]PropertyAlias](),
		ExposedEntities:            NewOrderedMap[ExposedEntity](),
		ExposedInterfaces:          NewOrderedMap[EntityID](),
		Subsets:                    NewOrderedMap[[]EntityID](),
	}
}

type subEntityWire struct {
	Parent                     Ref                                  `json:"parent"`
	Name                       string                               `json:"name"`
	Factory                    string                               `json:"factory"`
	FactoryFlag                *string                              `json:"factoryFlag,omitempty"`
	Blueprint                  string                               `json:"blueprint"`
	EditorOnly                 bool                                 `json:"editorOnly,omitempty"`
	Properties                 *OrderedMap[Property]                `json:"properties,omitempty"`
	PlatformSpecificProperties *OrderedMap[*OrderedMap[Property]]    `json:"platformSpecificProperties,omitempty"`
	Events                     PinMap                                `json:"events,omitempty"`
	InputCopying               PinMap                                `json:"inputCopying,omitempty"`
	OutputCopying              PinMap                                `json:"outputCopying,omitempty"`
	PropertyAliases            *OrderedMap[[]PropertyAlias]          `json:"propertyAliases,omitempty"`
	ExposedEntities            *OrderedMap[ExposedEntity]            `json:"exposedEntities,omitempty"`
	ExposedInterfaces          *OrderedMap[EntityID]                 `json:"exposedInterfaces,omitempty"`
	Subsets                    *OrderedMap[[]EntityID]               `json:"subsets,omitempty"`
}

func (s *SubEntity) toWire() subEntityWire {
	return subEntityWire{
		Parent: s.Parent, Name: s.Name, Factory: s.Factory, FactoryFlag: s.FactoryFlag,
		Blueprint: s.Blueprint, EditorOnly: s.EditorOnly,
		Properties:                 emptyToNil(s.Properties),
		PlatformSpecificProperties: emptyToNil(s.PlatformSpecificProperties),
		Events:                     emptyToNil(s.Events),
		InputCopying:               emptyToNil(s.InputCopying),
		OutputCopying:              emptyToNil(s.OutputCopying),
		PropertyAliases:            emptyToNil(s.PropertyAliases),
		ExposedEntities:            emptyToNil(s.ExposedEntities),
		ExposedInterfaces:          emptyToNil(s.ExposedInterfaces),
		Subsets:                    emptyToNil(s.Subsets),
	}
}

// lenner is satisfied by every *OrderedMap[V]/*EntityOrderedMap[V] instantiation.
type lenner interface{ Len() int }

func emptyToNil[M lenner](m M) M {
	var zero M
	if m.Len() == 0 {
		return zero
	}
	return m
}

func (s *SubEntity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.toWire())
}

func (s *SubEntity) UnmarshalJSON(data []byte) error {
	var w subEntityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = SubEntity{
		Parent: w.Parent, Name: w.Name, Factory: w.Factory, FactoryFlag: w.FactoryFlag,
		Blueprint: w.Blueprint, EditorOnly: w.EditorOnly,
		Properties:                 orEmpty(w.Properties, NewOrderedMap[Property]),
		PlatformSpecificProperties: orEmpty(w.PlatformSpecificProperties, NewOrderedMap[*OrderedMap[Property]]),
		Events:                     orEmpty(w.Events, NewOrderedMap[*OrderedMap[[]RefMaybeConstantValue]]),
		InputCopying:               orEmpty(w.InputCopying, NewOrderedMap[*OrderedMap[[]RefMaybeConstantValue]]),
		OutputCopying:              orEmpty(w.OutputCopying, NewOrderedMap[*OrderedMap[[]RefMaybeConstantValue]]),
		PropertyAliases:            orEmpty(w.PropertyAliases, NewOrderedMap[[]PropertyAlias]),
		ExposedEntities:            orEmpty(w.ExposedEntities, NewOrderedMap[ExposedEntity]),
		ExposedInterfaces:          orEmpty(w.ExposedInterfaces, NewOrderedMap[EntityID]),
		Subsets:                    orEmpty(w.Subsets, NewOrderedMap[[]EntityID]),
	}
	return nil
}

func orEmpty[V any](v *OrderedMap[V], make func() *OrderedMap[V]) *OrderedMap[V] {
	if v == nil {
		return make()
	}
	return v
}

// Entity is the QN root document: a single keyed map from entity IDs to
// sub-entities, plus the graph-level overrides, dependencies and
// metadata described in spec.md §3.
type Entity struct {
	Factory                    string
	Blueprint                  string
	RootEntity                 EntityID
	Entities                   *EntityOrderedMap[*SubEntity]
	PropertyOverrides          []PropertyOverride
	OverrideDeletes            []Ref
	PinConnectionOverrides     []PinConnectionOverride
	PinConnectionOverrideDeletes []PinConnectionOverrideDelete
	ExternalScenes             []string
	SubType                    SubType
	QuickEntityVersion         float64
	ExtraFactoryDependencies   []ResourceReference
	ExtraBlueprintDependencies []ResourceReference
	Comments                   []CommentEntity
}

// ResourceReference names a dependency outside the planner's automatic
// reach — a user-pinned extra factory/blueprint reference (spec.md §3).
type ResourceReference struct {
	Resource string  `json:"resource"`
	Flag     *string `json:"flag,omitempty"`
}

type entityWire struct {
	Factory                      string                        `json:"factory"`
	Blueprint                    string                        `json:"blueprint"`
	RootEntity                   EntityID                      `json:"rootEntity"`
	Entities                     *EntityOrderedMap[*SubEntity] `json:"entities"`
	PropertyOverrides            []PropertyOverride            `json:"propertyOverrides,omitempty"`
	OverrideDeletes               []Ref                         `json:"overrideDeletes,omitempty"`
	PinConnectionOverrides        []PinConnectionOverride       `json:"pinConnectionOverrides,omitempty"`
	PinConnectionOverrideDeletes  []PinConnectionOverrideDelete `json:"pinConnectionOverrideDeletes,omitempty"`
	ExternalScenes                []string                      `json:"externalScenes,omitempty"`
	SubType                       SubType                       `json:"subType"`
	QuickEntityVersion            float64                       `json:"quickEntityVersion"`
	ExtraFactoryReferences        []ResourceReference           `json:"extraFactoryReferences,omitempty"`
	ExtraBlueprintReferences      []ResourceReference           `json:"extraBlueprintReferences,omitempty"`
	Comments                      []CommentEntity               `json:"comments,omitempty"`
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(entityWire{
		Factory: e.Factory, Blueprint: e.Blueprint, RootEntity: e.RootEntity, Entities: e.Entities,
		PropertyOverrides: e.PropertyOverrides, OverrideDeletes: e.OverrideDeletes,
		PinConnectionOverrides: e.PinConnectionOverrides, PinConnectionOverrideDeletes: e.PinConnectionOverrideDeletes,
		ExternalScenes: e.ExternalScenes, SubType: e.SubType, QuickEntityVersion: e.QuickEntityVersion,
		ExtraFactoryReferences: e.ExtraFactoryDependencies, ExtraBlueprintReferences: e.ExtraBlueprintDependencies,
		Comments: e.Comments,
	})
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var w entityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Entity{
		Factory: w.Factory, Blueprint: w.Blueprint, RootEntity: w.RootEntity,
		Entities:                   w.Entities,
		PropertyOverrides:          w.PropertyOverrides,
		OverrideDeletes:            w.OverrideDeletes,
		PinConnectionOverrides:     w.PinConnectionOverrides,
		PinConnectionOverrideDeletes: w.PinConnectionOverrideDeletes,
		ExternalScenes:             w.ExternalScenes,
		SubType:                    w.SubType,
		QuickEntityVersion:         w.QuickEntityVersion,
		ExtraFactoryDependencies:   w.ExtraFactoryReferences,
		ExtraBlueprintDependencies: w.ExtraBlueprintReferences,
		Comments:                   w.Comments,
	}
	if e.Entities == nil {
		e.Entities = NewEntityOrderedMap[*SubEntity]()
	}
	return nil
}

// Validate checks the invariants spec.md §3 requires of a freestanding
// QN document: the root entity must exist, and this is always true for
// a well-formed ordered map (duplicate keys cannot occur by construction).
func (e *Entity) Validate() error {
	if _, ok := e.Entities.Get(e.RootEntity); !ok {
		return newErr(UnknownEntityID, "root entity %s not present in entities", e.RootEntity)
	}
	return nil
}
