package quickentity

import "encoding/json"

// ResourceDependency is one entry of a ResourceMeta's ordered dependency
// table: a resource hash and its reference flag.
type ResourceDependency struct {
	Hash string `json:"hash"`
	Flag string `json:"flag"`
}

// ResourceMeta carries the ordered dependency list a factory or
// blueprint resource references by index (spec.md §3).
type ResourceMeta struct {
	HashOffset                uint64               `json:"hashOffset"`
	HashReferenceData          []ResourceDependency `json:"hashReferenceData"`
	HashReferenceTableDummy    uint32               `json:"hashReferenceTableDummy"`
	HashReferenceTableSize     uint32               `json:"hashReferenceTableSize"`
	HashResourceType           string               `json:"hashResourceType"`
	HashSize                   uint32               `json:"hashSize"`
	HashSizeFinal              uint32               `json:"hashSizeFinal"`
	HashSizeInMemory           uint32               `json:"hashSizeInMemory"`
	HashSizeInVideoMemory      uint32               `json:"hashSizeInVideoMemory"`
	HashValue                  string               `json:"hashValue"`
}

// SEntityTemplateReference is the RT form of an entity reference
// (spec.md §3 "Ref"): entity addressed by index, with sentinels for
// absent fields.
type SEntityTemplateReference struct {
	EntityID           uint64 `json:"entityID"`
	ExternalSceneIndex int32  `json:"externalSceneIndex"`
	EntityIndex        int32  `json:"entityIndex"`
	ExposedEntity      string `json:"exposedEntity"`
}

// nullRTReference is the canonical sentinel for a null/local-only RT
// reference (spec.md §4.1).
func nullRTReference(entityIndex int32) SEntityTemplateReference {
	return SEntityTemplateReference{
		EntityID:           sentinelNullEntityID,
		ExternalSceneIndex: -1,
		EntityIndex:        entityIndex,
		ExposedEntity:      "",
	}
}

// PropertyID is the RT property-key union: either a pre-hashed 64-bit
// integer or a string name (spec.md §4.2 "Property-ID encoding").
type PropertyID struct {
	IsInt bool
	Int   uint64
	Str   string
}

func (p PropertyID) MarshalJSON() ([]byte, error) {
	if p.IsInt {
		return json.Marshal(p.Int)
	}
	return json.Marshal(p.Str)
}

func (p *PropertyID) UnmarshalJSON(data []byte) error {
	var asInt uint64
	if err := json.Unmarshal(data, &asInt); err == nil {
		*p = PropertyID{IsInt: true, Int: asInt}
		return nil
	}
	var asStr string
	if err := json.Unmarshal(data, &asStr); err != nil {
		return wrapErr(TypeMismatch, err, "property id must be an integer or a string")
	}
	*p = PropertyID{Str: asStr}
	return nil
}

// String renders the property ID the way it would appear as a QN key.
func (p PropertyID) String() string {
	if p.IsInt {
		return formatUint(p.Int)
	}
	return p.Str
}

func formatUint(v uint64) string {
	// Matches the decimal rendering used by the RT property-ID wire form.
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// SEntityTemplatePropertyValue is the RT property payload: a declared
// game type name plus its raw JSON value, carried under "$type"/"$val"
// on the wire (spec.md §6).
type SEntityTemplatePropertyValue struct {
	PropertyType string          `json:"$type"`
	PropertyValue json.RawMessage `json:"$val"`
}

// SEntityTemplateProperty pairs a property ID with its RT value.
type SEntityTemplateProperty struct {
	NPropertyID PropertyID                   `json:"nPropertyID"`
	Value       SEntityTemplatePropertyValue `json:"value"`
}

// SEntityTemplatePlatformSpecificProperty is one platform-gated property
// row in a factory sub-entity.
type SEntityTemplatePlatformSpecificProperty struct {
	PropertyValue SEntityTemplateProperty `json:"propertyValue"`
	Platform      string                  `json:"platform"`
	PostInit      bool                    `json:"postInit"`
}

// STemplateFactorySubEntity is one row of RTFactory.SubEntities.
type STemplateFactorySubEntity struct {
	LogicalParent                  SEntityTemplateReference                  `json:"logicalParent"`
	EntityTypeResourceIndex         int                                        `json:"entityTypeResourceIndex"`
	PropertyValues                  []SEntityTemplateProperty                 `json:"propertyValues"`
	PostInitPropertyValues          []SEntityTemplateProperty                 `json:"postInitPropertyValues"`
	PlatformSpecificPropertyValues []SEntityTemplatePlatformSpecificProperty `json:"platformSpecificPropertyValues"`
}

// RTFactory is the TEMP resource: component/property data, property
// overrides, and external-scene indices, index-addressed.
type RTFactory struct {
	SubType                            int8                        `json:"subType"`
	BlueprintIndexInResourceHeader      int32                       `json:"blueprintIndexInResourceHeader"`
	RootEntityIndex                     int                         `json:"rootEntityIndex"`
	SubEntities                         []STemplateFactorySubEntity `json:"subEntities"`
	PropertyOverrides                   []SEntityTemplatePropertyOverride `json:"propertyOverrides"`
	ExternalSceneTypeIndicesInResourceHeader []int                  `json:"externalSceneTypeIndicesInResourceHeader"`
}

// SEntityTemplatePropertyOverride is one flattened property-override
// record in RTFactory.PropertyOverrides.
type SEntityTemplatePropertyOverride struct {
	PropertyOwner SEntityTemplateReference     `json:"propertyOwner"`
	PropertyValue SEntityTemplateProperty      `json:"propertyValue"`
}

// SEntityTemplatePropertyAlias is one row of a blueprint sub-entity's
// property-alias table.
type SEntityTemplatePropertyAlias struct {
	SAliasName    string `json:"sAliasName"`
	EntityID      int    `json:"entityID"`
	SPropertyName string `json:"sPropertyName"`
}

// SEntityTemplateExposedEntity is one row of a blueprint sub-entity's
// exposed-entity table.
type SEntityTemplateExposedEntity struct {
	SName    string                      `json:"sName"`
	BIsArray bool                        `json:"bIsArray"`
	ATargets []SEntityTemplateReference `json:"aTargets"`
}

// SEntityTemplateEntitySubset is the RT-side subset-membership record:
// unlike QN (where membership lives on the member), RT stores membership
// on the owner as a list of member indices (spec.md GLOSSARY "Subset").
type SEntityTemplateEntitySubset struct {
	Entities []int `json:"entities"`
}

type namedSubset struct {
	Name   string                      `json:"name"`
	Subset SEntityTemplateEntitySubset `json:"subset"`
}

// STemplateBlueprintSubEntity is one row of RTBlueprint.SubEntities.
type STemplateBlueprintSubEntity struct {
	LogicalParent      SEntityTemplateReference       `json:"logicalParent"`
	EntityTypeResourceIndex int                        `json:"entityTypeResourceIndex"`
	EntityID           uint64                         `json:"entityId"`
	EditorOnly         bool                           `json:"editorOnly"`
	EntityName         string                         `json:"entityName"`
	PropertyAliases    []SEntityTemplatePropertyAlias `json:"propertyAliases"`
	ExposedEntities    []SEntityTemplateExposedEntity `json:"exposedEntities"`
	ExposedInterfaces  []indexedName                  `json:"exposedInterfaces"`
	EntitySubsets      []namedSubset                  `json:"entitySubsets"`
}

type indexedName struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// SEntityTemplatePinConnection is one row of a blueprint's pin-table
// (connections/input-forwardings/output-forwardings), addressed by
// sub-entity index within the same RT pair.
type SEntityTemplatePinConnection struct {
	FromID             int                          `json:"fromID"`
	ToID               int                          `json:"toID"`
	FromPinName        string                       `json:"fromPinName"`
	ToPinName          string                       `json:"toPinName"`
	ConstantPinValue   SEntityTemplatePropertyValue `json:"constantPinValue"`
}

// SExternalEntityTemplatePinConnection is a pin connection whose
// endpoints are full references rather than bare indices, used when at
// least one side is an external scene.
type SExternalEntityTemplatePinConnection struct {
	FromEntity       SEntityTemplateReference     `json:"fromEntity"`
	ToEntity         SEntityTemplateReference     `json:"toEntity"`
	FromPinName      string                       `json:"fromPinName"`
	ToPinName        string                       `json:"toPinName"`
	ConstantPinValue SEntityTemplatePropertyValue `json:"constantPinValue"`
}

// RTBlueprint is the TBLU resource: identity, naming, pin-connection
// graph, exposed entities, subsets and aliases, index-addressed in
// lockstep with its paired RTFactory.
type RTBlueprint struct {
	SubType                                    int8                           `json:"subType"`
	RootEntityIndex                            int                            `json:"rootEntityIndex"`
	SubEntities                                []STemplateBlueprintSubEntity  `json:"subEntities"`
	ExternalSceneTypeIndicesInResourceHeader    []int                          `json:"externalSceneTypeIndicesInResourceHeader"`
	PinConnections                              []SEntityTemplatePinConnection `json:"pinConnections"`
	InputPinForwardings                         []SEntityTemplatePinConnection `json:"inputPinForwardings"`
	OutputPinForwardings                        []SEntityTemplatePinConnection `json:"outputPinForwardings"`
	OverrideDeletes                             []SEntityTemplateReference     `json:"overrideDeletes"`
	PinConnectionOverrides                      []SExternalEntityTemplatePinConnection `json:"pinConnectionOverrides"`
	PinConnectionOverrideDeletes                []SExternalEntityTemplatePinConnection `json:"pinConnectionOverrideDeletes"`
}

// voidPropertyValue is the sentinel RT payload for "no constant value".
var voidPropertyValue = SEntityTemplatePropertyValue{PropertyType: "void", PropertyValue: json.RawMessage("null")}

func isVoidPinValue(v SEntityTemplatePropertyValue) bool {
	return v.PropertyType == "" || v.PropertyType == "void"
}
