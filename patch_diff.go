package quickentity

import (
	"encoding/json"
	"reflect"
	"strings"
)

// GeneratePatch implements spec.md §4.6's diff algorithm: it compares
// root-level scalars, the entity-ID set, each shared sub-entity's field
// families, and the top-level override/dependency lists, emitting the
// minimal set of Ops that carries original into modified.
func GeneratePatch(original, modified *Entity, opts ...PatchOption) (*Patch, error) {
	o := NewPatchOptions(opts...)
	log := o.logger()

	if original.QuickEntityVersion != modified.QuickEntityVersion {
		return nil, newErr(VersionMismatch, "cannot diff entities with differing quickEntityVersion (%v vs %v)",
			original.QuickEntityVersion, modified.QuickEntityVersion)
	}

	var ops []Op

	if original.RootEntity != modified.RootEntity {
		id := modified.RootEntity
		ops = append(ops, Op{Kind: OpSetRootEntity, EntityID: &id})
	}
	if original.SubType != modified.SubType {
		st := modified.SubType
		ops = append(ops, Op{Kind: OpSetSubType, SubType: &st})
	}

	origIDs := original.Entities.Keys()
	modIDs := modified.Entities.Keys()
	origSet := make(map[EntityID]bool, len(origIDs))
	for _, id := range origIDs {
		origSet[id] = true
	}
	modSet := make(map[EntityID]bool, len(modIDs))
	for _, id := range modIDs {
		modSet[id] = true
	}

	for _, id := range origIDs {
		if !modSet[id] {
			rid := id
			ops = append(ops, Op{Kind: OpRemoveEntity, EntityID: &rid})
		}
	}
	for _, id := range modIDs {
		if !origSet[id] {
			sub, _ := modified.Entities.Get(id)
			rid := id
			ops = append(ops, Op{Kind: OpAddEntity, EntityID: &rid, SubEntity: sub})
		}
	}
	for _, id := range modIDs {
		if !origSet[id] {
			continue
		}
		origSub, _ := original.Entities.Get(id)
		modSub, _ := modified.Entities.Get(id)
		for _, subOp := range diffSubEntity(origSub, modSub) {
			rid := id
			s := subOp
			ops = append(ops, Op{Kind: OpSubEntity, EntityID: &rid, SubOp: &s})
		}
	}

	ops = append(ops, diffPropertyOverrides(original.PropertyOverrides, modified.PropertyOverrides)...)
	ops = append(ops, diffRefList(original.OverrideDeletes, modified.OverrideDeletes, OpAddOverrideDelete, OpRemoveOverrideDelete)...)
	ops = append(ops, diffPinConnectionOverrides(original.PinConnectionOverrides, modified.PinConnectionOverrides)...)
	ops = append(ops, diffPinConnectionOverrideDeletes(original.PinConnectionOverrideDeletes, modified.PinConnectionOverrideDeletes)...)
	ops = append(ops, diffExternalScenes(original.ExternalScenes, modified.ExternalScenes)...)
	ops = append(ops, diffResourceReferences(original.ExtraFactoryDependencies, modified.ExtraFactoryDependencies, OpAddExtraFactoryReference, OpRemoveExtraFactoryReference)...)
	ops = append(ops, diffResourceReferences(original.ExtraBlueprintDependencies, modified.ExtraBlueprintDependencies, OpAddExtraBlueprintReference, OpRemoveExtraBlueprintReference)...)
	ops = append(ops, diffComments(original.Comments, modified.Comments)...)

	log.Debugf("generated patch: %d ops", len(ops))

	return &Patch{
		TempHash:     modified.Factory,
		TbluHash:     modified.Blueprint,
		Patch:        ops,
		PatchVersion: currentPatchVersion,
	}, nil
}

func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return string(a) == string(b)
	}
	return reflect.DeepEqual(av, bv)
}

func refsEqual(a, b Ref) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}

func refMaybeConstantEqual(a, b RefMaybeConstantValue) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}

func valueEqual[T any](a, b T) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return jsonEqual(ab, bb)
}

// diffSubEntity implements spec.md §4.6's per-field-family sub-entity
// diff, emitting one SubEntityOp per independently changed field.
func diffSubEntity(orig, mod *SubEntity) []SubEntityOp {
	var ops []SubEntityOp

	if orig.Name != mod.Name {
		ops = append(ops, SubEntityOp{Kind: SubOpSetName, StrValue: mod.Name})
	}
	if orig.Factory != mod.Factory {
		ops = append(ops, SubEntityOp{Kind: SubOpSetFactory, StrValue: mod.Factory})
	}
	if !flagEqual(orig.FactoryFlag, mod.FactoryFlag) {
		ops = append(ops, SubEntityOp{Kind: SubOpSetFactoryFlag, FlagValue: mod.FactoryFlag})
	}
	if orig.Blueprint != mod.Blueprint {
		ops = append(ops, SubEntityOp{Kind: SubOpSetBlueprint, StrValue: mod.Blueprint})
	}
	if orig.EditorOnly != mod.EditorOnly {
		b := mod.EditorOnly
		ops = append(ops, SubEntityOp{Kind: SubOpSetEditorOnly, BoolValue: &b})
	}
	if !refsEqual(orig.Parent, mod.Parent) {
		r := mod.Parent
		ops = append(ops, SubEntityOp{Kind: SubOpSetParent, RefValue: &r})
	}

	ops = append(ops, diffProperties(orig.Properties, mod.Properties, "")...)

	origPlatforms := platformNames(orig.PlatformSpecificProperties)
	modPlatforms := platformNames(mod.PlatformSpecificProperties)
	seenPlatform := map[string]bool{}
	for _, p := range append(append([]string{}, origPlatforms...), modPlatforms...) {
		if seenPlatform[p] {
			continue
		}
		seenPlatform[p] = true
		var origProps, modProps *OrderedMap[Property]
		if orig.PlatformSpecificProperties != nil {
			origProps, _ = orig.PlatformSpecificProperties.Get(p)
		}
		if mod.PlatformSpecificProperties != nil {
			modProps, _ = mod.PlatformSpecificProperties.Get(p)
		}
		ops = append(ops, diffProperties(origProps, modProps, p)...)
	}

	ops = append(ops, diffPinMap(orig.Events, mod.Events, SubOpAddEvent, SubOpRemoveEvent)...)
	ops = append(ops, diffPinMap(orig.InputCopying, mod.InputCopying, SubOpAddInputCopying, SubOpRemoveInputCopying)...)
	ops = append(ops, diffPinMap(orig.OutputCopying, mod.OutputCopying, SubOpAddOutputCopying, SubOpRemoveOutputCopying)...)

	ops = append(ops, diffPropertyAliases(orig.PropertyAliases, mod.PropertyAliases)...)
	ops = append(ops, diffExposedEntities(orig.ExposedEntities, mod.ExposedEntities)...)
	ops = append(ops, diffExposedInterfaces(orig.ExposedInterfaces, mod.ExposedInterfaces)...)
	ops = append(ops, diffSubsets(orig.Subsets, mod.Subsets)...)

	return ops
}

func flagEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func platformNames(m *OrderedMap[*OrderedMap[Property]]) []string {
	if m == nil {
		return nil
	}
	return m.Keys()
}

func diffProperties(orig, mod *OrderedMap[Property], platform string) []SubEntityOp {
	var ops []SubEntityOp
	var origKeys, modKeys []string
	if orig != nil {
		origKeys = orig.Keys()
	}
	if mod != nil {
		modKeys = mod.Keys()
	}
	origSet := map[string]bool{}
	for _, k := range origKeys {
		origSet[k] = true
	}
	modSet := map[string]bool{}
	for _, k := range modKeys {
		modSet[k] = true
	}

	addKind, removeKind := SubOpAddProperty, SubOpRemovePropertyByName
	typeKind, valueKind, postInitKind := SubOpSetPropertyType, SubOpSetPropertyValue, SubOpSetPropertyPostInit
	if platform != "" {
		addKind, removeKind = SubOpAddPlatformProperty, SubOpRemovePlatformPropertyByName
		typeKind, valueKind, postInitKind = SubOpSetPlatformPropertyType, SubOpSetPlatformPropertyValue, SubOpSetPlatformPropertyPostInit
	}

	for _, k := range origKeys {
		if !modSet[k] {
			ops = append(ops, SubEntityOp{Kind: removeKind, Name: k, Platform: platform})
		}
	}
	for _, k := range modKeys {
		prop, _ := mod.Get(k)
		p := prop
		if !origSet[k] {
			ops = append(ops, SubEntityOp{Kind: addKind, Name: k, Platform: platform, Property: &p})
			continue
		}
		origProp, _ := orig.Get(k)
		if origProp.Type != prop.Type {
			ops = append(ops, SubEntityOp{Kind: typeKind, Name: k, Platform: platform, StrValue: prop.Type})
		}
		if !jsonEqual(origProp.Value, prop.Value) {
			ops = append(ops, SubEntityOp{Kind: valueKind, Name: k, Platform: platform, RawValue: prop.Value})
		}
		if origProp.PostInit != prop.PostInit {
			b := prop.PostInit
			ops = append(ops, SubEntityOp{Kind: postInitKind, Name: k, Platform: platform, BoolValue: &b})
		}
	}
	return ops
}

func diffPinMap(orig, mod PinMap, addKind, removeKind SubOpKind) []SubEntityOp {
	var ops []SubEntityOp
	var fromPins []string
	if orig != nil {
		fromPins = orig.Keys()
	}
	if mod != nil {
		for _, p := range mod.Keys() {
			if !containsStr(fromPins, p) {
				fromPins = append(fromPins, p)
			}
		}
	}

	for _, fromPin := range fromPins {
		var origToMap, modToMap *OrderedMap[[]RefMaybeConstantValue]
		if orig != nil {
			origToMap, _ = orig.Get(fromPin)
		}
		if mod != nil {
			modToMap, _ = mod.Get(fromPin)
		}
		var toPins []string
		if origToMap != nil {
			toPins = origToMap.Keys()
		}
		if modToMap != nil {
			for _, p := range modToMap.Keys() {
				if !containsStr(toPins, p) {
					toPins = append(toPins, p)
				}
			}
		}
		for _, toPin := range toPins {
			var origTargets, modTargets []RefMaybeConstantValue
			if origToMap != nil {
				origTargets, _ = origToMap.Get(toPin)
			}
			if modToMap != nil {
				modTargets, _ = modToMap.Get(toPin)
			}
			for _, t := range origTargets {
				if !containsTarget(modTargets, t) {
					target := t
					ops = append(ops, SubEntityOp{Kind: removeKind, FromPin: fromPin, ToPin: toPin, Target: &target})
				}
			}
			for _, t := range modTargets {
				if !containsTarget(origTargets, t) {
					target := t
					ops = append(ops, SubEntityOp{Kind: addKind, FromPin: fromPin, ToPin: toPin, Target: &target})
				}
			}
		}
	}
	return ops
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsTarget(list []RefMaybeConstantValue, v RefMaybeConstantValue) bool {
	for _, t := range list {
		if refMaybeConstantEqual(t, v) {
			return true
		}
	}
	return false
}

func diffPropertyAliases(orig, mod *OrderedMap[[]PropertyAlias]) []SubEntityOp {
	var ops []SubEntityOp
	var names []string
	if orig != nil {
		names = orig.Keys()
	}
	if mod != nil {
		for _, n := range mod.Keys() {
			if !containsStr(names, n) {
				names = append(names, n)
			}
		}
	}
	for _, name := range names {
		var origList, modList []PropertyAlias
		if orig != nil {
			origList, _ = orig.Get(name)
		}
		if mod != nil {
			modList, _ = mod.Get(name)
		}
		for _, a := range origList {
			if !containsAlias(modList, a) {
				alias := a
				ops = append(ops, SubEntityOp{Kind: SubOpRemovePropertyAlias, Name: name, Alias: &alias})
			}
		}
		for _, a := range modList {
			if !containsAlias(origList, a) {
				alias := a
				ops = append(ops, SubEntityOp{Kind: SubOpAddPropertyAlias, Name: name, Alias: &alias})
			}
		}
	}
	return ops
}

func containsAlias(list []PropertyAlias, v PropertyAlias) bool {
	for _, a := range list {
		if a.OriginalProperty == v.OriginalProperty && refsEqual(a.OriginalEntity, v.OriginalEntity) {
			return true
		}
	}
	return false
}

func diffExposedEntities(orig, mod *OrderedMap[ExposedEntity]) []SubEntityOp {
	var ops []SubEntityOp
	var names []string
	if orig != nil {
		names = orig.Keys()
	}
	if mod != nil {
		for _, n := range mod.Keys() {
			if !containsStr(names, n) {
				names = append(names, n)
			}
		}
	}
	for _, name := range names {
		origVal, hasOrig := (ExposedEntity{}), false
		modVal, hasMod := (ExposedEntity{}), false
		if orig != nil {
			origVal, hasOrig = orig.Get(name)
		}
		if mod != nil {
			modVal, hasMod = mod.Get(name)
		}
		switch {
		case hasOrig && !hasMod:
			ops = append(ops, SubEntityOp{Kind: SubOpRemoveExposedEntity, Name: name})
		case !hasOrig && hasMod:
			v := modVal
			ops = append(ops, SubEntityOp{Kind: SubOpAddExposedEntity, Name: name, ExposedEntity: &v})
		case hasOrig && hasMod && !valueEqual(origVal, modVal):
			ops = append(ops, SubEntityOp{Kind: SubOpRemoveExposedEntity, Name: name})
			v := modVal
			ops = append(ops, SubEntityOp{Kind: SubOpAddExposedEntity, Name: name, ExposedEntity: &v})
		}
	}
	return ops
}

func diffExposedInterfaces(orig, mod *OrderedMap[EntityID]) []SubEntityOp {
	var ops []SubEntityOp
	var names []string
	if orig != nil {
		names = orig.Keys()
	}
	if mod != nil {
		for _, n := range mod.Keys() {
			if !containsStr(names, n) {
				names = append(names, n)
			}
		}
	}
	for _, name := range names {
		var origVal, modVal EntityID
		var hasOrig, hasMod bool
		if orig != nil {
			origVal, hasOrig = orig.Get(name)
		}
		if mod != nil {
			modVal, hasMod = mod.Get(name)
		}
		switch {
		case hasOrig && !hasMod:
			ops = append(ops, SubEntityOp{Kind: SubOpRemoveExposedInterface, Name: name})
		case !hasOrig && hasMod:
			v := modVal
			ops = append(ops, SubEntityOp{Kind: SubOpAddExposedInterface, Name: name, ExposedTarget: &v})
		case hasOrig && hasMod && origVal != modVal:
			ops = append(ops, SubEntityOp{Kind: SubOpRemoveExposedInterface, Name: name})
			v := modVal
			ops = append(ops, SubEntityOp{Kind: SubOpAddExposedInterface, Name: name, ExposedTarget: &v})
		}
	}
	return ops
}

func diffSubsets(orig, mod *OrderedMap[[]EntityID]) []SubEntityOp {
	var ops []SubEntityOp
	var names []string
	if orig != nil {
		names = orig.Keys()
	}
	if mod != nil {
		for _, n := range mod.Keys() {
			if !containsStr(names, n) {
				names = append(names, n)
			}
		}
	}
	for _, name := range names {
		var origList, modList []EntityID
		if orig != nil {
			origList, _ = orig.Get(name)
		}
		if mod != nil {
			modList, _ = mod.Get(name)
		}
		for _, m := range origList {
			if !containsID(modList, m) {
				subset, member := name, m
				ops = append(ops, SubEntityOp{Kind: SubOpRemoveSubsetMember, Subset: &subset, Member: &member})
			}
		}
		for _, m := range modList {
			if !containsID(origList, m) {
				subset, member := name, m
				ops = append(ops, SubEntityOp{Kind: SubOpAddSubsetMember, Subset: &subset, Member: &member})
			}
		}
	}
	return ops
}

func containsID(list []EntityID, v EntityID) bool {
	for _, id := range list {
		if id == v {
			return true
		}
	}
	return false
}

func diffPropertyOverrides(orig, mod []PropertyOverride) []Op {
	var ops []Op
	for _, o := range orig {
		if !containsPropertyOverride(mod, o) {
			po := o
			ops = append(ops, Op{Kind: OpRemovePropertyOverride, PropertyOverride: &po})
		}
	}
	for _, m := range mod {
		if !containsPropertyOverride(orig, m) {
			po := m
			ops = append(ops, Op{Kind: OpAddPropertyOverride, PropertyOverride: &po})
		}
	}
	return ops
}

func containsPropertyOverride(list []PropertyOverride, v PropertyOverride) bool {
	for _, o := range list {
		if valueEqual(o, v) {
			return true
		}
	}
	return false
}

func diffRefList(orig, mod []Ref, addKind, removeKind OpKind) []Op {
	var ops []Op
	for _, r := range orig {
		if !containsRef(mod, r) {
			ref := r
			ops = append(ops, Op{Kind: removeKind, Ref: &ref})
		}
	}
	for _, r := range mod {
		if !containsRef(orig, r) {
			ref := r
			ops = append(ops, Op{Kind: addKind, Ref: &ref})
		}
	}
	return ops
}

func containsRef(list []Ref, v Ref) bool {
	for _, r := range list {
		if refsEqual(r, v) {
			return true
		}
	}
	return false
}

func diffPinConnectionOverrides(orig, mod []PinConnectionOverride) []Op {
	var ops []Op
	for _, o := range orig {
		if !containsPinConnectionOverride(mod, o) {
			v := o
			ops = append(ops, Op{Kind: OpRemovePinConnectionOverride, PinConnectionOverride: &v})
		}
	}
	for _, m := range mod {
		if !containsPinConnectionOverride(orig, m) {
			v := m
			ops = append(ops, Op{Kind: OpAddPinConnectionOverride, PinConnectionOverride: &v})
		}
	}
	return ops
}

func containsPinConnectionOverride(list []PinConnectionOverride, v PinConnectionOverride) bool {
	for _, o := range list {
		if valueEqual(o, v) {
			return true
		}
	}
	return false
}

func diffPinConnectionOverrideDeletes(orig, mod []PinConnectionOverrideDelete) []Op {
	var ops []Op
	for _, o := range orig {
		if !containsPinConnectionOverrideDelete(mod, o) {
			v := o
			ops = append(ops, Op{Kind: OpRemovePinConnectionOverrideDelete, PinConnectionOverrideDelete: &v})
		}
	}
	for _, m := range mod {
		if !containsPinConnectionOverrideDelete(orig, m) {
			v := m
			ops = append(ops, Op{Kind: OpAddPinConnectionOverrideDelete, PinConnectionOverrideDelete: &v})
		}
	}
	return ops
}

func containsPinConnectionOverrideDelete(list []PinConnectionOverrideDelete, v PinConnectionOverrideDelete) bool {
	for _, o := range list {
		if valueEqual(o, v) {
			return true
		}
	}
	return false
}

// diffExternalScenes compares the external-scene hash lists, treating a
// colon-qualified hash and its md5-derived plain form as equivalent
// (spec.md §4.3's pathed-dependency equivalence rule).
func diffExternalScenes(orig, mod []string) []Op {
	var ops []Op
	eq := func(a, b string) bool {
		return a == b || hashEquivalent(a, b)
	}
	contains := func(list []string, v string) bool {
		for _, s := range list {
			if eq(s, v) {
				return true
			}
		}
		return false
	}
	for _, s := range orig {
		if !contains(mod, s) {
			scene := s
			ops = append(ops, Op{Kind: OpRemoveExternalScene, ExternalScene: scene})
		}
	}
	for _, s := range mod {
		if !contains(orig, s) {
			scene := s
			ops = append(ops, Op{Kind: OpAddExternalScene, ExternalScene: scene})
		}
	}
	return ops
}

func hashEquivalent(a, b string) bool {
	return normalizedHash(a) == normalizedHash(b)
}

func normalizedHash(h string) string {
	if strings.Contains(h, ":") {
		return md5EquivalentHash(h)
	}
	return h
}

func diffResourceReferences(orig, mod []ResourceReference, addKind, removeKind OpKind) []Op {
	var ops []Op
	contains := func(list []ResourceReference, v ResourceReference) bool {
		for _, r := range list {
			if valueEqual(r, v) {
				return true
			}
		}
		return false
	}
	for _, r := range orig {
		if !contains(mod, r) {
			v := r
			ops = append(ops, Op{Kind: removeKind, ExtraReference: &v})
		}
	}
	for _, r := range mod {
		if !contains(orig, r) {
			v := r
			ops = append(ops, Op{Kind: addKind, ExtraReference: &v})
		}
	}
	return ops
}

func diffComments(orig, mod []CommentEntity) []Op {
	var ops []Op
	contains := func(list []CommentEntity, v CommentEntity) bool {
		for _, c := range list {
			if refsEqual(c.Parent, v.Parent) && c.Name == v.Name && c.Text == v.Text {
				return true
			}
		}
		return false
	}
	for _, c := range orig {
		if !contains(mod, c) {
			v := c
			ops = append(ops, Op{Kind: OpRemoveComment, Comment: &v})
		}
	}
	for _, c := range mod {
		if !contains(orig, c) {
			v := c
			ops = append(ops, Op{Kind: OpAddComment, Comment: &v})
		}
	}
	return ops
}
