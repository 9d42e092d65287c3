package quickentity

import (
	"encoding/json"

	"go.uber.org/multierr"
)

func subTypeFromRT(v int8) (SubType, error) {
	switch v {
	case 2:
		return SubTypeBrick, nil
	case 1:
		return SubTypeScene, nil
	case 0:
		return SubTypeTemplate, nil
	default:
		return 0, newErr(TypeMismatch, "invalid RT subType %d", v)
	}
}

// ConvertToQN implements spec.md §4.4: the full RT->QN conversion of a
// factory/blueprint resource pair into a single freestanding QN Entity.
func ConvertToQN(factory *RTFactory, factoryMeta *ResourceMeta, blueprint *RTBlueprint, blueprintMeta *ResourceMeta, opts ...ConvertOption) (*Entity, error) {
	o := NewConvertOptions(opts...)
	log := o.logger()

	if err := ValidateRTPair(factory, blueprint); err != nil {
		return nil, err
	}

	subType, err := subTypeFromRT(blueprint.SubType)
	if err != nil {
		return nil, err
	}

	ctx := rtReadContext{Factory: factory, FactoryMeta: factoryMeta, Blueprint: blueprint}
	log.Debugf("converting RT pair to QN: %d sub-entities", len(blueprint.SubEntities))

	entities, err := convertSubEntitiesToQN(ctx, blueprintMeta, o.Lossless, o.Parallel)
	if err != nil {
		return nil, err
	}

	entity := &Entity{
		Factory:            factoryMeta.HashValue,
		Blueprint:          blueprintMeta.HashValue,
		RootEntity:         EntityID(blueprint.SubEntities[blueprint.RootEntityIndex].EntityID),
		Entities:           entities,
		SubType:            subType,
		QuickEntityVersion: 3.1,
	}

	entity.ExternalScenes = make([]string, len(factory.ExternalSceneTypeIndicesInResourceHeader))
	for i, depIdx := range factory.ExternalSceneTypeIndicesInResourceHeader {
		if depIdx < 0 || depIdx >= len(factoryMeta.HashReferenceData) {
			return nil, newErr(IndexOutOfRange, "external scene dependency index %d out of range", depIdx)
		}
		entity.ExternalScenes[i] = factoryMeta.HashReferenceData[depIdx].Hash
	}

	for _, ref := range blueprint.OverrideDeletes {
		qnRef, err := convertRTReferenceToQN(ref, ctx)
		if err != nil {
			return nil, err
		}
		entity.OverrideDeletes = append(entity.OverrideDeletes, qnRef)
	}

	for _, del := range blueprint.PinConnectionOverrideDeletes {
		d, err := convertExternalPinToQNDelete(del, ctx)
		if err != nil {
			return nil, err
		}
		entity.PinConnectionOverrideDeletes = append(entity.PinConnectionOverrideDeletes, d)
	}

	for _, pco := range blueprint.PinConnectionOverrides {
		if pco.FromEntity.ExternalSceneIndex == -1 {
			continue
		}
		o, err := convertExternalPinToQNOverride(pco, ctx)
		if err != nil {
			return nil, err
		}
		entity.PinConnectionOverrides = append(entity.PinConnectionOverrides, o)
	}

	if err := foldPinConnections(entity, ctx, blueprint); err != nil {
		return nil, err
	}
	if err := foldLocalPinConnectionOverrides(entity, ctx, blueprint); err != nil {
		return nil, err
	}
	if err := foldPinForwardings(entity, blueprint); err != nil {
		return nil, err
	}
	if err := foldSubsets(entity, blueprint); err != nil {
		return nil, err
	}
	if err := foldPropertyOverrides(entity, factory, ctx, o.Lossless); err != nil {
		return nil, err
	}

	if err := fillExtraDependencies(entity, factoryMeta, blueprintMeta); err != nil {
		return nil, err
	}

	return entity, nil
}

// ValidateRTPair implements the original's pre-conversion validation pass
// (SPEC_FULL.md §4, "sub-entity validation pass"): every independent
// structural check on the pair runs before any conversion work begins, and
// their failures are aggregated rather than short-circuited on the first
// one, so a caller fixing a malformed pair sees every problem at once.
func ValidateRTPair(factory *RTFactory, blueprint *RTBlueprint) error {
	var err error
	err = multierr.Append(err, validateNoDuplicateEntityIDs(blueprint))
	if len(factory.SubEntities) != len(blueprint.SubEntities) {
		err = multierr.Append(err, newErr(TypeMismatch, "factory and blueprint sub-entity counts differ (%d vs %d)", len(factory.SubEntities), len(blueprint.SubEntities)))
	}
	if blueprint.RootEntityIndex < 0 || blueprint.RootEntityIndex >= len(blueprint.SubEntities) {
		err = multierr.Append(err, newErr(IndexOutOfRange, "root entity index %d out of range", blueprint.RootEntityIndex))
	}
	return err
}

func validateNoDuplicateEntityIDs(blueprint *RTBlueprint) error {
	seen := make(map[uint64]bool, len(blueprint.SubEntities))
	for _, sub := range blueprint.SubEntities {
		if seen[sub.EntityID] {
			return newErr(DuplicateEntityID, "duplicate entity id %s", EntityID(sub.EntityID))
		}
		seen[sub.EntityID] = true
	}
	return nil
}

func convertSubEntitiesToQN(ctx rtReadContext, blueprintMeta *ResourceMeta, lossless, parallel bool) (*EntityOrderedMap[*SubEntity], error) {
	factory, blueprint := ctx.Factory, ctx.Blueprint

	converted, err := parallelMap(blueprint.SubEntities, parallel, func(i int, subB STemplateBlueprintSubEntity) (*SubEntity, error) {
		return convertOneSubEntityToQN(ctx, blueprintMeta, factory.SubEntities[i], subB, lossless)
	})
	if err != nil {
		return nil, err
	}

	out := NewEntityOrderedMap[*SubEntity]()
	for i, subB := range blueprint.SubEntities {
		out.Set(EntityID(subB.EntityID), converted[i])
	}
	return out, nil
}

func convertOneSubEntityToQN(ctx rtReadContext, blueprintMeta *ResourceMeta, subF STemplateFactorySubEntity, subB STemplateBlueprintSubEntity, lossless bool) (*SubEntity, error) {
	blueprint := ctx.Blueprint

	if subF.EntityTypeResourceIndex < 0 || subF.EntityTypeResourceIndex >= len(ctx.FactoryMeta.HashReferenceData) {
		return nil, newErr(IndexOutOfRange, "entity type resource index %d out of range", subF.EntityTypeResourceIndex)
	}
	factoryDep := ctx.FactoryMeta.HashReferenceData[subF.EntityTypeResourceIndex]

	if subB.EntityTypeResourceIndex < 0 || subB.EntityTypeResourceIndex >= len(blueprintMeta.HashReferenceData) {
		return nil, newErr(IndexOutOfRange, "blueprint entity type resource index %d out of range", subB.EntityTypeResourceIndex)
	}
	blueprintDep := blueprintMeta.HashReferenceData[subB.EntityTypeResourceIndex]

	parent, err := convertRTReferenceToQN(subF.LogicalParent, ctx)
	if err != nil {
		return nil, err
	}

	sub := &SubEntity{
		Parent:     parent,
		Name:       subB.EntityName,
		Factory:    factoryDep.Hash,
		Blueprint:  blueprintDep.Hash,
		EditorOnly: subB.EditorOnly,
	}
	if factoryDep.Flag != "1F" {
		flag := factoryDep.Flag
		sub.FactoryFlag = &flag
	}

	props := NewOrderedMap[Property]()
	for _, p := range subF.PropertyValues {
		converted, err := convertRTPropertyToQN(p, false, ctx, ctx.FactoryMeta.HashReferenceData, lossless)
		if err != nil {
			return nil, err
		}
		props.Set(p.NPropertyID.String(), converted)
	}
	for _, p := range subF.PostInitPropertyValues {
		converted, err := convertRTPropertyToQN(p, true, ctx, ctx.FactoryMeta.HashReferenceData, lossless)
		if err != nil {
			return nil, err
		}
		props.Set(p.NPropertyID.String(), converted)
	}
	sub.Properties = props

	platProps := NewOrderedMap[*OrderedMap[Property]]()
	for _, p := range subF.PlatformSpecificPropertyValues {
		converted, err := convertRTPropertyToQN(p.PropertyValue, p.PostInit, ctx, ctx.FactoryMeta.HashReferenceData, lossless)
		if err != nil {
			return nil, err
		}
		inner, ok := platProps.Get(p.Platform)
		if !ok {
			inner = NewOrderedMap[Property]()
			platProps.Set(p.Platform, inner)
		}
		inner.Set(p.PropertyValue.NPropertyID.String(), converted)
	}
	sub.PlatformSpecificProperties = platProps

	aliases := NewOrderedMap[[]PropertyAlias]()
	for _, a := range subB.PropertyAliases {
		if a.EntityID < 0 || a.EntityID >= len(blueprint.SubEntities) {
			return nil, newErr(IndexOutOfRange, "property alias entity id %d out of range", a.EntityID)
		}
		originalEntity := ShortRef(EntityID(blueprint.SubEntities[a.EntityID].EntityID))
		existing, _ := aliases.Get(a.SPropertyName)
		aliases.Set(a.SPropertyName, append(existing, PropertyAlias{
			OriginalProperty: a.SAliasName,
			OriginalEntity:   originalEntity,
		}))
	}
	sub.PropertyAliases = aliases

	exposed := NewOrderedMap[ExposedEntity]()
	for _, e := range subB.ExposedEntities {
		var targets []Ref
		for _, t := range e.ATargets {
			qnRef, err := convertRTReferenceToQN(t, ctx)
			if err != nil {
				return nil, err
			}
			targets = append(targets, qnRef)
		}
		exposed.Set(e.SName, ExposedEntity{IsArray: e.BIsArray, RefersTo: targets})
	}
	sub.ExposedEntities = exposed

	exposedIfaces := NewOrderedMap[EntityID]()
	for _, ifc := range subB.ExposedInterfaces {
		if ifc.Index < 0 || ifc.Index >= len(blueprint.SubEntities) {
			return nil, newErr(IndexOutOfRange, "exposed interface entity index %d out of range", ifc.Index)
		}
		exposedIfaces.Set(ifc.Name, EntityID(blueprint.SubEntities[ifc.Index].EntityID))
	}
	sub.ExposedInterfaces = exposedIfaces

	sub.Events = NewOrderedMap[*OrderedMap[[]RefMaybeConstantValue]]()
	sub.InputCopying = NewOrderedMap[*OrderedMap[[]RefMaybeConstantValue]]()
	sub.OutputCopying = NewOrderedMap[*OrderedMap[[]RefMaybeConstantValue]]()
	sub.Subsets = NewOrderedMap[[]EntityID]()

	return sub, nil
}

func convertExternalPinToQNDelete(p SExternalEntityTemplatePinConnection, ctx rtReadContext) (PinConnectionOverrideDelete, error) {
	from, err := convertRTReferenceToQN(p.FromEntity, ctx)
	if err != nil {
		return PinConnectionOverrideDelete{}, err
	}
	to, err := convertRTReferenceToQN(p.ToEntity, ctx)
	if err != nil {
		return PinConnectionOverrideDelete{}, err
	}
	d := PinConnectionOverrideDelete{FromEntity: from, FromPin: p.FromPinName, ToEntity: to, ToPin: p.ToPinName}
	if !isVoidPinValue(p.ConstantPinValue) {
		d.Value = &SimpleProperty{Type: p.ConstantPinValue.PropertyType, Value: p.ConstantPinValue.PropertyValue}
	}
	return d, nil
}

func convertExternalPinToQNOverride(p SExternalEntityTemplatePinConnection, ctx rtReadContext) (PinConnectionOverride, error) {
	from, err := convertRTReferenceToQN(p.FromEntity, ctx)
	if err != nil {
		return PinConnectionOverride{}, err
	}
	to, err := convertRTReferenceToQN(p.ToEntity, ctx)
	if err != nil {
		return PinConnectionOverride{}, err
	}
	o := PinConnectionOverride{FromEntity: from, FromPin: p.FromPinName, ToEntity: to, ToPin: p.ToPinName}
	if !isVoidPinValue(p.ConstantPinValue) {
		o.Value = &SimpleProperty{Type: p.ConstantPinValue.PropertyType, Value: p.ConstantPinValue.PropertyValue}
	}
	return o, nil
}

func entityByIndex(entity *Entity, blueprint *RTBlueprint, index int) (*SubEntity, error) {
	if index < 0 || index >= len(blueprint.SubEntities) {
		return nil, newErr(IndexOutOfRange, "sub-entity index %d out of range", index)
	}
	id := EntityID(blueprint.SubEntities[index].EntityID)
	sub, ok := entity.Entities.Get(id)
	if !ok {
		return nil, newErr(UnknownEntityID, "sub-entity %s not present", id)
	}
	return sub, nil
}

func appendPinTarget(pins PinMap, fromPin, toPin string, target RefMaybeConstantValue) {
	inner, ok := pins.Get(fromPin)
	if !ok {
		inner = NewOrderedMap[[]RefMaybeConstantValue]()
		pins.Set(fromPin, inner)
	}
	existing, _ := inner.Get(toPin)
	inner.Set(toPin, append(existing, target))
}

func pinTargetFromValue(ref Ref, value SEntityTemplatePropertyValue) RefMaybeConstantValue {
	if isVoidPinValue(value) {
		return PlainRef(ref)
	}
	return ConstantRef(ref, SimpleProperty{Type: value.PropertyType, Value: value.PropertyValue})
}

func foldPinConnections(entity *Entity, ctx rtReadContext, blueprint *RTBlueprint) error {
	for _, pin := range blueprint.PinConnections {
		from, err := entityByIndex(entity, blueprint, pin.FromID)
		if err != nil {
			return err
		}
		if pin.ToID < 0 || pin.ToID >= len(blueprint.SubEntities) {
			return newErr(IndexOutOfRange, "pin connection toID %d out of range", pin.ToID)
		}
		toRef := ShortRef(EntityID(blueprint.SubEntities[pin.ToID].EntityID))
		appendPinTarget(from.Events, pin.FromPinName, pin.ToPinName, pinTargetFromValue(toRef, pin.ConstantPinValue))
	}
	return nil
}

func foldLocalPinConnectionOverrides(entity *Entity, ctx rtReadContext, blueprint *RTBlueprint) error {
	for _, pco := range blueprint.PinConnectionOverrides {
		if pco.FromEntity.ExternalSceneIndex != -1 {
			continue
		}
		from, err := entityByIndex(entity, blueprint, int(pco.FromEntity.EntityIndex))
		if err != nil {
			return err
		}
		toRef, err := convertRTReferenceToQN(pco.ToEntity, ctx)
		if err != nil {
			return err
		}
		appendPinTarget(from.Events, pco.FromPinName, pco.ToPinName, pinTargetFromValue(toRef, pco.ConstantPinValue))
	}
	return nil
}

func foldPinForwardings(entity *Entity, blueprint *RTBlueprint) error {
	for _, fwd := range blueprint.InputPinForwardings {
		from, err := entityByIndex(entity, blueprint, fwd.FromID)
		if err != nil {
			return err
		}
		if fwd.ToID < 0 || fwd.ToID >= len(blueprint.SubEntities) {
			return newErr(IndexOutOfRange, "input pin forwarding toID %d out of range", fwd.ToID)
		}
		toRef := ShortRef(EntityID(blueprint.SubEntities[fwd.ToID].EntityID))
		appendPinTarget(from.InputCopying, fwd.FromPinName, fwd.ToPinName, pinTargetFromValue(toRef, fwd.ConstantPinValue))
	}
	for _, fwd := range blueprint.OutputPinForwardings {
		from, err := entityByIndex(entity, blueprint, fwd.FromID)
		if err != nil {
			return err
		}
		if fwd.ToID < 0 || fwd.ToID >= len(blueprint.SubEntities) {
			return newErr(IndexOutOfRange, "output pin forwarding toID %d out of range", fwd.ToID)
		}
		toRef := ShortRef(EntityID(blueprint.SubEntities[fwd.ToID].EntityID))
		appendPinTarget(from.OutputCopying, fwd.FromPinName, fwd.ToPinName, pinTargetFromValue(toRef, fwd.ConstantPinValue))
	}
	return nil
}

func foldSubsets(entity *Entity, blueprint *RTBlueprint) error {
	for _, owner := range blueprint.SubEntities {
		for _, named := range owner.EntitySubsets {
			for _, memberIdx := range named.Subset.Entities {
				if memberIdx < 0 || memberIdx >= len(blueprint.SubEntities) {
					return newErr(IndexOutOfRange, "entity subset member index %d out of range", memberIdx)
				}
				memberID := EntityID(blueprint.SubEntities[memberIdx].EntityID)
				member, ok := entity.Entities.Get(memberID)
				if !ok {
					return newErr(UnknownEntityID, "entity subset member %s not present", memberID)
				}
				existing, _ := member.Subsets.Get(named.Name)
				member.Subsets.Set(named.Name, append(existing, EntityID(owner.EntityID)))
			}
		}
	}
	return nil
}

// foldPropertyOverrides implements spec.md §4.4's two-pass fold: first
// group RT property-override rows by exact owner reference, then merge
// groups that end up with identical property sets so entities sharing
// an override collapse onto one entry.
func foldPropertyOverrides(entity *Entity, factory *RTFactory, ctx rtReadContext, lossless bool) error {
	type pass1Entry struct {
		owner Ref
		props *OrderedMap[OverriddenProperty]
	}
	var pass1 []*pass1Entry

	for _, po := range factory.PropertyOverrides {
		owner, err := convertRTReferenceToQN(po.PropertyOwner, ctx)
		if err != nil {
			return err
		}
		converted, err := convertRTPropertyToQN(po.PropertyValue, false, ctx, ctx.FactoryMeta.HashReferenceData, lossless)
		if err != nil {
			return err
		}
		name := po.PropertyValue.NPropertyID.String()

		var found *pass1Entry
		for _, e := range pass1 {
			if refEqual(e.owner, owner) {
				found = e
				break
			}
		}
		if found == nil {
			found = &pass1Entry{owner: owner, props: NewOrderedMap[OverriddenProperty]()}
			pass1 = append(pass1, found)
		}
		found.props.Set(name, OverriddenProperty{Type: converted.Type, Value: converted.Value})
	}

	for _, e := range pass1 {
		var found *PropertyOverride
		for i := range entity.PropertyOverrides {
			if orderedMapPropsEqual(entity.PropertyOverrides[i].Properties, e.props) {
				found = &entity.PropertyOverrides[i]
				break
			}
		}
		if found != nil {
			found.Entities = append(found.Entities, e.owner)
		} else {
			entity.PropertyOverrides = append(entity.PropertyOverrides, PropertyOverride{
				Entities:   []Ref{e.owner},
				Properties: e.props,
			})
		}
	}

	return nil
}

func refEqual(a, b Ref) bool {
	am, _ := json.Marshal(a)
	bm, _ := json.Marshal(b)
	return string(am) == string(bm)
}

func orderedMapPropsEqual(a, b *OrderedMap[OverriddenProperty]) bool {
	if a.Len() != b.Len() {
		return false
	}
	equal := true
	a.Range(func(key string, av OverriddenProperty) bool {
		bv, ok := b.Get(key)
		if !ok || av.Type != bv.Type || string(av.Value) != string(bv.Value) {
			equal = false
			return false
		}
		return true
	})
	return equal
}

func fillExtraDependencies(entity *Entity, factoryMeta, blueprintMeta *ResourceMeta) error {
	factoryDepends := planFactoryDependencies(entity)
	for _, dep := range factoryMeta.HashReferenceData {
		if dependencyAlreadyPlanned(dep, factoryDepends) {
			continue
		}
		entity.ExtraFactoryDependencies = append(entity.ExtraFactoryDependencies, extraDependencyOf(dep))
	}

	blueprintDepends := planBlueprintDependencies(entity)
	for _, dep := range blueprintMeta.HashReferenceData {
		if dependencyAlreadyPlanned(dep, blueprintDepends) {
			continue
		}
		entity.ExtraBlueprintDependencies = append(entity.ExtraBlueprintDependencies, extraDependencyOf(dep))
	}

	return nil
}

func extraDependencyOf(dep ResourceDependency) ResourceReference {
	if dep.Flag == "1F" {
		return ResourceReference{Resource: dep.Hash}
	}
	flag := dep.Flag
	return ResourceReference{Resource: dep.Hash, Flag: &flag}
}
