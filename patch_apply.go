package quickentity

import "encoding/json"

// ApplyPatch implements spec.md §4.6's apply algorithm: it clones the
// source document, then executes every Op in list order. Ops are
// non-transactional — a failure partway through leaves the clone
// mutated, and the original document is never touched.
func ApplyPatch(original *Entity, patch *Patch, opts ...PatchOption) (*Entity, error) {
	o := NewPatchOptions(opts...)
	log := o.logger()

	entity, err := cloneEntity(original)
	if err != nil {
		return nil, err
	}

	log.Debugf("applying patch: %d ops", len(patch.Patch))

	for i, op := range patch.Patch {
		if err := applyOp(entity, op); err != nil {
			kind := PatchNotApplicable
			if qeErr, ok := err.(*Error); ok {
				kind = qeErr.Kind
			}
			return nil, wrapErr(kind, err, "patch op %d (%s) could not be applied", i, op.Kind)
		}
	}

	return entity, nil
}

func cloneEntity(e *Entity) (*Entity, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, wrapErr(TypeMismatch, err, "failed to clone entity before patching")
	}
	var clone Entity
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, wrapErr(TypeMismatch, err, "failed to clone entity before patching")
	}
	return &clone, nil
}

func applyOp(e *Entity, op Op) error {
	switch op.Kind {
	case OpSetRootEntity:
		if op.EntityID == nil {
			return newErr(UnknownOp, "setRootEntity requires entityId")
		}
		e.RootEntity = *op.EntityID
		return nil
	case OpSetSubType:
		if op.SubType == nil {
			return newErr(UnknownOp, "setSubType requires subType")
		}
		e.SubType = *op.SubType
		return nil
	case OpAddEntity:
		if op.EntityID == nil || op.SubEntity == nil {
			return newErr(UnknownOp, "addEntity requires entityId and subEntity")
		}
		e.Entities.Set(*op.EntityID, op.SubEntity)
		return nil
	case OpRemoveEntity:
		if op.EntityID == nil {
			return newErr(UnknownOp, "removeEntityByID requires entityId")
		}
		if !e.Entities.Delete(*op.EntityID) {
			return newErr(PatchNotApplicable, "entity %s does not exist", *op.EntityID)
		}
		return nil
	case OpSubEntity:
		if op.EntityID == nil || op.SubOp == nil {
			return newErr(UnknownOp, "subEntityOperation requires entityId and subOp")
		}
		sub, ok := e.Entities.Get(*op.EntityID)
		if !ok {
			return newErr(UnknownEntityID, "entity %s does not exist", *op.EntityID)
		}
		return applySubEntityOp(sub, *op.SubOp)

	case OpAddPropertyOverride:
		if op.PropertyOverride == nil {
			return newErr(UnknownOp, "addPropertyOverride requires propertyOverride")
		}
		e.PropertyOverrides = append(e.PropertyOverrides, *op.PropertyOverride)
		return nil
	case OpRemovePropertyOverride:
		idx := -1
		for i, po := range e.PropertyOverrides {
			if op.PropertyOverride != nil && valueEqual(po, *op.PropertyOverride) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return newErr(PatchNotApplicable, "property override not found")
		}
		e.PropertyOverrides = append(e.PropertyOverrides[:idx], e.PropertyOverrides[idx+1:]...)
		return nil

	case OpAddOverrideDelete:
		if op.Ref == nil {
			return newErr(UnknownOp, "addOverrideDelete requires ref")
		}
		e.OverrideDeletes = append(e.OverrideDeletes, *op.Ref)
		return nil
	case OpRemoveOverrideDelete:
		idx := -1
		for i, r := range e.OverrideDeletes {
			if op.Ref != nil && refsEqual(r, *op.Ref) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return newErr(PatchNotApplicable, "override delete not found")
		}
		e.OverrideDeletes = append(e.OverrideDeletes[:idx], e.OverrideDeletes[idx+1:]...)
		return nil

	case OpAddPinConnectionOverride:
		if op.PinConnectionOverride == nil {
			return newErr(UnknownOp, "addPinConnectionOverride requires pinConnectionOverride")
		}
		e.PinConnectionOverrides = append(e.PinConnectionOverrides, *op.PinConnectionOverride)
		return nil
	case OpRemovePinConnectionOverride:
		idx := -1
		for i, v := range e.PinConnectionOverrides {
			if op.PinConnectionOverride != nil && valueEqual(v, *op.PinConnectionOverride) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return newErr(PatchNotApplicable, "pin connection override not found")
		}
		e.PinConnectionOverrides = append(e.PinConnectionOverrides[:idx], e.PinConnectionOverrides[idx+1:]...)
		return nil

	case OpAddPinConnectionOverrideDelete:
		if op.PinConnectionOverrideDelete == nil {
			return newErr(UnknownOp, "addPinConnectionOverrideDelete requires pinConnectionOverrideDelete")
		}
		e.PinConnectionOverrideDeletes = append(e.PinConnectionOverrideDeletes, *op.PinConnectionOverrideDelete)
		return nil
	case OpRemovePinConnectionOverrideDelete:
		idx := -1
		for i, v := range e.PinConnectionOverrideDeletes {
			if op.PinConnectionOverrideDelete != nil && valueEqual(v, *op.PinConnectionOverrideDelete) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return newErr(PatchNotApplicable, "pin connection override delete not found")
		}
		e.PinConnectionOverrideDeletes = append(e.PinConnectionOverrideDeletes[:idx], e.PinConnectionOverrideDeletes[idx+1:]...)
		return nil

	case OpAddExternalScene:
		e.ExternalScenes = append(e.ExternalScenes, op.ExternalScene)
		return nil
	case OpRemoveExternalScene:
		idx := -1
		for i, s := range e.ExternalScenes {
			if hashEquivalent(s, op.ExternalScene) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return newErr(PatchNotApplicable, "external scene %q not found", op.ExternalScene)
		}
		e.ExternalScenes = append(e.ExternalScenes[:idx], e.ExternalScenes[idx+1:]...)
		return nil

	case OpAddExtraFactoryReference:
		if op.ExtraReference == nil {
			return newErr(UnknownOp, "addExtraFactoryReference requires extraReference")
		}
		e.ExtraFactoryDependencies = append(e.ExtraFactoryDependencies, *op.ExtraReference)
		return nil
	case OpRemoveExtraFactoryReference:
		idx := findResourceReference(e.ExtraFactoryDependencies, op.ExtraReference)
		if idx < 0 {
			return newErr(PatchNotApplicable, "extra factory reference not found")
		}
		e.ExtraFactoryDependencies = append(e.ExtraFactoryDependencies[:idx], e.ExtraFactoryDependencies[idx+1:]...)
		return nil
	case OpAddExtraBlueprintReference:
		if op.ExtraReference == nil {
			return newErr(UnknownOp, "addExtraBlueprintReference requires extraReference")
		}
		e.ExtraBlueprintDependencies = append(e.ExtraBlueprintDependencies, *op.ExtraReference)
		return nil
	case OpRemoveExtraBlueprintReference:
		idx := findResourceReference(e.ExtraBlueprintDependencies, op.ExtraReference)
		if idx < 0 {
			return newErr(PatchNotApplicable, "extra blueprint reference not found")
		}
		e.ExtraBlueprintDependencies = append(e.ExtraBlueprintDependencies[:idx], e.ExtraBlueprintDependencies[idx+1:]...)
		return nil

	case OpAddComment:
		if op.Comment == nil {
			return newErr(UnknownOp, "addComment requires comment")
		}
		e.Comments = append(e.Comments, *op.Comment)
		return nil
	case OpRemoveComment:
		idx := -1
		for i, c := range e.Comments {
			if op.Comment != nil && refsEqual(c.Parent, op.Comment.Parent) && c.Name == op.Comment.Name && c.Text == op.Comment.Text {
				idx = i
				break
			}
		}
		if idx < 0 {
			return newErr(PatchNotApplicable, "comment not found")
		}
		e.Comments = append(e.Comments[:idx], e.Comments[idx+1:]...)
		return nil

	default:
		return newErr(UnknownOp, "unrecognized op %q", op.Kind)
	}
}

func findResourceReference(list []ResourceReference, v *ResourceReference) int {
	if v == nil {
		return -1
	}
	for i, r := range list {
		if valueEqual(r, *v) {
			return i
		}
	}
	return -1
}

func applySubEntityOp(sub *SubEntity, op SubEntityOp) error {
	switch op.Kind {
	case SubOpSetName:
		sub.Name = op.StrValue
		return nil
	case SubOpSetFactory:
		sub.Factory = op.StrValue
		return nil
	case SubOpSetFactoryFlag:
		sub.FactoryFlag = op.FlagValue
		return nil
	case SubOpSetBlueprint:
		sub.Blueprint = op.StrValue
		return nil
	case SubOpSetEditorOnly:
		if op.BoolValue == nil {
			return newErr(UnknownOp, "setEditorOnly requires boolValue")
		}
		sub.EditorOnly = *op.BoolValue
		return nil
	case SubOpSetParent:
		if op.RefValue == nil {
			return newErr(UnknownOp, "setParent requires refValue")
		}
		sub.Parent = *op.RefValue
		return nil

	case SubOpAddProperty:
		if op.Property == nil {
			return newErr(UnknownOp, "addProperty requires property")
		}
		sub.Properties.Set(op.Name, *op.Property)
		return nil
	case SubOpRemovePropertyByName:
		if !sub.Properties.Delete(op.Name) {
			return newErr(PatchNotApplicable, "property %q does not exist", op.Name)
		}
		return nil
	case SubOpSetPropertyType:
		return mutateProperty(sub.Properties, op.Name, func(p *Property) { p.Type = op.StrValue })
	case SubOpSetPropertyValue:
		return mutateProperty(sub.Properties, op.Name, func(p *Property) { p.Value = op.RawValue })
	case SubOpSetPropertyPostInit:
		if op.BoolValue == nil {
			return newErr(UnknownOp, "setPropertyPostInit requires boolValue")
		}
		return mutateProperty(sub.Properties, op.Name, func(p *Property) { p.PostInit = *op.BoolValue })

	case SubOpAddPlatformProperty:
		if op.Property == nil {
			return newErr(UnknownOp, "addPlatformProperty requires property")
		}
		props, ok := sub.PlatformSpecificProperties.Get(op.Platform)
		if !ok {
			props = NewOrderedMap[Property]()
			sub.PlatformSpecificProperties.Set(op.Platform, props)
		}
		props.Set(op.Name, *op.Property)
		return nil
	case SubOpRemovePlatformPropertyByName:
		props, ok := sub.PlatformSpecificProperties.Get(op.Platform)
		if !ok || !props.Delete(op.Name) {
			return newErr(PatchNotApplicable, "platform property %s/%q does not exist", op.Platform, op.Name)
		}
		if props.Len() == 0 {
			sub.PlatformSpecificProperties.Delete(op.Platform)
		}
		return nil
	case SubOpSetPlatformPropertyType:
		props, ok := sub.PlatformSpecificProperties.Get(op.Platform)
		if !ok {
			return newErr(PatchNotApplicable, "platform %q does not exist", op.Platform)
		}
		return mutateProperty(props, op.Name, func(p *Property) { p.Type = op.StrValue })
	case SubOpSetPlatformPropertyValue:
		props, ok := sub.PlatformSpecificProperties.Get(op.Platform)
		if !ok {
			return newErr(PatchNotApplicable, "platform %q does not exist", op.Platform)
		}
		return mutateProperty(props, op.Name, func(p *Property) { p.Value = op.RawValue })
	case SubOpSetPlatformPropertyPostInit:
		props, ok := sub.PlatformSpecificProperties.Get(op.Platform)
		if !ok {
			return newErr(PatchNotApplicable, "platform %q does not exist", op.Platform)
		}
		if op.BoolValue == nil {
			return newErr(UnknownOp, "setPlatformPropertyPostInit requires boolValue")
		}
		return mutateProperty(props, op.Name, func(p *Property) { p.PostInit = *op.BoolValue })

	case SubOpAddEvent:
		return addPinTarget(sub.Events, op)
	case SubOpRemoveEvent:
		return removePinTarget(sub.Events, op)
	case SubOpAddInputCopying:
		return addPinTarget(sub.InputCopying, op)
	case SubOpRemoveInputCopying:
		return removePinTarget(sub.InputCopying, op)
	case SubOpAddOutputCopying:
		return addPinTarget(sub.OutputCopying, op)
	case SubOpRemoveOutputCopying:
		return removePinTarget(sub.OutputCopying, op)

	case SubOpAddPropertyAlias:
		if op.Alias == nil {
			return newErr(UnknownOp, "addPropertyAlias requires alias")
		}
		list, _ := sub.PropertyAliases.Get(op.Name)
		list = append(list, *op.Alias)
		sub.PropertyAliases.Set(op.Name, list)
		return nil
	case SubOpRemovePropertyAlias:
		if op.Alias == nil {
			return newErr(UnknownOp, "removePropertyAlias requires alias")
		}
		list, ok := sub.PropertyAliases.Get(op.Name)
		if !ok {
			return newErr(PatchNotApplicable, "property alias list %q does not exist", op.Name)
		}
		idx := -1
		for i, a := range list {
			if containsAlias([]PropertyAlias{a}, *op.Alias) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return newErr(PatchNotApplicable, "property alias not found in %q", op.Name)
		}
		list = append(list[:idx], list[idx+1:]...)
		if len(list) == 0 {
			sub.PropertyAliases.Delete(op.Name)
		} else {
			sub.PropertyAliases.Set(op.Name, list)
		}
		return nil

	case SubOpAddExposedEntity:
		if op.ExposedEntity == nil {
			return newErr(UnknownOp, "addExposedEntity requires exposedEntity")
		}
		sub.ExposedEntities.Set(op.Name, *op.ExposedEntity)
		return nil
	case SubOpRemoveExposedEntity:
		if !sub.ExposedEntities.Delete(op.Name) {
			return newErr(PatchNotApplicable, "exposed entity %q does not exist", op.Name)
		}
		return nil

	case SubOpAddExposedInterface:
		if op.ExposedTarget == nil {
			return newErr(UnknownOp, "addExposedInterface requires exposedTarget")
		}
		sub.ExposedInterfaces.Set(op.Name, *op.ExposedTarget)
		return nil
	case SubOpRemoveExposedInterface:
		if !sub.ExposedInterfaces.Delete(op.Name) {
			return newErr(PatchNotApplicable, "exposed interface %q does not exist", op.Name)
		}
		return nil

	case SubOpAddSubsetMember:
		if op.Subset == nil || op.Member == nil {
			return newErr(UnknownOp, "addSubsetMember requires subset and member")
		}
		list, _ := sub.Subsets.Get(*op.Subset)
		if containsID(list, *op.Member) {
			return nil
		}
		list = append(list, *op.Member)
		sub.Subsets.Set(*op.Subset, list)
		return nil
	case SubOpRemoveSubsetMember:
		if op.Subset == nil || op.Member == nil {
			return newErr(UnknownOp, "removeSubsetMember requires subset and member")
		}
		list, ok := sub.Subsets.Get(*op.Subset)
		if !ok {
			return newErr(PatchNotApplicable, "subset %q does not exist", *op.Subset)
		}
		idx := -1
		for i, id := range list {
			if id == *op.Member {
				idx = i
				break
			}
		}
		if idx < 0 {
			return newErr(PatchNotApplicable, "subset %q has no member %s", *op.Subset, *op.Member)
		}
		list = append(list[:idx], list[idx+1:]...)
		if len(list) == 0 {
			sub.Subsets.Delete(*op.Subset)
		} else {
			sub.Subsets.Set(*op.Subset, list)
		}
		return nil

	default:
		return newErr(UnknownOp, "unrecognized sub-entity op %q", op.Kind)
	}
}

func mutateProperty(props *OrderedMap[Property], name string, mutate func(*Property)) error {
	p, ok := props.Get(name)
	if !ok {
		return newErr(PatchNotApplicable, "property %q does not exist", name)
	}
	mutate(&p)
	props.Set(name, p)
	return nil
}

// addPinTarget implements the on-demand intermediate-map creation
// spec.md §4.6 requires: absent from-pin/to-pin levels are created
// lazily as a new connection is added.
func addPinTarget(pins PinMap, op SubEntityOp) error {
	if op.Target == nil {
		return newErr(UnknownOp, "%s requires target", op.Kind)
	}
	toMap, ok := pins.Get(op.FromPin)
	if !ok {
		toMap = NewOrderedMap[[]RefMaybeConstantValue]()
		pins.Set(op.FromPin, toMap)
	}
	targets, _ := toMap.Get(op.ToPin)
	targets = append(targets, *op.Target)
	toMap.Set(op.ToPin, targets)
	return nil
}

// removePinTarget implements the empty-container-to-absent collapsing
// spec.md §4.6 requires: once a to-pin's target list (or a from-pin's
// to-pin map) is emptied, the key is dropped rather than kept empty.
func removePinTarget(pins PinMap, op SubEntityOp) error {
	if op.Target == nil {
		return newErr(UnknownOp, "%s requires target", op.Kind)
	}
	toMap, ok := pins.Get(op.FromPin)
	if !ok {
		return newErr(PatchNotApplicable, "pin %q has no connections", op.FromPin)
	}
	targets, ok := toMap.Get(op.ToPin)
	if !ok {
		return newErr(PatchNotApplicable, "pin %q -> %q has no connections", op.FromPin, op.ToPin)
	}
	idx := -1
	for i, t := range targets {
		if refMaybeConstantEqual(t, *op.Target) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return newErr(PatchNotApplicable, "pin %q -> %q has no matching target", op.FromPin, op.ToPin)
	}
	targets = append(targets[:idx], targets[idx+1:]...)
	if len(targets) == 0 {
		toMap.Delete(op.ToPin)
	} else {
		toMap.Set(op.ToPin, targets)
	}
	if toMap.Len() == 0 {
		pins.Delete(op.FromPin)
	}
	return nil
}
