package quickentity

func subTypeToRT(s SubType) (int8, error) {
	switch s {
	case SubTypeBrick:
		return 2, nil
	case SubTypeScene:
		return 1, nil
	case SubTypeTemplate:
		return 0, nil
	default:
		return 0, newErr(TypeMismatch, "invalid subType %d", s)
	}
}

// ConvertToRT implements spec.md §4.5: the full QN->RT conversion of a
// freestanding QN Entity into a factory/blueprint resource pair.
func ConvertToRT(entity *Entity, opts ...ConvertOption) (*RTFactory, *ResourceMeta, *RTBlueprint, *ResourceMeta, error) {
	o := NewConvertOptions(opts...)
	log := o.logger()

	if err := entity.Validate(); err != nil {
		return nil, nil, nil, nil, err
	}

	subType, err := subTypeToRT(entity.SubType)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	ids := entity.Entities.Keys()
	idToIndex := make(map[EntityID]int, len(ids))
	for i, id := range ids {
		idToIndex[id] = i
	}

	externalSceneIndex := make(map[string]int, len(entity.ExternalScenes))
	for i, scene := range entity.ExternalScenes {
		externalSceneIndex[scene] = i
	}

	ctx := rtWriteContext{IDToIndex: idToIndex, ExternalSceneIndex: externalSceneIndex}
	log.Debugf("converting QN entity to RT: %d sub-entities", len(ids))

	factoryDepends := planFactoryDependencies(entity)
	factoryMeta := &ResourceMeta{
		HashOffset:             1367,
		HashReferenceData:      append(append([]ResourceDependency{}, factoryDepends...), extraDepsToResourceDependencies(entity.ExtraFactoryDependencies)...),
		HashReferenceTableSize: 193,
		HashResourceType:       "TEMP",
		HashSize:               2147484657,
		HashSizeFinal:          2377,
		HashSizeInMemory:       1525,
		HashSizeInVideoMemory:  4294967295,
		HashValue:              entity.Factory,
	}

	blueprintDepends := planBlueprintDependencies(entity)
	blueprintMeta := &ResourceMeta{
		HashOffset:             1367,
		HashReferenceData:      append(append([]ResourceDependency{}, blueprintDepends...), extraDepsToResourceDependencies(entity.ExtraBlueprintDependencies)...),
		HashReferenceTableSize: 193,
		HashResourceType:       "TBLU",
		HashSize:               2147484657,
		HashSizeFinal:          2377,
		HashSizeInMemory:       1525,
		HashSizeInVideoMemory:  4294967295,
		HashValue:              entity.Blueprint,
	}

	factoryDepIndex := dependencyIndex(factoryMeta.HashReferenceData)
	blueprintDepIndex := dependencyIndex(blueprintMeta.HashReferenceData)

	rootIndex, ok := idToIndex[entity.RootEntity]
	if !ok {
		return nil, nil, nil, nil, newErr(UnknownEntityID, "root entity %s was non-existent", entity.RootEntity)
	}

	factory := &RTFactory{
		SubType:                           subType,
		RootEntityIndex:                   rootIndex,
		ExternalSceneTypeIndicesInResourceHeader: sequentialIndices(1, len(entity.ExternalScenes)),
	}

	propertyOverrides, err := buildFactoryPropertyOverrides(entity, ctx, factoryDepIndex)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	factory.PropertyOverrides = propertyOverrides

	factorySubs, err := buildFactorySubEntities(entity, ctx, factoryDepIndex, o.Parallel)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	factory.SubEntities = factorySubs

	blueprint := &RTBlueprint{
		SubType:         subType,
		RootEntityIndex: rootIndex,
		ExternalSceneTypeIndicesInResourceHeader: sequentialIndices(0, len(entity.ExternalScenes)),
	}

	blueprintSubs, err := buildBlueprintSubEntities(entity, ctx, blueprintDepIndex, idToIndex, o.Parallel)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	blueprint.SubEntities = blueprintSubs

	if err := fillRTSubsets(entity, blueprint, idToIndex, ids); err != nil {
		return nil, nil, nil, nil, err
	}

	overrideDeletes, err := convertRefsToRT(entity.OverrideDeletes, ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	blueprint.OverrideDeletes = overrideDeletes

	pinConnections, err := buildLocalPinTable(entity, ids, idToIndex, func(sub *SubEntity) PinMap { return sub.Events })
	if err != nil {
		return nil, nil, nil, nil, err
	}
	blueprint.PinConnections = pinConnections

	explicitOverrides, err := buildExplicitPinConnectionOverrides(entity, ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	externalEventOverrides, err := buildExternalPinTable(entity, ids, ctx, func(sub *SubEntity) PinMap { return sub.Events })
	if err != nil {
		return nil, nil, nil, nil, err
	}
	blueprint.PinConnectionOverrides = append(explicitOverrides, externalEventOverrides...)

	overrideDeletesPins, err := buildPinConnectionOverrideDeletes(entity, ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	blueprint.PinConnectionOverrideDeletes = overrideDeletesPins

	inputForwardings, err := buildLocalPinTable(entity, ids, idToIndex, func(sub *SubEntity) PinMap { return sub.InputCopying })
	if err != nil {
		return nil, nil, nil, nil, err
	}
	blueprint.InputPinForwardings = inputForwardings

	outputForwardings, err := buildLocalPinTable(entity, ids, idToIndex, func(sub *SubEntity) PinMap { return sub.OutputCopying })
	if err != nil {
		return nil, nil, nil, nil, err
	}
	blueprint.OutputPinForwardings = outputForwardings

	return factory, factoryMeta, blueprint, blueprintMeta, nil
}

func sequentialIndices(start, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func extraDepsToResourceDependencies(extra []ResourceReference) []ResourceDependency {
	out := make([]ResourceDependency, len(extra))
	for i, e := range extra {
		flag := "1F"
		if e.Flag != nil {
			flag = *e.Flag
		}
		out[i] = ResourceDependency{Hash: e.Resource, Flag: flag}
	}
	return out
}

func buildFactoryPropertyOverrides(entity *Entity, ctx rtWriteContext, depIndex map[string]int) ([]SEntityTemplatePropertyOverride, error) {
	var out []SEntityTemplatePropertyOverride
	for _, po := range entity.PropertyOverrides {
		for _, owner := range po.Entities {
			rtOwner, err := convertQNReferenceToRT(owner, ctx)
			if err != nil {
				return nil, err
			}
			var propErr error
			po.Properties.Range(func(name string, prop OverriddenProperty) bool {
				rtProp, err := convertQNPropertyToRT(name, Property{Type: prop.Type, Value: prop.Value}, ctx, depIndex)
				if err != nil {
					propErr = err
					return false
				}
				out = append(out, SEntityTemplatePropertyOverride{PropertyOwner: rtOwner, PropertyValue: rtProp})
				return true
			})
			if propErr != nil {
				return nil, propErr
			}
		}
	}
	return out, nil
}

func buildFactorySubEntities(entity *Entity, ctx rtWriteContext, depIndex map[string]int, parallel bool) ([]STemplateFactorySubEntity, error) {
	ids := entity.Entities.Keys()
	return parallelMap(ids, parallel, func(_ int, id EntityID) (STemplateFactorySubEntity, error) {
		return buildOneFactorySubEntity(entity, ctx, depIndex, id)
	})
}

func buildOneFactorySubEntity(entity *Entity, ctx rtWriteContext, depIndex map[string]int, id EntityID) (STemplateFactorySubEntity, error) {
	sub, _ := entity.Entities.Get(id)

	parent, err := convertQNReferenceToRT(sub.Parent, ctx)
	if err != nil {
		return STemplateFactorySubEntity{}, err
	}
	typeIdx, ok := depIndex[sub.Factory]
	if !ok {
		return STemplateFactorySubEntity{}, newErr(InvalidReference, "sub-entity %s referred to unlisted factory dependency %q", id, sub.Factory)
	}

	var propValues, postInitValues []SEntityTemplateProperty
	var propErr error
	sub.Properties.Range(func(name string, prop Property) bool {
		rtProp, err := convertQNPropertyToRT(name, prop, ctx, depIndex)
		if err != nil {
			propErr = err
			return false
		}
		if prop.PostInit {
			postInitValues = append(postInitValues, rtProp)
		} else {
			propValues = append(propValues, rtProp)
		}
		return true
	})
	if propErr != nil {
		return STemplateFactorySubEntity{}, propErr
	}

	var platformValues []SEntityTemplatePlatformSpecificProperty
	sub.PlatformSpecificProperties.Range(func(platform string, props *OrderedMap[Property]) bool {
		props.Range(func(name string, prop Property) bool {
			rtProp, err := convertQNPropertyToRT(name, prop, ctx, depIndex)
			if err != nil {
				propErr = err
				return false
			}
			platformValues = append(platformValues, SEntityTemplatePlatformSpecificProperty{
				Platform:      platform,
				PostInit:      prop.PostInit,
				PropertyValue: rtProp,
			})
			return true
		})
		return propErr == nil
	})
	if propErr != nil {
		return STemplateFactorySubEntity{}, propErr
	}

	return STemplateFactorySubEntity{
		LogicalParent:                  parent,
		EntityTypeResourceIndex:        typeIdx,
		PropertyValues:                 propValues,
		PostInitPropertyValues:         postInitValues,
		PlatformSpecificPropertyValues: platformValues,
	}, nil
}

func buildBlueprintSubEntities(entity *Entity, ctx rtWriteContext, depIndex map[string]int, idToIndex map[EntityID]int, parallel bool) ([]STemplateBlueprintSubEntity, error) {
	ids := entity.Entities.Keys()
	return parallelMap(ids, parallel, func(_ int, id EntityID) (STemplateBlueprintSubEntity, error) {
		return buildOneBlueprintSubEntity(entity, ctx, depIndex, idToIndex, id)
	})
}

func buildOneBlueprintSubEntity(entity *Entity, ctx rtWriteContext, depIndex map[string]int, idToIndex map[EntityID]int, id EntityID) (STemplateBlueprintSubEntity, error) {
	sub, _ := entity.Entities.Get(id)

	parent, err := convertQNReferenceToRT(sub.Parent, ctx)
	if err != nil {
		return STemplateBlueprintSubEntity{}, err
	}
	typeIdx, ok := depIndex[sub.Blueprint]
	if !ok {
		return STemplateBlueprintSubEntity{}, newErr(InvalidReference, "sub-entity %s referred to unlisted blueprint dependency %q", id, sub.Blueprint)
	}

	var aliases []SEntityTemplatePropertyAlias
	var aliasErr error
	sub.PropertyAliases.Range(func(aliasedName string, list []PropertyAlias) bool {
		for _, alias := range list {
			shortID, ok := alias.OriginalEntity.ShortID()
			if !ok {
				aliasErr = newErr(InvalidReference, "property alias on %s must reference a local entity", id)
				return false
			}
			targetIdx, ok := idToIndex[shortID]
			if !ok {
				aliasErr = newErr(UnknownEntityID, "property alias on %s referred to unknown entity %s", id, shortID)
				return false
			}
			aliases = append(aliases, SEntityTemplatePropertyAlias{
				SAliasName:    alias.OriginalProperty,
				EntityID:      targetIdx,
				SPropertyName: aliasedName,
			})
		}
		return true
	})
	if aliasErr != nil {
		return STemplateBlueprintSubEntity{}, aliasErr
	}

	var exposedEntities []SEntityTemplateExposedEntity
	var exposedErr error
	sub.ExposedEntities.Range(func(name string, exposed ExposedEntity) bool {
		targets := make([]SEntityTemplateReference, len(exposed.RefersTo))
		for i, t := range exposed.RefersTo {
			rtRef, err := convertQNReferenceToRT(t, ctx)
			if err != nil {
				exposedErr = err
				return false
			}
			targets[i] = rtRef
		}
		exposedEntities = append(exposedEntities, SEntityTemplateExposedEntity{
			SName:    name,
			BIsArray: exposed.IsArray,
			ATargets: targets,
		})
		return true
	})
	if exposedErr != nil {
		return STemplateBlueprintSubEntity{}, exposedErr
	}

	var exposedInterfaces []indexedName
	var ifaceErr error
	sub.ExposedInterfaces.Range(func(name string, implementor EntityID) bool {
		idx, ok := idToIndex[implementor]
		if !ok {
			ifaceErr = newErr(UnknownEntityID, "exposed interface on %s referred to unknown entity %s", id, implementor)
			return false
		}
		exposedInterfaces = append(exposedInterfaces, indexedName{Name: name, Index: idx})
		return true
	})
	if ifaceErr != nil {
		return STemplateBlueprintSubEntity{}, ifaceErr
	}

	return STemplateBlueprintSubEntity{
		LogicalParent:           parent,
		EntityTypeResourceIndex: typeIdx,
		EntityID:                uint64(id),
		EditorOnly:              sub.EditorOnly,
		EntityName:              sub.Name,
		PropertyAliases:         aliases,
		ExposedEntities:         exposedEntities,
		ExposedInterfaces:       exposedInterfaces,
	}, nil
}

// fillRTSubsets inverts QN's member-stores-owners subset representation
// back onto RT's owner-stores-members form (spec.md §4.5 subset pass).
func fillRTSubsets(entity *Entity, blueprint *RTBlueprint, idToIndex map[EntityID]int, ids []EntityID) error {
	for memberIdx, memberID := range ids {
		member, _ := entity.Entities.Get(memberID)
		var rangeErr error
		member.Subsets.Range(func(subsetName string, owners []EntityID) bool {
			for _, ownerID := range owners {
				ownerIdx, ok := idToIndex[ownerID]
				if !ok {
					rangeErr = newErr(UnknownEntityID, "entity subset on %s referred to unknown owner %s", memberID, ownerID)
					return false
				}
				owner := &blueprint.SubEntities[ownerIdx]
				found := false
				for i := range owner.EntitySubsets {
					if owner.EntitySubsets[i].Name == subsetName {
						owner.EntitySubsets[i].Subset.Entities = append(owner.EntitySubsets[i].Subset.Entities, memberIdx)
						found = true
						break
					}
				}
				if !found {
					owner.EntitySubsets = append(owner.EntitySubsets, namedSubset{
						Name:   subsetName,
						Subset: SEntityTemplateEntitySubset{Entities: []int{memberIdx}},
					})
				}
			}
			return true
		})
		if rangeErr != nil {
			return rangeErr
		}
	}
	return nil
}

func convertRefsToRT(refs []Ref, ctx rtWriteContext) ([]SEntityTemplateReference, error) {
	out := make([]SEntityTemplateReference, len(refs))
	for i, ref := range refs {
		rtRef, err := convertQNReferenceToRT(ref, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = rtRef
	}
	return out, nil
}

func pinValueToRT(target RefMaybeConstantValue) SEntityTemplatePropertyValue {
	if value, ok := target.Constant(); ok {
		return SEntityTemplatePropertyValue{PropertyType: value.Type, PropertyValue: value.Value}
	}
	return voidPropertyValue
}

// buildLocalPinTable implements spec.md §4.5's local-only pin-table
// construction shared by pin_connections, input_pin_forwardings and
// output_pin_forwardings: only Short-ref targets participate.
func buildLocalPinTable(entity *Entity, ids []EntityID, idToIndex map[EntityID]int, pins func(*SubEntity) PinMap) ([]SEntityTemplatePinConnection, error) {
	var out []SEntityTemplatePinConnection
	for fromIdx, fromID := range ids {
		sub, _ := entity.Entities.Get(fromID)
		table := pins(sub)
		if table == nil {
			continue
		}
		var rangeErr error
		table.Range(func(fromPin string, targets *OrderedMap[[]RefMaybeConstantValue]) bool {
			targets.Range(func(toPin string, list []RefMaybeConstantValue) bool {
				for _, target := range list {
					shortID, ok := target.Ref().ShortID()
					if !ok {
						continue
					}
					toIdx, ok := idToIndex[shortID]
					if !ok {
						rangeErr = newErr(UnknownEntityID, "pin connection on %s referred to unknown entity %s", fromID, shortID)
						return false
					}
					out = append(out, SEntityTemplatePinConnection{
						FromID:           fromIdx,
						ToID:             toIdx,
						FromPinName:      fromPin,
						ToPinName:        toPin,
						ConstantPinValue: pinValueToRT(target),
					})
				}
				return true
			})
			return rangeErr == nil
		})
		if rangeErr != nil {
			return nil, rangeErr
		}
	}
	return out, nil
}

// buildExternalPinTable mirrors buildLocalPinTable but emits full
// reference pin-connection-override rows for any Full-ref target,
// folding external-scene events back into the dedicated table.
func buildExternalPinTable(entity *Entity, ids []EntityID, ctx rtWriteContext, pins func(*SubEntity) PinMap) ([]SExternalEntityTemplatePinConnection, error) {
	var out []SExternalEntityTemplatePinConnection
	for _, fromID := range ids {
		sub, _ := entity.Entities.Get(fromID)
		table := pins(sub)
		if table == nil {
			continue
		}
		var rangeErr error
		table.Range(func(fromPin string, targets *OrderedMap[[]RefMaybeConstantValue]) bool {
			targets.Range(func(toPin string, list []RefMaybeConstantValue) bool {
				for _, target := range list {
					if !target.Ref().IsFull() {
						continue
					}
					fromRT, err := convertQNReferenceToRT(ShortRef(fromID), ctx)
					if err != nil {
						rangeErr = err
						return false
					}
					toRT, err := convertQNReferenceToRT(target.Ref(), ctx)
					if err != nil {
						rangeErr = err
						return false
					}
					out = append(out, SExternalEntityTemplatePinConnection{
						FromEntity:       fromRT,
						ToEntity:         toRT,
						FromPinName:      fromPin,
						ToPinName:        toPin,
						ConstantPinValue: pinValueToRT(target),
					})
				}
				return true
			})
			return rangeErr == nil
		})
		if rangeErr != nil {
			return nil, rangeErr
		}
	}
	return out, nil
}

func buildExplicitPinConnectionOverrides(entity *Entity, ctx rtWriteContext) ([]SExternalEntityTemplatePinConnection, error) {
	out := make([]SExternalEntityTemplatePinConnection, len(entity.PinConnectionOverrides))
	for i, pco := range entity.PinConnectionOverrides {
		from, err := convertQNReferenceToRT(pco.FromEntity, ctx)
		if err != nil {
			return nil, err
		}
		to, err := convertQNReferenceToRT(pco.ToEntity, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = SExternalEntityTemplatePinConnection{
			FromEntity:       from,
			ToEntity:         to,
			FromPinName:      pco.FromPin,
			ToPinName:        pco.ToPin,
			ConstantPinValue: simplePropertyToRT(pco.Value),
		}
	}
	return out, nil
}

func buildPinConnectionOverrideDeletes(entity *Entity, ctx rtWriteContext) ([]SExternalEntityTemplatePinConnection, error) {
	out := make([]SExternalEntityTemplatePinConnection, len(entity.PinConnectionOverrideDeletes))
	for i, d := range entity.PinConnectionOverrideDeletes {
		from, err := convertQNReferenceToRT(d.FromEntity, ctx)
		if err != nil {
			return nil, err
		}
		to, err := convertQNReferenceToRT(d.ToEntity, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = SExternalEntityTemplatePinConnection{
			FromEntity:       from,
			ToEntity:         to,
			FromPinName:      d.FromPin,
			ToPinName:        d.ToPin,
			ConstantPinValue: simplePropertyToRT(d.Value),
		}
	}
	return out, nil
}

func simplePropertyToRT(v *SimpleProperty) SEntityTemplatePropertyValue {
	if v == nil {
		return voidPropertyValue
	}
	return SEntityTemplatePropertyValue{PropertyType: v.Type, PropertyValue: v.Value}
}
