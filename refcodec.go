package quickentity

// rtReadContext bundles the read-side inputs the Identity & Reference
// Codec needs for RT->QN conversion (spec.md §4.1).
type rtReadContext struct {
	Factory     *RTFactory
	FactoryMeta *ResourceMeta
	Blueprint   *RTBlueprint
}

// convertRTReferenceToQN implements spec.md §4.1 RT->QN.
func convertRTReferenceToQN(ref SEntityTemplateReference, ctx rtReadContext) (Ref, error) {
	if ref.ExposedEntity != "" || ref.ExternalSceneIndex != -1 {
		id, err := rtReferenceEntityID(ref, ctx.Blueprint)
		if err != nil {
			return Ref{}, err
		}

		var externalScene *string
		if ref.ExternalSceneIndex >= 0 {
			if int(ref.ExternalSceneIndex) >= len(ctx.Factory.ExternalSceneTypeIndicesInResourceHeader) {
				return Ref{}, newErr(IndexOutOfRange, "external_scene_index %d out of range", ref.ExternalSceneIndex)
			}
			depIdx := ctx.Factory.ExternalSceneTypeIndicesInResourceHeader[ref.ExternalSceneIndex]
			if depIdx < 0 || depIdx >= len(ctx.FactoryMeta.HashReferenceData) {
				return Ref{}, newErr(IndexOutOfRange, "external scene dependency index %d out of range", depIdx)
			}
			hash := ctx.FactoryMeta.HashReferenceData[depIdx].Hash
			externalScene = &hash
		}

		var exposedEntity *string
		if ref.ExposedEntity != "" {
			v := ref.ExposedEntity
			exposedEntity = &v
		}

		return FullRefOf(id, externalScene, exposedEntity), nil
	}

	switch {
	case ref.EntityIndex == -1:
		return NullRef(), nil
	case ref.EntityIndex >= 0:
		if int(ref.EntityIndex) >= len(ctx.Blueprint.SubEntities) {
			return Ref{}, newErr(IndexOutOfRange, "entity_index %d out of range", ref.EntityIndex)
		}
		return ShortRef(EntityID(ctx.Blueprint.SubEntities[ref.EntityIndex].EntityID)), nil
	default:
		return Ref{}, newErr(InvalidReference, "short reference had entity_index %d", ref.EntityIndex)
	}
}

func rtReferenceEntityID(ref SEntityTemplateReference, blueprint *RTBlueprint) (EntityID, error) {
	switch {
	case ref.EntityIndex == -2:
		return EntityID(ref.EntityID), nil
	case ref.EntityIndex >= 0:
		if int(ref.EntityIndex) >= len(blueprint.SubEntities) {
			return 0, newErr(IndexOutOfRange, "entity_index %d out of range", ref.EntityIndex)
		}
		return EntityID(blueprint.SubEntities[ref.EntityIndex].EntityID), nil
	default:
		return 0, newErr(InvalidReference, "full reference had entity_index %d with no external scene/exposed entity basis", ref.EntityIndex)
	}
}

// rtWriteContext bundles the write-side inputs the codec needs for
// QN->RT conversion: the local id->index map and the position of each
// external-scene hash within the document's ordered external-scene list.
type rtWriteContext struct {
	IDToIndex           map[EntityID]int
	ExternalSceneIndex  map[string]int
}

// convertQNReferenceToRT implements spec.md §4.1 QN->RT.
func convertQNReferenceToRT(ref Ref, ctx rtWriteContext) (SEntityTemplateReference, error) {
	if full, ok := ref.Full(); ok {
		if full.ExternalScene == nil {
			// Full with external_scene = None is treated as Short(Some).
			idx, ok := ctx.IDToIndex[full.EntityID]
			if !ok {
				return SEntityTemplateReference{}, newErr(UnknownEntityID, "reference to unknown entity %s", full.EntityID)
			}
			return SEntityTemplateReference{
				EntityID:           sentinelNullEntityID,
				ExternalSceneIndex: -1,
				EntityIndex:        int32(idx),
				ExposedEntity:      "",
			}, nil
		}

		sceneIdx, ok := ctx.ExternalSceneIndex[*full.ExternalScene]
		if !ok {
			return SEntityTemplateReference{}, newErr(UnknownExternalScene, "unknown external scene %q", *full.ExternalScene)
		}
		exposed := ""
		if full.ExposedEntity != nil {
			exposed = *full.ExposedEntity
		}
		return SEntityTemplateReference{
			EntityID:           uint64(full.EntityID),
			ExternalSceneIndex: int32(sceneIdx),
			EntityIndex:        -2,
			ExposedEntity:      exposed,
		}, nil
	}

	id, hasID := ref.ShortID()
	if !hasID {
		return nullRTReference(-1), nil
	}
	idx, ok := ctx.IDToIndex[id]
	if !ok {
		return SEntityTemplateReference{}, newErr(UnknownEntityID, "reference to unknown entity %s", id)
	}
	return SEntityTemplateReference{
		EntityID:           sentinelNullEntityID,
		ExternalSceneIndex: -1,
		EntityIndex:        int32(idx),
		ExposedEntity:      "",
	}, nil
}
