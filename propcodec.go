package quickentity

import (
	"encoding/json"
	"strconv"
	"strings"
)

// convertStringPropertyNameToRTID implements spec.md §4.2's property-ID
// encoding rule: a QN property key that parses as a u64 AND whose hex
// rendering is 7 or 8 digits is stored as a pre-hashed integer id;
// everything else is a plain string id.
func convertStringPropertyNameToRTID(name string) PropertyID {
	if n, err := strconv.ParseUint(name, 10, 64); err == nil {
		hexLen := len(strconv.FormatUint(n, 16))
		if hexLen == 7 || hexLen == 8 {
			return PropertyID{IsInt: true, Int: n}
		}
	}
	return PropertyID{Str: name}
}

// arrayElementType strips the "TArray<" prefix and trailing ">" from an
// array property's declared type, yielding the element type name.
func arrayElementType(propType string) string {
	inner := strings.TrimPrefix(propType, "TArray<")
	return strings.TrimSuffix(inner, ">")
}

// isJSONArray reports whether raw is syntactically a JSON array, as
// opposed to e.g. a JSON null (which encoding/json happily "unmarshals"
// into a nil slice without error, unlike serde_json's is_array()).
func isJSONArray(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "[")
}

// convertRTPropertyValueToQN implements spec.md §4.2's per-type value
// dispatch for a single (non-array) RT property value.
func convertRTPropertyValueToQN(propType string, raw json.RawMessage, ctx rtReadContext, deps []ResourceDependency, lossless bool) (json.RawMessage, error) {
	switch propType {
	case "SEntityTemplateReference":
		var ref SEntityTemplateReference
		if err := json.Unmarshal(raw, &ref); err != nil {
			return nil, wrapErr(TypeMismatch, err, "SEntityTemplateReference did not have a valid format")
		}
		qnRef, err := convertRTReferenceToQN(ref, ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(qnRef)
	case "ZRuntimeResourceID":
		return convertResourceIDToQN(raw, deps)
	case "SMatrix43":
		return decomposeMatrix43(raw, lossless)
	case "ZGuid":
		return convertGuidToQN(raw)
	case "SColorRGB":
		return convertColorRGBToQN(raw)
	case "SColorRGBA":
		return convertColorRGBAToQN(raw)
	default:
		return raw, nil
	}
}

// convertRTPropertyToQN converts one RT property (possibly array-typed)
// into its QN Property, recursing element-by-element for TArray<T>
// values exactly as the element's JSON shape dictates (spec.md §4.2).
func convertRTPropertyToQN(prop SEntityTemplateProperty, postInit bool, ctx rtReadContext, deps []ResourceDependency, lossless bool) (Property, error) {
	propType := prop.Value.PropertyType

	var value json.RawMessage
	var asArray []json.RawMessage
	if isJSONArray(prop.Value.PropertyValue) && json.Unmarshal(prop.Value.PropertyValue, &asArray) == nil {
		elemType := arrayElementType(propType)
		converted := make([]json.RawMessage, len(asArray))
		for i, elem := range asArray {
			v, err := convertRTPropertyValueToQN(elemType, elem, ctx, deps, lossless)
			if err != nil {
				return Property{}, err
			}
			converted[i] = v
		}
		merged, err := json.Marshal(converted)
		if err != nil {
			return Property{}, wrapErr(TypeMismatch, err, "failed to remarshal converted array property")
		}
		value = merged
	} else {
		v, err := convertRTPropertyValueToQN(propType, prop.Value.PropertyValue, ctx, deps, lossless)
		if err != nil {
			return Property{}, err
		}
		value = v
	}

	return Property{Type: propType, Value: value, PostInit: postInit}, nil
}

// convertQNPropertyValueToRT is the QN->RT mirror of
// convertRTPropertyValueToQN, resolving ZRuntimeResourceID values
// through the dependency index the Dependency Planner has already
// built for this factory (spec.md §4.3).
func convertQNPropertyValueToRT(propType string, raw json.RawMessage, ctx rtWriteContext, depIndex map[string]int) (json.RawMessage, error) {
	switch propType {
	case "SEntityTemplateReference":
		var ref Ref
		if err := json.Unmarshal(raw, &ref); err != nil {
			return nil, wrapErr(TypeMismatch, err, "SEntityTemplateReference value did not have a valid format")
		}
		rtRef, err := convertQNReferenceToRT(ref, ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rtRef)
	case "ZRuntimeResourceID":
		return convertResourceIDToRT(raw, depIndex)
	case "SMatrix43":
		return recomposeMatrix43(raw)
	case "ZGuid":
		return convertGuidToRT(raw)
	case "SColorRGB":
		return convertColorRGBToRT(raw)
	case "SColorRGBA":
		return convertColorRGBAToRT(raw)
	default:
		return raw, nil
	}
}

// convertQNPropertyToRT converts one QN Property (declared under the
// given property name) into its RT form, recursing for array-typed
// values the same way the RT->QN direction does.
func convertQNPropertyToRT(name string, prop Property, ctx rtWriteContext, depIndex map[string]int) (SEntityTemplateProperty, error) {
	var asArray []json.RawMessage
	var value json.RawMessage
	if isJSONArray(prop.Value) && json.Unmarshal(prop.Value, &asArray) == nil {
		elemType := arrayElementType(prop.Type)
		converted := make([]json.RawMessage, len(asArray))
		for i, elem := range asArray {
			v, err := convertQNPropertyValueToRT(elemType, elem, ctx, depIndex)
			if err != nil {
				return SEntityTemplateProperty{}, err
			}
			converted[i] = v
		}
		merged, err := json.Marshal(converted)
		if err != nil {
			return SEntityTemplateProperty{}, wrapErr(TypeMismatch, err, "failed to remarshal converted array property")
		}
		value = merged
	} else {
		v, err := convertQNPropertyValueToRT(prop.Type, prop.Value, ctx, depIndex)
		if err != nil {
			return SEntityTemplateProperty{}, err
		}
		value = v
	}

	return SEntityTemplateProperty{
		NPropertyID: convertStringPropertyNameToRTID(name),
		Value:       SEntityTemplatePropertyValue{PropertyType: prop.Type, PropertyValue: value},
	}, nil
}
