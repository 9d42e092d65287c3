package quickentity

import "encoding/json"

const sentinelNullDependencyIndex = 0xFFFFFFFF

// zRuntimeResourceIDRT mirrors the RT wire shape of a ZRuntimeResourceID:
// a high/low index pair into the owning resource's dependency table.
// m_IDHigh is always 0 in practice (no resource has that many
// dependencies); both fields at the sentinel mean "no resource".
type zRuntimeResourceIDRT struct {
	IDHigh uint32 `json:"m_IDHigh"`
	IDLow  uint32 `json:"m_IDLow"`
}

// convertResourceIDToQN implements spec.md §4.2 ZRuntimeResourceID
// RT->QN: resolve the dependency-table index to a hash, emitting a bare
// string when the dependency's reference flag is the default "1F" and
// an object otherwise.
func convertResourceIDToQN(raw json.RawMessage, deps []ResourceDependency) (json.RawMessage, error) {
	var v zRuntimeResourceIDRT
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, wrapErr(TypeMismatch, err, "ZRuntimeResourceID did not have a valid format")
	}
	if v.IDHigh == sentinelNullDependencyIndex && v.IDLow == sentinelNullDependencyIndex {
		return json.Marshal(nil)
	}
	if int(v.IDLow) >= len(deps) {
		return nil, newErr(IndexOutOfRange, "ZRuntimeResourceID m_IDLow %d referred to non-existent dependency", v.IDLow)
	}
	dep := deps[v.IDLow]
	if dep.Flag != "1F" {
		return json.Marshal(struct {
			Resource string `json:"resource"`
			Flag     string `json:"flag"`
		}{Resource: dep.Hash, Flag: dep.Flag})
	}
	return json.Marshal(dep.Hash)
}

// convertResourceIDToRT implements spec.md §4.2 ZRuntimeResourceID
// QN->RT: a null value, a bare hash string, or a {"resource","flag"}
// object are all resolved through the precomputed factory-dependency
// index map (built by the Dependency Planner, spec.md §4.3).
func convertResourceIDToRT(raw json.RawMessage, index map[string]int) (json.RawMessage, error) {
	var asAny any
	if err := json.Unmarshal(raw, &asAny); err != nil {
		return nil, wrapErr(TypeMismatch, err, "ZRuntimeResourceID did not have a valid format")
	}

	switch val := asAny.(type) {
	case nil:
		return json.Marshal(zRuntimeResourceIDRT{IDHigh: sentinelNullDependencyIndex, IDLow: sentinelNullDependencyIndex})
	case string:
		idx, ok := index[val]
		if !ok {
			return nil, newErr(InvalidReference, "ZRuntimeResourceID referred to unlisted dependency %q", val)
		}
		return json.Marshal(zRuntimeResourceIDRT{IDHigh: 0, IDLow: uint32(idx)})
	case map[string]any:
		hash, ok := val["resource"].(string)
		if !ok {
			return nil, newErr(TypeMismatch, "ZRuntimeResourceID object missing string \"resource\"")
		}
		idx, ok := index[hash]
		if !ok {
			return nil, newErr(InvalidReference, "ZRuntimeResourceID referred to unlisted dependency %q", hash)
		}
		return json.Marshal(zRuntimeResourceIDRT{IDHigh: 0, IDLow: uint32(idx)})
	default:
		return nil, newErr(TypeMismatch, "ZRuntimeResourceID was not of a valid type")
	}
}
