package quickentity

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// planFactoryDependencies implements spec.md §4.3's factory dependency
// table: blueprint first, then external scenes, then each sub-entity's
// factory, then every ZRuntimeResourceID/TArray<ZRuntimeResourceID>
// value reachable from sub-entity properties (incl. platform-specific)
// and property overrides, de-duplicated by first occurrence.
func planFactoryDependencies(entity *Entity) []ResourceDependency {
	var ordered []ResourceDependency
	seen := make(map[ResourceDependency]bool)
	add := func(dep ResourceDependency) {
		if dep.Hash == "" || seen[dep] {
			return
		}
		seen[dep] = true
		ordered = append(ordered, dep)
	}

	add(ResourceDependency{Hash: entity.Blueprint, Flag: "1F"})
	for _, scene := range entity.ExternalScenes {
		add(ResourceDependency{Hash: scene, Flag: "1F"})
	}

	entity.Entities.Range(func(_ EntityID, sub *SubEntity) bool {
		flag := "1F"
		if sub.FactoryFlag != nil {
			flag = *sub.FactoryFlag
		}
		add(ResourceDependency{Hash: sub.Factory, Flag: flag})
		return true
	})

	entity.Entities.Range(func(_ EntityID, sub *SubEntity) bool {
		for _, dep := range resourceIDDepsInProperties(sub.Properties) {
			add(dep)
		}
		if sub.PlatformSpecificProperties != nil {
			sub.PlatformSpecificProperties.Range(func(_ string, props *OrderedMap[Property]) bool {
				for _, dep := range resourceIDDepsInProperties(props) {
					add(dep)
				}
				return true
			})
		}
		return true
	})

	for _, override := range entity.PropertyOverrides {
		for _, dep := range resourceIDDepsInOverrideProperties(override.Properties) {
			add(dep)
		}
	}

	return ordered
}

// planBlueprintDependencies implements spec.md §4.3's blueprint
// dependency table: external scenes, then each sub-entity's blueprint.
func planBlueprintDependencies(entity *Entity) []ResourceDependency {
	var ordered []ResourceDependency
	seen := make(map[ResourceDependency]bool)
	add := func(dep ResourceDependency) {
		if dep.Hash == "" || seen[dep] {
			return
		}
		seen[dep] = true
		ordered = append(ordered, dep)
	}

	for _, scene := range entity.ExternalScenes {
		add(ResourceDependency{Hash: scene, Flag: "1F"})
	}
	entity.Entities.Range(func(_ EntityID, sub *SubEntity) bool {
		add(ResourceDependency{Hash: sub.Blueprint, Flag: "1F"})
		return true
	})

	return ordered
}

func resourceIDDepsInProperties(props *OrderedMap[Property]) []ResourceDependency {
	var out []ResourceDependency
	props.Range(func(_ string, prop Property) bool {
		out = append(out, resourceIDDepsInProperty(prop.Type, prop.Value)...)
		return true
	})
	return out
}

func resourceIDDepsInOverrideProperties(props *OrderedMap[OverriddenProperty]) []ResourceDependency {
	var out []ResourceDependency
	props.Range(func(_ string, prop OverriddenProperty) bool {
		out = append(out, resourceIDDepsInProperty(prop.Type, prop.Value)...)
		return true
	})
	return out
}

func resourceIDDepsInProperty(propType string, value json.RawMessage) []ResourceDependency {
	if value == nil || string(value) == "null" {
		return nil
	}
	switch propType {
	case "ZRuntimeResourceID":
		dep, ok := resourceIDDepFromValue(value)
		if !ok {
			return nil
		}
		return []ResourceDependency{dep}
	case "TArray<ZRuntimeResourceID>":
		var elems []json.RawMessage
		if !isJSONArray(value) || json.Unmarshal(value, &elems) != nil {
			return nil
		}
		var out []ResourceDependency
		for _, elem := range elems {
			if dep, ok := resourceIDDepFromValue(elem); ok {
				out = append(out, dep)
			}
		}
		return out
	default:
		return nil
	}
}

func resourceIDDepFromValue(raw json.RawMessage) (ResourceDependency, bool) {
	var asAny any
	if json.Unmarshal(raw, &asAny) != nil {
		return ResourceDependency{}, false
	}
	switch v := asAny.(type) {
	case string:
		return ResourceDependency{Hash: v, Flag: "1F"}, true
	case map[string]any:
		hash, _ := v["resource"].(string)
		flag, _ := v["flag"].(string)
		if hash == "" {
			return ResourceDependency{}, false
		}
		if flag == "" {
			flag = "1F"
		}
		return ResourceDependency{Hash: hash, Flag: flag}, true
	default:
		return ResourceDependency{}, false
	}
}

// dependencyAlreadyPlanned reports whether dep's hash (or, for a
// colon-qualified resource-meta hash, its plain-hash equivalent) already
// appears in the planner's output table.
func dependencyAlreadyPlanned(dep ResourceDependency, planned []ResourceDependency) bool {
	hash := dep.Hash
	if strings.Contains(hash, ":") {
		hash = md5EquivalentHash(hash)
	}
	for _, p := range planned {
		if p.Hash == hash {
			return true
		}
	}
	return false
}

// md5EquivalentHash converts a colon-qualified resource-meta hash into
// the plain-hash form a dependency table entry would carry.
func md5EquivalentHash(hash string) string {
	sum := md5.Sum([]byte(hash))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	return "00" + digest[2:16]
}

// dependencyIndex builds the hash->first-occurrence-index lookup the
// QN->RT direction uses to resolve ZRuntimeResourceID and factory/
// blueprint resource-index references against a planned table.
func dependencyIndex(deps []ResourceDependency) map[string]int {
	idx := make(map[string]int, len(deps))
	for i, dep := range deps {
		if _, ok := idx[dep.Hash]; !ok {
			idx[dep.Hash] = i
		}
	}
	return idx
}
