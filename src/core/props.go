package core

import "sort"

// PropType is the closed set of property types a builder signature slot
// can declare.
type PropType int

// The closed set of prop types, per §4.3.
const (
	TypeString PropType = iota
	TypeNumber
	TypeBoolean
	TypeRawList
	TypeStringList
	TypeTargetName
	TypeTargetRef
	TypeTargetRefList
	TypeFilePath
	TypeFilePathList
	TypeUntyped
)

// String implements fmt.Stringer for diagnostics.
func (t PropType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeRawList:
		return "raw-list"
	case TypeStringList:
		return "string-list"
	case TypeTargetName:
		return "target-name"
	case TypeTargetRef:
		return "target-ref"
	case TypeTargetRefList:
		return "target-ref-list"
	case TypeFilePath:
		return "file-path"
	case TypeFilePathList:
		return "file-path-list"
	default:
		return "untyped"
	}
}

// isListType returns true for types whose extracted Go value is a slice.
func (t PropType) isListType() bool {
	switch t {
	case TypeRawList, TypeStringList, TypeTargetRefList, TypeFilePathList:
		return true
	default:
		return false
	}
}

// PropValue is a typed property value, normalized per §4.3. Exactly one
// of the fields is meaningful, selected by Type.
type PropValue struct {
	Type    PropType
	Str     string
	Num     float64
	Bool    bool
	List    []string        // raw-list / string-list / file-path-list, after normalization
	Refs    []QualifiedName // target-ref-list (or single-element for target-ref)
	Mapping map[string]PropValue
}

// PropMap is a canonicalizable mapping from property name to typed value.
type PropMap map[string]PropValue

// SortedKeys returns the map's keys in sorted order, used everywhere a
// canonical (hash- or JSON-stable) traversal order is needed.
func (m PropMap) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Canonical renders m into a JSON-friendly value per prop type, for
// target.json's "props (sorted)" key (§6.4). Map key order doesn't need
// handling here: encoding/json already sorts string map keys on marshal.
func (m PropMap) Canonical() map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v.canonicalJSON()
	}
	return out
}

func (v PropValue) canonicalJSON() interface{} {
	switch v.Type {
	case TypeString, TypeTargetName, TypeFilePath:
		return v.Str
	case TypeNumber:
		return v.Num
	case TypeBoolean:
		return v.Bool
	case TypeRawList, TypeStringList, TypeFilePathList:
		return v.List
	case TypeTargetRef, TypeTargetRefList:
		refs := make([]string, len(v.Refs))
		for i, r := range v.Refs {
			refs[i] = r.String()
		}
		return refs
	case TypeUntyped:
		if v.Mapping != nil {
			mapping := make(map[string]interface{}, len(v.Mapping))
			for k, vv := range v.Mapping {
				mapping[k] = vv.canonicalJSON()
			}
			return mapping
		}
		if v.List != nil {
			return v.List
		}
		if v.Str != "" {
			return v.Str
		}
		return v.Bool
	default:
		return nil
	}
}

// Clone returns a deep-enough copy of the map suitable for passing to a
// manipulate_target hook without letting it alias the original slices.
func (m PropMap) Clone() PropMap {
	out := make(PropMap, len(m))
	for k, v := range m {
		if v.List != nil {
			l := make([]string, len(v.List))
			copy(l, v.List)
			v.List = l
		}
		if v.Refs != nil {
			r := make([]QualifiedName, len(v.Refs))
			copy(r, v.Refs)
			v.Refs = r
		}
		out[k] = v
	}
	return out
}
