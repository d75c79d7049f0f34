package core

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// RawValue is the untyped value shape produced by the build-file
// evaluator's interpreter: string, float64, bool, []interface{}, or
// map[string]interface{}. The Extractor is responsible for coercing
// these into typed PropValues per the builder's signature.
type RawValue = interface{}

// Call is a single builder invocation extracted from a build file:
// a builder name plus positional and keyword arguments in the DSL's
// native untyped form.
type Call struct {
	BuilderName string
	Positional  []RawValue
	Keyword     map[string]RawValue
	File        string
	Line        int
}

// Extractor binds and validates builder calls against the
// BuilderRegistry, normalizes typed props, and invokes manipulate_target
// hooks (§4.3).
type Extractor struct {
	Registry *BuilderRegistry
}

// NewExtractor returns an Extractor bound to the given registry.
func NewExtractor(reg *BuilderRegistry) *Extractor {
	return &Extractor{Registry: reg}
}

// Extract binds call's arguments against its builder's signature and
// returns a normalized, hook-applied TargetSpec ready for graph
// registration.
func (e *Extractor) Extract(call Call, ctx ResolveContext) (*TargetSpec, error) {
	sig, present := e.Registry.Signature(call.BuilderName)
	if !present {
		return nil, NewParseError(call.File, call.Line, "unknown builder %q", call.BuilderName)
	}
	if len(call.Positional) > len(sig.Params) {
		return nil, NewParseError(call.File, call.Line, "too many positional arguments to %q (got %d, want at most %d)",
			call.BuilderName, len(call.Positional), len(sig.Params))
	}

	bound := make(map[string]RawValue, len(sig.Params))
	for i, v := range call.Positional {
		bound[sig.Params[i].Name] = v
	}
	for name, v := range call.Keyword {
		param, present := sig.ParamByName(name)
		if !present {
			return nil, NewParseError(call.File, call.Line, "unknown keyword argument %q to %q", name, call.BuilderName)
		}
		if _, dup := bound[param.Name]; dup {
			return nil, NewParseError(call.File, call.Line, "duplicate argument %q to %q", name, call.BuilderName)
		}
		bound[param.Name] = v
	}

	props := PropMap{}
	for _, param := range sig.Params {
		raw, present := bound[param.Name]
		if !present {
			if !param.HasDefault() {
				return nil, NewParseError(call.File, call.Line, "missing required argument %q to %q", param.Name, call.BuilderName)
			}
			props[param.Name] = *param.Default
			continue
		}
		value, err := coerce(param.Type, raw, ctx, param.Name, call)
		if err != nil {
			return nil, err
		}
		props[param.Name] = value
	}

	nameProp := props["name"]
	name, err := normalizeModule(ctx.CurrentModule, nameProp.Str)
	if err != nil {
		return nil, err
	}

	spec := &TargetSpec{
		Name:        name,
		BuilderName: call.BuilderName,
		Props:       props,
		Cachable:    sig.Cachable,
	}
	if deps, present := props["deps"]; present {
		for _, ref := range deps.Refs {
			spec.AddDep(ref)
		}
	}
	delete(spec.Props, "name")
	// deps is promoted onto spec.Deps above; spec.SortedDeps() (used
	// everywhere a dep list needs to affect a hash or be printed) is
	// already declaration-order-independent, so leaving a second,
	// order-sensitive copy of the same refs in Props would let a
	// deps-list reordering change canonicalValue's self hash for no
	// reason. Drop it the same way "name" is dropped.
	delete(spec.Props, "deps")

	for _, hook := range e.Registry.Hooks(call.BuilderName) {
		if err := hook(spec); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

// coerce normalizes a single raw value according to its declared type.
func coerce(t PropType, raw RawValue, ctx ResolveContext, paramName string, call Call) (PropValue, error) {
	switch t {
	case TypeTargetName:
		s, ok := raw.(string)
		if !ok {
			return PropValue{}, NewParseError(call.File, call.Line, "%s: expected a name string", paramName)
		}
		return PropValue{Type: t, Str: s}, nil

	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return PropValue{}, NewParseError(call.File, call.Line, "%s: expected a string", paramName)
		}
		return PropValue{Type: t, Str: s}, nil

	case TypeNumber:
		n, ok := raw.(float64)
		if !ok {
			return PropValue{}, NewParseError(call.File, call.Line, "%s: expected a number", paramName)
		}
		return PropValue{Type: t, Num: n}, nil

	case TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return PropValue{}, NewParseError(call.File, call.Line, "%s: expected a boolean", paramName)
		}
		return PropValue{Type: t, Bool: b}, nil

	case TypeRawList, TypeStringList:
		items := asList(raw)
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, ok := it.(string)
			if !ok {
				return PropValue{}, NewParseError(call.File, call.Line, "%s: expected a list of strings", paramName)
			}
			out = append(out, s)
		}
		return PropValue{Type: t, List: out}, nil

	case TypeTargetRef:
		items := asList(raw)
		if len(items) != 1 {
			return PropValue{}, NewParseError(call.File, call.Line, "%s: expected a single target reference", paramName)
		}
		ref, err := refOf(items[0], ctx, call)
		if err != nil {
			return PropValue{}, err
		}
		return PropValue{Type: t, Refs: []QualifiedName{ref}}, nil

	case TypeTargetRefList:
		items := asList(raw)
		refs := make([]QualifiedName, 0, len(items))
		for _, it := range items {
			ref, err := refOf(it, ctx, call)
			if err != nil {
				return PropValue{}, err
			}
			refs = append(refs, ref)
		}
		return PropValue{Type: t, Refs: refs}, nil

	case TypeFilePath:
		items := asList(raw)
		if len(items) != 1 {
			return PropValue{}, NewParseError(call.File, call.Line, "%s: expected a single file path", paramName)
		}
		p, err := normalizeFilePath(items[0], ctx, call)
		if err != nil {
			return PropValue{}, err
		}
		return PropValue{Type: t, Str: p}, nil

	case TypeFilePathList:
		items := asList(raw)
		out := make([]string, 0, len(items))
		for _, it := range items {
			p, err := normalizeFilePath(it, ctx, call)
			if err != nil {
				return PropValue{}, err
			}
			out = append(out, p)
		}
		return PropValue{Type: t, List: out}, nil

	case TypeUntyped:
		return coerceUntyped(raw), nil

	default:
		return PropValue{}, fmt.Errorf("unknown prop type %v", t)
	}
}

func coerceUntyped(raw RawValue) PropValue {
	switch v := raw.(type) {
	case map[string]interface{}:
		mapping := make(map[string]PropValue, len(v))
		for k, val := range v {
			mapping[k] = coerceUntyped(val)
		}
		return PropValue{Type: TypeUntyped, Mapping: mapping}
	case []interface{}:
		list := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return PropValue{Type: TypeUntyped, List: list}
	case string:
		return PropValue{Type: TypeUntyped, Str: v}
	case bool:
		return PropValue{Type: TypeUntyped, Bool: v}
	case float64:
		return PropValue{Type: TypeUntyped, Num: v}
	default:
		return PropValue{Type: TypeUntyped}
	}
}

// asList coerces a single value into a singleton list, per §4.3's "list
// coercion (single value -> singleton)" rule.
func asList(raw RawValue) []interface{} {
	if list, ok := raw.([]interface{}); ok {
		return list
	}
	if raw == nil {
		return nil
	}
	return []interface{}{raw}
}

func refOf(raw interface{}, ctx ResolveContext, call Call) (QualifiedName, error) {
	s, ok := raw.(string)
	if !ok {
		return QualifiedName{}, NewParseError(call.File, call.Line, "expected a target reference string, got %T", raw)
	}
	return ResolveRef(s, ctx)
}

// normalizeFilePath applies §4.3's rule: paths starting with "//" are
// project-root-anchored, others are build-module-anchored; paths that
// normalize outside the sandbox are rejected.
func normalizeFilePath(raw interface{}, ctx ResolveContext, call Call) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", NewParseError(call.File, call.Line, "expected a file path string, got %T", raw)
	}
	var joined string
	if strings.HasPrefix(s, "//") {
		joined = strings.TrimPrefix(s, "//")
	} else {
		joined = path.Join(ctx.CurrentModule, s)
	}
	cleaned := path.Clean(joined)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", NewError(EscapesSandbox, "path %q escapes the project root", s)
	}
	if cleaned == "." {
		cleaned = ""
	}
	return cleaned, nil
}

// SortedBuilderNames is a small helper used by `list-builders` and tests.
func SortedBuilderNames(reg *BuilderRegistry) []string {
	names := reg.Names()
	sort.Strings(names)
	return names
}
