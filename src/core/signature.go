package core

// ParamSpec describes a single slot in a builder signature.
type ParamSpec struct {
	Name    string
	Type    PropType
	Default *PropValue // nil means required (no default)
}

// HasDefault returns whether this parameter has a default value.
func (p ParamSpec) HasDefault() bool {
	return p.Default != nil
}

// BuilderSignature is an ordered list of parameters. The first parameter
// is always "name" of type TypeTargetName with no default; once a
// default appears, every subsequent parameter must also have one.
type BuilderSignature struct {
	BuilderName string
	Params      []ParamSpec
	Cachable    bool
}

// Validate checks the structural invariants of a signature: "name" first,
// no default followed by a parameter with one, and no duplicate names.
func (s BuilderSignature) Validate() error {
	if len(s.Params) == 0 || s.Params[0].Name != "name" || s.Params[0].Type != TypeTargetName {
		return NewError(ParseError, "builder %q: first parameter must be name (target-name)", s.BuilderName)
	}
	if s.Params[0].HasDefault() {
		return NewError(ParseError, "builder %q: name parameter must not have a default", s.BuilderName)
	}
	seen := map[string]bool{}
	seenDefault := false
	for _, p := range s.Params {
		if seen[p.Name] {
			return NewError(ParseError, "builder %q: duplicate parameter name %q", s.BuilderName, p.Name)
		}
		seen[p.Name] = true
		if seenDefault && !p.HasDefault() {
			return NewError(ParseError, "builder %q: required parameter %q follows a defaulted one", s.BuilderName, p.Name)
		}
		if p.HasDefault() {
			seenDefault = true
		}
	}
	return nil
}

// ParamByName returns the ParamSpec for name, and whether it was found.
func (s BuilderSignature) ParamByName(name string) (ParamSpec, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}
