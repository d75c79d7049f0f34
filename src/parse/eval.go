package parse

import "fmt"

// evalExpr evaluates an expr into a core.RawValue suitable for the
// Extractor's coercion logic (string, float64, bool, []interface{},
// map[string]interface{}). baseDir resolves glob() against the build
// file's own directory.
func evalExpr(e expr, baseDir string) (interface{}, error) {
	switch v := e.(type) {
	case stringLit:
		return v.value, nil
	case numberLit:
		return v.value, nil
	case boolLit:
		return v.value, nil
	case listLit:
		out := make([]interface{}, 0, len(v.items))
		for _, item := range v.items {
			val, err := evalExpr(item, baseDir)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case dictLit:
		out := map[string]interface{}{}
		for i, key := range v.keys {
			val, err := evalExpr(v.values[i], baseDir)
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	case callExpr:
		return evalCall(v, baseDir)
	default:
		return nil, fmt.Errorf("line %d: unsupported expression", e.exprLine())
	}
}

// evalCall resolves a nested call expression. Only "glob" is a
// recognized callable; any other name is an evaluation error that the
// Evaluator reports as a ParseError (§4.2: "any error during evaluation
// is fatal").
func evalCall(c callExpr, baseDir string) (interface{}, error) {
	if c.name != "glob" {
		return nil, fmt.Errorf("line %d: unknown function %q (only glob() is supported as an expression)", c.line, c.name)
	}
	var patterns []string
	if len(c.positional) > 0 {
		list, ok := c.positional[0].(listLit)
		if !ok {
			return nil, fmt.Errorf("line %d: glob() expects a list of patterns", c.line)
		}
		for _, item := range list.items {
			s, ok := item.(stringLit)
			if !ok {
				return nil, fmt.Errorf("line %d: glob() patterns must be strings", c.line)
			}
			patterns = append(patterns, s.value)
		}
	}
	var excludes []string
	if exc, ok := c.keyword["exclude"]; ok {
		list, ok := exc.(listLit)
		if !ok {
			return nil, fmt.Errorf("line %d: glob() exclude must be a list of patterns", c.line)
		}
		for _, item := range list.items {
			s, ok := item.(stringLit)
			if !ok {
				return nil, fmt.Errorf("line %d: glob() exclude patterns must be strings", c.line)
			}
			excludes = append(excludes, s.value)
		}
	}
	return globFiles(baseDir, patterns, excludes)
}
