package parse

import "fmt"

// parser turns a token stream into a sequence of top-level builder-call
// statements. The language is deliberately tiny (§4.2 Design Notes
// option (c)): a build file is just zero or more `name(args...)` calls
// at the top level, nothing else.
type parser struct {
	lex  *lexer
	cur  token
	file string
}

func newParser(src, file string) (*parser, error) {
	p := &parser{lex: newLexer(src), file: file}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d: %s", p.file, p.cur.line, fmt.Sprintf(format, args...))
}

// parseStatements parses every top-level call in the file.
func (p *parser) parseStatements() ([]statement, error) {
	var stmts []statement
	for p.cur.kind != tokEOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *parser) parseStatement() (statement, error) {
	if p.cur.kind != tokIdent {
		return statement{}, p.errorf("expected a builder call, got %q", p.cur.text)
	}
	name := p.cur.text
	line := p.cur.line
	if err := p.advance(); err != nil {
		return statement{}, err
	}
	if p.cur.kind != tokLParen {
		return statement{}, p.errorf("expected '(' after %s", name)
	}
	positional, keyword, err := p.parseArgs()
	if err != nil {
		return statement{}, err
	}
	return statement{builderName: name, positional: positional, keyword: keyword, line: line}, nil
}

// parseArgs parses a parenthesized, comma-separated argument list,
// shared between top-level statements and nested calls like glob(...).
// Assumes p.cur is tokLParen on entry; consumes through the matching ')'.
func (p *parser) parseArgs() ([]expr, map[string]expr, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, nil, err
	}
	var positional []expr
	keyword := map[string]expr{}
	for p.cur.kind != tokRParen {
		if p.cur.kind == tokIdent {
			name := p.cur.text
			save := p.cur
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
			if p.cur.kind == tokEquals {
				if err := p.advance(); err != nil {
					return nil, nil, err
				}
				val, err := p.parseExpr()
				if err != nil {
					return nil, nil, err
				}
				if _, dup := keyword[name]; dup {
					return nil, nil, p.errorf("duplicate keyword argument %q", name)
				}
				keyword[name] = val
			} else {
				// It was actually a bareword expression (identifier used
				// as a value, e.g. a bool-like constant); restore and
				// parse it as a full expression instead.
				val, err := p.parseExprFromIdent(save)
				if err != nil {
					return nil, nil, err
				}
				positional = append(positional, val)
			}
		} else {
			val, err := p.parseExpr()
			if err != nil {
				return nil, nil, err
			}
			positional = append(positional, val)
		}
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
			continue
		}
		break
	}
	if p.cur.kind != tokRParen {
		return nil, nil, p.errorf("expected ')'")
	}
	if err := p.advance(); err != nil { // consume ')'
		return nil, nil, err
	}
	return positional, keyword, nil
}

// parseExprFromIdent builds an expression for an identifier token
// already consumed (True/False, or a call like glob(...)); any other bare
// identifier, None included, is an error.
func (p *parser) parseExprFromIdent(id token) (expr, error) {
	switch id.text {
	case "True", "true":
		return boolLit{value: true, line: id.line}, nil
	case "False", "false":
		return boolLit{value: false, line: id.line}, nil
	}
	if p.cur.kind == tokLParen {
		positional, keyword, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return callExpr{name: id.text, positional: positional, keyword: keyword, line: id.line}, nil
	}
	return nil, p.errorf("unexpected identifier %q", id.text)
}

func (p *parser) parseExpr() (expr, error) {
	switch p.cur.kind {
	case tokString:
		v := p.cur.text
		line := p.cur.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		return stringLit{value: v, line: line}, nil
	case tokNumber:
		v := p.cur.text
		line := p.cur.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
			return nil, p.errorf("invalid number %q", v)
		}
		return numberLit{value: f, line: line}, nil
	case tokLBracket:
		return p.parseList()
	case tokLBrace:
		return p.parseDict()
	case tokIdent:
		id := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseExprFromIdent(id)
	default:
		return nil, p.errorf("unexpected token in expression")
	}
}

func (p *parser) parseList() (expr, error) {
	line := p.cur.line
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	var items []expr
	for p.cur.kind != tokRBracket {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.kind != tokRBracket {
		return nil, p.errorf("expected ']'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return listLit{items: items, line: line}, nil
}

func (p *parser) parseDict() (expr, error) {
	line := p.cur.line
	if err := p.advance(); err != nil { // consume '{'
		return nil, err
	}
	var keys []string
	var values []expr
	for p.cur.kind != tokRBrace {
		if p.cur.kind != tokString {
			return nil, p.errorf("dict keys must be string literals")
		}
		key := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind != tokColon {
			return nil, p.errorf("expected ':' in dict literal")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		values = append(values, val)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.kind != tokRBrace {
		return nil, p.errorf("expected '}'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return dictLit{keys: keys, values: values, line: line}, nil
}
