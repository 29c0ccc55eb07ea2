// Package parser turns CQL SELECT text into an ast.SelectStatement.
package parser

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/QuantaCQL/internal/cql/ast"
)

// Parser parses CQL SELECT statements from tokens.
type Parser struct {
	lexer    *Lexer
	current  Token
	previous Token
	errors   []error
}

// NewParser creates a new parser for the given input.
func NewParser(cql string) *Parser {
	parser := &Parser{
		lexer: NewLexer(cql),
	}
	parser.advance()
	return parser
}

// Parse parses a single SELECT statement. Errors carry the SyntaxError
// protocol code.
func Parse(cql string) (*ast.SelectStatement, error) {
	stmt, err := NewParser(cql).Parse()
	if err != nil {
		return nil, syntaxError(err)
	}
	return stmt, nil
}

// MustParse is Parse for fixtures; it panics on error.
func MustParse(cql string) *ast.SelectStatement {
	stmt, err := Parse(cql)
	if err != nil {
		panic(err)
	}
	return stmt
}

// Parse parses the statement.
func (p *Parser) Parse() (*ast.SelectStatement, error) {
	if p.check(TokenError) {
		return nil, p.error(p.current.Value)
	}
	stmt, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	p.match(TokenSemicolon)
	if !p.check(TokenEOF) {
		return nil, p.error(fmt.Sprintf("unexpected token %s", p.current))
	}
	return stmt, nil
}

func (p *Parser) parseSelect() (*ast.SelectStatement, error) {
	if !p.consume(TokenSelect, "expected SELECT") {
		return nil, p.lastError()
	}
	stmt := &ast.SelectStatement{}
	stmt.Distinct = p.match(TokenDistinct)

	if !p.match(TokenStar) {
		for {
			sel, err := p.parseRawSelector()
			if err != nil {
				return nil, err
			}
			stmt.Selectors = append(stmt.Selectors, sel)
			if !p.match(TokenComma) {
				break
			}
		}
	}

	if !p.consume(TokenFrom, "expected FROM") {
		return nil, p.lastError()
	}
	first, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if p.match(TokenDot) {
		table, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		stmt.Keyspace, stmt.Table = first, table
	} else {
		stmt.Table = first
	}

	if p.match(TokenWhere) {
		for {
			rel, err := p.parseRelation()
			if err != nil {
				return nil, err
			}
			stmt.Where = append(stmt.Where, rel)
			if !p.match(TokenAnd) {
				break
			}
		}
	}

	if p.match(TokenOrderBy) {
		for {
			col, err := p.parseIdentifier()
			if err != nil {
				return nil, err
			}
			o := ast.Ordering{Column: col}
			if p.match(TokenDesc) {
				o.Desc = true
			} else {
				p.match(TokenAsc)
			}
			stmt.OrderBy = append(stmt.OrderBy, o)
			if !p.match(TokenComma) {
				break
			}
		}
	}

	if p.match(TokenLimit) {
		limit, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		stmt.Limit = limit
	}

	if p.match(TokenAllow) {
		if !p.check(TokenIdentifier) || !strings.EqualFold(p.current.Value, "FILTERING") {
			return nil, p.error("expected FILTERING after ALLOW")
		}
		p.advance()
		stmt.AllowFiltering = true
	}

	return stmt, nil
}

func (p *Parser) parseIdentifier() (ast.Identifier, error) {
	switch p.current.Type { //nolint:exhaustive
	case TokenIdentifier:
		p.advance()
		return ast.Ident(p.previous.Value), nil
	case TokenQuotedIdentifier:
		p.advance()
		return ast.QuotedIdent(p.previous.Value), nil
	}
	return ast.Identifier{}, p.error(fmt.Sprintf("expected identifier, got %s", p.current))
}

func (p *Parser) parseRawSelector() (ast.RawSelector, error) {
	sel, err := p.parseSelector()
	if err != nil {
		return ast.RawSelector{}, err
	}
	raw := ast.RawSelector{Selector: sel}
	if p.match(TokenAs) {
		alias, err := p.parseIdentifier()
		if err != nil {
			return ast.RawSelector{}, err
		}
		raw.Alias = &alias
	}
	return raw, nil
}

func (p *Parser) parseSelector() (ast.Selector, error) {
	if p.check(TokenIdentifier) && p.peek(TokenLeftParen) {
		name := p.current.Value
		p.advance()
		p.advance()
		fn := &ast.FunctionSelector{Name: strings.ToLower(name)}
		if !p.match(TokenRightParen) {
			for {
				arg, err := p.parseSelector()
				if err != nil {
					return nil, err
				}
				fn.Args = append(fn.Args, arg)
				if !p.match(TokenComma) {
					break
				}
			}
			if !p.consume(TokenRightParen, "expected ')' after function arguments") {
				return nil, p.lastError()
			}
		}
		return fn, nil
	}
	if p.check(TokenIdentifier) || p.check(TokenQuotedIdentifier) {
		col, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		return &ast.ColumnSelector{Column: col}, nil
	}
	term, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return &ast.TermSelector{Term: term}, nil
}

func (p *Parser) parseRelation() (ast.Relation, error) {
	if p.check(TokenIdentifier) && strings.EqualFold(p.current.Value, "token") && p.peek(TokenLeftParen) {
		return p.parseTokenRelation()
	}

	col, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	rel := &ast.SingleColumnRelation{Column: col}

	if p.match(TokenLeftBracket) {
		key, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if !p.consume(TokenRightBracket, "expected ']' after map key") {
			return nil, p.lastError()
		}
		rel.MapKey = key
		if !p.consume(TokenEqual, "expected '=' after map element") {
			return nil, p.lastError()
		}
		rel.Op = ast.OpEQ
		if rel.Value, err = p.parseTerm(); err != nil {
			return nil, err
		}
		return rel, nil
	}

	switch {
	case p.match(TokenIn):
		rel.Op = ast.OpIN
		if p.match(TokenLeftParen) {
			rel.InValues = []ast.Term{}
			if !p.match(TokenRightParen) {
				for {
					t, err := p.parseTerm()
					if err != nil {
						return nil, err
					}
					rel.InValues = append(rel.InValues, t)
					if !p.match(TokenComma) {
						break
					}
				}
				if !p.consume(TokenRightParen, "expected ')' after IN values") {
					return nil, p.lastError()
				}
			}
			return rel, nil
		}
		if !p.check(TokenQuestion) && !p.check(TokenColon) {
			return nil, p.error("expected '(' or bind marker after IN")
		}
		rel.Value, err = p.parseTerm()
		return rel, err
	case p.match(TokenContains):
		rel.Op = ast.OpContains
		if p.check(TokenIdentifier) && strings.EqualFold(p.current.Value, "KEY") {
			p.advance()
			rel.Op = ast.OpContainsKey
		}
	default:
		op, err := p.parseOperator()
		if err != nil {
			return nil, err
		}
		rel.Op = op
	}
	if rel.Value, err = p.parseTerm(); err != nil {
		return nil, err
	}
	return rel, nil
}

func (p *Parser) parseTokenRelation() (ast.Relation, error) {
	p.advance() // token
	p.advance() // (
	rel := &ast.TokenRelation{}
	for {
		col, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		rel.Columns = append(rel.Columns, col)
		if !p.match(TokenComma) {
			break
		}
	}
	if !p.consume(TokenRightParen, "expected ')' after token columns") {
		return nil, p.lastError()
	}
	if p.check(TokenIn) {
		return nil, p.error("IN is not supported on token()")
	}
	op, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	rel.Op = op
	if rel.Value, err = p.parseTerm(); err != nil {
		return nil, err
	}
	return rel, nil
}

func (p *Parser) parseOperator() (ast.Operator, error) {
	var op ast.Operator
	switch p.current.Type { //nolint:exhaustive
	case TokenEqual:
		op = ast.OpEQ
	case TokenLess:
		op = ast.OpLT
	case TokenLessEqual:
		op = ast.OpLTE
	case TokenGreater:
		op = ast.OpGT
	case TokenGreaterEqual:
		op = ast.OpGTE
	case TokenNotEqual:
		op = ast.OpNEQ
	default:
		return 0, p.error(fmt.Sprintf("expected relation operator, got %s", p.current))
	}
	p.advance()
	return op, nil
}

func (p *Parser) parseTerm() (ast.Term, error) {
	switch p.current.Type { //nolint:exhaustive
	case TokenQuestion:
		p.advance()
		return &ast.BindMarker{}, nil
	case TokenColon:
		p.advance()
		name, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		return &ast.BindMarker{Name: name.Name()}, nil
	case TokenMinus:
		p.advance()
		if !p.check(TokenNumber) {
			return nil, p.error("expected number after '-'")
		}
		return p.parseNumber(true)
	case TokenNumber:
		return p.parseNumber(false)
	case TokenString:
		p.advance()
		return ast.Lit(p.previous.Value), nil
	case TokenHex:
		p.advance()
		data, err := hex.DecodeString(p.previous.Value[2:])
		if err != nil {
			return nil, p.error(fmt.Sprintf("invalid blob literal %s", p.previous.Value))
		}
		return ast.Lit(data), nil
	case TokenTrue:
		p.advance()
		return ast.Lit(true), nil
	case TokenFalse:
		p.advance()
		return ast.Lit(false), nil
	case TokenNull:
		p.advance()
		return ast.Lit(nil), nil
	case TokenLeftBracket:
		p.advance()
		elems, err := p.parseTermList(TokenRightBracket)
		if err != nil {
			return nil, err
		}
		return &ast.ListLiteral{Elements: elems}, nil
	case TokenLeftBrace:
		return p.parseBraceLiteral()
	case TokenIdentifier:
		if p.peek(TokenLeftParen) {
			name := strings.ToLower(p.current.Value)
			p.advance()
			p.advance()
			args, err := p.parseTermList(TokenRightParen)
			if err != nil {
				return nil, err
			}
			return &ast.FunctionCall{Name: name, Args: args}, nil
		}
	case TokenError:
		return nil, p.error(p.current.Value)
	}
	return nil, p.error(fmt.Sprintf("expected term, got %s", p.current))
}

func (p *Parser) parseNumber(negative bool) (ast.Term, error) {
	text := p.current.Value
	if negative {
		text = "-" + text
	}
	p.advance()
	if strings.Contains(text, ".") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.error(fmt.Sprintf("invalid number %s", text))
		}
		return ast.Lit(f), nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, p.error(fmt.Sprintf("invalid number %s", text))
	}
	return ast.Lit(n), nil
}

func (p *Parser) parseTermList(closing TokenType) ([]ast.Term, error) {
	var terms []ast.Term
	if p.match(closing) {
		return terms, nil
	}
	for {
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
		if !p.match(TokenComma) {
			break
		}
	}
	if !p.consume(closing, fmt.Sprintf("expected '%s'", closing)) {
		return nil, p.lastError()
	}
	return terms, nil
}

// parseBraceLiteral parses {a, b} as a set and {k: v} as a map. {} is an
// empty map.
func (p *Parser) parseBraceLiteral() (ast.Term, error) {
	p.advance() // {
	if p.match(TokenRightBrace) {
		return &ast.MapLiteral{}, nil
	}
	first, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if p.match(TokenColon) {
		value, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		m := &ast.MapLiteral{Entries: []ast.MapLiteralEntry{{Key: first, Value: value}}}
		for p.match(TokenComma) {
			k, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			if !p.consume(TokenColon, "expected ':' in map literal") {
				return nil, p.lastError()
			}
			v, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			m.Entries = append(m.Entries, ast.MapLiteralEntry{Key: k, Value: v})
		}
		if !p.consume(TokenRightBrace, "expected '}'") {
			return nil, p.lastError()
		}
		return m, nil
	}
	set := &ast.SetLiteral{Elements: []ast.Term{first}}
	for p.match(TokenComma) {
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		set.Elements = append(set.Elements, t)
	}
	if !p.consume(TokenRightBrace, "expected '}'") {
		return nil, p.lastError()
	}
	return set, nil
}

func (p *Parser) advance() {
	p.previous = p.current
	p.current = p.lexer.NextToken()
}

func (p *Parser) check(tokenType TokenType) bool {
	return p.current.Type == tokenType
}

// peek reports whether the token after the current one has the given type.
func (p *Parser) peek(tokenType TokenType) bool {
	savedCurrent := p.current
	savedPrevious := p.previous
	savedPosition := p.lexer.position
	savedLine := p.lexer.line
	savedColumn := p.lexer.column

	p.advance()
	result := p.check(tokenType)

	p.current = savedCurrent
	p.previous = savedPrevious
	p.lexer.position = savedPosition
	p.lexer.line = savedLine
	p.lexer.column = savedColumn

	return result
}

func (p *Parser) match(tokenType TokenType) bool {
	if p.check(tokenType) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(tokenType TokenType, message string) bool {
	if p.check(tokenType) {
		p.advance()
		return true
	}
	p.errors = append(p.errors, p.error(message))
	return false
}

func (p *Parser) error(message string) error {
	err := NewParseError(message, p.current.Line, p.current.Column)
	p.errors = append(p.errors, err)
	return err
}

func (p *Parser) lastError() error {
	if len(p.errors) > 0 {
		return p.errors[len(p.errors)-1]
	}
	return NewParseError("unknown parse error", 0, 0)
}
