package parser

import "fmt"

// TokenType represents the type of a CQL token.
type TokenType int

const (
	// Special tokens.
	TokenEOF TokenType = iota
	TokenError

	// Literals.
	TokenIdentifier
	TokenQuotedIdentifier
	TokenNumber
	TokenString
	TokenHex
	TokenTrue
	TokenFalse
	TokenNull

	// Keywords.
	TokenSelect
	TokenDistinct
	TokenFrom
	TokenWhere
	TokenAnd
	TokenOrderBy
	TokenAsc
	TokenDesc
	TokenLimit
	TokenAllow
	TokenAs
	TokenIn
	TokenContains

	// Operators
	TokenMinus
	TokenStar
	TokenEqual
	TokenNotEqual
	TokenLess
	TokenLessEqual
	TokenGreater
	TokenGreaterEqual
	TokenQuestion
	TokenColon

	// Delimiters
	TokenLeftParen
	TokenRightParen
	TokenLeftBracket
	TokenRightBracket
	TokenLeftBrace
	TokenRightBrace
	TokenComma
	TokenSemicolon
	TokenDot
)

var tokenStrings = map[TokenType]string{
	TokenEOF:              "EOF",
	TokenError:            "ERROR",
	TokenIdentifier:       "IDENTIFIER",
	TokenQuotedIdentifier: "QUOTED_IDENTIFIER",
	TokenNumber:           "NUMBER",
	TokenString:           "STRING",
	TokenHex:              "HEX",
	TokenTrue:             "TRUE",
	TokenFalse:            "FALSE",
	TokenNull:             "NULL",
	TokenSelect:           "SELECT",
	TokenDistinct:         "DISTINCT",
	TokenFrom:             "FROM",
	TokenWhere:            "WHERE",
	TokenAnd:              "AND",
	TokenOrderBy:          "ORDER BY",
	TokenAsc:              "ASC",
	TokenDesc:             "DESC",
	TokenLimit:            "LIMIT",
	TokenAllow:            "ALLOW",
	TokenAs:               "AS",
	TokenIn:               "IN",
	TokenContains:         "CONTAINS",
	TokenMinus:            "-",
	TokenStar:             "*",
	TokenEqual:            "=",
	TokenNotEqual:         "!=",
	TokenLess:             "<",
	TokenLessEqual:        "<=",
	TokenGreater:          ">",
	TokenGreaterEqual:     ">=",
	TokenQuestion:         "?",
	TokenColon:            ":",
	TokenLeftParen:        "(",
	TokenRightParen:       ")",
	TokenLeftBracket:      "[",
	TokenRightBracket:     "]",
	TokenLeftBrace:        "{",
	TokenRightBrace:       "}",
	TokenComma:            ",",
	TokenSemicolon:        ";",
	TokenDot:              ".",
}

// String returns the string representation of a token type.
func (t TokenType) String() string {
	if s, ok := tokenStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(%d)", t)
}

// Token represents a CQL token.
type Token struct {
	Type     TokenType
	Value    string
	Position int
	Line     int
	Column   int
}

// String returns a string representation of the token.
func (t Token) String() string {
	switch t.Type { //nolint:exhaustive
	case TokenIdentifier, TokenQuotedIdentifier, TokenNumber, TokenString, TokenHex:
		return fmt.Sprintf("%s(%s)", t.Type, t.Value)
	}
	return t.Type.String()
}

// Reserved keywords. Words such as KEY, FILTERING and TOKEN stay
// identifiers so they remain usable as column names.
var keywords = map[string]TokenType{
	"SELECT":   TokenSelect,
	"DISTINCT": TokenDistinct,
	"FROM":     TokenFrom,
	"WHERE":    TokenWhere,
	"AND":      TokenAnd,
	"ORDER":    TokenOrderBy,
	"ASC":      TokenAsc,
	"DESC":     TokenDesc,
	"LIMIT":    TokenLimit,
	"ALLOW":    TokenAllow,
	"AS":       TokenAs,
	"IN":       TokenIn,
	"CONTAINS": TokenContains,
	"TRUE":     TokenTrue,
	"FALSE":    TokenFalse,
	"NULL":     TokenNull,
}

// LookupKeyword returns the token type for a keyword.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdentifier
}
