package parser

import (
	"fmt"
	"strings"
	"unicode"
)

// Lexer tokenizes CQL input.
type Lexer struct {
	input    string
	position int
	line     int
	column   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		column: 1,
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.position >= len(l.input) {
		return l.makeToken(TokenEOF, "")
	}

	ch := l.input[l.position]

	switch ch {
	case '(':
		return l.consumeChar(TokenLeftParen)
	case ')':
		return l.consumeChar(TokenRightParen)
	case '[':
		return l.consumeChar(TokenLeftBracket)
	case ']':
		return l.consumeChar(TokenRightBracket)
	case '{':
		return l.consumeChar(TokenLeftBrace)
	case '}':
		return l.consumeChar(TokenRightBrace)
	case ',':
		return l.consumeChar(TokenComma)
	case ';':
		return l.consumeChar(TokenSemicolon)
	case '.':
		return l.consumeChar(TokenDot)
	case '?':
		return l.consumeChar(TokenQuestion)
	case ':':
		return l.consumeChar(TokenColon)
	case '*':
		return l.consumeChar(TokenStar)
	case '-':
		if l.peek(1) == '-' {
			l.skipComment()
			return l.NextToken()
		}
		return l.consumeChar(TokenMinus)
	case '/':
		if l.peek(1) == '/' {
			l.skipComment()
			return l.NextToken()
		}
	case '=':
		return l.consumeChar(TokenEqual)
	case '<':
		if l.peek(1) == '=' {
			return l.consumeChars(TokenLessEqual, 2)
		}
		return l.consumeChar(TokenLess)
	case '>':
		if l.peek(1) == '=' {
			return l.consumeChars(TokenGreaterEqual, 2)
		}
		return l.consumeChar(TokenGreater)
	case '!':
		if l.peek(1) == '=' {
			return l.consumeChars(TokenNotEqual, 2)
		}
		return l.makeToken(TokenError, "unexpected character '!'")
	case '\'':
		return l.readString()
	case '"':
		return l.readQuotedIdentifier()
	}

	if unicode.IsLetter(rune(ch)) || ch == '_' {
		return l.readIdentifier()
	}

	if unicode.IsDigit(rune(ch)) {
		if ch == '0' && (l.peek(1) == 'x' || l.peek(1) == 'X') {
			return l.readHex()
		}
		return l.readNumber()
	}

	return l.makeToken(TokenError, fmt.Sprintf("unexpected character '%c'", ch))
}

// skipWhitespace skips whitespace and updates line/column tracking.
func (l *Lexer) skipWhitespace() {
	for l.position < len(l.input) {
		ch := l.input[l.position]
		switch ch {
		case ' ', '\t', '\r':
			l.position++
			l.column++
		case '\n':
			l.position++
			l.line++
			l.column = 1
		default:
			return
		}
	}
}

// skipComment skips a line comment (-- or //).
func (l *Lexer) skipComment() {
	for l.position < len(l.input) && l.input[l.position] != '\n' {
		l.position++
		l.column++
	}
}

// peek looks ahead n characters without consuming.
func (l *Lexer) peek(n int) byte {
	pos := l.position + n
	if pos >= len(l.input) {
		return 0
	}
	return l.input[pos]
}

func (l *Lexer) consumeChar(tokenType TokenType) Token {
	tok := l.makeToken(tokenType, string(l.input[l.position]))
	l.position++
	l.column++
	return tok
}

func (l *Lexer) consumeChars(tokenType TokenType, n int) Token {
	value := l.input[l.position : l.position+n]
	tok := l.makeToken(tokenType, value)
	l.position += n
	l.column += n
	return tok
}

func (l *Lexer) makeToken(tokenType TokenType, value string) Token {
	return Token{
		Type:     tokenType,
		Value:    value,
		Position: l.position,
		Line:     l.line,
		Column:   l.column,
	}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() Token {
	start := l.position
	startCol := l.column

	for l.position < len(l.input) {
		ch := l.input[l.position]
		if unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_' {
			l.position++
			l.column++
		} else {
			break
		}
	}

	value := l.input[start:l.position]
	tokenType := LookupKeyword(strings.ToUpper(value))

	// ORDER is only a keyword as part of ORDER BY
	if tokenType == TokenOrderBy {
		save, saveCol, saveLine := l.position, l.column, l.line
		l.skipWhitespace()
		if l.position < len(l.input)-1 && strings.EqualFold(l.input[l.position:l.position+2], "BY") &&
			(l.position+2 == len(l.input) || !isIdentChar(l.input[l.position+2])) {
			l.position += 2
			l.column += 2
			value = "ORDER BY"
		} else {
			l.position, l.column, l.line = save, saveCol, saveLine
			tokenType = TokenIdentifier
		}
	}

	return Token{
		Type:     tokenType,
		Value:    value,
		Position: start,
		Line:     l.line,
		Column:   startCol,
	}
}

func isIdentChar(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_'
}

// readNumber reads an integer or decimal literal.
func (l *Lexer) readNumber() Token {
	start := l.position
	startCol := l.column
	hasDecimal := false

	for l.position < len(l.input) {
		ch := l.input[l.position]
		if unicode.IsDigit(rune(ch)) {
			l.position++
			l.column++
		} else if ch == '.' && !hasDecimal && l.position+1 < len(l.input) && unicode.IsDigit(rune(l.input[l.position+1])) {
			hasDecimal = true
			l.position++
			l.column++
		} else {
			break
		}
	}

	return Token{
		Type:     TokenNumber,
		Value:    l.input[start:l.position],
		Position: start,
		Line:     l.line,
		Column:   startCol,
	}
}

// readHex reads a blob literal such as 0xCAFE.
func (l *Lexer) readHex() Token {
	start := l.position
	startCol := l.column
	l.position += 2
	l.column += 2

	for l.position < len(l.input) && isHexDigit(l.input[l.position]) {
		l.position++
		l.column++
	}

	return Token{
		Type:     TokenHex,
		Value:    l.input[start:l.position],
		Position: start,
		Line:     l.line,
		Column:   startCol,
	}
}

func isHexDigit(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// readQuoted reads a quoted string with the given quote character.
func (l *Lexer) readQuoted(quoteChar byte, tokenType TokenType, errorMsg string) Token {
	start := l.position
	startCol := l.column
	l.position++ // Skip opening quote
	l.column++

	var builder strings.Builder

	for l.position < len(l.input) {
		ch := l.input[l.position]
		switch ch {
		case quoteChar:
			// Check for escaped quote
			if l.peek(1) == quoteChar {
				builder.WriteByte(quoteChar)
				l.position += 2
				l.column += 2
			} else {
				l.position++
				l.column++
				return Token{
					Type:     tokenType,
					Value:    builder.String(),
					Position: start,
					Line:     l.line,
					Column:   startCol,
				}
			}
		case '\n':
			return Token{
				Type:     TokenError,
				Value:    errorMsg,
				Position: start,
				Line:     l.line,
				Column:   startCol,
			}
		default:
			builder.WriteByte(ch)
			l.position++
			l.column++
		}
	}

	return Token{
		Type:     TokenError,
		Value:    errorMsg,
		Position: start,
		Line:     l.line,
		Column:   startCol,
	}
}

func (l *Lexer) readString() Token {
	return l.readQuoted('\'', TokenString, "unterminated string literal")
}

func (l *Lexer) readQuotedIdentifier() Token {
	return l.readQuoted('"', TokenQuotedIdentifier, "unterminated quoted identifier")
}
