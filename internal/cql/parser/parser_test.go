package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/QuantaCQL/internal/cql/ast"
	"github.com/dshills/QuantaCQL/internal/errors"
)

func TestParseCanonicalText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{
			"select * from Events",
			"SELECT * FROM events",
		},
		{
			"SELECT id, ts AS t, v FROM ks.events WHERE id = 5 AND ts > 10 ORDER BY ts DESC LIMIT 3;",
			"SELECT id, ts AS t, v FROM ks.events WHERE id = 5 AND ts > 10 ORDER BY ts DESC LIMIT 3",
		},
		{
			"SELECT * FROM events WHERE id IN (1, 2) ORDER BY ts LIMIT ?",
			"SELECT * FROM events WHERE id IN (1, 2) ORDER BY ts ASC LIMIT ?",
		},
		{
			"SELECT DISTINCT id FROM events WHERE token(id) >= token(?) AND token(id) < :hi",
			"SELECT DISTINCT id FROM events WHERE token(id) >= token(?) AND token(id) < :hi",
		},
		{
			"SELECT * FROM t WHERE tags CONTAINS 'a' AND attrs CONTAINS KEY 'k' AND attrs['x'] = 'y' ALLOW FILTERING",
			"SELECT * FROM t WHERE tags CONTAINS 'a' AND attrs CONTAINS KEY 'k' AND attrs['x'] = 'y' ALLOW FILTERING",
		},
		{
			`SELECT "MixedCase", blobAsInt(intAsBlob(3)) FROM t WHERE b = 0xCAFE AND f = -1.5 AND l = [1, 2] AND s = {1} AND m = {'a': 1}`,
			`SELECT "MixedCase", blobasint(intasblob(3)) FROM t WHERE b = 0xcafe AND f = -1.5 AND l = [1, 2] AND s = {1} AND m = {'a': 1}`,
		},
		{
			"SELECT * FROM t WHERE id IN ? -- trailing comment",
			"SELECT * FROM t WHERE id IN ?",
		},
		{
			"SELECT key FROM t WHERE key = 1",
			"SELECT key FROM t WHERE key = 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			stmt, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.String())

			again, err := Parse(stmt.String())
			require.NoError(t, err)
			assert.Equal(t, stmt.String(), again.String())
		})
	}
}

func TestParseStructure(t *testing.T) {
	stmt := MustParse("SELECT v FROM ks.events WHERE id = 5 AND ts > ? ORDER BY ts DESC LIMIT 3")

	assert.Equal(t, "ks", stmt.Keyspace.Name())
	assert.Equal(t, "events", stmt.Table.Name())
	require.Len(t, stmt.Where, 2)

	rel, ok := stmt.Where[1].(*ast.SingleColumnRelation)
	require.True(t, ok)
	assert.Equal(t, "ts", rel.Column.Name())
	assert.Equal(t, ast.OpGT, rel.Op)
	assert.IsType(t, &ast.BindMarker{}, rel.Value)

	lit, ok := stmt.Where[0].(*ast.SingleColumnRelation).Value.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(5), lit.Value.Data)

	require.Len(t, stmt.OrderBy, 1)
	assert.True(t, stmt.OrderBy[0].Desc)
	assert.Equal(t, int64(3), stmt.Limit.(*ast.Literal).Value.Data)
}

func TestParseQuotedIdentifier(t *testing.T) {
	stmt := MustParse(`SELECT "Value" FROM "Tbl"`)
	col := stmt.Selectors[0].Selector.(*ast.ColumnSelector).Column
	assert.True(t, col.Quoted)
	assert.Equal(t, "Value", col.Name())
	assert.Equal(t, "Tbl", stmt.Table.Name())
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"UPDATE t SET a = 1",
		"SELECT FROM t",
		"SELECT * FROM t WHERE",
		"SELECT * FROM t WHERE a",
		"SELECT * FROM t WHERE token(a) IN (1)",
		"SELECT * FROM t ALLOW",
		"SELECT * FROM t WHERE a = 'unterminated",
		"SELECT * FROM t extra",
		"SELECT * FROM t WHERE a IN 5",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.True(t, errors.IsError(err, errors.SyntaxError), "got %v", err)
		})
	}
}

func TestLexerTokens(t *testing.T) {
	l := NewLexer("a <= ? != 0x0F ORDER  BY order")
	var got []TokenType
	for {
		tok := l.NextToken()
		got = append(got, tok.Type)
		if tok.Type == TokenEOF {
			break
		}
	}
	assert.Equal(t, []TokenType{
		TokenIdentifier, TokenLessEqual, TokenQuestion, TokenNotEqual, TokenHex,
		TokenOrderBy, TokenIdentifier, TokenEOF,
	}, got)
}
