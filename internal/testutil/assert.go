package testutil

import (
	"reflect"
	"testing"

	"github.com/dshills/QuantaCQL/internal/cql/resultset"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// AssertNoError fails the test immediately on a non-nil error.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertErrorClass checks that err is a query error detected by class.
func AssertErrorClass(t *testing.T, err error, class errors.Class) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", class)
	}
	if !errors.IsClass(err, class) {
		t.Errorf("expected %s error, got %v", class, err)
	}
}

// AssertColumn checks the values of one result column, row by row. Wanted
// values are plain Go values compared with Value.Data; nil means null.
func AssertColumn(t *testing.T, rs *resultset.ResultSet, col int, want ...any) {
	t.Helper()
	got := make([]any, len(rs.Rows))
	for i, row := range rs.Rows {
		got[i] = data(row[col])
	}
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("column %d: expected %v, got %v", col, want, got)
	}
}

func data(v types.Value) any {
	if v.Null {
		return nil
	}
	return v.Data
}

// AssertSequence checks got against want element by element.
func AssertSequence[T comparable](t *testing.T, got []T, want ...T) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("expected %v, got %v", want, got)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			return
		}
	}
}
