// Package functions holds the native scalar functions usable in select
// clauses and as terms.
package functions

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/dht"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// Function is a scalar function.
type Function interface {
	Name() string
	ArgTypes() []types.DataType
	ReturnType() types.DataType
	// IsPure reports whether the result depends only on the arguments.
	// Pure calls over constants are folded at prepare time.
	IsPure() bool
	Execute(args []types.Value) (types.Value, error)
}

type scalar struct {
	name    string
	args    []types.DataType
	returns types.DataType
	pure    bool
	exec    func(args []types.Value) (types.Value, error)
}

func (f *scalar) Name() string               { return f.name }
func (f *scalar) ArgTypes() []types.DataType { return f.args }
func (f *scalar) ReturnType() types.DataType { return f.returns }
func (f *scalar) IsPure() bool               { return f.pure }

func (f *scalar) Execute(args []types.Value) (types.Value, error) {
	if len(args) != len(f.args) {
		return types.Value{}, errors.FunctionExecutionError(f.name,
			fmt.Sprintf("expected %d arguments, got %d", len(f.args), len(args)))
	}
	v, err := f.exec(args)
	if err != nil {
		return types.Value{}, errors.FunctionExecutionError(f.name, err.Error())
	}
	return v, nil
}

var natives = map[string]Function{}

func register(f *scalar) {
	natives[f.name] = f
}

func init() {
	register(&scalar{
		name:    "now",
		returns: types.TimeUUID,
		exec: func([]types.Value) (types.Value, error) {
			u, err := uuid.NewUUID()
			if err != nil {
				return types.Value{}, err
			}
			return types.NewValue(u), nil
		},
	})
	register(&scalar{
		name:    "dateof",
		args:    []types.DataType{types.TimeUUID},
		returns: types.Timestamp,
		pure:    true,
		exec: func(args []types.Value) (types.Value, error) {
			if args[0].Null {
				return types.NewNullValue(), nil
			}
			return types.NewValue(uuidTime(args[0].Data.(uuid.UUID))), nil
		},
	})
	register(&scalar{
		name:    "unixtimestampof",
		args:    []types.DataType{types.TimeUUID},
		returns: types.BigInt,
		pure:    true,
		exec: func(args []types.Value) (types.Value, error) {
			if args[0].Null {
				return types.NewNullValue(), nil
			}
			return types.NewValue(uuidTime(args[0].Data.(uuid.UUID)).UnixMilli()), nil
		},
	})

	for _, t := range types.NativeTypes() {
		if t == types.Blob {
			continue
		}
		t := t
		register(&scalar{
			name:    t.Name() + "asblob",
			args:    []types.DataType{t},
			returns: types.Blob,
			pure:    true,
			exec: func(args []types.Value) (types.Value, error) {
				if args[0].Null {
					return types.NewNullValue(), nil
				}
				data, err := t.Serialize(args[0])
				if err != nil {
					return types.Value{}, err
				}
				return types.NewValue(data), nil
			},
		})
		register(&scalar{
			name:    "blobas" + t.Name(),
			args:    []types.DataType{types.Blob},
			returns: t,
			pure:    true,
			exec: func(args []types.Value) (types.Value, error) {
				if args[0].Null {
					return types.NewNullValue(), nil
				}
				return t.Deserialize(args[0].Data.([]byte))
			},
		})
	}
}

func uuidTime(u uuid.UUID) time.Time {
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec).UTC().Truncate(time.Millisecond)
}

// Lookup resolves a function by name for a table. token is specific to the
// table's partition key.
func Lookup(name string, schema *catalog.Schema) (Function, error) {
	name = strings.ToLower(name)
	if name == "token" {
		return Token(schema), nil
	}
	if f, ok := natives[name]; ok {
		return f, nil
	}
	return nil, errors.InvalidRequestf("unknown function '%s'", name)
}

// Token returns token(pk...) for the table: the partitioner token of the
// partition key, as a bigint.
func Token(schema *catalog.Schema) Function {
	args := make([]types.DataType, len(schema.PartitionKey))
	for i, c := range schema.PartitionKey {
		args[i] = c.Type
	}
	return &scalar{
		name:    "token",
		args:    args,
		returns: types.BigInt,
		pure:    true,
		exec: func(args []types.Value) (types.Value, error) {
			for _, a := range args {
				if a.Null {
					return types.NewNullValue(), nil
				}
			}
			t, err := dht.KeyToken(schema, args)
			if err != nil {
				return types.Value{}, err
			}
			return types.NewValue(int64(t)), nil
		},
	}
}
