package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caolo/simcore/bytecode"
)

func TestRunFloatAddition(t *testing.T) {
	var prog []byte
	prog = append(prog, byte(bytecode.LiteralFloat))
	prog = bytecode.EncodeFloat64(prog, 1.5)
	prog = append(prog, byte(bytecode.LiteralFloat))
	prog = bytecode.EncodeFloat64(prog, 2.5)
	prog = append(prog, byte(bytecode.AddFloat))

	m := New[struct{}](prog, nil, struct{}{})
	stack, err := m.Run(0)
	require.Nil(t, err)
	require.Len(t, stack, 1)
	assert.Equal(t, bytecode.TagFloat, stack[0].Tag)
	assert.Equal(t, 4.0, stack[0].Float)
}

func TestRunIntDivisionByZero(t *testing.T) {
	var prog []byte
	prog = append(prog, byte(bytecode.LiteralInt))
	prog = bytecode.EncodeInt64(prog, 10)
	prog = append(prog, byte(bytecode.LiteralInt))
	prog = bytecode.EncodeInt64(prog, 0)
	prog = append(prog, byte(bytecode.DivInt))

	m := New[struct{}](prog, nil, struct{}{})
	_, err := m.Run(0)
	require.NotNil(t, err)
	assert.Equal(t, DivideByZero, err.Kind)
}

func TestRunFloatDivisionByZeroIsNotFatal(t *testing.T) {
	var prog []byte
	prog = append(prog, byte(bytecode.LiteralFloat))
	prog = bytecode.EncodeFloat64(prog, 10)
	prog = append(prog, byte(bytecode.LiteralFloat))
	prog = bytecode.EncodeFloat64(prog, 0)
	prog = append(prog, byte(bytecode.DivFloat))

	m := New[struct{}](prog, nil, struct{}{})
	stack, err := m.Run(0)
	require.Nil(t, err, "float division by zero must follow IEEE-754, not abort")
	require.Len(t, stack, 1)
	assert.True(t, math.IsInf(stack[0].Float, 1))

	prog = nil
	prog = append(prog, byte(bytecode.LiteralFloat))
	prog = bytecode.EncodeFloat64(prog, 0)
	prog = append(prog, byte(bytecode.LiteralFloat))
	prog = bytecode.EncodeFloat64(prog, 0)
	prog = append(prog, byte(bytecode.DivFloat))

	m = New[struct{}](prog, nil, struct{}{})
	stack, err = m.Run(0)
	require.Nil(t, err)
	require.Len(t, stack, 1)
	assert.True(t, math.IsNaN(stack[0].Float))
}

func TestRunStackOverflow(t *testing.T) {
	var prog []byte
	for i := 0; i < DefaultStackSize+1; i++ {
		prog = append(prog, byte(bytecode.LiteralInt))
		prog = bytecode.EncodeInt64(prog, int64(i))
	}
	m := New[struct{}](prog, nil, struct{}{})
	_, err := m.Run(0)
	require.NotNil(t, err)
	assert.Equal(t, StackOverflow, err.Kind)
}

func TestRunInstructionBudgetAborts(t *testing.T) {
	var prog []byte
	for i := 0; i < 10; i++ {
		prog = append(prog, byte(bytecode.Pass))
	}
	m := New[struct{}](prog, nil, struct{}{}, WithInstructionBudget[struct{}](5))
	_, err := m.Run(0)
	require.NotNil(t, err)
	assert.Equal(t, Aborted, err.Kind)

	m = New[struct{}](prog, nil, struct{}{}, WithInstructionBudget[struct{}](10))
	_, err = m.Run(0)
	assert.Nil(t, err, "a program within its budget must complete")
}

func TestCallHostFunction(t *testing.T) {
	var prog []byte
	prog = append(prog, byte(bytecode.LiteralInt))
	prog = bytecode.EncodeInt64(prog, 41)
	prog = append(prog, byte(bytecode.Call))
	prog = bytecode.InputString{Value: "increment"}.Encode(prog)

	type aux struct{ calls int }
	functions := map[string]Function[aux]{
		"increment": {
			Inputs: 1,
			Fn: func(m *VM[aux], inPtr, outPtr bytecode.TPointer) (uint32, *ExecutionError) {
				m.Aux.calls++
				in, err := m.ReadArena(inPtr, 8)
				if err != nil {
					return 0, err
				}
				v, derr := bytecode.DecodeInt64(in)
				if derr != nil {
					return 0, execError(InvalidArgument, "%v", derr)
				}
				out := bytecode.EncodeInt64(nil, v+1)
				if werr := m.WriteArena(outPtr, out); werr != nil {
					return 0, werr
				}
				return uint32(len(out)), nil
			},
		},
	}

	m := New[aux](prog, functions, aux{})
	stack, err := m.Run(0)
	require.Nil(t, err)
	assert.Equal(t, 1, m.Aux.calls)
	require.Len(t, stack, 1)
	require.Equal(t, bytecode.TagPointer, stack[0].Tag)

	out, err := m.ReadArena(stack[0].Ptr, 8)
	require.Nil(t, err)
	val, derr := bytecode.DecodeInt64(out)
	require.NoError(t, derr)
	assert.Equal(t, int64(42), val)
}

func TestCallUnregisteredFunction(t *testing.T) {
	var prog []byte
	prog = append(prog, byte(bytecode.Call))
	prog = bytecode.InputString{Value: "missing"}.Encode(prog)

	m := New[struct{}](prog, nil, struct{}{})
	_, err := m.Run(0)
	require.NotNil(t, err)
	assert.Equal(t, UnknownFunction, err.Kind)
}

func TestLiteralArray(t *testing.T) {
	var prog []byte
	prog = append(prog, byte(bytecode.LiteralArray))
	prog = bytecode.EncodeInt64(prog, 3)
	prog = bytecode.EncodeInt64(prog, 10)
	prog = bytecode.EncodeInt64(prog, 20)
	prog = bytecode.EncodeInt64(prog, 30)

	m := New[struct{}](prog, nil, struct{}{})
	stack, err := m.Run(0)
	require.Nil(t, err)
	require.Len(t, stack, 1)
	require.Equal(t, bytecode.TagPointer, stack[0].Tag)

	// arena layout mirrors the bytecode: count first, then elements.
	raw, rerr := m.ReadArena(stack[0].Ptr, 32)
	require.Nil(t, rerr)
	count, _ := bytecode.DecodeInt64(raw[0:8])
	v0, _ := bytecode.DecodeInt64(raw[8:16])
	v1, _ := bytecode.DecodeInt64(raw[16:24])
	v2, _ := bytecode.DecodeInt64(raw[24:32])
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(10), v0)
	assert.Equal(t, int64(20), v1)
	assert.Equal(t, int64(30), v2)
}
