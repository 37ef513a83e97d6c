// Package vm implements the bounded stack machine that executes
// compiled cao-lang bytecode: a fixed-size operand stack, a fixed-size
// byte arena, and a registry of host functions a script can call into.
package vm

import (
	"github.com/caolo/simcore/bytecode"
)

const (
	// DefaultStackSize is the default maximum number of operand slots.
	DefaultStackSize = 256
	// DefaultArenaSize is the default maximum arena size in bytes.
	DefaultArenaSize = 2048
	// DefaultInstructionBudget is the default per-run bound on executed
	// instructions; a program that exhausts it is Aborted. Scripts are
	// player-authored, so an unbounded run would let one entity stall
	// the whole tick.
	DefaultInstructionBudget = 100000
	// defaultCallOutputReservation bounds how many bytes a single Call
	// may write to the arena before the VM refuses to reserve space
	// for it, protecting the arena from a single runaway host call.
	defaultCallOutputReservation = 256
)

// HostFunction is a function a compiled script can invoke via the Call
// instruction. inPtr addresses the arena bytes holding the function's
// marshaled arguments; outPtr addresses where it may write its result.
// It returns the number of bytes written at outPtr.
type HostFunction[Aux any] func(vm *VM[Aux], inPtr, outPtr bytecode.TPointer) (uint32, *ExecutionError)

// Function pairs a HostFunction with the argument count Call nodes
// calling it must supply, used both to validate the stack has enough
// operands and, at compile time, to build compiler.FunctionSignature.
type Function[Aux any] struct {
	Inputs int
	Fn     HostFunction[Aux]
}

// VM is a stack machine parameterized by Aux, the per-invocation host
// state (entity id, owner, read-only world view, writable intent
// buffer) host functions need to do anything useful. A fresh VM is
// constructed per script execution; nothing about it is safe to share
// across goroutines.
type VM[Aux any] struct {
	program   []byte
	stack     []Value
	maxStack  int
	arena     []byte
	arenaTop  bytecode.TPointer
	budget    int
	functions map[string]Function[Aux]
	Aux       Aux
}

// Option configures a VM at construction time.
type Option[Aux any] func(*VM[Aux])

// WithStackSize overrides DefaultStackSize.
func WithStackSize[Aux any](n int) Option[Aux] {
	return func(v *VM[Aux]) { v.maxStack = n }
}

// WithArenaSize overrides DefaultArenaSize.
func WithArenaSize[Aux any](n int) Option[Aux] {
	return func(v *VM[Aux]) { v.arena = make([]byte, n) }
}

// WithInstructionBudget overrides DefaultInstructionBudget.
func WithInstructionBudget[Aux any](n int) Option[Aux] {
	return func(v *VM[Aux]) { v.budget = n }
}

// New constructs a VM ready to run program, with functions available
// to Call nodes and aux as the host state exposed to them.
func New[Aux any](program []byte, functions map[string]Function[Aux], aux Aux, opts ...Option[Aux]) *VM[Aux] {
	v := &VM[Aux]{
		program:   program,
		maxStack:  DefaultStackSize,
		arena:     make([]byte, DefaultArenaSize),
		budget:    DefaultInstructionBudget,
		functions: functions,
		Aux:       aux,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ReadArena returns the bytes at ptr..ptr+n, for host functions that need
// to read their input buffer.
func (v *VM[Aux]) ReadArena(ptr bytecode.TPointer, n uint32) ([]byte, *ExecutionError) {
	if uint64(ptr)+uint64(n) > uint64(len(v.arena)) {
		return nil, execError(MemoryOverflow, "vm: arena read [%d:%d] out of bounds (size %d)", ptr, uint64(ptr)+uint64(n), len(v.arena))
	}
	return v.arena[ptr : uint64(ptr)+uint64(n)], nil
}

// WriteArena writes data at ptr, for host functions producing output.
func (v *VM[Aux]) WriteArena(ptr bytecode.TPointer, data []byte) *ExecutionError {
	if uint64(ptr)+uint64(len(data)) > uint64(len(v.arena)) {
		return execError(MemoryOverflow, "vm: arena write at %d (len %d) out of bounds (size %d)", ptr, len(data), len(v.arena))
	}
	copy(v.arena[ptr:], data)
	return nil
}

func (v *VM[Aux]) allocArena(n int) (bytecode.TPointer, *ExecutionError) {
	if uint64(v.arenaTop)+uint64(n) > uint64(len(v.arena)) {
		return 0, execError(MemoryOverflow, "vm: arena exhausted: need %d more bytes, %d available", n, len(v.arena)-int(v.arenaTop))
	}
	ptr := v.arenaTop
	v.arenaTop += bytecode.TPointer(n)
	return ptr, nil
}

func (v *VM[Aux]) push(val Value) *ExecutionError {
	if len(v.stack) >= v.maxStack {
		return execError(StackOverflow, "vm: operand stack overflow (max %d)", v.maxStack)
	}
	v.stack = append(v.stack, val)
	return nil
}

func (v *VM[Aux]) pop() (Value, *ExecutionError) {
	if len(v.stack) == 0 {
		return Value{}, execError(StackUnderflow, "vm: operand stack underflow")
	}
	val := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return val, nil
}

// Run executes the program starting at entrypoint until it falls off
// the end of the bytecode, exhausts its instruction budget (Aborted),
// or hits a fatal error. It returns the final stack (top last).
func (v *VM[Aux]) Run(entrypoint uint32) ([]Value, *ExecutionError) {
	pc := entrypoint
	executed := 0
	for int(pc) < len(v.program) {
		if executed >= v.budget {
			return nil, execError(Aborted, "vm: instruction budget of %d exhausted", v.budget)
		}
		executed++
		inst := bytecode.Instruction(v.program[pc])
		pc++
		next, err := v.step(inst, pc)
		if err != nil {
			return nil, err
		}
		pc = next
	}
	return v.stack, nil
}

func (v *VM[Aux]) step(inst bytecode.Instruction, pc uint32) (uint32, *ExecutionError) {
	switch inst {
	case bytecode.Pass:
		return pc, nil
	case bytecode.LiteralInt:
		val, err := bytecode.DecodeInt64(v.program[pc:])
		if err != nil {
			return 0, execError(InvalidArgument, "vm: %v", err)
		}
		if err := v.push(intValue(val)); err != nil {
			return 0, err
		}
		return pc + bytecode.Int64ByteLen, nil
	case bytecode.LiteralFloat:
		val, err := bytecode.DecodeFloat64(v.program[pc:])
		if err != nil {
			return 0, execError(InvalidArgument, "vm: %v", err)
		}
		if err := v.push(floatValue(val)); err != nil {
			return 0, err
		}
		return pc + bytecode.Float64ByteLen, nil
	case bytecode.LiteralPtr:
		val, err := bytecode.DecodePointer(v.program[pc:])
		if err != nil {
			return 0, execError(InvalidArgument, "vm: %v", err)
		}
		if err := v.push(ptrValue(val)); err != nil {
			return 0, err
		}
		return pc + bytecode.PointerByteLen, nil
	case bytecode.LiteralArray:
		return v.stepLiteralArray(pc)
	case bytecode.AddInt, bytecode.SubInt, bytecode.MulInt, bytecode.DivInt:
		return pc, v.stepIntBinOp(inst)
	case bytecode.AddFloat, bytecode.SubFloat, bytecode.MulFloat, bytecode.DivFloat:
		return pc, v.stepFloatBinOp(inst)
	case bytecode.CopyLast:
		if len(v.stack) == 0 {
			return 0, execError(StackUnderflow, "vm: CopyLast on empty stack")
		}
		return pc, v.push(v.stack[len(v.stack)-1])
	case bytecode.Call:
		return v.stepCall(pc)
	default:
		return 0, execError(UnknownOpcode, "vm: unknown instruction %d at pc %d", inst, pc-1)
	}
}

// stepLiteralArray copies the inline length-prefixed array into the
// arena in the same layout the bytecode carries it: the element count
// first, then the elements. Host functions (scriptapi's readString)
// decode the count back off the pointed-at arena bytes, so the prefix
// must survive the copy.
func (v *VM[Aux]) stepLiteralArray(pc uint32) (uint32, *ExecutionError) {
	n, err := bytecode.DecodeInt64(v.program[pc:])
	if err != nil {
		return 0, execError(InvalidArgument, "vm: %v", err)
	}
	pc += bytecode.Int64ByteLen
	if n < 0 {
		return 0, execError(InvalidArgument, "vm: negative array length %d", n)
	}
	count := int(n)
	byteLen := (1 + count) * bytecode.Int64ByteLen
	ptr, aerr := v.allocArena(byteLen)
	if aerr != nil {
		return 0, aerr
	}
	if werr := v.WriteArena(ptr, bytecode.EncodeInt64(nil, n)); werr != nil {
		return 0, werr
	}
	for i := 0; i < count; i++ {
		elem, derr := bytecode.DecodeInt64(v.program[pc:])
		if derr != nil {
			return 0, execError(InvalidArgument, "vm: %v", derr)
		}
		if werr := v.WriteArena(ptr+bytecode.TPointer((1+i)*bytecode.Int64ByteLen), bytecode.EncodeInt64(nil, elem)); werr != nil {
			return 0, werr
		}
		pc += bytecode.Int64ByteLen
	}
	if perr := v.push(ptrValue(ptr)); perr != nil {
		return 0, perr
	}
	return pc, nil
}

func (v *VM[Aux]) stepIntBinOp(inst bytecode.Instruction) *ExecutionError {
	b, err := v.pop()
	if err != nil {
		return err
	}
	a, err := v.pop()
	if err != nil {
		return err
	}
	if a.Tag != bytecode.TagInt || b.Tag != bytecode.TagInt {
		return execError(TypeMismatch, "vm: %s requires two int operands, got %s and %s", inst, a.Tag, b.Tag)
	}
	var result int64
	switch inst {
	case bytecode.AddInt:
		result = a.Int + b.Int
	case bytecode.SubInt:
		result = a.Int - b.Int
	case bytecode.MulInt:
		result = a.Int * b.Int
	case bytecode.DivInt:
		if b.Int == 0 {
			return execError(DivideByZero, "vm: integer division by zero")
		}
		result = a.Int / b.Int
	}
	return v.push(intValue(result))
}

func (v *VM[Aux]) stepFloatBinOp(inst bytecode.Instruction) *ExecutionError {
	b, err := v.pop()
	if err != nil {
		return err
	}
	a, err := v.pop()
	if err != nil {
		return err
	}
	if a.Tag != bytecode.TagFloat || b.Tag != bytecode.TagFloat {
		return execError(TypeMismatch, "vm: %s requires two float operands, got %s and %s", inst, a.Tag, b.Tag)
	}
	var result float64
	switch inst {
	case bytecode.AddFloat:
		result = a.Float + b.Float
	case bytecode.SubFloat:
		result = a.Float - b.Float
	case bytecode.MulFloat:
		result = a.Float * b.Float
	case bytecode.DivFloat:
		// IEEE-754 semantics: a zero divisor yields an infinity or NaN
		// rather than a fatal error, unlike integer division.
		result = a.Float / b.Float
	}
	return v.push(floatValue(result))
}

// stepCall decodes the inline function name, marshals the declared
// number of popped operands into a fresh arena input buffer, invokes
// the host function, and pushes a pointer to whatever it wrote as the
// call's result.
func (v *VM[Aux]) stepCall(pc uint32) (uint32, *ExecutionError) {
	name, n, derr := bytecode.DecodeInputString(v.program[pc:])
	if derr != nil {
		return 0, execError(InvalidArgument, "vm: %v", derr)
	}
	pc += uint32(n)

	fn, ok := v.functions[name.Value]
	if !ok {
		return 0, execError(UnknownFunction, "vm: call to unregistered function %q", name.Value)
	}
	if len(v.stack) < fn.Inputs {
		return 0, execError(InvalidArgument, "vm: call to %q needs %d operands, stack has %d", name.Value, fn.Inputs, len(v.stack))
	}

	args := make([]Value, fn.Inputs)
	copy(args, v.stack[len(v.stack)-fn.Inputs:])
	v.stack = v.stack[:len(v.stack)-fn.Inputs]

	inPtr, aerr := v.allocArena(fn.Inputs * bytecode.Int64ByteLen)
	if aerr != nil {
		return 0, aerr
	}
	for i, a := range args {
		var raw int64
		switch a.Tag {
		case bytecode.TagInt:
			raw = a.Int
		case bytecode.TagFloat:
			raw = int64(a.Float)
		case bytecode.TagPointer:
			raw = int64(a.Ptr)
		}
		if werr := v.WriteArena(inPtr+bytecode.TPointer(i*bytecode.Int64ByteLen), bytecode.EncodeInt64(nil, raw)); werr != nil {
			return 0, werr
		}
	}

	outPtr, aerr := v.allocArena(defaultCallOutputReservation)
	if aerr != nil {
		return 0, aerr
	}

	written, ferr := fn.Fn(v, inPtr, outPtr)
	if ferr != nil {
		return 0, ferr
	}
	if written > defaultCallOutputReservation {
		return 0, execError(InvalidArgument, "vm: call to %q wrote %d bytes, exceeding the %d byte output reservation", name.Value, written, defaultCallOutputReservation)
	}

	if perr := v.push(ptrValue(outPtr)); perr != nil {
		return 0, perr
	}
	return pc, nil
}
