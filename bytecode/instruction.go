package bytecode

import "fmt"

// Instruction is a single opcode in the compiled bytecode stream.
type Instruction uint8

const (
	// Pass performs no operation; used to compile empty graph nodes.
	Pass Instruction = iota
	// LiteralInt pushes an inline int64 operand onto the stack.
	LiteralInt
	// LiteralFloat pushes an inline float64 operand onto the stack.
	LiteralFloat
	// LiteralPtr pushes an inline TPointer operand onto the stack.
	LiteralPtr
	// LiteralArray writes an inline array of int64 values into the
	// arena and pushes a pointer to it.
	LiteralArray
	// AddInt pops two ints, pushes their sum.
	AddInt
	// SubInt pops two ints (a, b in push order), pushes a - b.
	SubInt
	// MulInt pops two ints, pushes their product.
	MulInt
	// DivInt pops two ints (a, b), pushes a / b.
	DivInt
	// AddFloat pops two floats, pushes their sum.
	AddFloat
	// SubFloat pops two floats (a, b), pushes a - b.
	SubFloat
	// MulFloat pops two floats, pushes their product.
	MulFloat
	// DivFloat pops two floats (a, b), pushes a / b.
	DivFloat
	// CopyLast duplicates the top-of-stack value.
	CopyLast
	// Call invokes a registered host function by name (an inline
	// InputString operand), with the function's declared input count
	// popped from the stack and a pointer to its output pushed back.
	Call
)

func (i Instruction) String() string {
	switch i {
	case Pass:
		return "Pass"
	case LiteralInt:
		return "LiteralInt"
	case LiteralFloat:
		return "LiteralFloat"
	case LiteralPtr:
		return "LiteralPtr"
	case LiteralArray:
		return "LiteralArray"
	case AddInt:
		return "AddInt"
	case SubInt:
		return "SubInt"
	case MulInt:
		return "MulInt"
	case DivInt:
		return "DivInt"
	case AddFloat:
		return "AddFloat"
	case SubFloat:
		return "SubFloat"
	case MulFloat:
		return "MulFloat"
	case DivFloat:
		return "DivFloat"
	case CopyLast:
		return "CopyLast"
	case Call:
		return "Call"
	default:
		return fmt.Sprintf("Instruction(%d)", uint8(i))
	}
}

// InputPerInstruction returns the number of graph-edge inputs a node
// compiling to this instruction requires, or (0, false) for
// instructions whose input arity is not fixed at compile time (Call
// and LiteralArray, whose arity is a property of the registered
// function or the literal's element count rather than of the
// instruction itself).
func InputPerInstruction(i Instruction) (int, bool) {
	switch i {
	case Pass, LiteralInt, LiteralFloat, LiteralPtr, CopyLast:
		return 0, true
	case AddInt, SubInt, MulInt, DivInt, AddFloat, SubFloat, MulFloat, DivFloat:
		return 2, true
	case Call, LiteralArray:
		return 0, false
	default:
		return 0, true
	}
}
