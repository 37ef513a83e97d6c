package compiler

import (
	"sort"

	"github.com/caolo/simcore/bytecode"
)

// FunctionSignature describes a host function a Call node may invoke,
// for arity validation at compile time.
type FunctionSignature struct {
	Inputs int
}

// Compiler compiles CompilationUnits into CompiledPrograms. Functions
// supplies the arity of every host function Call nodes in the unit may
// reference; it is normally populated from the running scriptapi
// Schema so a script can never compile a call to a function the VM
// will not recognize at run time.
type Compiler struct {
	Functions map[string]FunctionSignature
}

// New returns a Compiler that validates Call nodes against functions.
func New(functions map[string]FunctionSignature) *Compiler {
	return &Compiler{Functions: functions}
}

// Compile lowers unit into a Program: one independent CompiledProgram
// per root node (nodes never referenced as another node's input), in
// ascending root NodeId order. Each root gets its own compilation
// pass and its own bytecode buffer — nothing is shared across roots —
// so a VM can run any one of them start-to-end without ever falling
// into another root's instructions. A unit with no nodes is itself an
// error since there would be nothing to run.
func (c *Compiler) Compile(unit *CompilationUnit) (*Program, error) {
	if len(unit.Nodes) == 0 {
		return nil, newError(EmptyUnit, 0, "compilation unit has no nodes")
	}

	referenced := make(map[NodeId]bool, len(unit.Nodes))
	for id, inputs := range unit.Inputs {
		if _, ok := unit.Nodes[id]; !ok {
			return nil, newError(UnknownInput, id, "input list refers to node %d which does not have its own entry", id)
		}
		for _, in := range inputs {
			if _, ok := unit.Nodes[in]; !ok {
				return nil, newError(UnknownInput, id, "references unknown input node %d", in)
			}
			referenced[in] = true
		}
	}

	var roots []NodeId
	for id := range unit.Nodes {
		if !referenced[id] {
			roots = append(roots, id)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	programs := make([]*CompiledProgram, 0, len(roots))
	reached := make(map[NodeId]bool, len(unit.Nodes))
	for _, root := range roots {
		p := &compilation{
			unit:      unit,
			functions: c.Functions,
			offsets:   make(map[NodeId]uint32, len(unit.Nodes)),
			inStack:   make(map[NodeId]bool, len(unit.Nodes)),
			done:      make(map[NodeId]bool, len(unit.Nodes)),
		}
		if _, err := p.compileNode(root); err != nil {
			return nil, err
		}
		programs = append(programs, &CompiledProgram{RootId: root, Bytecode: p.out})
		for id := range p.done {
			reached[id] = true
		}
	}

	// Every node is a root or some node's input, so a node no root
	// reaches belongs to or feeds a cycle; report the lowest such id.
	var unreached []NodeId
	for id := range unit.Nodes {
		if !reached[id] {
			unreached = append(unreached, id)
		}
	}
	if len(unreached) > 0 {
		sort.Slice(unreached, func(i, j int) bool { return unreached[i] < unreached[j] })
		return nil, newError(Cycle, unreached[0], "node %d is not reachable from any root; it belongs to or feeds a cycle", unreached[0])
	}

	return &Program{Roots: programs}, nil
}

// compilation carries the mutable state of a single Compile call.
type compilation struct {
	unit      *CompilationUnit
	functions map[string]FunctionSignature
	out       []byte
	offsets   map[NodeId]uint32
	inStack   map[NodeId]bool
	done      map[NodeId]bool
}

// compileNode emits node's inputs (recursively, post-order) followed
// by node's own instruction, returning the byte offset the node's
// first emitted byte landed at. Nodes reachable from more than one
// parent are compiled once and revisited by offset, matching a DAG's
// single-definition semantics rather than duplicating shared subtrees.
func (p *compilation) compileNode(id NodeId) (uint32, error) {
	if p.done[id] {
		return p.offsets[id], nil
	}
	if p.inStack[id] {
		return 0, newError(Cycle, id, "node %d participates in a cycle", id)
	}
	p.inStack[id] = true
	defer delete(p.inStack, id)

	node, ok := p.unit.Nodes[id]
	if !ok {
		return 0, newError(UnknownInput, id, "node %d not found", id)
	}
	inputs := p.unit.Inputs[id]

	if err := p.validateArity(id, node, inputs); err != nil {
		return 0, err
	}

	for _, in := range inputs {
		if _, err := p.compileNode(in); err != nil {
			return 0, err
		}
	}

	offset := uint32(len(p.out))
	p.offsets[id] = offset
	p.done[id] = true

	if err := p.emit(id, node); err != nil {
		return 0, err
	}
	return offset, nil
}

func (p *compilation) validateArity(id NodeId, node AstNode, inputs []NodeId) error {
	want, fixed := bytecode.InputPerInstruction(node.Instruction)
	if node.Instruction == bytecode.Call {
		sig, ok := p.functions[node.FunctionName]
		if !ok {
			return newError(ValueTagMismatch, id, "call to unknown function %q", node.FunctionName)
		}
		want, fixed = sig.Inputs, true
	}
	if node.Instruction == bytecode.LiteralArray {
		return nil
	}
	if fixed && len(inputs) != want {
		return newError(InvalidArity, id, "instruction %s requires %d inputs, got %d", node.Instruction, want, len(inputs))
	}
	return nil
}

func (p *compilation) emit(id NodeId, node AstNode) error {
	p.out = append(p.out, byte(node.Instruction))
	switch node.Instruction {
	case bytecode.LiteralInt:
		if node.Literal.Tag != bytecode.TagInt {
			return newError(ValueTagMismatch, id, "LiteralInt node missing int literal")
		}
		p.out = bytecode.EncodeInt64(p.out, node.Literal.Int)
	case bytecode.LiteralFloat:
		if node.Literal.Tag != bytecode.TagFloat {
			return newError(ValueTagMismatch, id, "LiteralFloat node missing float literal")
		}
		p.out = bytecode.EncodeFloat64(p.out, node.Literal.Float)
	case bytecode.LiteralPtr:
		if node.Literal.Tag != bytecode.TagPointer {
			return newError(ValueTagMismatch, id, "LiteralPtr node missing pointer literal")
		}
		p.out = bytecode.EncodePointer(p.out, node.Literal.Ptr)
	case bytecode.LiteralArray:
		if node.Literal.Tag != bytecode.TagArray {
			return newError(MissingValue, id, "LiteralArray node missing array literal")
		}
		p.out = bytecode.EncodeInt64(p.out, int64(len(node.Literal.Array)))
		for _, v := range node.Literal.Array {
			p.out = bytecode.EncodeInt64(p.out, v)
		}
	case bytecode.Call:
		if node.FunctionName == "" {
			return newError(MissingValue, id, "Call node missing function name")
		}
		s := bytecode.InputString{Value: node.FunctionName}
		p.out = s.Encode(p.out)
	case bytecode.Pass, bytecode.CopyLast,
		bytecode.AddInt, bytecode.SubInt, bytecode.MulInt, bytecode.DivInt,
		bytecode.AddFloat, bytecode.SubFloat, bytecode.MulFloat, bytecode.DivFloat:
		// no inline operand
	default:
		return newError(ValueTagMismatch, id, "unknown instruction %s", node.Instruction)
	}
	return nil
}
