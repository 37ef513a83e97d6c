// Package compiler turns a directed graph of typed nodes into linear
// stack-machine bytecode via a post-order depth-first walk of each root
// node's input tree.
package compiler

import "github.com/caolo/simcore/bytecode"

// NodeId identifies a node within a CompilationUnit.
type NodeId uint32

// Literal carries the compile-time value of a literal node; exactly
// one field is meaningful, selected by Tag.
type Literal struct {
	Tag    bytecode.ValueTag
	Int    int64
	Float  float64
	Ptr    bytecode.TPointer
	String string
	Array  []int64
}

// AstNode is a single node in the graph: the instruction it compiles
// to, plus its literal payload when the instruction carries one
// inline.
type AstNode struct {
	Instruction bytecode.Instruction
	Literal     Literal
	// FunctionName names the host function a Call node invokes. Only
	// meaningful when Instruction == bytecode.Call.
	FunctionName string
}

// CompilationUnit is the full graph submitted for compilation: every
// node, plus for each node the ordered list of nodes that feed it as
// inputs.
type CompilationUnit struct {
	Nodes  map[NodeId]AstNode
	Inputs map[NodeId][]NodeId
}

// CompiledProgram is one root's independent compiled output: its own
// byte sequence, never sharing bytes with any other root's program. A
// VM runs it start-to-end from offset 0.
type CompiledProgram struct {
	RootId   NodeId
	Bytecode []byte
}

// Program is the full result of compiling a CompilationUnit: one
// CompiledProgram per root, in ascending root NodeId order.
type Program struct {
	Roots []*CompiledProgram
}
