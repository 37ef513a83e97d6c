package vm

import "github.com/caolo/simcore/bytecode"

// Value is a tagged stack/arena scalar. Only the field matching Tag is
// meaningful.
type Value struct {
	Tag   bytecode.ValueTag
	Int   int64
	Float float64
	Ptr   bytecode.TPointer
}

func intValue(v int64) Value     { return Value{Tag: bytecode.TagInt, Int: v} }
func floatValue(v float64) Value { return Value{Tag: bytecode.TagFloat, Float: v} }
func ptrValue(v bytecode.TPointer) Value {
	return Value{Tag: bytecode.TagPointer, Ptr: v}
}
