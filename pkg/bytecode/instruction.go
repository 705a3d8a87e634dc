// Package bytecode defines the decoded instruction IR and the decoder that
// turns a method's raw code bytes into it.
package bytecode

import "sync/atomic"

// CompareOp is the comparison applied by a conditional branch.
type CompareOp int

const (
	CmpEQ CompareOp = iota
	CmpNE
	CmpLT
	CmpGE
	CmpGT
	CmpLE
)

// NumType distinguishes the numeric type an arithmetic/return/conversion
// instruction operates on.
type NumType int

const (
	NumInt NumType = iota
	NumLong
	NumFloat
	NumDouble
)

// ArrayTag identifies the primitive element type of a newarray, matching
// the JVMS §6.5 newarray atype codes.
type ArrayTag uint8

const (
	ArrayBoolean ArrayTag = 4
	ArrayChar    ArrayTag = 5
	ArrayFloat   ArrayTag = 6
	ArrayDouble  ArrayTag = 7
	ArrayByte    ArrayTag = 8
	ArrayShort   ArrayTag = 9
	ArrayInt     ArrayTag = 10
	ArrayLong    ArrayTag = 11
)

// Op enumerates every instruction variant the decoder produces.
type Op int

const (
	OpNop Op = iota
	OpPushNull
	OpPushInt   // Value holds the int32 constant
	OpPushLong  // Value64 holds the int64 constant
	OpPushFloat // FValue holds the float32 constant
	OpPushDouble
	OpLoadConst // ldc/ldc_w/ldc2_w: ConstRef indexes the cooked pool

	OpLoad  // Index = local slot, Type = value kind
	OpStore // Index = local slot, Type = value kind
	OpIinc  // Index = local slot, Value = increment (sign-extended)

	OpPop
	OpPop2
	OpDup
	OpDupX1
	OpDupX2
	OpDup2
	OpDup2X1
	OpDup2X2
	OpSwap

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg
	OpShl
	OpShr
	OpUshr
	OpAnd
	OpOr
	OpXor

	OpConvert // From/To = NumType, or byte/char/short narrowing via Type

	OpLcmp
	OpFcmpl
	OpFcmpg
	OpDcmpl
	OpDcmpg

	OpIfCond     // unary: compares top-of-stack int to 0
	OpIfICmpCond // binary: compares two ints
	OpIfNull
	OpIfNonNull
	OpGoto

	OpReturnVoid
	OpReturnValue // Type = value kind (int/long/float/double/ref)

	OpGetStatic
	OpPutStatic
	OpGetField
	OpPutField

	OpInvokeVirtual
	OpInvokeSpecial
	OpInvokeStatic
	OpInvokeInterface
	OpInvokeDynamic

	OpNew
	OpNewArray      // primitive array, ArrTag set
	OpANewArray     // reference array, ConstRef = element class
	OpMultiANewArray // ConstRef = element class, Dims = depth
	OpArrayLength
	OpArrayLoad  // Type = element kind
	OpArrayStore // Type = element kind

	OpCheckCast
	OpInstanceOf
	OpAThrow
	OpMonitorEnter // never produced: Decode reports monitorenter as unsupported
	OpMonitorExit  // never produced: Decode reports monitorexit as unsupported
)

// ValueKind labels the flavor of value an IOp variant operates on, spanning
// both the primitive numeric kinds and reference types.
type ValueKind int

const (
	VKInt ValueKind = iota
	VKLong
	VKFloat
	VKDouble
	VKRef
	VKByte
	VKChar
	VKShort
	VKBoolean
)

// resolvedCache holds a value an instruction computes on its first
// execution (§9 "Instruction caching" — write-at-most-once, read-many);
// ldc keeps its String or Class object here. A pointer value observed
// non-nil by any goroutine is always fully initialized, since it is
// published only after being built.
type resolvedCache struct {
	ptr atomic.Pointer[any]
}

// Load returns the cached value, or nil if not yet resolved.
func (c *resolvedCache) Load() any {
	p := c.ptr.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Store publishes a resolved value. Concurrent stores of an equivalent
// value are harmless (the interpreter is single-threaded per instruction
// stream, but the cache type itself doesn't assume that).
func (c *resolvedCache) Store(v any) {
	c.ptr.Store(&v)
}

// Instruction is one decoded opcode with its operands already resolved
// relative to the constant pool and branch targets resolved to absolute
// decoded-stream indices.
type Instruction struct {
	Op Op

	// Byte offset of the original opcode, kept for exception-table and
	// line-number lookups.
	ByteOffset int

	Value    int32
	Value64  int64
	FValue   float32
	DValue   float64
	Index    int // local variable index
	ConstRef uint16 // constant pool index
	Target   int    // absolute instruction index for branches
	Cmp      CompareOp
	Type     ValueKind
	From, To NumType
	ArrTag   ArrayTag
	Dims     int // multianewarray dimension count

	cache resolvedCache
}

// Cached returns the previously resolved value for this instruction, if any.
func (in *Instruction) Cached() any { return in.cache.Load() }

// SetCached publishes a resolved value for this instruction.
func (in *Instruction) SetCached(v any) { in.cache.Store(v) }
