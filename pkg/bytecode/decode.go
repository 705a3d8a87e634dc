package bytecode

import (
	"fmt"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// Method is a fully decoded instruction stream plus the exception table,
// rewritten so every branch target is an absolute index into Instructions
// rather than a byte offset.
type Method struct {
	Instructions []Instruction
	MaxStack     int
	MaxLocals    int
	Exceptions   []ExceptionEntry

	// byteToIndex maps an original bytecode byte offset to its Instructions
	// index, kept around for exception-table and line-number translation
	// that happens after decode (e.g. mapping a thrown PC to a handler).
	byteToIndex map[int]int
}

// ExceptionEntry mirrors classfile.RawExceptionEntry but with StartPC/EndPC/
// HandlerPC already translated to Instructions indices.
type ExceptionEntry struct {
	Start, End, Handler int
	CatchType           string // "" = catch-all (finally)
}

// IndexForByteOffset returns the decoded instruction index for a raw
// bytecode byte offset, or false if no instruction starts at that offset.
func (m *Method) IndexForByteOffset(off int) (int, bool) {
	idx, ok := m.byteToIndex[off]
	return idx, ok
}

// unsupportedOpcode names opcodes the decoder recognizes but refuses to
// decode a method containing, because they require control-flow machinery
// (subroutines, jump tables, monitor stacks) this engine does not model.
type unsupportedOpcode struct {
	opcode byte
	offset int
}

func (e *unsupportedOpcode) Error() string {
	return fmt.Sprintf("unsupported opcode 0x%02X at offset %d", e.opcode, e.offset)
}

// Decode translates a method's raw Code attribute into the instruction IR.
// pool is the class's already-cooked constant pool, used only to resolve
// exception-table catch types to class names; ldc/ldc_w/ldc2_w operands are
// kept as raw pool indices and not checked here.
func Decode(code *classfile.RawCode, pool classfile.Pool) (*Method, error) {
	raw := code.Code
	n := len(raw)

	byteToIndex := make(map[int]int, n)
	var instrs []Instruction

	// pendingBranches records (instruction slice index, raw target byte
	// offset) pairs to resolve once every byte offset has an index.
	type pendingBranch struct {
		slot   int
		target int
	}
	var pending []pendingBranch

	pc := 0
	for pc < n {
		offset := pc
		op := raw[pc]
		pc++

		byteToIndex[offset] = len(instrs)

		readU8 := func() uint8 {
			v := raw[pc]
			pc++
			return v
		}
		readI8 := func() int8 { return int8(readU8()) }
		readU16 := func() uint16 {
			v := uint16(raw[pc])<<8 | uint16(raw[pc+1])
			pc += 2
			return v
		}
		readI16 := func() int16 { return int16(readU16()) }
		readI32 := func() int32 {
			v := int32(raw[pc])<<24 | int32(raw[pc+1])<<16 | int32(raw[pc+2])<<8 | int32(raw[pc+3])
			pc += 4
			return v
		}

		in := Instruction{ByteOffset: offset}

		switch op {
		case OpcodeNop:
			in.Op = OpNop
		case OpcodeAconstNull:
			in.Op = OpPushNull
		case OpcodeIconstM1, OpcodeIconst0, OpcodeIconst1, OpcodeIconst2, OpcodeIconst3, OpcodeIconst4, OpcodeIconst5:
			in.Op = OpPushInt
			in.Value = int32(op) - int32(OpcodeIconst0)
		case OpcodeLconst0, OpcodeLconst1:
			in.Op = OpPushLong
			in.Value64 = int64(op) - int64(OpcodeLconst0)
		case OpcodeFconst0, OpcodeFconst1, OpcodeFconst2:
			in.Op = OpPushFloat
			in.FValue = float32(int(op) - OpcodeFconst0)
		case OpcodeDconst0, OpcodeDconst1:
			in.Op = OpPushDouble
			in.DValue = float64(int(op) - OpcodeDconst0)
		case OpcodeBipush:
			in.Op = OpPushInt
			in.Value = int32(readI8())
		case OpcodeSipush:
			in.Op = OpPushInt
			in.Value = int32(readI16())
		case OpcodeLdc:
			in.Op = OpLoadConst
			in.ConstRef = uint16(readU8())
		case OpcodeLdcW, OpcodeLdc2W:
			in.Op = OpLoadConst
			in.ConstRef = readU16()

		case OpcodeIload, OpcodeFload, OpcodeAload:
			in.Op, in.Index = OpLoad, int(readU8())
			in.Type = loadKind(op)
		case OpcodeLload, OpcodeDload:
			in.Op, in.Index = OpLoad, int(readU8())
			in.Type = loadKind(op)
		case OpcodeIload0, OpcodeIload1, OpcodeIload2, OpcodeIload3:
			in.Op, in.Index, in.Type = OpLoad, int(op)-OpcodeIload0, VKInt
		case OpcodeLload0, OpcodeLload1, OpcodeLload2, OpcodeLload3:
			in.Op, in.Index, in.Type = OpLoad, int(op)-OpcodeLload0, VKLong
		case OpcodeFload0, OpcodeFload1, OpcodeFload2, OpcodeFload3:
			in.Op, in.Index, in.Type = OpLoad, int(op)-OpcodeFload0, VKFloat
		case OpcodeDload0, OpcodeDload1, OpcodeDload2, OpcodeDload3:
			in.Op, in.Index, in.Type = OpLoad, int(op)-OpcodeDload0, VKDouble
		case OpcodeAload0, OpcodeAload1, OpcodeAload2, OpcodeAload3:
			in.Op, in.Index, in.Type = OpLoad, int(op)-OpcodeAload0, VKRef

		case OpcodeIstore, OpcodeFstore, OpcodeLstore, OpcodeDstore, OpcodeAstore:
			in.Op, in.Index = OpStore, int(readU8())
			in.Type = loadKind(op)
		case OpcodeIstore0, OpcodeIstore1, OpcodeIstore2, OpcodeIstore3:
			in.Op, in.Index, in.Type = OpStore, int(op)-OpcodeIstore0, VKInt
		case OpcodeLstore0, OpcodeLstore1, OpcodeLstore2, OpcodeLstore3:
			in.Op, in.Index, in.Type = OpStore, int(op)-OpcodeLstore0, VKLong
		case OpcodeFstore0, OpcodeFstore1, OpcodeFstore2, OpcodeFstore3:
			in.Op, in.Index, in.Type = OpStore, int(op)-OpcodeFstore0, VKFloat
		case OpcodeDstore0, OpcodeDstore1, OpcodeDstore2, OpcodeDstore3:
			in.Op, in.Index, in.Type = OpStore, int(op)-OpcodeDstore0, VKDouble
		case OpcodeAstore0, OpcodeAstore1, OpcodeAstore2, OpcodeAstore3:
			in.Op, in.Index, in.Type = OpStore, int(op)-OpcodeAstore0, VKRef

		case OpcodeIaload:
			in.Op, in.Type = OpArrayLoad, VKInt
		case OpcodeLaload:
			in.Op, in.Type = OpArrayLoad, VKLong
		case OpcodeFaload:
			in.Op, in.Type = OpArrayLoad, VKFloat
		case OpcodeDaload:
			in.Op, in.Type = OpArrayLoad, VKDouble
		case OpcodeAaload:
			in.Op, in.Type = OpArrayLoad, VKRef
		case OpcodeBaload:
			in.Op, in.Type = OpArrayLoad, VKByte
		case OpcodeCaload:
			in.Op, in.Type = OpArrayLoad, VKChar
		case OpcodeSaload:
			in.Op, in.Type = OpArrayLoad, VKShort

		case OpcodeIastore:
			in.Op, in.Type = OpArrayStore, VKInt
		case OpcodeLastore:
			in.Op, in.Type = OpArrayStore, VKLong
		case OpcodeFastore:
			in.Op, in.Type = OpArrayStore, VKFloat
		case OpcodeDastore:
			in.Op, in.Type = OpArrayStore, VKDouble
		case OpcodeAastore:
			in.Op, in.Type = OpArrayStore, VKRef
		case OpcodeBastore:
			in.Op, in.Type = OpArrayStore, VKByte
		case OpcodeCastore:
			in.Op, in.Type = OpArrayStore, VKChar
		case OpcodeSastore:
			in.Op, in.Type = OpArrayStore, VKShort

		case OpcodePop:
			in.Op = OpPop
		case OpcodePop2:
			in.Op = OpPop2
		case OpcodeDup:
			in.Op = OpDup
		case OpcodeDupX1:
			in.Op = OpDupX1
		case OpcodeDupX2:
			in.Op = OpDupX2
		case OpcodeDup2:
			in.Op = OpDup2
		case OpcodeDup2X1:
			in.Op = OpDup2X1
		case OpcodeDup2X2:
			in.Op = OpDup2X2
		case OpcodeSwap:
			in.Op = OpSwap

		case OpcodeIadd:
			in.Op, in.Type = OpAdd, VKInt
		case OpcodeLadd:
			in.Op, in.Type = OpAdd, VKLong
		case OpcodeFadd:
			in.Op, in.Type = OpAdd, VKFloat
		case OpcodeDadd:
			in.Op, in.Type = OpAdd, VKDouble
		case OpcodeIsub:
			in.Op, in.Type = OpSub, VKInt
		case OpcodeLsub:
			in.Op, in.Type = OpSub, VKLong
		case OpcodeFsub:
			in.Op, in.Type = OpSub, VKFloat
		case OpcodeDsub:
			in.Op, in.Type = OpSub, VKDouble
		case OpcodeImul:
			in.Op, in.Type = OpMul, VKInt
		case OpcodeLmul:
			in.Op, in.Type = OpMul, VKLong
		case OpcodeFmul:
			in.Op, in.Type = OpMul, VKFloat
		case OpcodeDmul:
			in.Op, in.Type = OpMul, VKDouble
		case OpcodeIdiv:
			in.Op, in.Type = OpDiv, VKInt
		case OpcodeLdiv:
			in.Op, in.Type = OpDiv, VKLong
		case OpcodeFdiv:
			in.Op, in.Type = OpDiv, VKFloat
		case OpcodeDdiv:
			in.Op, in.Type = OpDiv, VKDouble
		case OpcodeIrem:
			in.Op, in.Type = OpRem, VKInt
		case OpcodeLrem:
			in.Op, in.Type = OpRem, VKLong
		case OpcodeFrem:
			in.Op, in.Type = OpRem, VKFloat
		case OpcodeDrem:
			in.Op, in.Type = OpRem, VKDouble
		case OpcodeIneg:
			in.Op, in.Type = OpNeg, VKInt
		case OpcodeLneg:
			in.Op, in.Type = OpNeg, VKLong
		case OpcodeFneg:
			in.Op, in.Type = OpNeg, VKFloat
		case OpcodeDneg:
			in.Op, in.Type = OpNeg, VKDouble

		case OpcodeIshl:
			in.Op, in.Type = OpShl, VKInt
		case OpcodeLshl:
			in.Op, in.Type = OpShl, VKLong
		case OpcodeIshr:
			in.Op, in.Type = OpShr, VKInt
		case OpcodeLshr:
			in.Op, in.Type = OpShr, VKLong
		case OpcodeIushr:
			in.Op, in.Type = OpUshr, VKInt
		case OpcodeLushr:
			in.Op, in.Type = OpUshr, VKLong
		case OpcodeIand:
			in.Op, in.Type = OpAnd, VKInt
		case OpcodeLand:
			in.Op, in.Type = OpAnd, VKLong
		case OpcodeIor:
			in.Op, in.Type = OpOr, VKInt
		case OpcodeLor:
			in.Op, in.Type = OpOr, VKLong
		case OpcodeIxor:
			in.Op, in.Type = OpXor, VKInt
		case OpcodeLxor:
			in.Op, in.Type = OpXor, VKLong

		case OpcodeIinc:
			in.Op = OpIinc
			in.Index = int(readU8())
			in.Value = int32(readI8())

		case OpcodeI2l:
			in.Op, in.From, in.To = OpConvert, NumInt, NumLong
		case OpcodeI2f:
			in.Op, in.From, in.To = OpConvert, NumInt, NumFloat
		case OpcodeI2d:
			in.Op, in.From, in.To = OpConvert, NumInt, NumDouble
		case OpcodeL2i:
			in.Op, in.From, in.To = OpConvert, NumLong, NumInt
		case OpcodeL2f:
			in.Op, in.From, in.To = OpConvert, NumLong, NumFloat
		case OpcodeL2d:
			in.Op, in.From, in.To = OpConvert, NumLong, NumDouble
		case OpcodeF2i:
			in.Op, in.From, in.To = OpConvert, NumFloat, NumInt
		case OpcodeF2l:
			in.Op, in.From, in.To = OpConvert, NumFloat, NumLong
		case OpcodeF2d:
			in.Op, in.From, in.To = OpConvert, NumFloat, NumDouble
		case OpcodeD2i:
			in.Op, in.From, in.To = OpConvert, NumDouble, NumInt
		case OpcodeD2l:
			in.Op, in.From, in.To = OpConvert, NumDouble, NumLong
		case OpcodeD2f:
			in.Op, in.From, in.To = OpConvert, NumDouble, NumFloat
		case OpcodeI2b:
			in.Op, in.Type = OpConvert, VKByte
		case OpcodeI2c:
			in.Op, in.Type = OpConvert, VKChar
		case OpcodeI2s:
			in.Op, in.Type = OpConvert, VKShort

		case OpcodeLcmp:
			in.Op = OpLcmp
		case OpcodeFcmpl:
			in.Op = OpFcmpl
		case OpcodeFcmpg:
			in.Op = OpFcmpg
		case OpcodeDcmpl:
			in.Op = OpDcmpl
		case OpcodeDcmpg:
			in.Op = OpDcmpg

		case OpcodeIfeq, OpcodeIfne, OpcodeIflt, OpcodeIfge, OpcodeIfgt, OpcodeIfle:
			in.Op, in.Cmp = OpIfCond, compareFor(op, OpcodeIfeq)
			slot := len(instrs)
			pending = append(pending, pendingBranch{slot, offset + int(readI16())})

		case OpcodeIfIcmpeq, OpcodeIfIcmpne, OpcodeIfIcmplt, OpcodeIfIcmpge, OpcodeIfIcmpgt, OpcodeIfIcmple:
			in.Op, in.Cmp = OpIfICmpCond, compareFor(op, OpcodeIfIcmpeq)
			slot := len(instrs)
			pending = append(pending, pendingBranch{slot, offset + int(readI16())})

		case OpcodeIfAcmpeq, OpcodeIfAcmpne:
			in.Op, in.Cmp = OpIfICmpCond, compareFor(op, OpcodeIfAcmpeq)
			in.Type = VKRef
			slot := len(instrs)
			pending = append(pending, pendingBranch{slot, offset + int(readI16())})

		case OpcodeIfnull:
			in.Op = OpIfNull
			slot := len(instrs)
			pending = append(pending, pendingBranch{slot, offset + int(readI16())})
		case OpcodeIfnonnull:
			in.Op = OpIfNonNull
			slot := len(instrs)
			pending = append(pending, pendingBranch{slot, offset + int(readI16())})

		case OpcodeGoto:
			in.Op = OpGoto
			slot := len(instrs)
			pending = append(pending, pendingBranch{slot, offset + int(readI16())})
		case OpcodeGotoW:
			in.Op = OpGoto
			slot := len(instrs)
			pending = append(pending, pendingBranch{slot, offset + int(readI32())})

		case OpcodeIreturn:
			in.Op, in.Type = OpReturnValue, VKInt
		case OpcodeLreturn:
			in.Op, in.Type = OpReturnValue, VKLong
		case OpcodeFreturn:
			in.Op, in.Type = OpReturnValue, VKFloat
		case OpcodeDreturn:
			in.Op, in.Type = OpReturnValue, VKDouble
		case OpcodeAreturn:
			in.Op, in.Type = OpReturnValue, VKRef
		case OpcodeReturn:
			in.Op = OpReturnVoid

		case OpcodeGetstatic:
			in.Op, in.ConstRef = OpGetStatic, readU16()
		case OpcodePutstatic:
			in.Op, in.ConstRef = OpPutStatic, readU16()
		case OpcodeGetfield:
			in.Op, in.ConstRef = OpGetField, readU16()
		case OpcodePutfield:
			in.Op, in.ConstRef = OpPutField, readU16()

		case OpcodeInvokevirtual:
			in.Op, in.ConstRef = OpInvokeVirtual, readU16()
		case OpcodeInvokespecial:
			in.Op, in.ConstRef = OpInvokeSpecial, readU16()
		case OpcodeInvokestatic:
			in.Op, in.ConstRef = OpInvokeStatic, readU16()
		case OpcodeInvokeinterface:
			in.Op, in.ConstRef = OpInvokeInterface, readU16()
			readU8() // count, historical and redundant
			readU8() // must be 0
		case OpcodeInvokedynamic:
			in.Op, in.ConstRef = OpInvokeDynamic, readU16()
			readU8() // reserved
			readU8() // reserved

		case OpcodeNew:
			in.Op, in.ConstRef = OpNew, readU16()
		case OpcodeNewarray:
			in.Op, in.ArrTag = OpNewArray, ArrayTag(readU8())
		case OpcodeAnewarray:
			in.Op, in.ConstRef = OpANewArray, readU16()
		case OpcodeMultianewarray:
			in.Op, in.ConstRef = OpMultiANewArray, readU16()
			in.Dims = int(readU8())
		case OpcodeArraylength:
			in.Op = OpArrayLength

		case OpcodeCheckcast:
			in.Op, in.ConstRef = OpCheckCast, readU16()
		case OpcodeInstanceof:
			in.Op, in.ConstRef = OpInstanceOf, readU16()
		case OpcodeAthrow:
			in.Op = OpAThrow

		case OpcodeMonitorenter:
			return nil, &unsupportedOpcode{op, offset}
		case OpcodeMonitorexit:
			return nil, &unsupportedOpcode{op, offset}
		case OpcodeJsr, OpcodeJsrW, OpcodeRet, OpcodeTableswitch, OpcodeLookupswitch, OpcodeWide:
			return nil, &unsupportedOpcode{op, offset}

		default:
			return nil, fmt.Errorf("unrecognized opcode 0x%02X at offset %d", op, offset)
		}

		instrs = append(instrs, in)
	}

	// Resolve branch targets now that every byte offset maps to an index.
	for _, p := range pending {
		idx, ok := byteToIndex[p.target]
		if !ok {
			return nil, fmt.Errorf("branch at instruction %d targets byte offset %d, which is not an instruction boundary", p.slot, p.target)
		}
		instrs[p.slot].Target = idx
	}

	exceptions := make([]ExceptionEntry, 0, len(code.Exceptions))
	for _, e := range code.Exceptions {
		startIdx, ok1 := byteToIndex[int(e.StartPC)]
		endIdx, ok2 := byteToIndex[int(e.EndPC)]
		if !ok2 && int(e.EndPC) == n {
			endIdx = len(instrs)
			ok2 = true
		}
		handlerIdx, ok3 := byteToIndex[int(e.HandlerPC)]
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("exception table entry references a non-instruction byte offset")
		}
		catchType := ""
		if e.CatchType != 0 {
			name, err := pool.ClassNameAt(e.CatchType)
			if err != nil {
				return nil, fmt.Errorf("resolving exception catch type: %w", err)
			}
			catchType = name
		}
		exceptions = append(exceptions, ExceptionEntry{
			Start:     startIdx,
			End:       endIdx,
			Handler:   handlerIdx,
			CatchType: catchType,
		})
	}

	return &Method{
		Instructions: instrs,
		MaxStack:     int(code.MaxStack),
		MaxLocals:    int(code.MaxLocals),
		Exceptions:   exceptions,
		byteToIndex:  byteToIndex,
	}, nil
}

func loadKind(op byte) ValueKind {
	switch op {
	case OpcodeIload, OpcodeIstore:
		return VKInt
	case OpcodeLload, OpcodeLstore:
		return VKLong
	case OpcodeFload, OpcodeFstore:
		return VKFloat
	case OpcodeDload, OpcodeDstore:
		return VKDouble
	case OpcodeAload, OpcodeAstore:
		return VKRef
	default:
		return VKInt
	}
}

// compareFor derives the CompareOp from an opcode's position relative to
// the first opcode in its six-opcode eq/ne/lt/ge/gt/le family.
func compareFor(op byte, base byte) CompareOp {
	switch int(op) - int(base) {
	case 0:
		return CmpEQ
	case 1:
		return CmpNE
	case 2:
		return CmpLT
	case 3:
		return CmpGE
	case 4:
		return CmpGT
	default:
		return CmpLE
	}
}

// IsUnsupported reports whether err is the rejection of a recognized but
// unimplemented opcode (jsr/ret/tableswitch/lookupswitch/monitorenter/
// monitorexit/wide).
func IsUnsupported(err error) bool {
	_, ok := err.(*unsupportedOpcode)
	return ok
}
