package vm

import (
	"math"

	"github.com/daimatz/gojvm/pkg/bytecode"
)

func (m *Machine) execArith(f *Frame, in *bytecode.Instruction) error {
	switch in.Type {
	case bytecode.VKInt:
		b, a := f.Pop(), f.Pop()
		v, err := intArith(in.Op, a, b, m)
		if err != nil {
			return err
		}
		f.Push(v)
	case bytecode.VKLong:
		b, a := f.PopLong(), f.PopLong()
		v, err := longArith(in.Op, a, b, m)
		if err != nil {
			return err
		}
		f.PushLong(v)
	case bytecode.VKFloat:
		b := floatFromBits(uint32(f.Pop()))
		a := floatFromBits(uint32(f.Pop()))
		f.Push(int32(floatBits(floatArith(in.Op, a, b))))
	case bytecode.VKDouble:
		b := doubleFromBits(f.PopDoubleBits())
		a := doubleFromBits(f.PopDoubleBits())
		f.PushDouble(doubleBits(doubleArith(in.Op, a, b)))
	}
	return nil
}

func intArith(op bytecode.Op, a, b int32, m *Machine) (int32, error) {
	switch op {
	case bytecode.OpAdd:
		return a + b, nil
	case bytecode.OpSub:
		return a - b, nil
	case bytecode.OpMul:
		return a * b, nil
	case bytecode.OpDiv:
		if b == 0 {
			return 0, m.throwNew("java/lang/ArithmeticException", "/ by zero")
		}
		if a == -2147483648 && b == -1 {
			return a, nil // overflow wraps, matches Java's int division
		}
		return a / b, nil
	default: // OpRem
		if b == 0 {
			return 0, m.throwNew("java/lang/ArithmeticException", "/ by zero")
		}
		if a == -2147483648 && b == -1 {
			return 0, nil
		}
		return a % b, nil
	}
}

func longArith(op bytecode.Op, a, b int64, m *Machine) (int64, error) {
	switch op {
	case bytecode.OpAdd:
		return a + b, nil
	case bytecode.OpSub:
		return a - b, nil
	case bytecode.OpMul:
		return a * b, nil
	case bytecode.OpDiv:
		if b == 0 {
			return 0, m.throwNew("java/lang/ArithmeticException", "/ by zero")
		}
		if a == -9223372036854775808 && b == -1 {
			return a, nil
		}
		return a / b, nil
	default: // OpRem
		if b == 0 {
			return 0, m.throwNew("java/lang/ArithmeticException", "/ by zero")
		}
		if a == -9223372036854775808 && b == -1 {
			return 0, nil
		}
		return a % b, nil
	}
}

func floatArith(op bytecode.Op, a, b float32) float32 {
	switch op {
	case bytecode.OpAdd:
		return a + b
	case bytecode.OpSub:
		return a - b
	case bytecode.OpMul:
		return a * b
	case bytecode.OpDiv:
		return a / b
	default: // OpRem
		return float32(math.Mod(float64(a), float64(b)))
	}
}

func doubleArith(op bytecode.Op, a, b float64) float64 {
	switch op {
	case bytecode.OpAdd:
		return a + b
	case bytecode.OpSub:
		return a - b
	case bytecode.OpMul:
		return a * b
	case bytecode.OpDiv:
		return a / b
	default: // OpRem
		return math.Mod(a, b)
	}
}

func execNeg(f *Frame, in *bytecode.Instruction) {
	switch in.Type {
	case bytecode.VKInt:
		f.Push(-f.Pop())
	case bytecode.VKLong:
		f.PushLong(-f.PopLong())
	case bytecode.VKFloat:
		f.Push(int32(floatBits(-floatFromBits(uint32(f.Pop())))))
	case bytecode.VKDouble:
		f.PushDouble(doubleBits(-doubleFromBits(f.PopDoubleBits())))
	}
}

func execShift(f *Frame, in *bytecode.Instruction) {
	if in.Type == bytecode.VKLong {
		shift := f.Pop() & 0x3F
		v := f.PopLong()
		f.PushLong(shiftLong(in.Op, v, shift))
		return
	}
	shift := f.Pop() & 0x1F
	v := f.Pop()
	f.Push(shiftInt(in.Op, v, shift))
}

func shiftInt(op bytecode.Op, v, shift int32) int32 {
	switch op {
	case bytecode.OpShl:
		return v << uint(shift)
	case bytecode.OpShr:
		return v >> uint(shift)
	default: // OpUshr
		return int32(uint32(v) >> uint(shift))
	}
}

func shiftLong(op bytecode.Op, v int64, shift int32) int64 {
	switch op {
	case bytecode.OpShl:
		return v << uint(shift)
	case bytecode.OpShr:
		return v >> uint(shift)
	default: // OpUshr
		return int64(uint64(v) >> uint(shift))
	}
}

func execBitwise(f *Frame, in *bytecode.Instruction) {
	if in.Type == bytecode.VKLong {
		b, a := f.PopLong(), f.PopLong()
		f.PushLong(bitwiseLong(in.Op, a, b))
		return
	}
	b, a := f.Pop(), f.Pop()
	f.Push(bitwiseInt(in.Op, a, b))
}

func bitwiseInt(op bytecode.Op, a, b int32) int32 {
	switch op {
	case bytecode.OpAnd:
		return a & b
	case bytecode.OpOr:
		return a | b
	default:
		return a ^ b
	}
}

func bitwiseLong(op bytecode.Op, a, b int64) int64 {
	switch op {
	case bytecode.OpAnd:
		return a & b
	case bytecode.OpOr:
		return a | b
	default:
		return a ^ b
	}
}

func execConvert(f *Frame, in *bytecode.Instruction) {
	switch in.Type {
	case bytecode.VKByte:
		f.Push(int32(int8(f.Pop())))
		return
	case bytecode.VKChar:
		f.Push(int32(uint16(f.Pop())))
		return
	case bytecode.VKShort:
		f.Push(int32(int16(f.Pop())))
		return
	}

	switch {
	case in.From == bytecode.NumInt && in.To == bytecode.NumLong:
		f.PushLong(int64(f.Pop()))
	case in.From == bytecode.NumInt && in.To == bytecode.NumFloat:
		f.Push(int32(floatBits(float32(f.Pop()))))
	case in.From == bytecode.NumInt && in.To == bytecode.NumDouble:
		f.PushDouble(doubleBits(float64(f.Pop())))
	case in.From == bytecode.NumLong && in.To == bytecode.NumInt:
		f.Push(int32(f.PopLong()))
	case in.From == bytecode.NumLong && in.To == bytecode.NumFloat:
		f.Push(int32(floatBits(float32(f.PopLong()))))
	case in.From == bytecode.NumLong && in.To == bytecode.NumDouble:
		f.PushDouble(doubleBits(float64(f.PopLong())))
	case in.From == bytecode.NumFloat && in.To == bytecode.NumInt:
		f.Push(floatToInt(floatFromBits(uint32(f.Pop()))))
	case in.From == bytecode.NumFloat && in.To == bytecode.NumLong:
		f.PushLong(floatToLong(floatFromBits(uint32(f.Pop()))))
	case in.From == bytecode.NumFloat && in.To == bytecode.NumDouble:
		f.PushDouble(doubleBits(float64(floatFromBits(uint32(f.Pop())))))
	case in.From == bytecode.NumDouble && in.To == bytecode.NumInt:
		f.Push(doubleToInt(doubleFromBits(f.PopDoubleBits())))
	case in.From == bytecode.NumDouble && in.To == bytecode.NumLong:
		f.PushLong(doubleToLong(doubleFromBits(f.PopDoubleBits())))
	case in.From == bytecode.NumDouble && in.To == bytecode.NumFloat:
		f.Push(int32(floatBits(float32(doubleFromBits(f.PopDoubleBits())))))
	}
}

func execFcmp(f *Frame, in *bytecode.Instruction) {
	b := floatFromBits(uint32(f.Pop()))
	a := floatFromBits(uint32(f.Pop()))
	f.Push(cmpWithNaN(float64(a), float64(b), in.Op == bytecode.OpFcmpg))
}

func execDcmp(f *Frame, in *bytecode.Instruction) {
	b := doubleFromBits(f.PopDoubleBits())
	a := doubleFromBits(f.PopDoubleBits())
	f.Push(cmpWithNaN(a, b, in.Op == bytecode.OpDcmpg))
}

// cmpWithNaN implements fcmpl/fcmpg and dcmpl/dcmpg: unordered (either
// operand NaN) yields -1 for the "l" variant, +1 for the "g" variant;
// JVMS §6.5 picks this so that `x < y` and `x > y` both correctly come out
// false when a NaN is involved, regardless of which comparison the
// compiler happened to synthesize from the source `if`.
func cmpWithNaN(a, b float64, nanIsGreater bool) int32 {
	if a != a || b != b { // either is NaN
		if nanIsGreater {
			return 1
		}
		return -1
	}
	return cmp3(a, b)
}

