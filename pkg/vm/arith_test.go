package vm

import (
	"math"
	"testing"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/heap"
)

func newTestFrame(stackSize int) *Frame {
	return &Frame{
		Stack:      make([]int32, stackSize),
		StackIsRef: make([]bool, stackSize),
		Locals:     make([]int32, stackSize),
		LocalIsRef: make([]bool, stackSize),
	}
}

func newTestMachine() *Machine {
	return &Machine{Heap: heap.New()}
}

func TestIntDivisionByZeroThrows(t *testing.T) {
	m := newTestMachine()
	f := newTestFrame(4)
	f.Push(5)
	f.Push(0)
	err := m.execArith(f, &bytecode.Instruction{Op: bytecode.OpDiv, Type: bytecode.VKInt})
	if err == nil {
		t.Fatal("expected ArithmeticException, got nil")
	}
	jexc, ok := err.(*JavaException)
	if !ok {
		t.Fatalf("expected *JavaException, got %T: %v", err, err)
	}
	if m.classNameOf(jexc.Ref) != "java/lang/ArithmeticException" {
		t.Errorf("exception class = %s, want java/lang/ArithmeticException", m.classNameOf(jexc.Ref))
	}
}

func TestIntMinDivByMinusOneWrapsInsteadOfPanicking(t *testing.T) {
	m := newTestMachine()
	f := newTestFrame(4)
	f.Push(math.MinInt32)
	f.Push(-1)
	if err := m.execArith(f, &bytecode.Instruction{Op: bytecode.OpDiv, Type: bytecode.VKInt}); err != nil {
		t.Fatalf("execArith: %v", err)
	}
	if got := f.Pop(); got != math.MinInt32 {
		t.Errorf("MinInt32 / -1 = %d, want %d (wraparound)", got, int32(math.MinInt32))
	}
}

func TestLongRemainderByMinusOneIsZero(t *testing.T) {
	m := newTestMachine()
	f := newTestFrame(4)
	f.PushLong(math.MinInt64)
	f.PushLong(-1)
	if err := m.execArith(f, &bytecode.Instruction{Op: bytecode.OpRem, Type: bytecode.VKLong}); err != nil {
		t.Fatalf("execArith: %v", err)
	}
	if got := f.PopLong(); got != 0 {
		t.Errorf("MinInt64 %% -1 = %d, want 0", got)
	}
}

func TestFloatRemainderMatchesJavaFrem(t *testing.T) {
	f := newTestFrame(4)
	f.Push(int32(floatBits(5.5)))
	f.Push(int32(floatBits(2)))
	execArithFloat := func() error {
		m := newTestMachine()
		return m.execArith(f, &bytecode.Instruction{Op: bytecode.OpRem, Type: bytecode.VKFloat})
	}
	if err := execArithFloat(); err != nil {
		t.Fatalf("execArith: %v", err)
	}
	got := floatFromBits(uint32(f.Pop()))
	want := float32(math.Mod(5.5, 2))
	if got != want {
		t.Errorf("5.5f %% 2f = %v, want %v", got, want)
	}
}

func TestShiftMasksCountPerJVMS(t *testing.T) {
	f := newTestFrame(4)
	f.Push(1)
	f.Push(33) // masked to 1 for int shifts (&0x1F)
	execShift(f, &bytecode.Instruction{Op: bytecode.OpShl, Type: bytecode.VKInt})
	if got := f.Pop(); got != 2 {
		t.Errorf("1 << 33 (masked) = %d, want 2", got)
	}
}

func TestConvertFloatNaNToIntIsZero(t *testing.T) {
	f := newTestFrame(4)
	f.Push(int32(floatBits(float32(math.NaN()))))
	execConvert(f, &bytecode.Instruction{From: bytecode.NumFloat, To: bytecode.NumInt})
	if got := f.Pop(); got != 0 {
		t.Errorf("NaN -> int = %d, want 0", got)
	}
}

func TestConvertDoubleOutOfRangeClampsToIntMax(t *testing.T) {
	f := newTestFrame(4)
	f.PushDouble(doubleBits(1e30))
	execConvert(f, &bytecode.Instruction{From: bytecode.NumDouble, To: bytecode.NumInt})
	if got := f.Pop(); got != math.MaxInt32 {
		t.Errorf("1e30 -> int = %d, want MaxInt32", got)
	}
}

func TestFcmpgAndFcmplDisagreeOnNaN(t *testing.T) {
	fg := newTestFrame(4)
	fg.Push(int32(floatBits(float32(math.NaN()))))
	fg.Push(int32(floatBits(1)))
	execFcmp(fg, &bytecode.Instruction{Op: bytecode.OpFcmpg})
	if got := fg.Pop(); got != 1 {
		t.Errorf("fcmpg with NaN = %d, want 1", got)
	}

	fl := newTestFrame(4)
	fl.Push(int32(floatBits(float32(math.NaN()))))
	fl.Push(int32(floatBits(1)))
	execFcmp(fl, &bytecode.Instruction{Op: bytecode.OpFcmpl})
	if got := fl.Pop(); got != -1 {
		t.Errorf("fcmpl with NaN = %d, want -1", got)
	}
}
