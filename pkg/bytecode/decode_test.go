package bytecode

import (
	"testing"

	"github.com/daimatz/gojvm/pkg/classfile"
)

func TestDecodeSimpleArithmetic(t *testing.T) {
	// iconst_1; iconst_2; iadd; ireturn
	code := &classfile.RawCode{
		MaxStack:  2,
		MaxLocals: 1,
		Code:      []byte{OpcodeIconst1, OpcodeIconst2, OpcodeIadd, OpcodeIreturn},
	}
	m, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.Instructions) != 4 {
		t.Fatalf("len(Instructions) = %d, want 4", len(m.Instructions))
	}
	if m.Instructions[2].Op != OpAdd || m.Instructions[2].Type != VKInt {
		t.Errorf("instr 2 = %+v, want int add", m.Instructions[2])
	}
	if m.Instructions[3].Op != OpReturnValue || m.Instructions[3].Type != VKInt {
		t.Errorf("instr 3 = %+v, want int return", m.Instructions[3])
	}
}

func TestDecodeBranchResolvesAbsoluteIndex(t *testing.T) {
	// 0: iconst_0
	// 1: ifeq -> offset 1+5=6 (goto target)
	// 4: iconst_1
	// 5: ireturn
	// 6: iconst_0
	// 7: ireturn
	code := &classfile.RawCode{
		MaxStack:  1,
		MaxLocals: 0,
		Code: []byte{
			OpcodeIconst0,
			OpcodeIfeq, 0x00, 0x05, // offset of ifeq is byte 1; target = 1+5 = 6
			OpcodeIconst1,
			OpcodeIreturn,
			OpcodeIconst0,
			OpcodeIreturn,
		},
	}
	m, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Instructions[1].Op != OpIfCond || m.Instructions[1].Cmp != CmpEQ {
		t.Fatalf("instr 1 = %+v, want ifeq", m.Instructions[1])
	}
	wantTarget := 4 // instruction index of the iconst_0 at byte offset 6
	if m.Instructions[1].Target != wantTarget {
		t.Errorf("branch target index = %d, want %d", m.Instructions[1].Target, wantTarget)
	}
	if m.Instructions[wantTarget].ByteOffset != 6 {
		t.Errorf("target instruction byte offset = %d, want 6", m.Instructions[wantTarget].ByteOffset)
	}
}

func TestDecodeRejectsUnsupportedOpcodes(t *testing.T) {
	for _, op := range []byte{OpcodeJsr, OpcodeRet, OpcodeTableswitch, OpcodeLookupswitch, OpcodeMonitorenter, OpcodeMonitorexit, OpcodeWide} {
		code := &classfile.RawCode{Code: []byte{op, 0, 0, 0, 0}}
		_, err := Decode(code, nil)
		if err == nil {
			t.Errorf("opcode 0x%02X: expected rejection, got nil error", op)
			continue
		}
		if !IsUnsupported(err) {
			t.Errorf("opcode 0x%02X: error %v is not classified unsupported", op, err)
		}
	}
}

func TestDecodeExceptionTableTranslatedToIndices(t *testing.T) {
	// 0: iconst_0 (try start)
	// 1: ireturn  (last instruction inside the try range)
	// 2: pop      (handler; also the exclusive try end)
	// 3: iconst_0
	// 4: ireturn
	code := &classfile.RawCode{
		Code: []byte{OpcodeIconst0, OpcodeIreturn, OpcodePop, OpcodeIconst0, OpcodeIreturn},
		Exceptions: []classfile.RawExceptionEntry{
			{StartPC: 0, EndPC: 2, HandlerPC: 2, CatchType: 0},
		},
	}
	m, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.Exceptions) != 1 {
		t.Fatalf("len(Exceptions) = %d, want 1", len(m.Exceptions))
	}
	e := m.Exceptions[0]
	if e.Start != 0 || e.End != 2 || e.Handler != 2 || e.CatchType != "" {
		t.Errorf("exception entry = %+v, want {0 2 2 \"\"}", e)
	}
}

func TestDecodeLdcWide(t *testing.T) {
	code := &classfile.RawCode{
		Code: []byte{OpcodeLdcW, 0x01, 0x02, OpcodeAreturn},
	}
	m, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Instructions[0].Op != OpLoadConst || m.Instructions[0].ConstRef != 0x0102 {
		t.Errorf("instr 0 = %+v, want ldc_w ConstRef=0x0102", m.Instructions[0])
	}
}

func TestDecodeInvokeDynamicSkipsReservedBytes(t *testing.T) {
	code := &classfile.RawCode{
		Code: []byte{OpcodeInvokedynamic, 0x00, 0x03, 0x00, 0x00, OpcodeAreturn},
	}
	m, err := Decode(code, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.Instructions) != 2 {
		t.Fatalf("len(Instructions) = %d, want 2", len(m.Instructions))
	}
	if m.Instructions[0].Op != OpInvokeDynamic || m.Instructions[0].ConstRef != 3 {
		t.Errorf("instr 0 = %+v", m.Instructions[0])
	}
	if m.Instructions[1].ByteOffset != 5 {
		t.Errorf("second instruction byte offset = %d, want 5", m.Instructions[1].ByteOffset)
	}
}
