package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// classBuilder assembles minimal class-file byte streams for tests without
// pulling in a real compiler — mirrors the teacher's parser_test.go style of
// hand-built byte slices standing in for .class files.
type classBuilder struct {
	buf bytes.Buffer
}

func (b *classBuilder) u8(v uint8)   { b.buf.WriteByte(v) }
func (b *classBuilder) u16(v uint16) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *classBuilder) u32(v uint32) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *classBuilder) raw(p []byte) { b.buf.Write(p) }

func (b *classBuilder) utf8Entry(s string) {
	b.u8(TagUtf8)
	b.u16(uint16(len(s)))
	b.raw([]byte(s))
}

func (b *classBuilder) classEntry(nameIdx uint16) {
	b.u8(TagClass)
	b.u16(nameIdx)
}

// buildMinimalClass builds: magic/version, a constant pool with
// [1]=Utf8("Thing") [2]=Class(1) [3]=Utf8("java/lang/Object") [4]=Class(3),
// access flags, this=2, super=4, no interfaces/fields, no methods (or the
// given extra method bytes), no attributes.
func buildMinimalClass(extraMethods []byte, methodCount uint16) []byte {
	var b classBuilder
	b.u32(classMagic)
	b.u16(0) // minor
	b.u16(61) // major (Java 17)
	b.u16(5) // constant_pool_count = 4 entries + 1
	b.utf8Entry("Thing")
	b.classEntry(1)
	b.utf8Entry("java/lang/Object")
	b.classEntry(3)
	b.u16(AccPublic | AccSuper) // access_flags
	b.u16(2)                    // this_class
	b.u16(4)                    // super_class
	b.u16(0)                    // interfaces_count
	b.u16(0)                    // fields_count
	b.u16(methodCount)          // methods_count
	b.raw(extraMethods)
	b.u16(0) // class attributes_count
	return b.buf.Bytes()
}

func TestParseMinimalClass(t *testing.T) {
	data := buildMinimalClass(nil, 0)
	cf, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	name, err := cf.ClassName()
	if err != nil {
		t.Fatalf("ClassName: %v", err)
	}
	if name != "Thing" {
		t.Errorf("ClassName = %q, want Thing", name)
	}
	super, err := cf.SuperClassName()
	if err != nil {
		t.Fatalf("SuperClassName: %v", err)
	}
	if super != "java/lang/Object" {
		t.Errorf("SuperClassName = %q, want java/lang/Object", super)
	}
}

func TestParseBadMagic(t *testing.T) {
	data := buildMinimalClass(nil, 0)
	data[0] = 0x00
	if _, err := Parse(bytes.NewReader(data)); err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestParseTruncated(t *testing.T) {
	data := buildMinimalClass(nil, 0)
	truncated := data[:len(data)-10]
	if _, err := Parse(bytes.NewReader(truncated)); err == nil {
		t.Error("expected error for truncated class file")
	}
}

func TestCookConstantPoolLongTakesTwoSlots(t *testing.T) {
	var b classBuilder
	b.u8(TagLong)
	b.u32(0)
	b.u32(42)
	b.u8(TagUtf8)
	b.u16(1)
	b.raw([]byte("x"))
	raw, err := parseRawPool(bytes.NewReader(b.buf.Bytes()), 4) // entries at 1 (long,2 slots), 3 (utf8)
	if err != nil {
		t.Fatalf("parseRawPool: %v", err)
	}
	if raw[1] == nil || raw[1].Tag != TagLong || raw[1].Long != 42 {
		t.Fatalf("entry 1 = %+v, want Long(42)", raw[1])
	}
	if raw[2] == nil || !raw[2].Placeholder {
		t.Fatalf("entry 2 = %+v, want placeholder", raw[2])
	}
	if raw[3] == nil || raw[3].Tag != TagUtf8 || raw[3].Utf8 != "x" {
		t.Fatalf("entry 3 = %+v, want Utf8(x)", raw[3])
	}

	pool, err := cook(raw)
	if err != nil {
		t.Fatalf("cook: %v", err)
	}
	if pool[1].Kind != CLong || pool[1].Long != 42 {
		t.Errorf("cooked entry 1 = %+v", pool[1])
	}
	if pool[2].Kind != CPlaceholder {
		t.Errorf("cooked entry 2 = %+v, want placeholder", pool[2])
	}
}

func TestModifiedUTF8RoundTrip(t *testing.T) {
	tests := []string{
		"hello",
		"a b", // embedded NUL
		"emoji \U0001F600 end", // supplementary plane
	}
	for _, s := range tests {
		encoded := encodeModifiedUTF8(s)
		decoded, err := decodeModifiedUTF8(encoded)
		if err != nil {
			t.Fatalf("decodeModifiedUTF8(%q): %v", s, err)
		}
		if decoded != s {
			t.Errorf("round-trip %q -> %q", s, decoded)
		}
	}
}

func TestModifiedUTF8RejectsBareNUL(t *testing.T) {
	if _, err := decodeModifiedUTF8([]byte{0x00}); err == nil {
		t.Error("expected rejection of bare NUL byte")
	}
}

func TestModifiedUTF8EncodesNULAsTwoBytes(t *testing.T) {
	encoded := encodeModifiedUTF8(" ")
	if !bytes.Equal(encoded, []byte{0xC0, 0x80}) {
		t.Errorf("encoded NUL = % X, want C0 80", encoded)
	}
}

func FuzzParse(f *testing.F) {
	f.Add(buildMinimalClass(nil, 0))
	f.Fuzz(func(t *testing.T, data []byte) {
		Fuzz(data)
	})
}
