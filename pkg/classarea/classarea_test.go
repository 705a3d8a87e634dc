package classarea

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/daimatz/gojvm/pkg/classfile"
)

// builder assembles minimal class-file byte streams, the same hand-built
// style classfile's own parser tests use.
type builder struct {
	buf bytes.Buffer
}

func (b *builder) u8(v uint8)   { b.buf.WriteByte(v) }
func (b *builder) u16(v uint16) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *builder) u32(v uint32) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *builder) raw(p []byte) { b.buf.Write(p) }

func (b *builder) utf8(s string) {
	b.u8(classfile.TagUtf8)
	b.u16(uint16(len(s)))
	b.raw([]byte(s))
}

func (b *builder) class(nameIdx uint16) {
	b.u8(classfile.TagClass)
	b.u16(nameIdx)
}

// buildClass builds a class named "name" extending "java/lang/Object"
// with one declared int instance field "x" and no methods.
func buildClass(name string) []byte {
	var b builder
	b.u32(0xCAFEBABE)
	b.u16(0)
	b.u16(61)
	b.u16(8) // pool count
	b.utf8(name)            // 1
	b.class(1)              // 2: Class(name)
	b.utf8("java/lang/Object") // 3
	b.class(3)               // 4: Class(Object)
	b.utf8("x")               // 5
	b.utf8("I")               // 6
	b.utf8("Code")            // 7 (unused, keeps indices stable)
	b.u16(0x0021)             // access_flags: public super
	b.u16(2)                  // this_class
	b.u16(4)                  // super_class
	b.u16(0)                  // interfaces_count
	b.u16(1)                  // fields_count
	b.u16(0)                  // field access_flags (package-private instance field)
	b.u16(5)                  // name_index
	b.u16(6)                  // descriptor_index
	b.u16(0)                  // field attributes_count
	b.u16(0)                  // methods_count
	b.u16(0)                  // class attributes_count
	return b.buf.Bytes()
}

// memLoader implements ClassLoader over an in-memory map, standing in for
// the classpath-scanning collaborator described as external to this
// package.
type memLoader struct {
	classes map[string][]byte
}

func (l *memLoader) LoadClass(name string) (*classfile.RawClass, error) {
	data, ok := l.classes[name]
	if !ok && name == "java/lang/Object" {
		data, ok = buildRootObject(), true
	}
	if !ok {
		return nil, errors.New("class not found: " + name)
	}
	return classfile.Parse(bytes.NewReader(data))
}

// buildRootObject builds a minimal java/lang/Object with no superclass,
// fields or methods, which memLoader supplies when a test's map omits it.
func buildRootObject() []byte {
	var b builder
	b.u32(0xCAFEBABE)
	b.u16(0)
	b.u16(61)
	b.u16(3)                   // pool count
	b.utf8("java/lang/Object") // 1
	b.class(1)                 // 2: Class(Object)
	b.u16(0x0021)              // access_flags: public super
	b.u16(2)                   // this_class
	b.u16(0)                   // super_class: none
	b.u16(0)                   // interfaces_count
	b.u16(0)                   // fields_count
	b.u16(0)                   // methods_count
	b.u16(0)                   // class attributes_count
	return b.buf.Bytes()
}

func TestLoadLaysOutInstanceField(t *testing.T) {
	loader := &memLoader{classes: map[string][]byte{
		"Thing": buildClass("Thing"),
	}}
	area := NewArea(loader)
	c, err := area.Load("Thing")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.InstanceSlotCount != 1 {
		t.Fatalf("InstanceSlotCount = %d, want 1", c.InstanceSlotCount)
	}
	f, ok := c.FindInstanceField("x")
	if !ok {
		t.Fatal("field x not found")
	}
	if f.Slot != 0 {
		t.Errorf("field x slot = %d, want 0", f.Slot)
	}
	if f.IsRef {
		t.Error("int field should not be reference-typed")
	}
}

func TestLoadCachesResult(t *testing.T) {
	loader := &memLoader{classes: map[string][]byte{"Thing": buildClass("Thing")}}
	area := NewArea(loader)
	c1, _ := area.Load("Thing")
	c2, _ := area.Load("Thing")
	if c1 != c2 {
		t.Error("Load should return the cached *Class on repeated calls")
	}
}

func TestInstanceSlotsAccumulateAcrossSuperclass(t *testing.T) {
	var sub builder
	sub.u32(0xCAFEBABE)
	sub.u16(0)
	sub.u16(61)
	sub.u16(8)
	sub.utf8("Sub")
	sub.class(1)
	sub.utf8("Base")
	sub.class(3)
	sub.utf8("y")
	sub.utf8("I")
	sub.utf8("Code")
	sub.u16(0x0021)
	sub.u16(2)
	sub.u16(4)
	sub.u16(0)
	sub.u16(1)
	sub.u16(0)
	sub.u16(5)
	sub.u16(6)
	sub.u16(0)
	sub.u16(0)
	sub.u16(0)

	loader := &memLoader{classes: map[string][]byte{
		"Base": buildClass("Base"),
		"Sub":  sub.buf.Bytes(),
	}}
	area := NewArea(loader)
	c, err := area.Load("Sub")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.InstanceSlotCount != 2 {
		t.Fatalf("InstanceSlotCount = %d, want 2 (1 inherited + 1 own)", c.InstanceSlotCount)
	}
	f, ok := c.FindInstanceField("y")
	if !ok || f.Slot != 1 {
		t.Errorf("field y = %+v, ok=%v, want slot 1", f, ok)
	}
}

func TestEnsureInitializedRunsOnce(t *testing.T) {
	loader := &memLoader{classes: map[string][]byte{"Thing": buildClass("Thing")}}
	area := NewArea(loader)
	c, _ := area.Load("Thing")

	runs := 0
	run := func(c *Class, clinit *Method) error {
		runs++
		return nil
	}
	if err := c.EnsureInitialized(run); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	if err := c.EnsureInitialized(run); err != nil {
		t.Fatalf("EnsureInitialized (second call): %v", err)
	}
	if runs != 0 {
		t.Errorf("runs = %d, want 0 (no <clinit> declared)", runs)
	}
	if !c.Initialized() {
		t.Error("Initialized() should be true after EnsureInitialized")
	}
}
