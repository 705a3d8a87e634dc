// Package classfile parses the binary Java class-file format (JVMS §4)
// into a raw in-memory representation, and cooks its constant pool into a
// self-contained form that the rest of the engine consumes.
package classfile

const classMagic = 0xCAFEBABE

// Access flags (the subset the engine inspects).
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccProtected  = 0x0004
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccSynthetic  = 0x1000
	AccNative     = 0x0100
)

// Raw constant pool tags (JVMS §4.4).
const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
	TagMethodHandle       uint8 = 15
	TagMethodType         uint8 = 16
	TagDynamic            uint8 = 17
	TagInvokeDynamic      uint8 = 18
)

// MethodHandle reference_kind byte values (JVMS §5.4.3.5).
const (
	RefGetField         uint8 = 1
	RefGetStatic        uint8 = 2
	RefPutField         uint8 = 3
	RefPutStatic        uint8 = 4
	RefInvokeVirtual    uint8 = 5
	RefInvokeStatic     uint8 = 6
	RefInvokeSpecial    uint8 = 7
	RefNewInvokeSpecial uint8 = 8
	RefInvokeInterface  uint8 = 9
)

// RawEntry is a constant pool entry with unresolved, index-based fields —
// the form the parser builds straight off the wire, before cooking.
type RawEntry struct {
	Tag uint8

	// TagUtf8
	Utf8 string

	// TagInteger / TagFloat / TagLong / TagDouble
	Int    int32
	Float  float32
	Long   int64
	Double float64

	// TagClass / TagString / TagMethodType: single index
	Index1 uint16

	// TagFieldref / TagMethodref / TagInterfaceMethodref / TagNameAndType:
	// (class_index, name_and_type_index) or (name_index, descriptor_index)
	Index2 uint16

	// TagMethodHandle
	RefKind uint8

	// TagDynamic / TagInvokeDynamic
	BootstrapIndex uint16

	// Wide (long/double) second-slot placeholder.
	Placeholder bool
}

// RawPool is the 1-indexed, unresolved constant pool straight off the wire.
// RawPool[0] is always nil; the second slot of a long/double entry holds a
// Placeholder entry.
type RawPool []*RawEntry

// RawClass is the structural, not-yet-cooked parse of a class file: code
// attributes are kept as opaque byte blocks (decoded later, at link time,
// by pkg/bytecode) and the constant pool is still in raw form.
type RawClass struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         RawPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []RawField
	Methods      []RawMethod
	Attributes   []RawAttribute

	// Recognized class-level attributes, extracted eagerly.
	SourceFile       string
	Signature        string
	NestHost         string
	InnerClasses     []InnerClassEntry
	BootstrapMethods []RawBootstrapMethod
}

type RawField struct {
	AccessFlags uint16
	NameIndex   uint16
	DescIndex   uint16
	Attributes  []RawAttribute

	// HasConstantValue/ConstantValueIndex reflect a ConstantValue attribute.
	HasConstantValue  bool
	ConstantValueIndex uint16
	Signature         string
}

type RawMethod struct {
	AccessFlags uint16
	NameIndex   uint16
	DescIndex   uint16
	Attributes  []RawAttribute

	Code       *RawCode // nil for native/abstract methods
	Exceptions []string
	Signature  string
}

type RawAttribute struct {
	NameIndex uint16
	Data      []byte
}

// RawCode is the parsed body of a Code attribute, before bytecode decoding.
type RawCode struct {
	MaxStack      uint16
	MaxLocals     uint16
	Code          []byte
	Exceptions    []RawExceptionEntry
	Attributes    []RawAttribute
	StackMapTable []StackMapFrame
	LineNumbers   []LineNumberEntry
	LocalVars     []LocalVariableEntry
	LocalVarTypes []LocalVariableEntry
}

type RawExceptionEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // 0 = catch-all
}

// RawBootstrapMethod is one entry of a BootstrapMethods attribute.
type RawBootstrapMethod struct {
	MethodRefIndex uint16
	Arguments      []uint16
}

// StackMapFrame is a parsed, preserved-but-unenforced verification frame.
type StackMapFrame struct {
	FrameType uint8
	OffsetDelta uint16
	Locals    []VerificationType
	Stack     []VerificationType
}

// VerificationType is one item of a stack-map frame's locals/stack list.
type VerificationType struct {
	Tag        uint8 // 0..8 per JVMS §4.7.4
	ClassIndex uint16 // Tag == 7 (Object)
	Offset     uint16 // Tag == 8 (Uninitialized)
}

const (
	VerifTop uint8 = iota
	VerifInteger
	VerifFloat
	VerifDouble
	VerifLong
	VerifNull
	VerifUninitializedThis
	VerifObject
	VerifUninitialized
)

// LineNumberEntry maps a bytecode offset to a source line.
type LineNumberEntry struct {
	StartPC uint16
	Line    uint16
}

// LocalVariableEntry is one row of a LocalVariableTable/LocalVariableTypeTable.
type LocalVariableEntry struct {
	StartPC    uint16
	Length     uint16
	NameIndex  uint16
	DescIndex  uint16
	Index      uint16
}

// InnerClassEntry is one row of an InnerClasses attribute.
type InnerClassEntry struct {
	InnerClassInfoIndex   uint16
	OuterClassInfoIndex   uint16
	InnerNameIndex        uint16
	InnerAccessFlags      uint16
}
