package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*RawClass, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a class file from r and returns its raw (unresolved-pool)
// structural form. Bytecode bodies are kept as raw byte blocks; cooking
// the pool and decoding bytecode happen at link time (see pkg/classarea).
func Parse(r io.Reader) (*RawClass, error) {
	cf := &RawClass{}

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, fmt.Errorf("reading major version: %w", err)
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	pool, err := parseRawPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.Pool = pool

	if err := binary.Read(r, binary.BigEndian, &cf.AccessFlags); err != nil {
		return nil, fmt.Errorf("reading access flags: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.ThisClass); err != nil {
		return nil, fmt.Errorf("reading this_class: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.SuperClass); err != nil {
		return nil, fmt.Errorf("reading super_class: %w", err)
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, fmt.Errorf("reading interfaces count: %w", err)
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		if err := binary.Read(r, binary.BigEndian, &cf.Interfaces[i]); err != nil {
			return nil, fmt.Errorf("reading interface %d: %w", i, err)
		}
	}

	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, fmt.Errorf("reading fields count: %w", err)
	}
	cf.Fields, err = parseFields(r, cf.Pool, fieldsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, fmt.Errorf("reading methods count: %w", err)
	}
	cf.Methods, err = parseMethods(r, cf.Pool, methodsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	classAttrs, err := parseAttributeInfos(r, cf.Pool)
	if err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}
	cf.Attributes = classAttrs
	if err := cf.applyClassAttributes(); err != nil {
		return nil, fmt.Errorf("resolving class attributes: %w", err)
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		if m.AccessFlags&AccAbstract != 0 && m.Code != nil {
			return nil, fmt.Errorf("method %s is abstract but has a Code attribute", mustUtf8(pool, m.NameIndex))
		}
		if m.AccessFlags&(AccAbstract|AccNative) == 0 && m.Code == nil {
			return nil, fmt.Errorf("method %s is neither abstract nor native but has no Code attribute", mustUtf8(pool, m.NameIndex))
		}
	}

	return cf, nil
}

func mustUtf8(pool RawPool, idx uint16) string {
	if int(idx) < len(pool) && pool[idx] != nil {
		return pool[idx].Utf8
	}
	return "?"
}

func parseFields(r io.Reader, pool RawPool, count uint16) ([]RawField, error) {
	fields := make([]RawField, count)
	for i := range fields {
		var accessFlags, nameIndex, descIndex uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, fmt.Errorf("reading field %d access flags: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading field %d name index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, fmt.Errorf("reading field %d descriptor index: %w", i, err)
		}
		attrs, err := parseAttributeInfos(r, pool)
		if err != nil {
			return nil, fmt.Errorf("parsing field %d attributes: %w", i, err)
		}

		f := RawField{AccessFlags: accessFlags, NameIndex: nameIndex, DescIndex: descIndex, Attributes: attrs}
		for _, attr := range attrs {
			name := mustUtf8(pool, attr.NameIndex)
			switch name {
			case "ConstantValue":
				if len(attr.Data) != 2 {
					return nil, fmt.Errorf("field %d ConstantValue attribute has unexpected length %d", i, len(attr.Data))
				}
				f.HasConstantValue = true
				f.ConstantValueIndex = binary.BigEndian.Uint16(attr.Data)
			case "Signature":
				if len(attr.Data) != 2 {
					return nil, fmt.Errorf("field %d Signature attribute has unexpected length %d", i, len(attr.Data))
				}
				f.Signature = mustUtf8(pool, binary.BigEndian.Uint16(attr.Data))
			}
		}
		fields[i] = f
	}
	return fields, nil
}

func parseMethods(r io.Reader, pool RawPool, count uint16) ([]RawMethod, error) {
	methods := make([]RawMethod, count)
	for i := range methods {
		var accessFlags, nameIndex, descIndex uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, fmt.Errorf("reading method %d access flags: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading method %d name index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, fmt.Errorf("reading method %d descriptor index: %w", i, err)
		}
		attrs, err := parseAttributeInfos(r, pool)
		if err != nil {
			return nil, fmt.Errorf("parsing method %d attributes: %w", i, err)
		}

		m := RawMethod{AccessFlags: accessFlags, NameIndex: nameIndex, DescIndex: descIndex, Attributes: attrs}
		for _, attr := range attrs {
			name := mustUtf8(pool, attr.NameIndex)
			switch name {
			case "Code":
				code, err := parseCodeAttribute(attr.Data, pool)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", mustUtf8(pool, nameIndex), err)
				}
				m.Code = code
			case "Exceptions":
				exc, err := parseExceptionsAttribute(attr.Data, pool)
				if err != nil {
					return nil, fmt.Errorf("parsing Exceptions attribute for method %s: %w", mustUtf8(pool, nameIndex), err)
				}
				m.Exceptions = exc
			case "Signature":
				if len(attr.Data) != 2 {
					return nil, fmt.Errorf("method %d Signature attribute has unexpected length %d", i, len(attr.Data))
				}
				m.Signature = mustUtf8(pool, binary.BigEndian.Uint16(attr.Data))
			}
		}
		methods[i] = m
	}
	return methods, nil
}

func parseAttributeInfos(r io.Reader, pool RawPool) ([]RawAttribute, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("reading attribute count: %w", err)
	}
	attrs := make([]RawAttribute, count)
	for i := range attrs {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, err)
		}
		attrs[i] = RawAttribute{NameIndex: nameIndex, Data: data}
	}
	return attrs, nil
}

func parseCodeAttribute(data []byte, pool RawPool) (*RawCode, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}

	maxStack := binary.BigEndian.Uint16(data[0:2])
	maxLocals := binary.BigEndian.Uint16(data[2:4])
	codeLength := binary.BigEndian.Uint32(data[4:8])

	if uint64(len(data)) < 8+uint64(codeLength) {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", codeLength)
	}

	code := make([]byte, codeLength)
	copy(code, data[8:8+codeLength])
	offset := 8 + int(codeLength)

	if offset+2 > len(data) {
		return nil, fmt.Errorf("Code attribute truncated before exception_table_length")
	}
	exTableLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	handlers := make([]RawExceptionEntry, exTableLen)
	for i := range handlers {
		if offset+8 > len(data) {
			return nil, fmt.Errorf("Code attribute exception table truncated at entry %d", i)
		}
		handlers[i] = RawExceptionEntry{
			StartPC:   binary.BigEndian.Uint16(data[offset : offset+2]),
			EndPC:     binary.BigEndian.Uint16(data[offset+2 : offset+4]),
			HandlerPC: binary.BigEndian.Uint16(data[offset+4 : offset+6]),
			CatchType: binary.BigEndian.Uint16(data[offset+6 : offset+8]),
		}
		offset += 8
	}

	rest := data[offset:]
	attrs, err := parseAttributeInfos(bytes.NewReader(rest), pool)
	if err != nil {
		return nil, fmt.Errorf("parsing Code attribute's nested attributes: %w", err)
	}

	rc := &RawCode{
		MaxStack:   maxStack,
		MaxLocals:  maxLocals,
		Code:       code,
		Exceptions: handlers,
		Attributes: attrs,
	}

	for _, attr := range attrs {
		name := mustUtf8(pool, attr.NameIndex)
		switch name {
		case "StackMapTable":
			smf, err := parseStackMapTable(attr.Data)
			if err != nil {
				return nil, fmt.Errorf("parsing StackMapTable: %w", err)
			}
			rc.StackMapTable = smf
		case "LineNumberTable":
			ln, err := parseLineNumberTable(attr.Data)
			if err != nil {
				return nil, fmt.Errorf("parsing LineNumberTable: %w", err)
			}
			rc.LineNumbers = ln
		case "LocalVariableTable":
			lv, err := parseLocalVariableTable(attr.Data)
			if err != nil {
				return nil, fmt.Errorf("parsing LocalVariableTable: %w", err)
			}
			rc.LocalVars = lv
		case "LocalVariableTypeTable":
			lv, err := parseLocalVariableTable(attr.Data)
			if err != nil {
				return nil, fmt.Errorf("parsing LocalVariableTypeTable: %w", err)
			}
			rc.LocalVarTypes = lv
		}
	}

	return rc, nil
}

func (cf *RawClass) applyClassAttributes() error {
	for _, attr := range cf.Attributes {
		name := mustUtf8(cf.Pool, attr.NameIndex)
		switch name {
		case "SourceFile":
			if len(attr.Data) != 2 {
				return fmt.Errorf("SourceFile attribute has unexpected length %d", len(attr.Data))
			}
			cf.SourceFile = mustUtf8(cf.Pool, binary.BigEndian.Uint16(attr.Data))
		case "Signature":
			if len(attr.Data) != 2 {
				return fmt.Errorf("Signature attribute has unexpected length %d", len(attr.Data))
			}
			cf.Signature = mustUtf8(cf.Pool, binary.BigEndian.Uint16(attr.Data))
		case "NestHost":
			if len(attr.Data) != 2 {
				return fmt.Errorf("NestHost attribute has unexpected length %d", len(attr.Data))
			}
			idx := binary.BigEndian.Uint16(attr.Data)
			cname, err := cf.classNameAt(idx)
			if err != nil {
				return fmt.Errorf("resolving NestHost: %w", err)
			}
			cf.NestHost = cname
		case "InnerClasses":
			ic, err := parseInnerClasses(attr.Data)
			if err != nil {
				return fmt.Errorf("parsing InnerClasses: %w", err)
			}
			cf.InnerClasses = ic
		case "BootstrapMethods":
			bm, err := parseBootstrapMethods(attr.Data)
			if err != nil {
				return fmt.Errorf("parsing BootstrapMethods: %w", err)
			}
			cf.BootstrapMethods = bm
		}
	}
	return nil
}

func (cf *RawClass) classNameAt(idx uint16) (string, error) {
	if int(idx) >= len(cf.Pool) || cf.Pool[idx] == nil || cf.Pool[idx].Tag != TagClass {
		return "", fmt.Errorf("index %d is not a Class entry", idx)
	}
	return mustUtf8(cf.Pool, cf.Pool[idx].Index1), nil
}

// ClassName returns the fully qualified internal name of this class.
func (cf *RawClass) ClassName() (string, error) {
	return cf.classNameAt(cf.ThisClass)
}

// SuperClassName returns the internal name of the superclass, or "" for
// java/lang/Object (whose super_class index is 0).
func (cf *RawClass) SuperClassName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.classNameAt(cf.SuperClass)
}

// FindMethod finds a method by exact name and descriptor.
func (cf *RawClass) FindMethod(name, descriptor string) *RawMethod {
	for i := range cf.Methods {
		if mustUtf8(cf.Pool, cf.Methods[i].NameIndex) == name &&
			mustUtf8(cf.Pool, cf.Methods[i].DescIndex) == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}
