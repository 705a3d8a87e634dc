package classfile

import (
	"encoding/binary"
	"fmt"
)

func parseLineNumberTable(data []byte) ([]LineNumberEntry, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("LineNumberTable too short")
	}
	count := binary.BigEndian.Uint16(data[0:2])
	off := 2
	out := make([]LineNumberEntry, count)
	for i := range out {
		if off+4 > len(data) {
			return nil, fmt.Errorf("LineNumberTable truncated at entry %d", i)
		}
		out[i] = LineNumberEntry{
			StartPC: binary.BigEndian.Uint16(data[off : off+2]),
			Line:    binary.BigEndian.Uint16(data[off+2 : off+4]),
		}
		off += 4
	}
	return out, nil
}

func parseLocalVariableTable(data []byte) ([]LocalVariableEntry, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("LocalVariableTable too short")
	}
	count := binary.BigEndian.Uint16(data[0:2])
	off := 2
	out := make([]LocalVariableEntry, count)
	for i := range out {
		if off+10 > len(data) {
			return nil, fmt.Errorf("LocalVariableTable truncated at entry %d", i)
		}
		out[i] = LocalVariableEntry{
			StartPC:   binary.BigEndian.Uint16(data[off : off+2]),
			Length:    binary.BigEndian.Uint16(data[off+2 : off+4]),
			NameIndex: binary.BigEndian.Uint16(data[off+4 : off+6]),
			DescIndex: binary.BigEndian.Uint16(data[off+6 : off+8]),
			Index:     binary.BigEndian.Uint16(data[off+8 : off+10]),
		}
		off += 10
	}
	return out, nil
}

func parseInnerClasses(data []byte) ([]InnerClassEntry, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("InnerClasses too short")
	}
	count := binary.BigEndian.Uint16(data[0:2])
	off := 2
	out := make([]InnerClassEntry, count)
	for i := range out {
		if off+8 > len(data) {
			return nil, fmt.Errorf("InnerClasses truncated at entry %d", i)
		}
		out[i] = InnerClassEntry{
			InnerClassInfoIndex: binary.BigEndian.Uint16(data[off : off+2]),
			OuterClassInfoIndex: binary.BigEndian.Uint16(data[off+2 : off+4]),
			InnerNameIndex:      binary.BigEndian.Uint16(data[off+4 : off+6]),
			InnerAccessFlags:    binary.BigEndian.Uint16(data[off+6 : off+8]),
		}
		off += 8
	}
	return out, nil
}

func parseExceptionsAttribute(data []byte, pool RawPool) ([]string, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("Exceptions attribute too short")
	}
	count := binary.BigEndian.Uint16(data[0:2])
	off := 2
	out := make([]string, count)
	for i := range out {
		if off+2 > len(data) {
			return nil, fmt.Errorf("Exceptions attribute truncated at entry %d", i)
		}
		idx := binary.BigEndian.Uint16(data[off : off+2])
		off += 2
		if int(idx) >= len(pool) || pool[idx] == nil || pool[idx].Tag != TagClass {
			return nil, fmt.Errorf("Exceptions attribute: index %d is not a Class entry", idx)
		}
		nameIdx := pool[idx].Index1
		if int(nameIdx) >= len(pool) || pool[nameIdx] == nil {
			return nil, fmt.Errorf("Exceptions attribute: invalid class name index %d", nameIdx)
		}
		out[i] = pool[nameIdx].Utf8
	}
	return out, nil
}

func parseBootstrapMethods(data []byte) ([]RawBootstrapMethod, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("BootstrapMethods too short")
	}
	numMethods := binary.BigEndian.Uint16(data[0:2])
	offset := 2
	methods := make([]RawBootstrapMethod, numMethods)
	for i := range methods {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d", i)
		}
		methodRef := binary.BigEndian.Uint16(data[offset : offset+2])
		numArgs := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += 4
		args := make([]uint16, numArgs)
		for j := range args {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("BootstrapMethods truncated at arg %d of method %d", j, i)
			}
			args[j] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}
		methods[i] = RawBootstrapMethod{MethodRefIndex: methodRef, Arguments: args}
	}
	return methods, nil
}
