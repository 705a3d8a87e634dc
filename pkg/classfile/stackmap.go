package classfile

import (
	"encoding/binary"
	"fmt"
)

// parseStackMapTable parses a StackMapTable attribute body (JVMS §4.7.4).
// Frames are parsed and preserved verbatim; the engine never re-verifies
// them against executed types (spec Non-goals).
func parseStackMapTable(data []byte) ([]StackMapFrame, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("StackMapTable too short")
	}
	count := binary.BigEndian.Uint16(data[0:2])
	off := 2
	frames := make([]StackMapFrame, 0, count)

	readU16 := func() (uint16, error) {
		if off+2 > len(data) {
			return 0, fmt.Errorf("StackMapTable truncated reading u16 at offset %d", off)
		}
		v := binary.BigEndian.Uint16(data[off : off+2])
		off += 2
		return v, nil
	}
	readVerif := func() (VerificationType, error) {
		if off >= len(data) {
			return VerificationType{}, fmt.Errorf("StackMapTable truncated reading verification type")
		}
		tag := data[off]
		off++
		vt := VerificationType{Tag: tag}
		switch tag {
		case VerifObject:
			idx, err := readU16()
			if err != nil {
				return VerificationType{}, err
			}
			vt.ClassIndex = idx
		case VerifUninitialized:
			o, err := readU16()
			if err != nil {
				return VerificationType{}, err
			}
			vt.Offset = o
		}
		return vt, nil
	}

	for i := uint16(0); i < count; i++ {
		if off >= len(data) {
			return nil, fmt.Errorf("StackMapTable truncated at frame %d", i)
		}
		tag := data[off]
		off++
		f := StackMapFrame{FrameType: tag}

		switch {
		case tag <= 63: // same_frame
			f.OffsetDelta = uint16(tag)

		case tag <= 127: // same_locals_1_stack_item_frame
			f.OffsetDelta = uint16(tag - 64)
			vt, err := readVerif()
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.Stack = []VerificationType{vt}

		case tag == 247: // same_locals_1_stack_item_frame_extended
			delta, err := readU16()
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.OffsetDelta = delta
			vt, err := readVerif()
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.Stack = []VerificationType{vt}

		case tag >= 248 && tag <= 250: // chop_frame
			delta, err := readU16()
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.OffsetDelta = delta

		case tag == 251: // same_frame_extended
			delta, err := readU16()
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.OffsetDelta = delta

		case tag >= 252 && tag <= 254: // append_frame
			delta, err := readU16()
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.OffsetDelta = delta
			n := int(tag - 251)
			f.Locals = make([]VerificationType, n)
			for j := 0; j < n; j++ {
				vt, err := readVerif()
				if err != nil {
					return nil, fmt.Errorf("frame %d local %d: %w", i, j, err)
				}
				f.Locals[j] = vt
			}

		case tag == 255: // full_frame
			delta, err := readU16()
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.OffsetDelta = delta
			numLocals, err := readU16()
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.Locals = make([]VerificationType, numLocals)
			for j := range f.Locals {
				vt, err := readVerif()
				if err != nil {
					return nil, fmt.Errorf("frame %d local %d: %w", i, j, err)
				}
				f.Locals[j] = vt
			}
			numStack, err := readU16()
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.Stack = make([]VerificationType, numStack)
			for j := range f.Stack {
				vt, err := readVerif()
				if err != nil {
					return nil, fmt.Errorf("frame %d stack %d: %w", i, j, err)
				}
				f.Stack[j] = vt
			}

		default:
			return nil, fmt.Errorf("StackMapTable: reserved frame type %d at frame %d", tag, i)
		}

		frames = append(frames, f)
	}

	return frames, nil
}
