package classfile

import "bytes"

// Fuzz is a go-fuzz entry point exercising the class-file parser against
// arbitrary bytes, the same shape saferwall/pe's Fuzz function uses for its
// own untrusted binary-format parser.
func Fuzz(data []byte) int {
	cf, err := Parse(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	if _, err := cook(cf.Pool); err != nil {
		return 0
	}
	return 1
}
