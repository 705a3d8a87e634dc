package vm

import "math"

func floatBits(f float32) uint32    { return math.Float32bits(f) }
func floatFromBits(b uint32) float32 { return math.Float32frombits(b) }
func doubleBits(f float64) uint64    { return math.Float64bits(f) }
func doubleFromBits(b uint64) float64 { return math.Float64frombits(b) }
