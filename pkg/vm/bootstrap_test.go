package vm

import (
	"testing"

	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/descriptor"
)

func TestFormatConcatArgsRendersEachParamKind(t *testing.T) {
	m := newTestMachine()
	strRef := m.NewString("hi")

	desc := descriptor.MethodDescriptor{
		Params: []descriptor.FieldType{
			{Kind: descriptor.KindObject, Class: "java/lang/String"},
			{Kind: descriptor.KindInt},
			{Kind: descriptor.KindBoolean},
			{Kind: descriptor.KindChar},
			{Kind: descriptor.KindLong},
		},
	}
	args := []int32{int32(strRef), 7, 1, int32('A'), 0, 42}
	argIsRef := []bool{true, false, false, false, false, false}

	parts := m.formatConcatArgs(desc, args, argIsRef)
	want := []string{"hi", "7", "true", "A", "42"}
	if len(parts) != len(want) {
		t.Fatalf("got %d parts, want %d: %v", len(parts), len(want), parts)
	}
	for i, w := range want {
		if parts[i] != w {
			t.Errorf("parts[%d] = %q, want %q", i, parts[i], w)
		}
	}
}

func TestConstantToConcatStringRendersEachLiteralKind(t *testing.T) {
	cases := []struct {
		c    *classfile.Constant
		want string
	}{
		{&classfile.Constant{Kind: classfile.CString, StringValue: "x"}, "x"},
		{&classfile.Constant{Kind: classfile.CInteger, Int: -3}, "-3"},
		{&classfile.Constant{Kind: classfile.CLong, Long: 123456789012}, "123456789012"},
	}
	for _, tc := range cases {
		if got := constantToConcatString(tc.c); got != tc.want {
			t.Errorf("constantToConcatString(%+v) = %q, want %q", tc.c, got, tc.want)
		}
	}
}

func TestBootstrapConcatMakeConcatJoinsArgs(t *testing.T) {
	m := newTestMachine()
	aRef := m.NewString("foo")
	bRef := m.NewString("bar")

	desc := descriptor.MethodDescriptor{
		Params: []descriptor.FieldType{
			{Kind: descriptor.KindObject, Class: "java/lang/String"},
			{Kind: descriptor.KindObject, Class: "java/lang/String"},
		},
	}
	args := []int32{int32(aRef), int32(bRef)}
	argIsRef := []bool{true, true}

	ref, err := m.bootstrapConcat(nil, classfile.RawBootstrapMethod{}, "makeConcat", desc, args, argIsRef)
	if err != nil {
		t.Fatalf("bootstrapConcat: %v", err)
	}
	if got := m.GoString(ref); got != "foobar" {
		t.Errorf("result = %q, want %q", got, "foobar")
	}
}
