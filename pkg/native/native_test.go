package native

import (
	"bytes"
	"testing"
)

// testHeap is a minimal in-memory stand-in for the real heap, just enough
// to exercise NewString/GoString/NewObject/payload plumbing without
// pulling in pkg/heap (which would make this a dependency cycle test
// double rather than a real unit test of this package's own registry).
type testHeap struct {
	strings  map[uint32]string
	payloads map[uint32]any
	classes  map[uint32]string
	next     uint32
}

func newTestHeap() *testHeap {
	return &testHeap{strings: map[uint32]string{}, payloads: map[uint32]any{}, classes: map[uint32]string{}}
}

func (h *testHeap) context(stdout *bytes.Buffer) *Context {
	return &Context{
		Stdout: stdout,
		NewString: func(s string) uint32 {
			ref := h.next
			h.next++
			h.strings[ref] = s
			return ref
		},
		GoString: func(ref uint32) string { return h.strings[ref] },
		NewObject: func(class string) uint32 {
			ref := h.next
			h.next++
			h.classes[ref] = class
			return ref
		},
		GetPayload: func(ref uint32) any { return h.payloads[ref] },
		SetPayload: func(ref uint32, p any) { h.payloads[ref] = p },
	}
}

func TestIntegerBoxUnboxRoundTrip(t *testing.T) {
	r := NewRegistry()
	h := newTestHeap()
	ctx := h.context(&bytes.Buffer{})

	valueOf, ok := r.Lookup("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;")
	if !ok {
		t.Fatal("Integer.valueOf not registered")
	}
	boxed, err := valueOf(ctx, 0, []Value{Int(42)})
	if err != nil {
		t.Fatalf("valueOf: %v", err)
	}

	intValue, _ := r.Lookup("java/lang/Integer", "intValue", "()I")
	got, err := intValue(ctx, boxed.Ref, nil)
	if err != nil {
		t.Fatalf("intValue: %v", err)
	}
	if got.I32 != 42 {
		t.Errorf("intValue(valueOf(42)) = %d, want 42", got.I32)
	}
}

func TestStringBuilderAppendChain(t *testing.T) {
	r := NewRegistry()
	h := newTestHeap()
	ctx := h.context(&bytes.Buffer{})

	newSb := func() uint32 {
		ref := ctx.NewObject("java/lang/StringBuilder")
		init, _ := r.Lookup("java/lang/StringBuilder", "<init>", "()V")
		init(ctx, ref, nil)
		return ref
	}

	sb := newSb()
	appendInt, _ := r.Lookup("java/lang/StringBuilder", "append", "(I)Ljava/lang/StringBuilder;")
	appendStr, _ := r.Lookup("java/lang/StringBuilder", "append", "(Ljava/lang/String;)Ljava/lang/StringBuilder;")
	toString, _ := r.Lookup("java/lang/StringBuilder", "toString", "()Ljava/lang/String;")

	sRef := ctx.NewString("x=")
	appendStr(ctx, sb, []Value{Ref(sRef)})
	appendInt(ctx, sb, []Value{Int(7)})

	result, err := toString(ctx, sb, nil)
	if err != nil {
		t.Fatalf("toString: %v", err)
	}
	got := ctx.GoString(result.Ref)
	if got != "x=7" {
		t.Errorf("StringBuilder result = %q, want %q", got, "x=7")
	}
}

func TestHashMapPutGetWithIntegerKeys(t *testing.T) {
	r := NewRegistry()
	h := newTestHeap()
	ctx := h.context(&bytes.Buffer{})

	mapRef := ctx.NewObject("java/util/HashMap")
	init, _ := r.Lookup("java/util/HashMap", "<init>", "()V")
	init(ctx, mapRef, nil)

	valueOf, _ := r.Lookup("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;")
	key0, _ := valueOf(ctx, 0, []Value{Int(0)})
	val, _ := valueOf(ctx, 0, []Value{Int(100)})

	put, _ := r.Lookup("java/util/HashMap", "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;")
	prev, err := put(ctx, mapRef, []Value{key0, val})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if prev.Ref != NullRef {
		t.Errorf("first put should report no previous value, got %+v", prev)
	}

	get, _ := r.Lookup("java/util/HashMap", "get", "(Ljava/lang/Object;)Ljava/lang/Object;")
	got, err := get(ctx, mapRef, []Value{key0})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.I32 != val.I32 || got.Kind != val.Kind {
		t.Errorf("get(key0) = %+v, want %+v", got, val)
	}
}

func TestSystemOutPrintlnWritesToStdout(t *testing.T) {
	r := NewRegistry()
	h := newTestHeap()
	var out bytes.Buffer
	ctx := h.context(&out)

	println, ok := r.Lookup("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	if !ok {
		t.Fatal("PrintStream.println not registered")
	}
	ref := ctx.NewString("hello")
	if _, err := println(ctx, 0, []Value{Ref(ref)}); err != nil {
		t.Fatalf("println: %v", err)
	}
	if out.String() != "hello\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "hello\n")
	}
}
