// Package native is the engine's native-method extension surface: a
// registry mapping class/method/descriptor triples to Go functions, plus
// the handful of java.lang/java.util natives the test scenarios exercise
// (System.out.println, StringBuilder, Integer boxing, a minimal HashMap).
package native

import (
	"fmt"
	"io"
)

// ValueKind mirrors the subset of bytecode.ValueKind a native call's
// arguments and return value can take; kept separate (rather than
// importing bytecode) so this package has no dependency on the
// interpreter at all.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindLong
	KindFloat
	KindDouble
	KindRef
	KindVoid
)

// Value is one argument or return value crossing the native boundary.
type Value struct {
	Kind ValueKind
	I32  int32
	I64  int64
	F32  float32
	F64  float64
	Ref  uint32
}

func Int(v int32) Value    { return Value{Kind: KindInt, I32: v} }
func Long(v int64) Value   { return Value{Kind: KindLong, I64: v} }
func Float(v float32) Value { return Value{Kind: KindFloat, F32: v} }
func Double(v float64) Value { return Value{Kind: KindDouble, F64: v} }
func Ref(ref uint32) Value  { return Value{Kind: KindRef, Ref: ref} }
func Void() Value           { return Value{Kind: KindVoid} }

// Callback lets a native method invoke an interpreted method and get its
// result back synchronously: the callee runs to completion on the Go call
// stack, so a native needs no saved-PC continuation to resume after it.
type Callback func(className, methodName, descriptor string, args []Value) (Value, error)

// Context is everything a native function needs besides its arguments:
// string conversion (object <-> Go string is owned by the interpreter,
// since it depends on the String class's field layout), a way to call
// back into interpreted code, and the stream java.lang.System.out writes
// to.
type Context struct {
	Stdout   io.Writer
	Callback Callback

	// NewString allocates a heap String instance from a Go string and
	// returns its reference. GoString does the reverse.
	NewString func(s string) uint32
	GoString  func(ref uint32) string

	// NewObject allocates a zero-valued instance of className and returns
	// its reference, used by natives that construct library objects
	// (StringBuilder, Integer, HashMap) lazily on first use.
	NewObject func(className string) uint32

	// Payload gets/sets the opaque native-side state attached to an
	// object instance (object.Instance.Native), used to store a
	// *stringBuilder, *NativeInteger, or *HashMap behind a heap ref.
	GetPayload func(ref uint32) any
	SetPayload func(ref uint32, payload any)
}

// Func is a native method implementation.
type Func func(ctx *Context, receiver uint32, args []Value) (Value, error)

func key(class, name, descriptor string) string { return class + "." + name + ":" + descriptor }

// Registry maps class/method/descriptor triples to implementations.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns a registry pre-populated with the demonstration
// catalog this engine ships (System.out.println, StringBuilder, Integer
// boxing, a minimal HashMap) — the broader java.* native catalog is an
// external-collaborator concern, not something this package enumerates.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	registerSystem(r)
	registerStringBuilder(r)
	registerInteger(r)
	registerHashMap(r)
	return r
}

// Register adds or overrides a native method implementation.
func (r *Registry) Register(class, name, descriptor string, fn Func) {
	r.funcs[key(class, name, descriptor)] = fn
}

// Lookup returns the implementation for a class/method/descriptor triple,
// or (nil, false) if no native is registered for it.
func (r *Registry) Lookup(class, name, descriptor string) (Func, bool) {
	fn, ok := r.funcs[key(class, name, descriptor)]
	return fn, ok
}

// NotImplemented builds the error Lookup callers return when a native
// method the engine doesn't model is invoked.
func NotImplemented(class, name, descriptor string) error {
	return fmt.Errorf("native method not implemented: %s.%s%s", class, name, descriptor)
}
