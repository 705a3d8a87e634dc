package native

// NullRef mirrors heap.Null (0xFFFFFFFF): natives report "no such key" or
// "no previous value" with this ref rather than slot 0, which is itself a
// valid heap index. Kept as a local constant so this package stays free
// of a pkg/heap dependency.
const NullRef uint32 = 0xFFFFFFFF

// hashMap is the payload behind a java.util.HashMap instance. Keys are
// stored by Go-native identity: a boxed Integer key is unboxed to its
// int32 value (matching Integer.equals/hashCode value semantics), any
// other reference key is stored by its heap ref.
type hashMap struct {
	byInt map[int32]Value
	byRef map[uint32]Value
}

func newHashMap() *hashMap {
	return &hashMap{byInt: make(map[int32]Value), byRef: make(map[uint32]Value)}
}

func registerHashMap(r *Registry) {
	r.Register("java/util/HashMap", "<init>", "()V", func(ctx *Context, receiver uint32, _ []Value) (Value, error) {
		ctx.SetPayload(receiver, newHashMap())
		return Void(), nil
	})

	r.Register("java/util/HashMap", "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", func(ctx *Context, receiver uint32, args []Value) (Value, error) {
		m := ctx.GetPayload(receiver).(*hashMap)
		key, value := args[0].Ref, args[1]
		old, had := m.lookup(ctx, key)
		m.store(ctx, key, value)
		if !had {
			return Ref(NullRef), nil
		}
		return old, nil
	})

	r.Register("java/util/HashMap", "get", "(Ljava/lang/Object;)Ljava/lang/Object;", func(ctx *Context, receiver uint32, args []Value) (Value, error) {
		m := ctx.GetPayload(receiver).(*hashMap)
		v, found := m.lookup(ctx, args[0].Ref)
		if !found {
			return Ref(NullRef), nil
		}
		return v, nil
	})
}

func (m *hashMap) lookup(ctx *Context, key uint32) (Value, bool) {
	if ni, ok := ctx.GetPayload(key).(*NativeInteger); ok {
		v, found := m.byInt[ni.Value]
		return v, found
	}
	v, found := m.byRef[key]
	return v, found
}

func (m *hashMap) store(ctx *Context, key uint32, value Value) {
	if ni, ok := ctx.GetPayload(key).(*NativeInteger); ok {
		m.byInt[ni.Value] = value
		return
	}
	m.byRef[key] = value
}
