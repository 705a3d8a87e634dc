package native

// NativeInteger is the payload behind a boxed java.lang.Integer instance.
type NativeInteger struct {
	Value int32
}

// registerInteger wires up Integer.valueOf (boxing) and intValue/toString.
func registerInteger(r *Registry) {
	r.Register("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", func(ctx *Context, _ uint32, args []Value) (Value, error) {
		ref := ctx.NewObject("java/lang/Integer")
		ctx.SetPayload(ref, &NativeInteger{Value: args[0].I32})
		return Ref(ref), nil
	})
	r.Register("java/lang/Integer", "intValue", "()I", func(ctx *Context, receiver uint32, _ []Value) (Value, error) {
		ni := ctx.GetPayload(receiver).(*NativeInteger)
		return Int(ni.Value), nil
	})
	r.Register("java/lang/Integer", "toString", "()Ljava/lang/String;", func(ctx *Context, receiver uint32, _ []Value) (Value, error) {
		ni := ctx.GetPayload(receiver).(*NativeInteger)
		return Ref(ctx.NewString(formatInt(ni.Value))), nil
	})
	r.Register("java/lang/Integer", "toString", "(I)Ljava/lang/String;", func(ctx *Context, _ uint32, args []Value) (Value, error) {
		return Ref(ctx.NewString(formatInt(args[0].I32))), nil
	})
}

func formatInt(v int32) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	u := uint32(v)
	if neg {
		u = uint32(-v)
	}
	var buf [16]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
