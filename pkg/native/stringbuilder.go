package native

import "strconv"

// stringBuilder is the payload behind a java.lang.StringBuilder instance:
// plain Go string accumulation stands in for the char-array-plus-count
// buffer the real class library uses.
type stringBuilder struct {
	buf string
}

func registerStringBuilder(r *Registry) {
	r.Register("java/lang/StringBuilder", "<init>", "()V", func(ctx *Context, receiver uint32, _ []Value) (Value, error) {
		ctx.SetPayload(receiver, &stringBuilder{})
		return Void(), nil
	})

	appendString := func(ctx *Context, receiver uint32, args []Value) (Value, error) {
		sb := ctx.GetPayload(receiver).(*stringBuilder)
		sb.buf += ctx.GoString(args[0].Ref)
		return Ref(receiver), nil
	}
	r.Register("java/lang/StringBuilder", "append", "(Ljava/lang/String;)Ljava/lang/StringBuilder;", appendString)

	appendInt := func(ctx *Context, receiver uint32, args []Value) (Value, error) {
		sb := ctx.GetPayload(receiver).(*stringBuilder)
		sb.buf += formatInt(args[0].I32)
		return Ref(receiver), nil
	}
	r.Register("java/lang/StringBuilder", "append", "(I)Ljava/lang/StringBuilder;", appendInt)

	appendLong := func(ctx *Context, receiver uint32, args []Value) (Value, error) {
		sb := ctx.GetPayload(receiver).(*stringBuilder)
		sb.buf += formatLong(args[0].I64)
		return Ref(receiver), nil
	}
	r.Register("java/lang/StringBuilder", "append", "(J)Ljava/lang/StringBuilder;", appendLong)

	appendDouble := func(ctx *Context, receiver uint32, args []Value) (Value, error) {
		sb := ctx.GetPayload(receiver).(*stringBuilder)
		sb.buf += formatDouble(args[0].F64)
		return Ref(receiver), nil
	}
	r.Register("java/lang/StringBuilder", "append", "(D)Ljava/lang/StringBuilder;", appendDouble)

	r.Register("java/lang/StringBuilder", "toString", "()Ljava/lang/String;", func(ctx *Context, receiver uint32, _ []Value) (Value, error) {
		sb := ctx.GetPayload(receiver).(*stringBuilder)
		return Ref(ctx.NewString(sb.buf)), nil
	})
}

func formatLong(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	var buf [24]byte
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

func formatDouble(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
