package native

import "fmt"

// registerSystem wires up the handful of java.io.PrintStream overloads the
// test scenarios call through System.out.
func registerSystem(r *Registry) {
	println := func(ctx *Context, _ uint32, args []Value) (Value, error) {
		if len(args) == 0 {
			fmt.Fprintln(ctx.Stdout)
			return Void(), nil
		}
		fmt.Fprintln(ctx.Stdout, formatArg(ctx, args[0]))
		return Void(), nil
	}
	print := func(ctx *Context, _ uint32, args []Value) (Value, error) {
		if len(args) > 0 {
			fmt.Fprint(ctx.Stdout, formatArg(ctx, args[0]))
		}
		return Void(), nil
	}

	for _, desc := range []string{"(Ljava/lang/String;)V", "(I)V", "(J)V", "(F)V", "(D)V", "(Z)V", "(C)V", "()V", "(Ljava/lang/Object;)V"} {
		r.Register("java/io/PrintStream", "println", desc, println)
		r.Register("java/io/PrintStream", "print", desc, print)
	}
}

func formatArg(ctx *Context, v Value) string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.I32)
	case KindLong:
		return fmt.Sprintf("%d", v.I64)
	case KindFloat:
		return formatDouble(float64(v.F32))
	case KindDouble:
		return formatDouble(v.F64)
	case KindRef:
		return ctx.GoString(v.Ref)
	default:
		return ""
	}
}
