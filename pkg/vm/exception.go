package vm

import (
	"strconv"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/object"
)

// JavaException wraps a heap-allocated throwable object so it can travel
// through Go's error-return plumbing; findHandler/runFrame unwrap it to
// search the active frame's exception table before letting it propagate.
type JavaException struct {
	Ref uint32
}

func (e *JavaException) Error() string {
	return "uncaught Java exception (ref " + strconv.Itoa(int(e.Ref)) + ")"
}

// throwNew allocates an instance of className (no constructor run — the
// message is stashed in the Native payload the way this engine backs
// String, since the demonstration class library doesn't model
// Throwable's real field layout) and wraps it as a JavaException, ready
// to unwind the stack.
func (m *Machine) throwNew(className, message string) error {
	inst := object.NewPlain(className, 0)
	inst.Native = message
	ref := m.Heap.Allocate(inst)
	return &JavaException{Ref: ref}
}

// findHandler searches method's exception table for an entry covering pc
// whose catch type matches the thrown object's runtime class (or is a
// catch-all, CatchType == ""), returning the handler's instruction index.
func (m *Machine) findHandler(code *bytecode.Method, pc int, exc *JavaException) (int, bool) {
	excClass := m.classNameOf(exc.Ref)
	for _, e := range code.Exceptions {
		if pc < e.Start || pc >= e.End {
			continue
		}
		if e.CatchType == "" || m.Area.IsInstance(excClass, e.CatchType) {
			return e.Handler, true
		}
	}
	return 0, false
}

func (m *Machine) classNameOf(ref uint32) string {
	return m.Heap.Get(ref).(*object.Instance).ClassName
}
