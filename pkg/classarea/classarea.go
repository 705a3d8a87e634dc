// Package classarea is the method area: it loads class files, lays out
// instance and static field slots, lazily decodes method bodies, and
// runs each class's <clinit> exactly once.
package classarea

import (
	"fmt"
	"math"
	"sync"

	"github.com/daimatz/gojvm/pkg/bytecode"
	"github.com/daimatz/gojvm/pkg/classfile"
	"github.com/daimatz/gojvm/pkg/descriptor"
	"github.com/daimatz/gojvm/pkg/heap"
)

// ClassLoader loads a named class's raw, parsed form. It mirrors the
// spec's "external collaborator" classpath resolution; this package only
// depends on the interface, not on any particular storage medium.
type ClassLoader interface {
	LoadClass(name string) (*classfile.RawClass, error)
}

// Field is one laid-out field: instance fields get a slot index into an
// Instance's flat vector, static fields get a slot index into their
// owning Class's Statics vector.
type Field struct {
	Name        string
	Type        descriptor.FieldType
	AccessFlags uint16
	Slot        int
	IsRef       bool

	HasConstantValue bool
	ConstantValue    *classfile.Constant
}

// Method is a resolved, lazily-decoded method. Code is nil until the
// first call reaches Decode.
type Method struct {
	Name        string
	Descriptor  descriptor.MethodDescriptor
	AccessFlags uint16
	Raw         *classfile.RawMethod
	owner       *Class

	mu      sync.Mutex
	decoded *bytecode.Method
}

// IsNative reports whether the method has no Code attribute — either a
// true `native` method or `abstract`.
func (m *Method) IsNative() bool { return m.Raw.Code == nil }

// IsStatic reports whether the method is declared static.
func (m *Method) IsStatic() bool { return m.AccessFlags&classfile.AccStatic != 0 }

// Owner returns the class this method was loaded from.
func (m *Method) Owner() *Class { return m.owner }

// Decode lazily decodes the method's bytecode into the instruction IR,
// caching the result — every subsequent call returns the same *bytecode.Method
// without re-running the decoder.
func (m *Method) Decode() (*bytecode.Method, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.decoded != nil {
		return m.decoded, nil
	}
	if m.Raw.Code == nil {
		return nil, fmt.Errorf("method %s.%s%s has no code to decode", m.owner.Name, m.Name, m.Descriptor.Raw)
	}
	decoded, err := bytecode.Decode(m.Raw.Code, m.owner.Pool)
	if err != nil {
		return nil, fmt.Errorf("decoding %s.%s%s: %w", m.owner.Name, m.Name, m.Descriptor.Raw, err)
	}
	m.decoded = decoded
	return decoded, nil
}

// Class is a loaded, laid-out class ready for the interpreter to run
// methods against: fields are assigned flat slot offsets (including the
// inherited ones, so instance layout is a single flat vector with no
// linked super-chain to walk at field-access time), and methods are
// indexed by name+descriptor for quick lookup.
type Class struct {
	Name       string
	SuperName  string
	Interfaces []string
	AccessFlags uint16
	Pool       classfile.Pool

	// BootstrapMethods backs invokedynamic: each CInvokeDynamic constant's
	// BootstrapIndex indexes into this slice for the handle and static
	// arguments pkg/vm's bootstrap dispatch needs.
	BootstrapMethods []classfile.RawBootstrapMethod

	InstanceFields []Field // this class's own declared instance fields
	StaticFields   []Field

	InstanceSlotCount int // total instance slots, including inherited ones
	instanceFieldIdx  map[string]*Field
	staticFieldIdx    map[string]*Field

	Methods    []*Method
	methodIdx  map[string]*Method

	StaticSlotCount int
	Statics         []int32
	StaticIsRef     []bool

	initMu   sync.Mutex
	initErr  error
	initDone bool

	super *Class
}

func methodKey(name, descriptor string) string { return name + ":" + descriptor }

// FindMethod looks up a method declared directly on this class (no
// superclass walk — callers that need virtual dispatch walk Area
// themselves so they can apply the right resolution rule per call kind).
func (c *Class) FindMethod(name, desc string) *Method {
	return c.methodIdx[methodKey(name, desc)]
}

// FindInstanceField looks up an instance field by name, including ones
// inherited from a superclass.
func (c *Class) FindInstanceField(name string) (*Field, bool) {
	for cur := c; cur != nil; cur = cur.super {
		if f, ok := cur.instanceFieldIdx[name]; ok {
			return f, true
		}
	}
	return nil, false
}

// FindStaticField looks up a static field declared directly on this
// class (statics are not inherited the way instance fields are; callers
// walk the superclass chain themselves per JVMS §5.4.3.2 if needed).
func (c *Class) FindStaticField(name string) (*Field, bool) {
	f, ok := c.staticFieldIdx[name]
	return f, ok
}

// ResolveStaticField looks up a static field starting at c and walking up
// the superclass chain (JVMS §5.4.3.2's simplified form — interfaces
// contributing constants are out of scope here). It returns the class
// that actually declares the field, since that is whose Statics vector
// the slot indexes into.
func (c *Class) ResolveStaticField(name string) (*Field, *Class, bool) {
	for cur := c; cur != nil; cur = cur.super {
		if f, ok := cur.staticFieldIdx[name]; ok {
			return f, cur, true
		}
	}
	return nil, nil, false
}

// IsInterface reports whether this class was declared as an interface.
func (c *Class) IsInterface() bool { return c.AccessFlags&classfile.AccInterface != 0 }

// FieldLayout returns a flat, InstanceSlotCount-long array marking which
// instance slots are reference-typed, covering this class's own fields
// and every field inherited from its superclass chain — the per-object
// template object.NewPlain's IsRef vector is initialized from.
func (c *Class) FieldLayout() []bool {
	layout := make([]bool, c.InstanceSlotCount)
	for cur := c; cur != nil; cur = cur.super {
		for _, f := range cur.InstanceFields {
			if f.IsRef {
				layout[f.Slot] = true
			}
		}
	}
	return layout
}

// Super returns the loaded superclass, or nil for java/lang/Object.
func (c *Class) Super() *Class { return c.super }

// Area is the method area: the registry of every class loaded so far,
// keyed by internal (slash-separated) name.
type Area struct {
	mu      sync.Mutex
	loader  ClassLoader
	classes map[string]*Class
}

// NewArea creates an empty method area backed by loader.
func NewArea(loader ClassLoader) *Area {
	return &Area{loader: loader, classes: make(map[string]*Class)}
}

// IsInstance reports whether an object of className is assignable to
// targetName, walking the superclass chain and recursively checking
// implemented interfaces. A class that fails to load along the way is
// treated as "not an instance" rather than propagating the load error,
// matching how instanceof/checkcast degrade when a referenced class is
// absent from the classpath.
func (a *Area) IsInstance(className, targetName string) bool {
	return a.isInstance(className, targetName, make(map[string]bool))
}

func (a *Area) isInstance(className, targetName string, visited map[string]bool) bool {
	if className == targetName || targetName == "java/lang/Object" {
		return true
	}
	if visited[className] {
		return false
	}
	visited[className] = true

	c, err := a.Load(className)
	if err != nil {
		return false
	}
	for _, ifName := range c.Interfaces {
		if a.isInstance(ifName, targetName, visited) {
			return true
		}
	}
	if c.SuperName == "" {
		return false
	}
	return a.isInstance(c.SuperName, targetName, visited)
}

// Load returns the Class for name, loading and laying it out on first
// request and caching the result for subsequent calls.
func (a *Area) Load(name string) (*Class, error) {
	a.mu.Lock()
	if c, ok := a.classes[name]; ok {
		a.mu.Unlock()
		return c, nil
	}
	a.mu.Unlock()

	raw, err := a.loader.LoadClass(name)
	if err != nil {
		return nil, fmt.Errorf("loading class %s: %w", name, err)
	}

	var super *Class
	superName, err := raw.SuperClassName()
	if err != nil {
		return nil, fmt.Errorf("resolving superclass of %s: %w", name, err)
	}
	if superName != "" {
		super, err = a.Load(superName)
		if err != nil {
			return nil, err
		}
	}

	pool, err := cookedPool(raw)
	if err != nil {
		return nil, fmt.Errorf("cooking constant pool of %s: %w", name, err)
	}

	c := &Class{
		Name:              name,
		SuperName:         superName,
		AccessFlags:       raw.AccessFlags,
		Pool:              pool,
		BootstrapMethods:  raw.BootstrapMethods,
		instanceFieldIdx:  make(map[string]*Field),
		staticFieldIdx:    make(map[string]*Field),
		methodIdx:         make(map[string]*Method),
		super:             super,
		InstanceSlotCount: 0,
	}
	if super != nil {
		c.InstanceSlotCount = super.InstanceSlotCount
	}

	for i := range raw.Interfaces {
		ifName, err := pool.ClassNameAt(raw.Interfaces[i])
		if err != nil {
			return nil, fmt.Errorf("resolving interface %d of %s: %w", i, name, err)
		}
		c.Interfaces = append(c.Interfaces, ifName)
	}

	if err := layoutFields(c, raw, pool); err != nil {
		return nil, fmt.Errorf("laying out fields of %s: %w", name, err)
	}

	for i := range raw.Methods {
		rm := &raw.Methods[i]
		nameStr, err := pool.Utf8At(rm.NameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method name in %s: %w", name, err)
		}
		descStr, err := pool.Utf8At(rm.DescIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method descriptor in %s: %w", name, err)
		}
		md, err := descriptor.ParseMethod(descStr)
		if err != nil {
			return nil, fmt.Errorf("parsing descriptor of %s.%s: %w", name, nameStr, err)
		}
		m := &Method{
			Name:        nameStr,
			Descriptor:  md,
			AccessFlags: rm.AccessFlags,
			Raw:         rm,
			owner:       c,
		}
		c.Methods = append(c.Methods, m)
		c.methodIdx[methodKey(nameStr, descStr)] = m
	}

	a.mu.Lock()
	a.classes[name] = c
	a.mu.Unlock()
	return c, nil
}

// EnsureInitialized runs <clinit> for c exactly once, initializing its
// superclass first. run is supplied by the interpreter (pkg/vm), which is
// the only thing that knows how to execute a method body; this package
// only owns the "has this already happened" latch.
//
// The latch is armed before recursing into the superclass or running
// <clinit>, the same way the teacher's ensureInitialized does it, so that
// a <clinit> which (directly or transitively) touches its own class again
// sees initialization as already underway rather than recursing forever.
func (c *Class) EnsureInitialized(run func(c *Class, clinit *Method) error) error {
	c.initMu.Lock()
	if c.initDone {
		c.initMu.Unlock()
		return c.initErr
	}
	c.initDone = true // armed before recursing, so re-entrant <clinit> calls see "already initializing"
	c.initMu.Unlock()

	if c.super != nil {
		if err := c.super.EnsureInitialized(run); err != nil {
			c.initMu.Lock()
			c.initErr = err
			c.initMu.Unlock()
			return err
		}
	}
	clinit := c.FindMethod("<clinit>", "()V")
	if clinit == nil {
		return nil
	}
	if err := run(c, clinit); err != nil {
		c.initMu.Lock()
		c.initErr = err
		c.initMu.Unlock()
		return err
	}
	return nil
}

// Initialized reports whether EnsureInitialized has already run (or is
// currently running) for this class.
func (c *Class) Initialized() bool { return c.initDone }

// Get returns an already-loaded class, or nil.
func (a *Area) Get(name string) *Class {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.classes[name]
}

// layoutFields assigns flat slot indices to a class's declared fields,
// continuing instance numbering from the superclass's slot count so the
// whole hierarchy shares one flat vector with no linked super-chain to
// walk at access time.
func layoutFields(c *Class, raw *classfile.RawClass, pool classfile.Pool) error {
	for i := range raw.Fields {
		rf := &raw.Fields[i]
		nameStr, err := pool.Utf8At(rf.NameIndex)
		if err != nil {
			return err
		}
		descStr, err := pool.Utf8At(rf.DescIndex)
		if err != nil {
			return err
		}
		ft, _, err := descriptor.ParseField(descStr)
		if err != nil {
			return fmt.Errorf("parsing field descriptor %s.%s: %w", c.Name, nameStr, err)
		}

		f := Field{
			Name:        nameStr,
			Type:        ft,
			AccessFlags: rf.AccessFlags,
			IsRef:       ft.IsReference(),
		}
		if rf.HasConstantValue {
			cv, err := pool.At(rf.ConstantValueIndex)
			if err != nil {
				return err
			}
			f.HasConstantValue = true
			f.ConstantValue = cv
		}

		if rf.AccessFlags&classfile.AccStatic != 0 {
			f.Slot = c.StaticSlotCount
			c.StaticSlotCount += ft.Width()
			c.StaticFields = append(c.StaticFields, f)
			c.staticFieldIdx[nameStr] = &c.StaticFields[len(c.StaticFields)-1]
		} else {
			f.Slot = c.InstanceSlotCount
			c.InstanceSlotCount += ft.Width()
			c.InstanceFields = append(c.InstanceFields, f)
			c.instanceFieldIdx[nameStr] = &c.InstanceFields[len(c.InstanceFields)-1]
		}
	}

	c.Statics = make([]int32, c.StaticSlotCount)
	c.StaticIsRef = make([]bool, c.StaticSlotCount)
	for _, f := range c.StaticFields {
		c.StaticIsRef[f.Slot] = f.IsRef
		if f.IsRef {
			// Go's zero value for a slot is 0, which is itself a valid
			// live heap reference (heap index 0 is allocated like any
			// other), so an uninitialized reference field must be
			// sentinel-initialized explicitly rather than left at Go's
			// zero default.
			null := heap.Null
			c.Statics[f.Slot] = int32(null)
		}
		if !f.HasConstantValue {
			continue
		}
		switch f.ConstantValue.Kind {
		case classfile.CLong:
			hi, lo := int64SlotPair(f.ConstantValue.Long)
			c.Statics[f.Slot], c.Statics[f.Slot+1] = hi, lo
		case classfile.CDouble:
			hi, lo := int64SlotPair(int64(math.Float64bits(f.ConstantValue.Double)))
			c.Statics[f.Slot], c.Statics[f.Slot+1] = hi, lo
		case classfile.CString:
			// A static final String constant needs a heap-allocated
			// java/lang/String instance, which this heap-free package
			// cannot create; pkg/vm lazily materializes it on first
			// getstatic (see Machine.materializeStringConstant), using the
			// heap.Null left above as the "not yet materialized" sentinel.
		default:
			c.Statics[f.Slot] = constantValueAsSlot(f.ConstantValue)
		}
	}
	return nil
}

func int64SlotPair(v int64) (hi, lo int32) {
	return int32(uint64(v) >> 32), int32(uint64(v))
}

func constantValueAsSlot(c *classfile.Constant) int32 {
	switch c.Kind {
	case classfile.CInteger:
		return c.Int
	case classfile.CFloat:
		return int32(math.Float32bits(c.Float))
	case classfile.CLong:
		return int32(c.Long) // caller's high-slot companion handles the rest
	default:
		return 0
	}
}

func cookedPool(raw *classfile.RawClass) (classfile.Pool, error) {
	return classfile.CookPool(raw)
}
