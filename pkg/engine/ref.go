package engine

import (
	"fmt"
	"reflect"
)

// FieldRef points at a field of an entity. The set of shapes is closed:
// Member, Call, Param, Length, Convert, Invoke, Binary and Constant.
// Only the first six can be resolved to a name.
type FieldRef interface {
	isFieldRef()
}

type (
	// Member is a direct field or property access.
	Member struct {
		Name string
	}

	// Call is a zero-argument accessor, e.g. a computed property.
	Call struct {
		Method string
	}

	// Param is the entity itself.
	Param struct {
		Name string
	}

	// Length is the built-in length of a sequence-valued operand.
	Length struct {
		Operand FieldRef
	}

	// Convert is a type conversion wrapped around another reference.
	Convert struct {
		Operand FieldRef
		Type    string
	}

	// Invoke is a delegate invocation wrapped around another reference.
	Invoke struct {
		Operand FieldRef
	}

	// Binary is an arithmetic or comparison expression. Not a selector.
	Binary struct {
		Op          string
		Left, Right FieldRef
	}

	// Constant is a literal. Not a selector.
	Constant struct {
		Value any
	}

	unresolvedRef struct {
		reason string
	}
)

func (Member) isFieldRef()        {}
func (Call) isFieldRef()          {}
func (Param) isFieldRef()         {}
func (Length) isFieldRef()        {}
func (Convert) isFieldRef()       {}
func (Invoke) isFieldRef()        {}
func (Binary) isFieldRef()        {}
func (Constant) isFieldRef()      {}
func (unresolvedRef) isFieldRef() {}

// LengthFieldName is what every Length reference resolves to.
const LengthFieldName = "Length"

const maxRefDepth = 32

// Prop is shorthand for Member{Name: name}.
func Prop(name string) FieldRef {
	return Member{Name: name}
}

// ResolveFieldName returns the mapped property name a reference selects.
// Wrappers (Convert, Invoke) are unwrapped until a terminal shape is found.
func ResolveFieldName(ref FieldRef) (string, error) {
	return resolve(ref, ref, 0)
}

func resolve(root, ref FieldRef, depth int) (string, error) {
	if depth > maxRefDepth {
		return "", &UnsupportedReferenceError{Ref: root, Reason: "nesting too deep"}
	}

	switch r := deref(ref).(type) {
	case Member:
		return nonEmpty(root, r.Name)
	case Call:
		return nonEmpty(root, r.Method)
	case Param:
		return nonEmpty(root, r.Name)
	case Length:
		return LengthFieldName, nil
	case Convert:
		return resolve(root, r.Operand, depth+1)
	case Invoke:
		return resolve(root, r.Operand, depth+1)
	case unresolvedRef:
		return "", &UnsupportedReferenceError{Ref: root, Reason: r.reason}
	default:
		return "", &UnsupportedReferenceError{Ref: root}
	}
}

func nonEmpty(root FieldRef, name string) (string, error) {
	if name == "" {
		return "", &UnsupportedReferenceError{Ref: root, Reason: "empty name"}
	}
	return name, nil
}

// deref lets callers pass &Member{...} as well as Member{...}.
func deref(ref FieldRef) FieldRef {
	switch r := ref.(type) {
	case *Member:
		if r != nil {
			return *r
		}
	case *Call:
		if r != nil {
			return *r
		}
	case *Param:
		if r != nil {
			return *r
		}
	case *Length:
		if r != nil {
			return *r
		}
	case *Convert:
		if r != nil {
			return *r
		}
	case *Invoke:
		if r != nil {
			return *r
		}
	default:
		return ref
	}
	return nil
}

func describeRef(ref FieldRef) string {
	switch r := deref(ref).(type) {
	case nil:
		return "<nil>"
	case Member:
		return fmt.Sprintf("Member(%s)", r.Name)
	case Call:
		return fmt.Sprintf("Call(%s)", r.Method)
	case Param:
		return fmt.Sprintf("Param(%s)", r.Name)
	case Length:
		return fmt.Sprintf("Length(%s)", describeRef(r.Operand))
	case Convert:
		return fmt.Sprintf("Convert(%s)", describeRef(r.Operand))
	case Invoke:
		return fmt.Sprintf("Invoke(%s)", describeRef(r.Operand))
	case Binary:
		return fmt.Sprintf("Binary(%s %s %s)", describeRef(r.Left), r.Op, describeRef(r.Right))
	case Constant:
		return fmt.Sprintf("Constant(%v)", r.Value)
	case unresolvedRef:
		return "Selector"
	default:
		return fmt.Sprintf("%T", ref)
	}
}

// FieldOf builds a Member reference from a selector returning the address
// of a field of T, so field names are checked by the compiler:
//
//	engine.FieldOf(func(c *Car) any { return &c.Year })
//
// Fields of embedded structs resolve to their own name. A selector that does
// not return the address of a field of T yields a reference that fails to
// resolve.
func FieldOf[T any](sel func(*T) any) FieldRef {
	if sel == nil {
		return unresolvedRef{reason: "nil selector"}
	}

	ptr := new(T)
	base := reflect.ValueOf(ptr).Elem()
	if base.Kind() != reflect.Struct {
		return unresolvedRef{reason: fmt.Sprintf("%s is not a struct", base.Type())}
	}

	target := reflect.ValueOf(sel(ptr))
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return unresolvedRef{reason: "selector must return the address of a field"}
	}

	if name, ok := findField(base, target.Pointer(), target.Type().Elem()); ok {
		return Member{Name: name}
	}
	return unresolvedRef{reason: fmt.Sprintf("selector does not address a field of %s", base.Type())}
}

func findField(v reflect.Value, addr uintptr, typ reflect.Type) (string, bool) {
	for i := 0; i < v.NumField(); i++ {
		sf := v.Type().Field(i)
		fv := v.Field(i)
		if fv.Addr().Pointer() == addr && fv.Type() == typ {
			return sf.Name, true
		}
		if sf.Anonymous && fv.Kind() == reflect.Struct {
			if name, ok := findField(fv, addr, typ); ok {
				return name, true
			}
		}
	}
	return "", false
}
