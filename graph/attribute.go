package graph

import (
	"fmt"
	"iter"
	"slices"

	"sagraph/strtable"
)

// Kind is the closed set of attribute variants.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindComposite:
		return "composite"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Attribute is implemented by *IntAttribute, *FloatAttribute,
// *StringAttribute and *CompositeAttribute only. Switch on the concrete
// type; there is no other variant.
type Attribute interface {
	Name() strtable.Key
	Context() strtable.Key
	Kind() Kind
	sealed()
}

type attrHeader struct {
	name    strtable.Key
	context strtable.Key
}

func (h attrHeader) Name() strtable.Key    { return h.name }
func (h attrHeader) Context() strtable.Key { return h.context }
func (attrHeader) sealed()                 {}

type IntAttribute struct {
	attrHeader
	Value int32
}

func (*IntAttribute) Kind() Kind { return KindInt }

type FloatAttribute struct {
	attrHeader
	Value float32
}

func (*FloatAttribute) Kind() Kind { return KindFloat }

// StringAttribute stores its value as a key of the owning graph's table.
type StringAttribute struct {
	attrHeader
	Value strtable.Key
}

func (*StringAttribute) Kind() Kind { return KindString }

type CompositeAttribute struct {
	attrHeader
	Attrs AttributeList
}

func (*CompositeAttribute) Kind() Kind { return KindComposite }

// KindError is raised when an attribute is used as a kind it is not.
type KindError struct {
	Want Kind
	Got  Kind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("attribute kind mismatch: want %s, got %s", e.Want, e.Got)
}

func kindOf(a Attribute) Kind {
	if a == nil {
		return 0
	}
	return a.Kind()
}

func AsInt(a Attribute) (*IntAttribute, error) {
	if v, ok := a.(*IntAttribute); ok {
		return v, nil
	}
	return nil, &KindError{Want: KindInt, Got: kindOf(a)}
}

func AsFloat(a Attribute) (*FloatAttribute, error) {
	if v, ok := a.(*FloatAttribute); ok {
		return v, nil
	}
	return nil, &KindError{Want: KindFloat, Got: kindOf(a)}
}

func AsString(a Attribute) (*StringAttribute, error) {
	if v, ok := a.(*StringAttribute); ok {
		return v, nil
	}
	return nil, &KindError{Want: KindString, Got: kindOf(a)}
}

func AsComposite(a Attribute) (*CompositeAttribute, error) {
	if v, ok := a.(*CompositeAttribute); ok {
		return v, nil
	}
	return nil, &KindError{Want: KindComposite, Got: kindOf(a)}
}

// MustInt panics with a *KindError when a is not an int attribute.
func MustInt(a Attribute) *IntAttribute {
	v, err := AsInt(a)
	if err != nil {
		panic(err)
	}
	return v
}

func MustFloat(a Attribute) *FloatAttribute {
	v, err := AsFloat(a)
	if err != nil {
		panic(err)
	}
	return v
}

func MustString(a Attribute) *StringAttribute {
	v, err := AsString(a)
	if err != nil {
		panic(err)
	}
	return v
}

func MustComposite(a Attribute) *CompositeAttribute {
	v, err := AsComposite(a)
	if err != nil {
		panic(err)
	}
	return v
}

// NumericValue returns the value of an int or float attribute. Strings and
// composites report false and are meant to be skipped.
func NumericValue(a Attribute) (float64, bool) {
	switch a := a.(type) {
	case *IntAttribute:
		return float64(a.Value), true
	case *FloatAttribute:
		return float64(a.Value), true
	case *StringAttribute, *CompositeAttribute:
		return 0, false
	}
	return 0, false
}

// Equal compares two attributes structurally. Keys are compared as keys,
// so both attributes must come from the same table.
func Equal(a, b Attribute) bool {
	if a.Name() != b.Name() || a.Context() != b.Context() || a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *IntAttribute:
		return a.Value == b.(*IntAttribute).Value
	case *FloatAttribute:
		return a.Value == b.(*FloatAttribute).Value
	case *StringAttribute:
		return a.Value == b.(*StringAttribute).Value
	case *CompositeAttribute:
		return a.Attrs.Equal(&b.(*CompositeAttribute).Attrs)
	}
	return false
}

// Clone deep-copies a, translating every key through remap when it is not
// nil.
func Clone(a Attribute, remap func(strtable.Key) strtable.Key) Attribute {
	if remap == nil {
		remap = func(k strtable.Key) strtable.Key { return k }
	}
	h := attrHeader{name: remap(a.Name()), context: remap(a.Context())}
	switch a := a.(type) {
	case *IntAttribute:
		return &IntAttribute{attrHeader: h, Value: a.Value}
	case *FloatAttribute:
		return &FloatAttribute{attrHeader: h, Value: a.Value}
	case *StringAttribute:
		return &StringAttribute{attrHeader: h, Value: remap(a.Value)}
	case *CompositeAttribute:
		c := &CompositeAttribute{attrHeader: h}
		for _, child := range a.Attrs.items {
			c.Attrs.Add(Clone(child, remap))
		}
		return c
	}
	panic(fmt.Sprintf("graph: unknown attribute type %T", a))
}

// AttributeList is an ordered, possibly multi-valued attribute collection.
type AttributeList struct {
	items []Attribute
}

func (l *AttributeList) Add(a Attribute) {
	l.items = append(l.items, a)
}

func (l *AttributeList) Len() int { return len(l.items) }

// At returns the i-th attribute in insertion order.
func (l *AttributeList) At(i int) Attribute { return l.items[i] }

// All yields attributes in insertion order.
func (l *AttributeList) All() iter.Seq[Attribute] {
	return func(yield func(Attribute) bool) {
		for _, a := range l.items {
			if !yield(a) {
				return
			}
		}
	}
}

// FindByName yields every attribute called name, in insertion order.
func (l *AttributeList) FindByName(name strtable.Key) iter.Seq[Attribute] {
	return func(yield func(Attribute) bool) {
		for _, a := range l.items {
			if a.Name() == name && !yield(a) {
				return
			}
		}
	}
}

// FindByNameContext yields attributes matching both name and context.
func (l *AttributeList) FindByNameContext(name, context strtable.Key) iter.Seq[Attribute] {
	return func(yield func(Attribute) bool) {
		for _, a := range l.items {
			if a.Name() == name && a.Context() == context && !yield(a) {
				return
			}
		}
	}
}

// First returns the first attribute called name, or nil.
func (l *AttributeList) First(name strtable.Key) Attribute {
	for _, a := range l.items {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// Remove deletes every attribute for which drop returns true and reports
// how many were removed.
func (l *AttributeList) Remove(drop func(Attribute) bool) int {
	before := len(l.items)
	l.items = slices.DeleteFunc(l.items, drop)
	return before - len(l.items)
}

// Contains reports whether a structurally equal attribute is present.
func (l *AttributeList) Contains(a Attribute) bool {
	for _, b := range l.items {
		if Equal(a, b) {
			return true
		}
	}
	return false
}

// Equal compares two lists element by element, order included.
func (l *AttributeList) Equal(o *AttributeList) bool {
	if len(l.items) != len(o.items) {
		return false
	}
	for i := range l.items {
		if !Equal(l.items[i], o.items[i]) {
			return false
		}
	}
	return true
}
