package ber

import "fmt"

// Value is a decoded TLV. A primitive value carries its content octets in
// Bytes; a constructed value carries its nested values in Children. The two
// are never set together.
type Value struct {
	Class       Class
	Tag         int
	Constructed bool
	Bytes       []byte
	Children    []Value
}

// NewPrimitive returns a primitive value with the given content octets
func NewPrimitive(class Class, tag int, content []byte) Value {
	return Value{Class: class, Tag: tag, Bytes: content}
}

// NewConstructed returns a constructed value holding children in order
func NewConstructed(class Class, tag int, children ...Value) Value {
	return Value{Class: class, Tag: tag, Constructed: true, Children: children}
}

// Is reports whether v carries the given class and tag number
func (v Value) Is(class Class, tag int) bool {
	return v.Class == class && v.Tag == tag
}

// IsContext reports whether v carries the context-specific tag [tag]
func (v Value) IsContext(tag int) bool {
	return v.Is(ClassContextSpecific, tag)
}

// WithTag returns v with its identifier replaced and its content untouched.
// This is implicit tagging in both directions: encoders use it to put a
// context tag on a universal type, decoders use it to put the universal tag
// their schema expects back before reading the content.
func (v Value) WithTag(class Class, tag int) Value {
	v.Class = class
	v.Tag = tag
	return v
}

// Explicit wraps inner in a constructed value tagged class/tag
func Explicit(class Class, tag int, inner Value) Value {
	return NewConstructed(class, tag, inner)
}

// Unwrap strips an explicit tag and returns the single TLV inside it
func (v Value) Unwrap(class Class, tag int) (Value, error) {
	if !v.Is(class, tag) {
		return Value{}, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedTag, v, tagName(class, tag))
	}
	if !v.Constructed {
		return Value{}, fmt.Errorf("%w: explicit %s must be constructed", ErrUnexpectedTag, tagName(class, tag))
	}
	switch len(v.Children) {
	case 0:
		return Value{}, fmt.Errorf("%w: explicit %s is empty", ErrIncompleteContainer, tagName(class, tag))
	case 1:
		return v.Children[0], nil
	default:
		return Value{}, fmt.Errorf("%w: explicit %s holds %d values", ErrTrailingData, tagName(class, tag), len(v.Children))
	}
}

func (v Value) String() string {
	if v.Constructed {
		return tagName(v.Class, v.Tag) + "/c"
	}
	return tagName(v.Class, v.Tag)
}

// expect checks the identifier of a value whose schema type is fixed
func expect(v Value, class Class, tag int, constructed bool) error {
	if !v.Is(class, tag) {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedTag, v, tagName(class, tag))
	}
	if v.Constructed != constructed {
		form := "primitive"
		if constructed {
			form = "constructed"
		}
		return fmt.Errorf("%w: %s must be %s", ErrUnexpectedTag, tagName(class, tag), form)
	}
	return nil
}
