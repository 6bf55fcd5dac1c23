package ber

import "fmt"

// Sequence returns a universal SEQUENCE holding children in order
func Sequence(children ...Value) Value {
	return NewConstructed(ClassUniversal, TagSequence, children...)
}

// Set returns a universal SET holding children in the given order. No DER
// sorting is applied; callers that need canonical SET OF order sort first.
func Set(children ...Value) Value {
	return NewConstructed(ClassUniversal, TagSet, children...)
}

// DecodeSequence returns the elements of a universal SEQUENCE
func DecodeSequence(v Value) ([]Value, error) {
	if err := expect(v, ClassUniversal, TagSequence, true); err != nil {
		return nil, err
	}
	return v.Children, nil
}

// DecodeSet returns the elements of a universal SET in wire order
func DecodeSet(v Value) ([]Value, error) {
	if err := expect(v, ClassUniversal, TagSet, true); err != nil {
		return nil, err
	}
	return v.Children, nil
}

// FieldReader walks the elements of a SEQUENCE in schema order. Optional
// fields are detected by peeking at the next element's tag; once a field is
// consumed there is no going back.
type FieldReader struct {
	name   string
	fields []Value
	pos    int
}

// NewFieldReader returns a reader over fields. name is used in errors.
func NewFieldReader(name string, fields []Value) *FieldReader {
	return &FieldReader{name: name, fields: fields}
}

// Peek returns the next element without consuming it
func (r *FieldReader) Peek() (Value, bool) {
	if r.pos >= len(r.fields) {
		return Value{}, false
	}
	return r.fields[r.pos], true
}

// Next consumes the next mandatory element
func (r *FieldReader) Next(field string) (Value, error) {
	v, ok := r.Peek()
	if !ok {
		return Value{}, fmt.Errorf("%w: %s is missing %s", ErrIncompleteContainer, r.name, field)
	}
	r.pos++
	return v, nil
}

// Optional consumes the next element only if it carries class/tag
func (r *FieldReader) Optional(class Class, tag int) (Value, bool) {
	v, ok := r.Peek()
	if !ok || !v.Is(class, tag) {
		return Value{}, false
	}
	r.pos++
	return v, true
}

// Remaining returns the number of unconsumed elements
func (r *FieldReader) Remaining() int {
	return len(r.fields) - r.pos
}

// Finish fails if any element was left unconsumed
func (r *FieldReader) Finish() error {
	if n := r.Remaining(); n > 0 {
		return fmt.Errorf("%w: %s has %d unexpected trailing elements starting with %s",
			ErrTrailingData, r.name, n, r.fields[r.pos])
	}
	return nil
}
