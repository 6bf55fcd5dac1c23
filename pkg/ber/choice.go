package ber

// Alternative is one arm of a CHOICE, selected by the class and tag number
// of the value on the wire
type Alternative[T any] struct {
	Class  Class
	Tag    int
	Decode func(Value) (T, error)
}

// ResolveChoice decodes v with the first alternative whose tag matches.
// When none matches it returns ok == false and a nil error: an unknown
// alternative is a valid outcome the caller decides how to treat. Once an
// alternative is selected its decode error is final.
func ResolveChoice[T any](v Value, alternatives ...Alternative[T]) (result T, ok bool, err error) {
	for _, alt := range alternatives {
		if !v.Is(alt.Class, alt.Tag) {
			continue
		}
		result, err = alt.Decode(v)
		if err != nil {
			var zero T
			return zero, false, err
		}
		return result, true, nil
	}
	return result, false, nil
}
