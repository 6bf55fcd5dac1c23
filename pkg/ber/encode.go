package ber

import "fmt"

// Encoder produces DER: definite lengths only, minimal length octets.
// The zero value is ready to use.
type Encoder struct {
	// MaxDepth mirrors Decoder.MaxDepth. Zero selects DefaultMaxDepth.
	MaxDepth int
}

// Encode encodes v with the default limits
func Encode(v Value) ([]byte, error) {
	return Encoder{}.Encode(v)
}

// Encode encodes v and everything nested in it
func (e Encoder) Encode(v Value) ([]byte, error) {
	maxDepth := e.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return appendValue(nil, v, 1, maxDepth)
}

func appendValue(dst []byte, v Value, depth, maxDepth int) ([]byte, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds %d", ErrNestingTooDeep, depth, maxDepth)
	}
	if v.Class == ClassUniversal && v.Tag == TagEndOfContents {
		return nil, fmt.Errorf("%w: end-of-contents is not a value", ErrInvalidValue)
	}

	var content []byte
	if v.Constructed {
		if v.Bytes != nil {
			return nil, fmt.Errorf("%w: constructed %s carries content octets", ErrInvalidValue, v)
		}
		for _, child := range v.Children {
			var err error
			content, err = appendValue(content, child, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
		}
	} else {
		if v.Children != nil {
			return nil, fmt.Errorf("%w: primitive %s carries nested values", ErrInvalidValue, v)
		}
		content = v.Bytes
	}

	dst, err := AppendHeader(dst, Header{
		Class:       v.Class,
		Tag:         v.Tag,
		Constructed: v.Constructed,
		Length:      len(content),
	})
	if err != nil {
		return nil, err
	}
	return append(dst, content...), nil
}

// Normalize re-encodes BER input as DER. Indefinite lengths become definite
// and constructed OCTET STRING segments are joined into one primitive. An
// implicitly tagged [0] holding two or more OCTET STRING segments, the form
// BER producers use for PKCS #7 encryptedContent, is joined the same way and
// keeps its [0] tag.
func Normalize(data []byte) ([]byte, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	v, err = flattenOctetStrings(v, 1)
	if err != nil {
		return nil, err
	}
	return Encode(v)
}

func flattenOctetStrings(v Value, depth int) (Value, error) {
	if !v.Constructed {
		return v, nil
	}
	if v.Is(ClassUniversal, TagOctetString) {
		content, err := v.OctetString()
		if err != nil {
			return Value{}, err
		}
		return OctetString(content), nil
	}
	if depth > DefaultMaxDepth {
		return Value{}, fmt.Errorf("%w: depth %d exceeds %d", ErrNestingTooDeep, depth, DefaultMaxDepth)
	}
	children := make([]Value, len(v.Children))
	for i, child := range v.Children {
		flat, err := flattenOctetStrings(child, depth+1)
		if err != nil {
			return Value{}, err
		}
		children[i] = flat
	}
	if v.IsContext(0) && len(children) > 1 && primitiveOctetSegments(children) {
		var content []byte
		for _, seg := range children {
			content = append(content, seg.Bytes...)
		}
		return NewPrimitive(v.Class, v.Tag, content), nil
	}
	if len(children) == 0 {
		children = nil
	}
	v.Children = children
	return v, nil
}

// primitiveOctetSegments reports whether every child is a primitive OCTET
// STRING. An EXPLICIT [0] wraps exactly one value, so callers only ask this
// of two or more children.
func primitiveOctetSegments(children []Value) bool {
	for _, c := range children {
		if c.Constructed || !c.Is(ClassUniversal, TagOctetString) {
			return false
		}
	}
	return true
}
