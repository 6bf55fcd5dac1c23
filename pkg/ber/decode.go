package ber

import (
	"errors"
	"fmt"
)

// DefaultMaxDepth bounds how deeply constructed values may nest when no
// explicit limit is configured
const DefaultMaxDepth = 64

// Decoder decodes BER input into Value trees. The zero value is ready to use.
type Decoder struct {
	// MaxDepth is the deepest nesting level accepted, counting the outermost
	// value as 1. Zero selects DefaultMaxDepth.
	MaxDepth int
}

func (d Decoder) maxDepth() int {
	if d.MaxDepth > 0 {
		return d.MaxDepth
	}
	return DefaultMaxDepth
}

// Decode decodes data holding exactly one TLV with the default limits
func Decode(data []byte) (Value, error) {
	return Decoder{}.Decode(data)
}

// Decode decodes data holding exactly one TLV. Bytes after it are an error.
func (d Decoder) Decode(data []byte) (Value, error) {
	v, rest, err := d.DecodeFirst(data)
	if err != nil {
		return Value{}, err
	}
	if len(rest) > 0 {
		return Value{}, fmt.Errorf("%w: %d bytes after %s", ErrTrailingData, len(rest), v)
	}
	return v, nil
}

// DecodeFirst decodes the TLV at the start of data and returns the bytes
// that follow it. The returned value does not alias data.
func (d Decoder) DecodeFirst(data []byte) (Value, []byte, error) {
	p := parser{maxDepth: d.maxDepth()}
	v, n, err := p.parse(data, 0, 1)
	if err != nil {
		return Value{}, nil, err
	}
	return v, data[n:], nil
}

type parser struct {
	maxDepth int
}

// parse decodes the TLV at buf[off:]. buf ends where the enclosing definite
// container ends, or at the end of input. It returns the octets consumed.
func (p *parser) parse(buf []byte, off, depth int) (Value, int, error) {
	if depth > p.maxDepth {
		return Value{}, 0, fmt.Errorf("%w: depth %d exceeds %d", ErrNestingTooDeep, depth, p.maxDepth)
	}

	h, hl, err := ParseHeader(buf, off)
	if err != nil {
		return Value{}, 0, err
	}
	if h.Class == ClassUniversal && h.Tag == TagEndOfContents {
		return Value{}, 0, fmt.Errorf("%w: unexpected end-of-contents at offset %d", ErrInvalidTag, off)
	}

	v := Value{Class: h.Class, Tag: h.Tag, Constructed: h.Constructed}
	start := off + hl

	if h.Length == LengthIndefinite {
		children, n, err := p.parseIndefinite(buf, start, depth)
		if err != nil {
			return Value{}, 0, err
		}
		v.Children = children
		return v, hl + n, nil
	}

	if h.Length > len(buf)-start {
		return Value{}, 0, fmt.Errorf("%w: %s needs %d content octets, %d available",
			ErrTruncatedInput, h, h.Length, len(buf)-start)
	}
	body := buf[start : start+h.Length]

	if !h.Constructed {
		v.Bytes = append([]byte(nil), body...)
		return v, hl + h.Length, nil
	}

	children, err := p.parseDefinite(body, depth)
	if err != nil {
		return Value{}, 0, err
	}
	v.Children = children
	return v, hl + h.Length, nil
}

// parseDefinite walks the body of a definite-length constructed value. All of
// its octets are present, so a child running past the end overshoots the
// declared length.
func (p *parser) parseDefinite(body []byte, depth int) ([]Value, error) {
	var children []Value
	for off := 0; off < len(body); {
		child, n, err := p.parse(body, off, depth+1)
		if err != nil {
			if errors.Is(err, ErrTruncatedInput) {
				return nil, fmt.Errorf("%w: element at offset %d overruns %d-octet container",
					ErrTrailingData, off, len(body))
			}
			return nil, err
		}
		children = append(children, child)
		off += n
	}
	return children, nil
}

// parseIndefinite walks children until the end-of-contents marker and
// returns the octets consumed including the marker
func (p *parser) parseIndefinite(buf []byte, start, depth int) ([]Value, int, error) {
	var children []Value
	off := start
	for {
		if off >= len(buf) {
			return nil, 0, fmt.Errorf("%w: missing end-of-contents", ErrTruncatedInput)
		}
		if buf[off] == 0x00 {
			if off+1 >= len(buf) {
				return nil, 0, fmt.Errorf("%w: partial end-of-contents", ErrTruncatedInput)
			}
			if buf[off+1] != 0x00 {
				return nil, 0, fmt.Errorf("%w: end-of-contents with length %d", ErrInvalidLength, buf[off+1])
			}
			return children, off + 2 - start, nil
		}
		child, n, err := p.parse(buf, off, depth+1)
		if err != nil {
			return nil, 0, err
		}
		children = append(children, child)
		off += n
	}
}
