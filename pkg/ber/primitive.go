package ber

import (
	"encoding/asn1"
	"fmt"
	"math"
	"math/big"
)

var bigOne = big.NewInt(1)

// checkInteger enforces the minimal two's complement form X.690 8.3.2
// requires of every INTEGER encoding
func checkInteger(content []byte) error {
	if len(content) == 0 {
		return fmt.Errorf("%w: empty INTEGER", ErrInvalidContent)
	}
	if len(content) > 1 &&
		((content[0] == 0x00 && content[1]&0x80 == 0) ||
			(content[0] == 0xff && content[1]&0x80 != 0)) {
		return fmt.Errorf("%w: INTEGER is not minimally encoded", ErrInvalidContent)
	}
	return nil
}

// ParseInteger decodes INTEGER content octets to an arbitrary precision value
func ParseInteger(content []byte) (*big.Int, error) {
	if err := checkInteger(content); err != nil {
		return nil, err
	}
	ret := new(big.Int)
	if content[0]&0x80 != 0 {
		inverted := make([]byte, len(content))
		for i, b := range content {
			inverted[i] = ^b
		}
		ret.SetBytes(inverted)
		ret.Add(ret, bigOne)
		return ret.Neg(ret), nil
	}
	return ret.SetBytes(content), nil
}

// ParseInt64 decodes INTEGER content octets that must fit in an int64
func ParseInt64(content []byte) (int64, error) {
	if err := checkInteger(content); err != nil {
		return 0, err
	}
	if len(content) > 8 {
		return 0, fmt.Errorf("%w: %d-octet INTEGER does not fit in 64 bits", ErrIntegerOverflow, len(content))
	}
	var v int64
	for _, b := range content {
		v = v<<8 | int64(b)
	}
	// sign-extend from the top content bit
	shift := uint(64 - 8*len(content))
	return v << shift >> shift, nil
}

// MarshalInteger returns the minimal two's complement content octets of n
func MarshalInteger(n *big.Int) []byte {
	switch n.Sign() {
	case 0:
		return []byte{0x00}
	case 1:
		b := n.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return b
	}
	// -n-1 has the bit pattern of n with every bit flipped
	m := new(big.Int).Neg(n)
	m.Sub(m, bigOne)
	b := m.Bytes()
	for i := range b {
		b[i] ^= 0xff
	}
	if len(b) == 0 || b[0]&0x80 == 0 {
		b = append([]byte{0xff}, b...)
	}
	return b
}

// Integer returns a universal INTEGER value
func Integer(n int64) Value {
	return BigInteger(big.NewInt(n))
}

// BigInteger returns a universal INTEGER value of arbitrary size
func BigInteger(n *big.Int) Value {
	return NewPrimitive(ClassUniversal, TagInteger, MarshalInteger(n))
}

// BigInt reads a universal INTEGER
func (v Value) BigInt() (*big.Int, error) {
	if err := expect(v, ClassUniversal, TagInteger, false); err != nil {
		return nil, err
	}
	return ParseInteger(v.Bytes)
}

// Int reads a universal INTEGER that must fit in an int
func (v Value) Int() (int, error) {
	if err := expect(v, ClassUniversal, TagInteger, false); err != nil {
		return 0, err
	}
	n, err := ParseInt64(v.Bytes)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt || n > math.MaxInt {
		return 0, fmt.Errorf("%w: %d does not fit in int", ErrIntegerOverflow, n)
	}
	return int(n), nil
}

// BitString is the decoded form of a BIT STRING: the data octets and the
// number of unused bits at the end of the last one
type BitString struct {
	Bytes      []byte
	UnusedBits int
}

// BitLen returns the number of significant bits
func (b BitString) BitLen() int {
	return len(b.Bytes)*8 - b.UnusedBits
}

func (b BitString) validate() error {
	if b.UnusedBits < 0 || b.UnusedBits > 7 {
		return fmt.Errorf("%w: BIT STRING with %d unused bits", ErrInvalidContent, b.UnusedBits)
	}
	if len(b.Bytes) == 0 && b.UnusedBits != 0 {
		return fmt.Errorf("%w: empty BIT STRING with %d unused bits", ErrInvalidContent, b.UnusedBits)
	}
	return nil
}

// ParseBitString decodes BIT STRING content octets
func ParseBitString(content []byte) (BitString, error) {
	if len(content) == 0 {
		return BitString{}, fmt.Errorf("%w: BIT STRING without unused-bits octet", ErrInvalidContent)
	}
	b := BitString{
		UnusedBits: int(content[0]),
		Bytes:      append([]byte(nil), content[1:]...),
	}
	if err := b.validate(); err != nil {
		return BitString{}, err
	}
	return b, nil
}

// MarshalBitString returns the content octets of b
func MarshalBitString(b BitString) ([]byte, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(b.Bytes))
	out = append(out, byte(b.UnusedBits))
	return append(out, b.Bytes...), nil
}

// NewBitString returns a universal BIT STRING value
func NewBitString(b BitString) (Value, error) {
	content, err := MarshalBitString(b)
	if err != nil {
		return Value{}, err
	}
	return NewPrimitive(ClassUniversal, TagBitString, content), nil
}

// BitString reads a universal BIT STRING
func (v Value) BitString() (BitString, error) {
	if err := expect(v, ClassUniversal, TagBitString, false); err != nil {
		return BitString{}, err
	}
	return ParseBitString(v.Bytes)
}

// OctetString returns a universal OCTET STRING value
func OctetString(content []byte) Value {
	return NewPrimitive(ClassUniversal, TagOctetString, content)
}

// OctetString reads a universal OCTET STRING. The BER constructed form is
// accepted and its segments are concatenated.
func (v Value) OctetString() ([]byte, error) {
	if !v.Is(ClassUniversal, TagOctetString) {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedTag, v, tagName(ClassUniversal, TagOctetString))
	}
	return v.octets()
}

// octets returns the content of a string type regardless of its tag, joining
// constructed segments. Implicitly tagged strings are read through here.
func (v Value) octets() ([]byte, error) {
	if !v.Constructed {
		return append([]byte(nil), v.Bytes...), nil
	}
	var out []byte
	for _, seg := range v.Children {
		if !seg.Is(ClassUniversal, TagOctetString) {
			return nil, fmt.Errorf("%w: %s segment inside constructed string", ErrUnexpectedTag, seg)
		}
		b, err := seg.octets()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// Boolean returns a universal BOOLEAN value in DER form
func Boolean(b bool) Value {
	if b {
		return NewPrimitive(ClassUniversal, TagBoolean, []byte{0xff})
	}
	return NewPrimitive(ClassUniversal, TagBoolean, []byte{0x00})
}

// Bool reads a universal BOOLEAN; any non-zero octet is true as BER allows
func (v Value) Bool() (bool, error) {
	if err := expect(v, ClassUniversal, TagBoolean, false); err != nil {
		return false, err
	}
	if len(v.Bytes) != 1 {
		return false, fmt.Errorf("%w: BOOLEAN with %d content octets", ErrInvalidContent, len(v.Bytes))
	}
	return v.Bytes[0] != 0, nil
}

// Null returns a universal NULL value
func Null() Value {
	return NewPrimitive(ClassUniversal, TagNull, nil)
}

// UTF8String returns a universal UTF8String value
func UTF8String(s string) Value {
	return NewPrimitive(ClassUniversal, TagUTF8String, []byte(s))
}

// UTF8 reads a universal UTF8String
func (v Value) UTF8() (string, error) {
	if err := expect(v, ClassUniversal, TagUTF8String, false); err != nil {
		return "", err
	}
	return string(v.Bytes), nil
}

// ParseObjectIdentifier decodes OBJECT IDENTIFIER content octets
func ParseObjectIdentifier(content []byte) (asn1.ObjectIdentifier, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty OBJECT IDENTIFIER", ErrInvalidContent)
	}

	var arcs []int
	for off := 0; off < len(content); {
		if content[off] == 0x80 {
			return nil, fmt.Errorf("%w: non-minimal OBJECT IDENTIFIER arc", ErrInvalidContent)
		}
		v := 0
		for {
			if off >= len(content) {
				return nil, fmt.Errorf("%w: unterminated OBJECT IDENTIFIER arc", ErrInvalidContent)
			}
			if v > math.MaxInt32>>7 {
				return nil, fmt.Errorf("%w: OBJECT IDENTIFIER arc too large", ErrIntegerOverflow)
			}
			b := content[off]
			off++
			v = v<<7 | int(b&0x7f)
			if b&0x80 == 0 {
				break
			}
		}
		arcs = append(arcs, v)
	}

	// the first subidentifier packs the first two arcs
	first := arcs[0]
	oid := make(asn1.ObjectIdentifier, 0, len(arcs)+1)
	switch {
	case first < 40:
		oid = append(oid, 0, first)
	case first < 80:
		oid = append(oid, 1, first-40)
	default:
		oid = append(oid, 2, first-80)
	}
	return append(oid, arcs[1:]...), nil
}

// MarshalObjectIdentifier returns the content octets of oid
func MarshalObjectIdentifier(oid asn1.ObjectIdentifier) ([]byte, error) {
	if len(oid) < 2 || oid[0] < 0 || oid[0] > 2 || oid[1] < 0 || (oid[0] < 2 && oid[1] >= 40) {
		return nil, fmt.Errorf("%w: invalid OBJECT IDENTIFIER %v", ErrInvalidValue, oid)
	}
	out := appendBase128(nil, oid[0]*40+oid[1])
	for _, arc := range oid[2:] {
		if arc < 0 {
			return nil, fmt.Errorf("%w: negative arc in %v", ErrInvalidValue, oid)
		}
		out = appendBase128(out, arc)
	}
	return out, nil
}

// ObjectIdentifier returns a universal OBJECT IDENTIFIER value
func ObjectIdentifier(oid asn1.ObjectIdentifier) (Value, error) {
	content, err := MarshalObjectIdentifier(oid)
	if err != nil {
		return Value{}, err
	}
	return NewPrimitive(ClassUniversal, TagOID, content), nil
}

// OID reads a universal OBJECT IDENTIFIER
func (v Value) OID() (asn1.ObjectIdentifier, error) {
	if err := expect(v, ClassUniversal, TagOID, false); err != nil {
		return nil, err
	}
	return ParseObjectIdentifier(v.Bytes)
}
