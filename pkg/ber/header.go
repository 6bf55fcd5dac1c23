package ber

import (
	"fmt"
	"strconv"
)

// Class is the tag class stored in the top two bits of the identifier octet
type Class uint8

const (
	ClassUniversal Class = iota
	ClassApplication
	ClassContextSpecific
	ClassPrivate
)

func (c Class) String() string {
	switch c {
	case ClassUniversal:
		return "UNIVERSAL"
	case ClassApplication:
		return "APPLICATION"
	case ClassContextSpecific:
		return "CONTEXT"
	case ClassPrivate:
		return "PRIVATE"
	}
	return "CLASS(" + strconv.Itoa(int(c)) + ")"
}

// Universal tag numbers used by the CMS and entitlements structures
const (
	TagEndOfContents   = 0
	TagBoolean         = 1
	TagInteger         = 2
	TagBitString       = 3
	TagOctetString     = 4
	TagNull            = 5
	TagOID             = 6
	TagUTF8String      = 12
	TagSequence        = 16
	TagSet             = 17
	TagPrintableString = 19
	TagIA5String       = 22
	TagUTCTime         = 23
	TagGeneralizedTime = 24
)

// LengthIndefinite marks a constructed value using the BER indefinite-length
// form, terminated by an end-of-contents marker (00 00)
const LengthIndefinite = -1

const (
	// identifier octet layout
	classShift      = 6
	constructedBit  = 0x20
	tagNumberMask   = 0x1f
	highTagNumber   = 0x1f
	maxTagOctets    = 4
	maxLengthOctets = 4
	lengthLongForm  = 0x80
	lengthReserved  = 0xff
)

// Header is the identifier and length part of a TLV
type Header struct {
	Class       Class
	Tag         int
	Constructed bool
	Length      int
}

func (h Header) String() string {
	s := tagName(h.Class, h.Tag)
	if h.Constructed {
		s += "/c"
	} else {
		s += "/p"
	}
	if h.Length == LengthIndefinite {
		return s + ":indefinite"
	}
	return s + ":" + strconv.Itoa(h.Length)
}

// ParseHeader decodes the identifier and length octets starting at offset.
// It returns the header and the number of octets it occupies. The content
// octets are not checked against the buffer; that is the caller's job.
func ParseHeader(data []byte, offset int) (Header, int, error) {
	if offset < 0 || offset >= len(data) {
		return Header{}, 0, fmt.Errorf("%w: missing identifier at offset %d", ErrTruncatedInput, offset)
	}

	b := data[offset]
	h := Header{
		Class:       Class(b >> classShift),
		Constructed: b&constructedBit != 0,
		Tag:         int(b & tagNumberMask),
	}
	n := 1

	if h.Tag == highTagNumber {
		tag, m, err := parseBase128Tag(data, offset+1)
		if err != nil {
			return Header{}, 0, err
		}
		if tag < highTagNumber {
			return Header{}, 0, fmt.Errorf("%w: tag %d uses high-tag-number form", ErrInvalidTag, tag)
		}
		h.Tag = tag
		n += m
	}

	if offset+n >= len(data) {
		return Header{}, 0, fmt.Errorf("%w: missing length at offset %d", ErrTruncatedInput, offset+n)
	}
	lb := data[offset+n]
	n++

	switch {
	case lb < lengthLongForm:
		h.Length = int(lb)
	case lb == lengthLongForm:
		if !h.Constructed {
			return Header{}, 0, fmt.Errorf("%w: indefinite length on primitive %s", ErrInvalidLength, tagName(h.Class, h.Tag))
		}
		h.Length = LengthIndefinite
	case lb == lengthReserved:
		return Header{}, 0, fmt.Errorf("%w: reserved length octet 0xff at offset %d", ErrInvalidLength, offset+n-1)
	default:
		k := int(lb &^ lengthLongForm)
		if k > maxLengthOctets {
			return Header{}, 0, fmt.Errorf("%w: %d length octets", ErrInvalidLength, k)
		}
		if offset+n+k > len(data) {
			return Header{}, 0, fmt.Errorf("%w: long-form length needs %d octets", ErrTruncatedInput, k)
		}
		length := 0
		for i := 0; i < k; i++ {
			length = length<<8 | int(data[offset+n+i])
		}
		if length < 0 || length > maxContentLength {
			return Header{}, 0, fmt.Errorf("%w: length %d out of range", ErrInvalidLength, length)
		}
		h.Length = length
		n += k
	}

	return h, n, nil
}

// maxContentLength keeps four length octets representable on 32-bit platforms
const maxContentLength = 1<<31 - 1

// parseBase128Tag reads the subsequent identifier octets of a high tag number
func parseBase128Tag(data []byte, offset int) (tag int, n int, err error) {
	for {
		if offset+n >= len(data) {
			return 0, 0, fmt.Errorf("%w: high-tag-number form", ErrTruncatedInput)
		}
		b := data[offset+n]
		if n == 0 && b == 0x80 {
			return 0, 0, fmt.Errorf("%w: non-minimal high tag number", ErrInvalidTag)
		}
		n++
		if n > maxTagOctets {
			return 0, 0, fmt.Errorf("%w: tag number exceeds %d octets", ErrInvalidTag, maxTagOctets)
		}
		tag = tag<<7 | int(b&0x7f)
		if b&0x80 == 0 {
			return tag, n, nil
		}
	}
}

// EncodeHeader returns the DER identifier and length octets for h
func EncodeHeader(h Header) ([]byte, error) {
	return AppendHeader(nil, h)
}

// AppendHeader appends the DER identifier and length octets for h to dst.
// Indefinite lengths are refused: the encoder only produces DER.
func AppendHeader(dst []byte, h Header) ([]byte, error) {
	if h.Class > ClassPrivate {
		return dst, fmt.Errorf("%w: class %d", ErrInvalidTag, h.Class)
	}
	if h.Tag < 0 || h.Tag >= 1<<(7*maxTagOctets) {
		return dst, fmt.Errorf("%w: tag number %d", ErrInvalidTag, h.Tag)
	}
	if h.Length < 0 {
		return dst, fmt.Errorf("%w: encoder requires a definite length", ErrInvalidLength)
	}

	id := byte(h.Class) << classShift
	if h.Constructed {
		id |= constructedBit
	}
	if h.Tag < highTagNumber {
		dst = append(dst, id|byte(h.Tag))
	} else {
		dst = append(dst, id|highTagNumber)
		dst = appendBase128(dst, h.Tag)
	}

	return appendLength(dst, h.Length), nil
}

// appendBase128 appends v in big-endian base-128 with continuation bits
func appendBase128(dst []byte, v int) []byte {
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7f)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7f) | 0x80
	}
	return append(dst, tmp[i:]...)
}

// appendLength appends the minimal definite length encoding of n
func appendLength(dst []byte, n int) []byte {
	if n < lengthLongForm {
		return append(dst, byte(n))
	}
	var tmp [8]byte
	i := len(tmp)
	for v := n; v > 0; v >>= 8 {
		i--
		tmp[i] = byte(v)
	}
	dst = append(dst, lengthLongForm|byte(len(tmp)-i))
	return append(dst, tmp[i:]...)
}

// tagName renders a tag the way openssl asn1parse does for universal types
func tagName(class Class, tag int) string {
	if class != ClassUniversal {
		switch class {
		case ClassContextSpecific:
			return "[" + strconv.Itoa(tag) + "]"
		case ClassApplication:
			return "[APPLICATION " + strconv.Itoa(tag) + "]"
		default:
			return "[PRIVATE " + strconv.Itoa(tag) + "]"
		}
	}
	switch tag {
	case TagEndOfContents:
		return "EOC"
	case TagBoolean:
		return "BOOLEAN"
	case TagInteger:
		return "INTEGER"
	case TagBitString:
		return "BIT STRING"
	case TagOctetString:
		return "OCTET STRING"
	case TagNull:
		return "NULL"
	case TagOID:
		return "OBJECT IDENTIFIER"
	case TagUTF8String:
		return "UTF8String"
	case TagSequence:
		return "SEQUENCE"
	case TagSet:
		return "SET"
	case TagPrintableString:
		return "PrintableString"
	case TagIA5String:
		return "IA5String"
	case TagUTCTime:
		return "UTCTime"
	case TagGeneralizedTime:
		return "GeneralizedTime"
	}
	return "UNIVERSAL " + strconv.Itoa(tag)
}
