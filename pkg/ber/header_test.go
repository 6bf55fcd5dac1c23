package ber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		want     Header
		consumed int
	}{
		{"integer", []byte{0x02, 0x01, 0x05}, Header{ClassUniversal, TagInteger, false, 1}, 2},
		{"sequence", []byte{0x30, 0x00}, Header{ClassUniversal, TagSequence, true, 0}, 2},
		{"context indefinite", []byte{0xa0, 0x80}, Header{ClassContextSpecific, 0, true, LengthIndefinite}, 2},
		{"implicit primitive", []byte{0x81, 0x02, 0xaa, 0xbb}, Header{ClassContextSpecific, 1, false, 2}, 2},
		{"application 16", []byte{0x70, 0x03}, Header{ClassApplication, 16, true, 3}, 2},
		{"private", []byte{0xc3, 0x00}, Header{ClassPrivate, 3, false, 0}, 2},
		{"high tag 31", []byte{0xbf, 0x1f, 0x00}, Header{ClassContextSpecific, 31, true, 0}, 3},
		{"high tag 128", []byte{0x5f, 0x81, 0x00, 0x00}, Header{ClassApplication, 128, false, 0}, 4},
		{"long form 1", []byte{0x04, 0x81, 0xc8}, Header{ClassUniversal, TagOctetString, false, 200}, 3},
		{"long form 2", []byte{0x04, 0x82, 0x01, 0x2c}, Header{ClassUniversal, TagOctetString, false, 300}, 4},
		{"non-minimal long form", []byte{0x04, 0x81, 0x05}, Header{ClassUniversal, TagOctetString, false, 5}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, n, err := ParseHeader(tt.data, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h)
			assert.Equal(t, tt.consumed, n)
		})
	}
}

func TestParseHeaderOffset(t *testing.T) {
	data := []byte{0xff, 0xff, 0x02, 0x01, 0x07}
	h, n, err := ParseHeader(data, 2)
	require.NoError(t, err)
	assert.Equal(t, TagInteger, h.Tag)
	assert.Equal(t, 2, n)
}

func TestParseHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedInput},
		{"missing length", []byte{0x30}, ErrTruncatedInput},
		{"truncated high tag", []byte{0x1f, 0x81}, ErrTruncatedInput},
		{"truncated long length", []byte{0x04, 0x82, 0x01}, ErrTruncatedInput},
		{"reserved length", []byte{0x30, 0xff}, ErrInvalidLength},
		{"indefinite primitive", []byte{0x04, 0x80}, ErrInvalidLength},
		{"too many length octets", []byte{0x04, 0x85, 0x01, 0x00, 0x00, 0x00, 0x00}, ErrInvalidLength},
		{"low tag in high form", []byte{0x1f, 0x1e, 0x00}, ErrInvalidTag},
		{"non-minimal high tag", []byte{0x9f, 0x80, 0x01, 0x00}, ErrInvalidTag},
		{"oversized high tag", []byte{0x1f, 0x81, 0x81, 0x81, 0x81, 0x01, 0x00}, ErrInvalidTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseHeader(tt.data, 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncodeHeader(t *testing.T) {
	tests := []struct {
		name string
		h    Header
		want []byte
	}{
		{"integer", Header{ClassUniversal, TagInteger, false, 1}, []byte{0x02, 0x01}},
		{"context constructed", Header{ClassContextSpecific, 0, true, 3}, []byte{0xa0, 0x03}},
		{"implicit set", Header{ClassContextSpecific, 1, true, 0}, []byte{0xa1, 0x00}},
		{"high tag", Header{ClassApplication, 128, false, 0}, []byte{0x5f, 0x81, 0x00, 0x00}},
		{"boundary tag 31", Header{ClassContextSpecific, 31, true, 0}, []byte{0xbf, 0x1f, 0x00}},
		{"length 127", Header{ClassUniversal, TagOctetString, false, 127}, []byte{0x04, 0x7f}},
		{"length 128", Header{ClassUniversal, TagOctetString, false, 128}, []byte{0x04, 0x81, 0x80}},
		{"length 300", Header{ClassUniversal, TagOctetString, false, 300}, []byte{0x04, 0x82, 0x01, 0x2c}},
		{"length 70000", Header{ClassUniversal, TagOctetString, false, 70000}, []byte{0x04, 0x83, 0x01, 0x11, 0x70}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeHeader(tt.h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, n, err := ParseHeader(got, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.h, back)
			assert.Equal(t, len(got), n)
		})
	}
}

func TestEncodeHeaderRejectsIndefinite(t *testing.T) {
	_, err := EncodeHeader(Header{Class: ClassUniversal, Tag: TagSequence, Constructed: true, Length: LengthIndefinite})
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = EncodeHeader(Header{Class: ClassUniversal, Tag: -1})
	assert.ErrorIs(t, err, ErrInvalidTag)

	_, err = EncodeHeader(Header{Class: Class(4), Tag: 1})
	assert.ErrorIs(t, err, ErrInvalidTag)
}

func TestHeaderString(t *testing.T) {
	assert.Equal(t, "SEQUENCE/c:indefinite", Header{ClassUniversal, TagSequence, true, LengthIndefinite}.String())
	assert.Equal(t, "[1]/p:4", Header{ClassContextSpecific, 1, false, 4}.String())
	assert.Equal(t, "CONTEXT", ClassContextSpecific.String())
}
