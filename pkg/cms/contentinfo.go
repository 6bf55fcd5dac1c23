package cms

import (
	"encoding/asn1"
	"fmt"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

// PKCS #7 content types
var (
	OIDData          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	OIDSignedData    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	OIDEnvelopedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 3}
	OIDEncryptedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 6}
)

// ContentInfo is the outer wrapper of every CMS message:
//
//	ContentInfo ::= SEQUENCE {
//	    contentType ContentType,
//	    content [0] EXPLICIT ANY DEFINED BY contentType }
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     ber.Value
}

// ParseContentInfo decodes a DER or BER encoded ContentInfo
func ParseContentInfo(data []byte) (ContentInfo, error) {
	v, err := ber.Decode(data)
	if err != nil {
		return ContentInfo{}, err
	}
	return ContentInfoFromValue(v)
}

// ContentInfoFromValue reads a ContentInfo from a decoded tree
func ContentInfoFromValue(v ber.Value) (ContentInfo, error) {
	fields, err := ber.DecodeSequence(v)
	if err != nil {
		return ContentInfo{}, fmt.Errorf("ContentInfo: %w", err)
	}
	r := ber.NewFieldReader("ContentInfo", fields)

	f, err := r.Next("contentType")
	if err != nil {
		return ContentInfo{}, err
	}
	ct, err := f.OID()
	if err != nil {
		return ContentInfo{}, fmt.Errorf("ContentInfo.contentType: %w", err)
	}

	f, err = r.Next("content")
	if err != nil {
		return ContentInfo{}, err
	}
	content, err := f.Unwrap(ber.ClassContextSpecific, 0)
	if err != nil {
		return ContentInfo{}, fmt.Errorf("ContentInfo.content: %w", err)
	}
	if err := r.Finish(); err != nil {
		return ContentInfo{}, err
	}
	return ContentInfo{ContentType: ct, Content: content}, nil
}

// ToValue builds the tree for c
func (c ContentInfo) ToValue() (ber.Value, error) {
	ct, err := ber.ObjectIdentifier(c.ContentType)
	if err != nil {
		return ber.Value{}, fmt.Errorf("ContentInfo.contentType: %w", err)
	}
	return ber.Sequence(ct, ber.Explicit(ber.ClassContextSpecific, 0, c.Content)), nil
}

// Encode returns the DER encoding of c
func (c ContentInfo) Encode() ([]byte, error) {
	v, err := c.ToValue()
	if err != nil {
		return nil, err
	}
	return ber.Encode(v)
}

// DecodeEnvelopedContentInfo decodes a ContentInfo that must carry
// id-envelopedData and returns the EnvelopedData inside it
func DecodeEnvelopedContentInfo(data []byte) (*EnvelopedData, error) {
	return DecodeEnvelopedContentInfoWith(ber.Decoder{}, data)
}

// DecodeEnvelopedContentInfoWith is DecodeEnvelopedContentInfo with the
// nesting limit of d
func DecodeEnvelopedContentInfoWith(d ber.Decoder, data []byte) (*EnvelopedData, error) {
	v, err := d.Decode(data)
	if err != nil {
		return nil, err
	}
	ci, err := ContentInfoFromValue(v)
	if err != nil {
		return nil, err
	}
	if !ci.ContentType.Equal(OIDEnvelopedData) {
		return nil, fmt.Errorf("%w: %s, want envelopedData", ErrUnexpectedContentType, ci.ContentType)
	}
	return EnvelopedDataFromValue(ci.Content)
}
