package cms

import (
	"encoding/asn1"
	"fmt"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

// EnvelopedData is encrypted content together with the per-recipient
// encrypted content-encryption keys:
//
//	EnvelopedData ::= SEQUENCE {
//	    version CMSVersion,
//	    originatorInfo [0] IMPLICIT OriginatorInfo OPTIONAL,
//	    recipientInfos RecipientInfos,
//	    encryptedContentInfo EncryptedContentInfo,
//	    unprotectedAttrs [1] IMPLICIT UnprotectedAttributes OPTIONAL }
//
// A decoded Version is the one found on the wire, even when it disagrees
// with CalculateVersion; use CheckVersion to detect that.
type EnvelopedData struct {
	Version              int
	OriginatorInfo       *OriginatorInfo
	RecipientInfos       []RecipientInfo
	EncryptedContentInfo EncryptedContentInfo
	UnprotectedAttrs     []Attribute
}

// EncryptedContentInfo describes the encrypted payload. EncryptedContent is
// nil when the content is detached and empty but non-nil when the field is
// present without octets.
//
//	EncryptedContentInfo ::= SEQUENCE {
//	    contentType ContentType,
//	    contentEncryptionAlgorithm ContentEncryptionAlgorithmIdentifier,
//	    encryptedContent [0] IMPLICIT EncryptedContent OPTIONAL }
type EncryptedContentInfo struct {
	ContentType                asn1.ObjectIdentifier
	ContentEncryptionAlgorithm AlgorithmIdentifier
	EncryptedContent           []byte
}

// Attribute is an attribute type with its raw values
//
//	Attribute ::= SEQUENCE {
//	    attrType OBJECT IDENTIFIER,
//	    attrValues SET OF AttributeValue }
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values []ber.Value
}

// NewEnvelopedData assembles an EnvelopedData and sets its version from the
// other fields. originator and attrs may be nil.
func NewEnvelopedData(originator *OriginatorInfo, recipients []RecipientInfo, eci EncryptedContentInfo, attrs []Attribute) *EnvelopedData {
	return &EnvelopedData{
		Version:              CalculateVersion(originator, recipients, attrs),
		OriginatorInfo:       originator,
		RecipientInfos:       recipients,
		EncryptedContentInfo: eci,
		UnprotectedAttrs:     attrs,
	}
}

// CalculateVersion infers the EnvelopedData version. Any originator info or
// unprotected attributes force version 2. Otherwise the version stays 0
// until a recipient with a version other than 0 is found, which makes it 2.
// An empty recipient set yields 0.
func CalculateVersion(originator *OriginatorInfo, recipients []RecipientInfo, attrs []Attribute) int {
	if originator != nil || len(attrs) > 0 {
		return 2
	}
	version := 0
	for _, ri := range recipients {
		if ri.Version != version {
			version = 2
			break
		}
	}
	return version
}

// CheckVersion reports ErrVersionMismatch when the stored version is not the
// one CalculateVersion infers from the other fields
func (ed *EnvelopedData) CheckVersion() error {
	want := CalculateVersion(ed.OriginatorInfo, ed.RecipientInfos, ed.UnprotectedAttrs)
	if ed.Version != want {
		return fmt.Errorf("%w: encoded %d, inferred %d", ErrVersionMismatch, ed.Version, want)
	}
	return nil
}

// DecodeEnvelopedData decodes a DER or BER encoded EnvelopedData
func DecodeEnvelopedData(data []byte) (*EnvelopedData, error) {
	v, err := ber.Decode(data)
	if err != nil {
		return nil, err
	}
	return EnvelopedDataFromValue(v)
}

// EnvelopedDataFromValue reads an EnvelopedData from a decoded tree. The
// optional fields are told apart from the mandatory ones by their context
// tags: [0] right after the version, [1] after encryptedContentInfo.
func EnvelopedDataFromValue(v ber.Value) (*EnvelopedData, error) {
	fields, err := ber.DecodeSequence(v)
	if err != nil {
		return nil, fmt.Errorf("EnvelopedData: %w", err)
	}
	r := ber.NewFieldReader("EnvelopedData", fields)
	ed := &EnvelopedData{}

	f, err := r.Next("version")
	if err != nil {
		return nil, err
	}
	if ed.Version, err = f.Int(); err != nil {
		return nil, fmt.Errorf("EnvelopedData.version: %w", err)
	}

	if f, ok := r.Optional(ber.ClassContextSpecific, 0); ok {
		if ed.OriginatorInfo, err = originatorInfoFromValue(f.WithTag(ber.ClassUniversal, ber.TagSequence)); err != nil {
			return nil, fmt.Errorf("EnvelopedData.originatorInfo: %w", err)
		}
	}

	if f, err = r.Next("recipientInfos"); err != nil {
		return nil, err
	}
	set, err := ber.DecodeSet(f)
	if err != nil {
		return nil, fmt.Errorf("EnvelopedData.recipientInfos: %w", err)
	}
	if len(set) == 0 {
		return nil, ErrNoRecipients
	}
	ed.RecipientInfos = make([]RecipientInfo, 0, len(set))
	for i, item := range set {
		ri, err := recipientInfoFromValue(item)
		if err != nil {
			return nil, fmt.Errorf("EnvelopedData.recipientInfos[%d]: %w", i, err)
		}
		ed.RecipientInfos = append(ed.RecipientInfos, ri)
	}

	if f, err = r.Next("encryptedContentInfo"); err != nil {
		return nil, err
	}
	if ed.EncryptedContentInfo, err = encryptedContentInfoFromValue(f); err != nil {
		return nil, fmt.Errorf("EnvelopedData.encryptedContentInfo: %w", err)
	}

	if f, ok := r.Optional(ber.ClassContextSpecific, 1); ok {
		if ed.UnprotectedAttrs, err = attributesFromValue(f.WithTag(ber.ClassUniversal, ber.TagSet)); err != nil {
			return nil, fmt.Errorf("EnvelopedData.unprotectedAttrs: %w", err)
		}
	}

	if err := r.Finish(); err != nil {
		return nil, err
	}
	return ed, nil
}

// ToValue builds the tree for ed. The stored Version is written as is.
func (ed *EnvelopedData) ToValue() (ber.Value, error) {
	if len(ed.RecipientInfos) == 0 {
		return ber.Value{}, ErrNoRecipients
	}

	fields := []ber.Value{ber.Integer(int64(ed.Version))}
	if ed.OriginatorInfo != nil {
		fields = append(fields, ed.OriginatorInfo.toValue().WithTag(ber.ClassContextSpecific, 0))
	}

	recipients := make([]ber.Value, 0, len(ed.RecipientInfos))
	for i, ri := range ed.RecipientInfos {
		rv, err := ri.toValue()
		if err != nil {
			return ber.Value{}, fmt.Errorf("EnvelopedData.recipientInfos[%d]: %w", i, err)
		}
		recipients = append(recipients, rv)
	}
	fields = append(fields, ber.Set(recipients...))

	eci, err := ed.EncryptedContentInfo.toValue()
	if err != nil {
		return ber.Value{}, fmt.Errorf("EnvelopedData.encryptedContentInfo: %w", err)
	}
	fields = append(fields, eci)

	if len(ed.UnprotectedAttrs) > 0 {
		attrs, err := attributesToValue(ed.UnprotectedAttrs)
		if err != nil {
			return ber.Value{}, fmt.Errorf("EnvelopedData.unprotectedAttrs: %w", err)
		}
		fields = append(fields, attrs.WithTag(ber.ClassContextSpecific, 1))
	}

	return ber.Sequence(fields...), nil
}

// Encode returns the DER encoding of ed
func (ed *EnvelopedData) Encode() ([]byte, error) {
	v, err := ed.ToValue()
	if err != nil {
		return nil, err
	}
	return ber.Encode(v)
}

func (*EnvelopedData) isStructure() {}

func encryptedContentInfoFromValue(v ber.Value) (EncryptedContentInfo, error) {
	fields, err := ber.DecodeSequence(v)
	if err != nil {
		return EncryptedContentInfo{}, err
	}
	r := ber.NewFieldReader("EncryptedContentInfo", fields)
	var eci EncryptedContentInfo

	f, err := r.Next("contentType")
	if err != nil {
		return EncryptedContentInfo{}, err
	}
	if eci.ContentType, err = f.OID(); err != nil {
		return EncryptedContentInfo{}, fmt.Errorf("contentType: %w", err)
	}

	if f, err = r.Next("contentEncryptionAlgorithm"); err != nil {
		return EncryptedContentInfo{}, err
	}
	if eci.ContentEncryptionAlgorithm, err = algorithmIdentifierFromValue(f); err != nil {
		return EncryptedContentInfo{}, fmt.Errorf("contentEncryptionAlgorithm: %w", err)
	}

	// BER producers may split the content into constructed segments
	if f, ok := r.Optional(ber.ClassContextSpecific, 0); ok {
		if eci.EncryptedContent, err = f.WithTag(ber.ClassUniversal, ber.TagOctetString).OctetString(); err != nil {
			return EncryptedContentInfo{}, fmt.Errorf("encryptedContent: %w", err)
		}
		// present but empty stays distinct from absent
		if eci.EncryptedContent == nil {
			eci.EncryptedContent = []byte{}
		}
	}

	if err := r.Finish(); err != nil {
		return EncryptedContentInfo{}, err
	}
	return eci, nil
}

func (eci EncryptedContentInfo) toValue() (ber.Value, error) {
	ct, err := ber.ObjectIdentifier(eci.ContentType)
	if err != nil {
		return ber.Value{}, fmt.Errorf("contentType: %w", err)
	}
	alg, err := eci.ContentEncryptionAlgorithm.toValue()
	if err != nil {
		return ber.Value{}, fmt.Errorf("contentEncryptionAlgorithm: %w", err)
	}
	fields := []ber.Value{ct, alg}
	if eci.EncryptedContent != nil {
		fields = append(fields, ber.OctetString(eci.EncryptedContent).WithTag(ber.ClassContextSpecific, 0))
	}
	return ber.Sequence(fields...), nil
}

func attributesFromValue(v ber.Value) ([]Attribute, error) {
	items, err := ber.DecodeSet(v)
	if err != nil {
		return nil, err
	}
	var attrs []Attribute
	for i, item := range items {
		fields, err := ber.DecodeSequence(item)
		if err != nil {
			return nil, fmt.Errorf("Attribute[%d]: %w", i, err)
		}
		r := ber.NewFieldReader("Attribute", fields)

		f, err := r.Next("attrType")
		if err != nil {
			return nil, err
		}
		oid, err := f.OID()
		if err != nil {
			return nil, fmt.Errorf("Attribute[%d].attrType: %w", i, err)
		}

		if f, err = r.Next("attrValues"); err != nil {
			return nil, err
		}
		values, err := ber.DecodeSet(f)
		if err != nil {
			return nil, fmt.Errorf("Attribute[%d].attrValues: %w", i, err)
		}
		if err := r.Finish(); err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{Type: oid, Values: values})
	}
	return attrs, nil
}

func attributesToValue(attrs []Attribute) (ber.Value, error) {
	items := make([]ber.Value, 0, len(attrs))
	for i, a := range attrs {
		oid, err := ber.ObjectIdentifier(a.Type)
		if err != nil {
			return ber.Value{}, fmt.Errorf("Attribute[%d].attrType: %w", i, err)
		}
		items = append(items, ber.Sequence(oid, ber.Set(a.Values...)))
	}
	return ber.Set(items...), nil
}
