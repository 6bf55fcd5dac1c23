package cms

import (
	"fmt"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

// RecipientType selects the RecipientInfo alternative
type RecipientType int

const (
	KeyTransRecipient RecipientType = iota // ktri, untagged SEQUENCE
	KeyAgreeRecipient                      // kari [1]
	KEKRecipient                           // kekri [2]
	PasswordRecipient                      // pwri [3]
	OtherRecipient                         // ori [4]
)

func (t RecipientType) String() string {
	switch t {
	case KeyTransRecipient:
		return "ktri"
	case KeyAgreeRecipient:
		return "kari"
	case KEKRecipient:
		return "kekri"
	case PasswordRecipient:
		return "pwri"
	case OtherRecipient:
		return "ori"
	}
	return fmt.Sprintf("RecipientType(%d)", int(t))
}

// RecipientInfo is one alternative of the RecipientInfo CHOICE. Only the
// version is interpreted; the fields after it are kept raw so the value
// re-encodes byte for byte. OtherRecipientInfo has no version and reports 0.
type RecipientInfo struct {
	Type    RecipientType
	Version int
	Fields  []ber.Value
}

// NewRecipientInfo returns a RecipientInfo of the given alternative
func NewRecipientInfo(t RecipientType, version int, fields ...ber.Value) RecipientInfo {
	if len(fields) == 0 {
		fields = nil
	}
	return RecipientInfo{Type: t, Version: version, Fields: fields}
}

var recipientAlternatives = []ber.Alternative[RecipientInfo]{
	{Class: ber.ClassUniversal, Tag: ber.TagSequence, Decode: versionedRecipient(KeyTransRecipient)},
	{Class: ber.ClassContextSpecific, Tag: 1, Decode: versionedRecipient(KeyAgreeRecipient)},
	{Class: ber.ClassContextSpecific, Tag: 2, Decode: versionedRecipient(KEKRecipient)},
	{Class: ber.ClassContextSpecific, Tag: 3, Decode: versionedRecipient(PasswordRecipient)},
	{Class: ber.ClassContextSpecific, Tag: 4, Decode: otherRecipient},
}

func versionedRecipient(t RecipientType) func(ber.Value) (RecipientInfo, error) {
	return func(v ber.Value) (RecipientInfo, error) {
		fields, err := ber.DecodeSequence(v.WithTag(ber.ClassUniversal, ber.TagSequence))
		if err != nil {
			return RecipientInfo{}, fmt.Errorf("RecipientInfo %s: %w", t, err)
		}
		r := ber.NewFieldReader("RecipientInfo "+t.String(), fields)
		f, err := r.Next("version")
		if err != nil {
			return RecipientInfo{}, err
		}
		version, err := f.Int()
		if err != nil {
			return RecipientInfo{}, fmt.Errorf("RecipientInfo %s version: %w", t, err)
		}
		return NewRecipientInfo(t, version, fields[1:]...), nil
	}
}

func otherRecipient(v ber.Value) (RecipientInfo, error) {
	fields, err := ber.DecodeSequence(v.WithTag(ber.ClassUniversal, ber.TagSequence))
	if err != nil {
		return RecipientInfo{}, fmt.Errorf("RecipientInfo ori: %w", err)
	}
	return NewRecipientInfo(OtherRecipient, 0, fields...), nil
}

func recipientInfoFromValue(v ber.Value) (RecipientInfo, error) {
	ri, ok, err := ber.ResolveChoice(v, recipientAlternatives...)
	if err != nil {
		return RecipientInfo{}, err
	}
	if !ok {
		return RecipientInfo{}, fmt.Errorf("%w: %s is not a RecipientInfo alternative", ber.ErrUnexpectedTag, v)
	}
	return ri, nil
}

func (ri RecipientInfo) toValue() (ber.Value, error) {
	if ri.Type == OtherRecipient {
		return ber.NewConstructed(ber.ClassContextSpecific, 4, ri.Fields...), nil
	}
	fields := append([]ber.Value{ber.Integer(int64(ri.Version))}, ri.Fields...)
	switch ri.Type {
	case KeyTransRecipient:
		return ber.Sequence(fields...), nil
	case KeyAgreeRecipient, KEKRecipient, PasswordRecipient:
		return ber.NewConstructed(ber.ClassContextSpecific, int(ri.Type), fields...), nil
	}
	return ber.Value{}, fmt.Errorf("%w: recipient type %s", ber.ErrInvalidValue, ri.Type)
}

var originatorAlternatives = []ber.Alternative[*OriginatorPublicKey]{
	{Class: ber.ClassContextSpecific, Tag: 1, Decode: func(v ber.Value) (*OriginatorPublicKey, error) {
		return OriginatorPublicKeyFromValue(v.WithTag(ber.ClassUniversal, ber.TagSequence))
	}},
}

// OriginatorKey returns the originator public key of a key agreement
// recipient. ok is false for other recipient types and for originators
// identified by certificate rather than by key.
//
//	originator [0] EXPLICIT OriginatorIdentifierOrKey
//	OriginatorIdentifierOrKey ::= CHOICE {
//	    issuerAndSerialNumber IssuerAndSerialNumber,
//	    subjectKeyIdentifier [0] SubjectKeyIdentifier,
//	    originatorKey [1] OriginatorPublicKey }
func (ri RecipientInfo) OriginatorKey() (key *OriginatorPublicKey, ok bool, err error) {
	if ri.Type != KeyAgreeRecipient {
		return nil, false, nil
	}
	r := ber.NewFieldReader("KeyAgreeRecipientInfo", ri.Fields)
	f, err := r.Next("originator")
	if err != nil {
		return nil, false, err
	}
	inner, err := f.Unwrap(ber.ClassContextSpecific, 0)
	if err != nil {
		return nil, false, fmt.Errorf("KeyAgreeRecipientInfo.originator: %w", err)
	}
	return ber.ResolveChoice(inner, originatorAlternatives...)
}
