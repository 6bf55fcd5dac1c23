package cms

import (
	"fmt"
	"strings"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

// Structure is one of *EnvelopedData, *OriginatorPublicKey or *Evidence
type Structure interface {
	ToValue() (ber.Value, error)
	isStructure()
}

// Kind names a Structure type for Decode
type Kind int

const (
	KindEnvelopedData Kind = iota + 1
	KindOriginatorPublicKey
	KindEvidence
)

var kindNames = map[Kind]string{
	KindEnvelopedData:       "enveloped-data",
	KindOriginatorPublicKey: "originator-public-key",
	KindEvidence:            "evidence",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a name as printed by Kind.String back to its Kind
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Decode decodes data as the structure named by kind
func Decode(kind Kind, data []byte) (Structure, error) {
	return DecodeWith(ber.Decoder{}, kind, data)
}

// DecodeWith is Decode with explicit decoder limits
func DecodeWith(d ber.Decoder, kind Kind, data []byte) (Structure, error) {
	if _, ok := kindNames[kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	v, err := d.Decode(data)
	if err != nil {
		return nil, err
	}
	return FromValue(kind, v)
}

// FromValue reads the structure named by kind from a decoded tree
func FromValue(kind Kind, v ber.Value) (Structure, error) {
	var (
		s   Structure
		err error
	)
	switch kind {
	case KindEnvelopedData:
		s, err = EnvelopedDataFromValue(v)
	case KindOriginatorPublicKey:
		s, err = OriginatorPublicKeyFromValue(v)
	case KindEvidence:
		s, err = EvidenceFromValue(v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	// keep a typed nil pointer out of the interface
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Encode returns the DER encoding of s
func Encode(s Structure) ([]byte, error) {
	v, err := s.ToValue()
	if err != nil {
		return nil, err
	}
	return ber.Encode(v)
}
