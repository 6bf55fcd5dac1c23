package cms

import (
	"fmt"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

// OriginatorPublicKey is the ephemeral or static key of a key agreement
// originator:
//
//	OriginatorPublicKey ::= SEQUENCE {
//	    algorithm AlgorithmIdentifier,
//	    publicKey BIT STRING }
type OriginatorPublicKey struct {
	Algorithm AlgorithmIdentifier
	PublicKey ber.BitString
}

// DecodeOriginatorPublicKey decodes a DER or BER encoded OriginatorPublicKey
func DecodeOriginatorPublicKey(data []byte) (*OriginatorPublicKey, error) {
	v, err := ber.Decode(data)
	if err != nil {
		return nil, err
	}
	return OriginatorPublicKeyFromValue(v)
}

// OriginatorPublicKeyFromValue reads an OriginatorPublicKey from a decoded
// tree. Exactly two fields are accepted.
func OriginatorPublicKeyFromValue(v ber.Value) (*OriginatorPublicKey, error) {
	fields, err := ber.DecodeSequence(v)
	if err != nil {
		return nil, fmt.Errorf("OriginatorPublicKey: %w", err)
	}
	r := ber.NewFieldReader("OriginatorPublicKey", fields)

	f, err := r.Next("algorithm")
	if err != nil {
		return nil, err
	}
	alg, err := algorithmIdentifierFromValue(f)
	if err != nil {
		return nil, fmt.Errorf("OriginatorPublicKey.algorithm: %w", err)
	}

	f, err = r.Next("publicKey")
	if err != nil {
		return nil, err
	}
	key, err := f.BitString()
	if err != nil {
		return nil, fmt.Errorf("OriginatorPublicKey.publicKey: %w", err)
	}

	if err := r.Finish(); err != nil {
		return nil, err
	}
	return &OriginatorPublicKey{Algorithm: alg, PublicKey: key}, nil
}

// ToValue builds the tree for k
func (k *OriginatorPublicKey) ToValue() (ber.Value, error) {
	alg, err := k.Algorithm.toValue()
	if err != nil {
		return ber.Value{}, err
	}
	key, err := ber.NewBitString(k.PublicKey)
	if err != nil {
		return ber.Value{}, fmt.Errorf("OriginatorPublicKey.publicKey: %w", err)
	}
	return ber.Sequence(alg, key), nil
}

// Encode returns the DER encoding of k
func (k *OriginatorPublicKey) Encode() ([]byte, error) {
	v, err := k.ToValue()
	if err != nil {
		return nil, err
	}
	return ber.Encode(v)
}

func (*OriginatorPublicKey) isStructure() {}

// OriginatorInfo carries certificates and CRLs that help recipients. Items
// are kept as raw values; an empty set is treated like an absent one.
//
//	OriginatorInfo ::= SEQUENCE {
//	    certs [0] IMPLICIT CertificateSet OPTIONAL,
//	    crls [1] IMPLICIT RevocationInfoChoices OPTIONAL }
type OriginatorInfo struct {
	Certs []ber.Value
	CRLs  []ber.Value
}

func originatorInfoFromValue(v ber.Value) (*OriginatorInfo, error) {
	fields, err := ber.DecodeSequence(v)
	if err != nil {
		return nil, fmt.Errorf("OriginatorInfo: %w", err)
	}
	r := ber.NewFieldReader("OriginatorInfo", fields)

	oi := &OriginatorInfo{}
	if f, ok := r.Optional(ber.ClassContextSpecific, 0); ok {
		if oi.Certs, err = ber.DecodeSet(f.WithTag(ber.ClassUniversal, ber.TagSet)); err != nil {
			return nil, fmt.Errorf("OriginatorInfo.certs: %w", err)
		}
	}
	if f, ok := r.Optional(ber.ClassContextSpecific, 1); ok {
		if oi.CRLs, err = ber.DecodeSet(f.WithTag(ber.ClassUniversal, ber.TagSet)); err != nil {
			return nil, fmt.Errorf("OriginatorInfo.crls: %w", err)
		}
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return oi, nil
}

func (oi *OriginatorInfo) toValue() ber.Value {
	var fields []ber.Value
	if len(oi.Certs) > 0 {
		fields = append(fields, ber.Set(oi.Certs...).WithTag(ber.ClassContextSpecific, 0))
	}
	if len(oi.CRLs) > 0 {
		fields = append(fields, ber.Set(oi.CRLs...).WithTag(ber.ClassContextSpecific, 1))
	}
	return ber.Sequence(fields...)
}
