package cms

import (
	"encoding/asn1"
	"fmt"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

// AlgorithmIdentifier names an algorithm and carries its parameters raw.
// Parameters is nil when the field is absent, which is different from an
// explicit NULL.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters *ber.Value
}

func algorithmIdentifierFromValue(v ber.Value) (AlgorithmIdentifier, error) {
	fields, err := ber.DecodeSequence(v)
	if err != nil {
		return AlgorithmIdentifier{}, fmt.Errorf("AlgorithmIdentifier: %w", err)
	}
	r := ber.NewFieldReader("AlgorithmIdentifier", fields)

	f, err := r.Next("algorithm")
	if err != nil {
		return AlgorithmIdentifier{}, err
	}
	oid, err := f.OID()
	if err != nil {
		return AlgorithmIdentifier{}, fmt.Errorf("AlgorithmIdentifier.algorithm: %w", err)
	}
	alg := AlgorithmIdentifier{Algorithm: oid}

	if r.Remaining() > 0 {
		params, _ := r.Next("parameters")
		alg.Parameters = &params
	}
	if err := r.Finish(); err != nil {
		return AlgorithmIdentifier{}, err
	}
	return alg, nil
}

func (a AlgorithmIdentifier) toValue() (ber.Value, error) {
	oid, err := ber.ObjectIdentifier(a.Algorithm)
	if err != nil {
		return ber.Value{}, fmt.Errorf("AlgorithmIdentifier.algorithm: %w", err)
	}
	if a.Parameters == nil {
		return ber.Sequence(oid), nil
	}
	return ber.Sequence(oid, *a.Parameters), nil
}
