package cms

import (
	"fmt"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

// Evidence is the CHOICE of evidence records (RFC 5544):
//
//	Evidence ::= CHOICE {
//	    tstEvidence [0] IMPLICIT TimeStampTokenEvidence }
//
// Variant is nil when the wire value used a context tag this package does
// not know. That is a valid result, not a decode failure.
type Evidence struct {
	Variant EvidenceVariant
}

// EvidenceVariant is implemented by the alternatives of Evidence only
type EvidenceVariant interface {
	evidenceTag() int
	toValue() (ber.Value, error)
}

// TimeStampTokenEvidence is a chain of time-stamp tokens, oldest first
//
//	TimeStampTokenEvidence ::= SEQUENCE SIZE(1..MAX) OF TimeStampAndCRL
type TimeStampTokenEvidence []TimeStampAndCRL

// TimeStampAndCRL pairs a time-stamp token with an optional CRL kept raw
//
//	TimeStampAndCRL ::= SEQUENCE {
//	    timeStamp TimeStampToken,
//	    crl CertificateList OPTIONAL }
type TimeStampAndCRL struct {
	TimeStamp ContentInfo
	CRL       *ber.Value
}

func (TimeStampTokenEvidence) evidenceTag() int { return 0 }

func (e TimeStampTokenEvidence) toValue() (ber.Value, error) {
	if len(e) == 0 {
		return ber.Value{}, fmt.Errorf("%w: TimeStampTokenEvidence is empty", ber.ErrInvalidValue)
	}
	items := make([]ber.Value, 0, len(e))
	for i, tsc := range e {
		ts, err := tsc.TimeStamp.ToValue()
		if err != nil {
			return ber.Value{}, fmt.Errorf("TimeStampAndCRL[%d]: %w", i, err)
		}
		if tsc.CRL != nil {
			items = append(items, ber.Sequence(ts, *tsc.CRL))
		} else {
			items = append(items, ber.Sequence(ts))
		}
	}
	return ber.Sequence(items...), nil
}

// TimeStampToken returns the tstEvidence alternative if that is the one held
func (e *Evidence) TimeStampToken() (TimeStampTokenEvidence, bool) {
	tst, ok := e.Variant.(TimeStampTokenEvidence)
	return tst, ok
}

var evidenceAlternatives = []ber.Alternative[EvidenceVariant]{
	{Class: ber.ClassContextSpecific, Tag: 0, Decode: func(v ber.Value) (EvidenceVariant, error) {
		return timeStampTokenEvidenceFromValue(v.WithTag(ber.ClassUniversal, ber.TagSequence))
	}},
}

// DecodeEvidence decodes a DER or BER encoded Evidence
func DecodeEvidence(data []byte) (*Evidence, error) {
	v, err := ber.Decode(data)
	if err != nil {
		return nil, err
	}
	return EvidenceFromValue(v)
}

// EvidenceFromValue resolves the Evidence CHOICE. The value must carry a
// context-specific tag; an unknown tag number yields an Evidence without a
// variant.
func EvidenceFromValue(v ber.Value) (*Evidence, error) {
	if v.Class != ber.ClassContextSpecific {
		return nil, fmt.Errorf("%w: Evidence must be context tagged, got %s", ber.ErrUnexpectedTag, v)
	}
	variant, ok, err := ber.ResolveChoice(v, evidenceAlternatives...)
	if err != nil {
		return nil, fmt.Errorf("Evidence: %w", err)
	}
	if !ok {
		return &Evidence{}, nil
	}
	return &Evidence{Variant: variant}, nil
}

func timeStampTokenEvidenceFromValue(v ber.Value) (TimeStampTokenEvidence, error) {
	items, err := ber.DecodeSequence(v)
	if err != nil {
		return nil, fmt.Errorf("TimeStampTokenEvidence: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: TimeStampTokenEvidence is empty", ber.ErrIncompleteContainer)
	}

	tst := make(TimeStampTokenEvidence, 0, len(items))
	for i, item := range items {
		fields, err := ber.DecodeSequence(item)
		if err != nil {
			return nil, fmt.Errorf("TimeStampAndCRL[%d]: %w", i, err)
		}
		r := ber.NewFieldReader("TimeStampAndCRL", fields)

		f, err := r.Next("timeStamp")
		if err != nil {
			return nil, err
		}
		ts, err := ContentInfoFromValue(f)
		if err != nil {
			return nil, fmt.Errorf("TimeStampAndCRL[%d].timeStamp: %w", i, err)
		}
		tsc := TimeStampAndCRL{TimeStamp: ts}

		if r.Remaining() > 0 {
			crl, _ := r.Next("crl")
			tsc.CRL = &crl
		}
		if err := r.Finish(); err != nil {
			return nil, err
		}
		tst = append(tst, tsc)
	}
	return tst, nil
}

// ToValue builds the tree for e. An Evidence without a variant cannot be
// encoded.
func (e *Evidence) ToValue() (ber.Value, error) {
	if e.Variant == nil {
		return ber.Value{}, ErrNoVariant
	}
	v, err := e.Variant.toValue()
	if err != nil {
		return ber.Value{}, err
	}
	return v.WithTag(ber.ClassContextSpecific, e.Variant.evidenceTag()), nil
}

// Encode returns the DER encoding of e
func (e *Evidence) Encode() ([]byte, error) {
	v, err := e.ToValue()
	if err != nil {
		return nil, err
	}
	return ber.Encode(v)
}

func (*Evidence) isStructure() {}
