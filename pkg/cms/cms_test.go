package cms

import (
	"encoding/asn1"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

var (
	oidAES256CBC  = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}
	oidRSA        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidECPublic   = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidCommonName = asn1.ObjectIdentifier{2, 5, 4, 3}
)

// tlv builds a short-form TLV from its identifier octet and content parts
func tlv(id byte, parts ...[]byte) []byte {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	if len(body) > 127 {
		panic("tlv: content too long for short form")
	}
	return append([]byte{id, byte(len(body))}, body...)
}

func oidBytes(t *testing.T, oid asn1.ObjectIdentifier) []byte {
	t.Helper()
	content, err := ber.MarshalObjectIdentifier(oid)
	require.NoError(t, err)
	return tlv(0x06, content)
}

func ktri(version int) RecipientInfo {
	return NewRecipientInfo(KeyTransRecipient, version,
		ber.OctetString([]byte{0x01, 0x02}).WithTag(ber.ClassContextSpecific, 0),
		mustValue(AlgorithmIdentifier{Algorithm: oidRSA, Parameters: &nullValue}.toValue()),
		ber.OctetString([]byte("wrapped key")),
	)
}

var nullValue = ber.Null()

func mustValue(v ber.Value, err error) ber.Value {
	if err != nil {
		panic(err)
	}
	return v
}

func sampleECI() EncryptedContentInfo {
	iv := ber.OctetString([]byte("0123456789abcdef"))
	return EncryptedContentInfo{
		ContentType:                OIDData,
		ContentEncryptionAlgorithm: AlgorithmIdentifier{Algorithm: oidAES256CBC, Parameters: &iv},
		EncryptedContent:           []byte("ciphertext"),
	}
}

func sampleOriginatorKey() *OriginatorPublicKey {
	return &OriginatorPublicKey{
		Algorithm: AlgorithmIdentifier{Algorithm: oidECPublic},
		PublicKey: ber.BitString{Bytes: []byte{0x04, 0xaa, 0xbb, 0xcc}},
	}
}

func TestCalculateVersion(t *testing.T) {
	tests := []struct {
		name       string
		originator *OriginatorInfo
		versions   []int
		attrs      []Attribute
		want       int
	}{
		{"all zero", nil, []int{0, 0, 0}, nil, 0},
		{"one differs", nil, []int{0, 1, 0}, nil, 2},
		{"first differs", nil, []int{3}, nil, 2},
		{"empty recipients", nil, nil, nil, 0},
		{"originator present", &OriginatorInfo{}, []int{0, 0}, nil, 2},
		{"originator with certs", &OriginatorInfo{Certs: []ber.Value{ber.Sequence()}}, []int{0}, nil, 2},
		{"unprotected attributes", nil, []int{0}, []Attribute{{Type: oidCommonName}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var recipients []RecipientInfo
			for _, v := range tt.versions {
				recipients = append(recipients, ktri(v))
			}
			assert.Equal(t, tt.want, CalculateVersion(tt.originator, recipients, tt.attrs))

			ed := NewEnvelopedData(tt.originator, recipients, sampleECI(), tt.attrs)
			assert.Equal(t, tt.want, ed.Version)
		})
	}
}

func TestEnvelopedDataRoundTrip(t *testing.T) {
	key, err := sampleOriginatorKey().ToValue()
	require.NoError(t, err)
	kari := NewRecipientInfo(KeyAgreeRecipient, 3,
		ber.Explicit(ber.ClassContextSpecific, 0, key.WithTag(ber.ClassContextSpecific, 1)),
		mustValue(AlgorithmIdentifier{Algorithm: oidAES256CBC}.toValue()),
		ber.Sequence(),
	)
	ori := NewRecipientInfo(OtherRecipient, 0, mustValue(ber.ObjectIdentifier(oidCommonName)), ber.Integer(9))

	tests := []struct {
		name string
		ed   *EnvelopedData
	}{
		{"minimal", NewEnvelopedData(nil, []RecipientInfo{ktri(0)}, sampleECI(), nil)},
		{"every field", NewEnvelopedData(
			&OriginatorInfo{
				Certs: []ber.Value{ber.Sequence(ber.Integer(1))},
				CRLs:  []ber.Value{ber.Sequence(ber.Integer(2))},
			},
			[]RecipientInfo{ktri(2), kari, ori},
			sampleECI(),
			[]Attribute{{Type: oidCommonName, Values: []ber.Value{ber.UTF8String("x"), ber.UTF8String("y")}}},
		)},
		{"empty originator info", NewEnvelopedData(&OriginatorInfo{}, []RecipientInfo{ktri(0)}, sampleECI(), nil)},
		{"detached content", NewEnvelopedData(nil, []RecipientInfo{ktri(0), ktri(0)}, EncryptedContentInfo{
			ContentType:                OIDData,
			ContentEncryptionAlgorithm: AlgorithmIdentifier{Algorithm: oidAES256CBC},
		}, nil)},
		{"empty content", NewEnvelopedData(nil, []RecipientInfo{ktri(0)}, EncryptedContentInfo{
			ContentType:                OIDData,
			ContentEncryptionAlgorithm: AlgorithmIdentifier{Algorithm: oidAES256CBC},
			EncryptedContent:           []byte{},
		}, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			der, err := tt.ed.Encode()
			require.NoError(t, err)

			got, err := DecodeEnvelopedData(der)
			require.NoError(t, err)
			assert.Equal(t, tt.ed, got)
			assert.NoError(t, got.CheckVersion())

			again, err := got.Encode()
			require.NoError(t, err)
			assert.Equal(t, der, again)
		})
	}
}

func TestEnvelopedDataOptionalFields(t *testing.T) {
	version := func(n byte) []byte { return tlv(0x02, []byte{n}) }
	recipients := tlv(0x31, tlv(0x30, version(0)))
	eci := tlv(0x30,
		oidBytes(t, OIDData),
		tlv(0x30, oidBytes(t, oidAES256CBC)),
	)
	attrs := tlv(0xa1, tlv(0x30, oidBytes(t, oidCommonName), tlv(0x31, tlv(0x0c, []byte("x")))))

	t.Run("originatorInfo present", func(t *testing.T) {
		data := tlv(0x30, version(2), tlv(0xa0), recipients, eci)
		ed, err := DecodeEnvelopedData(data)
		require.NoError(t, err)

		require.NotNil(t, ed.OriginatorInfo)
		require.Len(t, ed.RecipientInfos, 1)
		assert.Equal(t, KeyTransRecipient, ed.RecipientInfos[0].Type)
		assert.Equal(t, OIDData, ed.EncryptedContentInfo.ContentType)
		assert.Nil(t, ed.UnprotectedAttrs)
	})

	t.Run("originatorInfo absent", func(t *testing.T) {
		data := tlv(0x30, version(0), recipients, eci)
		ed, err := DecodeEnvelopedData(data)
		require.NoError(t, err)

		assert.Nil(t, ed.OriginatorInfo)
		require.Len(t, ed.RecipientInfos, 1)
		assert.Equal(t, 0, ed.RecipientInfos[0].Version)
	})

	t.Run("originatorInfo with certs", func(t *testing.T) {
		certs := tlv(0xa0, tlv(0x30, version(1)), tlv(0x30, version(2)))
		data := tlv(0x30, version(2), tlv(0xa0, certs), recipients, eci)
		ed, err := DecodeEnvelopedData(data)
		require.NoError(t, err)

		require.NotNil(t, ed.OriginatorInfo)
		assert.Len(t, ed.OriginatorInfo.Certs, 2)
		assert.Nil(t, ed.OriginatorInfo.CRLs)
	})

	t.Run("unprotectedAttrs present", func(t *testing.T) {
		data := tlv(0x30, version(2), recipients, eci, attrs)
		ed, err := DecodeEnvelopedData(data)
		require.NoError(t, err)

		require.Len(t, ed.UnprotectedAttrs, 1)
		assert.Equal(t, oidCommonName, ed.UnprotectedAttrs[0].Type)
		s, err := ed.UnprotectedAttrs[0].Values[0].UTF8()
		require.NoError(t, err)
		assert.Equal(t, "x", s)
	})

	errorTests := []struct {
		name string
		data []byte
		want error
	}{
		{"originatorInfo after recipients", tlv(0x30, version(0), recipients, eci, tlv(0xa0)), ber.ErrTrailingData},
		{"missing encryptedContentInfo", tlv(0x30, version(0), recipients), ber.ErrIncompleteContainer},
		{"missing everything", tlv(0x30), ber.ErrIncompleteContainer},
		{"empty recipient set", tlv(0x30, version(0), tlv(0x31), eci), ErrNoRecipients},
		{"unknown recipient alternative", tlv(0x30, version(0), tlv(0x31, tlv(0xa7, version(0))), eci), ber.ErrUnexpectedTag},
		{"recipients not a set", tlv(0x30, version(0), tlv(0x30, version(0)), eci), ber.ErrUnexpectedTag},
		{"primitive originatorInfo", tlv(0x30, version(2), tlv(0x80), recipients, eci), ber.ErrUnexpectedTag},
		{"not a sequence", tlv(0x31, version(0)), ber.ErrUnexpectedTag},
	}
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			ed, err := DecodeEnvelopedData(tt.data)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, ed)
		})
	}
}

func TestEnvelopedDataVersionTrustedVerbatim(t *testing.T) {
	ed := NewEnvelopedData(nil, []RecipientInfo{ktri(0)}, sampleECI(), nil)
	ed.Version = 5

	der, err := ed.Encode()
	require.NoError(t, err)

	got, err := DecodeEnvelopedData(der)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Version)

	err = got.CheckVersion()
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.Contains(t, err.Error(), "encoded 5, inferred 0")
}

func TestEnvelopedDataEncodeRequiresRecipients(t *testing.T) {
	ed := NewEnvelopedData(nil, nil, sampleECI(), nil)
	assert.Equal(t, 0, ed.Version)

	_, err := ed.Encode()
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestEnvelopedDataTruncation(t *testing.T) {
	ed := NewEnvelopedData(&OriginatorInfo{}, []RecipientInfo{ktri(0), ktri(2)}, sampleECI(), nil)
	der, err := ed.Encode()
	require.NoError(t, err)

	for i := 0; i < len(der); i++ {
		_, err := DecodeEnvelopedData(der[:i])
		if !errors.Is(err, ber.ErrTruncatedInput) && !errors.Is(err, ber.ErrInvalidLength) {
			t.Fatalf("prefix of %d bytes: got %v", i, err)
		}
	}
}

func TestEnvelopedContentInfo(t *testing.T) {
	ed := NewEnvelopedData(nil, []RecipientInfo{ktri(0)}, sampleECI(), nil)
	edv, err := ed.ToValue()
	require.NoError(t, err)

	der, err := ContentInfo{ContentType: OIDEnvelopedData, Content: edv}.Encode()
	require.NoError(t, err)

	got, err := DecodeEnvelopedContentInfo(der)
	require.NoError(t, err)
	assert.Equal(t, ed, got)

	der, err = ContentInfo{ContentType: OIDSignedData, Content: edv}.Encode()
	require.NoError(t, err)
	_, err = DecodeEnvelopedContentInfo(der)
	assert.ErrorIs(t, err, ErrUnexpectedContentType)
}

func TestEnvelopedContentInfoHonorsDecoderLimit(t *testing.T) {
	edv, err := NewEnvelopedData(nil, []RecipientInfo{ktri(0)}, sampleECI(), nil).ToValue()
	require.NoError(t, err)
	der, err := ContentInfo{ContentType: OIDEnvelopedData, Content: edv}.Encode()
	require.NoError(t, err)

	_, err = DecodeEnvelopedContentInfoWith(ber.Decoder{MaxDepth: 3}, der)
	assert.ErrorIs(t, err, ber.ErrNestingTooDeep)

	got, err := DecodeEnvelopedContentInfoWith(ber.Decoder{MaxDepth: 8}, der)
	require.NoError(t, err)
	assert.Len(t, got.RecipientInfos, 1)
}

func TestOriginatorKeyFromKeyAgreeRecipient(t *testing.T) {
	key := sampleOriginatorKey()
	kv, err := key.ToValue()
	require.NoError(t, err)

	kari := NewRecipientInfo(KeyAgreeRecipient, 3,
		ber.Explicit(ber.ClassContextSpecific, 0, kv.WithTag(ber.ClassContextSpecific, 1)),
		mustValue(AlgorithmIdentifier{Algorithm: oidAES256CBC}.toValue()),
		ber.Sequence(),
	)
	der, err := NewEnvelopedData(nil, []RecipientInfo{kari}, sampleECI(), nil).Encode()
	require.NoError(t, err)

	ed, err := DecodeEnvelopedData(der)
	require.NoError(t, err)
	assert.Equal(t, 2, ed.Version)

	got, ok, err := ed.RecipientInfos[0].OriginatorKey()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key, got)

	// identified by subjectKeyIdentifier instead of by key
	bySKI := NewRecipientInfo(KeyAgreeRecipient, 3,
		ber.Explicit(ber.ClassContextSpecific, 0, ber.OctetString([]byte{1}).WithTag(ber.ClassContextSpecific, 0)))
	_, ok, err = bySKI.OriginatorKey()
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ktri(0).OriginatorKey()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOriginatorPublicKey(t *testing.T) {
	key := sampleOriginatorKey()
	der, err := key.Encode()
	require.NoError(t, err)

	want := tlv(0x30,
		tlv(0x30, oidBytes(t, oidECPublic)),
		tlv(0x03, []byte{0x00, 0x04, 0xaa, 0xbb, 0xcc}),
	)
	assert.Equal(t, want, der)

	got, err := DecodeOriginatorPublicKey(der)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestOriginatorPublicKeyErrors(t *testing.T) {
	alg := tlv(0x30, oidBytes(t, oidECPublic))
	key := tlv(0x03, []byte{0x00, 0x04})

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"extra field", tlv(0x30, alg, key, tlv(0x05)), ber.ErrTrailingData},
		{"missing publicKey", tlv(0x30, alg), ber.ErrIncompleteContainer},
		{"octet string key", tlv(0x30, alg, tlv(0x04, []byte{0x04})), ber.ErrUnexpectedTag},
		{"bad unused bits", tlv(0x30, alg, tlv(0x03, []byte{0x09, 0x04})), ber.ErrInvalidContent},
		{"algorithm not a sequence", tlv(0x30, oidBytes(t, oidECPublic), key), ber.ErrUnexpectedTag},
		{"truncated", tlv(0x30, alg, key)[:5], ber.ErrTruncatedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeOriginatorPublicKey(tt.data)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, got)
		})
	}
}

func sampleEvidence() *Evidence {
	crl := ber.Sequence(ber.Integer(1))
	return &Evidence{Variant: TimeStampTokenEvidence{
		{TimeStamp: ContentInfo{ContentType: OIDSignedData, Content: ber.Sequence(ber.Integer(3))}},
		{TimeStamp: ContentInfo{ContentType: OIDSignedData, Content: ber.Sequence(ber.Integer(4))}, CRL: &crl},
	}}
}

func TestEvidenceRoundTrip(t *testing.T) {
	ev := sampleEvidence()
	der, err := ev.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte(0xa0), der[0], "tstEvidence is [0] IMPLICIT")

	got, err := DecodeEvidence(der)
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	tst, ok := got.TimeStampToken()
	require.True(t, ok)
	assert.Len(t, tst, 2)
	assert.Nil(t, tst[0].CRL)
	assert.NotNil(t, tst[1].CRL)
}

func TestEvidenceUnknownAlternative(t *testing.T) {
	ev, err := DecodeEvidence(tlv(0xa5, tlv(0x30)))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Nil(t, ev.Variant)

	_, ok := ev.TimeStampToken()
	assert.False(t, ok)

	_, err = ev.Encode()
	assert.ErrorIs(t, err, ErrNoVariant)

	ev, err = DecodeEvidence(tlv(0x85, []byte{0x01}))
	require.NoError(t, err)
	assert.Nil(t, ev.Variant)
}

func TestEvidenceErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"untagged", tlv(0x30), ber.ErrUnexpectedTag},
		{"application tag", tlv(0x60), ber.ErrUnexpectedTag},
		{"empty evidence", tlv(0xa0), ber.ErrIncompleteContainer},
		{"primitive [0]", tlv(0x80, []byte{0x00}), ber.ErrUnexpectedTag},
		{"bad time stamp", tlv(0xa0, tlv(0x30, tlv(0x30, tlv(0x02, []byte{0x01})))), ber.ErrUnexpectedTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvidence(tt.data)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, ev)
		})
	}
}

func TestStructureUnion(t *testing.T) {
	structures := map[Kind]Structure{
		KindEnvelopedData:       NewEnvelopedData(nil, []RecipientInfo{ktri(0)}, sampleECI(), nil),
		KindOriginatorPublicKey: sampleOriginatorKey(),
		KindEvidence:            sampleEvidence(),
	}

	for kind, s := range structures {
		t.Run(kind.String(), func(t *testing.T) {
			der, err := Encode(s)
			require.NoError(t, err)

			got, err := Decode(kind, der)
			require.NoError(t, err)
			assert.Equal(t, s, got)

			parsed, err := ParseKind(kind.String())
			require.NoError(t, err)
			assert.Equal(t, kind, parsed)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := ParseKind("signed-data")
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode(Kind(42), []byte{0x30, 0x00})
	assert.ErrorIs(t, err, ErrUnknownKind)

	s, err := Decode(KindOriginatorPublicKey, []byte{0x30, 0x00})
	assert.ErrorIs(t, err, ber.ErrIncompleteContainer)
	assert.Nil(t, s)

	der, err := NewEnvelopedData(nil, []RecipientInfo{ktri(0)}, sampleECI(), nil).Encode()
	require.NoError(t, err)
	_, err = DecodeWith(ber.Decoder{MaxDepth: 2}, KindEnvelopedData, der)
	assert.ErrorIs(t, err, ber.ErrNestingTooDeep)
}
