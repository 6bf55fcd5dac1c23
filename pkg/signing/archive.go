package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"time"

	gop12 "software.sslmate.com/src/go-pkcs12"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
	"github.com/aluedeke/go-iosbuilder/pkg/cms"
)

// SigningIdentity is the certificate and private key from a PKCS#12 archive
type SigningIdentity struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.PrivateKey
	CertChain   []*x509.Certificate
	TeamID      string
}

// LoadArchive decodes a PKCS#12 signing archive. Archives exported by
// Keychain Access are BER with indefinite lengths; they are normalized to
// DER before decryption.
func LoadArchive(p12Data []byte, password string) (*SigningIdentity, error) {
	der, err := ber.Normalize(p12Data)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize P12: %w", err)
	}

	privateKey, cert, caCerts, err := gop12.DecodeChain(der, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode P12: %w", err)
	}

	chain := []*x509.Certificate{cert}
	chain = append(chain, caCerts...)

	return &SigningIdentity{
		Certificate: cert,
		PrivateKey:  privateKey,
		CertChain:   chain,
		TeamID:      extractTeamID(cert),
	}, nil
}

func extractTeamID(cert *x509.Certificate) string {
	// Apple Team IDs are 10 characters in the Organizational Unit
	for _, ou := range cert.Subject.OrganizationalUnit {
		if len(ou) == 10 {
			return ou
		}
	}
	return ""
}

// keyMatchesCert checks if a private key matches a certificate's public key
func keyMatchesCert(privateKey crypto.PrivateKey, cert *x509.Certificate) bool {
	switch priv := privateKey.(type) {
	case *rsa.PrivateKey:
		return priv.PublicKey.Equal(cert.PublicKey)
	case *ecdsa.PrivateKey:
		return priv.PublicKey.Equal(cert.PublicKey)
	}
	return false
}

// CheckIdentity verifies that id can sign for profile at time now: the key
// belongs to the certificate, the certificate is listed in the profile, both
// name the same team, and the profile has not expired.
func CheckIdentity(id *SigningIdentity, profile *ProvisioningProfile, now time.Time) error {
	if !keyMatchesCert(id.PrivateKey, id.Certificate) {
		return ErrKeyMismatch
	}
	if !profile.MatchesCertificate(id.Certificate) {
		return fmt.Errorf("%w: %s", ErrCertificateNotInProfile, id.Certificate.Subject.CommonName)
	}
	if team := profile.GetTeamID(); id.TeamID != "" && team != "" && team != id.TeamID {
		return fmt.Errorf("%w: certificate %s, profile %s", ErrTeamMismatch, id.TeamID, team)
	}
	if profile.ExpiredAt(now) {
		return fmt.Errorf("%w: %s", ErrProfileExpired, profile.ExpirationDate.Format(time.RFC3339))
	}
	return nil
}

// ArchiveInfo is the unencrypted outline of a PKCS#12 archive
type ArchiveInfo struct {
	Version      int
	ContentType  asn1.ObjectIdentifier
	SafeContents []asn1.ObjectIdentifier
	MAC          *MACInfo
}

// MACInfo describes the integrity MAC of a password protected archive
type MACInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Salt       []byte
	Iterations int
}

// InspectArchive reads the PFX envelope without the password:
//
//	PFX ::= SEQUENCE {
//	    version INTEGER {v3(3)},
//	    authSafe ContentInfo,
//	    macData MacData OPTIONAL }
//	MacData ::= SEQUENCE {
//	    mac DigestInfo,
//	    macSalt OCTET STRING,
//	    iterations INTEGER DEFAULT 1 }
func InspectArchive(p12Data []byte) (*ArchiveInfo, error) {
	v, err := ber.Decode(p12Data)
	if err != nil {
		return nil, err
	}
	fields, err := ber.DecodeSequence(v)
	if err != nil {
		return nil, fmt.Errorf("PFX: %w", err)
	}
	r := ber.NewFieldReader("PFX", fields)
	info := &ArchiveInfo{}

	f, err := r.Next("version")
	if err != nil {
		return nil, err
	}
	if info.Version, err = f.Int(); err != nil {
		return nil, fmt.Errorf("PFX.version: %w", err)
	}

	if f, err = r.Next("authSafe"); err != nil {
		return nil, err
	}
	authSafe, err := cms.ContentInfoFromValue(f)
	if err != nil {
		return nil, fmt.Errorf("PFX.authSafe: %w", err)
	}
	info.ContentType = authSafe.ContentType
	if authSafe.ContentType.Equal(cms.OIDData) {
		if info.SafeContents, err = safeContentTypes(authSafe.Content); err != nil {
			return nil, fmt.Errorf("PFX.authSafe: %w", err)
		}
	}

	if r.Remaining() > 0 {
		f, _ := r.Next("macData")
		if info.MAC, err = parseMacData(f); err != nil {
			return nil, fmt.Errorf("PFX.macData: %w", err)
		}
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return info, nil
}

// safeContentTypes lists the content types of the AuthenticatedSafe held in
// an id-data OCTET STRING
func safeContentTypes(content ber.Value) ([]asn1.ObjectIdentifier, error) {
	data, err := content.OctetString()
	if err != nil {
		return nil, err
	}
	v, err := ber.Decode(data)
	if err != nil {
		return nil, err
	}
	items, err := ber.DecodeSequence(v)
	if err != nil {
		return nil, err
	}
	types := make([]asn1.ObjectIdentifier, 0, len(items))
	for i, item := range items {
		ci, err := cms.ContentInfoFromValue(item)
		if err != nil {
			return nil, fmt.Errorf("AuthenticatedSafe[%d]: %w", i, err)
		}
		types = append(types, ci.ContentType)
	}
	return types, nil
}

func parseMacData(v ber.Value) (*MACInfo, error) {
	fields, err := ber.DecodeSequence(v)
	if err != nil {
		return nil, err
	}
	r := ber.NewFieldReader("MacData", fields)

	f, err := r.Next("mac")
	if err != nil {
		return nil, err
	}
	digestInfo, err := ber.DecodeSequence(f)
	if err != nil {
		return nil, fmt.Errorf("mac: %w", err)
	}
	alg, err := ber.NewFieldReader("DigestInfo", digestInfo).Next("digestAlgorithm")
	if err != nil {
		return nil, err
	}
	algFields, err := ber.DecodeSequence(alg)
	if err != nil {
		return nil, fmt.Errorf("mac.digestAlgorithm: %w", err)
	}
	oid, err := ber.NewFieldReader("AlgorithmIdentifier", algFields).Next("algorithm")
	if err != nil {
		return nil, err
	}
	mac := &MACInfo{Iterations: 1}
	if mac.Algorithm, err = oid.OID(); err != nil {
		return nil, fmt.Errorf("mac.digestAlgorithm: %w", err)
	}

	if f, err = r.Next("macSalt"); err != nil {
		return nil, err
	}
	if mac.Salt, err = f.OctetString(); err != nil {
		return nil, fmt.Errorf("macSalt: %w", err)
	}

	if f, ok := r.Optional(ber.ClassUniversal, ber.TagInteger); ok {
		if mac.Iterations, err = f.Int(); err != nil {
			return nil, fmt.Errorf("iterations: %w", err)
		}
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return mac, nil
}
