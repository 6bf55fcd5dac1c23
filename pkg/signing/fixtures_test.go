package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"go.mozilla.org/pkcs7"
	"howett.net/plist"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

const testTeamID = "ABCDE12345"

var (
	testCreated = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testExpires = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

// newTestCertificate creates a self-signed code signing certificate for key
func newTestCertificate(t *testing.T, key crypto.Signer, ou string) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:         "Apple Development: Test Developer",
			OrganizationalUnit: []string{ou},
			Organization:       []string{"Test Team"},
		},
		NotBefore:   testCreated,
		NotAfter:    testExpires,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return cert
}

func newRSAIdentity(t *testing.T, ou string) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return key, newTestCertificate(t, key, ou)
}

func newECDSAIdentity(t *testing.T, ou string) (*ecdsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ECDSA key: %v", err)
	}
	return key, newTestCertificate(t, key, ou)
}

// newTestProfile builds a signed .mobileprovision listing certs
func newTestProfile(t *testing.T, signerKey *rsa.PrivateKey, signer *x509.Certificate, teamID string, certs ...*x509.Certificate) []byte {
	t.Helper()
	profile := ProvisioningProfile{
		Name:                        "Test Profile",
		TeamName:                    "Test Team",
		TeamIdentifier:              []string{teamID},
		AppIDName:                   "Test App",
		ApplicationIdentifierPrefix: []string{teamID},
		Entitlements: map[string]interface{}{
			"application-identifier": teamID + ".com.example.app",
			"get-task-allow":         true,
			"keychain-access-groups": []interface{}{teamID + ".*"},
		},
		CreationDate:   testCreated,
		ExpirationDate: testExpires,
		UUID:           "0F6C5A3E-1D2B-4C8A-9E7F-123456789ABC",
		Platform:       []string{"iOS"},
	}
	for _, c := range certs {
		profile.DeveloperCertificates = append(profile.DeveloperCertificates, c.Raw)
	}

	content, err := plist.Marshal(profile, plist.XMLFormat)
	if err != nil {
		t.Fatalf("Failed to marshal profile: %v", err)
	}
	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		t.Fatalf("Failed to create SignedData: %v", err)
	}
	if err := sd.AddSigner(signer, signerKey, pkcs7.SignerInfoConfig{}); err != nil {
		t.Fatalf("Failed to add signer: %v", err)
	}
	der, err := sd.Finish()
	if err != nil {
		t.Fatalf("Failed to finish SignedData: %v", err)
	}
	return der
}

// toIndefinite re-encodes the outermost constructed TLV of der with an
// indefinite length, the way Keychain Access and some profile tools do
func toIndefinite(t *testing.T, der []byte) []byte {
	t.Helper()
	h, n, err := ber.ParseHeader(der, 0)
	if err != nil {
		t.Fatalf("Failed to parse header: %v", err)
	}
	if !h.Constructed || n+h.Length != len(der) {
		t.Fatalf("Unexpected outer header %s", h)
	}
	out := []byte{der[0], 0x80}
	out = append(out, der[n:]...)
	return append(out, 0x00, 0x00)
}
