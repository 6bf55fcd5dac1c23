package signing

import (
	"crypto/x509"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mozilla.org/pkcs7"
	"howett.net/plist"

	"github.com/aluedeke/go-iosbuilder/pkg/cms"
)

// ProvisioningProfile represents a parsed .mobileprovision file
type ProvisioningProfile struct {
	Name                        string                 `plist:"Name"`
	TeamName                    string                 `plist:"TeamName"`
	TeamIdentifier              []string               `plist:"TeamIdentifier"`
	AppIDName                   string                 `plist:"AppIDName"`
	ApplicationIdentifierPrefix []string               `plist:"ApplicationIdentifierPrefix"`
	Entitlements                map[string]interface{} `plist:"Entitlements"`
	DeveloperCertificates       [][]byte               `plist:"DeveloperCertificates"`
	ProvisionedDevices          []string               `plist:"ProvisionedDevices,omitempty"`
	ProvisionsAllDevices        bool                   `plist:"ProvisionsAllDevices,omitempty"`
	CreationDate                time.Time              `plist:"CreationDate"`
	ExpirationDate              time.Time              `plist:"ExpirationDate"`
	UUID                        string                 `plist:"UUID"`
	Platform                    []string               `plist:"Platform"`
}

// ParseProvisioningProfile parses a .mobileprovision file.
// The outer CMS envelope is checked with the BER codec first, so malformed
// input is rejected before the payload is extracted.
func ParseProvisioningProfile(data []byte) (*ProvisioningProfile, error) {
	ci, err := cms.ParseContentInfo(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CMS envelope: %w", err)
	}
	if !ci.ContentType.Equal(cms.OIDSignedData) {
		return nil, fmt.Errorf("%w: content type %s", ErrNotSignedData, ci.ContentType)
	}

	p7, err := pkcs7.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#7 container: %w", err)
	}

	var profile ProvisioningProfile
	if _, err := plist.Unmarshal(p7.Content, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse provisioning profile plist: %w", err)
	}

	return &profile, nil
}

// GetTeamID returns the team identifier from the profile
func (p *ProvisioningProfile) GetTeamID() string {
	if len(p.TeamIdentifier) > 0 {
		return p.TeamIdentifier[0]
	}
	if len(p.ApplicationIdentifierPrefix) > 0 {
		return p.ApplicationIdentifierPrefix[0]
	}
	return ""
}

// GetApplicationIdentifier returns the application identifier from entitlements
func (p *ProvisioningProfile) GetApplicationIdentifier() string {
	appID, _ := p.Entitlements["application-identifier"].(string)
	return appID
}

// ProfileID parses the profile UUID, which names the installed profile on device
func (p *ProvisioningProfile) ProfileID() (uuid.UUID, error) {
	id, err := uuid.Parse(p.UUID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid profile UUID %q: %w", p.UUID, err)
	}
	return id, nil
}

// ExpiredAt reports whether the profile is no longer valid at t
func (p *ProvisioningProfile) ExpiredAt(t time.Time) bool {
	return t.After(p.ExpirationDate)
}

// GetCertificates parses and returns the developer certificates from the profile
func (p *ProvisioningProfile) GetCertificates() ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, 0, len(p.DeveloperCertificates))
	for i, certData := range p.DeveloperCertificates {
		cert, err := x509.ParseCertificate(certData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %d: %w", i, err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// MatchesCertificate reports whether cert is one of the profile's developer
// certificates. Unparseable entries are skipped.
func (p *ProvisioningProfile) MatchesCertificate(cert *x509.Certificate) bool {
	for _, certData := range p.DeveloperCertificates {
		profileCert, err := x509.ParseCertificate(certData)
		if err != nil {
			continue
		}
		if cert.Equal(profileCert) {
			return true
		}
	}
	return false
}
