package signing

import "errors"

var (
	ErrNotSignedData           = errors.New("provisioning profile is not a CMS SignedData message")
	ErrNoSignature             = errors.New("no code signature found")
	ErrNoProfile               = errors.New("no embedded.mobileprovision found")
	ErrCertificateNotInProfile = errors.New("signing certificate is not listed in the provisioning profile")
	ErrTeamMismatch            = errors.New("signing certificate and provisioning profile belong to different teams")
	ErrProfileExpired          = errors.New("provisioning profile has expired")
	ErrKeyMismatch             = errors.New("private key does not match the signing certificate")
	ErrUnsupportedEntitlements = errors.New("unsupported DER entitlements")
)
