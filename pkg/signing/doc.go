// Package signing reads the signing inputs of an iOS app: PKCS#12 signing
// archives, provisioning profiles, entitlements and the CMS signature
// embedded in a Mach-O binary.
//
// The CMS and PKCS#12 envelopes are checked with the ber and cms packages
// before the payload is handed to the PKCS#7 and PKCS#12 libraries, so
// BER-encoded archives from Keychain Access load without conversion.
//
// # Basic Usage
//
//	identity, err := signing.LoadArchive(p12Data, password)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	profile, err := signing.ParseProvisioningProfile(profileData)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := signing.CheckIdentity(identity, profile, time.Now()); err != nil {
//	    log.Fatal(err)
//	}
package signing
