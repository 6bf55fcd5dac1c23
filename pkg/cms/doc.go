// Package cms decodes and encodes the RFC 5652 Cryptographic Message Syntax
// structures found in signing archives and provisioning profiles.
//
// Every structure is read from a ber.Value tree and written back to one, so
// callers choose their own decoder limits. Fields the package does not
// interpret (certificates, key material, attribute values) are kept as raw
// ber.Value and re-encode unchanged.
//
// # Basic Usage
//
//	ed, err := cms.DecodeEnvelopedData(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ed.CheckVersion(); err != nil {
//	    log.Printf("warning: %v", err)
//	}
//
// Building an EnvelopedData from its parts infers the version:
//
//	ed := cms.NewEnvelopedData(nil, recipients, eci, nil)
//	der, err := ed.Encode()
package cms
