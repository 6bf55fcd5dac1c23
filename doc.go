// Package main provides the go-iosbuilder CLI for inspecting the ASN.1
// structures used in iOS app signing.
//
// For the library API, see the subpackages:
//
//	import "github.com/aluedeke/go-iosbuilder/pkg/ber"     // BER decoder, DER encoder
//	import "github.com/aluedeke/go-iosbuilder/pkg/cms"     // CMS structures
//	import "github.com/aluedeke/go-iosbuilder/pkg/signing" // profiles, P12 archives, Mach-O signatures
//
// # Installation
//
// Install the CLI:
//
//	go install github.com/aluedeke/go-iosbuilder@latest
package main
