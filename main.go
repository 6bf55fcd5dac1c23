package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/docopt/docopt-go"
	log "github.com/sirupsen/logrus"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
	"github.com/aluedeke/go-iosbuilder/pkg/cms"
	"github.com/aluedeke/go-iosbuilder/pkg/signing"
)

const version = "1.0.0"

const usage = `go-iosbuilder - ASN.1 inspection for iOS signing inputs

Decodes the BER/DER structures behind iOS app signing: CMS messages, PKCS#12
signing archives, provisioning profiles and Mach-O code signatures.

Usage:
  go-iosbuilder dump --in=<path> [--format=<fmt>] [--config=<path>]
  go-iosbuilder decode --type=<type> --in=<path> [--config=<path>]
  go-iosbuilder macho --binary=<path> [--format=<fmt>] [--config=<path>]
  go-iosbuilder info --profile=<path> [--config=<path>]
  go-iosbuilder info --p12=<path> [--password=<password>] [--config=<path>]
  go-iosbuilder info --ipa=<path> [--config=<path>]
  go-iosbuilder check [--p12=<path>] [--profile=<path>] [--password=<password>] [--config=<path>]
  go-iosbuilder -h | --help
  go-iosbuilder --version

Commands:
  dump      Print the TLV tree of a BER/DER file
  decode    Decode a CMS structure and check that it re-encodes canonically
  macho     Extract and dump the CMS signature of a Mach-O binary
  info      Display information about a provisioning profile, P12 archive or IPA
  check     Verify a P12 signing identity against a provisioning profile

Options:
  --in=<path>           Input file: raw DER/BER, PEM or base64 text
  --type=<type>         Structure type: enveloped-data, originator-public-key or evidence
  --format=<fmt>        Dump format: text, yaml or cbor (default text)
  --binary=<path>       Path to a thin or fat Mach-O binary
  --ipa=<path>          Path to an .ipa file
  --p12=<path>          Path to the P12 signing archive (or IOSBUILDER_P12 env var)
  --profile=<path>      Path to the provisioning profile (or IOSBUILDER_PROFILE env var)
  --password=<password> Password for the P12 archive (or IOSBUILDER_PASSWORD env var)
  --config=<path>       YAML config file with log_level, max_depth and format
  -h --help             Show this help message
  --version             Show version

Environment Variables:
  IOSBUILDER_P12        Path to P12 signing archive (overridden by --p12)
  IOSBUILDER_PROFILE    Path to provisioning profile (overridden by --profile)
  IOSBUILDER_PASSWORD   P12 archive password (overridden by --password)
  IOSBUILDER_LOG_LEVEL  Log level: debug, info, warning or error
  IOSBUILDER_MAX_DEPTH  Deepest nesting accepted by the decoder (default 64)

Examples:
  # Dump a BER-encoded archive as YAML
  go-iosbuilder dump --in=cert.p12 --format=yaml

  # Decode a base64 EnvelopedData
  go-iosbuilder decode --type=enveloped-data --in=message.b64

  # Show the CMS signature of an app binary
  go-iosbuilder macho --binary=Payload/MyApp.app/MyApp

  # Check that a certificate can sign with a profile
  go-iosbuilder check --p12=cert.p12 --profile=dev.mobileprovision --password=secret
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		log.Fatalf("Error parsing arguments: %v", err)
	}

	configPath, _ := opts.String("--config")
	cfg, err := loadConfig(configPath, os.Getenv)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	cfg.applyFlags(opts)
	if err := cfg.validate(); err != nil {
		log.Fatalf("Error: %v", err)
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	commands := []struct {
		name string
		run  func(docopt.Opts, Config) error
	}{
		{"dump", runDump},
		{"decode", runDecode},
		{"macho", runMachO},
		{"info", runInfo},
		{"check", runCheck},
	}
	for _, c := range commands {
		if ok, _ := opts.Bool(c.name); ok {
			if err := c.run(opts, cfg); err != nil {
				log.Fatalf("Error: %v", err)
			}
			return
		}
	}
}

func runDump(opts docopt.Opts, cfg Config) error {
	inPath, _ := opts.String("--in")
	data, err := readInput(inPath)
	if err != nil {
		return err
	}

	v, err := cfg.decoder().Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", inPath, err)
	}
	return writeDump(os.Stdout, cfg.Format, v)
}

func runDecode(opts docopt.Opts, cfg Config) error {
	typeName, _ := opts.String("--type")
	inPath, _ := opts.String("--in")

	kind, err := cms.ParseKind(typeName)
	if err != nil {
		return err
	}
	data, err := readInput(inPath)
	if err != nil {
		return err
	}

	unwrapped := false
	s, err := cms.DecodeWith(cfg.decoder(), kind, data)
	if err != nil && kind == cms.KindEnvelopedData {
		// EnvelopedData is often shipped inside a ContentInfo
		if ed, ciErr := cms.DecodeEnvelopedContentInfoWith(cfg.decoder(), data); ciErr == nil {
			log.Debugf("%s: unwrapped EnvelopedData from ContentInfo", inPath)
			s, err, unwrapped = ed, nil, true
		}
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s as %s: %w", inPath, kind, err)
	}

	if ed, ok := s.(*cms.EnvelopedData); ok {
		if err := ed.CheckVersion(); err != nil {
			log.Warnf("%s: %v", inPath, err)
		}
	}
	printStructure(os.Stdout, s)

	der, err := cms.Encode(s)
	if err != nil {
		return fmt.Errorf("failed to re-encode %s: %w", kind, err)
	}
	fmt.Println()
	fmt.Printf("Re-encoded:     %d bytes\n", len(der))
	if !unwrapped {
		fmt.Printf("Canonical DER:  %v\n", bytes.Equal(der, data))
	}
	return nil
}

func runMachO(opts docopt.Opts, cfg Config) error {
	binaryPath, _ := opts.String("--binary")
	data, err := os.ReadFile(binaryPath)
	if err != nil {
		return fmt.Errorf("failed to read binary: %w", err)
	}

	sigs, err := signing.ExtractCMSSignatures(data)
	if err != nil {
		return fmt.Errorf("%s: %w", binaryPath, err)
	}

	dec := cfg.decoder()
	values := make([]ber.Value, 0, len(sigs))
	for _, sig := range sigs {
		v, err := dec.Decode(sig.CMS)
		if err != nil {
			return fmt.Errorf("%s: %s signature: %w", binaryPath, sig.Arch, err)
		}
		log.Debugf("%s: %s signature is %d bytes", binaryPath, sig.Arch, len(sig.CMS))
		if cfg.Format != formatText {
			values = append(values, v)
			continue
		}

		ci, err := cms.ContentInfoFromValue(v)
		if err != nil {
			return fmt.Errorf("%s: %s signature: %w", binaryPath, sig.Arch, err)
		}
		fmt.Printf("Architecture:   %s\n", sig.Arch)
		fmt.Printf("CMS Size:       %d bytes\n", len(sig.CMS))
		fmt.Printf("Content Type:   %s\n", ci.ContentType)
		fmt.Println()
		if err := writeDump(os.Stdout, formatText, v); err != nil {
			return err
		}
	}
	if len(values) == 0 {
		return nil
	}
	return writeDump(os.Stdout, cfg.Format, values...)
}

func runInfo(opts docopt.Opts, cfg Config) error {
	profilePath, _ := opts.String("--profile")
	p12Path, _ := opts.String("--p12")
	ipaPath, _ := opts.String("--ipa")

	switch {
	case profilePath != "":
		data, err := readInput(profilePath)
		if err != nil {
			return err
		}
		return showProfileInfo(profilePath, data)
	case p12Path != "":
		return showArchiveInfo(p12Path, cfg.Password)
	case ipaPath != "":
		data, err := signing.ReadEmbeddedProfile(ipaPath)
		if err != nil {
			return fmt.Errorf("%s: %w", ipaPath, err)
		}
		return showProfileInfo(ipaPath, data)
	}
	return fmt.Errorf("one of --profile, --p12 or --ipa is required")
}

func runCheck(opts docopt.Opts, cfg Config) error {
	if cfg.P12 == "" {
		return fmt.Errorf("--p12 is required (or set %s environment variable)", envP12)
	}
	if cfg.Profile == "" {
		return fmt.Errorf("--profile is required (or set %s environment variable)", envProfile)
	}

	p12Data, err := readInput(cfg.P12)
	if err != nil {
		return err
	}
	password, err := archivePassword(cfg)
	if err != nil {
		return err
	}
	identity, err := signing.LoadArchive(p12Data, password)
	if err != nil {
		return err
	}
	profileData, err := readInput(cfg.Profile)
	if err != nil {
		return err
	}
	profile, err := signing.ParseProvisioningProfile(profileData)
	if err != nil {
		return err
	}

	if err := signing.CheckIdentity(identity, profile, time.Now()); err != nil {
		return err
	}
	fmt.Printf("Certificate:    %s\n", identity.Certificate.Subject.CommonName)
	fmt.Printf("Team ID:        %s\n", identity.TeamID)
	fmt.Printf("Profile:        %s\n", profile.Name)
	fmt.Printf("Expiration:     %s\n", profile.ExpirationDate.Format("2006-01-02 15:04:05"))
	fmt.Println("Identity can sign with this profile")
	return nil
}
