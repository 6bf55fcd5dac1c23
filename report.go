package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aluedeke/go-iosbuilder/pkg/cms"
	"github.com/aluedeke/go-iosbuilder/pkg/signing"
)

// printStructure writes a summary of a decoded CMS structure
func printStructure(w io.Writer, s cms.Structure) {
	switch st := s.(type) {
	case *cms.EnvelopedData:
		printEnvelopedData(w, st)
	case *cms.OriginatorPublicKey:
		fmt.Fprintln(w, "OriginatorPublicKey")
		fmt.Fprintln(w, "===================")
		fmt.Fprintf(w, "Algorithm:      %s\n", st.Algorithm.Algorithm)
		fmt.Fprintf(w, "Public Key:     %d bits\n", st.PublicKey.BitLen())
	case *cms.Evidence:
		fmt.Fprintln(w, "Evidence")
		fmt.Fprintln(w, "========")
		tst, ok := st.TimeStampToken()
		if !ok {
			fmt.Fprintln(w, "Variant:        unknown")
			return
		}
		fmt.Fprintln(w, "Variant:        tstEvidence")
		fmt.Fprintf(w, "Tokens:         %d\n", len(tst))
		for i, token := range tst {
			fmt.Fprintf(w, "  [%d] %s", i+1, token.TimeStamp.ContentType)
			if token.CRL != nil {
				fmt.Fprint(w, " (with CRL)")
			}
			fmt.Fprintln(w)
		}
	}
}

func printEnvelopedData(w io.Writer, ed *cms.EnvelopedData) {
	fmt.Fprintln(w, "EnvelopedData")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Version:        %d (inferred %d)\n", ed.Version,
		cms.CalculateVersion(ed.OriginatorInfo, ed.RecipientInfos, ed.UnprotectedAttrs))
	if ed.OriginatorInfo != nil {
		fmt.Fprintf(w, "Originator:     %d certificates, %d CRLs\n", len(ed.OriginatorInfo.Certs), len(ed.OriginatorInfo.CRLs))
	}

	fmt.Fprintf(w, "Recipients:     %d\n", len(ed.RecipientInfos))
	for i, ri := range ed.RecipientInfos {
		fmt.Fprintf(w, "  [%d] %s version %d\n", i+1, ri.Type, ri.Version)
		key, ok, err := ri.OriginatorKey()
		switch {
		case err != nil:
			log.Warnf("recipient %d: %v", i+1, err)
		case ok:
			fmt.Fprintf(w, "      Originator key: %s (%d bits)\n", key.Algorithm.Algorithm, key.PublicKey.BitLen())
		}
	}

	eci := ed.EncryptedContentInfo
	fmt.Fprintf(w, "Content Type:   %s\n", eci.ContentType)
	fmt.Fprintf(w, "Encryption:     %s\n", eci.ContentEncryptionAlgorithm.Algorithm)
	if eci.EncryptedContent == nil {
		fmt.Fprintln(w, "Content:        detached")
	} else {
		fmt.Fprintf(w, "Content:        %d bytes\n", len(eci.EncryptedContent))
	}

	if len(ed.UnprotectedAttrs) > 0 {
		fmt.Fprintf(w, "Attributes:     %d\n", len(ed.UnprotectedAttrs))
		for _, attr := range ed.UnprotectedAttrs {
			fmt.Fprintf(w, "  %s (%d values)\n", attr.Type, len(attr.Values))
		}
	}
}

func showProfileInfo(source string, data []byte) error {
	profile, err := signing.ParseProvisioningProfile(data)
	if err != nil {
		return fmt.Errorf("failed to parse profile: %w", err)
	}

	fmt.Println("Provisioning Profile Information")
	fmt.Println("================================")
	fmt.Printf("File:           %s\n", source)
	fmt.Printf("Name:           %s\n", profile.Name)
	fmt.Printf("Team ID:        %s\n", profile.GetTeamID())
	fmt.Printf("App ID:         %s\n", profile.GetApplicationIdentifier())
	if id, err := profile.ProfileID(); err == nil {
		fmt.Printf("UUID:           %s\n", id)
	} else {
		log.Warnf("%s: %v", source, err)
		fmt.Printf("UUID:           %s\n", profile.UUID)
	}
	fmt.Printf("Created:        %s\n", profile.CreationDate.Format("2006-01-02 15:04:05"))
	fmt.Printf("Expiration:     %s\n", profile.ExpirationDate.Format("2006-01-02 15:04:05"))
	fmt.Printf("Expired:        %v\n", profile.ExpiredAt(time.Now()))
	if certs, err := profile.GetCertificates(); err == nil {
		fmt.Printf("Certificates:   %d\n", len(certs))
		for i, cert := range certs {
			fmt.Printf("  [%d] %s\n", i+1, cert.Subject.CommonName)
			fmt.Printf("      Serial: %s\n", cert.SerialNumber.String())
			fmt.Printf("      Expires: %s\n", cert.NotAfter.Format("2006-01-02"))
			if len(cert.Subject.OrganizationalUnit) > 0 {
				fmt.Printf("      Team ID: %s\n", cert.Subject.OrganizationalUnit[0])
			}
		}
	} else {
		log.Warnf("%s: %v", source, err)
	}

	if profile.ProvisionsAllDevices {
		fmt.Println("Devices:        all")
	} else if len(profile.ProvisionedDevices) > 0 {
		fmt.Printf("Devices:        %d\n", len(profile.ProvisionedDevices))
		fmt.Println()
		fmt.Println("Provisioned Devices:")
		for _, udid := range profile.ProvisionedDevices {
			fmt.Printf("  - %s\n", udid)
		}
	}

	if len(profile.Entitlements) > 0 {
		keys := make([]string, 0, len(profile.Entitlements))
		for k := range profile.Entitlements {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Println()
		fmt.Println("Entitlements:")
		for _, key := range keys {
			fmt.Printf("  %s: %v\n", key, profile.Entitlements[key])
		}
		if der, err := signing.EntitlementsToDER(profile.Entitlements); err == nil {
			fmt.Printf("DER Size:       %d bytes\n", len(der))
		} else {
			log.Warnf("%s: entitlements: %v", source, err)
		}
	}

	return nil
}

func showArchiveInfo(p12Path, password string) error {
	data, err := readInput(p12Path)
	if err != nil {
		return err
	}

	info, err := signing.InspectArchive(data)
	if err != nil {
		return fmt.Errorf("failed to inspect P12: %w", err)
	}

	fmt.Println("P12 Archive Information")
	fmt.Println("=======================")
	fmt.Printf("File:           %s\n", p12Path)
	fmt.Printf("Version:        %d\n", info.Version)
	fmt.Printf("Content Type:   %s\n", info.ContentType)
	fmt.Printf("Safe Contents:  %d\n", len(info.SafeContents))
	for i, ct := range info.SafeContents {
		fmt.Printf("  [%d] %s\n", i+1, ct)
	}
	if info.MAC != nil {
		fmt.Printf("MAC Algorithm:  %s\n", info.MAC.Algorithm)
		fmt.Printf("MAC Iterations: %d\n", info.MAC.Iterations)
	} else {
		fmt.Println("MAC:            none")
	}

	if password == "" {
		return nil
	}
	identity, err := signing.LoadArchive(data, password)
	if err != nil {
		return fmt.Errorf("failed to load P12: %w", err)
	}
	fmt.Println()
	fmt.Println("Signing Identity")
	fmt.Println("----------------")
	fmt.Printf("Certificate:    %s\n", identity.Certificate.Subject.CommonName)
	fmt.Printf("Team ID:        %s\n", identity.TeamID)
	fmt.Printf("Expires:        %s\n", identity.Certificate.NotAfter.Format("2006-01-02"))
	fmt.Printf("Chain Length:   %d\n", len(identity.CertChain))
	return nil
}
