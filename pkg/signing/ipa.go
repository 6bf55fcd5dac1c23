package signing

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
)

const embeddedProfilePattern = "Payload/*.app/embedded.mobileprovision"

// ReadEmbeddedProfile returns the raw embedded.mobileprovision of the app
// bundle inside an IPA without extracting the archive
func ReadEmbeddedProfile(ipaPath string) ([]byte, error) {
	r, err := zip.OpenReader(ipaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open IPA: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if ok, _ := path.Match(embeddedProfilePattern, f.Name); !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, ErrNoProfile
}
