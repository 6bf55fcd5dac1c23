package signing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blacktop/go-macho"
)

// Code signature constants from Apple's cs_blobs.h and loader.h
const (
	CSMAGIC_EMBEDDED_SIGNATURE = 0xfade0cc0
	CSMAGIC_BLOBWRAPPER        = 0xfade0b01
	CSSLOT_CMS_SIGNATURE       = 0x10000

	LC_CODE_SIGNATURE = 0x1d

	fatMagic = 0xcafebabe
)

// ArchSignature is the CMS signature embedded in one Mach-O slice
type ArchSignature struct {
	Arch string
	CMS  []byte
}

// ExtractCMSSignatures returns the CMS SignedData blob of every signed slice
// in a thin or fat Mach-O binary
func ExtractCMSSignatures(data []byte) ([]ArchSignature, error) {
	if len(data) >= 4 && binary.BigEndian.Uint32(data[:4]) == fatMagic {
		return extractFat(data)
	}
	sig, err := extractThin(data)
	if err != nil {
		return nil, err
	}
	return []ArchSignature{sig}, nil
}

func extractFat(data []byte) ([]ArchSignature, error) {
	fat, err := macho.NewFatFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse fat binary: %w", err)
	}
	defer fat.Close()

	var sigs []ArchSignature
	for i, arch := range fat.Arches {
		end := uint64(arch.Offset) + uint64(arch.Size)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("arch %d extends beyond file", i)
		}
		archData := data[arch.Offset:end]

		cms, err := cmsFromSlice(archData)
		if errors.Is(err, ErrNoSignature) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("arch %d: %w", i, err)
		}
		sigs = append(sigs, ArchSignature{Arch: arch.CPU.String(), CMS: cms})
	}
	if len(sigs) == 0 {
		return nil, ErrNoSignature
	}
	return sigs, nil
}

func extractThin(data []byte) (ArchSignature, error) {
	cms, err := cmsFromSlice(data)
	if err != nil {
		return ArchSignature{}, err
	}

	// Zero out the signature before parsing - go-macho chokes on some signature formats
	sigOffset, sigSize, _ := findCodeSignatureOffset(data)
	dataForParsing := make([]byte, len(data))
	copy(dataForParsing, data)
	clear(dataForParsing[sigOffset : sigOffset+sigSize])

	m, err := macho.NewFile(bytes.NewReader(dataForParsing))
	if err != nil {
		return ArchSignature{}, fmt.Errorf("failed to parse Mach-O: %w", err)
	}
	defer m.Close()

	return ArchSignature{Arch: m.CPU.String(), CMS: cms}, nil
}

// cmsFromSlice locates LC_CODE_SIGNATURE in a thin slice and returns the
// CMS blob from its SuperBlob
func cmsFromSlice(data []byte) ([]byte, error) {
	sigOffset, sigSize, found := findCodeSignatureOffset(data)
	if !found {
		return nil, ErrNoSignature
	}
	if uint64(sigOffset)+uint64(sigSize) > uint64(len(data)) {
		return nil, fmt.Errorf("code signature extends beyond file")
	}
	return findCMSBlob(data[sigOffset : sigOffset+sigSize])
}

// findCodeSignatureOffset finds the LC_CODE_SIGNATURE offset and size without full parsing
func findCodeSignatureOffset(data []byte) (offset, size uint32, found bool) {
	if len(data) < 32 {
		return 0, 0, false
	}

	var headerSize uint32
	switch binary.LittleEndian.Uint32(data[:4]) {
	case 0xfeedfacf: // MH_MAGIC_64
		headerSize = 32
	case 0xfeedface: // MH_MAGIC
		headerSize = 28
	default:
		return 0, 0, false
	}

	ncmds := binary.LittleEndian.Uint32(data[16:20])
	sizeofcmds := binary.LittleEndian.Uint32(data[20:24])
	if uint64(len(data)) < uint64(headerSize)+uint64(sizeofcmds) {
		return 0, 0, false
	}

	cmdOffset := headerSize
	end := headerSize + sizeofcmds
	for i := uint32(0); i < ncmds; i++ {
		if uint64(cmdOffset)+8 > uint64(end) {
			break
		}
		cmd := binary.LittleEndian.Uint32(data[cmdOffset:])
		cmdSize := binary.LittleEndian.Uint32(data[cmdOffset+4:])

		if cmd == LC_CODE_SIGNATURE && cmdSize >= 16 && uint64(cmdOffset)+16 <= uint64(end) {
			sigOffset := binary.LittleEndian.Uint32(data[cmdOffset+8:])
			sigSize := binary.LittleEndian.Uint32(data[cmdOffset+12:])
			return sigOffset, sigSize, true
		}
		if cmdSize < 8 {
			break
		}
		cmdOffset += cmdSize
	}

	return 0, 0, false
}

// findCMSBlob walks the embedded signature SuperBlob:
//
//	magic, length, count  uint32 (big-endian)
//	index[count]          {type, offset uint32}
//
// and returns the payload of the CMS blob wrapper
func findCMSBlob(sigData []byte) ([]byte, error) {
	if len(sigData) < 12 {
		return nil, fmt.Errorf("code signature too short: %d bytes", len(sigData))
	}
	if magic := binary.BigEndian.Uint32(sigData[0:4]); magic != CSMAGIC_EMBEDDED_SIGNATURE {
		return nil, fmt.Errorf("invalid SuperBlob magic 0x%08x", magic)
	}
	blobCount := binary.BigEndian.Uint32(sigData[8:12])
	if uint64(12)+uint64(blobCount)*8 > uint64(len(sigData)) {
		return nil, fmt.Errorf("SuperBlob index of %d entries extends beyond signature", blobCount)
	}

	for i := uint32(0); i < blobCount; i++ {
		entryOffset := 12 + i*8
		blobType := binary.BigEndian.Uint32(sigData[entryOffset:])
		blobOffset := binary.BigEndian.Uint32(sigData[entryOffset+4:])
		if blobType != CSSLOT_CMS_SIGNATURE {
			continue
		}

		if uint64(blobOffset)+8 > uint64(len(sigData)) {
			return nil, fmt.Errorf("CMS blob offset %d beyond signature", blobOffset)
		}
		blobMagic := binary.BigEndian.Uint32(sigData[blobOffset:])
		blobSize := binary.BigEndian.Uint32(sigData[blobOffset+4:])
		if blobMagic != CSMAGIC_BLOBWRAPPER {
			return nil, fmt.Errorf("invalid CMS blob magic 0x%08x", blobMagic)
		}
		if blobSize < 8 || uint64(blobOffset)+uint64(blobSize) > uint64(len(sigData)) {
			return nil, fmt.Errorf("CMS blob length %d out of range", blobSize)
		}
		if blobSize == 8 {
			// ad-hoc signatures carry an empty wrapper
			return nil, ErrNoSignature
		}
		return append([]byte(nil), sigData[blobOffset+8:blobOffset+blobSize]...), nil
	}
	return nil, ErrNoSignature
}
