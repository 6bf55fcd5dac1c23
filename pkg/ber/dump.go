package ber

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// maxDumpOctets caps how many content octets Fprint shows per value
const maxDumpOctets = 32

// Fprint writes an indented, human-readable rendering of v to w
func Fprint(w io.Writer, v Value) {
	fprintValue(w, v, 0)
}

func fprintValue(w io.Writer, v Value, indent int) {
	prefix := strings.Repeat("  ", indent)
	if v.Constructed {
		fmt.Fprintf(w, "%s%s (%d elements)\n", prefix, tagName(v.Class, v.Tag), len(v.Children))
		for _, child := range v.Children {
			fprintValue(w, child, indent+1)
		}
		return
	}
	fmt.Fprintf(w, "%s%s %s\n", prefix, tagName(v.Class, v.Tag), Describe(v))
}

// Describe renders the content of a primitive value: numbers and OIDs in
// decimal, strings quoted, anything else as (truncated) hex
func Describe(v Value) string {
	if v.Constructed {
		return fmt.Sprintf("(%d elements)", len(v.Children))
	}
	if v.Class == ClassUniversal {
		switch v.Tag {
		case TagInteger:
			if n, err := ParseInteger(v.Bytes); err == nil {
				return n.String()
			}
		case TagBoolean:
			if b, err := v.Bool(); err == nil {
				return fmt.Sprintf("%v", b)
			}
		case TagNull:
			return ""
		case TagOID:
			if oid, err := ParseObjectIdentifier(v.Bytes); err == nil {
				return oid.String()
			}
		case TagUTF8String, TagPrintableString, TagIA5String, TagUTCTime, TagGeneralizedTime:
			return fmt.Sprintf("%q", v.Bytes)
		case TagBitString:
			if b, err := ParseBitString(v.Bytes); err == nil {
				return fmt.Sprintf("(%d bits) %s", b.BitLen(), hexPreview(b.Bytes))
			}
		}
	}
	return fmt.Sprintf("(%d bytes) %s", len(v.Bytes), hexPreview(v.Bytes))
}

func hexPreview(b []byte) string {
	if len(b) > maxDumpOctets {
		return hex.EncodeToString(b[:maxDumpOctets]) + "..."
	}
	return hex.EncodeToString(b)
}
