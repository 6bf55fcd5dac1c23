package signing

import (
	"fmt"
	"math/big"
	"sort"

	"howett.net/plist"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

// tags of Apple's plist-to-DER entitlements encoding
const (
	entitlementsTag    = 16 // APPLICATION 16
	entitlementsDict   = 16 // [16]
	entitlementsFormat = 1
)

// ExtractEntitlements extracts entitlements from a provisioning profile as XML plist bytes
func ExtractEntitlements(profile *ProvisioningProfile) ([]byte, error) {
	if profile.Entitlements == nil {
		return nil, fmt.Errorf("provisioning profile has no entitlements")
	}
	return EntitlementsToXML(profile.Entitlements)
}

// EntitlementsToXML converts entitlements map to XML plist bytes
func EntitlementsToXML(entitlements map[string]interface{}) ([]byte, error) {
	data, err := plist.MarshalIndent(entitlements, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entitlements to XML: %w", err)
	}
	return data, nil
}

// ParseEntitlementsXML parses XML plist entitlements into a map
func ParseEntitlementsXML(data []byte) (map[string]interface{}, error) {
	var entitlements map[string]interface{}
	_, err := plist.Unmarshal(data, &entitlements)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entitlements XML: %w", err)
	}
	return entitlements, nil
}

// EntitlementsToDER converts entitlements map to DER-encoded ASN.1 format
// This is required for iOS code signing alongside the XML plist format
// The format follows Apple's specific plist-to-DER encoding:
// - Top-level: APPLICATION 16 { INTEGER 1, WrappedValue }
// - Dictionary: [16] { SEQUENCE { UTF8String key, WrappedValue }... }
// - Array: SEQUENCE { WrappedValue... }
// - Boolean: BOOLEAN
// - Integer: INTEGER
// - String: UTF8String
func EntitlementsToDER(entitlements map[string]interface{}) ([]byte, error) {
	dict, err := entitlementsDictValue(entitlements)
	if err != nil {
		return nil, err
	}
	root := ber.NewConstructed(ber.ClassApplication, entitlementsTag,
		ber.Integer(entitlementsFormat),
		dict,
	)
	return ber.Encode(root)
}

// entitlementsDictValue encodes a dictionary with its keys sorted.
// The key-value pair SEQUENCEs go directly inside the context tag,
// without an outer SEQUENCE wrapper.
func entitlementsDictValue(dict map[string]interface{}) (ber.Value, error) {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]ber.Value, 0, len(keys))
	for _, key := range keys {
		value, err := entitlementValue(dict[key])
		if err != nil {
			return ber.Value{}, fmt.Errorf("failed to marshal value for key %s: %w", key, err)
		}
		pairs = append(pairs, ber.Sequence(ber.UTF8String(key), value))
	}
	return ber.NewConstructed(ber.ClassContextSpecific, entitlementsDict, pairs...), nil
}

func entitlementValue(v interface{}) (ber.Value, error) {
	switch val := v.(type) {
	case bool:
		return ber.Boolean(val), nil
	case string:
		return ber.UTF8String(val), nil
	case int:
		return ber.Integer(int64(val)), nil
	case int64:
		return ber.Integer(val), nil
	case uint64:
		return ber.BigInteger(new(big.Int).SetUint64(val)), nil
	case []interface{}:
		items := make([]ber.Value, 0, len(val))
		for _, item := range val {
			iv, err := entitlementValue(item)
			if err != nil {
				return ber.Value{}, err
			}
			items = append(items, iv)
		}
		return ber.Sequence(items...), nil
	case map[string]interface{}:
		return entitlementsDictValue(val)
	default:
		return ber.Value{}, fmt.Errorf("%w: plist type %T", ErrUnsupportedEntitlements, v)
	}
}

// ParseEntitlementsDER decodes the DER entitlements blob back into the map
// shape plist.Unmarshal produces: non-negative integers become uint64 and
// negative ones int64.
func ParseEntitlementsDER(data []byte) (map[string]interface{}, error) {
	root, err := ber.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode entitlements: %w", err)
	}
	if !root.Is(ber.ClassApplication, entitlementsTag) || !root.Constructed {
		return nil, fmt.Errorf("%w: top-level %s", ErrUnsupportedEntitlements, root)
	}
	r := ber.NewFieldReader("Entitlements", root.Children)
	f, err := r.Next("version")
	if err != nil {
		return nil, err
	}
	version, err := f.Int()
	if err != nil {
		return nil, fmt.Errorf("entitlements version: %w", err)
	}
	if version != entitlementsFormat {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedEntitlements, version)
	}
	if f, err = r.Next("dictionary"); err != nil {
		return nil, err
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	v, err := parseEntitlementValue(f)
	if err != nil {
		return nil, err
	}
	dict, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is %T", ErrUnsupportedEntitlements, v)
	}
	return dict, nil
}

func parseEntitlementValue(v ber.Value) (interface{}, error) {
	switch {
	case v.Is(ber.ClassUniversal, ber.TagBoolean):
		return v.Bool()
	case v.Is(ber.ClassUniversal, ber.TagUTF8String):
		return v.UTF8()
	case v.Is(ber.ClassUniversal, ber.TagInteger):
		n, err := v.BigInt()
		if err != nil {
			return nil, err
		}
		if n.IsUint64() {
			return n.Uint64(), nil
		}
		if n.IsInt64() {
			return n.Int64(), nil
		}
		return nil, fmt.Errorf("%w: integer %s out of range", ErrUnsupportedEntitlements, n)
	case v.Is(ber.ClassUniversal, ber.TagSequence):
		items, err := ber.DecodeSequence(v)
		if err != nil {
			return nil, err
		}
		arr := make([]interface{}, 0, len(items))
		for _, item := range items {
			iv, err := parseEntitlementValue(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, iv)
		}
		return arr, nil
	case v.IsContext(entitlementsDict) && v.Constructed:
		dict := make(map[string]interface{}, len(v.Children))
		for _, pair := range v.Children {
			fields, err := ber.DecodeSequence(pair)
			if err != nil {
				return nil, fmt.Errorf("dictionary entry: %w", err)
			}
			r := ber.NewFieldReader("DictionaryEntry", fields)
			k, err := r.Next("key")
			if err != nil {
				return nil, err
			}
			key, err := k.UTF8()
			if err != nil {
				return nil, fmt.Errorf("dictionary key: %w", err)
			}
			val, err := r.Next("value")
			if err != nil {
				return nil, err
			}
			if err := r.Finish(); err != nil {
				return nil, err
			}
			if dict[key], err = parseEntitlementValue(val); err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}
		}
		return dict, nil
	}
	return nil, fmt.Errorf("%w: value %s", ErrUnsupportedEntitlements, v)
}
