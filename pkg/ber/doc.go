// Package ber decodes BER and encodes DER tag-length-value data.
//
// Decoding is lenient where BER is: indefinite lengths and constructed
// string segments are accepted. Encoding always produces DER definite
// lengths. Every decode runs against an explicit nesting limit so hostile
// input cannot exhaust the stack.
//
// # Basic Usage
//
//	v, err := ber.Decode(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fields, err := ber.DecodeSequence(v)
//
// Structure decoders walk the elements with a FieldReader, using
// FieldReader.Optional to detect context-tagged OPTIONAL fields and
// Value.WithTag to undo implicit tagging.
package ber
