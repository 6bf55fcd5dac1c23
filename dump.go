package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

// Output formats for TLV dumps
const (
	formatText = "text"
	formatYAML = "yaml"
	formatCBOR = "cbor"
)

// dumpNode is the serializable form of a decoded TLV. YAML shows content as
// hex and a readable rendering, CBOR carries the raw octets.
type dumpNode struct {
	Name        string     `yaml:"name" cbor:"1,keyasint"`
	Class       string     `yaml:"class" cbor:"2,keyasint"`
	Tag         int        `yaml:"tag" cbor:"3,keyasint"`
	Constructed bool       `yaml:"constructed,omitempty" cbor:"4,keyasint,omitempty"`
	Content     []byte     `yaml:"-" cbor:"5,keyasint,omitempty"`
	Hex         string     `yaml:"hex,omitempty" cbor:"-"`
	Value       string     `yaml:"value,omitempty" cbor:"-"`
	Children    []dumpNode `yaml:"children,omitempty" cbor:"6,keyasint,omitempty"`
}

func newDumpNode(v ber.Value) dumpNode {
	n := dumpNode{
		Name:        v.String(),
		Class:       v.Class.String(),
		Tag:         v.Tag,
		Constructed: v.Constructed,
	}
	if v.Constructed {
		for _, child := range v.Children {
			n.Children = append(n.Children, newDumpNode(child))
		}
		return n
	}
	n.Content = v.Bytes
	n.Hex = hex.EncodeToString(v.Bytes)
	n.Value = ber.Describe(v)
	return n
}

// cborEncMode uses Core Deterministic Encoding so the same tree always
// produces the same bytes
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cbor: encoder initialization failed: " + err.Error())
	}
}

// writeDump renders values to w in the given format. A single value is
// written as one node, several as a list.
func writeDump(w io.Writer, format string, values ...ber.Value) error {
	if format == formatText {
		for _, v := range values {
			ber.Fprint(w, v)
		}
		return nil
	}

	var doc interface{}
	if len(values) == 1 {
		doc = newDumpNode(values[0])
	} else {
		nodes := make([]dumpNode, 0, len(values))
		for _, v := range values {
			nodes = append(nodes, newDumpNode(v))
		}
		doc = nodes
	}

	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case formatCBOR:
		data, err := cborEncMode.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode CBOR: %w", err)
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}
