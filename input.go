package main

import (
	"bytes"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Input encodings accepted for DER/BER files
const (
	inputRaw    = "raw"
	inputPEM    = "pem"
	inputBase64 = "base64"
)

// readInput reads path and strips any PEM or base64 armour
func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	der, form, err := decodeInput(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("read %s: %d bytes (%s)", path, len(der), form)
	return der, nil
}

// decodeInput returns the binary content of data and the encoding it was
// found in. PEM is recognised by its BEGIN line; text made only of base64
// characters is decoded as base64; everything else is taken as raw DER/BER.
func decodeInput(data []byte) ([]byte, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, "", fmt.Errorf("empty input")
	}

	if bytes.HasPrefix(trimmed, []byte("-----BEGIN ")) {
		block, _ := pem.Decode(trimmed)
		if block == nil {
			return nil, "", fmt.Errorf("malformed PEM input")
		}
		return block.Bytes, inputPEM, nil
	}

	if isBase64Text(trimmed) {
		compact := bytes.Join(bytes.Fields(trimmed), nil)
		out := make([]byte, base64.StdEncoding.DecodedLen(len(compact)))
		n, err := base64.StdEncoding.Decode(out, compact)
		if err != nil {
			return nil, "", fmt.Errorf("malformed base64 input: %w", err)
		}
		return out[:n], inputBase64, nil
	}

	return data, inputRaw, nil
}

func isBase64Text(b []byte) bool {
	for _, c := range b {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+', c == '/', c == '=':
		case c == ' ', c == '\t', c == '\r', c == '\n':
		default:
			return false
		}
	}
	return true
}
