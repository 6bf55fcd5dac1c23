package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// archivePassword returns the configured P12 password. Without one it prompts
// on the terminal with echo disabled; when stdin is not a terminal the empty
// password is used, which go-pkcs12 accepts for unprotected archives.
func archivePassword(cfg Config) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "P12 password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
