// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// stdinReader is shared by all prompts so buffered input is not lost between
// them.
var stdinReader = bufio.NewReader(os.Stdin)

// promptSecret prints prompt to stderr and reads a line from stdin. Input is
// hidden when stdin is a terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := stdinReader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading input: %w", err)
		}

		return strings.TrimSpace(line), nil
	}

	secret, err := term.ReadPassword(fd)

	// Add newline after hidden input.
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(string(secret)), nil
}
