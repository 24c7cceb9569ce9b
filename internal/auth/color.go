// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package auth

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/oops"
)

var colorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidColor reports whether c has the form #RRGGBB.
func ValidColor(c string) bool {
	return colorRegex.MatchString(c)
}

// NormalizeColor upper-cases a valid #RRGGBB color.
func NormalizeColor(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

// RandomColor returns a random display color such as "#3FA2C1".
func RandomColor() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("COLOR_GENERATE_FAILED").With("operation", "crypto/rand.Read").Wrap(err)
	}
	return fmt.Sprintf("#%02X%02X%02X", b[0], b[1], b[2]), nil
}
