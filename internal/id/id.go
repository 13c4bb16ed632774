// Package id generates identifiers for stored records.
package id

import (
	"crypto/rand"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid/v2"
)

// backupAlphabet keeps backup ids lowercase and URL safe.
const backupAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// New returns a ULID string for categories and clips.
// ULIDs sort by creation time, so ids minted later compare greater.
func New() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Prefixed returns prefix + "_" + a 12 character random suffix, e.g. "backup_k3v9x0q2m1ab".
func Prefixed(prefix string) (string, error) {
	suffix, err := gonanoid.Generate(backupAlphabet, 12)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s id: %w", prefix, err)
	}
	return prefix + "_" + suffix, nil
}
