// Package idgen generates collision-resistant object keys backed by nanoid.
package idgen

import (
	"fmt"
	"path"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// KeyPrefix is the storage folder that uploaded remarketing media lives under.
const KeyPrefix = "remarketing/"

// Alphabet defines the character set of the random part of a key. It is
// lowercase so keys stay stable on case-insensitive object stores.
var Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters in a key.
var Length = 21

// Generate returns a new random identifier.
func Generate() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id, nil
}

// ObjectKey returns a fresh key for a file named name, keeping its
// lowercased extension: remarketing/<id>.<ext>.
func ObjectKey(name string) (string, error) {
	id, err := Generate()
	if err != nil {
		return "", err
	}
	return KeyPrefix + id + strings.ToLower(path.Ext(name)), nil
}
