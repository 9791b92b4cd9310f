// Package idgen generates store-assigned document keys and export ids.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ExportPrefix starts every export id.
const ExportPrefix = "exp-"

const (
	shortAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	shortLength   = 12
)

// ObjectID returns a new key for a document saved without one.
func ObjectID() bson.ObjectID {
	return bson.NewObjectID()
}

// Short returns prefix followed by a random lowercase alphanumeric suffix.
func Short(prefix string) (string, error) {
	id, err := nanoid.Generate(shortAlphabet, shortLength)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// ExportID identifies one export run.
func ExportID() (string, error) {
	return Short(ExportPrefix)
}
