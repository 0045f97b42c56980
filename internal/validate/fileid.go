package validate

import (
	"time"

	"github.com/google/uuid"
)

var fileIDNamespace = uuid.MustParse("6f1c7b5e-3a0d-4c36-9b8e-2d4f0a9c7e51")

// GenerateFileID derives a stable ID from the content hash salted with the upload time,
// so identical bytes uploaded at different times get different IDs.
func GenerateFileID(sha256Hex string, salt time.Time) uuid.UUID {
	name := sha256Hex + "|" + salt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(fileIDNamespace, []byte(name))
}
