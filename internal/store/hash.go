package store

import (
	"crypto/sha1"
	"fmt"
)

// HashText computes the content hash stored with every message. Repeated
// ingestion of an unchanged message produces the same hash, which keeps
// re-ingestion idempotent.
func HashText(text string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(text)))
}
