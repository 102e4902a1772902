package identity

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// DefaultNamespace is the namespace for built-in workflow identities.
const DefaultNamespace = "voxflow.workflow"

// FromSlug derives a stable UUID for a slug within a namespace.
// The digest input is "{namespace}:{slug}"; the first 16 bytes of the
// SHA-256 digest become the UUID with the version nibble forced to 4 and
// the variant bits set to RFC-4122 form. The same namespace and slug
// always yield the same UUID across processes and runs.
func FromSlug(namespace, slug string) uuid.UUID {
	sum := sha256.Sum256([]byte(namespace + ":" + slug))

	var id uuid.UUID
	copy(id[:], sum[:16])
	id[6] = (id[6] & 0x0f) | 0x40 // version 4
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id
}

// WorkflowID returns the deterministic ID for a built-in workflow slug.
func WorkflowID(slug string) string {
	return FromSlug(DefaultNamespace, slug).String()
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// ShortID returns the first 8 hex characters of an ID for log lines.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return fmt.Sprintf("%.8s", id)
}
