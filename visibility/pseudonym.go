package visibility

import (
	"github.com/google/uuid"
)

const aliasPrefix = "Bidder-"

// Pseudonymizer maps identities to stable aliases within one room. The alias
// is a UUIDv5 of the identity under a random namespace that never leaves the
// process, so it cannot be reversed or correlated across rooms.
type Pseudonymizer struct {
	ns uuid.UUID
}

func NewPseudonymizer() *Pseudonymizer {
	return &Pseudonymizer{ns: uuid.New()}
}

// NewPseudonymizerWithNamespace is for tests that need fixed aliases.
func NewPseudonymizerWithNamespace(ns uuid.UUID) *Pseudonymizer {
	return &Pseudonymizer{ns: ns}
}

// Alias returns the pseudonym for identity; empty stays empty.
func (p *Pseudonymizer) Alias(identity string) string {
	if identity == "" {
		return ""
	}
	id := uuid.NewSHA1(p.ns, []byte(identity))
	return aliasPrefix + id.String()[:6]
}
