package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/termkernel/internal/term"
)

// Hash domains. The version suffix allows the encoding to change without
// colliding with old hashes.
const (
	DomainTheory = "termkernel/theory/v1"
	DomainReport = "termkernel/report/v1"
	DomainTerm   = "termkernel/term/v1"
)

// hashWithDomain returns hex(SHA256(domain || 0x00 || data)).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the domain-separated hash of v's canonical encoding.
func Hash(domain string, v Value) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// TheoryHash identifies a compiled theory by its canonical source document.
func TheoryHash(theory Value) (string, error) {
	return Hash(DomainTheory, theory)
}

// ReportHash identifies a run report.
func ReportHash(report Value) (string, error) {
	return Hash(DomainReport, report)
}

// TermHash identifies the weak handle e by its rendering under names. Terms
// that render identically hash identically, whichever store they live in.
func TermHash(s *term.Store, e term.Expr, names term.Namer) string {
	h, err := Hash(DomainTerm, FromTerm(s, e, names))
	if err != nil {
		// FromTerm only builds strings, arrays and objects.
		panic(err)
	}
	return h
}
