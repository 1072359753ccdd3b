// Package pki implements the certificate and CRL issuance engine: it turns
// an immutable build request into a signed certificate plus private key, and
// maintains one revocation ledger per authority.
//
// Every operation is terminal on error; nothing is retried. Operations that
// mutate a signing authority's state serialize on a per-authority lock so
// that the read-then-write sequences (identity existence check, CRL number
// increment) stay race-free when the engine is embedded in a service.
package pki

import (
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"sync"

	"github.com/twocca/twocca/pki/keygen"
	"github.com/twocca/twocca/pki/profile"
)

var (
	// ErrInvalidAuthority is returned when a signing authority's private
	// key does not match its certificate.
	ErrInvalidAuthority = errors.New("pki: signing authority key and certificate do not match")

	// ErrKeyNotAllowed is returned when the requested key algorithm is not
	// permitted for the profile (EC keys are client-only).
	ErrKeyNotAllowed = errors.New("pki: key algorithm not permitted for this profile")

	// ErrSANNotPermitted is returned when a SAN list is supplied for a
	// profile that forbids one.
	ErrSANNotPermitted = errors.New("pki: subject alternative names not permitted for this profile")

	// ErrSANLimit is returned when the SAN list exceeds the fixed caps.
	// Over-length input is rejected, never truncated.
	ErrSANLimit = errors.New("pki: subject alternative name list exceeds limits")
)

// Reference policy limits for subject alternative names.
const (
	MaxSANEntries     = 8
	MaxSANEntryLength = 128
)

// DefaultValidityDays is the validity window applied when a request does
// not name one.
const DefaultValidityDays = 3650

// DN is a subject distinguished name. CommonName is mandatory and doubles
// as the on-disk artifact identifier. OrganizationalUnit is derived from
// the profile and Organization is inherited from the signing authority for
// non-root profiles; both are overwritten at build time no matter what the
// caller supplies.
type DN struct {
	Organization       string
	OrganizationalUnit string
	CommonName         string
	Country            string
	Locality           string
	Province           string
}

func (d DN) pkixName() pkix.Name {
	name := pkix.Name{CommonName: d.CommonName}
	if d.Organization != "" {
		name.Organization = []string{d.Organization}
	}
	if d.OrganizationalUnit != "" {
		name.OrganizationalUnit = []string{d.OrganizationalUnit}
	}
	if d.Country != "" {
		name.Country = []string{d.Country}
	}
	if d.Locality != "" {
		name.Locality = []string{d.Locality}
	}
	if d.Province != "" {
		name.Province = []string{d.Province}
	}
	return name
}

type SANKind int

const (
	SANDNS SANKind = iota + 1
	SANEmail
)

// SANEntry is one typed subject-alternative-name element.
type SANEntry struct {
	Kind  SANKind
	Value string
}

func (e SANEntry) String() string {
	switch e.Kind {
	case SANEmail:
		return "email:" + e.Value
	default:
		return "DNS:" + e.Value
	}
}

// Request carries all parameters of one issuance. It is constructed once
// and passed by value; the engine never mutates it.
type Request struct {
	Profile   profile.Profile
	DN        DN
	Days      int
	SigningCA string
	Key       keygen.Spec
	SAN       []SANEntry
}

// checkSAN enforces the fixed SAN caps.
func checkSAN(entries []SANEntry) error {
	if len(entries) > MaxSANEntries {
		return fmt.Errorf("%w: %d entries, at most %d allowed", ErrSANLimit, len(entries), MaxSANEntries)
	}
	for _, e := range entries {
		if len(e.Value) > MaxSANEntryLength {
			return fmt.Errorf("%w: entry %q longer than %d bytes", ErrSANLimit, e.Value, MaxSANEntryLength)
		}
		if e.Value == "" {
			return fmt.Errorf("%w: empty entry", ErrSANLimit)
		}
	}
	return nil
}

// Per-authority mutual exclusion. Issuance and revocation against the same
// authority are read-then-write sequences and must not interleave.
var authorityLocks = struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}{locks: make(map[string]*sync.Mutex)}

func lockAuthority(name string) func() {
	authorityLocks.mu.Lock()
	l, ok := authorityLocks.locks[name]
	if !ok {
		l = &sync.Mutex{}
		authorityLocks.locks[name] = l
	}
	authorityLocks.mu.Unlock()

	l.Lock()
	return l.Unlock
}
