package pki

import (
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/twocca/twocca/logging"
	"github.com/twocca/twocca/pki/store"
)

// crlValidity is the nextUpdate window stamped on every regenerated CRL.
const crlValidity = 365 * 24 * time.Hour

// Revoke adds the certificate stored under name to the revocation list of
// the given authority and re-signs the whole list. The CRL number is bumped
// by one on every call; a first revocation starts the ledger at 1. Entries
// are kept sorted by serial number.
//
// Revoking the same certificate twice produces two entries; deduplication
// is left to the consumer of the list.
func Revoke(st *store.Store, caName, name string) (*x509.RevocationList, error) {
	if err := store.CheckName(name); err != nil {
		return nil, err
	}

	unlock := lockAuthority(caName)
	defer unlock()

	target, err := st.LoadCertificate(name)
	if err != nil {
		return nil, err
	}

	auth, err := st.LoadAuthority(caName)
	if err != nil {
		return nil, err
	}
	if err := checkAuthority(auth); err != nil {
		return nil, err
	}

	number := big.NewInt(1)
	var entries []x509.RevocationListEntry

	prev, err := st.LoadCRL(caName)
	switch {
	case err == nil:
		number = new(big.Int).Add(prev.Number, big.NewInt(1))
		entries = prev.RevokedCertificateEntries
	case errors.Is(err, store.ErrNoCRL):
		// First revocation for this authority.
	default:
		return nil, err
	}

	now := time.Now().UTC()
	entries = append(entries, x509.RevocationListEntry{
		SerialNumber:   target.SerialNumber,
		RevocationTime: now,
		ReasonCode:     0,
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SerialNumber.Cmp(entries[j].SerialNumber) < 0
	})

	tmpl := &x509.RevocationList{
		Number:                    number,
		ThisUpdate:                now,
		NextUpdate:                now.Add(crlValidity),
		RevokedCertificateEntries: entries,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, auth.Certificate, auth.Key)
	if err != nil {
		return nil, fmt.Errorf("pki: signing CRL: %w", err)
	}

	// Sign first, persist second: the previous ledger survives a signing
	// failure untouched.
	if err := st.SaveCRL(caName, der); err != nil {
		return nil, err
	}

	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		return nil, fmt.Errorf("pki: re-parsing CRL: %w", err)
	}

	logging.Infof("revoked %q under %q (CRL number %v, %d entries)", name, caName, number, len(entries))
	return crl, nil
}

// ListCRL loads an authority's current revocation list without modifying
// it. ErrNoCRL is returned when the authority never revoked anything.
func ListCRL(st *store.Store, caName string) (*x509.RevocationList, error) {
	return st.LoadCRL(caName)
}
