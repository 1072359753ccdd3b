package pki

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/twocca/twocca/logging"
	"github.com/twocca/twocca/pki/keygen"
	"github.com/twocca/twocca/pki/profile"
	"github.com/twocca/twocca/pki/store"
)

// Identity is a freshly issued (certificate, private key) pair. The key is
// exclusively owned by the builder until persisted; afterwards the store
// owns it under the certificate's common name.
type Identity struct {
	Certificate *x509.Certificate
	Key         crypto.Signer
}

// Issue builds, signs and persists a certificate according to req.
//
// The steps, in order: resolve the profile template, validate key and SAN
// constraints, reject an already-existing common name before any key
// generation, load and verify the signing authority (non-root profiles),
// generate the keypair, allocate a serial, assemble the subject with the
// derived organizational unit and inherited organization, and sign with
// either the subject's own key (root) or the authority's key.
//
// The identity only reaches disk once both artifacts are complete; a
// failure anywhere leaves no partial state behind.
func Issue(ctx context.Context, st *store.Store, req Request, events chan<- keygen.Event) (*Identity, error) {
	tmpl, err := profile.Resolve(req.Profile)
	if err != nil {
		return nil, err
	}

	if err := store.CheckName(req.DN.CommonName); err != nil {
		return nil, err
	}
	if req.Key.Algorithm == keygen.AlgorithmEC && !tmpl.ECAllowed {
		return nil, fmt.Errorf("%w: %v with %v", ErrKeyNotAllowed, req.Profile, req.Key)
	}
	if len(req.SAN) > 0 && !tmpl.SANAllowed {
		return nil, fmt.Errorf("%w: %v", ErrSANNotPermitted, req.Profile)
	}
	if err := checkSAN(req.SAN); err != nil {
		return nil, err
	}

	// The existence check and the final write are a read-then-write pair
	// keyed on the identity's own name, so that name is locked alongside
	// the signing authority; otherwise two issuances of the same name
	// under different authorities could both pass the check. Lexical lock
	// order keeps concurrent issuances deadlock-free.
	lockNames := []string{req.DN.CommonName}
	if !tmpl.SelfSigned && req.SigningCA != req.DN.CommonName {
		lockNames = append(lockNames, req.SigningCA)
		sort.Strings(lockNames)
	}
	for _, name := range lockNames {
		unlock := lockAuthority(name)
		defer unlock()
	}

	// Mandatory collision guard, before the expensive key generation.
	if st.Exists(req.DN.CommonName) {
		return nil, fmt.Errorf("%w: %q", store.ErrIdentityExists, req.DN.CommonName)
	}

	var signer *store.Authority
	if !tmpl.SelfSigned {
		signer, err = st.LoadAuthority(req.SigningCA)
		if err != nil {
			return nil, err
		}
		if err := checkAuthority(signer); err != nil {
			return nil, err
		}
	}

	key, err := keygen.Generate(ctx, req.Key, events)
	if err != nil {
		return nil, err
	}

	serial, err := NewSerial()
	if err != nil {
		return nil, err
	}

	subject := req.DN
	subject.OrganizationalUnit = tmpl.OU
	if signer != nil && len(signer.Certificate.Subject.Organization) > 0 {
		// Organization is always the signing authority's, never the
		// caller's.
		subject.Organization = signer.Certificate.Subject.Organization[0]
	}

	days := req.Days
	if days <= 0 {
		days = DefaultValidityDays
	}
	notBefore := time.Now().UTC()
	notAfter := notBefore.Add(time.Duration(days) * 24 * time.Hour)

	ski, err := subjectKeyID(key.Public())
	if err != nil {
		return nil, err
	}

	certTmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject.pkixName(),
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              tmpl.KeyUsage,
		ExtKeyUsage:           tmpl.ExtKeyUsage,
		BasicConstraintsValid: true,
		IsCA:                  tmpl.IsCA,
		SubjectKeyId:          ski,
	}
	for _, san := range req.SAN {
		switch san.Kind {
		case SANEmail:
			certTmpl.EmailAddresses = append(certTmpl.EmailAddresses, san.Value)
		default:
			certTmpl.DNSNames = append(certTmpl.DNSNames, san.Value)
		}
	}

	parent := certTmpl
	signingKey := key
	if signer != nil {
		parent = signer.Certificate
		signingKey = signer.Key
	}

	der, err := x509.CreateCertificate(rand.Reader, certTmpl, parent, key.Public(), signingKey)
	if err != nil {
		return nil, fmt.Errorf("pki: signing certificate: %w", err)
	}

	if err := st.SaveIdentity(req.DN.CommonName, der, key); err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("pki: re-parsing issued certificate: %w", err)
	}

	logging.Infof("issued %v certificate %q (serial %x)", req.Profile, req.DN.CommonName, serial.Bytes())
	return &Identity{Certificate: cert, Key: key}, nil
}

type publicKeyEqualer interface {
	Equal(crypto.PublicKey) bool
}

// checkAuthority verifies that the authority's stored private key actually
// belongs to its certificate.
func checkAuthority(auth *store.Authority) error {
	pub, ok := auth.Certificate.PublicKey.(publicKeyEqualer)
	if !ok || !pub.Equal(auth.Key.Public()) {
		return fmt.Errorf("%w: %q", ErrInvalidAuthority, auth.Name)
	}
	return nil
}

// subjectKeyID derives the subject key identifier as the SHA-1 hash of the
// subject public key bit string (RFC 5280 method 1).
func subjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("pki: marshaling public key: %w", err)
	}

	var info struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(spki, &info); err != nil {
		return nil, fmt.Errorf("pki: unmarshaling public key info: %w", err)
	}
	if info.PublicKey.BitLength == 0 {
		return nil, errors.New("pki: empty public key bit string")
	}

	sum := sha1.Sum(info.PublicKey.Bytes)
	return sum[:], nil
}
