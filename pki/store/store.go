package store

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/twocca/twocca/logging"
	"github.com/twocca/twocca/pki/keygen"
)

var (
	// ErrIdentityExists is returned when an artifact under the requested
	// name is already present. Nothing is ever silently overwritten.
	ErrIdentityExists = errors.New("store: identity already exists")

	// ErrAuthorityNotFound is returned when the signing authority's
	// certificate cannot be found.
	ErrAuthorityNotFound = errors.New("store: signing authority not found")

	// ErrCAKeyNotFound is returned when an authority's certificate exists
	// but its private key cannot be loaded.
	ErrCAKeyNotFound = errors.New("store: authority private key not found")

	// ErrCertificateNotFound is returned when a named leaf certificate
	// cannot be found.
	ErrCertificateNotFound = errors.New("store: certificate not found")

	// ErrNoCRL is returned when an authority has no revocation list yet.
	ErrNoCRL = errors.New("store: no CRL exists for this authority")

	// ErrMalformedCRL is returned when an existing CRL cannot be parsed.
	ErrMalformedCRL = errors.New("store: malformed CRL")

	// ErrInvalidPEM is returned when stored PEM data cannot be decoded.
	ErrInvalidPEM = errors.New("store: invalid PEM data")

	// ErrInvalidName is returned for identity names unusable as artifact
	// file names.
	ErrInvalidName = errors.New("store: invalid identity name")
)

// Authority is a loaded (certificate, private key) pair able to sign
// certificates and revocation lists.
type Authority struct {
	Name        string
	Certificate *x509.Certificate
	Key         crypto.Signer
}

// Store persists identities and revocation lists as flat PEM artifacts,
// keyed by common name.
type Store struct {
	filesystem Filesystem
}

// New creates a store on top of the provided filesystem.
func New(filesystem Filesystem) *Store {
	return &Store{filesystem: filesystem}
}

// Filesystem exposes the underlying filesystem for artifacts that live
// next to the store without belonging to an identity (DH parameters).
func (s *Store) Filesystem() Filesystem {
	return s.filesystem
}

func certFile(name string) string { return name + ".crt" }
func keyFile(name string) string  { return name + ".key" }
func crlFile(name string) string  { return name + ".crl" }

// CheckName rejects names that cannot serve as artifact file names.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

func (s *Store) exists(name string) bool {
	_, err := s.filesystem.Stat(name)
	return err == nil
}

// Exists reports whether any artifact is already stored under name.
func (s *Store) Exists(name string) bool {
	return s.exists(certFile(name)) || s.exists(keyFile(name))
}

// SaveIdentity persists a freshly issued certificate and its private key.
// Both artifacts are written to temporary names first and renamed into
// place only after both writes succeeded, so a failure mid-way never
// leaves a half-written identity behind.
func (s *Store) SaveIdentity(name string, certDER []byte, key crypto.Signer) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if s.Exists(name) {
		return fmt.Errorf("%w: %q", ErrIdentityExists, name)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM, err := keygen.MarshalPrivateKeyPEM(key)
	if err != nil {
		return err
	}

	tmpCert := certFile(name) + ".tmp"
	tmpKey := keyFile(name) + ".tmp"

	if err := s.filesystem.WriteFile(tmpCert, certPEM); err != nil {
		return fmt.Errorf("store: writing %s: %w", tmpCert, err)
	}
	if err := s.filesystem.WriteFile(tmpKey, keyPEM); err != nil {
		return fmt.Errorf("store: writing %s: %w", tmpKey, err)
	}

	// Key first: an identity is complete once its certificate appears.
	if err := s.filesystem.Rename(tmpKey, keyFile(name)); err != nil {
		return fmt.Errorf("store: renaming %s: %w", tmpKey, err)
	}
	if err := s.filesystem.Rename(tmpCert, certFile(name)); err != nil {
		return fmt.Errorf("store: renaming %s: %w", tmpCert, err)
	}

	logging.Debugf("stored identity %q (%s, %s)", name, certFile(name), keyFile(name))
	return nil
}

func (s *Store) readFile(name string) ([]byte, error) {
	return fs.ReadFile(s.filesystem.FS(), name)
}

func parseCertificatePEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrInvalidPEM
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
	}
	return cert, nil
}

// LoadCertificate loads the certificate stored under name.
func (s *Store) LoadCertificate(name string) (*x509.Certificate, error) {
	data, err := s.readFile(certFile(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, certFile(name))
		}
		return nil, fmt.Errorf("store: reading %s: %w", certFile(name), err)
	}
	return parseCertificatePEM(data)
}

// LoadAuthority loads the certificate and private key of a signing
// authority. A missing certificate yields ErrAuthorityNotFound, a missing
// key ErrCAKeyNotFound.
func (s *Store) LoadAuthority(name string) (*Authority, error) {
	certData, err := s.readFile(certFile(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrAuthorityNotFound, name)
		}
		return nil, fmt.Errorf("store: reading %s: %w", certFile(name), err)
	}
	cert, err := parseCertificatePEM(certData)
	if err != nil {
		return nil, err
	}

	keyData, err := s.readFile(keyFile(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrCAKeyNotFound, name)
		}
		return nil, fmt.Errorf("store: reading %s: %w", keyFile(name), err)
	}
	key, err := keygen.ParsePrivateKeyPEM(keyData)
	if err != nil {
		return nil, err
	}

	return &Authority{Name: name, Certificate: cert, Key: key}, nil
}

// LoadCRL loads an authority's revocation list. ErrNoCRL is returned when
// none has been written yet.
func (s *Store) LoadCRL(name string) (*x509.RevocationList, error) {
	data, err := s.readFile(crlFile(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNoCRL, name)
		}
		return nil, fmt.Errorf("store: reading %s: %w", crlFile(name), err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "X509 CRL" {
		return nil, fmt.Errorf("%w: %s", ErrMalformedCRL, crlFile(name))
	}
	crl, err := x509.ParseRevocationList(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCRL, err)
	}
	return crl, nil
}

// SaveCRL replaces an authority's revocation list. The previous ledger is
// only touched once the new one has been fully written.
func (s *Store) SaveCRL(name string, crlDER []byte) error {
	if err := CheckName(name); err != nil {
		return err
	}

	crlPEM := pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: crlDER})

	tmp := crlFile(name) + ".tmp"
	if err := s.filesystem.WriteFile(tmp, crlPEM); err != nil {
		return fmt.Errorf("store: writing %s: %w", tmp, err)
	}
	if err := s.filesystem.Rename(tmp, crlFile(name)); err != nil {
		return fmt.Errorf("store: renaming %s: %w", tmp, err)
	}

	logging.Debugf("stored CRL for %q (%s)", name, crlFile(name))
	return nil
}
