package store

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"io/fs"
	"math/big"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfSigned builds a throwaway CA keypair and certificate for store tests.
func selfSigned(t *testing.T, cn string) (*ecdsa.PrivateKey, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return key, der
}

func TestSaveAndLoadIdentity(t *testing.T) {
	s := New(NewMapFs(nil))
	key, der := selfSigned(t, "root")

	require.NoError(t, s.SaveIdentity("root", der, key))

	assert.True(t, s.Exists("root"))
	assert.False(t, s.Exists("other"))

	auth, err := s.LoadAuthority("root")
	require.NoError(t, err)
	assert.Equal(t, "root", auth.Certificate.Subject.CommonName)
	assert.True(t, auth.Key.(*ecdsa.PrivateKey).Equal(key))

	cert, err := s.LoadCertificate("root")
	require.NoError(t, err)
	assert.Equal(t, auth.Certificate.SerialNumber, cert.SerialNumber)
}

func TestSaveIdentityCollision(t *testing.T) {
	s := New(NewMapFs(nil))
	key, der := selfSigned(t, "root")

	require.NoError(t, s.SaveIdentity("root", der, key))
	err := s.SaveIdentity("root", der, key)
	assert.ErrorIs(t, err, ErrIdentityExists)
}

func TestSaveIdentityLeavesNoTempFiles(t *testing.T) {
	m := fstest.MapFS{".": &fstest.MapFile{Mode: 0777 | fs.ModeDir}}
	s := New(NewMapFs(m))
	key, der := selfSigned(t, "root")

	require.NoError(t, s.SaveIdentity("root", der, key))

	for name := range m {
		assert.NotContains(t, name, ".tmp")
	}
}

func TestSaveIdentityBadName(t *testing.T) {
	s := New(NewMapFs(nil))
	key, der := selfSigned(t, "root")

	assert.ErrorIs(t, s.SaveIdentity("", der, key), ErrInvalidName)
	assert.ErrorIs(t, s.SaveIdentity("a/b", der, key), ErrInvalidName)
}

func TestLoadAuthorityMissing(t *testing.T) {
	s := New(NewMapFs(nil))

	_, err := s.LoadAuthority("root")
	assert.ErrorIs(t, err, ErrAuthorityNotFound)
}

func TestLoadAuthorityMissingKey(t *testing.T) {
	m := fstest.MapFS{".": &fstest.MapFile{Mode: 0777 | fs.ModeDir}}
	s := New(NewMapFs(m))
	key, der := selfSigned(t, "root")

	require.NoError(t, s.SaveIdentity("root", der, key))
	delete(m, "root.key")

	_, err := s.LoadAuthority("root")
	assert.ErrorIs(t, err, ErrCAKeyNotFound)
}

func TestLoadCertificateMissing(t *testing.T) {
	s := New(NewMapFs(nil))

	_, err := s.LoadCertificate("nobody")
	assert.ErrorIs(t, err, ErrCertificateNotFound)
}

func TestCRLRoundTrip(t *testing.T) {
	s := New(NewMapFs(nil))
	key, der := selfSigned(t, "root")
	require.NoError(t, s.SaveIdentity("root", der, key))

	_, err := s.LoadCRL("root")
	assert.ErrorIs(t, err, ErrNoCRL)

	auth, err := s.LoadAuthority("root")
	require.NoError(t, err)

	now := time.Now()
	tmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: now,
		NextUpdate: now.AddDate(1, 0, 0),
	}
	crlDER, err := x509.CreateRevocationList(rand.Reader, tmpl, auth.Certificate, auth.Key)
	require.NoError(t, err)

	require.NoError(t, s.SaveCRL("root", crlDER))

	crl, err := s.LoadCRL("root")
	require.NoError(t, err)
	assert.Zero(t, crl.Number.Cmp(big.NewInt(1)))
}

func TestLoadCRLMalformed(t *testing.T) {
	m := fstest.MapFS{
		".":        &fstest.MapFile{Mode: 0777 | fs.ModeDir},
		"root.crl": &fstest.MapFile{Data: []byte("not a crl"), Mode: 0644},
	}
	s := New(NewMapFs(m))

	_, err := s.LoadCRL("root")
	assert.ErrorIs(t, err, ErrMalformedCRL)
}
