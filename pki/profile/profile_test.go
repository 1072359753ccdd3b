package profile

import (
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTemplates(t *testing.T) {
	tests := []struct {
		profile    Profile
		ou         string
		isCA       bool
		keyUsage   x509.KeyUsage
		extKu      []x509.ExtKeyUsage
		selfSigned bool
		sanAllowed bool
		ecAllowed  bool
	}{
		{RootCA, "Root", true, x509.KeyUsageCertSign | x509.KeyUsageCRLSign, nil, true, false, false},
		{SubCA, "Sub", true, x509.KeyUsageCertSign | x509.KeyUsageCRLSign, nil, false, false, false},
		{Server, "Server", false, x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
			[]x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, false, true, false},
		{Client, "Client", false, x509.KeyUsageDigitalSignature,
			[]x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}, false, true, true},
		{WebServer, "Server", false, x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
			[]x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}, false, true, false},
	}

	for _, test := range tests {
		t.Run(test.profile.String(), func(t *testing.T) {
			tmpl, err := Resolve(test.profile)
			require.NoError(t, err)

			assert.Equal(t, test.ou, tmpl.OU)
			assert.Equal(t, test.isCA, tmpl.IsCA)
			assert.Equal(t, test.keyUsage, tmpl.KeyUsage)
			assert.Equal(t, test.extKu, tmpl.ExtKeyUsage)
			assert.Equal(t, test.selfSigned, tmpl.SelfSigned)
			assert.Equal(t, test.sanAllowed, tmpl.SANAllowed)
			assert.Equal(t, test.ecAllowed, tmpl.ECAllowed)
		})
	}
}

func TestResolveUnknownProfile(t *testing.T) {
	_, err := Resolve(Profile(42))
	assert.ErrorIs(t, err, ErrUnknownProfile)

	_, err = Resolve(0)
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestFromVerb(t *testing.T) {
	for p, verb := range map[Profile]string{
		RootCA:    "root",
		SubCA:     "sub",
		Server:    "server",
		Client:    "client",
		WebServer: "www",
	} {
		got, err := FromVerb(verb)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := FromVerb("ocsp")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}
