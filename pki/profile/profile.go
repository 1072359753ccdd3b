// Package profile maps a requested identity kind to its fixed issuance
// policy. All extension decisions are data-driven: each profile owns one
// declarative template and the certificate builder applies it verbatim,
// so no profile can ever pick up extensions outside its template.
package profile

import (
	"crypto/x509"
	"errors"
	"fmt"
)

// ErrUnknownProfile is returned for any value outside the five known
// profiles. This is a fatal request error and is never defaulted away.
var ErrUnknownProfile = errors.New("profile: unknown profile")

type Profile int

const (
	RootCA Profile = iota + 1
	SubCA
	Server
	Client
	WebServer
)

var profileNames = map[Profile]string{
	RootCA:    "root",
	SubCA:     "sub",
	Server:    "server",
	Client:    "client",
	WebServer: "www",
}

func (p Profile) String() string {
	name, ok := profileNames[p]
	if !ok {
		return fmt.Sprintf("profile(%d)", int(p))
	}
	return name
}

// FromVerb resolves a command verb to its profile.
func FromVerb(verb string) (Profile, error) {
	for p, name := range profileNames {
		if name == verb {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProfile, verb)
}

// Template is the complete issuance policy for one profile: the derived
// organizational unit, the exact extension set and the signing mode.
type Template struct {
	// OU overwrites the subject's organizational unit. Never user-settable.
	OU string

	// IsCA selects the basic constraints content. CA templates are
	// marked critical, leaf templates are not, matching RFC 5280 usage.
	IsCA bool

	KeyUsage    x509.KeyUsage
	ExtKeyUsage []x509.ExtKeyUsage

	// SelfSigned selects the issuance branch: the subject's own key signs
	// (root) or a signing authority's key signs (everything else).
	SelfSigned bool

	// SANAllowed permits a subject alternative name list. CA profiles
	// reject SAN input outright.
	SANAllowed bool

	// ECAllowed permits an elliptic-curve keypair instead of RSA.
	ECAllowed bool
}

var templates = map[Profile]Template{
	RootCA: {
		OU:         "Root",
		IsCA:       true,
		KeyUsage:   x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		SelfSigned: true,
	},
	SubCA: {
		OU:       "Sub",
		IsCA:     true,
		KeyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	},
	Server: {
		OU:          "Server",
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		SANAllowed:  true,
	},
	Client: {
		OU:          "Client",
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		SANAllowed:  true,
		ECAllowed:   true,
	},
	WebServer: {
		OU:       "Server",
		KeyUsage: x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
			x509.ExtKeyUsageClientAuth,
		},
		SANAllowed: true,
	},
}

// Resolve returns the issuance template for the given profile.
func Resolve(p Profile) (Template, error) {
	t, ok := templates[p]
	if !ok {
		return Template{}, fmt.Errorf("%w: %v", ErrUnknownProfile, p)
	}
	return t, nil
}
