package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/twocca/twocca/pki"
	"github.com/twocca/twocca/pki/keygen"
	"github.com/twocca/twocca/pki/policy"
	"github.com/twocca/twocca/pki/profile"
)

// Issuance verbs take free-form key=value arguments instead of flags, e.g.
//
//	twocca server CN=srv01 dns=srv01.example.com days=365
//
// Repeated dns= and email= arguments accumulate in order; every other key
// may appear at most once.

var errDuplicateKey = errors.New("argument given more than once")

type kv struct {
	key, value string
}

func splitArg(arg string) (kv, error) {
	key, value, found := strings.Cut(arg, "=")
	if !found || key == "" {
		return kv{}, fmt.Errorf("malformed argument %q, expected key=value", arg)
	}
	return kv{key, value}, nil
}

// parseCertArgs turns a verb and its key=value arguments into an issuance
// request, filling gaps from the policy defaults.
func parseCertArgs(verb string, args []string, pol policy.Policy) (pki.Request, error) {
	p, err := profile.FromVerb(verb)
	if err != nil {
		return pki.Request{}, err
	}

	req := pki.Request{
		Profile:   p,
		DN:        pki.DN{CommonName: verb, Organization: pol.Organization},
		Days:      pol.Days,
		SigningCA: pol.SigningCA,
	}

	rsaBits := 0
	curve := ""
	seen := make(map[string]bool)

	for _, arg := range args {
		a, err := splitArg(arg)
		if err != nil {
			return pki.Request{}, err
		}

		// SAN keys repeat; everything else is single-shot.
		if a.key != "dns" && a.key != "email" {
			if seen[a.key] {
				return pki.Request{}, fmt.Errorf("%w: %q", errDuplicateKey, a.key)
			}
			seen[a.key] = true
		}

		switch a.key {
		case "CN":
			req.DN.CommonName = a.value
		case "O":
			req.DN.Organization = a.value
		case "C":
			req.DN.Country = a.value
		case "L":
			req.DN.Locality = a.value
		case "ST":
			req.DN.Province = a.value
		case "days":
			req.Days, err = strconv.Atoi(a.value)
			if err != nil || req.Days < 1 {
				return pki.Request{}, fmt.Errorf("invalid days value %q", a.value)
			}
		case "ca":
			req.SigningCA = a.value
		case "rsa":
			rsaBits, err = strconv.Atoi(a.value)
			if err != nil || rsaBits < 1 {
				return pki.Request{}, fmt.Errorf("invalid rsa key size %q", a.value)
			}
		case "ec":
			curve = a.value
		case "dns":
			req.SAN = append(req.SAN, pki.SANEntry{Kind: pki.SANDNS, Value: a.value})
		case "email":
			req.SAN = append(req.SAN, pki.SANEntry{Kind: pki.SANEmail, Value: a.value})
		default:
			return pki.Request{}, fmt.Errorf("unknown argument %q", a.key)
		}
	}

	switch {
	case rsaBits > 0 && curve != "":
		return pki.Request{}, errors.New("rsa and ec are mutually exclusive")
	case curve != "":
		req.Key = keygen.EC(curve)
	case rsaBits > 0:
		req.Key = keygen.RSA(rsaBits)
	default:
		req.Key = keygen.RSA(pol.RSABits)
	}

	return req, nil
}

// parseCAArg extracts an optional ca=<name> argument, defaulting to the
// policy's signing authority. Anything else is rejected.
func parseCAArg(args []string, pol policy.Policy) (string, error) {
	ca := pol.SigningCA
	for _, arg := range args {
		a, err := splitArg(arg)
		if err != nil {
			return "", err
		}
		if a.key != "ca" {
			return "", fmt.Errorf("unknown argument %q", a.key)
		}
		ca = a.value
	}
	return ca, nil
}
