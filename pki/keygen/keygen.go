// Package keygen produces fresh asymmetric keypairs for certificate
// issuance, abstracting over the algorithm choice (RSA with a configurable
// modulus size, or a named elliptic curve).
//
// Generation of large RSA keys can take a while, so Generate accepts a
// context for cancellation and an optional event channel for advisory
// progress notifications. Events are best-effort and never affect the
// outcome of the generation.
package keygen

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownCurve is returned when the named curve is not recognized
	// by the underlying cryptographic provider.
	ErrUnknownCurve = errors.New("keygen: unknown curve")

	// ErrKeyTooSmall is returned for RSA moduli below the enforced minimum.
	ErrKeyTooSmall = errors.New("keygen: rsa key size below minimum")
)

const (
	// DefaultRSABits is the modulus size used when none is requested.
	DefaultRSABits = 2048

	// MinRSABits is the smallest modulus size Generate accepts.
	MinRSABits = 2048
)

type Algorithm int

const (
	AlgorithmRSA Algorithm = iota + 1
	AlgorithmEC
)

// Spec describes the keypair to generate.
type Spec struct {
	Algorithm Algorithm

	// Bits is the RSA modulus size. Zero means DefaultRSABits.
	Bits int

	// Curve is the named elliptic curve for EC keys.
	Curve string
}

// RSA returns a spec for an RSA keypair of the given modulus size.
func RSA(bits int) Spec {
	return Spec{Algorithm: AlgorithmRSA, Bits: bits}
}

// EC returns a spec for a keypair on the named curve.
func EC(curve string) Spec {
	return Spec{Algorithm: AlgorithmEC, Curve: curve}
}

func (s Spec) String() string {
	switch s.Algorithm {
	case AlgorithmEC:
		return fmt.Sprintf("EC[%s]", s.Curve)
	default:
		bits := s.Bits
		if bits == 0 {
			bits = DefaultRSABits
		}
		return fmt.Sprintf("RSA-%d", bits)
	}
}

// Named curves recognized by the provider. Both the Go parameter names
// and the common OpenSSL aliases resolve to the same curve.
var curves = map[string]elliptic.Curve{
	"P-224":      elliptic.P224(),
	"secp224r1":  elliptic.P224(),
	"P-256":      elliptic.P256(),
	"prime256v1": elliptic.P256(),
	"secp256r1":  elliptic.P256(),
	"P-384":      elliptic.P384(),
	"secp384r1":  elliptic.P384(),
	"P-521":      elliptic.P521(),
	"secp521r1":  elliptic.P521(),
}

// CurveByName resolves a named curve, failing with ErrUnknownCurve for
// names the provider does not recognize.
func CurveByName(name string) (elliptic.Curve, error) {
	c, ok := curves[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurve, name)
	}
	return c, nil
}

// Event is an advisory progress notification emitted during generation.
// Consumers must not derive correctness from it.
type Event struct {
	Spec Spec
	Done bool
}

// progressInterval is how often a keep-alive event is emitted while the
// generation is still running.
const progressInterval = 250 * time.Millisecond

// Generate produces a keypair according to spec. The returned signer is
// either a *rsa.PrivateKey or a *ecdsa.PrivateKey.
//
// Generation runs in its own goroutine so the caller's context can cancel
// a long-running RSA generation; the abandoned result is discarded. If
// events is non-nil, progress events are sent without blocking.
func Generate(ctx context.Context, spec Spec, events chan<- Event) (crypto.Signer, error) {
	bits := spec.Bits
	if spec.Algorithm == AlgorithmRSA || spec.Algorithm == 0 {
		if bits == 0 {
			bits = DefaultRSABits
		}
		if bits < MinRSABits {
			return nil, fmt.Errorf("%w: %d < %d", ErrKeyTooSmall, bits, MinRSABits)
		}
	}

	var curve elliptic.Curve
	if spec.Algorithm == AlgorithmEC {
		var err error
		curve, err = CurveByName(spec.Curve)
		if err != nil {
			return nil, err
		}
	}

	type result struct {
		key crypto.Signer
		err error
	}
	resc := make(chan result, 1)

	go func() {
		if curve != nil {
			key, err := ecdsa.GenerateKey(curve, rand.Reader)
			resc <- result{key, err}
			return
		}
		key, err := rsa.GenerateKey(rand.Reader, bits)
		resc <- result{key, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-resc:
			if r.err != nil {
				return nil, fmt.Errorf("keygen: generating %v key: %w", spec, r.err)
			}
			emit(events, Event{Spec: spec, Done: true})
			return r.key, nil
		case <-ticker.C:
			emit(events, Event{Spec: spec})
		}
	}
}

func emit(events chan<- Event, e Event) {
	if events == nil {
		return
	}
	select {
	case events <- e:
	default:
	}
}
