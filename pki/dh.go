package pki

import (
	"context"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/twocca/twocca/logging"
)

// ErrDHBitsTooSmall is returned when the requested modulus size is below
// the supported minimum.
var ErrDHBitsTooSmall = errors.New("pki: DH modulus size too small")

// MinDHBits is the smallest accepted Diffie-Hellman modulus size. Anything
// this small is only useful for tests.
const MinDHBits = 128

// dhGenerator is the fixed group generator written into the parameters.
var dhGenerator = big.NewInt(2)

// GenerateDHParams produces PKCS#3 Diffie-Hellman parameters with a safe
// prime modulus of the given bit size and generator 2, PEM-encoded as a
// "DH PARAMETERS" block.
//
// Safe prime search is unbounded in theory; the context lets callers cut
// it short. Expect minutes for 2048-bit moduli.
func GenerateDHParams(ctx context.Context, bits int) ([]byte, error) {
	if bits < MinDHBits {
		return nil, fmt.Errorf("%w: %d bits, need at least %d", ErrDHBitsTooSmall, bits, MinDHBits)
	}

	logging.Debugf("searching for a %d-bit safe prime", bits)

	var p *big.Int
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// p = 2q+1 with q prime makes p a safe prime.
		q, err := rand.Prime(rand.Reader, bits-1)
		if err != nil {
			return nil, fmt.Errorf("pki: generating prime: %w", err)
		}
		candidate := new(big.Int).Lsh(q, 1)
		candidate.Add(candidate, big.NewInt(1))
		if candidate.ProbablyPrime(20) {
			p = candidate
			break
		}
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		seq.AddASN1BigInt(p)
		seq.AddASN1BigInt(dhGenerator)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("pki: encoding DH parameters: %w", err)
	}

	logging.Infof("generated %d-bit DH parameters", bits)
	return pem.EncodeToMemory(&pem.Block{Type: "DH PARAMETERS", Bytes: der}), nil
}
