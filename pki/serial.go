package pki

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// serialSize is the serial number width in bytes.
const serialSize = 16

// SerialTag is the fixed two-byte prefix identifying certificates produced
// by this tool.
var SerialTag = [2]byte{0x2c, 0xca}

// NewSerial allocates a 128-bit serial number: the fixed two-byte product
// tag followed by 14 bytes (112 bits) from a cryptographically secure
// random source. No uniqueness check against previously issued serials is
// performed; the entropy is sufficient for the intended issuance volume.
func NewSerial() (*big.Int, error) {
	buf := make([]byte, serialSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("pki: reading serial entropy: %w", err)
	}
	buf[0] = SerialTag[0]
	buf[1] = SerialTag[1]

	return new(big.Int).SetBytes(buf), nil
}
