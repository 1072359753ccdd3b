package pki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSerialTagAndWidth(t *testing.T) {
	for i := 0; i < 1000; i++ {
		serial, err := NewSerial()
		require.NoError(t, err)

		b := serial.Bytes()
		require.Len(t, b, serialSize)
		assert.Equal(t, SerialTag[0], b[0])
		assert.Equal(t, SerialTag[1], b[1])
	}
}

func TestNewSerialVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		serial, err := NewSerial()
		require.NoError(t, err)
		seen[serial.String()] = true
	}
	assert.Greater(t, len(seen), 999)
}
