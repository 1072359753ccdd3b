package cli

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twocca/twocca/pki"
	"github.com/twocca/twocca/pki/keygen"
	"github.com/twocca/twocca/pki/profile"
	"github.com/twocca/twocca/pki/store"
)

func TestShowCRLNoLedger(t *testing.T) {
	st := store.New(store.NewMapFs(nil))

	var out bytes.Buffer
	err := showCRL(&out, st, "root")

	// An empty ledger is normal, never an error.
	require.NoError(t, err)
	assert.Equal(t, "No CRL found\n", out.String())
}

func TestShowCRLWithEntries(t *testing.T) {
	st := store.New(store.NewMapFs(nil))

	_, err := pki.Issue(context.Background(), st, pki.Request{
		Profile: profile.RootCA,
		DN:      pki.DN{CommonName: "root"},
	}, nil)
	require.NoError(t, err)

	alice, err := pki.Issue(context.Background(), st, pki.Request{
		Profile:   profile.Client,
		DN:        pki.DN{CommonName: "alice"},
		SigningCA: "root",
		Key:       keygen.EC("P-256"),
	}, nil)
	require.NoError(t, err)

	_, err = pki.Revoke(st, "root", "alice")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, showCRL(&out, st, "root"))

	assert.Contains(t, out.String(), "CRL for root (number 1")
	assert.Contains(t, out.String(),
		fmt.Sprintf("%032x", alice.Certificate.SerialNumber))
}
