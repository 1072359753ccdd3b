package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/twocca/twocca/logging"
	"github.com/twocca/twocca/pki"
	"github.com/twocca/twocca/pki/keygen"
	"github.com/twocca/twocca/pki/policy"
	"github.com/twocca/twocca/pki/store"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "twocca",
	Short: "A two-cent certificate authority",
	Long: `twocca issues and revokes certificates for small, self-managed PKIs.

It keeps everything as flat PEM files in one directory: a root authority,
optional intermediate authorities, server/client/www leaf certificates and
one revocation list per authority. No configuration is required; an optional
policy file (` + policy.DefaultFile + `) overrides the defaults.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logging.Initialize(logging.LevelDebug, nil, nil)
		} else if verbose {
			logging.Initialize(logging.LevelInfo, nil, nil)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var verbose bool
var debug bool
var workDir string

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func openStore() *store.Store {
	return store.New(store.NewNativeFs(workDir))
}

func loadPolicy(st *store.Store) policy.Policy {
	pol, err := policy.Load(st.Filesystem().FS())
	if err != nil {
		fail("%s", err.Error())
	}
	return pol
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// showCRL prints an authority's revocation ledger. An authority that never
// revoked anything is a normal state, not an error.
func showCRL(w io.Writer, st *store.Store, ca string) error {
	crl, err := pki.ListCRL(st, ca)
	if errors.Is(err, store.ErrNoCRL) {
		fmt.Fprintln(w, "No CRL found")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "CRL for %s (number %v, next update %s)\n",
		ca, crl.Number, crl.NextUpdate.Format("2006-01-02"))
	for _, e := range crl.RevokedCertificateEntries {
		fmt.Fprintf(w, "  %032x  revoked %s\n",
			e.SerialNumber, e.RevocationTime.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// issue runs one issuance verb end to end: parse arguments, show key
// generation progress on stderr, persist the identity.
func issue(verb string, args []string) {
	st := openStore()
	req, err := parseCertArgs(verb, args, loadPolicy(st))
	if err != nil {
		fail("%s", err.Error())
	}

	ctx, stop := signalContext()
	defer stop()

	events := make(chan keygen.Event, 8)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		dots := false
		for e := range events {
			if e.Done {
				break
			}
			fmt.Fprint(os.Stderr, ".")
			dots = true
		}
		if dots {
			fmt.Fprintln(os.Stderr)
		}
	}()

	id, err := pki.Issue(ctx, st, req, events)
	close(events)
	<-progressDone
	if err != nil {
		fail("%s", err.Error())
	}

	cn := id.Certificate.Subject.CommonName
	fmt.Printf("created %s.crt and %s.key\n", cn, cn)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "a LOT more verbose output (overrides -v)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "directory holding the PKI artifacts")

	issueVerbs := []struct {
		verb  string
		short string
	}{
		{"root", "Create a self-signed root certificate authority"},
		{"sub", "Create an intermediate certificate authority"},
		{"server", "Create a TLS server certificate"},
		{"client", "Create a TLS client certificate"},
		{"www", "Create a combined server/client web certificate"},
	}
	for _, v := range issueVerbs {
		verb := v.verb
		rootCmd.AddCommand(&cobra.Command{
			Use:   verb + " [key=value ...]",
			Short: v.short,
			Long: v.short + `.

Arguments are key=value pairs: CN, O, C, L, ST, days, ca, rsa=<bits>,
ec=<curve>, dns=<name>, email=<address>. dns and email may repeat; the
common name defaults to the verb.`,
			Args: cobra.ArbitraryArgs,
			Run: func(cmd *cobra.Command, args []string) {
				issue(verb, args)
			},
		})
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "revoke NAME [ca=<authority>]",
		Short: "Revoke a certificate and re-sign the authority's CRL",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			st := openStore()
			ca, err := parseCAArg(args[1:], loadPolicy(st))
			if err != nil {
				fail("%s", err.Error())
			}

			crl, err := pki.Revoke(st, ca, args[0])
			if err != nil {
				fail("%s", err.Error())
			}
			fmt.Printf("revoked %s: CRL %s now at number %v with %d entries\n",
				args[0], ca, crl.Number, len(crl.RevokedCertificateEntries))
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "crl [ca=<authority>]",
		Short: "Show an authority's revocation list",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			st := openStore()
			ca, err := parseCAArg(args, loadPolicy(st))
			if err != nil {
				fail("%s", err.Error())
			}

			if err := showCRL(os.Stdout, st, ca); err != nil {
				fail("%s", err.Error())
			}
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "dh [bits]",
		Short: "Generate Diffie-Hellman parameters",
		Long: `Generate Diffie-Hellman parameters with a safe prime modulus and write
them to dh<bits>.pem. The default modulus size is 2048 bits; expect the
search to take a while.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			bits := 2048
			if len(args) == 1 {
				var err error
				bits, err = strconv.Atoi(args[0])
				if err != nil {
					fail("invalid bit size %q", args[0])
				}
			}

			ctx, stop := signalContext()
			defer stop()

			data, err := pki.GenerateDHParams(ctx, bits)
			if err != nil {
				fail("%s", err.Error())
			}

			name := fmt.Sprintf("dh%d.pem", bits)
			if err := openStore().Filesystem().WriteFile(name, data); err != nil {
				fail("%s", err.Error())
			}
			fmt.Printf("created %s\n", name)
		},
	})
}
