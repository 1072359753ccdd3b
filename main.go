// twocca is a two-cent certification authority. It issues root and
// intermediate CAs, server/client/web-server certificates and per-authority
// revocation lists, all stored as flat PEM files in a working directory.
//
// This is the main package that initializes the command line interface.
package main

import "github.com/twocca/twocca/cli"

func main() {
	cli.Execute()
}
