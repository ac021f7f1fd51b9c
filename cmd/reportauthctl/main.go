// Command reportauthctl is the operator tool for the report authorization
// database: migrations, first-admin setup, sample accounts and unlocks.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
