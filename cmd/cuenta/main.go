// Command cuenta manages a congregation member account from the terminal:
// login, the PIN-verified profile changes, account recovery, security
// notices, publications and the profile photo.
//
// Settings come from CUENTA_* variables (and a .env file); see
// cuenta.LoadConfigFromEnv. --api overrides CUENTA_API_URL.
package main

import (
	"fmt"
	"os"
)

func main() {
	root, a := newRootCmd()
	err := root.Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
