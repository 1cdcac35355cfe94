// Command admintoken prints a fresh operator token and the bcrypt hash to put in ADMIN_TOKEN_HASH.
package main

import (
	"fmt"
	"os"

	"erasure/pkg/secrets"
)

func main() {
	token, err := secrets.Generate()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	hash, err := secrets.Hash(token)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("X-Admin-Token:   %s\nADMIN_TOKEN_HASH=%s\n", token, hash)
}
