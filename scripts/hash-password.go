package main

import (
	"fmt"
	"os"

	"github.com/roomsense/telemetry-relay/internal/util"
)

// Prints a bcrypt hash for DEVICE_AUTH_PASSWORD_HASH or CLIENT_AUTH_PASSWORD_HASH.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/hash-password.go <role-secret>\n")
		os.Exit(1)
	}

	hash, err := util.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
