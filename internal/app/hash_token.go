package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/auth"
)

func runHashToken(args []string) int {
	return hashToken(args, os.Stdout)
}

func hashToken(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	token := fs.String("token", "", "Token to hash (mutually exclusive with --generate)")
	generate := fs.Bool("generate", false, "Generate a random token and print it with its hash")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	value := strings.TrimSpace(*token)
	switch {
	case *generate && value != "":
		fmt.Fprintln(os.Stderr, "--token and --generate are mutually exclusive")
		return 2
	case *generate:
		generated, err := auth.GenerateToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate token: %v\n", err)
			return 1
		}
		value = generated
		fmt.Fprintf(stdout, "token=%s\n", value)
	case value == "":
		fmt.Fprintln(os.Stderr, "--token or --generate is required")
		return 2
	}

	hash, err := auth.HashToken(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash token: %v\n", err)
		return 2
	}
	fmt.Fprintf(stdout, "ADMIN_TOKEN_HASH=%s\n", hash)
	return 0
}
