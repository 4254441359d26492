package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gatehouse/internal/security/password"
)

var hashcredUsername string

var hashcredCmd = &cobra.Command{
	Use:   "hashcred",
	Short: "Hash a password for the credentials file",
	Long: `Prompt for a password and print its argon2id hash. With --username the
output is a ready-to-paste credentials file stanza.

The password is read from the terminal without echo; it is never passed as
an argument or logged.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return errors.New("hashcred: stdin must be a terminal")
		}

		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stderr, "Repeat password: ")
		again, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		if string(pw) != string(again) {
			return errors.New("hashcred: passwords do not match")
		}

		hash, err := password.Hash(string(pw), password.DefaultParams())
		if err != nil {
			return err
		}

		if u := strings.TrimSpace(hashcredUsername); u != "" {
			fmt.Printf("credentials:\n  - username: %s\n    password_hash: %s\n", u, hash)
			return nil
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	hashcredCmd.Flags().StringVar(&hashcredUsername, "username", "", "emit a credentials file stanza for this username")
	rootCmd.AddCommand(hashcredCmd)
}
