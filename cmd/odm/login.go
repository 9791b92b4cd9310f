package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alfredjeanlab/odm/internal/client"
)

var loginCmd = &cobra.Command{
	Use:   "login <server>",
	Short: "Store a bearer token for a server in the OS keyring",
	Long: `Store a bearer token for a server in the OS keyring.

The server is the --server URL for HTTP access or the grpc:// store URL.
The token is taken from --token, or read from the terminal.`,
	GroupID:     "system",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationNoClient: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		tok := token
		if tok == "" {
			var err error
			if tok, err = promptToken(cmd); err != nil {
				return err
			}
		}
		if err := client.SaveToken(args[0], tok); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved token for %s\n", args[0])
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:         "logout <server>",
	Short:       "Remove a server's token from the OS keyring",
	GroupID:     "system",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationNoClient: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.DeleteToken(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed token for %s\n", args[0])
		return nil
	},
}

// promptToken reads a token without echo from a terminal, or one line from
// piped stdin.
func promptToken(cmd *cobra.Command) (string, error) {
	var tok string
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		tok = string(b)
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading token: %w", err)
		}
		tok = line
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", errors.New("empty token")
	}
	return tok, nil
}
