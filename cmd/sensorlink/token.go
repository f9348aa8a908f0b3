package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/sensorlink/internal/backend"
	"golang.org/x/term"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the API token stored in the system keyring",
	Long: `Manages the bearer token used for the ingestion API.

A token set with api.token or SENSORLINK_API_TOKEN takes precedence over the keyring.`,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store the API token",
	Long: `Stores the API token in the keyring.

Without an argument the token is read from a hidden prompt on a terminal,
otherwise from the first line of stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTokenSet,
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API token",
	Args:  cobra.NoArgs,
	RunE:  runTokenClear,
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a token is stored and when it expires",
	Args:  cobra.NoArgs,
	RunE:  runTokenStatus,
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
	tokenCmd.AddCommand(tokenStatusCmd)
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		token, err = readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	store, err := openTokenStore(keyringOptions(cfg))
	if err != nil {
		return err
	}
	if err := store.Set(token); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Token stored")
	if exp, ok := backend.TokenExpiry(strings.TrimSpace(token)); ok && exp.Before(time.Now()) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: token expired at %s\n", exp.Format(time.RFC3339))
	}
	return nil
}

func runTokenClear(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	store, err := openTokenStore(keyringOptions(cfg))
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Token removed")
	return nil
}

func runTokenStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	out := cmd.OutOrStdout()
	if cfg.API.Token != "" {
		fmt.Fprintln(out, "Token: from config or environment")
		printExpiry(out, cfg.API.Token)
		return nil
	}

	store, err := openTokenStore(keyringOptions(cfg))
	if err != nil {
		return err
	}
	token, err := store.Get()
	if err != nil {
		return err
	}
	if token == "" {
		fmt.Fprintln(out, "Token: not set")
		return nil
	}
	fmt.Fprintln(out, "Token: stored in keyring")
	printExpiry(out, token)
	return nil
}

func printExpiry(w io.Writer, token string) {
	exp, ok := backend.TokenExpiry(token)
	switch {
	case !ok:
		fmt.Fprintln(w, "Expires: unknown")
	case exp.Before(time.Now()):
		fmt.Fprintf(w, "Expires: %s (expired)\n", exp.UTC().Format(time.RFC3339))
	default:
		fmt.Fprintf(w, "Expires: %s\n", exp.UTC().Format(time.RFC3339))
	}
}

// readToken prompts without echo on a terminal and reads one line otherwise.
func readToken(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "API token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword unlocks a file keyring from the terminal.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for the keyring password prompt")
	}
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
