package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teemow/gapi/internal/google"
)

func newAuthCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored Google credentials",
		Long: `Manage the Google accounts gapi can act as.

Logging in requires client_secret.json (an OAuth client of type "Desktop app")
in the credentials directory.`,
	}
	cmd.AddCommand(newAuthLoginCmd(root))
	cmd.AddCommand(newAuthStatusCmd(root))
	cmd.AddCommand(newAuthLogoutCmd(root))
	return cmd
}

func newAuthLoginCmd(root *rootOptions) *cobra.Command {
	var (
		account   string
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize a Google account",
		Long: `Run the OAuth loopback flow for an account and store the resulting
credentials. Existing credentials for the account are replaced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := google.ValidateAccountName(account); err != nil {
				return err
			}
			store := root.store()
			if !store.HasClientSecret() {
				return fmt.Errorf("%w at %s; download an OAuth client (Desktop app) from the Google Cloud console",
					google.ErrNoClientSecret, store.ClientSecretPath())
			}
			if !noBrowser && !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("no terminal attached; use --no-browser to print the authorization URL instead")
			}

			out := cmd.OutOrStdout()
			flow := &google.LoopbackFlow{
				OpenBrowser: !noBrowser,
				Out:         out,
			}
			provider := google.NewFileTokenProvider(store, google.WithLogger(root.logger))
			creds, err := provider.Login(cmd.Context(), account, flow.Run)
			if err != nil {
				return err
			}

			path, _ := store.CredentialsPath(account)
			fmt.Fprintf(out, "Authorized account %s; credentials saved to %s\n", account, path)
			if missing := google.MissingScopes(creds.Scopes); len(missing) > 0 {
				fmt.Fprintf(out, "Warning: missing scopes: %s\n", strings.Join(missing, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", google.DefaultAccount, "Account name to store the credentials under")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
	return cmd
}

func newAuthStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored accounts and token state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printAuthStatus(cmd.OutOrStdout(), root.store(), time.Now())
		},
	}
}

func printAuthStatus(out io.Writer, store *google.Store, now time.Time) error {
	fmt.Fprintf(out, "Credentials directory: %s\n", store.Dir())
	fmt.Fprintf(out, "Client secret: %s\n", lo.Ternary(store.HasClientSecret(), "found", "missing"))

	accounts, err := store.Accounts()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(out, "No accounts. Run 'gapi auth login' to add one.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tEXPIRY\tREFRESH TOKEN\tSCOPES")
	for _, account := range accounts {
		creds, err := store.Load(account)
		if err != nil {
			fmt.Fprintf(tw, "%s\tunreadable: %v\t\t\n", account, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			account,
			describeExpiry(creds, now),
			lo.Ternary(creds.RefreshToken != "", "yes", "no"),
			describeScopes(creds.Scopes),
		)
	}
	return tw.Flush()
}

func describeExpiry(creds *google.Credentials, now time.Time) string {
	expiry := creds.ExpiryTime()
	if expiry.IsZero() {
		return "unknown"
	}
	if !expiry.After(now) {
		return creds.Expiry + " (expired)"
	}
	return creds.Expiry
}

func describeScopes(granted []string) string {
	missing := google.MissingScopes(granted)
	if len(missing) == 0 {
		return "ok"
	}
	return "missing " + strings.Join(missing, ", ")
}

func newAuthLogoutCmd(root *rootOptions) *cobra.Command {
	var (
		account string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := root.store()
			out := cmd.OutOrStdout()

			accounts := []string{account}
			if all {
				var err error
				if accounts, err = store.Accounts(); err != nil {
					return err
				}
			}

			for _, a := range accounts {
				if err := google.ValidateAccountName(a); err != nil {
					return err
				}
				if !store.Has(a) {
					fmt.Fprintf(out, "No credentials stored for account %s\n", a)
					continue
				}
				if err := store.Delete(a); err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed credentials for account %s\n", a)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", google.DefaultAccount, "Account whose credentials are removed")
	cmd.Flags().BoolVar(&all, "all", false, "Remove the credentials of every account")
	cmd.MarkFlagsMutuallyExclusive("account", "all")
	return cmd
}
