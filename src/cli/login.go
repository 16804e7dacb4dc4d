package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"commvault-ops/src/cvapi"
	"commvault-ops/src/invocation"
)

func newLoginCmd() *cobra.Command {
	var creds cvapi.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print the session token for later invocations",
		Long: "Authenticates with --authtoken, or with --username and a password, and prints\n" +
			"the commcell data (authtoken, webconsole_hostname) later records pass back.\n" +
			"Missing values come from CV_* environment variables. The password is\n" +
			"prompted for when stdin is a terminal.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			c := creds
			if c.AuthToken == "" && a.cfg.Credentials.AuthToken == "" && c.Password == "" && a.cfg.Credentials.Password == "" {
				if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
					fmt.Fprint(a.stderr, "Password: ")
					pw, err := term.ReadPassword(int(f.Fd()))
					fmt.Fprintln(a.stderr)
					if err != nil {
						return fmt.Errorf("read password: %w", err)
					}
					c.Password = string(pw)
				}
			}
			info, _, err := a.login(contextOf(cmd), c)
			if err != nil {
				a.logger.Error("login failed", "error", err)
				return a.emit(invocation.FailureRecord(err))
			}
			return a.emit(invocation.LoginRecord(info))
		},
	}
	cmd.Flags().StringVar(&creds.Hostname, "hostname", "", "WebConsole hostname or URL")
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "CommCell user name")
	cmd.Flags().StringVar(&creds.AuthToken, "authtoken", "", "Existing token to validate instead of a password login")
	return cmd
}
