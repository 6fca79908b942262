package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/conflictfewer/internal/google"
)

func newAuthCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth [authorization-code]",
		Short: "Authorize access to a Google Calendar account",
		Long: `Authorize conflictfewer to access a Google Calendar account.

Run without arguments to print the authorization URL. Open it in a
browser, grant access, and run the command again with the code Google
displays:

  conflictfewer auth
  conflictfewer auth 4/0AX4XfW...

Tokens are stored per account in the user cache directory. Use
--account to keep separate calendars (e.g. work and personal).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Println("Open the following URL in your browser and authorize access:")
				fmt.Println()
				fmt.Println(google.GetAuthURL())
				fmt.Println()
				fmt.Printf("Then run: conflictfewer auth --account %s <authorization-code>\n", account)
				return nil
			}

			ctx := context.Background()
			if err := google.SaveTokenForAccount(ctx, account, args[0]); err != nil {
				return fmt.Errorf("failed to save token for account %s: %w", account, err)
			}

			fmt.Printf("Token saved for account %q\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use (default: 'default')")

	return cmd
}
