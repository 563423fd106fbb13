package cmd

import (
	"errors"
	"fmt"

	"github.com/saravenpi/parley/internal/session"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer closeEnv(env)

		identity, err := env.Resume()
		if errors.Is(err, session.ErrNoSession) {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s)\n", identity.DisplayName, identity.UserID)
		return nil
	},
}
