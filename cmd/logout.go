package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logoutCmd)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer closeEnv(env)

		if !env.Store.IsAuthenticated() {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
			return nil
		}
		if err := env.Store.Clear(); err != nil {
			return err
		}
		env.Log.Info("logout")
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}
