package main

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classgate",
		Short: "Passcode-gated registration, login and classroom joins",
		Long: `classgate serves the authentication API for a classroom platform:
email-verified registration, password login with JWT session cookies, and
teacher-approved classroom joins.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewLoadtestCmd())

	return cmd
}
