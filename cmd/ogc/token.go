package main

import (
	"fmt"

	"github.com/KevinKickass/OpenGCodeCore/internal/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd(c *cli) *cobra.Command {
	var subject, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token signed with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			if !c.cfg.Auth.IsProductionReady() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: signing with the development secret")
			}

			jwt := auth.NewJWTHandler(c.cfg.Auth.GetJWTSecret(), c.cfg.Auth.AccessTokenTTL)
			token, err := jwt.GenerateAccessToken(subject, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "viewer, operator or admin")
	return cmd
}
