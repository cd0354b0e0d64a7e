package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reup-planner-backend/internal/auth"
	"reup-planner-backend/internal/config"
)

// newTokenCmd mints a bearer token for local testing of the authenticated
// endpoints.
func newTokenCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed bearer token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("token: --user is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			tok, err := auth.GenerateToken([]byte(cfg.JWTSecret), userID, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to put in the user_id claim")
	return cmd
}
