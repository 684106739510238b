package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/chatd/internal/auth"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token",
		Long:  "Mint a bearer token signed with JWT_SECRET for a user id, for local testing.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetInt64("user-id")
			name, _ := cmd.Flags().GetString("name")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET must be set")
			}

			token, exp, err := auth.NewIssuer([]byte(secret), ttl).Issue(auth.Identity{ID: userID, DisplayName: name})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().Int64("user-id", 0, "user id to embed")
	cmd.Flags().String("name", "", "display name to embed")
	cmd.Flags().Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
