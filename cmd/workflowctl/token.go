package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/workflow-service/internal/auth"
)

type tokenFlags struct {
	subject     string
	name        string
	permissions []string
}

func newTokenCommand() *cobra.Command {
	flags := &tokenFlags{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.subject == "" {
				return errors.New("--subject is required")
			}
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			tokens := auth.NewTokenManager(rt.cfg.Auth.JWTSecret, rt.cfg.Auth.Issuer, rt.cfg.Auth.TokenTTLMinutes)
			raw, meta, err := tokens.GenerateToken(flags.subject, flags.name, flags.permissions)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", meta.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.subject, "subject", "", "user id placed in the sub claim")
	cmd.Flags().StringVar(&flags.name, "name", "", "display name used in audit comments")
	cmd.Flags().StringSliceVarP(&flags.permissions, "permission", "p", nil, "granted permission, repeatable")
	return cmd
}
