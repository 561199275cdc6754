// Command devtoken mints an access token signed with JWT_SIGNING_KEY for
// local testing against the API.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	jwttoken "docsign/internal/jwt_token"
	"docsign/internal/platform/config"
)

const (
	flagUser       = "user"
	flagOrg        = "org"
	flagRoles      = "roles"
	flagTTL        = "ttl"
	flagSigningKey = "signing-key"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Mint a docsign access token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			rawUser, _ := flags.GetString(flagUser)
			rawOrg, _ := flags.GetString(flagOrg)
			roles, _ := flags.GetStringSlice(flagRoles)
			ttl, _ := flags.GetDuration(flagTTL)
			key, _ := flags.GetString(flagSigningKey)

			cfg := config.FromEnv()
			if key == "" {
				key = cfg.JWTSigningKey
			}

			userID := uuid.New()
			if rawUser != "" {
				parsed, err := uuid.Parse(rawUser)
				if err != nil {
					return fmt.Errorf("invalid --%s: %w", flagUser, err)
				}
				userID = parsed
			}
			var orgID uuid.UUID
			if rawOrg != "" {
				parsed, err := uuid.Parse(rawOrg)
				if err != nil {
					return fmt.Errorf("invalid --%s: %w", flagOrg, err)
				}
				orgID = parsed
			}

			token, err := jwttoken.NewJWTService(key, cfg.JWTIssuer).GenerateAccessToken(userID, orgID, roles, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(token))
			return err
		},
		SilenceUsage: true,
	}

	cmd.Flags().String(flagUser, "", "user id (random when empty)")
	cmd.Flags().String(flagOrg, "", "organization id")
	cmd.Flags().StringSlice(flagRoles, []string{"ISSUER"}, "roles to grant")
	cmd.Flags().Duration(flagTTL, time.Hour, "token lifetime")
	cmd.Flags().String(flagSigningKey, "", "HMAC key (defaults to JWT_SIGNING_KEY)")
	return cmd
}
