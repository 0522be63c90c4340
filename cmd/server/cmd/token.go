package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/witw-events/server/internal/auth"
	"github.com/witw-events/server/internal/storage/postgres"
)

type tokenOptions struct {
	*globalOptions
	username string
	expiry   time.Duration
}

func newTokenCommand(global *globalOptions) *cobra.Command {
	opts := &tokenOptions{globalOptions: global}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an existing user",
		Long: `Issue a session token for a registered user, signed with the server's
JWT_SECRET. The user is looked up in PostgreSQL so tokens are only minted for
identities the gate will accept.

Example:
  server token --username alice --expiry 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.username, "username", "", "username to issue the token for")
	cmd.Flags().DurationVar(&opts.expiry, "expiry", 0, "token lifetime (default: JWT_EXPIRY_HOURS)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func runToken(cmd *cobra.Command, opts *tokenOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx := cmd.Context()
	pool, err := openPool(ctx, cfg, false, zerolog.Nop())
	if err != nil {
		return err
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}
	identity, err := repo.Users().FindByUsername(ctx, opts.username)
	if err != nil {
		if errors.Is(err, auth.ErrIdentityNotFound) {
			return fmt.Errorf("user %q does not exist", opts.username)
		}
		return err
	}

	codec, err := newCodec(cfg)
	if err != nil {
		return err
	}
	window := cfg.Auth.JWTExpiry
	if opts.expiry > 0 {
		window = opts.expiry
	}
	session, err := auth.NewTokenIssuer(codec, window).Issue(*identity)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, session.Token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", session.ExpiresAt.Format(time.RFC3339))
	return nil
}
