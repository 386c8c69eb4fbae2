package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"n8n-ingest/backend/internal/config"
	"n8n-ingest/backend/internal/logging"
	"n8n-ingest/backend/internal/repository"
	"n8n-ingest/backend/pkg/models"
)

type seedOptions struct {
	orgID string
	name  string
	token string
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	seed := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create an ingest token for an organization",
		Long: `Creates an active ingest token. The organization id is generated when
not given; the token is generated when not given and printed once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts, seed)
		},
	}
	cmd.Flags().StringVar(&seed.orgID, "org-id", "", "Organization UUID (generated if empty)")
	cmd.Flags().StringVar(&seed.name, "name", "default", "Token name")
	cmd.Flags().StringVar(&seed.token, "token", "", "Token secret (generated if empty)")
	return cmd
}

func runSeed(cmd *cobra.Command, opts *rootOptions, seed *seedOptions) error {
	ctx := cmd.Context()

	cfg, err := config.LoadConfig(opts.envFile)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.File)
	defer logger.Close()

	orgID := seed.orgID
	if orgID == "" {
		orgID = uuid.NewString()
	} else if _, err := uuid.Parse(orgID); err != nil {
		return fmt.Errorf("invalid --org-id: %w", err)
	}

	token := seed.token
	if token == "" {
		if token, err = newToken(); err != nil {
			return err
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DB.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)
	t := &models.IngestToken{Token: token, OrgID: orgID, Name: seed.name, IsActive: true}
	if err := store.CreateToken(ctx, t); err != nil {
		return err
	}

	logger.Info("Seeded ingest token", "org_id", orgID, "name", seed.name)
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

// newToken returns "sk_live_" followed by 32 random bytes in hex.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return "sk_live_" + hex.EncodeToString(b), nil
}
