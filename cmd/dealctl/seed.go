package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/dealflow/internal/config"
	"github.com/aristath/dealflow/internal/database"
	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/events"
	"github.com/aristath/dealflow/internal/modules/catalog"
	"github.com/aristath/dealflow/pkg/logger"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <deals.yaml>",
		Short: "Load deals into the catalog database",
		Long: `Insert every deal in the file into catalog.db under the data directory.
Deals start pending and ones that already exist are skipped. A running
server picks seeded deals up on its next sweep.`,
		Args: cobra.ExactArgs(1),
		RunE: runSeed,
	}

	cmd.Flags().String("data-dir", "", "Data directory (default: DEALFLOW_DATA_DIR or ./data)")

	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	deals, err := loadDeals(args[0])
	if err != nil {
		return err
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dataDir = cfg.DataDir
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	level, _ := cmd.Flags().GetString("log-level")
	log := logger.New(logger.Config{Level: level, Output: cmd.ErrOrStderr()})

	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, database.NameCatalog+".db"),
		Profile: database.ProfileStandard,
		Name:    database.NameCatalog,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	service := catalog.NewService(
		catalog.NewRepository(db.Conn(), log),
		events.NewManager(events.NewBus(log), log),
		log,
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := cmd.OutOrStdout()
	created, skipped := 0, 0
	for _, deal := range deals {
		if _, err := service.Create(ctx, deal); err != nil {
			if errors.Is(err, domain.ErrDuplicateDeal) {
				skipped++
				fmt.Fprintf(out, "skip    %s (exists)\n", deal.ID)
				continue
			}
			return fmt.Errorf("deal %s: %w", deal.ID, err)
		}
		created++
		fmt.Fprintf(out, "created %s\n", deal.ID)
	}

	fmt.Fprintf(out, "%d created, %d skipped\n", created, skipped)
	return nil
}
