package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgerguard/ledgerguard/internal/common"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/risk"
	"github.com/ledgerguard/ledgerguard/internal/service"
	"github.com/ledgerguard/ledgerguard/internal/storage"
	"github.com/ledgerguard/ledgerguard/internal/workflow"
	"github.com/spf13/viper"
)

// initStorage opens the configured database and brings the schema current.
func initStorage(ctx context.Context) (service.AccountStore, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/ledgerguard/ledgerguard.db"
	}
	dbPath = expandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Could not open the review database at %s", dbPath), err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, common.NewUserError("Could not bring the database schema up to date", err)
	}

	return store, nil
}

// newMachine builds the workflow machine from configuration.
func newMachine(store service.AccountStore) *workflow.Machine {
	return workflow.NewMachineWithConfig(store, service.RealClock{}, workflow.Config{
		VarianceThreshold: varianceThreshold(),
	})
}

func varianceThreshold() float64 {
	threshold := viper.GetFloat64("review.variance_threshold")
	if threshold <= 0 {
		threshold = risk.DefaultVarianceThreshold
	}
	return threshold
}

// resolveActor builds the acting reviewer from flags.
func resolveActor(name, role string) (service.Actor, error) {
	if strings.TrimSpace(name) == "" {
		return service.Actor{}, fmt.Errorf("%w: --as reviewer name is required", common.ErrMissingField)
	}
	stage, ok := model.ParseStage(role)
	if !ok {
		return service.Actor{}, fmt.Errorf("%w: unknown role %q (use checker1-checker4 or cfo)", common.ErrInvalidConfig, role)
	}
	return service.Actor{Name: name, Role: stage}, nil
}

// expandPath expands ~ and environment variables in a file path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
