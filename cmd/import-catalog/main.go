// Command import-catalog loads item, ability and effect definitions from a
// CSV file into a stored session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedungeon/dungeon-server-go/internal/config"
	"github.com/bytedungeon/dungeon-server-go/internal/game"
	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/bytedungeon/dungeon-server-go/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	sessionID  = flag.String("session", "", "stored session to merge into; a new session is created when empty")
	name       = flag.String("name", "", "session name for new sessions")
	replace    = flag.Bool("replace", false, "ignore the stored session and start from an empty one")
	dryRun     = flag.Bool("dry-run", false, "print the session document instead of saving it")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	csvPath := "data/catalog.csv"
	if flag.NArg() > 0 {
		csvPath = flag.Arg(0)
	}
	if err := run(context.Background(), csvPath, logger); err != nil {
		logger.Fatal("catalog import failed", zap.Error(err))
	}
}

func run(ctx context.Context, csvPath string, logger *zap.Logger) error {
	absPath, err := filepath.Abs(csvPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := parseCatalog(file)
	if err != nil {
		return err
	}
	logger.Info("parsed catalog",
		zap.String("file", absPath),
		zap.Int("effects", len(rows.Effects)),
		zap.Int("abilities", len(rows.Abilities)),
		zap.Int("items", len(rows.Items)),
	)

	g := game.NewSession(logger, game.DefaultOptions())
	if *dryRun {
		if err := rows.apply(g); err != nil {
			return err
		}
		doc, err := g.Export()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(doc, '\n'))
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is not configured")
	}
	db, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewSessionRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	id, sessionName := *sessionID, *name
	if id == "" {
		id = uuid.New().String()
	} else if !*replace {
		rec, err := repo.Load(ctx, id)
		switch {
		case errors.Is(err, gameerr.ErrNotFound):
			logger.Info("stored session not found, creating it", zap.String("session_id", id))
		case err != nil:
			return err
		default:
			if err := g.Import(rec.Document); err != nil {
				return fmt.Errorf("stored session %s: %w", id, err)
			}
			if sessionName == "" {
				sessionName = rec.Name
			}
		}
	}

	start := time.Now()
	if err := rows.apply(g); err != nil {
		return err
	}
	doc, err := g.Export()
	if err != nil {
		return err
	}
	sum, err := g.Checksum()
	if err != nil {
		return err
	}
	if err := repo.Save(ctx, repository.SessionRecord{
		ID:       id,
		Name:     sessionName,
		Document: doc,
		Checksum: sum,
	}); err != nil {
		return err
	}

	logger.Info("catalog imported",
		zap.String("session_id", id),
		zap.Int("definitions", rows.count()),
		zap.String("checksum", sum),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
