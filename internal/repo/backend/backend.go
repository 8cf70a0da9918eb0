// Package backend opens the repo.Store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/checkmk-notify/internal/config"
	"github.com/hamed0406/checkmk-notify/internal/repo"
	"github.com/hamed0406/checkmk-notify/internal/repo/bolt"
	"github.com/hamed0406/checkmk-notify/internal/repo/file"
	"github.com/hamed0406/checkmk-notify/internal/repo/postgres"
)

// Namespace describes one handler's state: its bucket/namespace name for the
// database backends, and its file and format for the file backend.
type Namespace struct {
	Name  string
	Path  func(config.Config) string
	Codec file.Codec
}

var (
	Discord = Namespace{Name: "discord", Path: config.Config.DedupLogPath, Codec: file.Lines{}}
	GLPI    = Namespace{Name: "glpi", Path: config.Config.TicketStatePath, Codec: file.JSON{}}
)

// Open returns the store and a function releasing it.
func Open(ctx context.Context, cfg config.Config, ns Namespace, log *zap.Logger) (repo.Store, func() error, error) {
	switch cfg.StateBackend {
	case config.BackendFile, "":
		path := ns.Path(cfg)
		log.Debug("state_backend", zap.String("backend", "file"), zap.String("path", path))
		return file.New(path, ns.Codec), func() error { return nil }, nil

	case config.BackendBolt:
		s, err := bolt.Open(cfg.BoltPath(), ns.Name, cfg.LockTimeout())
		if err != nil {
			return nil, nil, err
		}
		log.Debug("state_backend", zap.String("backend", "bolt"), zap.String("path", cfg.BoltPath()))
		return s, s.Close, nil

	case config.BackendPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL, ns.Name, log)
		if err != nil {
			return nil, nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		log.Debug("state_backend", zap.String("backend", "postgres"))
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
}
