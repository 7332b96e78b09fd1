package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/grt/internal/cli/config"
	"github.com/conduit-lang/grt/internal/cli/ui"
	"github.com/conduit-lang/grt/internal/clipboard"
	"github.com/conduit-lang/grt/internal/grt"
	"github.com/conduit-lang/grt/internal/store"
	"github.com/conduit-lang/grt/internal/tree"
	"github.com/conduit-lang/grt/internal/utils"
)

// errReported marks errors whose explanation was already printed
var errReported = errors.New("command failed")

// environment is what a command needs to work on documents
type environment struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *grt.Registry
	store    *store.Store
}

// newLogger builds the command logger: development output for debug,
// production JSON otherwise
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// loadEnvironment reads the configuration, the class registry and opens the
// document store. Callers close it with env.close.
func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.LoadFrom(configDir)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err, noColor))
		return nil, errReported
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	paths, err := utils.ExpandPaths(cfg.Structs, ".yml", ".yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to find structs files: %w", err)
	}

	registry := grt.NewRegistry()
	for _, path := range paths {
		names, err := registry.LoadStructsFile(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded structs", zap.String("path", path), zap.Int("classes", len(names)))
	}
	if err := registry.Validate(); err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, logger: logger, registry: registry}, nil
}

// openStore connects to the configured document database
func (e *environment) openStore(ctx context.Context) (*store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	s, err := store.Open(ctx, store.Config{
		Driver: e.cfg.Store.Driver,
		DSN:    e.cfg.Store.DSN,
		Table:  e.cfg.Store.Table,
	}, store.WithLogger(e.logger.Named("store")))
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx); err != nil {
		s.Close()
		return nil, err
	}
	e.store = s
	return s, nil
}

// newDocument creates an empty document context
func (e *environment) newDocument() *grt.Context {
	return grt.NewContext(e.registry,
		grt.WithLogger(e.logger),
		grt.WithUndoLimit(e.cfg.Undo.Limit))
}

// loadDocument reads a stored document and projects it as a tree
func (e *environment) loadDocument(cmd *cobra.Command, name string) (*grt.Context, *tree.Projection, error) {
	ctx := cmd.Context()
	s, err := e.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	doc := e.newDocument()
	root, err := s.Load(ctx, doc, name)
	if err != nil {
		if store.IsNotFound(err) {
			fmt.Fprint(cmd.ErrOrStderr(), ui.DocumentNotFoundError(name, e.documentNames(ctx), noColor))
			return nil, nil, errReported
		}
		return nil, nil, err
	}
	return doc, tree.NewProjection(doc, root), nil
}

func (e *environment) documentNames(ctx context.Context) []string {
	docs, err := e.store.List(ctx)
	if err != nil {
		return nil
	}
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	return names
}

// openClipboard connects to the configured clipboard backend
func (e *environment) openClipboard(ctx context.Context) (clipboard.Clipboard, func(), error) {
	cc := clipboard.Config{
		TTL:    e.cfg.Clipboard.TTL,
		Prefix: e.cfg.Clipboard.Prefix,
		Name:   "default",
	}
	if e.cfg.Clipboard.Backend != "redis" {
		return clipboard.NewMemoryClipboard(cc), func() {}, nil
	}
	cb, err := clipboard.NewRedisClipboard(ctx, clipboard.RedisConfig{
		Addr:     e.cfg.Clipboard.RedisAddr,
		Password: e.cfg.Clipboard.RedisPassword,
		DB:       e.cfg.Clipboard.RedisDB,
		Config:   cc,
	})
	if err != nil {
		return nil, nil, err
	}
	return cb, func() { cb.Close() }, nil
}

func (e *environment) close() {
	if e.store != nil {
		e.store.Close()
	}
	e.logger.Sync()
}

// parseNode parses a dotted node path; an empty path is the root
func parseNode(s string) (tree.NodeID, error) {
	node, err := tree.ParseNodeID(s)
	if err != nil {
		return tree.NodeID{}, fmt.Errorf("invalid node %q: %w", s, err)
	}
	return node, nil
}
