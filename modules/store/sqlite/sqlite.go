// Package sqlite implements the store.sqlite module, the persistent backend
// for tracked videos, ingested comments, settings, conversations and drafts.
// It uses modernc.org/sqlite (pure Go, no CGO) with WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/replyloop/replyloop/internal/core"
	"github.com/replyloop/replyloop/internal/store"
	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite" // SQLite driver registration
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ store.VideoStore        = (*videoStore)(nil)
	_ store.CommentStore      = (*commentStore)(nil)
	_ store.SettingStore      = (*settingStore)(nil)
	_ store.ConversationStore = (*conversationStore)(nil)
	_ store.DraftStore        = (*draftStore)(nil)
	_ core.Configurable       = (*Module)(nil)
	_ core.Provisioner        = (*Module)(nil)
	_ core.Validator          = (*Module)(nil)
	_ core.Stopper            = (*Module)(nil)
)

// Module implements the SQLite store backing all persisted state, exposed
// to the rest of the system as one service per store interface.
type Module struct {
	config Config
	db     *sql.DB
	logger *slog.Logger

	videos        *videoStore
	comments      *commentStore
	settings      *settingStore
	conversations *conversationStore
	drafts        *draftStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	if dir := filepath.Dir(m.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := open(m.config)
	if err != nil {
		return err
	}

	m.db = db
	m.videos = &videoStore{db: db}
	m.comments = &commentStore{db: db}
	m.settings = &settingStore{db: db}
	m.conversations = &conversationStore{db: db}
	m.drafts = &draftStore{db: db}

	ctx.RegisterService("store.videos", m.videos)
	ctx.RegisterService("store.comments", m.comments)
	ctx.RegisterService("store.settings", m.settings)
	ctx.RegisterService("store.conversations", m.conversations)
	ctx.RegisterService("store.drafts", m.drafts)

	m.logger.Info("sqlite store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)

	return nil
}

// open opens the database, applies PRAGMAs and migrates the schema.
func open(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.db.PingContext(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite store stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Videos returns the VideoStore implementation.
func (m *Module) Videos() store.VideoStore { return m.videos }

// Comments returns the CommentStore implementation.
func (m *Module) Comments() store.CommentStore { return m.comments }

// Settings returns the SettingStore implementation.
func (m *Module) Settings() store.SettingStore { return m.settings }

// Conversations returns the ConversationStore implementation.
func (m *Module) Conversations() store.ConversationStore { return m.conversations }

// Drafts returns the DraftStore implementation.
func (m *Module) Drafts() store.DraftStore { return m.drafts }
