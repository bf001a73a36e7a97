// Package app wires a workspace together: config, event log, query index,
// snapshot store, bus and engine. Commands and the server both go through an
// App so startup and shutdown stay in one place.
package app

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"

	"taskline/internal/bus"
	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/engine"
	"taskline/internal/event"
	"taskline/internal/eventlog"
	"taskline/internal/index"
	"taskline/internal/migrate"
	"taskline/internal/projection"
	"taskline/internal/snapshot"
)

const (
	logFileName      = "events.jsonl"
	snapshotFileName = "snapshot.json"
)

type App struct {
	Workspace string
	Config    *config.Config
	Logger    *slog.Logger
	Log       *eventlog.Log
	Bus       *bus.Bus
	Engine    *engine.Engine

	dbConn *sql.DB
}

// Options tune Open. A nil Logger falls back to slog.Default; NoIndex skips
// the sqlite query mirror for callers that only mutate.
type Options struct {
	Workspace string
	Logger    *slog.Logger
	NoIndex   bool
}

// Open loads the workspace and brings the engine current. Corrupt log lines
// are reported and skipped; an unknown event type aborts.
func Open(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.Load(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, err
	}

	eventLog, corrupt, err := eventlog.Open(LogPath(opts.Workspace))
	if err != nil {
		return nil, err
	}
	for _, c := range corrupt {
		logger.Warn("skipping corrupt log record", "line", c.Line, "err", c.Err)
	}

	a := &App{
		Workspace: opts.Workspace,
		Config:    cfg,
		Logger:    logger,
		Log:       eventLog,
		Bus:       bus.New(),
	}

	var ix *index.Index
	if !opts.NoIndex {
		conn, err := db.Open(db.Config{Workspace: opts.Workspace})
		if err != nil {
			eventLog.Close()
			return nil, err
		}
		if err := migrate.Migrate(conn); err != nil {
			conn.Close()
			eventLog.Close()
			return nil, err
		}
		a.dbConn = conn
		ix = &index.Index{DB: conn}
	}

	store := &snapshot.Store{Path: SnapshotPath(opts.Workspace)}
	eng, err := engine.New(engine.Options{
		Log:           eventLog,
		Projector:     projectorFor(cfg),
		Factory:       event.NewFactory(),
		Bus:           a.Bus,
		Index:         ix,
		Snapshots:     store,
		Logger:        logger,
		SnapshotEvery: cfg.Snapshot.Every,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Engine = eng

	// Catch the index up with history appended while it was absent.
	if ix != nil {
		if err := a.syncIndex(ctx, ix); err != nil {
			logger.Warn("index catch-up failed", "err", err)
		}
	}
	return a, nil
}

// Index returns the query index, or nil when opened with NoIndex.
func (a *App) Index() *index.Index {
	if a.dbConn == nil {
		return nil
	}
	return &index.Index{DB: a.dbConn}
}

// Close snapshots the final state and releases file handles.
func (a *App) Close() error {
	var first error
	if a.Engine != nil {
		if err := a.Engine.SaveSnapshot(); err != nil {
			a.Logger.Warn("final snapshot failed", "err", err)
			first = err
		}
	}
	if a.dbConn != nil {
		if err := a.dbConn.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.Log != nil {
		if err := a.Log.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// syncIndex records any log entries the index has not seen yet.
func (a *App) syncIndex(ctx context.Context, ix *index.Index) error {
	last, err := ix.LastSeq(ctx)
	if err != nil {
		return err
	}
	for _, entry := range a.Log.After(last) {
		if err := ix.Record(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func projectorFor(cfg *config.Config) projection.Projector {
	return projection.Projector{PointsPerHour: cfg.Points.PerHour}
}

// LogPath returns the event log location for a workspace.
func LogPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".taskline", logFileName)
}

// SnapshotPath returns the snapshot location for a workspace.
func SnapshotPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".taskline", snapshotFileName)
}
