package engine

import (
	"database/sql"
	"time"

	"rhflow/internal/assistant"
	"rhflow/internal/audit"
	"rhflow/internal/config"
	"rhflow/internal/repo"
	"rhflow/internal/storage"
)

// Engine is the service layer. All mutations run inside a transaction opened
// here; Now is injectable so tests can pin the clock.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Store  storage.Store
	Chat   *assistant.Client
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, store storage.Store, chat *assistant.Client) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Store:  store,
		Chat:   chat,
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) today() string {
	return e.now().UTC().Format("2006-01-02")
}

// auditWriter builds a change-log writer on the engine clock. Built per call
// so a clock swapped in after New (tests do this) is picked up.
func (e Engine) auditWriter() audit.Writer {
	return audit.Writer{Now: e.now}
}
