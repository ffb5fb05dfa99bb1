// Package app initializes the application: configuration, database pool,
// model clients and the retrieval pipeline services, wired together with
// explicit provide functions.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datasundae/pragi/internal/answer"
	"github.com/datasundae/pragi/internal/config"
	"github.com/datasundae/pragi/internal/ingest"
	"github.com/datasundae/pragi/internal/ingestlog"
	"github.com/datasundae/pragi/internal/log"
	"github.com/datasundae/pragi/internal/retriever"
	"github.com/datasundae/pragi/internal/vecstore"
)

// App is the application container. Fields are populated by Setup and
// released by Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	DBPool *pgxpool.Pool

	Index     *vecstore.Store
	Retriever *retriever.Retriever
	Tracker   *ingestlog.Tracker
	Ingest    *ingest.Service
	Answer    *answer.Service
}

// Close releases all resources. Safe to call on a partially initialized
// App.
func (a *App) Close() error {
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Debug("database pool closed")
	}
	return nil
}
