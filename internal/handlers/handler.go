package handlers

import (
	"context"

	"kzs-map/internal/services"
)

// SyncRunner runs one catalog pass.
type SyncRunner interface {
	Run(ctx context.Context) (*services.SyncStats, error)
}

type Handler struct {
	catalog *services.CatalogView
	syncer  SyncRunner
}

func New(catalog *services.CatalogView, syncer SyncRunner) *Handler {
	return &Handler{
		catalog: catalog,
		syncer:  syncer,
	}
}
