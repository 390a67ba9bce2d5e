package handlers

import (
	"github.com/jmoiron/sqlx"

	"brickstock/internal/config"
	"brickstock/internal/services"
)

type Deps struct {
	SetsHandler      *SetsHandler
	InventoryHandler *InventoryHandler
	CatalogHandler   *CatalogHandler
	DashboardHandler *DashboardHandler

	Inv *services.InventoryService
}

// NewDeps wires repositories, services and handlers off one DB handle and one
// long-lived catalog client. The catalog is passed in, never looked up, so
// tests can substitute a stub.
func NewDeps(db *sqlx.DB, cfg config.Config, cat services.Catalog) *Deps {
	invSvc := services.NewInventoryService(db, cat, cfg.QtyPolicy)

	return &Deps{
		SetsHandler:      &SetsHandler{Inv: invSvc},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		CatalogHandler:   &CatalogHandler{Inv: invSvc},
		DashboardHandler: &DashboardHandler{Inv: invSvc},
		Inv:              invSvc,
	}
}
