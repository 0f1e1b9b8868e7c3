package types

import (
	"encoding/hex"
	"net/http"
	"time"

	"go.hackfix.me/strata/db/models"
)

// Migration is an entry of the migrations ledger.
type Migration struct {
	Version       int64     `json:"version"`
	Description   string    `json:"description"`
	InstalledOn   time.Time `json:"installed_on"`
	Success       bool      `json:"success"`
	Checksum      string    `json:"checksum"`
	ExecutionTime string    `json:"execution_time"`
}

// MigrationsResponse lists the migrations applied to the database.
type MigrationsResponse struct {
	Response
	Database   string      `json:"database"`
	Migrations []Migration `json:"migrations"`
}

// NewMigrationsResponse returns a new response with the given ledger entries.
func NewMigrationsResponse(database string, applied []*models.AppliedMigration) *MigrationsResponse {
	resp := &MigrationsResponse{
		Response:   *NewResponse(http.StatusOK, nil),
		Database:   database,
		Migrations: make([]Migration, 0, len(applied)),
	}
	for _, am := range applied {
		resp.Migrations = append(resp.Migrations, Migration{
			Version:       am.Version,
			Description:   am.Description,
			InstalledOn:   am.InstalledOn.UTC(),
			Success:       am.Success,
			Checksum:      hex.EncodeToString(am.Checksum),
			ExecutionTime: am.ExecutionTime.String(),
		})
	}

	return resp
}

// HealthResponse reports the state of the server.
type HealthResponse struct {
	Response
	// PassID identifies the migrations pass run at startup.
	PassID  string `json:"pass_id"`
	Applied int    `json:"applied"`
}
