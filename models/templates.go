// ABOUTME: Contract template model
// ABOUTME: Block-structured rich text bodies with {{ placeholders }}
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/render"
)

type ContractTemplate struct {
	ID           uuid.UUID      `json:"id"`
	ConferenceID uuid.UUID      `json:"conference_id"`
	Title        string         `json:"title"`
	Blocks       []render.Block `json:"blocks"`
	IsDefault    bool           `json:"is_default"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
