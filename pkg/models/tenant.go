package models

import (
	"time"
)

// IngestToken authorizes an n8n instance to write on behalf of an organization.
type IngestToken struct {
	Token     string    `json:"-"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is what a verified ingest token grants: the organization every
// write is scoped to, and the token's display name for audit metadata.
type Identity struct {
	OrgID     string `json:"org_id"`
	TokenName string `json:"token_name"`
}
