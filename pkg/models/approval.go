package models

import (
	"encoding/json"
	"fmt"
)

// ApprovalType identifies what a pending approval is about.
type ApprovalType string

const (
	ApprovalTypeOrder        ApprovalType = "order"
	ApprovalTypeLinkedInPost ApprovalType = "linkedin_post"
	ApprovalTypeGmailReply   ApprovalType = "gmail_reply"
)

var ApprovalTypes = []ApprovalType{ApprovalTypeOrder, ApprovalTypeLinkedInPost, ApprovalTypeGmailReply}

func (t ApprovalType) Valid() bool {
	for _, v := range ApprovalTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ApprovalStatusPending is the only status this service ever writes.
const ApprovalStatusPending = "pending"

// ApprovalEventCreated is appended once for every ingested approval.
const ApprovalEventCreated = "created"

// StorageProvider says where an asset's bytes live.
type StorageProvider string

const (
	StorageProviderMinio    StorageProvider = "minio"
	StorageProviderS3       StorageProvider = "s3"
	StorageProviderExternal StorageProvider = "external"
	StorageProviderLocal    StorageProvider = "local"
)

var StorageProviders = []StorageProvider{StorageProviderMinio, StorageProviderS3, StorageProviderExternal, StorageProviderLocal}

func (p StorageProvider) Valid() bool {
	for _, v := range StorageProviders {
		if p == v {
			return true
		}
	}
	return false
}

// AssetPayload is one attachment of an approval request.
type AssetPayload struct {
	Role            string  `json:"role"`
	StorageProvider string  `json:"storage_provider,omitempty"`
	StorageKey      *string `json:"storage_key,omitempty"`
	ExternalURL     string  `json:"external_url"`
	Filename        *string `json:"filename,omitempty"`
	MimeType        *string `json:"mime_type,omitempty"`
	SizeBytes       *int64  `json:"size_bytes,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. role and external_url must be
// present and non-null.
func (a *AssetPayload) UnmarshalJSON(data []byte) error {
	type plain AssetPayload
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if err := requireFields(data, "role", "external_url"); err != nil {
		return fmt.Errorf("asset: %w", err)
	}
	*a = AssetPayload(decoded)
	return nil
}

// ApprovalIngestPayload is the body n8n posts to request a human approval.
type ApprovalIngestPayload struct {
	Type                 string         `json:"type"`
	Title                string         `json:"title"`
	Preview              Document       `json:"preview"`
	Data                 Document       `json:"data"`
	N8NExecuteWebhookURL string         `json:"n8n_execute_webhook_url"`
	Assets               []AssetPayload `json:"assets,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. Every required field must be
// present and non-null; empty strings are left for the ingestor to judge.
func (p *ApprovalIngestPayload) UnmarshalJSON(data []byte) error {
	type plain ApprovalIngestPayload
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if err := requireFields(data, "type", "title", "preview", "data", "n8n_execute_webhook_url"); err != nil {
		return err
	}
	*p = ApprovalIngestPayload(decoded)
	return nil
}

// Validate checks the documents and fills asset defaults. Enum values are
// checked by the ingestor.
func (p *ApprovalIngestPayload) Validate() error {
	switch {
	case p.Preview == nil:
		return fmt.Errorf("%w: preview is required", ErrInvalidPayload)
	case p.Data == nil:
		return fmt.Errorf("%w: data is required", ErrInvalidPayload)
	}
	for i := range p.Assets {
		if p.Assets[i].StorageProvider == "" {
			p.Assets[i].StorageProvider = string(StorageProviderMinio)
		}
	}
	return nil
}

// Approval is a pending decision created from an n8n workflow.
type Approval struct {
	ID                   string       `json:"id"`
	OrgID                string       `json:"org_id"`
	Type                 ApprovalType `json:"type"`
	Status               string       `json:"status"`
	Title                string       `json:"title"`
	Preview              Document     `json:"preview"`
	Data                 Document     `json:"data"`
	N8NExecuteWebhookURL string       `json:"n8n_execute_webhook_url"`
}

// ApprovalAsset is a stored reference to a file attached to an approval.
type ApprovalAsset struct {
	ID              string          `json:"id"`
	ApprovalID      string          `json:"approval_id"`
	Position        int             `json:"position"`
	Role            string          `json:"role"`
	StorageProvider StorageProvider `json:"storage_provider"`
	StorageKey      *string         `json:"storage_key,omitempty"`
	ExternalURL     string          `json:"external_url"`
	Filename        *string         `json:"filename,omitempty"`
	MimeType        *string         `json:"mime_type,omitempty"`
	SizeBytes       *int64          `json:"size_bytes,omitempty"`
}

// ApprovalEvent is an append-only audit entry.
type ApprovalEvent struct {
	ID         string   `json:"id"`
	ApprovalID string   `json:"approval_id"`
	Event      string   `json:"event"`
	Metadata   Document `json:"metadata"`
}
