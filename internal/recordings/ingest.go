package recordings

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
)

// Flow selects the ingestion path for a recording.
type Flow string

const (
	// FlowProxied streams the payload through this service into storage.
	// Simple and atomic, but bounded by the request size cap.
	FlowProxied Flow = "proxied"
	// FlowDirect hands the client a presigned URL and lets it upload straight
	// to storage. Scales to any size; completion is unconfirmed.
	FlowDirect Flow = "direct"
)

// ProxiedUpload carries the payload for FlowProxied.
type ProxiedUpload struct {
	FileName    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// DirectUpload names the object a FlowDirect client intends to upload.
type DirectUpload struct {
	FileName    string
	ContentType string
}

// IngestRequest is one ingestion request. Exactly one variant matching Flow
// must be set.
type IngestRequest struct {
	Flow          Flow
	AppointmentID uuid.UUID
	Metadata      ClientMetadata
	Proxied       *ProxiedUpload
	Direct        *DirectUpload
}

// ClientMetadata is client-reported capture context, unvalidated beyond
// defaulting.
type ClientMetadata struct {
	Duration   int       `json:"duration"`
	RecordedAt time.Time `json:"recordedAt"`
	DeviceType string    `json:"deviceType"`
	Platform   string    `json:"platform"`
}

// ParseClientMetadata decodes the optional metadata JSON string. Anything
// unparseable degrades to empty metadata rather than failing the upload.
func ParseClientMetadata(raw string) ClientMetadata {
	var m ClientMetadata
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return ClientMetadata{}
	}
	return m
}
