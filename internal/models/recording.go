package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisStatus represents the analysis lifecycle of a recording.
type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// Audio holds storage location and derived file attributes of a recording.
// FileName is the storage key within the bucket namespace; FileSize stays 0
// for presigned-flow recordings until the upload is confirmed.
type Audio struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	FileSize int64  `json:"fileSize"`
	Duration int    `json:"duration"`
	Format   string `json:"format"`
}

// Provenance is free-form client-reported capture context.
type Provenance struct {
	RecordedAt time.Time `json:"recordedAt"`
	DeviceType string    `json:"deviceType"`
	Platform   string    `json:"platform"`
}

// SPINCategory is one SPIN dimension (situation/problem/implication/needPayoff).
type SPINCategory struct {
	Score    float64  `json:"score"`
	Count    int      `json:"count"`
	Examples []string `json:"examples,omitempty"`
}

// SPINOverall is the aggregate SPIN score with coaching recommendations.
type SPINOverall struct {
	Score           float64  `json:"score"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// SPIN is the full sales-conversation breakdown.
type SPIN struct {
	Situation   SPINCategory `json:"situation"`
	Problem     SPINCategory `json:"problem"`
	Implication SPINCategory `json:"implication"`
	NeedPayoff  SPINCategory `json:"needPayoff"`
	Overall     SPINOverall  `json:"overall"`
}

// Sentiment is the overall sentiment label and numeric score.
type Sentiment struct {
	Overall string  `json:"overall"`
	Score   float64 `json:"score"`
}

// KeyMoment marks a notable point in the conversation (offset in seconds).
type KeyMoment struct {
	Timestamp   int    `json:"timestamp"`
	Description string `json:"description"`
}

// Analysis is owned by the out-of-process analysis engine: this service only
// creates it with status pending and reads it back. Results land via the
// worker.
type Analysis struct {
	Status        AnalysisStatus `json:"status"`
	Transcription string         `json:"transcription,omitempty"`
	Sentiment     *Sentiment     `json:"sentiment,omitempty"`
	SPIN          *SPIN          `json:"spin,omitempty"`
	KeyMoments    []KeyMoment    `json:"keyMoments,omitempty"`
}

// Recording is a stored call/meeting audio recording tied to an appointment.
type Recording struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	AppointmentID uuid.UUID  `json:"appointmentId"`
	Title         string     `json:"title"`
	Audio         Audio      `json:"audio"`
	Metadata      Provenance `json:"metadata"`
	Analysis      Analysis   `json:"analysis"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Analyzed reports whether analysis finished successfully. Anything short of
// completed, including failed, counts as not analyzed.
func (r *Recording) Analyzed() bool {
	return r.Analysis.Status == AnalysisStatusCompleted
}
