package recordings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callcoach/backend/internal/models"
	"github.com/callcoach/backend/pkg/storage"
)

var (
	// ErrInvalidAppointment means the referenced appointment does not exist
	// or does not belong to the caller.
	ErrInvalidAppointment = errors.New("invalid appointment")
	// ErrNotFound covers both a missing recording and one owned by another
	// user; callers must not be able to tell the difference.
	ErrNotFound = errors.New("recording not found")
	// ErrUploadNotConfirmed means the recording row exists but no confirmed
	// object backs it yet (direct flow before the upload lands).
	ErrUploadNotConfirmed = errors.New("recording file not uploaded yet")
)

// Store is the recording persistence the service needs.
type Store interface {
	Create(ctx context.Context, rec *models.Recording) error
	ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.Recording, error)
	GetByUser(ctx context.Context, userID, id uuid.UUID) (*models.Recording, error)
}

// AppointmentFinder resolves appointment references at ingestion time.
type AppointmentFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
}

// ObjectStorage is the storage gateway capability the service consumes.
type ObjectStorage interface {
	IssueUploadCredential(ctx context.Context, ownerID, fileName, contentType string) (*storage.UploadCredential, error)
	IssueDownloadCredential(ctx context.Context, key string) (string, error)
	BufferedUpload(ctx context.Context, ownerID, fileName, contentType string, body io.Reader, size int64) (*storage.StoredObject, error)
}

// IngestResult is the outcome of one ingestion. Credential is set only for
// the direct flow.
type IngestResult struct {
	Recording  *models.Recording
	Credential *storage.UploadCredential
}

// Summary is one row of a recording listing. FileURL is a freshly signed
// short-lived URL, regenerated on every read.
type Summary struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	Duration      string    `json:"duration"`
	Date          string    `json:"date"`
	Analyzed      bool      `json:"analyzed"`
	SpinScore     *float64  `json:"spinScore"`
	Sentiment     *string   `json:"sentiment"`
	FileURL       *string   `json:"fileUrl"`
}

// AnalysisStatusEnvelope is returned while analysis has not completed. It
// never carries partially written analysis fields.
type AnalysisStatusEnvelope struct {
	RecordingID uuid.UUID             `json:"recordingId"`
	Analyzed    bool                  `json:"analyzed"`
	Status      models.AnalysisStatus `json:"status"`
	Message     string                `json:"message"`
}

// SPINCategoryReport is one SPIN dimension with every field present.
type SPINCategoryReport struct {
	Score    float64  `json:"score"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

// SPINReport is the full SPIN breakdown with a stable shape.
type SPINReport struct {
	Situation   SPINCategoryReport `json:"situation"`
	Problem     SPINCategoryReport `json:"problem"`
	Implication SPINCategoryReport `json:"implication"`
	NeedPayoff  SPINCategoryReport `json:"needPayoff"`
}

// AnalysisReport is the completed-analysis response. Absent sub-fields are
// defaulted to zero values so consumers can rely on the shape.
type AnalysisReport struct {
	RecordingID     uuid.UUID          `json:"recordingId"`
	Analyzed        bool               `json:"analyzed"`
	SpinScore       float64            `json:"spinScore"`
	Sentiment       string             `json:"sentiment"`
	SentimentScore  float64            `json:"sentimentScore"`
	Transcription   string             `json:"transcription"`
	SpinAnalysis    SPINReport         `json:"spinAnalysis"`
	Recommendations []string           `json:"recommendations"`
	KeyMoments      []models.KeyMoment `json:"keyMoments"`
}

// DownloadInfo is the payload of a download-URL request.
type DownloadInfo struct {
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
}

// Service implements the ingestion protocol and retrieval surface over the
// recording store, appointment lookups, and the storage gateway.
type Service struct {
	store        Store
	appointments AppointmentFinder
	storage      ObjectStorage
	now          func() time.Time
	logger       *zap.Logger
}

// NewService creates a recordings service. A nil clock means time.Now.
func NewService(store Store, appointments AppointmentFinder, objects ObjectStorage, clock func() time.Time, logger *zap.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, appointments: appointments, storage: objects, now: clock, logger: logger}
}

// Ingest runs one ingestion request through the flow it selects. The target
// appointment must exist and belong to the caller before any storage
// interaction happens; otherwise an abandoned transfer would orphan a row.
func (s *Service) Ingest(ctx context.Context, userID uuid.UUID, req IngestRequest) (*IngestResult, error) {
	appt, err := s.appointments.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	if appt == nil || appt.UserID != userID {
		return nil, ErrInvalidAppointment
	}

	switch req.Flow {
	case FlowProxied:
		if req.Proxied == nil {
			return nil, fmt.Errorf("proxied flow requires a payload")
		}
		return s.ingestProxied(ctx, userID, req)
	case FlowDirect:
		if req.Direct == nil {
			return nil, fmt.Errorf("direct flow requires a file descriptor")
		}
		return s.ingestDirect(ctx, userID, req)
	default:
		return nil, fmt.Errorf("unknown ingestion flow %q", req.Flow)
	}
}

// ingestProxied uploads through the gateway first and creates the row only
// after storage confirms, so a recording never exists without a backing
// object.
func (s *Service) ingestProxied(ctx context.Context, userID uuid.UUID, req IngestRequest) (*IngestResult, error) {
	up := req.Proxied
	obj, err := s.storage.BufferedUpload(ctx, userID.String(), up.FileName, up.ContentType, up.Body, up.Size)
	if err != nil {
		return nil, fmt.Errorf("buffered upload: %w", err)
	}

	rec := s.newRecording(userID, req, up.FileName, up.ContentType)
	rec.Audio.FileName = obj.Key
	rec.Audio.FileURL = obj.PublicURL
	rec.Audio.FileSize = obj.ByteSize

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	s.logger.Info("recording ingested",
		zap.String("recording_id", rec.ID.String()),
		zap.String("flow", string(FlowProxied)),
		zap.String("key", rec.Audio.FileName))
	return &IngestResult{Recording: rec}, nil
}

// ingestDirect issues an upload credential and creates the row immediately
// with fileSize 0. The upload itself happens out-of-band and the service is
// not notified of completion.
func (s *Service) ingestDirect(ctx context.Context, userID uuid.UUID, req IngestRequest) (*IngestResult, error) {
	up := req.Direct
	cred, err := s.storage.IssueUploadCredential(ctx, userID.String(), up.FileName, up.ContentType)
	if err != nil {
		return nil, fmt.Errorf("issue upload credential: %w", err)
	}

	rec := s.newRecording(userID, req, up.FileName, up.ContentType)
	rec.Audio.FileName = cred.Key
	rec.Audio.FileURL = cred.PublicURL
	rec.Audio.FileSize = 0

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	s.logger.Info("recording ingested",
		zap.String("recording_id", rec.ID.String()),
		zap.String("flow", string(FlowDirect)),
		zap.String("key", rec.Audio.FileName))
	return &IngestResult{Recording: rec, Credential: cred}, nil
}

func (s *Service) newRecording(userID uuid.UUID, req IngestRequest, fileName, contentType string) *models.Recording {
	meta := req.Metadata
	if meta.RecordedAt.IsZero() {
		meta.RecordedAt = s.now()
	}
	if meta.DeviceType == "" {
		meta.DeviceType = "unknown"
	}
	if meta.Platform == "" {
		meta.Platform = "unknown"
	}
	return &models.Recording{
		UserID:        userID,
		AppointmentID: req.AppointmentID,
		Title:         fileName,
		Audio: models.Audio{
			Duration: meta.Duration,
			Format:   AudioFormat(contentType),
		},
		Metadata: models.Provenance{
			RecordedAt: meta.RecordedAt,
			DeviceType: meta.DeviceType,
			Platform:   meta.Platform,
		},
		Analysis: models.Analysis{Status: models.AnalysisStatusPending},
	}
}

// List returns the user's recordings with a fresh signed URL per row. Stored
// URLs expire, so regeneration on every read is mandatory.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Summary, error) {
	recs, err := s.store.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		sum := Summary{
			ID:            rec.ID,
			AppointmentID: rec.AppointmentID,
			Duration:      FormatDuration(rec.Audio.Duration),
			Date:          DisplayDate(rec.Metadata.RecordedAt, rec.CreatedAt),
			Analyzed:      rec.Analyzed(),
		}
		if rec.Analysis.SPIN != nil {
			score := rec.Analysis.SPIN.Overall.Score
			sum.SpinScore = &score
		}
		if rec.Analysis.Sentiment != nil {
			overall := rec.Analysis.Sentiment.Overall
			sum.Sentiment = &overall
		}
		if rec.Audio.FileName != "" {
			url, err := s.storage.IssueDownloadCredential(ctx, rec.Audio.FileName)
			if err != nil {
				return nil, fmt.Errorf("sign url for %s: %w", rec.ID, err)
			}
			sum.FileURL = &url
		}
		out = append(out, sum)
	}
	return out, nil
}

// GetAnalysis returns the analysis for the user's recording: a minimal status
// envelope while not completed, the fully defaulted report once it is.
func (s *Service) GetAnalysis(ctx context.Context, userID, id uuid.UUID) (interface{}, error) {
	rec, err := s.store.GetByUser(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}

	if !rec.Analyzed() {
		status := rec.Analysis.Status
		if status == "" {
			status = models.AnalysisStatusPending
		}
		return &AnalysisStatusEnvelope{
			RecordingID: rec.ID,
			Analyzed:    false,
			Status:      status,
			Message:     "Analysis is not yet completed",
		}, nil
	}

	report := &AnalysisReport{
		RecordingID:     rec.ID,
		Analyzed:        true,
		Sentiment:       "neutral",
		Transcription:   rec.Analysis.Transcription,
		Recommendations: []string{},
		KeyMoments:      []models.KeyMoment{},
		SpinAnalysis: SPINReport{
			Situation:   SPINCategoryReport{Examples: []string{}},
			Problem:     SPINCategoryReport{Examples: []string{}},
			Implication: SPINCategoryReport{Examples: []string{}},
			NeedPayoff:  SPINCategoryReport{Examples: []string{}},
		},
	}
	if sent := rec.Analysis.Sentiment; sent != nil {
		if sent.Overall != "" {
			report.Sentiment = sent.Overall
		}
		report.SentimentScore = sent.Score
	}
	if spin := rec.Analysis.SPIN; spin != nil {
		report.SpinScore = spin.Overall.Score
		if len(spin.Overall.Recommendations) > 0 {
			report.Recommendations = spin.Overall.Recommendations
		}
		report.SpinAnalysis.Situation = categoryReport(spin.Situation)
		report.SpinAnalysis.Problem = categoryReport(spin.Problem)
		report.SpinAnalysis.Implication = categoryReport(spin.Implication)
		report.SpinAnalysis.NeedPayoff = categoryReport(spin.NeedPayoff)
	}
	if len(rec.Analysis.KeyMoments) > 0 {
		report.KeyMoments = rec.Analysis.KeyMoments
	}
	return report, nil
}

func categoryReport(c models.SPINCategory) SPINCategoryReport {
	out := SPINCategoryReport{Score: c.Score, Count: c.Count, Examples: []string{}}
	if len(c.Examples) > 0 {
		out.Examples = c.Examples
	}
	return out
}

// DownloadURL returns a fresh signed download URL for the user's recording.
// A recording whose upload is not confirmed (no key, or size still 0) fails
// with ErrUploadNotConfirmed, distinct from ErrNotFound.
func (s *Service) DownloadURL(ctx context.Context, userID, id uuid.UUID) (*DownloadInfo, error) {
	rec, err := s.store.GetByUser(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Audio.FileName == "" || rec.Audio.FileSize == 0 {
		return nil, ErrUploadNotConfirmed
	}

	url, err := s.storage.IssueDownloadCredential(ctx, rec.Audio.FileName)
	if err != nil {
		return nil, fmt.Errorf("issue download credential: %w", err)
	}
	return &DownloadInfo{
		DownloadURL: url,
		FileName:    rec.Title,
		FileSize:    rec.Audio.FileSize,
	}, nil
}
