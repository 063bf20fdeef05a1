package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/callcoach/backend/internal/models"
	"github.com/callcoach/backend/pkg/queue"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Recording), args.Error(1)
}

func (m *mockStore) UpdateAnalysis(ctx context.Context, id uuid.UUID, a models.Analysis) error {
	return m.Called(ctx, id, a).Error(0)
}

func (m *mockStore) SetAnalysisStatus(ctx context.Context, id uuid.UUID, status models.AnalysisStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockStore) ConfirmUpload(ctx context.Context, id uuid.UUID, fileSize int64, duration int) error {
	return m.Called(ctx, id, fileSize, duration).Error(0)
}

func resultJob(t *testing.T, payload queue.AnalysisResultPayload) *queue.Job {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeAnalysisResult, Payload: body}
}

func pendingRecording() *models.Recording {
	return &models.Recording{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Audio:    models.Audio{FileName: "recordings/u/1-a.mp3"},
		Analysis: models.Analysis{Status: models.AnalysisStatusPending},
	}
}

func TestProcessCompletedResultWritesAnalysisAndConfirmsUpload(t *testing.T) {
	store := new(mockStore)
	p := NewAnalysisProcessor(store, nil, nil)

	rec := pendingRecording()
	analysis := models.Analysis{
		Status:        models.AnalysisStatusCompleted,
		Transcription: "hello",
		Sentiment:     &models.Sentiment{Overall: "positive", Score: 0.7},
		SPIN:          &models.SPIN{Overall: models.SPINOverall{Score: 6.5}},
	}
	store.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	store.On("UpdateAnalysis", mock.Anything, rec.ID, analysis).Return(nil)
	store.On("ConfirmUpload", mock.Anything, rec.ID, int64(4096), 120).Return(nil)

	job := resultJob(t, queue.AnalysisResultPayload{
		RecordingID: rec.ID,
		Status:      models.AnalysisStatusCompleted,
		Analysis:    &analysis,
		FileSize:    4096,
		Duration:    120,
	})
	require.NoError(t, p.Process(context.Background(), job))
	store.AssertExpectations(t)
}

func TestProcessCompletedForcesCompletedStatus(t *testing.T) {
	store := new(mockStore)
	p := NewAnalysisProcessor(store, nil, nil)

	rec := pendingRecording()
	// Engine forgot to stamp the status inside the body.
	body := models.Analysis{Transcription: "hi"}
	store.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	store.On("UpdateAnalysis", mock.Anything, rec.ID, mock.MatchedBy(func(a models.Analysis) bool {
		return a.Status == models.AnalysisStatusCompleted && a.Transcription == "hi"
	})).Return(nil)

	job := resultJob(t, queue.AnalysisResultPayload{
		RecordingID: rec.ID,
		Status:      models.AnalysisStatusCompleted,
		Analysis:    &body,
	})
	require.NoError(t, p.Process(context.Background(), job))
	store.AssertNotCalled(t, "ConfirmUpload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessFailedResultOnlySetsStatus(t *testing.T) {
	store := new(mockStore)
	p := NewAnalysisProcessor(store, nil, nil)

	rec := pendingRecording()
	store.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	store.On("SetAnalysisStatus", mock.Anything, rec.ID, models.AnalysisStatusFailed).Return(nil)

	job := resultJob(t, queue.AnalysisResultPayload{
		RecordingID: rec.ID,
		Status:      models.AnalysisStatusFailed,
	})
	require.NoError(t, p.Process(context.Background(), job))
	store.AssertNotCalled(t, "UpdateAnalysis", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestProcessSkipsAlreadyCompletedRecording(t *testing.T) {
	store := new(mockStore)
	p := NewAnalysisProcessor(store, nil, nil)

	rec := pendingRecording()
	rec.Analysis.Status = models.AnalysisStatusCompleted
	store.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)

	job := resultJob(t, queue.AnalysisResultPayload{
		RecordingID: rec.ID,
		Status:      models.AnalysisStatusCompleted,
		Analysis:    &models.Analysis{},
	})
	require.NoError(t, p.Process(context.Background(), job))
	store.AssertNotCalled(t, "UpdateAnalysis", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewAnalysisProcessor(new(mockStore), nil, nil)

	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "email_digest"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job type")
}

func TestProcessRejectsCompletedWithoutAnalysisBody(t *testing.T) {
	store := new(mockStore)
	p := NewAnalysisProcessor(store, nil, nil)

	rec := pendingRecording()
	store.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)

	job := resultJob(t, queue.AnalysisResultPayload{
		RecordingID: rec.ID,
		Status:      models.AnalysisStatusCompleted,
	})
	err := p.Process(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without analysis body")
}

func TestProcessUnknownRecording(t *testing.T) {
	store := new(mockStore)
	p := NewAnalysisProcessor(store, nil, nil)

	id := uuid.New()
	store.On("GetByID", mock.Anything, id).Return(nil, nil)

	job := resultJob(t, queue.AnalysisResultPayload{
		RecordingID: id,
		Status:      models.AnalysisStatusFailed,
	})
	err := p.Process(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording not found")
}
