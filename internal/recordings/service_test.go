package recordings

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/callcoach/backend/internal/models"
	"github.com/callcoach/backend/pkg/storage"
)

// Mock dependencies

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, rec *models.Recording) error {
	args := m.Called(ctx, rec)
	if rec != nil && rec.ID == uuid.Nil {
		rec.ID = uuid.New()
		rec.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockStore) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.Recording, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Recording), args.Error(1)
}

func (m *MockStore) GetByUser(ctx context.Context, userID, id uuid.UUID) (*models.Recording, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Recording), args.Error(1)
}

type MockAppointments struct {
	mock.Mock
}

func (m *MockAppointments) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) IssueUploadCredential(ctx context.Context, ownerID, fileName, contentType string) (*storage.UploadCredential, error) {
	args := m.Called(ctx, ownerID, fileName, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.UploadCredential), args.Error(1)
}

func (m *MockStorage) IssueDownloadCredential(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) BufferedUpload(ctx context.Context, ownerID, fileName, contentType string, body io.Reader, size int64) (*storage.StoredObject, error) {
	args := m.Called(ctx, ownerID, fileName, contentType, body, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.StoredObject), args.Error(1)
}

var testClock = func() time.Time {
	return time.Date(2025, 5, 20, 10, 30, 0, 0, time.UTC)
}

func newTestService(store *MockStore, appts *MockAppointments, objects *MockStorage) *Service {
	return NewService(store, appts, objects, testClock, nil)
}

func ownedAppointment(userID uuid.UUID) *models.Appointment {
	return &models.Appointment{ID: uuid.New(), UserID: userID, Title: "Demo call"}
}

func TestIngestProxiedCreatesPendingRecording(t *testing.T) {
	store := new(MockStore)
	appts := new(MockAppointments)
	objects := new(MockStorage)
	svc := newTestService(store, appts, objects)

	userID := uuid.New()
	appt := ownedAppointment(userID)
	appts.On("GetByID", mock.Anything, appt.ID).Return(appt, nil)
	objects.On("BufferedUpload", mock.Anything, userID.String(), "call.mp3", "audio/mpeg", mock.Anything, int64(1234)).
		Return(&storage.StoredObject{
			Key:       "recordings/" + userID.String() + "/1-call.mp3",
			PublicURL: "https://bucket.s3.us-east-1.amazonaws.com/recordings/x",
			ByteSize:  1234,
		}, nil)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Ingest(context.Background(), userID, IngestRequest{
		Flow:          FlowProxied,
		AppointmentID: appt.ID,
		Metadata:      ClientMetadata{Duration: 65},
		Proxied: &ProxiedUpload{
			FileName:    "call.mp3",
			ContentType: "audio/mpeg",
			Body:        strings.NewReader("audio bytes"),
			Size:        1234,
		},
	})
	require.NoError(t, err)

	rec := result.Recording
	assert.Equal(t, models.AnalysisStatusPending, rec.Analysis.Status)
	assert.Equal(t, "recordings/"+userID.String()+"/1-call.mp3", rec.Audio.FileName)
	assert.Equal(t, int64(1234), rec.Audio.FileSize)
	assert.Equal(t, 65, rec.Audio.Duration)
	assert.Equal(t, "mpeg", rec.Audio.Format)
	assert.Equal(t, "call.mp3", rec.Title)
	assert.Equal(t, "unknown", rec.Metadata.DeviceType)
	assert.Equal(t, testClock(), rec.Metadata.RecordedAt)
	assert.Nil(t, result.Credential)
	store.AssertExpectations(t)
}

func TestIngestProxiedStorageFailureCreatesNoRow(t *testing.T) {
	store := new(MockStore)
	appts := new(MockAppointments)
	objects := new(MockStorage)
	svc := newTestService(store, appts, objects)

	userID := uuid.New()
	appt := ownedAppointment(userID)
	appts.On("GetByID", mock.Anything, appt.ID).Return(appt, nil)
	objects.On("BufferedUpload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("storage unavailable"))

	_, err := svc.Ingest(context.Background(), userID, IngestRequest{
		Flow:          FlowProxied,
		AppointmentID: appt.ID,
		Proxied: &ProxiedUpload{
			FileName:    "call.mp3",
			ContentType: "audio/mpeg",
			Body:        strings.NewReader("x"),
			Size:        1,
		},
	})
	require.Error(t, err)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngestRejectsUnknownAppointment(t *testing.T) {
	store := new(MockStore)
	appts := new(MockAppointments)
	objects := new(MockStorage)
	svc := newTestService(store, appts, objects)

	apptID := uuid.New()
	appts.On("GetByID", mock.Anything, apptID).Return(nil, nil)

	_, err := svc.Ingest(context.Background(), uuid.New(), IngestRequest{
		Flow:          FlowDirect,
		AppointmentID: apptID,
		Direct:        &DirectUpload{FileName: "a.mp3", ContentType: "audio/mpeg"},
	})
	assert.ErrorIs(t, err, ErrInvalidAppointment)
	objects.AssertNotCalled(t, "IssueUploadCredential", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngestRejectsForeignAppointment(t *testing.T) {
	store := new(MockStore)
	appts := new(MockAppointments)
	objects := new(MockStorage)
	svc := newTestService(store, appts, objects)

	appt := ownedAppointment(uuid.New()) // someone else's
	appts.On("GetByID", mock.Anything, appt.ID).Return(appt, nil)

	_, err := svc.Ingest(context.Background(), uuid.New(), IngestRequest{
		Flow:          FlowDirect,
		AppointmentID: appt.ID,
		Direct:        &DirectUpload{FileName: "a.mp3", ContentType: "audio/mpeg"},
	})
	assert.ErrorIs(t, err, ErrInvalidAppointment)
}

func TestIngestDirectCreatesUnconfirmedRecording(t *testing.T) {
	store := new(MockStore)
	appts := new(MockAppointments)
	objects := new(MockStorage)
	svc := newTestService(store, appts, objects)

	userID := uuid.New()
	appt := ownedAppointment(userID)
	appts.On("GetByID", mock.Anything, appt.ID).Return(appt, nil)
	objects.On("IssueUploadCredential", mock.Anything, userID.String(), "big.wav", "audio/wav").
		Return(&storage.UploadCredential{
			URL:       "https://signed.example/put",
			Key:       "recordings/" + userID.String() + "/2-big.wav",
			PublicURL: "https://bucket/recordings/2-big.wav",
		}, nil)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Ingest(context.Background(), userID, IngestRequest{
		Flow:          FlowDirect,
		AppointmentID: appt.ID,
		Direct:        &DirectUpload{FileName: "big.wav", ContentType: "audio/wav"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Recording.Audio.FileSize)
	assert.Equal(t, models.AnalysisStatusPending, result.Recording.Analysis.Status)
	assert.Equal(t, "recordings/"+userID.String()+"/2-big.wav", result.Recording.Audio.FileName)
	require.NotNil(t, result.Credential)
	assert.Equal(t, "https://signed.example/put", result.Credential.URL)
	store.AssertExpectations(t)
}

func TestListSignsFreshURLPerRecording(t *testing.T) {
	store := new(MockStore)
	appts := new(MockAppointments)
	objects := new(MockStorage)
	svc := newTestService(store, appts, objects)

	userID := uuid.New()
	score := 7.5
	recs := []models.Recording{
		{
			ID:            uuid.New(),
			AppointmentID: uuid.New(),
			Audio:         models.Audio{FileName: "recordings/u/1-a.mp3", Duration: 65},
			Metadata:      models.Provenance{RecordedAt: time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC)},
			Analysis: models.Analysis{
				Status:    models.AnalysisStatusCompleted,
				Sentiment: &models.Sentiment{Overall: "positive", Score: 0.8},
				SPIN:      &models.SPIN{Overall: models.SPINOverall{Score: score}},
			},
		},
		{
			ID:            uuid.New(),
			AppointmentID: uuid.New(),
			Audio:         models.Audio{FileName: "recordings/u/2-b.mp3"},
			CreatedAt:     time.Date(2025, 4, 1, 1, 0, 0, 0, time.UTC),
			Analysis:      models.Analysis{Status: models.AnalysisStatusFailed},
		},
	}
	filter := ListFilter{Limit: 2, Offset: 1}
	store.On("ListByUser", mock.Anything, userID, filter).Return(recs, nil)
	objects.On("IssueDownloadCredential", mock.Anything, "recordings/u/1-a.mp3").Return("https://signed/1", nil).Once()
	objects.On("IssueDownloadCredential", mock.Anything, "recordings/u/2-b.mp3").Return("https://signed/2", nil).Once()

	list, err := svc.List(context.Background(), userID, filter)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "01:05", list[0].Duration)
	assert.Equal(t, "2025-03-14", list[0].Date)
	assert.True(t, list[0].Analyzed)
	require.NotNil(t, list[0].SpinScore)
	assert.Equal(t, 7.5, *list[0].SpinScore)
	require.NotNil(t, list[0].FileURL)
	assert.Equal(t, "https://signed/1", *list[0].FileURL)

	// failed counts as not analyzed
	assert.False(t, list[1].Analyzed)
	assert.Equal(t, "00:00", list[1].Duration)
	assert.Equal(t, "2025-04-01", list[1].Date)
	assert.Nil(t, list[1].SpinScore)

	objects.AssertExpectations(t)
}

func TestGetAnalysisPendingEnvelopeIsMinimal(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, new(MockAppointments), new(MockStorage))

	userID := uuid.New()
	rec := &models.Recording{ID: uuid.New(), UserID: userID, Analysis: models.Analysis{Status: models.AnalysisStatusPending}}
	store.On("GetByUser", mock.Anything, userID, rec.ID).Return(rec, nil)

	data, err := svc.GetAnalysis(context.Background(), userID, rec.ID)
	require.NoError(t, err)

	env, ok := data.(*AnalysisStatusEnvelope)
	require.True(t, ok)
	assert.False(t, env.Analyzed)
	assert.Equal(t, models.AnalysisStatusPending, env.Status)

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "transcription")
	assert.NotContains(t, string(raw), "spinAnalysis")
	assert.NotContains(t, string(raw), "recommendations")
}

func TestGetAnalysisCompletedDefaultsEveryField(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, new(MockAppointments), new(MockStorage))

	userID := uuid.New()
	rec := &models.Recording{ID: uuid.New(), UserID: userID, Analysis: models.Analysis{Status: models.AnalysisStatusCompleted}}
	store.On("GetByUser", mock.Anything, userID, rec.ID).Return(rec, nil)

	data, err := svc.GetAnalysis(context.Background(), userID, rec.ID)
	require.NoError(t, err)

	report, ok := data.(*AnalysisReport)
	require.True(t, ok)
	assert.True(t, report.Analyzed)
	assert.Equal(t, "neutral", report.Sentiment)
	assert.Zero(t, report.SpinScore)
	assert.NotNil(t, report.Recommendations)
	assert.Empty(t, report.Recommendations)
	assert.NotNil(t, report.KeyMoments)
	assert.NotNil(t, report.SpinAnalysis.Situation.Examples)
}

func TestGetAnalysisCompletedMapsFullBreakdown(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, new(MockAppointments), new(MockStorage))

	userID := uuid.New()
	rec := &models.Recording{
		ID:     uuid.New(),
		UserID: userID,
		Analysis: models.Analysis{
			Status:        models.AnalysisStatusCompleted,
			Transcription: "hello there",
			Sentiment:     &models.Sentiment{Overall: "positive", Score: 0.9},
			SPIN: &models.SPIN{
				Situation: models.SPINCategory{Score: 8, Count: 3, Examples: []string{"tell me about your setup"}},
				Overall:   models.SPINOverall{Score: 7.2, Recommendations: []string{"ask more implication questions"}},
			},
			KeyMoments: []models.KeyMoment{{Timestamp: 42, Description: "pricing objection"}},
		},
	}
	store.On("GetByUser", mock.Anything, userID, rec.ID).Return(rec, nil)

	data, err := svc.GetAnalysis(context.Background(), userID, rec.ID)
	require.NoError(t, err)

	report := data.(*AnalysisReport)
	assert.Equal(t, 7.2, report.SpinScore)
	assert.Equal(t, "positive", report.Sentiment)
	assert.Equal(t, 0.9, report.SentimentScore)
	assert.Equal(t, "hello there", report.Transcription)
	assert.Equal(t, []string{"tell me about your setup"}, report.SpinAnalysis.Situation.Examples)
	assert.Equal(t, []string{"ask more implication questions"}, report.Recommendations)
	require.Len(t, report.KeyMoments, 1)
	assert.Equal(t, 42, report.KeyMoments[0].Timestamp)
	// dimensions absent from the engine output still keep the stable shape
	assert.Zero(t, report.SpinAnalysis.Problem.Score)
	assert.NotNil(t, report.SpinAnalysis.Problem.Examples)
}

func TestGetAnalysisForeignRecordingIsNotFound(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, new(MockAppointments), new(MockStorage))

	userID := uuid.New()
	id := uuid.New()
	store.On("GetByUser", mock.Anything, userID, id).Return(nil, nil)

	_, err := svc.GetAnalysis(context.Background(), userID, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDownloadURLUnconfirmedUploadFailsDistinctly(t *testing.T) {
	store := new(MockStore)
	objects := new(MockStorage)
	svc := newTestService(store, new(MockAppointments), objects)

	userID := uuid.New()
	rec := &models.Recording{
		ID:     uuid.New(),
		UserID: userID,
		Audio:  models.Audio{FileName: "recordings/u/3-c.mp3", FileSize: 0},
	}
	store.On("GetByUser", mock.Anything, userID, rec.ID).Return(rec, nil)

	_, err := svc.DownloadURL(context.Background(), userID, rec.ID)
	assert.ErrorIs(t, err, ErrUploadNotConfirmed)
	assert.NotErrorIs(t, err, ErrNotFound)
	objects.AssertNotCalled(t, "IssueDownloadCredential", mock.Anything, mock.Anything)
}

func TestDownloadURLConfirmedUpload(t *testing.T) {
	store := new(MockStore)
	objects := new(MockStorage)
	svc := newTestService(store, new(MockAppointments), objects)

	userID := uuid.New()
	rec := &models.Recording{
		ID:     uuid.New(),
		UserID: userID,
		Title:  "call.mp3",
		Audio:  models.Audio{FileName: "recordings/u/4-call.mp3", FileSize: 2048},
	}
	store.On("GetByUser", mock.Anything, userID, rec.ID).Return(rec, nil)
	objects.On("IssueDownloadCredential", mock.Anything, "recordings/u/4-call.mp3").Return("https://signed/dl", nil)

	info, err := svc.DownloadURL(context.Background(), userID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/dl", info.DownloadURL)
	assert.Equal(t, "call.mp3", info.FileName)
	assert.Equal(t, int64(2048), info.FileSize)
}

func TestDownloadURLNotFound(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, new(MockAppointments), new(MockStorage))

	userID := uuid.New()
	id := uuid.New()
	store.On("GetByUser", mock.Anything, userID, id).Return(nil, nil)

	_, err := svc.DownloadURL(context.Background(), userID, id)
	assert.ErrorIs(t, err, ErrNotFound)
}
