// Package worker consumes analysis-result jobs from the queue and writes
// them into recordings. It is the only path that moves a recording's
// analysis out of pending.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callcoach/backend/internal/models"
	"github.com/callcoach/backend/pkg/queue"
)

// RecordingStore is the recording persistence the processor needs.
type RecordingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	UpdateAnalysis(ctx context.Context, id uuid.UUID, a models.Analysis) error
	SetAnalysisStatus(ctx context.Context, id uuid.UUID, status models.AnalysisStatus) error
	ConfirmUpload(ctx context.Context, id uuid.UUID, fileSize int64, duration int) error
}

// JobSource dequeues jobs and re-enqueues failures.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// AnalysisProcessor applies analysis engine output to recordings.
type AnalysisProcessor struct {
	store  RecordingStore
	jobs   JobSource
	logger *zap.Logger
}

// NewAnalysisProcessor creates an analysis result processor.
func NewAnalysisProcessor(store RecordingStore, jobs JobSource, logger *zap.Logger) *AnalysisProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisProcessor{store: store, jobs: jobs, logger: logger}
}

// Process executes one analysis result job.
func (p *AnalysisProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAnalysisResult {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AnalysisResultPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	rec, err := p.store.GetByID(ctx, payload.RecordingID)
	if err != nil {
		return fmt.Errorf("get recording: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("recording not found: %s", payload.RecordingID)
	}
	if rec.Analyzed() {
		p.logger.Info("analysis already completed", zap.String("recording_id", rec.ID.String()))
		return nil
	}

	switch payload.Status {
	case models.AnalysisStatusCompleted:
		if payload.Analysis == nil {
			return fmt.Errorf("completed result without analysis body: %s", payload.RecordingID)
		}
		analysis := *payload.Analysis
		analysis.Status = models.AnalysisStatusCompleted
		if err := p.store.UpdateAnalysis(ctx, rec.ID, analysis); err != nil {
			return fmt.Errorf("update analysis: %w", err)
		}
		// The engine measured the stored object; this confirms presigned-flow
		// uploads whose size the service never saw.
		if payload.FileSize > 0 {
			if err := p.store.ConfirmUpload(ctx, rec.ID, payload.FileSize, payload.Duration); err != nil {
				return fmt.Errorf("confirm upload: %w", err)
			}
		}
	case models.AnalysisStatusProcessing, models.AnalysisStatusFailed:
		if err := p.store.SetAnalysisStatus(ctx, rec.ID, payload.Status); err != nil {
			return fmt.Errorf("set analysis status: %w", err)
		}
	default:
		return fmt.Errorf("unexpected analysis status %q for %s", payload.Status, payload.RecordingID)
	}

	p.logger.Info("analysis result applied",
		zap.String("recording_id", rec.ID.String()),
		zap.String("status", string(payload.Status)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. Returns when
// ctx is cancelled.
func (p *AnalysisProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("analysis worker stopping")
			return
		default:
		}

		job, _, err := p.jobs.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
