package recordings

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callcoach/backend/internal/middleware"
	"github.com/callcoach/backend/pkg/response"
)

// PresignedURLRequest is the body for POST /recordings/presigned-url.
type PresignedURLRequest struct {
	FileName      string `json:"fileName"`
	ContentType   string `json:"contentType"`
	AppointmentID string `json:"appointmentId"`
	Metadata      string `json:"metadata"`
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	svc            *Service
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(svc *Service, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// UploadToS3 handles POST /recordings/upload-to-s3 (Flow A): the file travels
// through this service into storage, and the recording row exists only after
// the storage write succeeds.
func (h *Handler) UploadToS3(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "File is required")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.BadRequest(c, "file exceeds the upload size limit")
		return
	}

	appointmentID, err := uuid.Parse(c.PostForm("appointmentId"))
	if err != nil {
		response.BadRequest(c, "Invalid appointmentId")
		return
	}

	body, err := file.Open()
	if err != nil {
		h.logger.Error("open multipart file failed", zap.Error(err))
		response.Internal(c, "failed to read uploaded file")
		return
	}
	defer body.Close()

	result, err := h.svc.Ingest(c.Request.Context(), userID, IngestRequest{
		Flow:          FlowProxied,
		AppointmentID: appointmentID,
		Metadata:      ParseClientMetadata(c.PostForm("metadata")),
		Proxied: &ProxiedUpload{
			FileName:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Body:        body,
			Size:        file.Size,
		},
	})
	if err != nil {
		if errors.Is(err, ErrInvalidAppointment) {
			response.BadRequest(c, "Invalid appointmentId")
			return
		}
		h.logger.Error("proxied upload failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to upload recording")
		return
	}

	response.Created(c, "Uploaded to S3 successfully", result.Recording)
}

// PresignedURL handles POST /recordings/presigned-url (Flow B): validates,
// issues the credential, and creates the recording row before the upload
// happens.
func (h *Handler) PresignedURL(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req PresignedURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if req.FileName == "" || req.ContentType == "" {
		response.BadRequest(c, "fileName and contentType are required")
		return
	}
	if req.AppointmentID == "" {
		response.BadRequest(c, "appointmentId is required")
		return
	}
	appointmentID, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		response.BadRequest(c, "Invalid appointmentId")
		return
	}

	result, err := h.svc.Ingest(c.Request.Context(), userID, IngestRequest{
		Flow:          FlowDirect,
		AppointmentID: appointmentID,
		Metadata:      ParseClientMetadata(req.Metadata),
		Direct: &DirectUpload{
			FileName:    req.FileName,
			ContentType: req.ContentType,
		},
	})
	if err != nil {
		if errors.Is(err, ErrInvalidAppointment) {
			response.BadRequest(c, "Invalid appointmentId")
			return
		}
		h.logger.Error("presigned url issuance failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to generate presigned URL")
		return
	}

	response.OKMessage(c, "Presigned URL generated successfully", gin.H{
		"presignedUrl": result.Credential.URL,
		"fileUrl":      result.Credential.PublicURL,
		"recordingId":  result.Recording.ID,
		"key":          result.Credential.Key,
	})
}

// List handles GET /recordings.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var filter ListFilter
	if v := c.Query("appointmentId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "Invalid appointmentId")
			return
		}
		filter.AppointmentID = &id
	}
	if v := c.Query("analyzed"); v != "" {
		analyzed := v == "true"
		filter.Analyzed = &analyzed
	}
	filter.Limit = intQuery(c, "limit", 50)
	filter.Offset = intQuery(c, "offset", 0)

	list, err := h.svc.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list recordings")
		return
	}
	response.OKMessage(c, "All recordings retrieved successfully.", list)
}

// Download handles GET /recordings/:id/download.
func (h *Handler) Download(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}

	info, err := h.svc.DownloadURL(c.Request.Context(), userID, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "Recording not found or you don't have access to it")
		case errors.Is(err, ErrUploadNotConfirmed):
			response.BadRequest(c, "Recording file not found")
		default:
			h.logger.Error("download url failed", zap.Error(err), zap.String("recording_id", id.String()))
			response.Internal(c, "failed to generate download URL")
		}
		return
	}
	response.OKMessage(c, "Download URL generated successfully", info)
}

// Analysis handles GET /recordings/:id/analysis.
func (h *Handler) Analysis(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}

	data, err := h.svc.GetAnalysis(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Recording not found or you don't have access to it")
			return
		}
		h.logger.Error("get analysis failed", zap.Error(err), zap.String("recording_id", id.String()))
		response.Internal(c, "failed to get analysis")
		return
	}
	response.OK(c, data)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
