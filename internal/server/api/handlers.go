package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mvasilkovs/astrobatch/internal/common"
	"github.com/mvasilkovs/astrobatch/internal/logging"
	"github.com/mvasilkovs/astrobatch/internal/server/models"
	"github.com/mvasilkovs/astrobatch/internal/server/services"
)

// UploadService is the initiation/confirmation surface the handlers call.
type UploadService interface {
	InitiateBatch(ctx context.Context, p services.InitiateBatchParams) (*services.InitiateBatchResult, error)
	ConfirmUpload(ctx context.Context, p services.ConfirmUploadParams) error
}

// BatchService accepts the archival worker's outcome reports.
type BatchService interface {
	CompleteBatch(ctx context.Context, p services.CompleteBatchParams) error
}

// ImageService serves the gallery read paths and deletion.
type ImageService interface {
	List(ctx context.Context, p services.ListImagesParams) (*services.ImagePage, error)
	Count(ctx context.Context) (int64, error)
	PresignDownload(ctx context.Context, storageKey string) (string, error)
	Delete(ctx context.Context, userID int64, isAdmin bool, storageKey string) error
}

// TargetService lists the target catalog.
type TargetService interface {
	List(ctx context.Context) ([]*models.Target, error)
}

// Handlers binds the HTTP surface to the services.
type Handlers struct {
	uploads UploadService
	batches BatchService
	images  ImageService
	targets TargetService
	logger  logging.Logger
}

func NewHandlers(uploads UploadService, batches BatchService, images ImageService,
	targets TargetService, logger logging.Logger) *Handlers {
	return &Handlers{
		uploads: uploads,
		batches: batches,
		images:  images,
		targets: targets,
		logger:  logger.With("module", "api"),
	}
}

// respondError maps service errors to opaque codes. Anything unmapped is a
// generic 500 with the detail logged server-side only.
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrMissingField):
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeUploadMissingFields})
	case errors.Is(err, common.ErrInvalidImageType):
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeUploadInvalidImageType})
	case errors.Is(err, common.ErrEmptyFileList):
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeUploadMissingFields})
	case errors.Is(err, common.ErrBatchTooLarge):
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeUploadBatchTooLarge})
	case errors.Is(err, common.ErrActiveBatchExists):
		c.JSON(http.StatusConflict, errorResponse{ErrorCode: codeUploadActiveBatch})
	case errors.Is(err, common.ErrInvalidStatusTransition):
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeBatchCompleteInvalid})
	case errors.Is(err, common.ErrorForbidden):
		c.JSON(http.StatusForbidden, errorResponse{ErrorCode: codeForbidden})
	default:
		h.logger.Error(c.Request.Context(), "request failed",
			"path", c.Request.URL.Path, "error", err.Error())
		c.JSON(http.StatusInternalServerError, errorResponse{ErrorCode: codeServerError})
	}
}

type initiateBatchRequest struct {
	FinalTargetName string   `json:"finalTargetName"`
	ProjectName     string   `json:"project_name"`
	ImageType       string   `json:"image_type"`
	Filenames       []string `json:"filenames"`
}

type initiateBatchResponse struct {
	Message   string                     `json:"message"`
	ProjectID int64                      `json:"project_id"`
	BatchID   int64                      `json:"batch_id"`
	Uploads   []services.BatchUploadSlot `json:"uploads"`
}

// InitiateBatch handles POST /uploads.
func (h *Handlers) InitiateBatch(c *gin.Context) {
	var req initiateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeUploadMissingFields})
		return
	}

	userID, username, _ := callerIdentity(c)
	result, err := h.uploads.InitiateBatch(c.Request.Context(), services.InitiateBatchParams{
		UserID:      userID,
		Username:    username,
		TargetName:  req.FinalTargetName,
		ProjectName: req.ProjectName,
		ImageType:   models.ImageType(req.ImageType),
		Filenames:   req.Filenames,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, initiateBatchResponse{
		Message:   "Batch created and ready for upload.",
		ProjectID: result.ProjectID,
		BatchID:   result.BatchID,
		Uploads:   result.Uploads,
	})
}

type confirmUploadRequest struct {
	S3Bucket    string  `json:"s3Bucket"`
	S3Key       string  `json:"s3Key"`
	Size        *int64  `json:"size"`
	ContentType *string `json:"contentType"`
}

// ConfirmUpload handles POST /uploads/confirm, the file-landed notification.
// A notification whose pending record is gone still answers 200 so retried
// deliveries terminate.
func (h *Handlers) ConfirmUpload(c *gin.Context) {
	var req confirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.S3Bucket == "" || req.S3Key == "" || req.Size == nil {
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeConfirmMissingDetails})
		return
	}

	err := h.uploads.ConfirmUpload(c.Request.Context(), services.ConfirmUploadParams{
		StorageBucket: req.S3Bucket,
		StorageKey:    req.S3Key,
		Size:          *req.Size,
		ContentType:   req.ContentType,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{MessageCode: codeConfirmSuccess})
}

type completeBatchRequest struct {
	BatchID         int64  `json:"batch_id"`
	Status          string `json:"status"`
	ZipFileLocation string `json:"zip_file_location"`
	ErrorMessage    string `json:"error_message"`
}

// CompleteBatch handles POST /batch-complete, the archival worker callback.
func (h *Handlers) CompleteBatch(c *gin.Context) {
	var req completeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeBatchCompleteInvalid})
		return
	}

	err := h.batches.CompleteBatch(c.Request.Context(), services.CompleteBatchParams{
		BatchID:        req.BatchID,
		Status:         models.BatchStatus(req.Status),
		ZippedLocation: req.ZipFileLocation,
		ErrorMessage:   req.ErrorMessage,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{MessageCode: codeBatchCompleteOK})
}

type imageListItem struct {
	ImageID           int64    `json:"image_id"`
	UserID            int64    `json:"user_id"`
	TargetID          int64    `json:"target_id"`
	S3Key             string   `json:"s3_key"`
	OriginalFilename  string   `json:"original_filename"`
	FileSizeBytes     int64    `json:"file_size_bytes"`
	ContentType       *string  `json:"content_type"`
	FocalLength       *int64   `json:"focal_length"`
	ExposureTime      *float64 `json:"exposure_time"`
	FiltersUsed       *string  `json:"filters_used"`
	TelescopeType     *string  `json:"telescope_type"`
	CameraModel       *string  `json:"camera_model"`
	CreatedAt         string   `json:"created_at"`
	TargetName        string   `json:"target_name"`
	TargetDescription *string  `json:"target_description"`
}

type paginationInfo struct {
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
}

type imageListResponse struct {
	Images     []imageListItem `json:"images"`
	Pagination paginationInfo  `json:"pagination"`
}

// ListImages handles GET /images with optional target and focalLength
// filters plus page/limit pagination.
func (h *Handlers) ListImages(c *gin.Context) {
	params := services.ListImagesParams{Page: 1, Limit: 25}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeInvalidParameter, Parameter: "page"})
			return
		}
		params.Page = page
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeInvalidParameter, Parameter: "limit"})
			return
		}
		params.Limit = limit
	}
	if target := c.Query("target"); target != "" {
		params.TargetName = &target
	}
	if raw := c.Query("focalLength"); raw != "" {
		focal, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeInvalidParameter, Parameter: "focalLength"})
			return
		}
		params.FocalLength = &focal
	}

	page, err := h.images.List(c.Request.Context(), params)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]imageListItem, 0, len(page.Images))
	for _, img := range page.Images {
		items = append(items, imageListItem{
			ImageID:           img.ID,
			UserID:            img.UserID,
			TargetID:          img.TargetID,
			S3Key:             img.StorageKey,
			OriginalFilename:  img.OriginalFilename,
			FileSizeBytes:     img.FileSizeBytes,
			ContentType:       img.ContentType,
			FocalLength:       img.FocalLength,
			ExposureTime:      img.ExposureTime,
			FiltersUsed:       img.FiltersUsed,
			TelescopeType:     img.TelescopeType,
			CameraModel:       img.CameraModel,
			CreatedAt:         img.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			TargetName:        img.TargetName,
			TargetDescription: img.TargetDescription,
		})
	}

	c.JSON(http.StatusOK, imageListResponse{
		Images: items,
		Pagination: paginationInfo{
			CurrentPage: page.Page,
			Limit:       page.Limit,
			TotalPages:  page.TotalPages,
			TotalItems:  page.Total,
		},
	})
}

// ImageCount handles GET /image-count, a public counter.
func (h *Handlers) ImageCount(c *gin.Context) {
	count, err := h.images.Count(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// Download handles GET /download?key=..., answering with a short-lived
// presigned URL.
func (h *Handlers) Download(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeDownloadMissingKey})
		return
	}

	url, err := h.images.PresignDownload(c.Request.Context(), key)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloadUrl": url})
}

// DeleteFile handles DELETE /files?key=... for the owner or an admin.
func (h *Handlers) DeleteFile(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeFileMissingKey})
		return
	}

	userID, _, isAdmin := callerIdentity(c)
	if err := h.images.Delete(c.Request.Context(), userID, isAdmin, key); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{MessageCode: codeFileDeleteSuccess})
}

type targetItem struct {
	TargetID    int64   `json:"target_id"`
	TargetName  string  `json:"target_name"`
	Description *string `json:"description"`
}

// ListTargets handles GET /targets.
func (h *Handlers) ListTargets(c *gin.Context) {
	list, err := h.targets.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]targetItem, 0, len(list))
	for _, t := range list {
		items = append(items, targetItem{TargetID: t.ID, TargetName: t.Name, Description: t.Description})
	}
	c.JSON(http.StatusOK, gin.H{"targets": items})
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
