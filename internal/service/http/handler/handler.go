package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reusedev/detect-hub/internal/modules/detection"
	"github.com/reusedev/detect-hub/internal/modules/logs"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"github.com/reusedev/detect-hub/internal/service/http/response"
)

// Service is what the handlers need from the detection workflow.
type Service interface {
	Detect(ctx context.Context, req detection.DetectRequest) (*detection.Summary, error)
	ListModels() detection.ModelList
	GetSession(ctx context.Context, sessionID string, includeExpired bool) (*detection.SessionSummary, error)
	GetDetections(ctx context.Context, sessionID string) ([]model.DetectionResult, error)
	GetCounts(ctx context.Context, sessionID string) (map[string]int, error)
	GetClassCountsByDateRange(ctx context.Context, start, end time.Time) (map[string]int, error)
	UpdateSessionDimensions(ctx context.Context, sessionID string, width, height int) error
	DeleteSession(ctx context.Context, sessionID string) error
}

var _ Service = (*detection.Service)(nil)

// Downloader fetches the image behind a url, returning its bytes and file name.
type Downloader func(ctx context.Context, url string) ([]byte, string, error)

type Handler struct {
	svc      Service
	download Downloader
	maxBytes int64
}

func New(svc Service, download Downloader, maxBytes int64) *Handler {
	return &Handler{svc: svc, download: download, maxBytes: maxBytes}
}

func abortWithError(c *gin.Context, err error) {
	status, body := response.FromError(err)
	if status >= 500 {
		logs.Logger.Err(err).Str("path", c.Request.URL.Path).Int("status_code", status).Msg("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, body)
}
