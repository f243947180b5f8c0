package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/reusedev/detect-hub/internal/modules/detection"
	"github.com/reusedev/detect-hub/internal/modules/logs"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"github.com/reusedev/detect-hub/internal/service/http/handler/request"
	"github.com/reusedev/detect-hub/internal/service/http/handler/response"
	common "github.com/reusedev/detect-hub/internal/service/http/response"
)

func (h *Handler) Detect(c *gin.Context) {
	form := request.Detect{}
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamError)
		return
	}
	if err := form.Valid(); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamErrorWithMessage(err.Error()))
		return
	}
	upload, err := h.readUpload(c, &form)
	if err != nil {
		logs.Logger.Warn().Err(err).Str("url", form.URL).Msg("read upload")
		c.JSON(http.StatusBadRequest, common.ParamErrorWithMessage(err.Error()))
		return
	}

	summary, err := h.svc.Detect(c.Request.Context(), detection.DetectRequest{
		Upload:    upload,
		Threshold: *form.Threshold,
		ModelID:   form.ModelID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	ret := response.Detect{}
	if err := copier.Copy(&ret, summary); err != nil {
		abortWithError(c, err)
		return
	}
	if ret.Results == nil {
		ret.Results = []model.DetectionResult{}
	}
	c.JSON(http.StatusOK, ret)
}

func (h *Handler) readUpload(c *gin.Context, form *request.Detect) (detection.Upload, error) {
	if form.Image != nil {
		if h.maxBytes > 0 && form.Image.Size > h.maxBytes {
			return detection.Upload{}, fmt.Errorf("image larger than %d bytes", h.maxBytes)
		}
		f, err := form.Image.Open()
		if err != nil {
			return detection.Upload{}, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return detection.Upload{}, err
		}
		return detection.Upload{
			Data:        data,
			Filename:    form.Image.Filename,
			ContentType: form.Image.Header.Get("Content-Type"),
		}, nil
	}
	data, name, err := h.download(c.Request.Context(), form.URL)
	if err != nil {
		return detection.Upload{}, fmt.Errorf("download image: %w", err)
	}
	return detection.Upload{Data: data, Filename: name}, nil
}

func (h *Handler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListModels())
}
