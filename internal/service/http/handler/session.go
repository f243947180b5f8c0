package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reusedev/detect-hub/internal/modules/filter"
	"github.com/reusedev/detect-hub/internal/service/http/handler/request"
	"github.com/reusedev/detect-hub/internal/service/http/handler/response"
	common "github.com/reusedev/detect-hub/internal/service/http/response"
)

func (h *Handler) GetSession(c *gin.Context) {
	uri := request.SessionURI{}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamError)
		return
	}
	query := request.GetSession{}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamError)
		return
	}
	summary, err := h.svc.GetSession(c.Request.Context(), uri.ID, query.IncludeExpired)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetDetections(c *gin.Context) {
	uri := request.SessionURI{}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamError)
		return
	}
	detections, err := h.svc.GetDetections(c.Request.Context(), uri.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Detections{SessionID: uri.ID, Detections: detections})
}

func (h *Handler) GetCounts(c *gin.Context) {
	uri := request.SessionURI{}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamError)
		return
	}
	counts, err := h.svc.GetCounts(c.Request.Context(), uri.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Counts{SessionID: uri.ID, Counts: counts, Total: filter.Total(counts)})
}

func (h *Handler) UpdateDimensions(c *gin.Context) {
	uri := request.SessionURI{}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamError)
		return
	}
	body := request.Dimensions{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamError)
		return
	}
	if err := body.Valid(); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamErrorWithMessage(err.Error()))
		return
	}
	if err := h.svc.UpdateSessionDimensions(c.Request.Context(), uri.ID, *body.Width, *body.Height); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteSession(c *gin.Context) {
	uri := request.SessionURI{}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamError)
		return
	}
	if err := h.svc.DeleteSession(c.Request.Context(), uri.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CountsByDateRange(c *gin.Context) {
	query := request.CountsByDate{}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, common.ParamError)
		return
	}
	start, end, err := query.Range()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.ParamErrorWithMessage(err.Error()))
		return
	}
	counts, err := h.svc.GetClassCountsByDateRange(c.Request.Context(), start, end)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Counts{Counts: counts, Total: filter.Total(counts)})
}
