package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reusedev/detect-hub/internal/modules/logs"
	"github.com/reusedev/detect-hub/internal/service/http/handler"
	"github.com/reusedev/detect-hub/internal/service/http/middleware"
)

// Serve runs the server until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, port string, e *gin.Engine) {
	srv := &http.Server{Addr: port, Handler: e}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logs.Logger.Err(err).Msg("http shutdown")
		}
	}()
	logs.Logger.Info().Str("addr", port).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func NewRouter(h *handler.Handler, gatherer prometheus.Gatherer) *gin.Engine {
	e := gin.New()
	initRouter(e, h, gatherer)
	return e
}

func initRouter(e *gin.Engine, h *handler.Handler, gatherer prometheus.Gatherer) {
	e.Use(gin.Recovery(), middleware.RequestLogger())
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/v1")
	{
		v1.POST("/detect", h.Detect)
		v1.GET("/models", h.ListModels)
		v1.GET("/counts", h.CountsByDateRange)
	}
	session := v1.Group("/sessions/:id")
	{
		session.GET("", h.GetSession)
		session.DELETE("", h.DeleteSession)
		session.GET("/detections", h.GetDetections)
		session.GET("/counts", h.GetCounts)
		session.PATCH("/dimensions", h.UpdateDimensions)
	}
}
