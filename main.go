package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/reusedev/detect-hub/config"
	"github.com/reusedev/detect-hub/internal/components/db"
	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/counter"
	"github.com/reusedev/detect-hub/internal/modules/dao"
	"github.com/reusedev/detect-hub/internal/modules/detection"
	"github.com/reusedev/detect-hub/internal/modules/detector"
	"github.com/reusedev/detect-hub/internal/modules/logs"
	"github.com/reusedev/detect-hub/internal/modules/metrics"
	"github.com/reusedev/detect-hub/internal/modules/observer"
	"github.com/reusedev/detect-hub/internal/modules/queue"
	"github.com/reusedev/detect-hub/internal/modules/storage"
	"github.com/reusedev/detect-hub/internal/modules/storage/ali"
	"github.com/reusedev/detect-hub/internal/service/http"
	"github.com/reusedev/detect-hub/internal/service/http/handler"
	"github.com/reusedev/detect-hub/tools"
)

var (
	httpPort   string
	configPath string
)

func init() {
	flag.StringVar(&httpPort, "http-port", ":80", "listen http port")
	flag.StringVar(&configPath, "config", "config.yml", "config file path")
}

func main() {
	flag.Parse()
	config.Init(tools.PanicOnError(tools.ReadFile(configPath)))
	logs.InitLogger()
	cfg := config.GConfig

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	queue.InitThumbnailQueue(ctx, wg)

	db.InitDB(cfg)
	if consts.StorageSupplier(cfg.StorageSupplier) == consts.StorageAliOss {
		ali.InitOSS(cfg.AliOss)
	}
	blob := tools.PanicOnError(storage.New(cfg))
	gateway := dao.New(db.DB)
	counts := tools.PanicOnError(counter.New(cfg.CountBackend, gateway))
	detectors := tools.PanicOnError(detector.NewRegistry(cfg.Detectors, cfg.DefaultModel, detector.Constructors()))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	events := observer.NewBroadcaster(metrics.NewCollector(registry))

	svc := detection.NewService(detection.Options{
		Gateway:    gateway,
		Counter:    counts,
		Blob:       blob,
		Detectors:  detectors,
		Events:     events,
		Tasks:      queue.ThumbnailQueue,
		Thumbnail:  cfg.Thumbnail,
		SummaryTTL: cfg.SummaryTTL(),
	})
	logs.Logger.Info().
		Str("count_backend", cfg.CountBackend).
		Str("storage", cfg.StorageSupplier).
		Str("default_model", detectors.DefaultID()).
		Int("models", len(detectors.List())).
		Msg("detect hub started")

	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal, syscall.SIGINT, syscall.SIGTERM)
	go func(ch chan os.Signal) {
		<-ch
		cancel()
	}(osSignal)

	fetcher := tools.NewImageFetcher(cfg.Download.AllowedHosts, cfg.Download.AllowPrivate)
	h := handler.New(svc, fetcher.Get, tools.MaxDownloadBytes)
	http.Serve(ctx, httpPort, http.NewRouter(h, registry))
	wg.Wait()
}
