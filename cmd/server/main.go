package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/hostel-bed-allocation/internal/allocation"
	"github.com/iliyamo/hostel-bed-allocation/internal/blob"
	"github.com/iliyamo/hostel-bed-allocation/internal/config"
	"github.com/iliyamo/hostel-bed-allocation/internal/database"
	"github.com/iliyamo/hostel-bed-allocation/internal/handler"
	"github.com/iliyamo/hostel-bed-allocation/internal/lifecycle"
	"github.com/iliyamo/hostel-bed-allocation/internal/live"
	"github.com/iliyamo/hostel-bed-allocation/internal/metrics"
	"github.com/iliyamo/hostel-bed-allocation/internal/middleware"
	"github.com/iliyamo/hostel-bed-allocation/internal/queue"
	"github.com/iliyamo/hostel-bed-allocation/internal/repository"
	"github.com/iliyamo/hostel-bed-allocation/internal/router"
	queue_publisher "github.com/iliyamo/hostel-bed-allocation/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if n, err := database.Seed(ctx, db, cfg.Hostel.Rooms, cfg.Hostel.BedsPerRoom); err != nil {
		log.Fatalf("seed: %v", err)
	} else if n > 0 {
		log.Printf("seeded %d rooms", n)
	}

	blobCfg := config.LoadBlobConfig()
	blobs, err := blob.Open(ctx, blobCfg)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and floor-plan cache disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	m := metrics.New()
	hub := live.NewHub(originAllowed(cfg.AllowOrigins))
	defer hub.Close()

	alloc := allocation.NewService(repository.NewBedRepo(db), m, hub)
	if rdb != nil {
		alloc.AddObserver(middleware.NewCachePurger(rdb, cacheCfg.Prefix))
	}

	bookings := repository.NewBookingRepo(db)
	retrier := allocation.NewRetrier(alloc, bookings, allocation.RetrierConfig{}, m)
	go retrier.Run(ctx)

	deps := lifecycle.Deps{
		Beds:     alloc,
		Bookings: bookings,
		Blobs:    blobs,
		Retry:    retrier,
		Metrics:  m,
	}
	if cfg.RabbitURL != "" {
		deps.Events = queue_publisher.New(cfg.RabbitURL)
		go func() {
			if err := queue.StartBookingConsumer(ctx, cfg.RabbitURL, cfg.AuditLogPath); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("booking-consumer: %v", err)
			}
		}()
	} else {
		log.Printf("RABBITMQ_URL not set; booking events are not published")
	}
	ctl := lifecycle.New(deps)
	go purgeLoop(ctx, ctl, cfg.Hostel)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: corsOrigins(cfg.AllowOrigins)}))
	e.Use(echomw.BodyLimit(bodyLimit(cfg.UploadMaxBytes)))

	fp := handler.NewFloorPlanHandler(alloc, cfg.RequestTimeout)
	bk := handler.NewBookingHandler(ctl, cfg.RequestTimeout, cfg.UploadMaxBytes)
	up := handler.NewUploadHandler(blobs, blobCfg.PresignTTL)

	router.RegisterRoutes(e, db, m.Handler(), hub)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db)))
	router.RegisterPublic(e, fp, bk,
		middleware.NewRedisCache(cacheCfg, rdb),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterAdmin(e, fp, bk, up, cfg.JWTSecret)
	router.RegisterUser(e, bk, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, db=%s, blobs=%s)", addr, cfg.Env, db.Dialect, blobs.Driver())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if n := retrier.Pending(); n > 0 {
		log.Printf("%d bed release(s) still pending at exit", n)
	}
}

// purgeLoop empties recycle-bin entries older than the retention period.
func purgeLoop(ctx context.Context, ctl *lifecycle.Controller, h config.HostelConfig) {
	if h.PurgeInterval <= 0 || h.RecycleRetention <= 0 {
		return
	}
	t := time.NewTicker(h.PurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := ctl.PurgeExpired(ctx, h.RecycleRetention)
			if err != nil {
				log.Printf("purge: %v", err)
			}
			if n > 0 {
				log.Printf("purge: removed %d expired recycle-bin bookings", n)
			}
		}
	}
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func originAllowed(origins []string) func(string) bool {
	if len(origins) == 0 {
		return nil
	}
	return func(origin string) bool {
		for _, o := range origins {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// bodyLimit leaves room for all six documents plus the form fields.
func bodyLimit(perFile int64) string {
	mb := (perFile*7)>>20 + 1
	return strconv.FormatInt(mb, 10) + "M"
}
