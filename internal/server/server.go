package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sellio/bidcore/internal/audit"
	"github.com/sellio/bidcore/internal/cache"
	"github.com/sellio/bidcore/internal/engine"
	"github.com/sellio/bidcore/internal/events"
	"github.com/sellio/bidcore/internal/handlers"
	"github.com/sellio/bidcore/internal/ledger"
	"github.com/sellio/bidcore/internal/scheduler"
	"github.com/sellio/bidcore/internal/settings"
	"github.com/sellio/bidcore/internal/store"
	"github.com/sellio/bidcore/internal/store/memory"
	"github.com/sellio/bidcore/internal/store/postgres"
	"github.com/sellio/bidcore/pkg/jwt"
	"github.com/sellio/bidcore/pkg/logger"
	"github.com/sellio/bidcore/pkg/utils"
	_ "github.com/joho/godotenv/autoload"
)

type Server struct {
	HTTPServer *http.Server
	Engine     *engine.Engine
	Scheduler  *scheduler.Scheduler
	Logger     *logger.Logger
	Store      store.Store
	Cache      cache.Cacher
	Events     events.Publisher
}

func New() *Server {
	mux := chi.NewMux()
	log := logger.NewLogger()
	host := utils.GetEnv("SERVER_HOST", "0.0.0.0")
	port := utils.GetEnv("SERVER_PORT", "8080")
	dbDsn := utils.GetEnv("DB_DSN", "")

	serverAddr := fmt.Sprintf("%s:%s", host, port)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		st  store.Store
		err error
	)
	if dbDsn != "" {
		st, err = postgres.New(ctx, dbDsn, log)
		if err != nil {
			log.Fatal("[DB] connection failed -> " + err.Error())
		}
	} else {
		log.Warn("[DB] DB_DSN not set, using in-memory store")
		st = memory.New()
	}

	var c cache.Cacher
	if utils.GetEnv("REDIS_ADDR", "") != "" {
		c, err = cache.NewRedisClient(ctx)
		if err != nil {
			log.Fatal("[CACHE] connection failed -> " + err.Error())
		}
		log.Info("[CACHE] connected")
	}

	var pub events.Publisher = events.NoopPublisher{}
	if amqpURL := utils.GetEnv("AMQP_URL", ""); amqpURL != "" {
		pub, err = events.NewAMQPPublisher(amqpURL, log)
		if err != nil {
			log.Fatal("[EVENTS] connection failed -> " + err.Error())
		}
		log.Info("[EVENTS] connected")
	}

	jm, err := jwt.NewJwtManager()
	if err != nil {
		log.Fatal("[AUTH] " + err.Error())
	}

	settingsProvider := settings.NewProvider(st, c, log)
	recorder := audit.NewRecorder(st, log)
	verifier := audit.NewVerifier(st, log)
	eng := engine.NewEngine(st, settingsProvider, recorder, pub, log)
	ledgerService := ledger.NewService(st)

	bidHandler, err := handlers.NewBidHandler(eng, ledgerService)
	if err != nil {
		log.Fatal("[Bid Handler] failed to initialize -> " + err.Error())
	}
	auctionHandler, err := handlers.NewAuctionHandler(eng)
	if err != nil {
		log.Fatal("[Auction Handler] failed to initialize -> " + err.Error())
	}
	adminHandler, err := handlers.NewAdminHandler(eng, verifier)
	if err != nil {
		log.Fatal("[Admin Handler] failed to initialize -> " + err.Error())
	}

	sweepInterval := utils.GetDurationEnv("EXPIRY_SWEEP_INTERVAL", time.Minute)

	serv := &Server{
		Logger: log,
		HTTPServer: &http.Server{
			Addr:         serverAddr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Engine:    eng,
		Scheduler: scheduler.New(eng, sweepInterval, log),
		Store:     st,
		Cache:     c,
		Events:    pub,
	}

	mux.Use(middleware.Logger)
	mux.Use(middleware.Recoverer)

	serv.CommonRoutes(mux)
	serv.APIRoutes(mux, jm, bidHandler, auctionHandler, adminHandler)
	return serv
}

func (s *Server) Run() error {
	s.Logger.Infof("[SERVER] running at -> " + s.HTTPServer.Addr)
	// Create context that listens for the interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Time-driven auction termination runs for the life of the server
	go s.Scheduler.Run(ctx)

	// Run Server in the background
	go func() {
		if err := s.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Fatal("[SERVER] failed to serve -> " + err.Error())
		}
	}()

	// Listen for the interrupt signal
	<-ctx.Done()

	// create shutdown context with 30 - sec timeout
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.HTTPServer.Shutdown(shutCtx); err != nil {
		s.Logger.Error("[SERVER] shutdown failed -> " + err.Error())
		return err
	}

	if err := s.Events.Close(); err != nil {
		s.Logger.Warn("[EVENTS] failed to close -> " + err.Error())
	}
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			s.Logger.Warn("[CACHE] failed to close -> " + err.Error())
		}
	}
	s.Store.Close()

	return nil
}
