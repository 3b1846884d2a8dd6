package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civiceye/classifier"
	"civiceye/config"
	"civiceye/database"
	"civiceye/engine"
	"civiceye/handlers"
	"civiceye/metrics"
	"civiceye/middleware"
	"civiceye/query"
	"civiceye/rabbitmq"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	metrics.Register()

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}
	if _, err := db.SeedAnonymousUser(); err != nil {
		log.Warnf("Failed to seed anonymous user: %v", err)
	}

	store := database.NewStore(db.GetDB())
	decisionEngine := engine.New(store)
	queries := query.New(store)

	var scorer classifier.Scorer
	if cfg.ClassifierURL != "" {
		scorer = classifier.NewHTTPScorer(cfg.ClassifierURL, cfg.ClassifierTimeout, cfg.ConfidenceFloor)
	} else {
		log.Warn("CLASSIFIER_URL not set, using deterministic stub scorer")
		scorer = classifier.NewStubScorer(cfg.ConfidenceFloor)
	}

	pipeline := classifier.NewPipeline(scorer, store, cfg.ClassifierWorkers, cfg.ClassifierQueue, cfg.ClassifierTimeout)
	pipeline.Start()

	var publisher *rabbitmq.Publisher
	var subscriber *rabbitmq.Subscriber
	if cfg.AMQPURL != "" {
		if cfg.PublishClassifyJobs {
			publisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
			if err != nil {
				// Classification is best effort; intake keeps working on the
				// in-process pipeline.
				log.Errorf("Failed to initialize RabbitMQ publisher: %v", err)
				publisher = nil
			}
		}

		subscriber, err = rabbitmq.NewSubscriber(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPClassifyQueue, cfg.AMQPRoutingKey)
		if err != nil {
			log.Errorf("Failed to initialize RabbitMQ subscriber: %v", err)
			subscriber = nil
		} else {
			err = subscriber.Subscribe(func(body []byte) error {
				var job classifier.Job
				if err := json.Unmarshal(body, &job); err != nil {
					return err
				}
				pipeline.Process(job)
				return nil
			})
			if err != nil {
				log.Errorf("Failed to subscribe to classification queue: %v", err)
			}
		}
	}

	router := setupRouter(cfg, store, decisionEngine, queries, pipeline, publisher)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			log.Errorf("Failed to close RabbitMQ subscriber: %v", err)
		}
	}
	pipeline.Stop()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Errorf("Failed to close RabbitMQ publisher: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupRouter(cfg *config.Config, store *database.Store, decisionEngine *engine.Engine,
	queries *query.Service, pipeline *classifier.Pipeline, publisher *rabbitmq.Publisher) *gin.Engine {

	router := gin.Default()
	router.SetTrustedProxies(cfg.TrustedProxies)
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-User-ID", "X-User-Role"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.Auth(cfg.AuthServiceURL))

	// rabbitmq.Publisher satisfies handlers.ClassifyPublisher, but a nil
	// concrete pointer must stay a nil interface.
	var classifyPublisher handlers.ClassifyPublisher
	if publisher != nil {
		classifyPublisher = publisher
	}

	h := handlers.New(store, decisionEngine, queries, pipeline, classifyPublisher)

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/complaint", h.SubmitComplaint)
	router.GET("/complaint/status/:reporter_id", h.GetStatusByReporter)

	admin := router.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/complaints", h.AdminListComplaints)
		admin.POST("/update_status", h.AdminUpdateStatus)
		admin.GET("/complaint/:id/ai-result", h.AdminAIResult)
		admin.POST("/complaint/:id/decision", h.AdminDecide)
	}

	return router
}
