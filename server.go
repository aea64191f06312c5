package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/utils"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/workflow"
)

const defaultPort = "8080"

// PubSubMessage is the push-delivery envelope Google wraps around the
// terminal's event batch item.
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// eventPushHandler ingests one event record delivered over the Pub/Sub push
// endpoint. Malformed envelopes are acked and dropped (retrying cannot fix
// them); a storage error returns non-2xx so Pub/Sub redelivers.
func eventPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "eventPushHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		var msg PubSubMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "eventPushHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var rec models.EventRecord
		if err := json.Unmarshal(msg.Message.Data, &rec); err != nil {
			config.LogError(logger, "server.go", "eventPushHandler", "Unmarshal event record", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		correlationID := rec.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}
		rec.CorrelationId = correlationID

		ctx := utils.SetStoreIdInContext(c.Request.Context(), rec.StoreId)
		ctx = utils.SetCorrelationIdInContext(ctx, correlationID)
		created, err := workflow.IngestEventRecord(ctx, config.GetDB(), logger, &rec)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "eventPushHandler",
				"event_id":       rec.ID,
				"store_id":       rec.StoreId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("event ingest failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"event_id":  rec.ID,
			"duplicate": !created,
		})
	}
}

// eventBatchHandler ingests a batch posted directly by a terminal coming
// back online. Each item is idempotent on its own id; per-item results let
// the terminal clear its local queue selectively.
func eventBatchHandler() gin.HandlerFunc {
	type batchRequest struct {
		Events []models.EventRecord `json:"events"`
	}
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req batchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if len(req.Events) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "events are required"})
			return
		}

		db := config.GetDB()
		results := make([]gin.H, 0, len(req.Events))
		for i := range req.Events {
			rec := req.Events[i]
			ctx := utils.SetStoreIdInContext(c.Request.Context(), rec.StoreId)
			created, err := workflow.IngestEventRecord(ctx, db, logger, &rec)
			if err != nil {
				results = append(results, gin.H{"event_id": rec.ID, "error": err.Error()})
				continue
			}
			results = append(results, gin.H{"event_id": rec.ID, "duplicate": !created})
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until the DB is ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe and metrics scrape.
		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/events/push", eventPushHandler())
	r.POST("/events/batch", eventBatchHandler())
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()

	dispatcher := workflow.NewProjectionDispatcher(db, logger)
	if v := strings.TrimSpace(os.Getenv("PROJECTION_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dispatcher.Concurrency = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PROJECTION_RATE_PER_SECOND")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dispatcher.RatePerSecond = n
			dispatcher.RateBurst = n
		}
	}
	go dispatcher.Run(dispatcherCtx)

	// Optional pull consumer for terminals publishing through Pub/Sub instead
	// of the push endpoint.
	if strings.EqualFold(strings.TrimSpace(os.Getenv("PUBSUB_PULL_ENABLED")), "true") {
		if err := RunEventSyncConsumer(dispatcherCtx); err != nil {
			config.LogError(logger, "server.go", "main", "RunEventSyncConsumer", nil, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("event projection service listening on :", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't claim new events while we
	// drain.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that accumulated errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}
