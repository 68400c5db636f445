package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pricing_backend/config"
	"github.com/mmdatafocus/pricing_backend/models/reports"
	"github.com/mmdatafocus/pricing_backend/utils"
	"github.com/mmdatafocus/pricing_backend/workflow"
	"github.com/sirupsen/logrus"
)

type runFunc func(ctx context.Context, trigger string) (workflow.RunSummary, error)

type lastRunFunc func(ctx context.Context) (*workflow.RunSummary, bool, error)

// pricingHandlers holds what the HTTP routes need; main wires the real
// recommender and store, tests wire fakes.
type pricingHandlers struct {
	logger   *logrus.Logger
	run      runFunc
	lastRun  lastRunFunc
	analysis func() reports.RFQAnalysisStore
}

func (h *pricingHandlers) runHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.run(c.Request.Context(), workflow.TriggerAPI)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func (h *pricingHandlers) lastRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, ok, err := h.lastRun(c.Request.Context())
		if err != nil {
			config.LogError(h.logger, "handlers.go", "lastRunHandler", "read last run", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read last run"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func (h *pricingHandlers) analysisHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rfqId, err := strconv.Atoi(c.Param("id"))
		if err != nil || rfqId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rfq id"})
			return
		}
		analysis, err := reports.GetRFQAnalysis(c.Request.Context(), h.analysis(), rfqId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "rfq not found"})
				return
			}
			config.LogError(h.logger, "handlers.go", "analysisHandler", "GetRFQAnalysis", rfqId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load analysis"})
			return
		}
		if c.Query("format") == "xlsx" {
			data, err := analysis.ExcelBytes()
			if err != nil {
				config.LogError(h.logger, "handlers.go", "analysisHandler", "ExcelBytes", rfqId, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not render workbook"})
				return
			}
			c.Header("Content-Disposition", "attachment; filename=rfq-"+strconv.Itoa(rfqId)+".xlsx")
			c.Data(http.StatusOK, utils.XlsxContentType, data)
			return
		}
		c.JSON(http.StatusOK, analysis)
	}
}

// pubSubRunHandler triggers a run from a Pub/Sub push. It always acks:
// a failed run is logged and picked up by the next trigger.
func (h *pricingHandlers) pubSubRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(h.logger, "handlers.go", "pubSubRunHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		var envelope config.PushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			config.LogError(h.logger, "handlers.go", "pubSubRunHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}

		ctx := c.Request.Context()
		if id := envelope.Message.Attributes["correlation_id"]; id != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, id)
		}
		h.logger.WithFields(logrus.Fields{
			"message_id":   envelope.Message.MessageID,
			"subscription": envelope.Subscription,
		}).Info("pricing run requested via pubsub")

		if _, err := h.run(ctx, workflow.TriggerPubSub); err != nil {
			config.LogError(h.logger, "handlers.go", "pubSubRunHandler", "run", envelope.Message.MessageID, err)
		}
		c.Status(http.StatusNoContent)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}
