package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/andresuchdata/freshrisk/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type JobHandler struct {
	scheduler *scheduler.Scheduler
}

func NewJobHandler(sched *scheduler.Scheduler) *JobHandler {
	return &JobHandler{scheduler: sched}
}

type runJobRequest struct {
	SnapshotDate string `json:"snapshot_date"`
	Incremental  bool   `json:"incremental"`
}

// RunJob triggers a job asynchronously. A run of the same job already in
// flight is rejected with 409 rather than queued.
func (h *JobHandler) RunJob(c *gin.Context) {
	name := c.Param("name")

	// An empty body is fine: default to today's snapshot, full mode.
	var req runJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	snapshotDate := time.Now().UTC().Truncate(24 * time.Hour)
	if req.SnapshotDate != "" {
		parsed, err := time.Parse("2006-01-02", req.SnapshotDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot_date must be YYYY-MM-DD"})
			return
		}
		snapshotDate = parsed
	}

	if h.scheduler.IsRunning(name) {
		c.JSON(http.StatusConflict, gin.H{"error": "job already running", "job": name})
		return
	}

	// The run outlives the HTTP request, so it gets its own context.
	params := scheduler.JobParams{SnapshotDate: snapshotDate, Incremental: req.Incremental}
	go func() {
		if _, err := h.scheduler.RunJob(context.Background(), name, params); err != nil {
			log.Error().Err(err).Str("job", name).Msg("triggered job failed to start")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"job":           name,
		"snapshot_date": snapshotDate.Format("2006-01-02"),
		"incremental":   params.Incremental,
	})
}

func (h *JobHandler) GetJobStatus(c *gin.Context) {
	name := c.Param("name")

	exec, err := h.scheduler.GetJobStatus(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if exec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job has never run", "job": name})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"execution": exec,
		"running":   h.scheduler.IsRunning(name),
	})
}

func (h *JobHandler) GetJobHistory(c *gin.Context) {
	name := c.Param("name")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	execs, err := h.scheduler.GetJobHistory(c.Request.Context(), name, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": name, "executions": execs})
}

func (h *JobHandler) GetJobStatistics(c *gin.Context) {
	name := c.Param("name")
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	stats, err := h.scheduler.GetJobStatistics(c.Request.Context(), name, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
