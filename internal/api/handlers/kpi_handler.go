package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/service"
	"github.com/gin-gonic/gin"
)

type KPIHandler struct {
	service *service.KPIService
}

func NewKPIHandler(service *service.KPIService) *KPIHandler {
	return &KPIHandler{service: service}
}

func (h *KPIHandler) parseFilter(c *gin.Context) domain.KPIFilter {
	filter := domain.KPIFilter{}

	if from := strings.TrimSpace(c.Query("date_from")); from != "" {
		filter.DateFrom = from
	}
	if to := strings.TrimSpace(c.Query("date_to")); to != "" {
		filter.DateTo = to
	}

	if stores := strings.TrimSpace(c.Query("store_ids")); stores != "" {
		parts := strings.Split(stores, ",")
		result := make([]int64, 0, len(parts))
		for _, part := range parts {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				result = append(result, id)
			}
		}
		filter.StoreIDs = result
	}

	if skus := strings.TrimSpace(c.Query("sku_ids")); skus != "" {
		parts := strings.Split(skus, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if p := strings.TrimSpace(part); p != "" {
				result = append(result, p)
			}
		}
		filter.SKUIds = result
	}

	return filter
}

func (h *KPIHandler) GetSummary(c *gin.Context) {
	summary, err := h.service.GetSummary(c.Request.Context(), h.parseFilter(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *KPIHandler) GetActionBreakdown(c *gin.Context) {
	breakdown, err := h.service.GetActionBreakdown(c.Request.Context(), h.parseFilter(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"breakdown": breakdown})
}

func (h *KPIHandler) GetRiskTimeSeries(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	series, err := h.service.GetRiskTimeSeries(c.Request.Context(), days, h.parseFilter(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"time_series": series})
}

func (h *KPIHandler) GetDashboard(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	dashboard, err := h.service.GetDashboard(c.Request.Context(), days, h.parseFilter(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *KPIHandler) GetAvailableDates(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))

	dates, err := h.service.GetAvailableDates(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format("2006-01-02"))
	}
	c.JSON(http.StatusOK, gin.H{"dates": formatted})
}
