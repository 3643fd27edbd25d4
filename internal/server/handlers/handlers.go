package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"configurator/internal/store"
)

// Handler 运行报告 API 处理器
type Handler struct {
	store *store.Store
}

// NewHandler 创建处理器
func NewHandler(st *store.Store) *Handler {
	return &Handler{store: st}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)
	router.GET("/runs", h.ListRuns)
	router.GET("/runs/:runId", h.GetRun)
}

// GetStatus 系统状态
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "configurator",
	})
}

// ListRuns 运行历史列表
func (h *Handler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.store.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun 单次运行详情（含站点结果）
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.store.GetRun(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	sites, err := h.store.ListSiteOutcomes(run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":   run,
		"sites": sites,
	})
}
