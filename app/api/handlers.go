package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"regwatch/app/catalog"
	"regwatch/app/database"
)

func NewHandler(catalogCache *catalog.Cache, seenRepo database.SeenRepository,
	recipientRepo database.RecipientRepository, cycleRepo database.CycleRepository,
	runner StageReporter, version string) *Handler {
	return &Handler{
		catalog:       catalogCache,
		seenRepo:      seenRepo,
		recipientRepo: recipientRepo,
		cycleRepo:     cycleRepo,
		runner:        runner,
		version:       version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"stage":     h.runner.Stage(),
		"sources":   h.catalog.SourceCount(),
	}

	if recipientCount, err := h.recipientRepo.Count(); err == nil {
		health["recipients"] = recipientCount
	}

	if last, err := h.cycleRepo.LastCycle(); err == nil && last != nil {
		health["last_cycle"] = map[string]interface{}{
			"finished_at": last.FinishedAt.Format(time.RFC3339),
			"sent":        last.Sent,
			"failed":      last.Failed,
			"error":       last.Error,
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"sources": h.catalog.SourceCount(),
	}

	if seenCount, err := h.seenRepo.Count(); err == nil {
		stats["seen_entries"] = seenCount
	}

	if totals, err := h.cycleRepo.GetTotals(); err == nil {
		stats["cycles"] = totals.Cycles
		stats["entries_found"] = totals.EntriesFound
		stats["entries_novel"] = totals.EntriesNovel
		stats["sent"] = totals.Sent
		stats["failed"] = totals.Failed
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListRecipients(c *gin.Context) {
	all, err := h.recipientRepo.ListAll()
	if err != nil {
		slog.Error("Database error", "operation", "list_recipients", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	recipients := make([]map[string]interface{}, 0, len(all))
	for _, recipient := range all {
		recipients = append(recipients, map[string]interface{}{
			"chat_id":       recipient.ChatID,
			"title":         recipient.Title,
			"registered_at": recipient.RegisteredAt.Format(time.RFC3339),
			"authorized":    recipient.Authorized,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"recipients": recipients,
		"total":      len(recipients),
	})
}

func (h *Handler) APIAuthorizeRecipient(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat_id parameter"})
		return
	}

	changed, err := h.recipientRepo.Authorize(chatID)
	if err != nil {
		slog.Error("Database error", "operation", "authorize_recipient", "chat_id", chatID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !changed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipient not found or already authorized"})
		return
	}

	slog.Info("Recipient authorized", "chat_id", chatID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"chat_id": chatID,
	})
}

func (h *Handler) APIListCycles(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	records, err := h.cycleRepo.RecentCycles(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_cycles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	cycles := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		cycles = append(cycles, map[string]interface{}{
			"id":             rec.ID,
			"started_at":     rec.StartedAt.Format(time.RFC3339),
			"finished_at":    rec.FinishedAt.Format(time.RFC3339),
			"sources":        rec.SourcesTotal,
			"sources_failed": rec.SourcesFailed,
			"entries_found":  rec.EntriesFound,
			"entries_novel":  rec.EntriesNovel,
			"classified":     rec.Classified,
			"relevant":       rec.Relevant,
			"sent":           rec.Sent,
			"failed":         rec.Failed,
			"error":          rec.Error,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"cycles": cycles,
		"total":  len(cycles),
	})
}
