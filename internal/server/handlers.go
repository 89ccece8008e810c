package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"kiro-console/internal/console"
	"kiro-console/internal/credential"
	mw "kiro-console/internal/middleware"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

func (h *Handler) listCredentials(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.View())
}

func (h *Handler) reload(c *gin.Context) {
	if err := h.ctrl.Load(c.Request.Context()); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.View())
}

func (h *Handler) getCredential(c *gin.Context) {
	view, ok := h.ctrl.ResourceView(c.Param("id"))
	if !ok {
		respondErr(c, console.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) update(c *gin.Context) {
	var patch credential.UpdatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", "invalid update body: "+err.Error())
		return
	}
	if patch.Empty() {
		respondError(c, http.StatusBadRequest, "empty_update", "no fields to update")
		return
	}
	if err := h.ctrl.Update(c.Request.Context(), c.Param("id"), patch); err != nil {
		respondErr(c, err)
		return
	}
	h.respondResource(c)
}

type deleteRequest struct {
	Confirm bool `json:"confirm"`
}

// deleteCredential requires {"confirm": true} or ?confirm=true.
func (h *Handler) deleteCredential(c *gin.Context) {
	var req deleteRequest
	// Chunked bodies report ContentLength -1, so test the body itself.
	if body := c.Request.Body; body != nil && body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, http.StatusBadRequest, "invalid_body", "invalid delete body: "+err.Error())
			return
		}
	}
	if v, err := strconv.ParseBool(c.Query("confirm")); err == nil && v {
		req.Confirm = true
	}
	if err := h.ctrl.Delete(c.Request.Context(), c.Param("id"), req.Confirm); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) toggle(c *gin.Context) {
	if err := h.ctrl.Toggle(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	h.respondResource(c)
}

func (h *Handler) reset(c *gin.Context) {
	if err := h.ctrl.Reset(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	h.respondResource(c)
}

func (h *Handler) checkHealth(c *gin.Context) {
	res, err := h.ctrl.CheckHealth(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) refreshToken(c *gin.Context) {
	if err := h.ctrl.RefreshToken(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	h.respondResource(c)
}

func (h *Handler) quickRefresh(c *gin.Context) {
	res, err := h.ctrl.QuickRefresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) switchLocal(c *gin.Context) {
	res, err := h.ctrl.SwitchToLocal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// respondResource answers with the refreshed row, or just success when the
// credential is gone from the reloaded list.
func (h *Handler) respondResource(c *gin.Context) {
	if view, ok := h.ctrl.ResourceView(c.Param("id")); ok {
		c.JSON(http.StatusOK, view)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) panelTarget(c *gin.Context) (string, console.PanelKind, bool) {
	kind, ok := console.ParsePanelKind(c.Param("kind"))
	if !ok {
		respondError(c, http.StatusBadRequest, "unknown_panel", "unknown panel kind: "+c.Param("kind"))
		return "", "", false
	}
	id := c.Param("id")
	if _, ok := h.ctrl.Store().Get(id); !ok {
		respondErr(c, console.ErrNotFound)
		return "", "", false
	}
	return id, kind, true
}

func (h *Handler) togglePanel(c *gin.Context) {
	id, kind, ok := h.panelTarget(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.ctrl.TogglePanel(id, kind))
}

func (h *Handler) closePanel(c *gin.Context) {
	id, kind, ok := h.panelTarget(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.ctrl.ClosePanel(id, kind))
}

func (h *Handler) batchStatus(c *gin.Context) {
	b := h.ctrl.Batch()
	c.JSON(http.StatusOK, gin.H{
		string(console.BatchRefreshAll):  b.Running(console.BatchRefreshAll),
		string(console.BatchValidateAll): b.Running(console.BatchValidateAll),
	})
}

// startBatch answers 202 once the batch owns its slot; the outcome arrives
// as a notification.
func (h *Handler) startBatch(c *gin.Context) {
	kind, ok := console.ParseBatchKind(c.Param("kind"))
	if !ok {
		respondError(c, http.StatusBadRequest, "unknown_batch", "unknown batch kind: "+c.Param("kind"))
		return
	}
	spawn := func(fn func()) { mw.SafeGo("batch:"+string(kind), fn) }
	if err := h.ctrl.StartBatch(h.baseCtx, kind, spawn); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"kind": kind, "status": "started"})
}

func (h *Handler) notifications(c *gin.Context) {
	var cursor uint64
	if raw := strings.TrimSpace(c.Query("cursor")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_cursor", "invalid cursor")
			return
		}
		cursor = v
	}
	limit, ok := parseLimit(c, defaultHistoryLimit, maxHistoryLimit)
	if !ok {
		return
	}
	entries, next, hasMore := h.stream.FetchSince(cursor, limit)
	c.JSON(http.StatusOK, gin.H{"entries": entries, "next_cursor": next, "has_more": hasMore})
}

func (h *Handler) slowCalls(c *gin.Context) {
	if h.slow == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "calls": []any{}})
		return
	}
	limit, ok := parseLimit(c, 50, 200)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled":      true,
		"threshold_ms": h.slow.Threshold().Milliseconds(),
		"calls":        h.slow.Recent(limit),
	})
}

func parseLimit(c *gin.Context, def, max int) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		respondError(c, http.StatusBadRequest, "invalid_limit", "invalid limit")
		return 0, false
	}
	if v > max {
		v = max
	}
	return v, true
}
