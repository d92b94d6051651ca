package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/GoPolymarket/safeboard/internal/model"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

type RunLister interface {
	List(ctx context.Context, limit int) ([]*model.RunRecord, error)
}

type RunsHandler struct {
	journal RunLister
}

func NewRunsHandler(journal RunLister) *RunsHandler {
	return &RunsHandler{journal: journal}
}

func (h *RunsHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.Error(apperrors.NewInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	records, err := h.journal.List(c.Request.Context(), limit)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records})
}
