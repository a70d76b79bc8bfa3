package webserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zhenghchen/calhacks2025/src/data"
	"github.com/zhenghchen/calhacks2025/src/logging"
	"github.com/zhenghchen/calhacks2025/src/orchestrator"
	"github.com/zhenghchen/calhacks2025/src/types"
)

// Evaluator turns a transcript into a decision.
type Evaluator interface {
	Evaluate(ctx context.Context, transcript string) (*types.DueDiligenceDecision, error)
}

// DecisionStore keeps decisions for later lookup.
type DecisionStore interface {
	Save(ctx context.Context, transcript string, d *types.DueDiligenceDecision) error
	Get(ctx context.Context, id string) (*types.DueDiligenceDecision, error)
	Recent(ctx context.Context, limit int) ([]*types.DueDiligenceDecision, error)
}

type Evaluations struct {
	ev       Evaluator
	store    DecisionStore
	maxBytes int
	log      logging.Logger
}

func NewEvaluations(ev Evaluator, store DecisionStore, maxBytes int, log logging.Logger) Evaluations {
	return Evaluations{ev: ev, store: store, maxBytes: maxBytes, log: logging.OrNop(log)}
}

type evaluateRequest struct {
	Transcript string `json:"transcript"`
}

// bodyLimit bounds the encoded request. JSON escaping can grow each byte of
// text to at most six.
func (h Evaluations) bodyLimit() int64 {
	return int64(h.maxBytes)*6 + 1024
}

func (h Evaluations) Create(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.bodyLimit())
	}
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"err": "transcript exceeds " + strconv.Itoa(h.maxBytes) + " bytes"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "transcript is required"})
		return
	}
	if h.maxBytes > 0 && len(req.Transcript) > h.maxBytes {
		c.JSON(http.StatusBadRequest, gin.H{"err": "transcript exceeds " + strconv.Itoa(h.maxBytes) + " bytes"})
		return
	}

	decision, err := h.ev.Evaluate(c.Request.Context(), req.Transcript)
	if err != nil {
		h.log.Errorf("api: evaluation failed: %v", err)
		status := http.StatusBadGateway
		if errors.Is(err, orchestrator.ErrEmptyTranscript) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"err": err.Error()})
		return
	}

	if h.store != nil {
		if err := h.store.Save(c.Request.Context(), req.Transcript, decision); err != nil {
			h.log.Errorf("api: persist %s: %v", decision.ID, err)
		}
	}
	c.JSON(http.StatusCreated, decision)
}

func (h Evaluations) Get(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "evaluation storage is not configured"})
		return
	}
	decision, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, data.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"err": "evaluation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (h Evaluations) List(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"evaluations": []any{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	decisions, err := h.store.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluations": decisions})
}
