package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/appointly/internal/actor"
	ledgerdomain "github.com/smallbiznis/appointly/internal/ledger/domain"
	"github.com/smallbiznis/appointly/internal/observability/logger"
	"github.com/smallbiznis/appointly/pkg/db/pagination"
	"go.uber.org/zap"
)

type adjustCreditsRequest struct {
	UserID         string  `json:"user_id"`
	Amount         int64   `json:"amount"`
	Type           string  `json:"type"`
	Description    string  `json:"description"`
	RelatedID      *string `json:"related_id"`
	IdempotencyKey *string `json:"idempotency_key"`
}

type creditBalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

func (s *Server) GetMyCredits(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor.FromContext(ctx)

	balance, err := s.ledgerSvc.Balance(ctx, a.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": creditBalanceResponse{
		UserID:  a.ID(),
		Balance: balance,
	}})
}

func (s *Server) ListMyCreditTransactions(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	resp, err := s.ledgerSvc.History(ctx, ledgerdomain.HistoryRequest{
		Pagination: page,
		UserID:     actor.FromContext(ctx).UserID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// AdjustCredits posts a ledger entry on behalf of an internal caller, such as the
// design generator debiting a generation.
func (s *Server) AdjustCredits(c *gin.Context) {
	var req adjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseRequiredSnowflakeID(req.UserID, "user_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.ledgerSvc.AdjustBalance(c.Request.Context(), ledgerdomain.AdjustRequest{
		UserID:         userID,
		Amount:         req.Amount,
		Type:           ledgerdomain.TransactionType(strings.ToLower(strings.TrimSpace(req.Type))),
		Description:    req.Description,
		RelatedID:      req.RelatedID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"data": result})
}

// VerifyCredits reports drift in the body rather than as an error status.
func (s *Server) VerifyCredits(c *gin.Context) {
	userID, err := parseRequiredSnowflakeID(c.Param("userId"), "user_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := s.ledgerSvc.Verify(ctx, userID)
	if err != nil && !errors.Is(err, ledgerdomain.ErrLedgerDrift) {
		AbortWithError(c, err)
		return
	}
	if err != nil {
		logger.FromContext(ctx).Error("credit ledger drift detected",
			zap.String("user_id", userID.String()),
			zap.Int64("stored_balance", result.StoredBalance),
			zap.Int64("replayed_balance", result.ReplayedBalance),
		)
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
