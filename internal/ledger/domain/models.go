package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appointly/pkg/db/pagination"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypePurchase         TransactionType = "purchase"
	TransactionTypeSubscription     TransactionType = "subscription"
	TransactionTypeDesignGeneration TransactionType = "design_generation"
	TransactionTypeRefund           TransactionType = "refund"
	TransactionTypeWebsiteCreation  TransactionType = "website_creation"
	TransactionTypeAdjustment       TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypePurchase,
		TransactionTypeSubscription,
		TransactionTypeDesignGeneration,
		TransactionTypeRefund,
		TransactionTypeWebsiteCreation,
		TransactionTypeAdjustment:
		return true
	}
	return false
}

// CreditTransaction is an immutable ledger row. Within one user, rows ordered by
// Sequence chain: BalanceAfter[n] = BalanceAfter[n-1] + Amount[n].
type CreditTransaction struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID         snowflake.ID    `json:"user_id" gorm:"not null;uniqueIndex:ux_credit_tx_user_seq,priority:1;uniqueIndex:ux_credit_tx_user_key,priority:1"`
	Sequence       int64           `json:"sequence" gorm:"not null;uniqueIndex:ux_credit_tx_user_seq,priority:2"`
	Amount         int64           `json:"amount" gorm:"not null"`
	Type           TransactionType `json:"type" gorm:"type:text;not null"`
	Description    string          `json:"description" gorm:"type:text;not null;default:''"`
	RelatedID      *string         `json:"related_id,omitempty" gorm:"type:text"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty" gorm:"type:text;uniqueIndex:ux_credit_tx_user_key,priority:2"`
	BalanceAfter   int64           `json:"balance_after" gorm:"not null"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

type AdjustRequest struct {
	UserID         snowflake.ID    `json:"user_id"`
	Amount         int64           `json:"amount"`
	Type           TransactionType `json:"type"`
	Description    string          `json:"description"`
	RelatedID      *string         `json:"related_id,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
}

type AdjustResult struct {
	NewBalance  int64             `json:"new_balance"`
	Transaction CreditTransaction `json:"transaction"`
	Replayed    bool              `json:"replayed"`
}

type HistoryRequest struct {
	pagination.Pagination
	UserID snowflake.ID
}

type HistoryResponse struct {
	pagination.PageInfo
	Transactions []CreditTransaction `json:"transactions"`
}

type VerifyResult struct {
	UserID          snowflake.ID `json:"user_id"`
	StoredBalance   int64        `json:"stored_balance"`
	ReplayedBalance int64        `json:"replayed_balance"`
	Transactions    int          `json:"transactions"`
	Consistent      bool         `json:"consistent"`
	// BrokenAtSequence is the first row whose BalanceAfter does not follow from its predecessor.
	BrokenAtSequence *int64 `json:"broken_at_sequence,omitempty"`
}

type Repository interface {
	// LockBalance reads the cached balance with a row lock. found is false for unknown users.
	LockBalance(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (balance int64, found bool, err error)
	Balance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (balance int64, found bool, err error)
	CompareAndSetBalance(ctx context.Context, tx *gorm.DB, userID snowflake.ID, expected, next int64, now time.Time) (bool, error)
	LastSequence(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (int64, error)
	Insert(ctx context.Context, tx *gorm.DB, item *CreditTransaction) error
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, userID snowflake.ID, key string) (*CreditTransaction, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, beforeSequence int64, limit int) ([]CreditTransaction, error)
	ListAll(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]CreditTransaction, error)
}

type Service interface {
	AdjustBalance(ctx context.Context, req AdjustRequest) (AdjustResult, error)
	Balance(ctx context.Context, userID snowflake.ID) (int64, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
	Verify(ctx context.Context, userID snowflake.ID) (VerifyResult, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidType         = errors.New("invalid_transaction_type")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrInsufficientFunds   = errors.New("insufficient_funds")
	ErrIdempotencyMismatch = errors.New("idempotency_key_reused")
	ErrLedgerDrift         = errors.New("ledger_drift")
)
