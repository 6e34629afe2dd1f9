package assistant

import (
	"context"
	"errors"
	"time"
)

type Owner struct {
	ID         int64
	TelegramID int64
	Name       string
	Balance    int64
}

type Conversation struct {
	ID         string
	TelegramID int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Turn — один обмен. Immutable once written.
type Turn struct {
	ID               string
	ConversationID   string
	IdempotencyKey   string
	UserText         string
	AssistantText    string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	CreatedAt        time.Time
}

// LedgerEntry records one balance change and the balance it left behind.
// Append-only.
type LedgerEntry struct {
	ID             string
	OwnerID        int64
	TelegramID     int64
	Delta          int64
	BalanceAfter   int64
	Reason         string
	ConversationID string
	TurnID         string
	CreatedAt      time.Time
}

const ReasonAskDebit = "ask_debit"

// ErrDuplicateIdempotencyKey is returned by AppendTurn when the unique
// constraint on the idempotency key fires.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already exists")

// Repo — persistence. Lookups return (nil, nil) when the row is absent.
type Repo interface {
	FindTurnByIdempotencyKey(ctx context.Context, key string) (*Turn, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetOwnerByTelegramID(ctx context.Context, telegramID int64) (*Owner, error)
	// RecentTurns returns up to limit most recent turns, oldest first.
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error)
	// WithTx runs fn inside one transaction; any error rolls it back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx holds the writes that must commit together.
type Tx interface {
	FindTurnByIdempotencyKey(ctx context.Context, key string) (*Turn, error)
	// ConditionalDecrementBalance decrements by amount only while the
	// balance covers it, as a single conditional statement. Reports the
	// resulting balance and whether a row was affected.
	ConditionalDecrementBalance(ctx context.Context, ownerID, amount int64) (int64, bool, error)
	CreateConversation(ctx context.Context, c *Conversation) error
	TouchConversation(ctx context.Context, id string) error
	AppendTurn(ctx context.Context, t *Turn) error
	AppendLedgerEntry(ctx context.Context, e *LedgerEntry) error
}

type AskInput struct {
	TelegramID     int64
	Text           string
	ConversationID string
	IdempotencyKey string
}

type AskOutput struct {
	ConversationID string
	IdempotencyKey string
	AssistantText  string
}

// Service — оркестрация Ask.
type Service interface {
	Ask(ctx context.Context, in AskInput) (AskOutput, error)
}
