package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// pqUniqueViolation is the Postgres error code for a unique constraint.
const pqUniqueViolation = "23505"

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

func (r *repo) FindTurnByIdempotencyKey(ctx context.Context, key string) (*Turn, error) {
	return findTurnByKey(ctx, r.db, key)
}

func (r *repo) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := r.db.QueryRowContext(ctx, `
		SELECT id, telegram_id, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, id).Scan(&c.ID, &c.TelegramID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) GetOwnerByTelegramID(ctx context.Context, telegramID int64) (*Owner, error) {
	var o Owner
	err := r.db.QueryRowContext(ctx, `
		SELECT id, telegram_id, COALESCE(name, ''), balance
		FROM owners
		WHERE telegram_id = $1
	`, telegramID).Scan(&o.ID, &o.TelegramID, &o.Name, &o.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repo) RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, idempotency_key, user_text, assistant_text,
		       provider, model, prompt_tokens, completion_tokens, created_at
		FROM (
			SELECT * FROM turns
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(
			&t.ID, &t.ConversationID, &t.IdempotencyKey,
			&t.UserText, &t.AssistantText,
			&t.Provider, &t.Model,
			&t.PromptTokens, &t.CompletionTokens,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repo) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) FindTurnByIdempotencyKey(ctx context.Context, key string) (*Turn, error) {
	return findTurnByKey(ctx, t.tx, key)
}

func (t *sqlTx) ConditionalDecrementBalance(ctx context.Context, ownerID, amount int64) (int64, bool, error) {
	// One conditional statement, never read-then-write.
	var balance int64
	err := t.tx.QueryRowContext(ctx, `
		UPDATE owners
		SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
		RETURNING balance
	`, ownerID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

func (t *sqlTx) CreateConversation(ctx context.Context, c *Conversation) error {
	return t.tx.QueryRowContext(ctx, `
		INSERT INTO conversations (id, telegram_id)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, c.ID, c.TelegramID).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (t *sqlTx) TouchConversation(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE conversations
		SET updated_at = GREATEST(updated_at, now())
		WHERE id = $1
	`, id)
	return err
}

func (t *sqlTx) AppendTurn(ctx context.Context, turn *Turn) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO turns (
			id, conversation_id, idempotency_key, user_text, assistant_text,
			provider, model, prompt_tokens, completion_tokens
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`,
		turn.ID, turn.ConversationID, turn.IdempotencyKey,
		turn.UserText, turn.AssistantText,
		turn.Provider, turn.Model,
		turn.PromptTokens, turn.CompletionTokens,
	).Scan(&turn.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateIdempotencyKey
	}
	return err
}

func (t *sqlTx) AppendLedgerEntry(ctx context.Context, e *LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, owner_id, telegram_id, delta, balance_after, reason,
			conversation_id, turn_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		e.ID, e.OwnerID, e.TelegramID, e.Delta, e.BalanceAfter, e.Reason,
		e.ConversationID, e.TurnID,
	)
	return err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findTurnByKey(ctx context.Context, q querier, key string) (*Turn, error) {
	var t Turn
	err := q.QueryRowContext(ctx, `
		SELECT id, conversation_id, idempotency_key, user_text, assistant_text,
		       provider, model, prompt_tokens, completion_tokens, created_at
		FROM turns
		WHERE idempotency_key = $1
	`, key).Scan(
		&t.ID, &t.ConversationID, &t.IdempotencyKey,
		&t.UserText, &t.AssistantText,
		&t.Provider, &t.Model,
		&t.PromptTokens, &t.CompletionTokens,
		&t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
