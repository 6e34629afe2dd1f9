package assistant

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/Vovarama1992/medassist-core/internal/ai"
	"github.com/Vovarama1992/medassist-core/internal/apperr"
)

const defaultHistoryTurns = 10

const systemPrompt = `Ты — медицинский ассистент. Отвечай кратко и по делу.
Не ставь диагнозы и не назначай лечение, при тревожных симптомах
рекомендуй обратиться к врачу.`

// errDedupHit aborts the commit transaction when the in-tx re-check
// finds an already persisted turn for this idempotency key.
var errDedupHit = errors.New("turn already committed")

type service struct {
	repo         Repo
	ai           ai.Gateway
	historyTurns int
}

func NewService(repo Repo, gateway ai.Gateway, historyTurns int) Service {
	if historyTurns <= 0 {
		historyTurns = defaultHistoryTurns
	}
	return &service{repo: repo, ai: gateway, historyTurns: historyTurns}
}

// Ask runs the metered pipeline: dedup, ownership, balance guard,
// generation outside the transaction, then one atomic commit of the
// debit, the turn and the ledger entry.
func (s *service) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return AskOutput{}, apperr.New(apperr.KindValidation, "empty_text", nil)
	}
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return AskOutput{}, apperr.New(apperr.KindValidation, "empty_idempotency_key", nil)
	}
	if in.TelegramID <= 0 {
		return AskOutput{}, apperr.New(apperr.KindValidation, "invalid_owner_id", nil)
	}

	// Fast dedup path: a retry of an already handled request returns
	// the stored answer without touching the balance again.
	if existing, err := s.repo.FindTurnByIdempotencyKey(ctx, in.IdempotencyKey); err != nil {
		return AskOutput{}, apperr.New(apperr.KindInternal, "dedup_lookup_failed", err)
	} else if existing != nil {
		return replayTurn(existing, in.ConversationID)
	}

	conv, isNew, err := s.resolveConversation(ctx, in)
	if err != nil {
		return AskOutput{}, err
	}

	owner, err := s.repo.GetOwnerByTelegramID(ctx, in.TelegramID)
	if err != nil {
		return AskOutput{}, apperr.New(apperr.KindInternal, "owner_lookup_failed", err)
	}
	if owner == nil {
		return AskOutput{}, apperr.New(apperr.KindNotFound, "owner_not_found", nil)
	}
	if owner.Balance <= 0 {
		return AskOutput{}, apperr.New(apperr.KindConflict, "balance_exhausted", nil)
	}

	userPrompt, err := s.buildUserPrompt(ctx, conv, isNew, in.Text)
	if err != nil {
		return AskOutput{}, err
	}

	// The generation call stays outside the transaction: a slow
	// provider must never hold the balance row.
	result, err := s.ai.Generate(ctx, ai.Request{
		System: systemPromptFor(owner),
		User:   userPrompt,
	})
	if err != nil {
		// Gateway errors already carry their kind. Nothing has been
		// charged or written at this point.
		return AskOutput{}, err
	}

	out, err := s.commit(ctx, in, owner, conv, isNew, result)
	if err != nil {
		return AskOutput{}, err
	}
	log.Printf("[assistant] tg=%d conv=%s key=%s charged", in.TelegramID, out.ConversationID, in.IdempotencyKey)
	return out, nil
}

func (s *service) resolveConversation(ctx context.Context, in AskInput) (*Conversation, bool, error) {
	if in.ConversationID == "" {
		// Created in memory here, persisted only inside the commit.
		return &Conversation{ID: uuid.NewString(), TelegramID: in.TelegramID}, true, nil
	}
	conv, err := s.repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, false, apperr.New(apperr.KindInternal, "conversation_lookup_failed", err)
	}
	// A foreign conversation looks exactly like a missing one.
	if conv == nil || conv.TelegramID != in.TelegramID {
		return nil, false, apperr.New(apperr.KindNotFound, "conversation_not_found", nil)
	}
	return conv, false, nil
}

func (s *service) buildUserPrompt(ctx context.Context, conv *Conversation, isNew bool, text string) (string, error) {
	var b strings.Builder
	if !isNew {
		history, err := s.repo.RecentTurns(ctx, conv.ID, s.historyTurns)
		if err != nil {
			return "", apperr.New(apperr.KindInternal, "history_lookup_failed", err)
		}
		for _, t := range history {
			b.WriteString("Пользователь: ")
			b.WriteString(t.UserText)
			b.WriteString("\nАссистент: ")
			b.WriteString(t.AssistantText)
			b.WriteString("\n")
		}
	}
	b.WriteString("Пользователь: ")
	b.WriteString(text)
	return b.String(), nil
}

func systemPromptFor(owner *Owner) string {
	if owner.Name == "" {
		return systemPrompt
	}
	return systemPrompt + "\nИмя пациента: " + owner.Name
}

func (s *service) commit(
	ctx context.Context,
	in AskInput,
	owner *Owner,
	conv *Conversation,
	isNew bool,
	result ai.Result,
) (AskOutput, error) {
	turn := &Turn{
		ID:               uuid.NewString(),
		ConversationID:   conv.ID,
		IdempotencyKey:   in.IdempotencyKey,
		UserText:         in.Text,
		AssistantText:    result.Content,
		Provider:         result.Provider,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}

	txErr := s.repo.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.FindTurnByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			return errDedupHit
		}

		balance, ok, err := tx.ConditionalDecrementBalance(ctx, owner.ID, 1)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.KindConflict, "balance_exhausted", nil)
		}

		if isNew {
			if err := tx.CreateConversation(ctx, conv); err != nil {
				return err
			}
		} else if err := tx.TouchConversation(ctx, conv.ID); err != nil {
			return err
		}

		if err := tx.AppendTurn(ctx, turn); err != nil {
			return err
		}

		return tx.AppendLedgerEntry(ctx, &LedgerEntry{
			ID:             uuid.NewString(),
			OwnerID:        owner.ID,
			TelegramID:     owner.TelegramID,
			Delta:          -1,
			BalanceAfter:   balance,
			Reason:         ReasonAskDebit,
			ConversationID: conv.ID,
			TurnID:         turn.ID,
		})
	})

	switch {
	case txErr == nil:
		return AskOutput{
			ConversationID: conv.ID,
			IdempotencyKey: in.IdempotencyKey,
			AssistantText:  result.Content,
		}, nil

	case errors.Is(txErr, errDedupHit), errors.Is(txErr, ErrDuplicateIdempotencyKey):
		// A concurrent identical request won the race. Its result is
		// our result; the caller must not see an error.
		winner, err := s.repo.FindTurnByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil || winner == nil {
			return AskOutput{}, apperr.New(apperr.KindInternal, "dedup_reread_failed", err)
		}
		return replayTurn(winner, in.ConversationID)

	case apperr.KindOf(txErr) != apperr.KindInternal:
		return AskOutput{}, txErr

	default:
		return AskOutput{}, apperr.New(apperr.KindInternal, "commit_failed", txErr)
	}
}

// replayTurn converts an already persisted turn into a response,
// guarding against a conversation id that disagrees with the stored one.
func replayTurn(t *Turn, declaredConversationID string) (AskOutput, error) {
	if declaredConversationID != "" && declaredConversationID != t.ConversationID {
		return AskOutput{}, apperr.New(apperr.KindConflict, "idempotency_key_conversation_mismatch", nil)
	}
	return AskOutput{
		ConversationID: t.ConversationID,
		IdempotencyKey: t.IdempotencyKey,
		AssistantText:  t.AssistantText,
	}, nil
}
