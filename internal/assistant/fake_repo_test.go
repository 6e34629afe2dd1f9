package assistant

import (
	"context"
	"sync"
	"time"
)

// fakeRepo is an in-memory Repo whose WithTx holds one lock for the
// whole transaction, staging writes and applying them only on success.
type fakeRepo struct {
	mu     sync.Mutex
	owners map[int64]*Owner // by telegram id
	convs  map[string]Conversation
	turns  []Turn // insertion order = chronological
	ledger []LedgerEntry
	clock  time.Time

	// skipTxDedup makes the in-tx dedup re-check miss existing turns,
	// forcing the unique-constraint path in AppendTurn.
	skipTxDedup bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		owners: make(map[int64]*Owner),
		convs:  make(map[string]Conversation),
		clock:  time.Unix(1700000000, 0),
	}
}

func (r *fakeRepo) addOwner(o Owner) {
	r.owners[o.TelegramID] = &o
}

func (r *fakeRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *fakeRepo) turnByKey(key string) *Turn {
	for i := range r.turns {
		if r.turns[i].IdempotencyKey == key {
			t := r.turns[i]
			return &t
		}
	}
	return nil
}

func (r *fakeRepo) FindTurnByIdempotencyKey(_ context.Context, key string) (*Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turnByKey(key), nil
}

func (r *fakeRepo) GetConversation(_ context.Context, id string) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.convs[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r *fakeRepo) GetOwnerByTelegramID(_ context.Context, telegramID int64) (*Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.owners[telegramID]; ok {
		dup := *o
		return &dup, nil
	}
	return nil, nil
}

func (r *fakeRepo) RecentTurns(_ context.Context, conversationID string, limit int) ([]Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []Turn
	for _, t := range r.turns {
		if t.ConversationID == conversationID {
			all = append(all, t)
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *fakeRepo) WithTx(_ context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &fakeTx{repo: r, balances: make(map[int64]int64)}
	if err := fn(tx); err != nil {
		return err // staged writes discarded
	}

	for tgID, balance := range tx.balances {
		r.owners[tgID].Balance = balance
	}
	for _, c := range tx.newConvs {
		c.CreatedAt = r.clock
		c.UpdatedAt = r.clock
		r.convs[c.ID] = c
	}
	for _, id := range tx.touched {
		c := r.convs[id]
		c.UpdatedAt = r.tick()
		r.convs[id] = c
	}
	for _, t := range tx.newTurns {
		t.CreatedAt = r.tick()
		r.turns = append(r.turns, t)
	}
	for _, e := range tx.newLedger {
		e.CreatedAt = r.clock
		r.ledger = append(r.ledger, e)
	}
	return nil
}

type fakeTx struct {
	repo      *fakeRepo
	balances  map[int64]int64 // staged, by telegram id
	newConvs  []Conversation
	touched   []string
	newTurns  []Turn
	newLedger []LedgerEntry
}

func (t *fakeTx) FindTurnByIdempotencyKey(_ context.Context, key string) (*Turn, error) {
	if t.repo.skipTxDedup {
		return nil, nil
	}
	return t.repo.turnByKey(key), nil
}

func (t *fakeTx) ConditionalDecrementBalance(_ context.Context, ownerID, amount int64) (int64, bool, error) {
	for _, o := range t.repo.owners {
		if o.ID != ownerID {
			continue
		}
		if o.Balance < amount {
			return 0, false, nil
		}
		t.balances[o.TelegramID] = o.Balance - amount
		return o.Balance - amount, true, nil
	}
	return 0, false, nil
}

func (t *fakeTx) CreateConversation(_ context.Context, c *Conversation) error {
	t.newConvs = append(t.newConvs, *c)
	return nil
}

func (t *fakeTx) TouchConversation(_ context.Context, id string) error {
	t.touched = append(t.touched, id)
	return nil
}

func (t *fakeTx) AppendTurn(_ context.Context, turn *Turn) error {
	if t.repo.turnByKey(turn.IdempotencyKey) != nil {
		return ErrDuplicateIdempotencyKey
	}
	t.newTurns = append(t.newTurns, *turn)
	return nil
}

func (t *fakeTx) AppendLedgerEntry(_ context.Context, e *LedgerEntry) error {
	t.newLedger = append(t.newLedger, *e)
	return nil
}
