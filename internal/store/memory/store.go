package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"ledger/internal/domain"
	"ledger/internal/store"
)

// Store keeps committed state in process memory. Units of work stage their
// writes and apply them atomically on commit. Row locks are one-slot
// channels so that waiting on them can be abandoned when the context ends.
type Store struct {
	mu sync.Mutex

	accounts     map[int64]*domain.Account
	transactions []domain.Transaction
	outbox       []*domain.OutboxMessage
	outboxByID   map[string]*domain.OutboxMessage
	claimed      map[string]struct{}
	locks        map[int64]chan struct{}

	nextAccountID     int64
	nextTransactionID int64
	now               func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		accounts:   make(map[int64]*domain.Account),
		outboxByID: make(map[string]*domain.OutboxMessage),
		claimed:    make(map[string]struct{}),
		locks:      make(map[int64]chan struct{}),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u := &unitOfWork{
		s:       s,
		held:    make(map[int64]chan struct{}),
		staged:  make(map[int64]*domain.Account),
		deleted: make(map[int64]struct{}),
	}
	defer func() {
		if r := recover(); r != nil {
			u.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, u); err != nil {
		u.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		u.rollback()
		return err
	}
	u.commit()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) rowLock(id int64) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

type unitOfWork struct {
	s *Store

	held      map[int64]chan struct{}
	staged    map[int64]*domain.Account
	deleted   map[int64]struct{}
	appended  []domain.Transaction
	enqueued  []*domain.OutboxMessage
	outboxOps []func()
	claims    []string
}

func (u *unitOfWork) Accounts() store.AccountStore { return accountStore{u} }

func (u *unitOfWork) Transactions() store.TransactionLedger { return ledger{u} }

func (u *unitOfWork) Outbox() store.OutboxStore { return outbox{u} }

func (u *unitOfWork) lock(ctx context.Context, id int64) error {
	if _, ok := u.held[id]; ok {
		return nil
	}
	l := u.s.rowLock(id)
	select {
	case l <- struct{}{}:
		u.held[id] = l
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for lock on account %d: %w", id, ctx.Err())
	}
}

// view resolves an account as this unit of work sees it: its own staged
// writes first, then committed state.
func (u *unitOfWork) view(id int64) (*domain.Account, bool) {
	if _, gone := u.deleted[id]; gone {
		return nil, false
	}
	if a, ok := u.staged[id]; ok {
		return a, true
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	a, ok := u.s.accounts[id]
	return a, ok
}

func (u *unitOfWork) commit() {
	u.s.mu.Lock()
	for id, a := range u.staged {
		u.s.accounts[id] = a
	}
	for id := range u.deleted {
		delete(u.s.accounts, id)
	}
	u.s.transactions = append(u.s.transactions, u.appended...)
	for _, msg := range u.enqueued {
		u.s.outbox = append(u.s.outbox, msg)
		u.s.outboxByID[msg.ID] = msg
	}
	for _, op := range u.outboxOps {
		op()
	}
	u.s.mu.Unlock()
	u.release()
}

func (u *unitOfWork) rollback() {
	u.release()
}

func (u *unitOfWork) release() {
	u.s.mu.Lock()
	for _, id := range u.claims {
		delete(u.s.claimed, id)
	}
	u.s.mu.Unlock()
	u.claims = nil

	for id, l := range u.held {
		<-l
		delete(u.held, id)
	}
}

type accountStore struct{ u *unitOfWork }

func (a accountStore) Create(ctx context.Context, account *domain.Account) error {
	if account.Balance.IsNegative() {
		return fmt.Errorf("initial balance %s: %w", account.Balance, domain.ErrInvalidAmount)
	}
	s := a.u.s
	s.mu.Lock()
	s.nextAccountID++
	id := s.nextAccountID
	now := s.now()
	s.mu.Unlock()

	account.ID = id
	account.Version = 0
	account.CreatedAt = now
	account.UpdatedAt = now
	a.u.staged[id] = account.Clone()
	return nil
}

func (a accountStore) Get(ctx context.Context, id int64) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, ok := a.u.view(id)
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
	}
	return current.Clone(), nil
}

func (a accountStore) Save(ctx context.Context, account *domain.Account) error {
	// Like an UPDATE, the write takes the row lock and keeps it until the
	// unit of work ends.
	if err := a.u.lock(ctx, account.ID); err != nil {
		return err
	}
	current, ok := a.u.view(account.ID)
	if !ok {
		return fmt.Errorf("account %d: %w", account.ID, domain.ErrAccountNotFound)
	}
	if current.Version != account.Version {
		return fmt.Errorf("account %d expected version %d, found %d: %w",
			account.ID, account.Version, current.Version, domain.ErrConcurrentModification)
	}
	if account.Balance.IsNegative() {
		return fmt.Errorf("account %d balance %s: %w", account.ID, account.Balance, domain.ErrInsufficientFunds)
	}

	next := current.Clone()
	next.HolderName = account.HolderName
	next.Balance = account.Balance
	next.Version = current.Version + 1
	next.UpdatedAt = a.u.s.now()
	a.u.staged[account.ID] = next

	account.Version = next.Version
	account.UpdatedAt = next.UpdatedAt
	return nil
}

func (a accountStore) LockForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	if err := a.u.lock(ctx, id); err != nil {
		return nil, err
	}
	current, ok := a.u.view(id)
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
	}
	return current.Clone(), nil
}

func (a accountStore) Delete(ctx context.Context, id int64) error {
	if err := a.u.lock(ctx, id); err != nil {
		return err
	}
	if _, ok := a.u.view(id); !ok {
		return fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
	}
	delete(a.u.staged, id)
	a.u.deleted[id] = struct{}{}
	return nil
}

func (a accountStore) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Account], error) {
	if err := page.Validate(); err != nil {
		return domain.Page[domain.Account]{}, err
	}
	s := a.u.s
	s.mu.Lock()
	visible := make(map[int64]*domain.Account, len(s.accounts))
	for id, acc := range s.accounts {
		visible[id] = acc
	}
	s.mu.Unlock()
	for id, acc := range a.u.staged {
		visible[id] = acc
	}
	for id := range a.u.deleted {
		delete(visible, id)
	}

	all := make([]domain.Account, 0, len(visible))
	for _, acc := range visible {
		all = append(all, *acc)
	}
	slices.SortFunc(all, func(x, y domain.Account) int {
		c := compareAccounts(&x, &y, page.SortBy)
		if page.SortDesc {
			return -c
		}
		return c
	})
	return paginate(all, page), nil
}

func compareAccounts(x, y *domain.Account, field string) int {
	var c int
	switch field {
	case domain.SortByHolderName:
		c = strings.Compare(x.HolderName, y.HolderName)
	case domain.SortByBalance:
		c = x.Balance.Cmp(y.Balance)
	case domain.SortByCreatedAt:
		c = x.CreatedAt.Compare(y.CreatedAt)
	}
	if c == 0 {
		c = cmp.Compare(x.ID, y.ID)
	}
	return c
}

type ledger struct{ u *unitOfWork }

func (l ledger) Append(ctx context.Context, txn *domain.Transaction) error {
	if !txn.Type.Valid() {
		return fmt.Errorf("unknown transaction type %q", txn.Type)
	}
	if !txn.Amount.IsPositive() {
		return fmt.Errorf("transaction amount %s: %w", txn.Amount, domain.ErrInvalidAmount)
	}
	s := l.u.s
	s.mu.Lock()
	s.nextTransactionID++
	txn.ID = s.nextTransactionID
	txn.Timestamp = s.now()
	s.mu.Unlock()

	l.u.appended = append(l.u.appended, *txn)
	return nil
}

func (l ledger) ListByAccount(ctx context.Context, accountID int64, page domain.PageRequest) (domain.Page[domain.Transaction], error) {
	if page.Number < 0 || page.Size < 1 || page.Size > domain.MaxPageSize {
		return domain.Page[domain.Transaction]{}, fmt.Errorf("page %d size %d: %w", page.Number, page.Size, domain.ErrInvalidPage)
	}
	var matched []domain.Transaction
	s := l.u.s
	s.mu.Lock()
	for _, txn := range s.transactions {
		if txn.AccountID == accountID {
			matched = append(matched, txn)
		}
	}
	s.mu.Unlock()
	for _, txn := range l.u.appended {
		if txn.AccountID == accountID {
			matched = append(matched, txn)
		}
	}

	slices.SortFunc(matched, func(x, y domain.Transaction) int {
		if c := y.Timestamp.Compare(x.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(y.ID, x.ID)
	})
	return paginate(matched, page), nil
}

type outbox struct{ u *unitOfWork }

func (o outbox) Enqueue(ctx context.Context, msg *domain.OutboxMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = o.u.s.now()
	}
	if msg.Status == "" {
		msg.Status = domain.OutboxStatusPending
	}
	staged := *msg
	o.u.enqueued = append(o.u.enqueued, &staged)
	return nil
}

func (o outbox) FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	s := o.u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var messages []domain.OutboxMessage
	for _, msg := range s.outbox {
		if len(messages) >= limit {
			break
		}
		if msg.Status != domain.OutboxStatusPending {
			continue
		}
		if _, taken := s.claimed[msg.ID]; taken {
			continue
		}
		s.claimed[msg.ID] = struct{}{}
		o.u.claims = append(o.u.claims, msg.ID)
		messages = append(messages, *msg)
	}
	return messages, nil
}

func (o outbox) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	msg, err := o.lookup(id)
	if err != nil {
		return err
	}
	o.u.outboxOps = append(o.u.outboxOps, func() {
		msg.Status = domain.OutboxStatusSent
		msg.SentAt = &sentAt
	})
	return nil
}

func (o outbox) RecordFailure(ctx context.Context, id string, reason string, maxAttempts int) error {
	msg, err := o.lookup(id)
	if err != nil {
		return err
	}
	o.u.outboxOps = append(o.u.outboxOps, func() {
		msg.Attempts++
		msg.LastError = reason
		if msg.Attempts >= maxAttempts {
			msg.Status = domain.OutboxStatusFailed
		}
	})
	return nil
}

func (o outbox) lookup(id string) (*domain.OutboxMessage, error) {
	s := o.u.s
	s.mu.Lock()
	msg, ok := s.outboxByID[id]
	s.mu.Unlock()
	if ok {
		return msg, nil
	}
	for _, staged := range o.u.enqueued {
		if staged.ID == id {
			return staged, nil
		}
	}
	return nil, fmt.Errorf("no outbox message found with id %s", id)
}

func paginate[T any](items []T, page domain.PageRequest) domain.Page[T] {
	total := int64(len(items))
	start := min(page.Offset(), len(items))
	end := min(start+page.Size, len(items))
	return domain.NewPage(slices.Clone(items[start:end]), page, total)
}
