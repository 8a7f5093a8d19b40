//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-private-group/internal/config"
	"telegram-private-group/internal/domain"
	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/domain/ports/adapter"
	"telegram-private-group/internal/domain/ports/repository"
	"telegram-private-group/internal/infra/i18n"
)

// -----------------------------
// In-memory store shared by the repository mocks
// -----------------------------

type memStore struct {
	mu    sync.Mutex
	users map[int64]*model.TelegramUser
	plans map[model.Period]*model.Plan
	subs  map[string]*model.Subscription
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[int64]*model.TelegramUser),
		plans: make(map[model.Period]*model.Plan),
		subs:  make(map[string]*model.Subscription),
	}
}

func (s *memStore) addUser(u *model.TelegramUser) *model.TelegramUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ChatID] = &cp
	return u
}

func (s *memStore) addPlan(period model.Period, price int64) *model.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &model.Plan{Period: period, Price: price}
	s.plans[period] = p
	cp := *p
	return &cp
}

func (s *memStore) addSub(sub *model.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	cp.Customer = nil
	s.subs[sub.ID] = &cp
}

func (s *memStore) user(chatID int64) *model.TelegramUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[chatID]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (s *memStore) subCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// hydrate must be called with mu held.
func (s *memStore) hydrate(sub *model.Subscription) *model.Subscription {
	cp := *sub
	if u, ok := s.users[sub.CustomerID]; ok {
		uc := *u
		cp.Customer = &uc
	}
	return &cp
}

// sorted must be called with mu held.
func (s *memStore) sorted(keep func(*model.Subscription) bool) []*model.Subscription {
	var out []*model.Subscription
	for _, sub := range s.subs {
		if keep(sub) {
			out = append(out, s.hydrate(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndAt.Before(out[j].EndAt) })
	return out
}

// ---- memUserRepo ----

type memUserRepo struct {
	*memStore
	CreateErr error
	SaveErr   error
	MarkErr   error
	ClearErr  error
}

var _ repository.UserRepository = (*memUserRepo)(nil)

func (m *memUserRepo) Create(ctx context.Context, tx repository.Tx, u *model.TelegramUser) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ChatID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, other := range m.users {
		if other.Username == u.Username {
			return domain.ErrAlreadyExists
		}
	}
	cp := *u
	m.users[u.ChatID] = &cp
	return nil
}

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.TelegramUser) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.users {
		if id != u.ChatID && other.Username == u.Username {
			return domain.ErrAlreadyExists
		}
	}
	cp := *u
	if prev, ok := m.users[u.ChatID]; ok {
		cp.InPrivateGroup = prev.InPrivateGroup
	}
	m.users[u.ChatID] = &cp
	return nil
}

func (m *memUserRepo) FindByChatID(ctx context.Context, tx repository.Tx, chatID int64) (*model.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := model.NormalizeUsername(username)
	for _, u := range m.users {
		if u.Username == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) ListAdmins(ctx context.Context, tx repository.Tx) ([]*model.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TelegramUser
	for _, u := range m.users {
		if u.IsAdmin {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (m *memUserRepo) MarkAdmitted(ctx context.Context, tx repository.Tx, subscriptionID string) (bool, error) {
	if m.MarkErr != nil {
		return false, m.MarkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[subscriptionID]
	if !ok {
		return false, nil
	}
	u, ok := m.users[sub.CustomerID]
	if !ok || u.InPrivateGroup {
		return false, nil
	}
	u.InPrivateGroup = true
	return true, nil
}

func (m *memUserRepo) ClearMembership(ctx context.Context, tx repository.Tx, chatID int64) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[chatID]; ok {
		u.InPrivateGroup = false
	}
	return nil
}

// ---- memPlanRepo ----

type memPlanRepo struct {
	*memStore
	UpsertFunc func(ctx context.Context, tx repository.Tx, p *model.Plan) error
}

var _ repository.PlanRepository = (*memPlanRepo)(nil)

func (m *memPlanRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.Period] = &cp
	return nil
}

func (m *memPlanRepo) FindByPeriod(ctx context.Context, tx repository.Tx, period model.Period) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[period]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Plan
	for _, period := range model.Periods() {
		if p, ok := m.plans[period]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- memSubRepo ----

type memSubRepo struct {
	*memStore
	SaveErr   error
	DeleteErr error
}

var _ repository.SubscriptionRepository = (*memSubRepo)(nil)

func (m *memSubRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[sub.Plan.Period]; !ok {
		return domain.ErrPlanNotFound
	}
	for _, other := range m.subs {
		if other.TxHash == sub.TxHash {
			return domain.ErrDuplicateTransaction
		}
		if other.CustomerID == sub.CustomerID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *sub
	cp.Customer = nil
	m.subs[sub.ID] = &cp
	return nil
}

func (m *memSubRepo) FindByCustomer(ctx context.Context, tx repository.Tx, chatID int64, forUpdate bool) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.CustomerID == chatID {
			return m.hydrate(sub), nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (m *memSubRepo) ExistsByTxHash(ctx context.Context, tx repository.Tx, txHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.TxHash == txHash {
			return true, nil
		}
	}
	return false, nil
}

func (m *memSubRepo) DeleteByID(ctx context.Context, tx repository.Tx, id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
	return nil
}

func (m *memSubRepo) DeleteExpired(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	if m.DeleteErr != nil {
		return false, m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok || sub.EndAt.After(now) {
		return false, nil
	}
	delete(m.subs, id)
	return true, nil
}

func (m *memSubRepo) ListPendingAdmission(ctx context.Context, tx repository.Tx) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(s *model.Subscription) bool {
		u, ok := m.users[s.CustomerID]
		return ok && !u.InPrivateGroup
	}), nil
}

func (m *memSubRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(s *model.Subscription) bool { return !s.EndAt.After(now) }), nil
}

func (m *memSubRepo) ListEndingAfter(ctx context.Context, tx repository.Tx, t time.Time) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(s *model.Subscription) bool { return !s.EndAt.Before(t) }), nil
}

// =============================
// Adapters
// =============================

type sentMessage struct {
	ChatID int64
	Text   string
	Photo  string
}

// MockMessenger records every send. Without SendFunc all sends succeed.
type MockMessenger struct {
	mu       sync.Mutex
	Sent     []sentMessage
	SendFunc func(chatID int64, text string) bool
}

var _ adapter.Messenger = (*MockMessenger)(nil)

func (m *MockMessenger) SendMessage(ctx context.Context, chatID int64, text string) bool {
	return m.send(sentMessage{ChatID: chatID, Text: text})
}

func (m *MockMessenger) SendPhoto(ctx context.Context, chatID int64, caption, photoPath string) bool {
	return m.send(sentMessage{ChatID: chatID, Text: caption, Photo: photoPath})
}

func (m *MockMessenger) send(msg sentMessage) bool {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(msg.ChatID, msg.Text)
	}
	return true
}

func (m *MockMessenger) sentTo(chatID int64) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMessage
	for _, s := range m.Sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// MockLedger answers ValidateTransaction with Valid unless ValidateFunc is set.
type MockLedger struct {
	Valid        bool
	Calls        int
	ValidateFunc func(txHash string, amount int64) bool
}

var _ adapter.LedgerValidator = (*MockLedger)(nil)

func (m *MockLedger) ValidateTransaction(ctx context.Context, txHash string, requiredAmount int64) bool {
	m.Calls++
	if m.ValidateFunc != nil {
		return m.ValidateFunc(txHash, requiredAmount)
	}
	return m.Valid
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// -----------------------------
// Utilities
// -----------------------------

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestComposer() *i18n.Composer {
	c, err := i18n.NewDefaultComposer("en", "en", config.NotifierConfig{CommunityName: "Club", SupportHandle: "@support"}, time.UTC)
	if err != nil {
		panic(err)
	}
	return c
}

func mustUser(chatID int64, username string, admin bool) *model.TelegramUser {
	u, err := model.NewTelegramUser(chatID, username, "", "")
	if err != nil {
		panic(err)
	}
	u.IsAdmin = admin
	return u
}

func mustSub(customerID int64, plan *model.Plan, hash string, start time.Time) *model.Subscription {
	s, err := model.NewSubscription(customerID, plan, hash, start)
	if err != nil {
		panic(err)
	}
	return s
}
