package service

import (
	"context"
	"sync"
	"time"

	"bookkeeping/models"

	"github.com/shopspring/decimal"
)

// memStore 内存版 Store，InTx 以互斥锁模拟行锁
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	transactions  []models.Transaction
	profiles      map[uint]*models.UserProfile
	users         map[uint]*models.User
	notifications []models.Notification
	prefs         map[uint]*models.NotificationPreference

	nextID uint
	clock  func() time.Time
	err    error
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[uint]*models.UserProfile{},
		users:    map[uint]*models.User{},
		prefs:    map[uint]*models.NotificationPreference{},
		clock:    time.Now,
	}
}

func (s *memStore) setBudget(userID uint, budget string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = &models.UserProfile{
		UserID:        userID,
		Currency:      models.DefaultCurrency,
		MonthlyBudget: decimal.NewNullDecimal(decimal.RequireFromString(budget)),
	}
}

func (s *memStore) addTx(userID uint, typ models.TransactionType, amount string, date time.Time, cat *models.Category) *models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	tx := models.Transaction{
		ID:        s.nextID,
		UserID:    userID,
		Title:     "tx",
		Type:      typ,
		Amount:    decimal.RequireFromString(amount),
		Date:      date,
		Category:  cat,
		CreatedAt: date,
	}
	if cat != nil {
		tx.CategoryID = cat.ID
	}
	s.transactions = append(s.transactions, tx)
	return &s.transactions[len(s.transactions)-1]
}

func (s *memStore) notificationsOf(typ models.NotificationType) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func (s *memStore) ListTransactions(_ context.Context, userID uint, r DateRange) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID && r.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *memStore) SummaryRows(ctx context.Context, userID uint, r DateRange) ([]SummaryRow, error) {
	txs, err := s.ListTransactions(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	return AggregateTransactions(txs, r), nil
}

func (s *memStore) RecentTransactions(ctx context.Context, userID uint, r DateRange, limit int) ([]models.Transaction, error) {
	txs, err := s.ListTransactions(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	return LatestTransactions(txs, r, limit), nil
}

func (s *memStore) SumExpenses(_ context.Context, userID uint, from, to time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return decimal.Zero, s.err
	}
	total := decimal.Zero
	for _, tx := range s.transactions {
		if tx.UserID != userID || tx.Type != models.TransactionExpense {
			continue
		}
		if !tx.Date.Before(from) && tx.Date.Before(to) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

func (s *memStore) GetProfile(_ context.Context, userID uint, _ bool) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) GetUser(_ context.Context, userID uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *memStore) HasNotificationSince(_ context.Context, userID uint, typ models.NotificationType, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.UserID == userID && n.Type == typ && n.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.nextID++
	n.ID = s.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock()
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *memStore) GetPreference(_ context.Context, userID uint) (*models.NotificationPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.prefs[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) CreatePreference(_ context.Context, p *models.NotificationPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prefs[p.UserID]; ok {
		return nil
	}
	cp := *p
	s.prefs[p.UserID] = &cp
	return nil
}

func (s *memStore) InTx(_ context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
