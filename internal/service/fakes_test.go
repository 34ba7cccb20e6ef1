package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/engine"
)

// In-memory fakes backing the service tests. The settlement fake mirrors the
// transactional store's semantics: conditional debits, open-only retirement,
// unique achievement slots.

type fakeState struct {
	mu           sync.Mutex
	accounts     map[string]*domain.Account
	positions    map[string]domain.Position
	trades       []domain.Trade
	achievements map[string]map[domain.AchievementType]domain.Achievement
}

func newFakeState() *fakeState {
	return &fakeState{
		accounts:     map[string]*domain.Account{},
		positions:    map[string]domain.Position{},
		achievements: map[string]map[domain.AchievementType]domain.Achievement{},
	}
}

type fakeAccountStore struct{ st *fakeState }

func (f *fakeAccountStore) Create(_ context.Context, acct domain.Account) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if _, ok := f.st.accounts[acct.Wallet]; ok {
		return nil
	}
	a := acct
	f.st.accounts[acct.Wallet] = &a
	return nil
}

func (f *fakeAccountStore) GetByWallet(_ context.Context, wallet string) (domain.Account, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	a, ok := f.st.accounts[wallet]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return *a, nil
}

func (f *fakeAccountStore) Archive(_ context.Context, wallet string) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	a, ok := f.st.accounts[wallet]
	if !ok || a.Status != domain.AccountStatusActive {
		return domain.ErrNotFound
	}
	a.Status = domain.AccountStatusArchived
	return nil
}

func (f *fakeAccountStore) ListTopByXP(_ context.Context, limit int) ([]domain.Account, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	out := make([]domain.Account, 0, len(f.st.accounts))
	for _, a := range f.st.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalXP > out[j].TotalXP })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakePositionStore struct{ st *fakeState }

func (f *fakePositionStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	pos, ok := f.st.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func (f *fakePositionStore) ListOpen(_ context.Context, wallet string) ([]domain.Position, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var out []domain.Position
	for _, pos := range f.st.positions {
		if pos.Wallet == wallet {
			out = append(out, pos)
		}
	}
	return out, nil
}

func (f *fakePositionStore) ListOpenAll(_ context.Context) ([]domain.Position, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	out := make([]domain.Position, 0, len(f.st.positions))
	for _, pos := range f.st.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

type fakeTradeStore struct{ st *fakeState }

func (f *fakeTradeStore) GetByID(_ context.Context, id string) (domain.Trade, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	for _, t := range f.st.trades {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Trade{}, domain.ErrNotFound
}

func (f *fakeTradeStore) ListByWallet(_ context.Context, wallet string, opts domain.ListOpts) ([]domain.Trade, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var out []domain.Trade
	for _, t := range f.st.trades {
		if t.Wallet == wallet {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.After(out[j].ClosedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeTradeStore) Stats(_ context.Context, wallet string) (domain.TradeStats, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var stats domain.TradeStats
	for _, t := range f.st.trades {
		if t.Wallet != wallet {
			continue
		}
		stats.Total++
		stats.RealizedPnL += t.PnL
		if t.PnL > 0 {
			stats.Wins++
		}
		if t.Status == domain.TradeStatusLiquidated {
			stats.Liquidations++
		}
		if t.PnL > stats.BiggestWin {
			stats.BiggestWin = t.PnL
		}
	}
	return stats, nil
}

func (f *fakeTradeStore) ListBefore(_ context.Context, before time.Time) ([]domain.Trade, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var out []domain.Trade
	for _, t := range f.st.trades {
		if t.ClosedAt.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeAchievementStore struct{ st *fakeState }

func (f *fakeAchievementStore) ListByWallet(_ context.Context, wallet string) ([]domain.Achievement, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var out []domain.Achievement
	for _, a := range f.st.achievements[wallet] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnlockedAt.Before(out[j].UnlockedAt) })
	return out, nil
}

type fakeSettlementStore struct {
	st *fakeState
}

func (f *fakeSettlementStore) OpenPosition(_ context.Context, pos domain.Position) (float64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	acct, ok := f.st.accounts[pos.Wallet]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if acct.Status != domain.AccountStatusActive {
		return 0, domain.ErrAccountArchived
	}
	margin := pos.Margin()
	if acct.Balance < margin {
		return 0, domain.ErrInsufficientFunds
	}
	acct.Balance -= margin
	f.st.positions[pos.ID] = pos
	return acct.Balance, nil
}

func (f *fakeSettlementStore) ClosePosition(
	_ context.Context,
	wallet, positionID string,
	exitPrice float64,
	status domain.TradeStatus,
	closedAt time.Time,
) (domain.SettlementResult, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()

	pos, ok := f.st.positions[positionID]
	if !ok {
		return domain.SettlementResult{}, domain.ErrNotFound
	}
	if pos.Wallet != wallet {
		return domain.SettlementResult{}, domain.ErrUnauthorized
	}
	delete(f.st.positions, positionID)

	acct := f.st.accounts[wallet]
	margin := pos.Margin()
	raw := engine.UnrealizedPnL(pos.Side, pos.EntryPrice, exitPrice, pos.Size)
	pnl, shortfall := engine.ClampPnL(raw, margin)
	out := engine.TradeXP(pnl, acct.CurrentStreak)

	acct.Balance += margin + pnl
	acct.TotalXP += out.XP
	acct.CurrentStreak = out.NewStreak
	if out.NewStreak > acct.LongestStreak {
		acct.LongestStreak = out.NewStreak
	}
	oldLevel := acct.CurrentLevel
	acct.CurrentLevel = engine.Level(acct.TotalXP)

	trade := domain.Trade{
		ID:            positionID + "-trade",
		PositionID:    positionID,
		Wallet:        wallet,
		Pair:          pos.Pair,
		Side:          pos.Side,
		Size:          pos.Size,
		Leverage:      pos.Leverage,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     exitPrice,
		PnL:           pnl,
		PnLPercentage: engine.PnLPercentage(pnl, margin),
		Shortfall:     shortfall,
		Status:        status,
		XPEarned:      out.XP,
		OpenedAt:      pos.OpenedAt,
		ClosedAt:      closedAt,
	}
	f.st.trades = append(f.st.trades, trade)

	return domain.SettlementResult{
		Trade:      trade,
		NewBalance: acct.Balance,
		XPAwarded:  out.XP,
		NewLevel:   acct.CurrentLevel,
		LeveledUp:  acct.CurrentLevel > oldLevel,
		NewStreak:  out.NewStreak,
	}, nil
}

func (f *fakeSettlementStore) UnlockAchievement(_ context.Context, a domain.Achievement) (int64, int, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()

	acct, ok := f.st.accounts[a.Wallet]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	slots := f.st.achievements[a.Wallet]
	if slots == nil {
		slots = map[domain.AchievementType]domain.Achievement{}
		f.st.achievements[a.Wallet] = slots
	}
	if _, held := slots[a.Type]; held {
		return 0, 0, domain.ErrAlreadyUnlocked
	}
	slots[a.Type] = a
	acct.TotalXP += a.XPReward
	acct.CurrentLevel = engine.Level(acct.TotalXP)
	return acct.TotalXP, acct.CurrentLevel, nil
}

type fakePriceSource struct {
	mu     sync.Mutex
	prices map[string]domain.PricePoint
}

func newFakePriceSource() *fakePriceSource {
	return &fakePriceSource{prices: map[string]domain.PricePoint{}}
}

func (f *fakePriceSource) set(pair string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[pair] = domain.PricePoint{Pair: pair, Price: price, Timestamp: time.Now()}
}

func (f *fakePriceSource) setStale(pair string, price float64, age time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[pair] = domain.PricePoint{Pair: pair, Price: price, Timestamp: time.Now().Add(-age)}
}

func (f *fakePriceSource) GetCurrentPrice(_ context.Context, pair string) (domain.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[pair]
	if !ok {
		return domain.PricePoint{}, domain.ErrNotFound
	}
	return p, nil
}

type fakePriceCache struct{ src *fakePriceSource }

func (f *fakePriceCache) SetPrice(_ context.Context, pair string, price float64, ts time.Time) error {
	f.src.mu.Lock()
	defer f.src.mu.Unlock()
	f.src.prices[pair] = domain.PricePoint{Pair: pair, Price: price, Timestamp: ts}
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, pair string) (float64, time.Time, error) {
	f.src.mu.Lock()
	defer f.src.mu.Unlock()
	p, ok := f.src.prices[pair]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p.Price, p.Timestamp, nil
}

func (f *fakePriceCache) GetPrices(_ context.Context, pairs []string) (map[string]float64, error) {
	f.src.mu.Lock()
	defer f.src.mu.Unlock()
	out := map[string]float64{}
	for _, pair := range pairs {
		if p, ok := f.src.prices[pair]; ok {
			out[pair] = p.Price
		}
	}
	return out, nil
}

type fakeLockManager struct{}

func (fakeLockManager) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

type fakeBus struct {
	mu       sync.Mutex
	messages []domain.BusMessage
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, domain.BusMessage{Channel: channel, Payload: payload})
	return nil
}

func (f *fakeBus) Subscribe(context.Context, ...string) (<-chan domain.BusMessage, error) {
	ch := make(chan domain.BusMessage)
	close(ch)
	return ch, nil
}

func (f *fakeBus) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		out = append(out, string(m.Payload))
	}
	return out
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (f *fakeAuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, domain.AuditEntry{
		ID:        int64(len(f.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AuditEntry(nil), f.entries...), nil
}

func (f *fakeAuditStore) ListBefore(_ context.Context, before time.Time) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range f.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeLeaderboard struct {
	mu     sync.Mutex
	scores map[string]map[string]float64
}

func newFakeLeaderboard() *fakeLeaderboard {
	return &fakeLeaderboard{scores: map[string]map[string]float64{}}
}

func (f *fakeLeaderboard) board(name string) map[string]float64 {
	b := f.scores[name]
	if b == nil {
		b = map[string]float64{}
		f.scores[name] = b
	}
	return b
}

func (f *fakeLeaderboard) SetScore(_ context.Context, board, wallet string, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.board(board)[wallet] = score
	return nil
}

func (f *fakeLeaderboard) IncrScore(_ context.Context, board, wallet string, delta float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.board(board)[wallet] += delta
	return nil
}

func (f *fakeLeaderboard) Top(_ context.Context, board string, limit int) ([]domain.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.board(board)
	entries := make([]domain.LeaderboardEntry, 0, len(b))
	for wallet, score := range b {
		entries = append(entries, domain.LeaderboardEntry{Wallet: wallet, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeLeaderboard) Rank(ctx context.Context, board, wallet string) (domain.LeaderboardEntry, error) {
	entries, err := f.Top(ctx, board, 1<<30)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	for _, e := range entries {
		if e.Wallet == wallet {
			return e, nil
		}
	}
	return domain.LeaderboardEntry{}, domain.ErrNotFound
}
