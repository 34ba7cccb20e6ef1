package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/engine"
)

// OpenRequest is the input for opening a position.
type OpenRequest struct {
	Wallet     string
	Pair       string
	Side       domain.Side
	Size       float64
	Leverage   int
	StopLoss   *float64
	TakeProfit *float64
}

// TradingConfig bounds what the trading service accepts.
type TradingConfig struct {
	MaxLeverage     int
	MinPositionSize float64
	MaxPositionSize float64
	Pairs           []string
	MaxPriceAge     time.Duration
	LockTTL         time.Duration
}

// TradingService opens, closes, and force-settles leveraged paper positions.
// All settlement goes through the SettlementStore's transactions; the
// per-wallet lock on top keeps one account's operations from interleaving,
// and the conditional SQL underneath keeps correctness independent of the
// lock.
type TradingService struct {
	positions    domain.PositionStore
	settle       domain.SettlementStore
	prices       domain.PriceSource
	locks        domain.LockManager
	bus          domain.SignalBus
	audit        domain.AuditStore
	achievements *AchievementService
	leaderboard  *LeaderboardService
	cfg          TradingConfig
	pairs        map[string]bool
	logger       *slog.Logger
}

// NewTradingService creates a TradingService with all required dependencies.
func NewTradingService(
	positions domain.PositionStore,
	settle domain.SettlementStore,
	prices domain.PriceSource,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	achievements *AchievementService,
	leaderboard *LeaderboardService,
	cfg TradingConfig,
	logger *slog.Logger,
) *TradingService {
	pairs := make(map[string]bool, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		pairs[p] = true
	}
	return &TradingService{
		positions:    positions,
		settle:       settle,
		prices:       prices,
		locks:        locks,
		bus:          bus,
		audit:        audit,
		achievements: achievements,
		leaderboard:  leaderboard,
		cfg:          cfg,
		pairs:        pairs,
		logger:       logger,
	}
}

// OpenPosition validates the request, reserves margin, and creates the
// position at the latest cached price. The liquidation price is fixed here
// and never moves.
func (s *TradingService) OpenPosition(ctx context.Context, req OpenRequest) (domain.Position, float64, error) {
	if err := s.validateOpen(req); err != nil {
		return domain.Position{}, 0, err
	}

	tick, err := s.freshPrice(ctx, req.Pair)
	if err != nil {
		return domain.Position{}, 0, err
	}

	pos := domain.Position{
		ID:               uuid.NewString(),
		Wallet:           req.Wallet,
		Pair:             req.Pair,
		Side:             req.Side,
		Size:             req.Size,
		Leverage:         req.Leverage,
		EntryPrice:       tick.Price,
		LiquidationPrice: engine.LiquidationPrice(req.Side, tick.Price, req.Leverage),
		StopLoss:         req.StopLoss,
		TakeProfit:       req.TakeProfit,
		OpenedAt:         time.Now().UTC(),
	}
	if err := validateStops(pos); err != nil {
		return domain.Position{}, 0, err
	}

	unlock, err := s.locks.Acquire(ctx, "acct:"+req.Wallet, s.cfg.LockTTL)
	if err != nil {
		return domain.Position{}, 0, fmt.Errorf("trading_service: lock %s: %w", req.Wallet, err)
	}
	defer unlock()

	newBalance, err := s.settle.OpenPosition(ctx, pos)
	if err != nil {
		return domain.Position{}, 0, fmt.Errorf("trading_service: open %s: %w", req.Wallet, err)
	}

	s.publishEvent(ctx, "positions", map[string]any{
		"event":       "position_opened",
		"position_id": pos.ID,
		"wallet":      pos.Wallet,
		"pair":        pos.Pair,
		"side":        string(pos.Side),
		"size":        pos.Size,
		"leverage":    pos.Leverage,
		"entry_price": pos.EntryPrice,
	})
	s.auditLog(ctx, "position_opened", map[string]any{
		"position_id": pos.ID,
		"wallet":      pos.Wallet,
		"pair":        pos.Pair,
		"side":        string(pos.Side),
		"size":        pos.Size,
		"leverage":    pos.Leverage,
		"entry_price": pos.EntryPrice,
		"liq_price":   pos.LiquidationPrice,
	})

	s.logger.InfoContext(ctx, "trading_service: position opened",
		slog.String("position_id", pos.ID),
		slog.String("wallet", pos.Wallet),
		slog.String("pair", pos.Pair),
		slog.String("side", string(pos.Side)),
		slog.Float64("entry_price", pos.EntryPrice),
		slog.Float64("size", pos.Size),
		slog.Int("leverage", pos.Leverage),
	)

	return pos, newBalance, nil
}

// ClosePosition settles a position voluntarily at the latest cached price.
func (s *TradingService) ClosePosition(ctx context.Context, wallet, positionID string) (domain.SettlementResult, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("trading_service: get position %s: %w", positionID, err)
	}
	if pos.Wallet != wallet {
		return domain.SettlementResult{}, domain.ErrUnauthorized
	}

	tick, err := s.freshPrice(ctx, pos.Pair)
	if err != nil {
		return domain.SettlementResult{}, err
	}

	// A close racing against the trigger monitor settles whichever exit
	// applies first; the status='open' guard in the settlement makes the
	// loser a clean ErrNotFound.
	exitPrice := tick.Price
	status := domain.TradeStatusClosed
	if trig := engine.CheckTriggers(pos, tick.Price); trig == engine.TriggerLiquidation {
		exitPrice = pos.LiquidationPrice
		status = domain.TradeStatusLiquidated
	}

	return s.settleClose(ctx, pos, exitPrice, status, "manual")
}

// settleClose runs the settlement transaction under the per-wallet lock and
// fans out the follow-on effects: events, audit, achievements, leaderboards.
func (s *TradingService) settleClose(
	ctx context.Context,
	pos domain.Position,
	exitPrice float64,
	status domain.TradeStatus,
	reason string,
) (domain.SettlementResult, error) {
	unlock, err := s.locks.Acquire(ctx, "acct:"+pos.Wallet, s.cfg.LockTTL)
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("trading_service: lock %s: %w", pos.Wallet, err)
	}
	defer unlock()

	res, err := s.settle.ClosePosition(ctx, pos.Wallet, pos.ID, exitPrice, status, time.Now().UTC())
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("trading_service: close %s: %w", pos.ID, err)
	}

	event := "position_closed"
	if status == domain.TradeStatusLiquidated {
		event = "position_liquidated"
	}
	s.publishEvent(ctx, "positions", map[string]any{
		"event":       event,
		"position_id": pos.ID,
		"wallet":      pos.Wallet,
		"pair":        pos.Pair,
		"exit_price":  exitPrice,
		"pnl":         res.Trade.PnL,
		"xp_earned":   res.XPAwarded,
		"streak":      res.NewStreak,
		"reason":      reason,
	})
	if res.LeveledUp {
		s.publishEvent(ctx, "progression", map[string]any{
			"event":  "level_up",
			"wallet": pos.Wallet,
			"level":  res.NewLevel,
		})
	}

	detail := map[string]any{
		"position_id": pos.ID,
		"trade_id":    res.Trade.ID,
		"wallet":      pos.Wallet,
		"pair":        pos.Pair,
		"exit_price":  exitPrice,
		"pnl":         res.Trade.PnL,
		"status":      string(status),
		"reason":      reason,
	}
	if res.Trade.Shortfall > 0 {
		detail["shortfall"] = res.Trade.Shortfall
	}
	s.auditLog(ctx, event, detail)

	s.logger.InfoContext(ctx, "trading_service: position settled",
		slog.String("position_id", pos.ID),
		slog.String("wallet", pos.Wallet),
		slog.String("status", string(status)),
		slog.String("reason", reason),
		slog.Float64("exit_price", exitPrice),
		slog.Float64("pnl", res.Trade.PnL),
		slog.Int64("xp_earned", res.XPAwarded),
	)

	s.leaderboard.RecordSettlement(ctx, pos.Wallet, res)
	s.achievements.EvaluateAfterTrade(ctx, pos.Wallet, res)

	return res, nil
}

// ListPositions returns the wallet's open positions annotated with the
// latest cached price and live unrealized PnL. Positions whose pair has no
// cached price yet come back with a zero CurrentPrice.
func (s *TradingService) ListPositions(ctx context.Context, wallet string) ([]domain.PositionView, error) {
	open, err := s.positions.ListOpen(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("trading_service: list open %s: %w", wallet, err)
	}

	views := make([]domain.PositionView, 0, len(open))
	for _, pos := range open {
		view := domain.PositionView{Position: pos}
		if tick, err := s.prices.GetCurrentPrice(ctx, pos.Pair); err == nil {
			view.CurrentPrice = tick.Price
			view.UnrealizedPnL = engine.UnrealizedPnL(pos.Side, pos.EntryPrice, tick.Price, pos.Size)
			view.PriceAt = tick.Timestamp
		}
		views = append(views, view)
	}
	return views, nil
}

// GetPosition returns one open position with live PnL, checking ownership.
func (s *TradingService) GetPosition(ctx context.Context, wallet, positionID string) (domain.PositionView, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return domain.PositionView{}, fmt.Errorf("trading_service: get position %s: %w", positionID, err)
	}
	if pos.Wallet != wallet {
		return domain.PositionView{}, domain.ErrUnauthorized
	}

	view := domain.PositionView{Position: pos}
	if tick, err := s.prices.GetCurrentPrice(ctx, pos.Pair); err == nil {
		view.CurrentPrice = tick.Price
		view.UnrealizedPnL = engine.UnrealizedPnL(pos.Side, pos.EntryPrice, tick.Price, pos.Size)
		view.PriceAt = tick.Timestamp
	}
	return view, nil
}

// MonitorTriggers runs the server-side stop-loss / take-profit / liquidation
// sweep every interval until ctx is cancelled. Exits do not depend on the
// owner being online.
func (s *TradingService) MonitorTriggers(ctx context.Context, interval time.Duration) error {
	s.logger.Info("trading_service: trigger monitor started",
		slog.Duration("interval", interval),
	)
	defer s.logger.Info("trading_service: trigger monitor stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepTriggers(ctx)
		}
	}
}

// sweepTriggers evaluates every open position against the latest price and
// settles the ones whose exit condition fired.
func (s *TradingService) sweepTriggers(ctx context.Context) {
	open, err := s.positions.ListOpenAll(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "trading_service: trigger sweep list failed",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, pos := range open {
		tick, err := s.prices.GetCurrentPrice(ctx, pos.Pair)
		if err != nil {
			continue
		}

		trig := engine.CheckTriggers(pos, tick.Price)
		if trig == engine.TriggerNone {
			continue
		}

		// Liquidations settle at the liquidation price so the loss equals
		// the margin exactly; stops settle at the observed price.
		exitPrice := tick.Price
		status := domain.TradeStatusClosed
		if trig == engine.TriggerLiquidation {
			exitPrice = pos.LiquidationPrice
			status = domain.TradeStatusLiquidated
		}

		if _, err := s.settleClose(ctx, pos, exitPrice, status, trig.String()); err != nil {
			// ErrNotFound here means a racing manual close won; not a fault.
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrLockHeld) {
				continue
			}
			s.logger.WarnContext(ctx, "trading_service: trigger settle failed",
				slog.String("position_id", pos.ID),
				slog.String("trigger", trig.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// freshPrice returns the latest cached tick for a pair, rejecting prices
// older than the configured maximum age.
func (s *TradingService) freshPrice(ctx context.Context, pair string) (domain.PricePoint, error) {
	tick, err := s.prices.GetCurrentPrice(ctx, pair)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("trading_service: price %s: %w", pair, err)
	}
	if s.cfg.MaxPriceAge > 0 && time.Since(tick.Timestamp) > s.cfg.MaxPriceAge {
		return domain.PricePoint{}, fmt.Errorf("trading_service: price %s: %w", pair, domain.ErrStalePrice)
	}
	return tick, nil
}

func (s *TradingService) validateOpen(req OpenRequest) error {
	if !s.pairs[req.Pair] {
		return domain.Validation("pair", "unknown trading pair")
	}
	if !req.Side.Valid() {
		return domain.Validation("side", "must be LONG or SHORT")
	}
	if req.Size < s.cfg.MinPositionSize || req.Size > s.cfg.MaxPositionSize {
		return domain.Validation("size", fmt.Sprintf("must be between %g and %g", s.cfg.MinPositionSize, s.cfg.MaxPositionSize))
	}
	if req.Leverage < 1 || req.Leverage > s.cfg.MaxLeverage {
		return domain.Validation("leverage", fmt.Sprintf("must be between 1 and %d", s.cfg.MaxLeverage))
	}
	return nil
}

// validateStops checks stop-loss and take-profit against the entry and
// liquidation prices. A stop the market can never reach before liquidation
// is rejected rather than stored dead.
func validateStops(pos domain.Position) error {
	if pos.StopLoss != nil {
		sl := *pos.StopLoss
		if sl <= 0 {
			return domain.Validation("stop_loss", "must be positive")
		}
		if pos.Side == domain.SideLong && (sl >= pos.EntryPrice || sl <= pos.LiquidationPrice) {
			return domain.Validation("stop_loss", "must be below entry and above liquidation price")
		}
		if pos.Side == domain.SideShort && (sl <= pos.EntryPrice || sl >= pos.LiquidationPrice) {
			return domain.Validation("stop_loss", "must be above entry and below liquidation price")
		}
	}
	if pos.TakeProfit != nil {
		tp := *pos.TakeProfit
		if tp <= 0 {
			return domain.Validation("take_profit", "must be positive")
		}
		if pos.Side == domain.SideLong && tp <= pos.EntryPrice {
			return domain.Validation("take_profit", "must be above entry price")
		}
		if pos.Side == domain.SideShort && tp >= pos.EntryPrice {
			return domain.Validation("take_profit", "must be below entry price")
		}
	}
	return nil
}

func (s *TradingService) publishEvent(ctx context.Context, channel string, fields map[string]any) {
	payload, _ := json.Marshal(fields)
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "trading_service: publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradingService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "trading_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
