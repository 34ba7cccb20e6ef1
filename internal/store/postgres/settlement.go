package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/engine"
)

// SettlementStore implements domain.SettlementStore. Every operation runs in
// one transaction with conditional statements, so partial application is
// never observable and two racing calls resolve to exactly one winner:
//
//   - margin debit requires balance >= margin (guarded UPDATE)
//   - position retirement requires status = 'open' (SELECT FOR UPDATE)
//   - achievement insert requires the (wallet, type) slot to be free
//     (ON CONFLICT DO NOTHING)
//   - XP credits are increments, never blind writes
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// inTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise.
func (s *SettlementStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// OpenPosition debits the required margin and inserts the position as one
// atomic unit.
func (s *SettlementStore) OpenPosition(ctx context.Context, pos domain.Position) (float64, error) {
	margin := pos.Margin()
	var newBalance float64

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// Lock the account row and check it can trade.
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM accounts WHERE wallet = $1 FOR UPDATE`,
			pos.Wallet,
		).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: lock account %s: %w", pos.Wallet, err)
		}
		if domain.AccountStatus(status) != domain.AccountStatusActive {
			return domain.ErrAccountArchived
		}

		// Conditional debit: fails when the balance cannot cover the margin.
		err = tx.QueryRow(ctx,
			`UPDATE accounts SET balance = balance - $2, updated_at = NOW()
			 WHERE wallet = $1 AND balance >= $2
			 RETURNING balance`,
			pos.Wallet, margin,
		).Scan(&newBalance)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrInsufficientFunds
		}
		if err != nil {
			return fmt.Errorf("postgres: debit margin %s: %w", pos.Wallet, err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO positions (
				id, wallet, pair, side, size, leverage, entry_price,
				liquidation_price, stop_loss, take_profit, status,
				opened_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'open', $11, NOW())`,
			pos.ID, pos.Wallet, pos.Pair, string(pos.Side), pos.Size,
			pos.Leverage, pos.EntryPrice, pos.LiquidationPrice,
			pos.StopLoss, pos.TakeProfit, pos.OpenedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert position %s: %w", pos.ID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// ClosePosition settles a position: retires it, writes the immutable trade,
// credits margin plus clamped PnL back to the balance, and applies the
// XP/streak/level update derived from the outcome.
func (s *SettlementStore) ClosePosition(
	ctx context.Context,
	wallet, positionID string,
	exitPrice float64,
	status domain.TradeStatus,
	closedAt time.Time,
) (domain.SettlementResult, error) {
	var res domain.SettlementResult

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// Lock the position row; a concurrent close serializes here and then
		// observes status != 'open'.
		row := tx.QueryRow(ctx,
			`SELECT `+positionSelectCols+`, status FROM positions
			 WHERE id = $1 FOR UPDATE`, positionID)

		var pos domain.Position
		var side, posStatus string
		err := row.Scan(
			&pos.ID, &pos.Wallet, &pos.Pair, &side, &pos.Size, &pos.Leverage,
			&pos.EntryPrice, &pos.LiquidationPrice, &pos.StopLoss,
			&pos.TakeProfit, &pos.OpenedAt, &posStatus,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: lock position %s: %w", positionID, err)
		}
		pos.Side = domain.Side(side)

		if pos.Wallet != wallet {
			return domain.ErrUnauthorized
		}
		if posStatus != "open" {
			// Already settled; a retry must not double-credit.
			return domain.ErrNotFound
		}

		if _, err := tx.Exec(ctx,
			`UPDATE positions SET status = 'closed', updated_at = NOW()
			 WHERE id = $1`, positionID,
		); err != nil {
			return fmt.Errorf("postgres: retire position %s: %w", positionID, err)
		}

		// Outcome, computed once here and stored; recomputable from the
		// trade row's own fields.
		margin := pos.Margin()
		rawPnL := engine.UnrealizedPnL(pos.Side, pos.EntryPrice, exitPrice, pos.Size)
		pnl, shortfall := engine.ClampPnL(rawPnL, margin)

		// Lock the account, read streak and level for the progression update.
		var streak, oldLevel int
		err = tx.QueryRow(ctx,
			`SELECT current_streak, current_level FROM accounts
			 WHERE wallet = $1 FOR UPDATE`, wallet,
		).Scan(&streak, &oldLevel)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: lock account %s: %w", wallet, err)
		}

		out := engine.TradeXP(pnl, streak)

		var totalXP int64
		err = tx.QueryRow(ctx,
			`UPDATE accounts SET
				balance        = balance + $2,
				total_xp       = total_xp + $3,
				current_streak = $4,
				longest_streak = GREATEST(longest_streak, $4),
				updated_at     = NOW()
			 WHERE wallet = $1
			 RETURNING balance, total_xp`,
			wallet, margin+pnl, out.XP, out.NewStreak,
		).Scan(&res.NewBalance, &totalXP)
		if err != nil {
			return fmt.Errorf("postgres: credit settlement %s: %w", wallet, err)
		}

		newLevel := engine.Level(totalXP)
		if newLevel != oldLevel {
			if _, err := tx.Exec(ctx,
				`UPDATE accounts SET current_level = $2 WHERE wallet = $1`,
				wallet, newLevel,
			); err != nil {
				return fmt.Errorf("postgres: update level %s: %w", wallet, err)
			}
		}

		trade := domain.Trade{
			ID:            uuid.NewString(),
			PositionID:    pos.ID,
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

		if _, err := tx.Exec(ctx,
			`INSERT INTO trades (
				id, position_id, wallet, pair, side, size, leverage,
				entry_price, exit_price, pnl, pnl_percentage, shortfall,
				status, xp_earned, opened_at, closed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
				$13, $14, $15, $16)`,
			trade.ID, trade.PositionID, trade.Wallet, trade.Pair,
			string(trade.Side), trade.Size, trade.Leverage,
			trade.EntryPrice, trade.ExitPrice, trade.PnL,
			trade.PnLPercentage, trade.Shortfall, string(trade.Status),
			trade.XPEarned, trade.OpenedAt, trade.ClosedAt,
		); err != nil {
			return fmt.Errorf("postgres: insert trade for %s: %w", positionID, err)
		}

		res.Trade = trade
		res.XPAwarded = out.XP
		res.NewLevel = newLevel
		res.LeveledUp = newLevel > oldLevel
		res.NewStreak = out.NewStreak
		return nil
	})
	if err != nil {
		return domain.SettlementResult{}, err
	}
	return res, nil
}

// UnlockAchievement inserts the achievement and credits its XP reward in the
// same transaction. The unique (wallet, type) constraint makes duplicate
// unlocks a clean conflict rather than a double award.
func (s *SettlementStore) UnlockAchievement(ctx context.Context, a domain.Achievement) (int64, int, error) {
	var totalXP int64
	var newLevel int

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO achievements (
				id, wallet, type, name, description, xp_reward, unlocked_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (wallet, type) DO NOTHING`,
			a.ID, a.Wallet, string(a.Type), a.Name, a.Description,
			a.XPReward, a.UnlockedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert achievement %s/%s: %w", a.Wallet, a.Type, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrAlreadyUnlocked
		}

		var oldLevel int
		err = tx.QueryRow(ctx,
			`UPDATE accounts SET total_xp = total_xp + $2, updated_at = NOW()
			 WHERE wallet = $1
			 RETURNING total_xp, current_level`,
			a.Wallet, a.XPReward,
		).Scan(&totalXP, &oldLevel)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: credit achievement xp %s: %w", a.Wallet, err)
		}

		newLevel = engine.Level(totalXP)
		if newLevel != oldLevel {
			if _, err := tx.Exec(ctx,
				`UPDATE accounts SET current_level = $2 WHERE wallet = $1`,
				a.Wallet, newLevel,
			); err != nil {
				return fmt.Errorf("postgres: update level %s: %w", a.Wallet, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return totalXP, newLevel, nil
}

// Compile-time interface check.
var _ domain.SettlementStore = (*SettlementStore)(nil)
