package engine

import "math"

// XP and level constants. These are fixed; changing them would re-rank every
// existing account.
const (
	// BaseXP is the XP cost of advancing from level 1 to level 2. Each
	// subsequent level costs floor(BaseXP * Scaling^(level-1)) more.
	BaseXP  = 1000
	Scaling = 1.5

	// WinXP is awarded for any profitable trade.
	WinXP = 50
	// BigWinXP is added when the trade's PnL exceeds BigWinThreshold.
	BigWinXP        = 100
	BigWinThreshold = 1000.0
	// StreakBonusPerWin * streak is added once the streak (counted after
	// this win) exceeds StreakBonusFrom.
	StreakBonusPerWin = 25
	StreakBonusFrom   = 2
)

// levelCost is the additional XP required to advance from the given level to
// the next one. The cost grows past MaxInt64 around level 92; it is clamped
// there so callers never see a negative cost.
func levelCost(level int) int64 {
	cost := math.Floor(BaseXP * math.Pow(Scaling, float64(level-1)))
	if cost >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(cost)
}

// Level maps a total XP figure to a level. Level 1 requires 0 XP; level L+1
// requires levelCost(L) XP beyond the cumulative threshold of L. The
// thresholds are summed iteratively to match their definition exactly, and
// the function is pure: the same totalXP always yields the same level.
func Level(totalXP int64) int {
	if totalXP < 0 {
		return 1
	}
	level := 1
	var cumulative int64
	for {
		// Compared against the remaining XP rather than cumulative+cost so
		// a clamped cost cannot overflow the sum.
		cost := levelCost(level)
		if cost > totalXP-cumulative {
			return level
		}
		cumulative += cost
		level++
	}
}

// LevelProgress reports how far into the current level totalXP sits:
// xpInto is the XP accumulated past the current level's threshold, xpForNext
// is the full cost of the next level.
func LevelProgress(totalXP int64) (level int, xpInto, xpForNext int64) {
	if totalXP < 0 {
		totalXP = 0
	}
	level = 1
	var cumulative int64
	for {
		cost := levelCost(level)
		if cost > totalXP-cumulative {
			return level, totalXP - cumulative, cost
		}
		cumulative += cost
		level++
	}
}

// TradeOutcome is the progression delta produced by one settled trade.
type TradeOutcome struct {
	XP        int64
	NewStreak int
}

// TradeXP computes the XP award and resulting streak for a settled trade.
// Winning trades increment the streak first, then earn 50 base XP, +100 when
// the PnL clears the big-win threshold, +25*streak once the post-increment
// streak exceeds 2. Losing or breakeven trades earn nothing and reset the
// streak.
func TradeXP(pnl float64, currentStreak int) TradeOutcome {
	if pnl <= 0 {
		return TradeOutcome{XP: 0, NewStreak: 0}
	}

	streak := currentStreak + 1
	xp := int64(WinXP)
	if pnl > BigWinThreshold {
		xp += BigWinXP
	}
	if streak > StreakBonusFrom {
		xp += int64(StreakBonusPerWin * streak)
	}
	return TradeOutcome{XP: xp, NewStreak: streak}
}
