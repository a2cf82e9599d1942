package services

import (
	"errors"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"

	"github.com/plateful/plateful-web/internal/database"
)

// Level curve: level = floor(0.1 * sqrt(0.1 * xp)) + 1. This is the only
// place the level is computed; user_level is always derived from xp_points.
const (
	levelCurveOuter = 0.1
	levelCurveInner = 0.1
	baseLevel       = 1
)

// ErrInvalidXPAmount is returned when an award is zero or negative
var ErrInvalidXPAmount = errors.New("xp amount must be positive")

// LevelForXP derives a user's level from their cumulative experience
// points. It is monotonically non-decreasing for xp >= 0 and must never be
// called with negative xp.
func LevelForXP(xp int) int {
	return int(math.Floor(levelCurveOuter*math.Sqrt(levelCurveInner*float64(xp)))) + baseLevel
}

// ProgressionService is the ledger of per-user XP and level
type ProgressionService struct {
	db *database.DB
}

func NewProgressionService(db *database.DB) *ProgressionService {
	return &ProgressionService{db: db}
}

// AwardXP adds amount to the user's XP, recomputes their level and raises
// the has_leveled flag when the level changed.
func (s *ProgressionService) AwardXP(userID, amount int) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.AwardXPTx(tx, userID, amount); err != nil {
		return err
	}
	return tx.Commit()
}

// AwardXPTx is AwardXP scoped to an existing transaction, so callers can
// combine the award with their own writes in one atomic unit.
func (s *ProgressionService) AwardXPTx(tx *sqlx.Tx, userID, amount int) error {
	if amount <= 0 {
		return ErrInvalidXPAmount
	}

	// The relative update composes under concurrent awards; last-writer-wins
	// on an absolute value would not.
	res, err := tx.Exec(`UPDATE users SET xp_points = xp_points + ? WHERE id = ?`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to award xp: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %d not found", userID)
	}

	var row struct {
		XPPoints  int `db:"xp_points"`
		UserLevel int `db:"user_level"`
	}
	if err := tx.Get(&row, `SELECT xp_points, user_level FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("failed to read user xp: %w", err)
	}

	newLevel := LevelForXP(row.XPPoints)
	if newLevel == row.UserLevel {
		return nil
	}

	_, err = tx.Exec(`UPDATE users SET user_level = ?, has_leveled = TRUE WHERE id = ?`, newLevel, userID)
	if err != nil {
		return fmt.Errorf("failed to update user level: %w", err)
	}
	return nil
}

// AcknowledgeLevelUp clears the one-shot level-up flag after the client has
// shown the level-up UI. Safe to call repeatedly.
func (s *ProgressionService) AcknowledgeLevelUp(userID int) error {
	_, err := s.db.Exec(`UPDATE users SET has_leveled = FALSE WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge level up: %w", err)
	}
	return nil
}
