package services

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/plateful/plateful-web/internal/database"
	"github.com/plateful/plateful-web/internal/models"
)

// Vote weights and rank payouts
const (
	firstChoicePoints  = 5
	secondChoicePoints = 3
	thirdChoicePoints  = 1

	votingGracePeriod = 24 * time.Hour
)

var payoutAmounts = []int{400, 200, 100} // rank 0..2; everyone else gets payoutConsolation

const payoutConsolation = 50

// Validation errors surfaced to the caller as a declined operation
var (
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrNotParticipant     = errors.New("voter is not a challenge participant")
	ErrSelfVote           = errors.New("participants cannot vote for themselves")
	ErrMissingFirstChoice = errors.New("a first-choice vote is required")
	ErrVotingClosed       = errors.New("voting is not open for this challenge")
	ErrResultsNotReady    = errors.New("results are not available until voting closes")
	ErrChallengeStarted   = errors.New("challenge has already started")
)

// ChallengeService aggregates weighted challenge votes and pays out XP
type ChallengeService struct {
	db          *database.DB
	progression *ProgressionService

	// now is swappable so the voting windows are testable
	now func() time.Time
}

func NewChallengeService(db *database.DB, progression *ProgressionService) *ChallengeService {
	return &ChallengeService{db: db, progression: progression, now: time.Now}
}

// GetChallenge returns a challenge by id
func (s *ChallengeService) GetChallenge(id int) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.db.Get(&challenge, `SELECT id, name, creator, theme, location, difficulty, start_time, end_time, xp_awarded FROM challenges WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return &challenge, nil
}

// ListChallenges returns all challenges, soonest first
func (s *ChallengeService) ListChallenges() ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.db.Select(&challenges, `SELECT id, name, creator, theme, location, difficulty, start_time, end_time, xp_awarded FROM challenges ORDER BY start_time, id`)
	return challenges, err
}

// CreateChallenge validates and stores a new challenge
func (s *ChallengeService) CreateChallenge(c *models.Challenge) error {
	if c.Name == "" {
		return errors.New("challenge name is required")
	}
	if c.Difficulty < 1 || c.Difficulty > 5 {
		return errors.New("difficulty must be between 1 and 5")
	}
	if !c.EndTime.After(c.StartTime) {
		return errors.New("start time must be before end time")
	}
	if c.EndTime.Sub(c.StartTime) > 24*time.Hour {
		return errors.New("duration cannot be more than 24 hours")
	}
	if c.StartTime.Before(s.now().Add(24 * time.Hour)) {
		return errors.New("start time must be at least 24 hours from now")
	}

	res, err := s.db.Exec(`
		INSERT INTO challenges (name, creator, theme, location, difficulty, start_time, end_time, xp_awarded)
		VALUES (?, ?, ?, ?, ?, ?, ?, FALSE)`,
		c.Name, c.Creator, c.Theme, c.Location, c.Difficulty, c.StartTime.UTC(), c.EndTime.UTC())
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get challenge id: %w", err)
	}
	c.ID = int(id)
	return nil
}

// Join adds a user as a participant. Joining is only possible before the
// challenge starts.
func (s *ChallengeService) Join(challengeID, userID int) error {
	challenge, err := s.GetChallenge(challengeID)
	if err != nil {
		return err
	}
	if !s.now().Before(challenge.StartTime) {
		return ErrChallengeStarted
	}
	_, err = s.db.Exec(`INSERT OR IGNORE INTO challenge_participants (challenge_id, user_id) VALUES (?, ?)`, challengeID, userID)
	if err != nil {
		return fmt.Errorf("failed to join challenge: %w", err)
	}
	return nil
}

// Leave removes a participant before the challenge starts
func (s *ChallengeService) Leave(challengeID, userID int) error {
	challenge, err := s.GetChallenge(challengeID)
	if err != nil {
		return err
	}
	if !s.now().Before(challenge.StartTime) {
		return ErrChallengeStarted
	}
	_, err = s.db.Exec(`DELETE FROM challenge_participants WHERE challenge_id = ? AND user_id = ?`, challengeID, userID)
	if err != nil {
		return fmt.Errorf("failed to leave challenge: %w", err)
	}
	return nil
}

// Participants lists the user ids entered in the challenge
func (s *ChallengeService) Participants(challengeID int) ([]int, error) {
	var ids []int
	err := s.db.Select(&ids, `SELECT user_id FROM challenge_participants WHERE challenge_id = ? ORDER BY user_id`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return ids, nil
}

// SubmitVote records a participant's ranked ballot, replacing any earlier
// ballot from the same voter. Votes are accepted from the challenge start
// through 24 hours after its end.
func (s *ChallengeService) SubmitVote(challengeID, voterID int, first int, second, third *int) error {
	challenge, err := s.GetChallenge(challengeID)
	if err != nil {
		return err
	}

	now := s.now()
	if now.Before(challenge.StartTime) || now.After(challenge.EndTime.Add(votingGracePeriod)) {
		return ErrVotingClosed
	}

	if first == 0 {
		return ErrMissingFirstChoice
	}
	if voterID == first || (second != nil && voterID == *second) || (third != nil && voterID == *third) {
		return ErrSelfVote
	}

	var isParticipant bool
	err = s.db.Get(&isParticipant, `SELECT COUNT(*) > 0 FROM challenge_participants WHERE challenge_id = ? AND user_id = ?`, challengeID, voterID)
	if err != nil {
		return fmt.Errorf("failed to check participant: %w", err)
	}
	if !isParticipant {
		return ErrNotParticipant
	}

	query := `
		INSERT INTO challenge_votes (challenge_id, given_by, first_choice, second_choice, third_choice)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(challenge_id, given_by) DO UPDATE SET
			first_choice = excluded.first_choice,
			second_choice = excluded.second_choice,
			third_choice = excluded.third_choice
	`
	if _, err := s.db.Exec(query, challengeID, voterID, first, second, third); err != nil {
		return fmt.Errorf("failed to submit vote: %w", err)
	}
	return nil
}

// ComputeResults tallies the weighted votes once the voting window has
// closed. Safe to call repeatedly for display; it performs no writes.
func (s *ChallengeService) ComputeResults(challengeID int) ([]models.ChallengeResult, error) {
	challenge, err := s.GetChallenge(challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.Status(s.now()) != models.ChallengeClosed {
		return nil, ErrResultsNotReady
	}

	participants, err := s.Participants(challengeID)
	if err != nil {
		return nil, err
	}

	points := make(map[int]int, len(participants))
	for _, id := range participants {
		points[id] = 0
	}

	var votes []models.ChallengeVote
	err = s.db.Select(&votes, `SELECT challenge_id, given_by, first_choice, second_choice, third_choice FROM challenge_votes WHERE challenge_id = ?`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load votes: %w", err)
	}

	for _, vote := range votes {
		if _, ok := points[vote.FirstChoice]; ok {
			points[vote.FirstChoice] += firstChoicePoints
		}
		if vote.SecondChoice != nil {
			if _, ok := points[*vote.SecondChoice]; ok {
				points[*vote.SecondChoice] += secondChoicePoints
			}
		}
		if vote.ThirdChoice != nil {
			if _, ok := points[*vote.ThirdChoice]; ok {
				points[*vote.ThirdChoice] += thirdChoicePoints
			}
		}
	}

	results := make([]models.ChallengeResult, 0, len(points))
	for _, id := range participants {
		var username string
		if err := s.db.Get(&username, `SELECT username FROM users WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("failed to resolve participant %d: %w", id, err)
		}
		results = append(results, models.ChallengeResult{UserID: id, Username: username, Points: points[id]})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Points > results[j].Points
	})
	return results, nil
}

// Payout awards rank-based XP for the final standings, at most once per
// challenge. The xp_awarded flag is flipped with a compare-and-set inside
// the same transaction as the awards, so re-invocation is a no-op.
func (s *ChallengeService) Payout(challengeID int, results []models.ChallengeResult) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE challenges SET xp_awarded = TRUE WHERE id = ? AND xp_awarded = FALSE`, challengeID)
	if err != nil {
		return fmt.Errorf("failed to claim payout: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to claim payout: %w", err)
	} else if n == 0 {
		return nil // already paid
	}

	for rank, result := range results {
		amount := payoutConsolation
		if rank < len(payoutAmounts) {
			amount = payoutAmounts[rank]
		}
		if err := s.progression.AwardXPTx(tx, result.UserID, amount); err != nil {
			return fmt.Errorf("failed to pay out rank %d: %w", rank, err)
		}
	}

	return tx.Commit()
}
