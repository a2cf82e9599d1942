package models

import "time"

// ChallengeStatus is the lifecycle phase of a challenge, derived from its
// start and end times.
type ChallengeStatus string

const (
	ChallengeOpen       ChallengeStatus = "open"        // before start
	ChallengeInProgress ChallengeStatus = "in_progress" // start <= now < end
	ChallengeVoting     ChallengeStatus = "voting"      // end <= now < end+24h
	ChallengeClosed     ChallengeStatus = "closed"      // results visible
)

// Challenge is a time-boxed cooking competition
type Challenge struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Creator    int       `json:"creator" db:"creator"`
	Theme      string    `json:"theme" db:"theme"`
	Location   string    `json:"location" db:"location"`
	Difficulty int       `json:"difficulty" db:"difficulty"`
	StartTime  time.Time `json:"start_time" db:"start_time"`
	EndTime    time.Time `json:"end_time" db:"end_time"`
	XPAwarded  bool      `json:"xp_awarded" db:"xp_awarded"`
}

// Status derives the lifecycle phase at the given instant. Voting stays
// open for 24 hours after the challenge ends.
func (c *Challenge) Status(now time.Time) ChallengeStatus {
	switch {
	case now.Before(c.StartTime):
		return ChallengeOpen
	case now.Before(c.EndTime):
		return ChallengeInProgress
	case now.Before(c.EndTime.Add(24 * time.Hour)):
		return ChallengeVoting
	default:
		return ChallengeClosed
	}
}

type ChallengeParticipant struct {
	ChallengeID int `json:"challenge_id" db:"challenge_id"`
	UserID      int `json:"user_id" db:"user_id"`
}

// ChallengeVote records one ballot. Each participant casts at most one;
// resubmitting replaces the earlier choices.
type ChallengeVote struct {
	ChallengeID  int  `json:"challenge_id" db:"challenge_id"`
	GivenBy      int  `json:"given_by" db:"given_by"`
	FirstChoice  int  `json:"first_choice" db:"first_choice"`
	SecondChoice *int `json:"second_choice" db:"second_choice"`
	ThirdChoice  *int `json:"third_choice" db:"third_choice"`
}

// ChallengeResult is one participant's weighted point total
type ChallengeResult struct {
	UserID   int    `json:"user_id" db:"user_id"`
	Username string `json:"username" db:"username"`
	Points   int    `json:"points" db:"points"`
}
