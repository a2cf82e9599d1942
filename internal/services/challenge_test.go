package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/plateful/plateful-web/internal/database"
	"github.com/plateful/plateful-web/internal/models"
)

func newChallengeService(t *testing.T, db *database.DB, now time.Time) *ChallengeService {
	t.Helper()
	svc := NewChallengeService(db, NewProgressionService(db))
	svc.now = func() time.Time { return now }
	return svc
}

func createTestChallenge(t *testing.T, db *database.DB, creator int, start, end time.Time) int {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO challenges (name, creator, theme, location, difficulty, start_time, end_time, xp_awarded)
		VALUES ('Cook-off', ?, 'comfort food', 'kitchen', 3, ?, ?, FALSE)`,
		creator, start.UTC(), end.UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func addParticipant(t *testing.T, db *database.DB, challengeID, userID int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO challenge_participants (challenge_id, user_id) VALUES (?, ?)`, challengeID, userID)
	require.NoError(t, err)
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCreateChallengeValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newChallengeService(t, db, baseTime)
	userID := createTestUser(t, db, "host")

	valid := models.Challenge{
		Name:       "Weeknight Wonders",
		Creator:    userID,
		Difficulty: 3,
		StartTime:  baseTime.Add(48 * time.Hour),
		EndTime:    baseTime.Add(52 * time.Hour),
	}

	tests := []struct {
		name   string
		mutate func(c *models.Challenge)
	}{
		{"missing name", func(c *models.Challenge) { c.Name = "" }},
		{"difficulty too low", func(c *models.Challenge) { c.Difficulty = 0 }},
		{"difficulty too high", func(c *models.Challenge) { c.Difficulty = 6 }},
		{"end before start", func(c *models.Challenge) { c.EndTime = c.StartTime.Add(-time.Hour) }},
		{"runs longer than a day", func(c *models.Challenge) { c.EndTime = c.StartTime.Add(25 * time.Hour) }},
		{"starts too soon", func(c *models.Challenge) {
			c.StartTime = baseTime.Add(time.Hour)
			c.EndTime = c.StartTime.Add(4 * time.Hour)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			require.Error(t, svc.CreateChallenge(&c))
		})
	}

	c := valid
	require.NoError(t, svc.CreateChallenge(&c))
	require.NotZero(t, c.ID)
}

func TestJoinAndLeaveOnlyBeforeStart(t *testing.T) {
	db := newTestDB(t)
	host := createTestUser(t, db, "host")
	guest := createTestUser(t, db, "guest")
	start := baseTime.Add(48 * time.Hour)
	challengeID := createTestChallenge(t, db, host, start, start.Add(4*time.Hour))

	svc := newChallengeService(t, db, baseTime)
	require.NoError(t, svc.Join(challengeID, guest))

	participants, err := svc.Participants(challengeID)
	require.NoError(t, err)
	require.Equal(t, []int{guest}, participants)

	// Once underway, the roster is frozen
	started := newChallengeService(t, db, start.Add(time.Minute))
	require.ErrorIs(t, started.Join(challengeID, host), ErrChallengeStarted)
	require.ErrorIs(t, started.Leave(challengeID, guest), ErrChallengeStarted)

	require.NoError(t, svc.Leave(challengeID, guest))
	participants, err = svc.Participants(challengeID)
	require.NoError(t, err)
	require.Empty(t, participants)
}

func TestSubmitVoteValidation(t *testing.T) {
	db := newTestDB(t)
	host := createTestUser(t, db, "host")
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	outsider := createTestUser(t, db, "outsider")

	start := baseTime.Add(48 * time.Hour)
	end := start.Add(4 * time.Hour)
	challengeID := createTestChallenge(t, db, host, start, end)
	addParticipant(t, db, challengeID, alice)
	addParticipant(t, db, challengeID, bob)

	during := newChallengeService(t, db, start.Add(time.Hour))

	before := newChallengeService(t, db, start.Add(-time.Hour))
	require.ErrorIs(t, before.SubmitVote(challengeID, alice, bob, nil, nil), ErrVotingClosed)

	after := newChallengeService(t, db, end.Add(votingGracePeriod).Add(time.Minute))
	require.ErrorIs(t, after.SubmitVote(challengeID, alice, bob, nil, nil), ErrVotingClosed)

	require.ErrorIs(t, during.SubmitVote(challengeID, alice, 0, nil, nil), ErrMissingFirstChoice)
	require.ErrorIs(t, during.SubmitVote(challengeID, alice, alice, nil, nil), ErrSelfVote)
	require.ErrorIs(t, during.SubmitVote(challengeID, alice, bob, &alice, nil), ErrSelfVote)
	require.ErrorIs(t, during.SubmitVote(challengeID, alice, bob, nil, &alice), ErrSelfVote)
	require.ErrorIs(t, during.SubmitVote(challengeID, outsider, bob, nil, nil), ErrNotParticipant)
	require.ErrorIs(t, during.SubmitVote(challengeID+1, alice, bob, nil, nil), ErrChallengeNotFound)

	require.NoError(t, during.SubmitVote(challengeID, alice, bob, nil, nil))

	// Votes are accepted during the post-challenge grace window too
	grace := newChallengeService(t, db, end.Add(votingGracePeriod).Add(-time.Minute))
	require.NoError(t, grace.SubmitVote(challengeID, bob, alice, nil, nil))
}

func TestSubmitVoteReplacesEarlierBallot(t *testing.T) {
	db := newTestDB(t)
	host := createTestUser(t, db, "host")
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	start := baseTime.Add(48 * time.Hour)
	challengeID := createTestChallenge(t, db, host, start, start.Add(4*time.Hour))
	for _, id := range []int{alice, bob, carol} {
		addParticipant(t, db, challengeID, id)
	}

	svc := newChallengeService(t, db, start.Add(time.Hour))
	require.NoError(t, svc.SubmitVote(challengeID, alice, bob, &carol, nil))
	require.NoError(t, svc.SubmitVote(challengeID, alice, carol, nil, nil))

	var votes []models.ChallengeVote
	require.NoError(t, db.Select(&votes, `SELECT challenge_id, given_by, first_choice, second_choice, third_choice FROM challenge_votes WHERE challenge_id = ?`, challengeID))
	require.Len(t, votes, 1)
	require.Equal(t, carol, votes[0].FirstChoice)
	require.Nil(t, votes[0].SecondChoice)
}

func TestComputeResultsAndPayout(t *testing.T) {
	db := newTestDB(t)
	host := createTestUser(t, db, "host")
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")
	dave := createTestUser(t, db, "dave")

	start := baseTime.Add(48 * time.Hour)
	end := start.Add(4 * time.Hour)
	challengeID := createTestChallenge(t, db, host, start, end)
	for _, id := range []int{alice, bob, carol, dave} {
		addParticipant(t, db, challengeID, id)
	}

	voting := newChallengeService(t, db, end.Add(time.Hour))
	// alice: 5+5+5 = 15, bob: 5+3+3 = 11, carol: 3+3+1 = 7, dave: 0
	require.NoError(t, voting.SubmitVote(challengeID, alice, bob, &carol, nil))
	require.NoError(t, voting.SubmitVote(challengeID, bob, alice, &carol, nil))
	require.NoError(t, voting.SubmitVote(challengeID, carol, alice, &bob, nil))
	require.NoError(t, voting.SubmitVote(challengeID, dave, alice, &bob, &carol))

	_, err := voting.ComputeResults(challengeID)
	require.ErrorIs(t, err, ErrResultsNotReady)

	closed := newChallengeService(t, db, end.Add(votingGracePeriod).Add(time.Hour))
	results, err := closed.ComputeResults(challengeID)
	require.NoError(t, err)
	require.Len(t, results, 4)
	require.Equal(t, "alice", results[0].Username)
	require.Equal(t, 15, results[0].Points)
	require.Equal(t, "bob", results[1].Username)
	require.Equal(t, 11, results[1].Points)
	require.Equal(t, "carol", results[2].Username)
	require.Equal(t, 7, results[2].Points)
	require.Equal(t, "dave", results[3].Username)
	require.Equal(t, 0, results[3].Points)

	require.NoError(t, closed.Payout(challengeID, results))
	require.Equal(t, 400, userXP(t, db, alice))
	require.Equal(t, 200, userXP(t, db, bob))
	require.Equal(t, 100, userXP(t, db, carol))
	require.Equal(t, payoutConsolation, userXP(t, db, dave))

	// Re-running the payout changes nothing
	require.NoError(t, closed.Payout(challengeID, results))
	require.Equal(t, 400, userXP(t, db, alice))
}

func TestComputeResultsIgnoresVotesForNonParticipants(t *testing.T) {
	db := newTestDB(t)
	host := createTestUser(t, db, "host")
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	start := baseTime.Add(48 * time.Hour)
	end := start.Add(4 * time.Hour)
	challengeID := createTestChallenge(t, db, host, start, end)
	addParticipant(t, db, challengeID, alice)
	addParticipant(t, db, challengeID, bob)

	voting := newChallengeService(t, db, end.Add(time.Hour))
	// The host never entered, so the first-choice vote lands nowhere
	require.NoError(t, voting.SubmitVote(challengeID, alice, host, &bob, nil))

	closed := newChallengeService(t, db, end.Add(votingGracePeriod).Add(time.Hour))
	results, err := closed.ComputeResults(challengeID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "bob", results[0].Username)
	require.Equal(t, secondChoicePoints, results[0].Points)
	require.Equal(t, "alice", results[1].Username)
	require.Equal(t, 0, results[1].Points)
}
