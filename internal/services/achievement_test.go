package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryUnlockAwardsOnce(t *testing.T) {
	db := newTestDB(t)
	achievements, _ := newAchievementService(t, db)
	userID := createTestUser(t, db, "cook")

	unlocked, err := achievements.TryUnlock(userID, AchievementFirstRecipe)
	require.NoError(t, err)
	require.True(t, unlocked)
	require.Equal(t, AchievementXPBonus, userXP(t, db, userID))

	// Second attempt is a side-effect-free no-op
	unlocked, err = achievements.TryUnlock(userID, AchievementFirstRecipe)
	require.NoError(t, err)
	require.False(t, unlocked)
	require.Equal(t, AchievementXPBonus, userXP(t, db, userID))

	var rows int
	require.NoError(t, db.Get(&rows, `SELECT COUNT(*) FROM user_achievements WHERE user_id = ? AND achievement_id = ?`, userID, AchievementFirstRecipe))
	require.Equal(t, 1, rows)

	var notifications int
	require.NoError(t, db.Get(&notifications, `SELECT COUNT(*) FROM notifications WHERE user_id = ?`, userID))
	require.Equal(t, 1, notifications)
}

func TestTryUnlockUnknownAchievement(t *testing.T) {
	db := newTestDB(t)
	achievements, _ := newAchievementService(t, db)
	userID := createTestUser(t, db, "cook")

	_, err := achievements.TryUnlock(userID, "no-such-achievement")
	require.Error(t, err)
	require.Equal(t, 0, userXP(t, db, userID))
}

func TestUnlockForFriendship(t *testing.T) {
	db := newTestDB(t)
	achievements, _ := newAchievementService(t, db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	require.NoError(t, achievements.UnlockForFriendship(alice, bob))

	for _, id := range []int{alice, bob} {
		var rows int
		require.NoError(t, db.Get(&rows, `SELECT COUNT(*) FROM user_achievements WHERE user_id = ? AND achievement_id = ?`, id, AchievementFirstFriend))
		require.Equal(t, 1, rows)
	}

	// A second friendship does not re-unlock
	carol := createTestUser(t, db, "carol")
	require.NoError(t, achievements.UnlockForFriendship(alice, carol))
	require.Equal(t, AchievementXPBonus, userXP(t, db, alice))
}

func TestGetUserAchievementsMarksUnlocked(t *testing.T) {
	db := newTestDB(t)
	achievements, _ := newAchievementService(t, db)
	userID := createTestUser(t, db, "cook")

	_, err := achievements.TryUnlock(userID, AchievementFiveStarReview)
	require.NoError(t, err)

	views, err := achievements.GetUserAchievements(userID)
	require.NoError(t, err)
	require.NotEmpty(t, views)

	found := false
	for _, v := range views {
		if v.ID == AchievementFiveStarReview {
			found = true
			require.True(t, v.Unlocked)
			require.NotNil(t, v.UnlockedAt)
		} else {
			require.False(t, v.Unlocked)
		}
		// Hidden achievements stay out of the listing
		require.NotEqual(t, AchievementEasterEgg, v.ID)
	}
	require.True(t, found)
}

func TestMarkNotificationsRead(t *testing.T) {
	db := newTestDB(t)
	achievements, _ := newAchievementService(t, db)
	userID := createTestUser(t, db, "cook")

	_, err := achievements.TryUnlock(userID, AchievementFirstRecipe)
	require.NoError(t, err)

	notifications, err := achievements.GetNotifications(userID, 0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.False(t, notifications[0].IsRead)
	require.Contains(t, notifications[0].Text, "First Plate")

	require.NoError(t, achievements.MarkNotificationsRead(userID))
	notifications, err = achievements.GetNotifications(userID, 0)
	require.NoError(t, err)
	require.True(t, notifications[0].IsRead)
}
