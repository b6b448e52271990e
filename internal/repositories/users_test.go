package repositories

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addUser(t *testing.T, users *Users, credits int) *models.User {
	t.Helper()
	user, err := models.NewUser("Ada", "starter", credits)
	require.NoError(t, err)
	require.NoError(t, users.Add(context.Background(), user))
	return user
}

func strPtr(s string) *string {
	return &s
}

func Test_Users_FindByKey_ShouldResolveBothNamespaces(t *testing.T) {
	users := NewUsersRepository(newTestDbContext(t).DB)
	user := addUser(t, users, 10)

	byNative, err := users.FindByKey(context.Background(), models.NativeUserKey(user.ID))
	require.NoError(t, err)
	require.NotNil(t, byNative)
	assert.Equal(t, user.ID, byNative.ID)

	byLegacy, err := users.FindByKey(context.Background(), models.LegacyUserKey(user.LegacyID))
	require.NoError(t, err)
	require.NotNil(t, byLegacy)
	assert.Equal(t, user.ID, byLegacy.ID)

	byCandidate, err := users.FindByKey(context.Background(), models.LegacyCandidateKey(strconv.Itoa(user.LegacyID)))
	require.NoError(t, err)
	require.NotNil(t, byCandidate)
}

func Test_Users_FindByKey_WhenMissing_ShouldReturnNil(t *testing.T) {
	users := NewUsersRepository(newTestDbContext(t).DB)

	user, err := users.FindByKey(context.Background(), models.LegacyCandidateKey("nobody"))
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func Test_Users_ApplyDeduction_ShouldDecrementAndAppendHistory(t *testing.T) {
	users := NewUsersRepository(newTestDbContext(t).DB)
	user := addUser(t, users, 150)

	err := users.ApplyDeduction(context.Background(), user, models.DeductionRecord{
		SessionID: strPtr("s1"),
		Deducted:  80,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	stored, err := users.FindByKey(context.Background(), models.NativeUserKey(user.ID))
	require.NoError(t, err)
	assert.Equal(t, 70, stored.Plan.RemainingJobs)
	assert.True(t, stored.Plan.LowBalance)
	assert.Equal(t, 1, stored.Version)
	require.Len(t, stored.History, 1)
	assert.Equal(t, "s1", *stored.History[0].SessionID)
}

func Test_Users_ApplyDeduction_WhenSameSession_ShouldReportDuplicate(t *testing.T) {
	users := NewUsersRepository(newTestDbContext(t).DB)
	user := addUser(t, users, 150)

	record := models.DeductionRecord{SessionID: strPtr("s1"), Deducted: 10, Timestamp: time.Now()}
	require.NoError(t, users.ApplyDeduction(context.Background(), user, record))

	err := users.ApplyDeduction(context.Background(), user, record)
	assert.ErrorIs(t, err, ErrDuplicateCharge)

	stored, _ := users.FindByKey(context.Background(), models.NativeUserKey(user.ID))
	assert.Equal(t, 140, stored.Plan.RemainingJobs)
}

func Test_Users_ApplyDeduction_WhenStaleVersion_ShouldConflict(t *testing.T) {
	users := NewUsersRepository(newTestDbContext(t).DB)
	user := addUser(t, users, 150)

	stale := *user
	require.NoError(t, users.ApplyDeduction(context.Background(), user,
		models.DeductionRecord{SessionID: strPtr("s1"), Deducted: 100, Timestamp: time.Now()}))

	err := users.ApplyDeduction(context.Background(), &stale,
		models.DeductionRecord{SessionID: strPtr("s2"), Deducted: 100, Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrVersionConflict)

	stored, _ := users.FindByKey(context.Background(), models.NativeUserKey(user.ID))
	assert.Equal(t, 50, stored.Plan.RemainingJobs)
	assert.Len(t, stored.History, 1)
}
