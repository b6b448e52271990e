package repositories

import (
	"context"
	"testing"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Postings_Upsert_WhenSameUUID_ShouldConverge(t *testing.T) {
	postings := NewPostingsRepository(newTestDbContext(t).DB)
	ctx := context.Background()

	for i, subject := range []string{"first", "second", "third"} {
		saved, err := postings.Upsert(ctx, models.JobPosting{
			UUID:      "job-1",
			UserID:    "",
			Recipient: "hr@example.com",
			Subject:   subject,
			Applied:   i == 2,
		})
		require.NoError(t, err)
		assert.Equal(t, subject, saved.Subject)
	}

	count, err := postings.CountByUUID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := postings.GetByUUID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "third", stored.Subject)
	assert.True(t, stored.Applied)
}

func Test_Postings_Upsert_WhenOwnerMissing_ShouldKeepStoredOwner(t *testing.T) {
	postings := NewPostingsRepository(newTestDbContext(t).DB)
	ctx := context.Background()

	_, err := postings.Upsert(ctx, models.JobPosting{UUID: "job-1", UserID: "65f1a2b3c4d5e6f708192a3b"})
	require.NoError(t, err)

	saved, err := postings.Upsert(ctx, models.JobPosting{UUID: "job-1", Subject: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "65f1a2b3c4d5e6f708192a3b", saved.UserID)
	assert.Equal(t, "hello", saved.Subject)
}

func Test_Postings_SaveBatch_ThenMarkApplied(t *testing.T) {
	postings := NewPostingsRepository(newTestDbContext(t).DB)
	ctx := context.Background()
	owner := "65f1a2b3c4d5e6f708192a3b"

	batch := []models.JobPosting{
		{UUID: "a", UserID: owner, SessionID: "s1", Title: "Go developer"},
		{UUID: "b", UserID: owner, SessionID: "s1", Title: "SRE"},
	}
	require.NoError(t, postings.SaveBatch(ctx, batch))
	require.NoError(t, postings.SaveBatch(ctx, batch))

	bySession, err := postings.GetBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, bySession, 2)

	updated, err := postings.MarkApplied(ctx, "someone-else", "a")
	require.NoError(t, err)
	assert.False(t, updated)

	updated, err = postings.MarkApplied(ctx, owner, "a")
	require.NoError(t, err)
	assert.True(t, updated)

	byUser, err := postings.GetByUser(ctx, owner, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)
}

func Test_Postings_SaveBatch_WhenOwnedByAnotherUser_ShouldKeepOwner(t *testing.T) {
	postings := NewPostingsRepository(newTestDbContext(t).DB)
	ctx := context.Background()
	first, second := "65f1a2b3c4d5e6f708192a3b", "65f1a2b3c4d5e6f708192a3c"

	require.NoError(t, postings.SaveBatch(ctx, []models.JobPosting{{UUID: "li-4242", UserID: first, SessionID: "s1", Title: "Go developer"}}))
	require.NoError(t, postings.SaveBatch(ctx, []models.JobPosting{{UUID: "li-4242", UserID: second, SessionID: "s2", Title: "Renamed"}}))

	stored, err := postings.GetByUUID(ctx, "li-4242")
	require.NoError(t, err)
	assert.Equal(t, first, stored.UserID)
	assert.Equal(t, "s1", stored.SessionID)
	assert.Equal(t, "Go developer", stored.Title)

	byFirst, err := postings.GetByUser(ctx, first, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byFirst, 1)
}

func Test_Postings_SaveBatch_WhenCallbackArrivedFirst_ShouldClaimOwnerlessPosting(t *testing.T) {
	postings := NewPostingsRepository(newTestDbContext(t).DB)
	ctx := context.Background()
	owner := "65f1a2b3c4d5e6f708192a3b"

	_, err := postings.Upsert(ctx, models.JobPosting{UUID: "job-7", Subject: "hello"})
	require.NoError(t, err)
	require.NoError(t, postings.SaveBatch(ctx, []models.JobPosting{{UUID: "job-7", UserID: owner, SessionID: "s1"}}))

	stored, err := postings.GetByUUID(ctx, "job-7")
	require.NoError(t, err)
	assert.Equal(t, owner, stored.UserID)
	assert.Equal(t, "hello", stored.Subject)
}
