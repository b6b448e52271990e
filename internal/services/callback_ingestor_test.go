package services

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

func newTestIngestor(t *testing.T) (*CallbackIngestor, *repositories.Users, *repositories.Postings) {
	t.Helper()

	dbCtx, err := repositories.NewDbContext(":memory:")
	require.NoError(t, err)
	require.NoError(t, dbCtx.Migrate())
	t.Cleanup(func() { _ = dbCtx.Close() })

	users := repositories.NewUsersRepository(dbCtx.DB)
	postings := repositories.NewPostingsRepository(dbCtx.DB)
	return NewCallbackIngestor(postings, users, testSecret), users, postings
}

func decodePayload(t *testing.T, body string) CallbackPayload {
	t.Helper()
	var payload CallbackPayload
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	return payload
}

func Test_CallbackPayload_ShouldAcceptIdentifierAliases(t *testing.T) {
	for _, field := range []string{"uuid", "jobid", "jobId", "job_id", "id"} {
		payload := decodePayload(t, `{"`+field+`": "job-7", "sent": "true", "to": "hr@example.com"}`)
		assert.Equal(t, "job-7", payload.UUID, field)
		assert.True(t, payload.Applied)
		assert.Equal(t, "hr@example.com", payload.Recipient)
	}
}

func Test_CallbackPayload_ShouldKeepNumericUserID(t *testing.T) {
	payload := decodePayload(t, `{"uuid": "job-7", "userId": 12345}`)
	assert.Equal(t, json.Number("12345"), payload.UserID)
}

func Test_Ingest_WhenSecretMismatch_ShouldBeUnauthorized(t *testing.T) {
	ingestor, _, _ := newTestIngestor(t)

	_, err := ingestor.Ingest(context.Background(), CallbackPayload{UUID: "job-1"}, "wrong")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = ingestor.Ingest(context.Background(), CallbackPayload{UUID: "job-1"}, "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func Test_Ingest_WhenRepeated_ShouldConvergeToOnePosting(t *testing.T) {
	ingestor, _, postings := newTestIngestor(t)

	for i := 0; i < 3; i++ {
		saved, err := ingestor.Ingest(context.Background(),
			CallbackPayload{UUID: "job-1", Subject: "Application #" + strconv.Itoa(i), Applied: i == 2}, testSecret)
		require.NoError(t, err)
		assert.Equal(t, "job-1", saved.UUID)
	}

	count, err := postings.CountByUUID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := postings.GetByUUID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "Application #2", stored.Subject)
	assert.True(t, stored.Applied)
}

func Test_Ingest_WhenNoIdentifier_ShouldAssignTimeOrderedUUID(t *testing.T) {
	ingestor, _, _ := newTestIngestor(t)

	saved, err := ingestor.Ingest(context.Background(), CallbackPayload{Subject: "Hello"}, testSecret)
	require.NoError(t, err)

	id, err := uuid.Parse(saved.UUID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func Test_Ingest_ShouldResolveLegacyOwnerToCanonicalID(t *testing.T) {
	ingestor, users, _ := newTestIngestor(t)
	user, err := models.NewUser("Linus", "free", 10)
	require.NoError(t, err)
	require.NoError(t, users.Add(context.Background(), user))

	saved, err := ingestor.Ingest(context.Background(),
		CallbackPayload{UUID: "job-1", UserID: json.Number(strconv.Itoa(user.LegacyID))}, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, saved.UserID)

	saved, err = ingestor.Ingest(context.Background(), CallbackPayload{UUID: "job-1", UserID: "unknown"}, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, saved.UserID)
}

func Test_Ingest_WhenStoreFails_ShouldReturnPersistenceError(t *testing.T) {
	postings := new(mockPostings)
	postings.On("Upsert", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	ingestor := NewCallbackIngestor(postings, nil, testSecret)
	_, err := ingestor.Ingest(context.Background(), CallbackPayload{UUID: "job-1"}, testSecret)

	assert.ErrorIs(t, err, models.ErrPersistence)
}
