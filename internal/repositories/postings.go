package repositories

import (
	"context"
	"time"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var callbackColumns = []string{"recipient", "subject", "body", "applied", "correlation_ref", "updated_at"}

var datasetColumns = []string{"session_id", "title", "company", "location", "url", "description", "updated_at"}

type Postings struct {
	db *gorm.DB
}

func NewPostingsRepository(db *gorm.DB) *Postings {
	return &Postings{db: db}
}

// Upsert inserts the posting or overwrites the outreach fields of the posting with the same UUID.
// An empty owner never clears an owner that is already stored.
func (repo *Postings) Upsert(ctx context.Context, posting models.JobPosting) (*models.JobPosting, error) {
	posting.UpdatedAt = time.Now()

	err := repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoUpdates: append(clause.AssignmentColumns(callbackColumns), keepOwner()...),
	}).Create(&posting).Error
	if err != nil {
		return nil, err
	}

	return repo.GetByUUID(ctx, posting.UUID)
}

// SaveBatch stores the postings produced by one run. Re-running a task converges on the same rows.
// A posting owned by one user is never moved to another.
func (repo *Postings) SaveBatch(ctx context.Context, postings []models.JobPosting) error {
	if len(postings) == 0 {
		return nil
	}

	return repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoUpdates: append(clause.AssignmentColumns(datasetColumns), keepOwner()...),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("job_postings.user_id IS NULL OR job_postings.user_id = '' OR job_postings.user_id = excluded.user_id"),
		}},
	}).CreateInBatches(postings, 100).Error
}

func (repo *Postings) GetByUUID(ctx context.Context, uuid string) (*models.JobPosting, error) {
	var posting models.JobPosting
	if err := repo.db.WithContext(ctx).First(&posting, "uuid = ?", uuid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &posting, nil
}

func (repo *Postings) CountByUUID(ctx context.Context, uuid string) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&models.JobPosting{}).Where("uuid = ?", uuid).Count(&count).Error
	return count, err
}

func (repo *Postings) GetByUser(ctx context.Context, userID string, limit int, offset int) ([]models.JobPosting, error) {
	var postings []models.JobPosting
	if err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&postings).Error; err != nil {
		return nil, err
	}
	return postings, nil
}

func (repo *Postings) GetBySession(ctx context.Context, sessionID string) ([]models.JobPosting, error) {
	var postings []models.JobPosting
	if err := repo.db.WithContext(ctx).Order("id ASC").Find(&postings, "session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return postings, nil
}

// MarkApplied returns false when the posting does not exist or belongs to another user.
func (repo *Postings) MarkApplied(ctx context.Context, userID string, uuid string) (bool, error) {
	res := repo.db.WithContext(ctx).Model(&models.JobPosting{}).
		Where("uuid = ? AND user_id = ?", uuid, userID).
		Updates(map[string]any{"applied": true, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

func keepOwner() clause.Set {
	return clause.Set{{
		Column: clause.Column{Name: "user_id"},
		Value:  gorm.Expr("COALESCE(NULLIF(excluded.user_id, ''), job_postings.user_id)"),
	}}
}
