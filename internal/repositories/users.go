package repositories

import (
	"context"
	"strings"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	// ErrVersionConflict means the user row changed between read and write.
	ErrVersionConflict = errors.New("user record was modified concurrently")
	// ErrDuplicateCharge means a deduction for the same run or session already exists.
	ErrDuplicateCharge = errors.New("run already charged")
)

type Users struct {
	db *gorm.DB
}

func NewUsersRepository(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (repo *Users) Add(ctx context.Context, user *models.User) error {
	return repo.db.WithContext(ctx).Create(user).Error
}

// FindByKey returns nil without error when no user matches.
func (repo *Users) FindByKey(ctx context.Context, key models.UserKey) (*models.User, error) {
	query := repo.db.WithContext(ctx).Preload("History", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp ASC, id ASC")
	})

	switch key.Kind() {
	case models.NativeKey:
		id, _ := key.Native()
		query = query.Where("id = ?", id)
	case models.LegacyKey:
		if id, ok := key.Legacy(); ok {
			query = query.Where("legacy_id = ?", id)
		} else {
			query = query.Where("CAST(legacy_id AS TEXT) = ?", key.LegacyCandidate())
		}
	default:
		return nil, nil
	}

	var user models.User
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ApplyDeduction appends the record and decrements the balance in one transaction.
// The decrement only succeeds against the version that was read and never below zero,
// so a stale read surfaces as ErrVersionConflict instead of overwriting a newer balance.
func (repo *Users) ApplyDeduction(ctx context.Context, user *models.User, record models.DeductionRecord) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var existing int64
		if err := tx.Model(&models.DeductionRecord{}).
			Where("user_id = ?", user.ID).
			Where(duplicateCondition(tx, record)).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateCharge
		}

		record.UserID = user.ID
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateCharge
			}
			return err
		}

		remaining := user.Plan.RemainingJobs - record.Deducted
		res := tx.Model(&models.User{}).
			Where("id = ? AND version = ? AND plan_remaining_jobs >= ?", user.ID, user.Version, record.Deducted).
			Updates(map[string]any{
				"plan_remaining_jobs": gorm.Expr("plan_remaining_jobs - ?", record.Deducted),
				"plan_low_balance":    models.IsLowBalance(remaining),
				"version":             gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		user.Plan.RemainingJobs = remaining
		user.Plan.LowBalance = models.IsLowBalance(remaining)
		user.Version++
		user.History = append(user.History, record)
		return nil
	})
}

func duplicateCondition(tx *gorm.DB, record models.DeductionRecord) *gorm.DB {
	cond := tx.Session(&gorm.Session{NewDB: true})
	switch {
	case record.RunID != nil && record.SessionID != nil:
		return cond.Where("run_id = ?", *record.RunID).Or("session_id = ?", *record.SessionID)
	case record.RunID != nil:
		return cond.Where("run_id = ?", *record.RunID)
	case record.SessionID != nil:
		return cond.Where("session_id = ?", *record.SessionID)
	default:
		return cond.Where("1 = 0")
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
