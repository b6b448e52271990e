package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/identity"
	"github.com/maxaizer/job-intake/internal/logger"
	"github.com/maxaizer/job-intake/internal/metrics"
	"github.com/maxaizer/job-intake/internal/repositories"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const defaultChargeAttempts = 5

type userRepository interface {
	FindByKey(ctx context.Context, key models.UserKey) (*models.User, error)
	ApplyDeduction(ctx context.Context, user *models.User, record models.DeductionRecord) error
}

type ChargeRequest struct {
	UserID      any
	UnitCount   int
	SessionID   *string
	RunID       *string
	SessionName *string
}

type ChargeResult struct {
	Success    bool   `json:"success"`
	UserID     string `json:"userId,omitempty"`
	Deducted   int    `json:"deducted"`
	Remaining  int    `json:"remaining"`
	LowBalance bool   `json:"lowBalance"`
	Message    string `json:"message"`
}

type Balance struct {
	Credits    int  `json:"credits"`
	LowBalance bool `json:"lowBalance"`
}

type CreditLedger struct {
	users       userRepository
	maxAttempts int
}

func NewCreditLedger(users userRepository) *CreditLedger {
	return &CreditLedger{users: users, maxAttempts: defaultChargeAttempts}
}

// ChargeRun deducts unitCount credits once per run or session. Charging an already charged run
// succeeds with nothing deducted. A concurrent change of the balance makes the attempt start over
// from a fresh read.
func (l *CreditLedger) ChargeRun(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	req.SessionID, req.RunID, req.SessionName = optional(req.SessionID), optional(req.RunID), optional(req.SessionName)

	key, err := identity.Resolve(req.UserID)
	if err != nil {
		return failed(models.ErrUserNotFound, "user not found")
	}

	var result ChargeResult
	_, err = lo.AttemptWhile(l.maxAttempts, func(i int) (error, bool) {
		if i > 0 {
			log.Warnf("balance of user %v changed during charge, retrying (attempt %d)", key, i+1)
		}
		result, err = l.tryCharge(ctx, key, req)
		return err, errors.Is(err, repositories.ErrVersionConflict)
	})

	if errors.Is(err, repositories.ErrVersionConflict) {
		return failed(errors.Wrap(models.ErrPersistence, err.Error()), "balance is changing too fast, try again")
	}
	return result, err
}

func (l *CreditLedger) tryCharge(ctx context.Context, key models.UserKey, req ChargeRequest) (ChargeResult, error) {
	user, err := l.users.FindByKey(ctx, key)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to load user %v: %v", key, err)
		return failed(errors.Wrap(models.ErrPersistence, err.Error()), "failed to load user")
	}
	if user == nil {
		return failed(models.ErrUserNotFound, "user not found")
	}

	if req.UnitCount <= 0 {
		return failed(models.ErrInvalidUnitCount, "job count must be a positive integer")
	}

	if alreadyCharged(user, req) {
		return alreadyChargedResult(user), nil
	}

	if user.Plan.RemainingJobs < req.UnitCount {
		result, err := failed(models.ErrInsufficientCredits, fmt.Sprintf("insufficient credits: %d available, %d required",
			user.Plan.RemainingJobs, req.UnitCount))
		result.UserID = user.ID
		result.Remaining = user.Plan.RemainingJobs
		result.LowBalance = models.IsLowBalance(user.Plan.RemainingJobs)
		return result, err
	}

	record := models.DeductionRecord{
		SessionID:   req.SessionID,
		RunID:       req.RunID,
		SessionName: req.SessionName,
		Deducted:    req.UnitCount,
		Timestamp:   time.Now().UTC(),
	}

	err = l.users.ApplyDeduction(ctx, user, record)
	switch {
	case errors.Is(err, repositories.ErrDuplicateCharge):
		// lost a race against a charge for the same run; report the state it produced
		return l.chargedElsewhere(ctx, key)
	case errors.Is(err, repositories.ErrVersionConflict):
		return ChargeResult{}, err
	case err != nil:
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to charge user %v: %v", user.ID, err)
		return failed(errors.Wrap(models.ErrPersistence, err.Error()), "failed to save deduction")
	}

	metrics.CreditsChargedCounter.Add(float64(req.UnitCount))
	log.Infof("charged %d credits to user %v, remaining %d", req.UnitCount, user.ID, user.Plan.RemainingJobs)

	return ChargeResult{
		Success:    true,
		UserID:     user.ID,
		Deducted:   req.UnitCount,
		Remaining:  user.Plan.RemainingJobs,
		LowBalance: user.Plan.LowBalance,
		Message:    fmt.Sprintf("deducted %d credits", req.UnitCount),
	}, nil
}

func (l *CreditLedger) chargedElsewhere(ctx context.Context, key models.UserKey) (ChargeResult, error) {
	user, err := l.users.FindByKey(ctx, key)
	if err != nil || user == nil {
		return failed(models.ErrPersistence, "failed to reload user")
	}
	return alreadyChargedResult(user), nil
}

func (l *CreditLedger) GetBalance(ctx context.Context, userID any) (Balance, error) {
	key, err := identity.Resolve(userID)
	if err != nil {
		return Balance{}, models.ErrUserNotFound
	}

	user, err := l.users.FindByKey(ctx, key)
	if err != nil {
		return Balance{}, errors.Wrap(models.ErrPersistence, err.Error())
	}
	if user == nil {
		return Balance{}, models.ErrUserNotFound
	}

	credits := max(user.Plan.RemainingJobs, 0)
	return Balance{Credits: credits, LowBalance: models.IsLowBalance(credits)}, nil
}

func alreadyCharged(user *models.User, req ChargeRequest) bool {
	return lo.ContainsBy(user.History, func(record models.DeductionRecord) bool {
		return record.Matches(req.SessionID, req.RunID)
	})
}

func alreadyChargedResult(user *models.User) ChargeResult {
	return ChargeResult{
		Success:    true,
		UserID:     user.ID,
		Deducted:   0,
		Remaining:  user.Plan.RemainingJobs,
		LowBalance: models.IsLowBalance(user.Plan.RemainingJobs),
		Message:    "run already charged",
	}
}

func failed(err error, message string) (ChargeResult, error) {
	return ChargeResult{Success: false, Message: message}, err
}

func optional(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
