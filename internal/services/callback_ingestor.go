package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/identity"
	"github.com/maxaizer/job-intake/internal/logger"
	"github.com/maxaizer/job-intake/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	uuidAliases        = []string{"uuid", "jobid", "jobId", "job_id", "id"}
	correlationAliases = []string{"correlationId", "correlation_id", "correlationRef", "correlation"}
	recipientAliases   = []string{"recipient", "to", "email"}
	subjectAliases     = []string{"subject", "emailSubject"}
	bodyAliases        = []string{"body", "message", "content"}
	appliedAliases     = []string{"sent", "applied"}
	userAliases        = []string{"userId", "user_id", "userid"}
)

// CallbackPayload is a per-job result posted by the engine. Field names vary between engine
// versions and are normalized on decode.
type CallbackPayload struct {
	UUID           string
	CorrelationRef string
	Recipient      string
	Subject        string
	Body           string
	Applied        bool
	UserID         any
}

func (p *CallbackPayload) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	p.UUID = stringField(raw, uuidAliases...)
	p.CorrelationRef = stringField(raw, correlationAliases...)
	p.Recipient = stringField(raw, recipientAliases...)
	p.Subject = stringField(raw, subjectAliases...)
	p.Body = stringField(raw, bodyAliases...)
	p.Applied = boolField(raw, appliedAliases...)

	for _, alias := range userAliases {
		value, ok := raw[alias]
		if !ok {
			continue
		}
		decoder := json.NewDecoder(strings.NewReader(string(value)))
		decoder.UseNumber()
		var userID any
		if err := decoder.Decode(&userID); err == nil && userID != nil {
			p.UserID = userID
			break
		}
	}
	return nil
}

type postingStore interface {
	Upsert(ctx context.Context, posting models.JobPosting) (*models.JobPosting, error)
}

type userFinder interface {
	FindByKey(ctx context.Context, key models.UserKey) (*models.User, error)
}

type CallbackIngestor struct {
	postings postingStore
	users    userFinder
	secret   []byte
}

func NewCallbackIngestor(postings postingStore, users userFinder, sharedSecret string) *CallbackIngestor {
	return &CallbackIngestor{postings: postings, users: users, secret: []byte(sharedSecret)}
}

// Ingest stores the callback as a job posting. Callbacks repeating a UUID update the same posting.
func (c *CallbackIngestor) Ingest(ctx context.Context, payload CallbackPayload, sharedSecret string) (*models.JobPosting, error) {
	if !c.Authorized(sharedSecret) {
		metrics.CallbacksIngestedCounter.WithLabelValues("rejected").Inc()
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAuth).Warn("callback rejected: shared secret mismatch")
		return nil, models.ErrUnauthorized
	}

	posting := models.JobPosting{
		UUID:           strings.TrimSpace(payload.UUID),
		CorrelationRef: payload.CorrelationRef,
		Recipient:      payload.Recipient,
		Subject:        payload.Subject,
		Body:           payload.Body,
		Applied:        payload.Applied,
		UserID:         c.resolveOwner(ctx, payload.UserID),
	}
	if posting.UUID == "" {
		posting.UUID = newPostingUUID()
		log.Infof("callback without job id, assigned %s", posting.UUID)
	}

	saved, err := c.postings.Upsert(ctx, posting)
	if err != nil {
		metrics.CallbacksIngestedCounter.WithLabelValues("failed").Inc()
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to upsert job %s: %v", posting.UUID, err)
		return nil, errors.Wrap(models.ErrPersistence, err.Error())
	}

	metrics.CallbacksIngestedCounter.WithLabelValues("accepted").Inc()
	return saved, nil
}

func (c *CallbackIngestor) Authorized(sharedSecret string) bool {
	if len(c.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(c.secret, []byte(sharedSecret)) == 1
}

// resolveOwner maps the user reference of a callback to the canonical user id. Unknown users leave
// the posting without an owner so an earlier owner is kept.
func (c *CallbackIngestor) resolveOwner(ctx context.Context, raw any) string {
	if raw == nil {
		return ""
	}
	key, err := identity.Resolve(raw)
	if err != nil {
		return ""
	}
	user, err := c.users.FindByKey(ctx, key)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to resolve callback user %v: %v", key, err)
		return ""
	}
	if user == nil {
		log.Warnf("callback references unknown user %v", key)
		return ""
	}
	return user.ID
}

func stringField(raw map[string]json.RawMessage, aliases ...string) string {
	for _, alias := range aliases {
		value, ok := raw[alias]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil && s != "" {
			return s
		}
		var n json.Number
		if err := json.Unmarshal(value, &n); err == nil && n != "" {
			return n.String()
		}
	}
	return ""
}

func boolField(raw map[string]json.RawMessage, aliases ...string) bool {
	for _, alias := range aliases {
		value, ok := raw[alias]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(value, &b); err == nil {
			return b
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			if parsed, err := strconv.ParseBool(s); err == nil {
				return parsed
			}
		}
	}
	return false
}
