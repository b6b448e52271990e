package models

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

const LowBalanceThreshold = 100

type Plan struct {
	Type          string `json:"type"`
	RemainingJobs int    `json:"remainingJobs"`
	LowBalance    bool   `json:"lowBalance"`
}

type User struct {
	ID        string            `gorm:"primaryKey;size:24" json:"id"`
	LegacyID  int               `gorm:"uniqueIndex" json:"legacyId"`
	Name      string            `json:"name"`
	Plan      Plan              `gorm:"embedded;embeddedPrefix:plan_" json:"plan"`
	History   []DeductionRecord `gorm:"foreignKey:UserID" json:"history"`
	Version   int               `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func NewUser(name, planType string, credits int) (*User, error) {
	if credits < 0 {
		return nil, errors.New("credits must not be negative")
	}
	id, err := NewObjectID()
	if err != nil {
		return nil, err
	}
	legacyID, err := NewLegacyID()
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:       id,
		LegacyID: legacyID,
		Name:     name,
		Plan:     Plan{Type: planType, RemainingJobs: credits},
	}
	user.Plan.LowBalance = IsLowBalance(credits)
	return user, nil
}

func IsLowBalance(remaining int) bool {
	return remaining < LowBalanceThreshold
}

// NewObjectID builds a 24 hex character id: 4 bytes of unix time followed by 8 random bytes.
func NewObjectID() (string, error) {
	var b [12]byte
	binary.BigEndian.PutUint32(b[:4], uint32(time.Now().Unix()))
	if _, err := rand.Read(b[4:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// NewLegacyID returns a random five digit id in the range of the first generation identifiers.
func NewLegacyID() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90000))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 10000, nil
}
