// Package identity translates loosely typed user identifiers into models.UserKey.
// Users carry two generations of ids: a five digit legacy number and a 24 hex character store id.
// Every consumer of a user identifier goes through Resolve instead of guessing the field name.
package identity

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/pkg/errors"
)

var ErrUnresolvable = errors.New("user identifier cannot be resolved")

var nativeIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

func Resolve(raw any) (models.UserKey, error) {
	switch v := raw.(type) {
	case nil:
		return models.UserKey{}, ErrUnresolvable
	case models.UserKey:
		if v.IsZero() {
			return v, ErrUnresolvable
		}
		return v, nil
	case int:
		return models.LegacyUserKey(v), nil
	case int32:
		return models.LegacyUserKey(int(v)), nil
	case int64:
		return models.LegacyUserKey(int(v)), nil
	case float64:
		return resolveFloat(v)
	case float32:
		return resolveFloat(float64(v))
	case json.Number:
		return ResolveString(v.String())
	case string:
		return ResolveString(v)
	case fmt.Stringer:
		return ResolveString(v.String())
	default:
		return models.UserKey{}, errors.Wrapf(ErrUnresolvable, "unsupported identifier type %T", raw)
	}
}

func ResolveString(raw string) (models.UserKey, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") || s == "undefined" {
		return models.UserKey{}, ErrUnresolvable
	}

	// Store ids may consist of digits only, so they are matched before numbers.
	if nativeIDPattern.MatchString(s) {
		return models.NativeUserKey(strings.ToLower(s)), nil
	}

	if id, err := strconv.Atoi(s); err == nil {
		return models.LegacyUserKey(id), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if key, err := resolveFloat(f); err == nil {
			return key, nil
		}
	}

	return models.LegacyCandidateKey(s), nil
}

func resolveFloat(f float64) (models.UserKey, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return models.UserKey{}, errors.Wrapf(ErrUnresolvable, "identifier %v is not an integer", f)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return models.UserKey{}, errors.Wrapf(ErrUnresolvable, "identifier %v is out of range", f)
	}
	return models.LegacyUserKey(int(f)), nil
}
