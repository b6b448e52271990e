package identity

import (
	"encoding/json"
	"testing"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func Test_Resolve_WhenNumericString_ShouldReturnLegacyKey(t *testing.T) {
	key, err := Resolve("12345")

	assert.NoError(t, err)
	assert.Equal(t, models.LegacyKey, key.Kind())
	id, ok := key.Legacy()
	assert.True(t, ok)
	assert.Equal(t, 12345, id)
}

func Test_Resolve_WhenIntegralNumber_ShouldReturnLegacyKey(t *testing.T) {
	for _, raw := range []any{12345, int64(12345), float64(12345), json.Number("12345"), "12345.0"} {
		key, err := Resolve(raw)
		assert.NoError(t, err, "raw %v", raw)
		id, ok := key.Legacy()
		assert.True(t, ok, "raw %v", raw)
		assert.Equal(t, 12345, id)
	}
}

func Test_Resolve_WhenHexObjectID_ShouldReturnNativeKey(t *testing.T) {
	key, err := Resolve("65F1A2B3C4D5E6F708192A3B")

	assert.NoError(t, err)
	native, ok := key.Native()
	assert.True(t, ok)
	assert.Equal(t, "65f1a2b3c4d5e6f708192a3b", native)
}

func Test_Resolve_WhenEmptyOrNull_ShouldBeUnresolvable(t *testing.T) {
	for _, raw := range []any{nil, "", "   ", "null", "NULL"} {
		_, err := Resolve(raw)
		assert.ErrorIs(t, err, ErrUnresolvable, "raw %v", raw)
	}
}

func Test_Resolve_WhenFractionalNumber_ShouldBeUnresolvable(t *testing.T) {
	_, err := Resolve(12.5)
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func Test_Resolve_WhenUnknownFormat_ShouldFallBackToLegacyCandidate(t *testing.T) {
	key, err := Resolve("user-abc")

	assert.NoError(t, err)
	assert.Equal(t, models.LegacyKey, key.Kind())
	_, ok := key.Legacy()
	assert.False(t, ok)
	assert.Equal(t, "user-abc", key.LegacyCandidate())
}

func Test_Resolve_WhenObjectIDHasOnlyDigits_ShouldReturnNativeKey(t *testing.T) {
	key, err := Resolve("650123456789012345678901")

	assert.NoError(t, err)
	native, ok := key.Native()
	assert.True(t, ok)
	assert.Equal(t, "650123456789012345678901", native)
}

func Test_Resolve_WhenNumberOutOfRange_ShouldNotProduceLegacyID(t *testing.T) {
	_, err := Resolve(float64(1.2e23))
	assert.ErrorIs(t, err, ErrUnresolvable)

	key, err := Resolve("1.2e23")
	assert.NoError(t, err)
	_, ok := key.Legacy()
	assert.False(t, ok)
	assert.Equal(t, "1.2e23", key.LegacyCandidate())
}
