package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "swasthya/pkg/domain-errors"
)

// Parsing invariant: ids must be valid, non-empty, non-nil UUIDs.
func TestParseRequestID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseRequestID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRequestID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseRequestID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseRequestID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, RequestID(valid), id)
	})
}

// Typed ids must cross JSON as plain UUID strings, not byte arrays.
func TestRequestID_JSONRoundTrip(t *testing.T) {
	id := NewRequestID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var decoded RequestID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

// Compile-time check: the typed ids are distinct, not aliases.
func TestTypeDistinction(t *testing.T) {
	requestID := RequestID(uuid.New())
	donationID := DonationID(uuid.New())

	// These would fail to compile if the types were interchangeable:
	// var _ RequestID = donationID
	// var _ DonationID = requestID

	assert.NotEqual(t, uuid.UUID(requestID), uuid.UUID(donationID))
}

func TestNewConfirmationCode_Format(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		code := NewConfirmationCode()
		require.Len(t, code, len("DONOR-")+8)
		require.Regexp(t, `^DONOR-[0-9A-Z]{8}$`, code)
		assert.False(t, seen[code], "codes should not repeat: %s", code)
		seen[code] = true
	}
}
