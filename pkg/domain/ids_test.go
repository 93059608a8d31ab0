package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "propmaster/pkg/domain-errors"
)

// TestParseSubjectID_Invariants validates the parsing invariant:
// "subject ids are non-empty printable text without whitespace"
func TestParseSubjectID_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},
		{"Embedded space", "u 1", true},
		{"Null byte", "u1\x00", true},
		{"Oversized input", strings.Repeat("a", 129), true},
		{"Invalid UTF-8", string([]byte{0xff, 0xfe}), true},

		{"Short opaque id", "u1", false},
		{"UUID", "550e8400-e29b-41d4-a716-446655440000", false},
		{"Max length", strings.Repeat("a", 128), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseSubjectID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				assert.True(t, id.IsNil())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

// TestParseRole_ClosedSet ensures only the three tenant categories are accepted.
func TestParseRole_ClosedSet(t *testing.T) {
	t.Run("accepts every member of the set", func(t *testing.T) {
		for _, want := range Roles {
			got, err := ParseRole(string(want))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("normalizes case and surrounding space", func(t *testing.T) {
		got, err := ParseRole("  Landlord ")
		require.NoError(t, err)
		assert.Equal(t, RoleLandlord, got)
	})

	t.Run("rejects values outside the set", func(t *testing.T) {
		for _, raw := range []string{"", "admin", "tenants", "owner"} {
			got, err := ParseRole(raw)
			require.Error(t, err, raw)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			assert.True(t, got.IsZero())
		}
	})
}
