package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "contestlet-backend/internal/common/errors"
)

func TestNormalizePhone(t *testing.T) {
	valid := []struct {
		in   string
		want string
	}{
		{"+15551234567", "+15551234567"},
		{"5551234567", "+15551234567"},
		{"15551234567", "+15551234567"},
		{"(555) 123-4567", "+15551234567"},
		{"555.123.4567", "+15551234567"},
		{"+1 555 123 4567", "+15551234567"},
		{"+442071838750", "+442071838750"},
		{"+12345678", "+12345678"}, // shortest accepted E.164
	}
	for _, tc := range valid {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizePhone(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	invalid := []string{
		"",
		"555-1234",          // too short, no country hint
		"+1234567",          // under E.164 minimum
		"+1234567890123456", // over E.164 maximum
		"555123456x",
		"phone",
		"5551234567;DROP",
	}
	for _, in := range invalid {
		t.Run("invalid_"+in, func(t *testing.T) {
			_, err := NormalizePhone(in)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidPhone, apperrors.CodeOf(err))
		})
	}
}
