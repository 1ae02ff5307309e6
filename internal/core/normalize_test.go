package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"2024-01-15", "2024-01-15T00:00:00Z"},
		{" 2024-01-15 ", "2024-01-15T00:00:00Z"},
		{"2024-01-15T18:30:00+02:00", "2024-01-15T00:00:00Z"},
		{"", nil},
		{"   ", nil},
	}
	for _, tt := range tests {
		got, err := normalizeDate("yearly_start", tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalizeDate_Invalid(t *testing.T) {
	_, err := normalizeDate("yearly_end", "15/01/2024")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "yearly_end", vErr.Field)
	assert.Equal(t, "invalid yearly_end: expected a YYYY-MM-DD date", err.Error())
}

func TestNormalizeText(t *testing.T) {
	assert.Nil(t, normalizeText(""))
	assert.Nil(t, normalizeText("  "))
	assert.Equal(t, "active", normalizeText("active"))
}
