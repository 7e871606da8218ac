package validation_test

import (
	"testing"

	domainerrors "github.com/headercal/headercal-server/internal/errors"
	"github.com/headercal/headercal-server/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type labelRequest struct {
	Title string `json:"title" validate:"notblank,max=200"`
	Color string `json:"color" validate:"required,hexcolor"`
	Start string `json:"range_start" validate:"required,rfc3339"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(labelRequest{
		Title: "Offsite",
		Color: "#3366FF",
		Start: "2024-01-02T09:00:00+01:00",
	})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       labelRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "blank title",
			req:       labelRequest{Title: "   ", Color: "#FFFFFF", Start: "2024-01-02T09:00:00Z"},
			wantField: "title",
			wantMsg:   "is required",
		},
		{
			name:      "bad color",
			req:       labelRequest{Title: "x", Color: "blue", Start: "2024-01-02T09:00:00Z"},
			wantField: "color",
			wantMsg:   "must be a hex color such as #3366FF",
		},
		{
			name:      "timestamp without offset",
			req:       labelRequest{Title: "x", Color: "#FFFFFF", Start: "2024-01-02 09:00"},
			wantField: "range_start",
			wantMsg:   "must be an RFC 3339 timestamp with a UTC offset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Var("username", "ada", "notblank,max=64"))

	err := v.Var("username", "", "notblank,max=64")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}
