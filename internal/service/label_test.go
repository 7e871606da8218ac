package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headercal/headercal-server/internal/color"
	"github.com/headercal/headercal-server/internal/domain"
	domainerrors "github.com/headercal/headercal-server/internal/errors"
)

func TestLabelService_Create(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	ada := env.signIn(t, "laptop", "ada")

	label, err := env.labels.Create(ctx, "laptop", CreateLabelRequest{
		Title:      " Offsite ",
		Color:      &domain.Color{R: 1, G: 2, B: 3},
		RangeStart: "2024-01-01T10:00:00+02:00",
		RangeEnd:   "2024-01-01T12:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, ada.ID, label.CreatorUserID)
	assert.Equal(t, "Offsite", label.Title)
	assert.Equal(t, "2024-01-01T08:00:00Z", label.RangeStart)
	assert.Equal(t, domain.Color{R: 1, G: 2, B: 3}, label.Color)

	// Labels overlap freely.
	inside, err := env.labels.Create(ctx, "laptop", CreateLabelRequest{
		Title: "Inside", RangeStart: "2024-01-01T09:00:00Z", RangeEnd: "2024-01-01T11:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, color.ForUser(ada.ID), inside.Color)

	labels, err := env.labels.List(ctx, ada.ID)
	require.NoError(t, err)
	assert.Len(t, labels, 2)
}

func TestLabelService_Create_Errors(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	env.signIn(t, "laptop", "ada")
	require.NoError(t, env.sessions.OnConnect(ctx, "guest"))

	tests := []struct {
		name       string
		credential string
		start, end string
		wantErr    error
		wantMsg    string
	}{
		{"unbound identity", "guest", "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", domainerrors.ErrNotSignedIn, "Not signed in"},
		{"unknown identity", "nobody", "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", domainerrors.ErrNotSignedIn, "Not signed in"},
		{"bad start", "laptop", "tomorrow", "2024-01-02T00:00:00Z", domainerrors.ErrInvalidTimestamp, "Invalid start time"},
		{"bad end", "laptop", "2024-01-01T00:00:00Z", "2024-01-02", domainerrors.ErrInvalidTimestamp, "Invalid end time"},
		{"both bad reports start", "laptop", "x", "y", domainerrors.ErrInvalidTimestamp, "Invalid start time"},
		{"inverted", "laptop", "2024-01-02T00:00:00Z", "2024-01-01T00:00:00Z", domainerrors.ErrValidation, "range ends before it starts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.labels.Create(ctx, tt.credential, CreateLabelRequest{
				Title: "x", RangeStart: tt.start, RangeEnd: tt.end,
			})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}

	labels, err := env.labels.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestLabelService_Delete(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	env.signIn(t, "laptop", "ada")
	env.signIn(t, "desktop", "bob")

	label, err := env.labels.Create(ctx, "laptop", CreateLabelRequest{
		Title: "Mine", RangeStart: "2024-01-01T00:00:00Z", RangeEnd: "2024-01-02T00:00:00Z",
	})
	require.NoError(t, err)

	err = env.labels.Delete(ctx, "desktop", label.ID)
	require.ErrorIs(t, err, domainerrors.ErrNotOwner)
	assert.Equal(t, "Not your creator id", err.Error())

	labels, err := env.labels.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, labels, 1, "row survives a foreign delete")

	require.NoError(t, env.labels.Delete(ctx, "laptop", label.ID))

	err = env.labels.Delete(ctx, "laptop", label.ID)
	require.ErrorIs(t, err, domainerrors.ErrRowNotFound)
	assert.Equal(t, "No such range label", err.Error())
}

func TestLabelService_Search(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	env.signIn(t, "laptop", "ada")

	label, err := env.labels.Create(ctx, "laptop", CreateLabelRequest{
		Title: "Offsite", RangeStart: "2024-01-01T00:00:00Z", RangeEnd: "2024-01-02T00:00:00Z",
	})
	require.NoError(t, err)

	// 99 is a stale hit for a deleted label.
	env.labels.searcher = &stubSearcher{ids: []uint32{99, label.ID}}

	found, err := env.labels.Search(ctx, "offsite", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, label.ID, found[0].ID)

	_, err = env.labels.Search(ctx, " ", 10)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	env.labels.searcher = nil
	_, err = env.labels.Search(ctx, "offsite", 10)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}
