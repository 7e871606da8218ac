package service

import (
	"bytes"
	"context"
	"testing"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/headercal/headercal-server/internal/errors"
)

func TestExportService_WriteCalendar(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	ada := env.signIn(t, "laptop", "ada")

	_, err := env.labels.Create(ctx, "laptop", CreateLabelRequest{
		Title: "Offsite", RangeStart: "2024-01-01T00:00:00Z", RangeEnd: "2024-01-02T00:00:00Z",
	})
	require.NoError(t, err)
	_, err = env.availability.Create(ctx, "laptop", "2024-01-01T00:00:00Z", "2024-01-03T00:00:00Z", 1)
	require.NoError(t, err)
	_, err = env.availability.Create(ctx, "laptop", "2024-01-02T00:00:00Z", "2024-01-02T12:00:00Z", 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, env.export.WriteCalendar(ctx, ada.ID, &buf))

	cal, err := ical.ParseCalendar(&buf)
	require.NoError(t, err)
	assert.Len(t, cal.Events(), 4)
}

func TestExportService_UnknownUser(t *testing.T) {
	env := setupServices(t)

	var buf bytes.Buffer
	err := env.export.WriteCalendar(context.Background(), 7, &buf)
	assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
	assert.Zero(t, buf.Len())
}
