// Package service implements the calendar entry points. Every mutating
// call runs in one store transaction and resolves the caller's identity
// first.
package service

import (
	"context"
	"errors"

	"github.com/headercal/headercal-server/internal/availability"
	"github.com/headercal/headercal-server/internal/domain"
	domainerrors "github.com/headercal/headercal-server/internal/errors"
	"github.com/headercal/headercal-server/internal/metrics"
	"github.com/headercal/headercal-server/internal/store"
)

// Entry point names used in logs and metrics.
const (
	opOnConnect          = "on_connect"
	opOnDisconnect       = "on_disconnect"
	opConnectToClient    = "connect_to_client"
	opDisconnectFromUser = "disconnect_from_client"
	opCreateUser         = "create_user"
	opDeleteUser         = "delete_user"
	opRenameUser         = "rename_user"
	opCreateLabel        = "create_range_label"
	opDeleteLabel        = "delete_range_label"
	opCreateAvailability = "create_availability_range"
	opDeleteAvailability = "delete_availability_range"
)

// record counts one entry point call by its result code.
func record(op string, err error) {
	if err == nil {
		metrics.RecordEntryPoint(op, "")
		return
	}
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		metrics.RecordEntryPoint(op, string(domainErr.Code))
		return
	}
	metrics.RecordEntryPoint(op, string(domainerrors.CodeInternal))
}

// signedIn resolves credential to an identity bound to a user.
func signedIn(ctx context.Context, tx store.Tx, credential string) (*domain.Identity, error) {
	identity, err := tx.GetIdentity(ctx, credential)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.ErrNotSignedIn
	}
	if err != nil {
		return nil, err
	}
	if !identity.Bound() {
		return nil, domainerrors.ErrNotSignedIn
	}
	return identity, nil
}

// parseRange parses a pair of bounds. The start is checked first.
func parseRange(start, end string) (availability.Span, error) {
	s, err := domain.ParseTimestamp(start)
	if err != nil {
		return availability.Span{}, domainerrors.InvalidTimestamp("Invalid start time")
	}
	e, err := domain.ParseTimestamp(end)
	if err != nil {
		return availability.Span{}, domainerrors.InvalidTimestamp("Invalid end time")
	}
	if e.Before(s) {
		return availability.Span{}, domainerrors.Validation("range ends before it starts")
	}
	return availability.Span{Start: s, End: e}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
