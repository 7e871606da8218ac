package service

import (
	"context"
	"log/slog"

	"github.com/headercal/headercal-server/internal/domain"
	domainerrors "github.com/headercal/headercal-server/internal/errors"
	"github.com/headercal/headercal-server/internal/store"
)

// SessionService maps connection credentials to users and runs the
// connect/disconnect hooks.
type SessionService struct {
	store  store.Backend
	logger *slog.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(store store.Backend, logger *slog.Logger) *SessionService {
	return &SessionService{
		store:  store,
		logger: logger,
	}
}

// Session is the caller's resolved state. Identity is nil for a
// credential that has never connected; User is nil while unbound.
type Session struct {
	Identity *domain.Identity `json:"identity"`
	User     *domain.User     `json:"user"`
}

// SignedIn reports whether the session is bound to an existing user.
func (s *Session) SignedIn() bool {
	return s.Identity != nil && s.User != nil
}

// Resolve returns the caller's identity and bound user without changing
// anything.
func (s *SessionService) Resolve(ctx context.Context, credential string) (*Session, error) {
	var session Session

	err := s.store.View(ctx, func(tx store.Tx) error {
		identity, err := tx.GetIdentity(ctx, credential)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		session.Identity = identity

		if !identity.Bound() {
			return nil
		}
		user, err := tx.GetUser(ctx, identity.UserID)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		session.User = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// OnConnect runs when a credential opens its first connection. A known
// identity is marked online and, if bound, its user is flipped online. An
// unknown credential gets a new unbound, online identity.
func (s *SessionService) OnConnect(ctx context.Context, credential string) (err error) {
	defer func() { record(opOnConnect, err) }()

	return s.store.Update(ctx, func(tx store.Tx) error {
		identity, err := tx.GetIdentity(ctx, credential)
		if isNotFound(err) {
			return tx.InsertIdentity(ctx, &domain.Identity{
				Credential: credential,
				Online:     true,
			})
		}
		if err != nil {
			return err
		}

		identity.Online = true
		if err := tx.UpdateIdentity(ctx, identity); err != nil {
			return err
		}

		if !identity.Bound() {
			return nil
		}
		user, err := tx.GetUser(ctx, identity.UserID)
		if isNotFound(err) {
			s.logger.Warn("connected identity is bound to a missing user",
				"identity", credential,
				"user_id", identity.UserID,
			)
			return nil
		}
		if err != nil {
			return err
		}
		return markOnline(ctx, tx, user)
	})
}

// OnDisconnect runs when a credential's last connection closes. The
// identity goes offline and its user's presence is recounted. An unknown
// credential is logged and ignored.
func (s *SessionService) OnDisconnect(ctx context.Context, credential string) (err error) {
	defer func() { record(opOnDisconnect, err) }()

	return s.store.Update(ctx, func(tx store.Tx) error {
		identity, err := tx.GetIdentity(ctx, credential)
		if isNotFound(err) {
			s.logger.Warn("disconnect from unknown identity", "identity", credential)
			return nil
		}
		if err != nil {
			return err
		}

		if identity.Online {
			identity.Online = false
			if err := tx.UpdateIdentity(ctx, identity); err != nil {
				return err
			}
		}
		return recomputePresence(ctx, tx, identity.UserID)
	})
}

// ConnectToClient signs the caller in as userID.
func (s *SessionService) ConnectToClient(ctx context.Context, credential string, userID uint32) (err error) {
	defer func() { record(opConnectToClient, err) }()

	err = s.store.Update(ctx, func(tx store.Tx) error {
		identity, err := tx.GetIdentity(ctx, credential)
		if isNotFound(err) {
			return domainerrors.ErrNotSignedIn
		}
		if err != nil {
			return err
		}
		if identity.Bound() {
			return domainerrors.ErrAlreadyLoggedIn
		}

		user, err := tx.GetUser(ctx, userID)
		if isNotFound(err) {
			return domainerrors.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		identity.UserID = userID
		if err := tx.UpdateIdentity(ctx, identity); err != nil {
			return err
		}
		if identity.Online {
			return markOnline(ctx, tx, user)
		}
		return nil
	})
	if err == nil {
		s.logger.Info("identity signed in", "identity", credential, "user_id", userID)
	}
	return err
}

// DisconnectFromClient signs the caller out and recounts the presence of
// the user it left.
func (s *SessionService) DisconnectFromClient(ctx context.Context, credential string) (err error) {
	defer func() { record(opDisconnectFromUser, err) }()

	var left uint32
	err = s.store.Update(ctx, func(tx store.Tx) error {
		identity, err := tx.GetIdentity(ctx, credential)
		if isNotFound(err) {
			return domainerrors.ErrNotSignedIn
		}
		if err != nil {
			return err
		}
		if !identity.Bound() {
			return domainerrors.ErrAlreadyLoggedOut
		}

		left = identity.UserID
		identity.UserID = 0
		if err := tx.UpdateIdentity(ctx, identity); err != nil {
			return err
		}
		return recomputePresence(ctx, tx, left)
	})
	if err == nil {
		s.logger.Info("identity signed out", "identity", credential, "user_id", left)
	}
	return err
}
