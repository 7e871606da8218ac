package service

import (
	"context"
	"log/slog"

	"github.com/headercal/headercal-server/internal/domain"
	domainerrors "github.com/headercal/headercal-server/internal/errors"
	"github.com/headercal/headercal-server/internal/normalize"
	"github.com/headercal/headercal-server/internal/store"
	"github.com/headercal/headercal-server/internal/validation"
)

const usernameRules = "notblank,max=64"

// UserService manages user accounts.
type UserService struct {
	store     store.Backend
	validator *validation.Validator
	logger    *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(store store.Backend, validator *validation.Validator, logger *slog.Logger) *UserService {
	return &UserService{
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

// Create adds an offline user. Usernames are display text and need not be
// unique. Any caller may create a user.
func (s *UserService) Create(ctx context.Context, username string) (user *domain.User, err error) {
	defer func() { record(opCreateUser, err) }()

	username = normalize.Username(username)
	if err := s.validator.Var("username", username, usernameRules); err != nil {
		return nil, err
	}

	user = &domain.User{Username: username}
	err = s.store.Update(ctx, func(tx store.Tx) error {
		return tx.InsertUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id uint32) (*domain.User, error) {
	var user *domain.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, id)
		if isNotFound(err) {
			return domainerrors.ErrUserNotFound
		}
		return err
	})
	return user, err
}

// List returns every user ordered by id.
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		users, err = tx.ListUsers(ctx)
		return err
	})
	return users, err
}

// Rename changes the display name of the user the caller is signed in as.
// userID must be that user.
func (s *UserService) Rename(ctx context.Context, credential string, userID uint32, username string) (user *domain.User, err error) {
	defer func() { record(opRenameUser, err) }()

	username = normalize.Username(username)
	if err := s.validator.Var("username", username, usernameRules); err != nil {
		return nil, err
	}

	err = s.store.Update(ctx, func(tx store.Tx) error {
		identity, err := signedIn(ctx, tx, credential)
		if err != nil {
			return err
		}
		if identity.UserID != userID {
			return domainerrors.ErrNotOwner
		}

		user, err = tx.GetUser(ctx, userID)
		if isNotFound(err) {
			return domainerrors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if user.Username == username {
			return nil
		}
		user.Username = username
		return tx.UpdateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteResult counts what a user deletion removed or detached.
type DeleteResult struct {
	IdentitiesUnbound   int `json:"identities_unbound"`
	LabelsDeleted       int `json:"labels_deleted"`
	AvailabilityDeleted int `json:"availability_deleted"`
}

// Delete removes a user the caller is signed in as. Every identity bound
// to it is unbound and every label and availability row it created is
// deleted, all in one transaction.
func (s *UserService) Delete(ctx context.Context, credential string, userID uint32) (result DeleteResult, err error) {
	defer func() { record(opDeleteUser, err) }()

	err = s.store.Update(ctx, func(tx store.Tx) error {
		result = DeleteResult{}

		identity, err := signedIn(ctx, tx, credential)
		if err != nil {
			return err
		}
		if identity.UserID != userID {
			return domainerrors.ErrNotOwner
		}

		if _, err := tx.GetUser(ctx, userID); err != nil {
			if isNotFound(err) {
				return domainerrors.ErrUserNotFound
			}
			return err
		}
		if err := tx.DeleteUser(ctx, userID); err != nil {
			return err
		}

		identities, err := tx.ListIdentitiesByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, bound := range identities {
			bound.UserID = 0
			if err := tx.UpdateIdentity(ctx, bound); err != nil {
				return err
			}
			result.IdentitiesUnbound++
		}

		labels, err := tx.ListLabelsByCreator(ctx, userID)
		if err != nil {
			return err
		}
		for _, label := range labels {
			if err := tx.DeleteLabel(ctx, label.ID); err != nil {
				return err
			}
			result.LabelsDeleted++
		}

		rows, err := tx.ListAvailabilityByCreator(ctx, userID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := tx.DeleteAvailability(ctx, row.ID); err != nil {
				return err
			}
			result.AvailabilityDeleted++
		}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}

	s.logger.Info("user deleted",
		"user_id", userID,
		"identities_unbound", result.IdentitiesUnbound,
		"labels_deleted", result.LabelsDeleted,
		"availability_deleted", result.AvailabilityDeleted,
	)
	return result, nil
}
