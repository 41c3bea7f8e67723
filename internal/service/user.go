package service

import (
	"net/http"

	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/storage/pg"
	"github.com/gopolls-dev/gopolls/shared/errors"
	"github.com/gopolls-dev/gopolls/shared/logger"
)

type UserService interface {
	Directory(params DirectoryParams) ([]domain.User, int, error)
	Profile(username string, viewer *domain.User) (domain.User, []domain.Poll, error)
	Delete(username string, actor domain.User) error
}

type DirectoryParams struct {
	Search  string
	SortBy  string // "joined" or "polls"
	SortAsc bool
	Page    int
	PerPage int
	Viewer  *domain.User // nil for anonymous visitors
}

type UserStorage interface {
	UserByUsername(username string) (domain.User, error)
	ListUsers(params pg.ListUsersParams) ([]domain.User, int, error)
	DeleteUser(username string) error
	ListPolls(params pg.ListPollsParams) ([]domain.Poll, int, error)
}

type Users struct {
	storage UserStorage
}

func NewUsers(storage UserStorage) *Users {
	return &Users{storage: storage}
}

// Directory lists activated users. Protected profiles are visible to admins
// only.
func (u *Users) Directory(params DirectoryParams) ([]domain.User, int, error) {
	isAdmin := params.Viewer != nil && params.Viewer.Admin
	return u.storage.ListUsers(pg.ListUsersParams{
		Search:        params.Search,
		SortBy:        params.SortBy,
		SortAsc:       params.SortAsc,
		Page:          params.Page,
		PerPage:       params.PerPage,
		ShowProtected: isAdmin,
	})
}

// Profile fetches a user page together with the user's polls.
func (u *Users) Profile(username string, viewer *domain.User) (domain.User, []domain.Poll, error) {
	user, err := u.storage.UserByUsername(username)
	if err != nil {
		return domain.User{}, nil, err
	}

	isAdmin := viewer != nil && viewer.Admin
	isSelf := viewer != nil && viewer.Id == user.Id
	if user.Protected && !isAdmin && !isSelf {
		return domain.User{}, nil, &errors.ErrorWithStatusCode{Message: "User not found", StatusCode: http.StatusNotFound}
	}

	polls, _, err := u.storage.ListPolls(pg.ListPollsParams{AuthorId: user.Id, PerPage: 100})
	if err != nil {
		return domain.User{}, nil, err
	}
	return user, polls, nil
}

// Delete removes a user account. Admin only; protected accounts are
// refused. The user's polls cascade at the storage layer.
func (u *Users) Delete(username string, actor domain.User) error {
	if !actor.Admin {
		logger.Log.Warn("non-admin attempted user deletion", "actor_id", actor.Id, "target", username)
		return &errors.ErrorWithStatusCode{Message: "Insufficient privileges", StatusCode: http.StatusForbidden}
	}

	target, err := u.storage.UserByUsername(username)
	if err != nil {
		return err
	}
	if target.Protected {
		return &errors.ErrorWithStatusCode{Message: "This account is protected", StatusCode: http.StatusForbidden}
	}

	return u.storage.DeleteUser(username)
}
