package service

import (
	"net/http"
	"testing"

	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/storage/pg"
	internal_errors "github.com/gopolls-dev/gopolls/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockUserStorage struct {
	MockUserByUsername func(username string) (domain.User, error)
	MockListUsers      func(params pg.ListUsersParams) ([]domain.User, int, error)
	MockDeleteUser     func(username string) error
	MockListPolls      func(params pg.ListPollsParams) ([]domain.Poll, int, error)
}

func (m *MockUserStorage) UserByUsername(username string) (domain.User, error) {
	if m.MockUserByUsername != nil {
		return m.MockUserByUsername(username)
	}
	return domain.User{}, errNotFound
}

func (m *MockUserStorage) ListUsers(params pg.ListUsersParams) ([]domain.User, int, error) {
	if m.MockListUsers != nil {
		return m.MockListUsers(params)
	}
	return nil, 0, nil
}

func (m *MockUserStorage) DeleteUser(username string) error {
	if m.MockDeleteUser != nil {
		return m.MockDeleteUser(username)
	}
	return nil
}

func (m *MockUserStorage) ListPolls(params pg.ListPollsParams) ([]domain.Poll, int, error) {
	if m.MockListPolls != nil {
		return m.MockListPolls(params)
	}
	return nil, 0, nil
}

func TestDirectory(t *testing.T) {
	cases := []struct {
		name          string
		viewer        *domain.User
		showProtected bool
	}{
		{"anonymous viewer", nil, false},
		{"regular viewer", &domain.User{Id: 1}, false},
		{"admin viewer", &domain.User{Id: 1, Admin: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got pg.ListUsersParams
			storage := &MockUserStorage{
				MockListUsers: func(params pg.ListUsersParams) ([]domain.User, int, error) {
					got = params
					return nil, 0, nil
				},
			}
			users := NewUsers(storage)

			_, _, err := users.Directory(DirectoryParams{Viewer: tc.viewer, Page: 1, PerPage: 25})
			require.NoError(t, err)
			assert.Equal(t, tc.showProtected, got.ShowProtected)
		})
	}
}

func TestProfile(t *testing.T) {
	protected := domain.User{Id: 5, Username: "carol", Protected: true}

	t.Run("protected profile hidden from strangers", func(t *testing.T) {
		storage := &MockUserStorage{
			MockUserByUsername: func(string) (domain.User, error) { return protected, nil },
		}
		users := NewUsers(storage)

		for _, viewer := range []*domain.User{nil, {Id: 9}} {
			_, _, err := users.Profile("carol", viewer)
			assert.True(t, internal_errors.IsNotFound(err))
		}
	})

	t.Run("protected profile visible to self and admin", func(t *testing.T) {
		storage := &MockUserStorage{
			MockUserByUsername: func(string) (domain.User, error) { return protected, nil },
		}
		users := NewUsers(storage)

		for _, viewer := range []*domain.User{{Id: 5}, {Id: 9, Admin: true}} {
			got, _, err := users.Profile("carol", viewer)
			require.NoError(t, err)
			assert.Equal(t, protected.Id, got.Id)
		}
	})

	t.Run("polls are scoped to the profile owner", func(t *testing.T) {
		var got pg.ListPollsParams
		storage := &MockUserStorage{
			MockUserByUsername: func(string) (domain.User, error) {
				return domain.User{Id: 5, Username: "carol"}, nil
			},
			MockListPolls: func(params pg.ListPollsParams) ([]domain.Poll, int, error) {
				got = params
				return []domain.Poll{{Id: 1}}, 1, nil
			},
		}
		users := NewUsers(storage)

		_, polls, err := users.Profile("carol", nil)
		require.NoError(t, err)
		assert.Equal(t, domain.UserId(5), got.AuthorId)
		assert.Len(t, polls, 1)
	})
}

func TestDeleteUser(t *testing.T) {
	admin := domain.User{Id: 1, Admin: true}

	t.Run("requires admin", func(t *testing.T) {
		users := NewUsers(&MockUserStorage{})
		err := users.Delete("bob", domain.User{Id: 2})
		assert.Equal(t, http.StatusForbidden, internal_errors.StatusCode(err))
	})

	t.Run("refuses protected accounts", func(t *testing.T) {
		storage := &MockUserStorage{
			MockUserByUsername: func(string) (domain.User, error) {
				return domain.User{Id: 5, Protected: true}, nil
			},
			MockDeleteUser: func(string) error {
				t.Fatal("DeleteUser must not be called")
				return nil
			},
		}
		users := NewUsers(storage)

		err := users.Delete("carol", admin)
		assert.Equal(t, http.StatusForbidden, internal_errors.StatusCode(err))
	})

	t.Run("admin deletes unprotected account", func(t *testing.T) {
		var deleted string
		storage := &MockUserStorage{
			MockUserByUsername: func(string) (domain.User, error) {
				return domain.User{Id: 5, Username: "bob"}, nil
			},
			MockDeleteUser: func(username string) error {
				deleted = username
				return nil
			},
		}
		users := NewUsers(storage)

		require.NoError(t, users.Delete("bob", admin))
		assert.Equal(t, "bob", deleted)
	})
}
