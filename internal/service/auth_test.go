package service

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/utils"
	"github.com/gopolls-dev/gopolls/shared/config"
	internal_errors "github.com/gopolls-dev/gopolls/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errNotFound = &internal_errors.ErrorWithStatusCode{Message: "User not found", StatusCode: http.StatusNotFound}
var errConflict = &internal_errors.ErrorWithStatusCode{Message: "Concurrent modification", StatusCode: http.StatusConflict}

type MockAuthStorage struct {
	MockSaveUser            func(user domain.User) (domain.UserId, error)
	MockUserByEmail         func(email domain.Email) (domain.User, error)
	MockUserByUsername      func(username string) (domain.User, error)
	MockUpdateProfile       func(user domain.User) error
	MockSetActivationDigest func(userId domain.UserId, digest string) error
	MockSetResetDigest      func(userId domain.UserId, digest string, createdAt time.Time) error
	MockConsumeActivation   func(userId domain.UserId, digest string, activatedAt time.Time) error
	MockConsumeReset        func(userId domain.UserId, digest string, newPassHash string) error
}

func (m *MockAuthStorage) SaveUser(user domain.User) (domain.UserId, error) {
	if m.MockSaveUser != nil {
		return m.MockSaveUser(user)
	}
	return 1, nil
}

func (m *MockAuthStorage) UserByEmail(email domain.Email) (domain.User, error) {
	if m.MockUserByEmail != nil {
		return m.MockUserByEmail(email)
	}
	return domain.User{}, errNotFound
}

func (m *MockAuthStorage) UserByUsername(username string) (domain.User, error) {
	if m.MockUserByUsername != nil {
		return m.MockUserByUsername(username)
	}
	return domain.User{}, errNotFound
}

func (m *MockAuthStorage) UpdateProfile(user domain.User) error {
	if m.MockUpdateProfile != nil {
		return m.MockUpdateProfile(user)
	}
	return nil
}

func (m *MockAuthStorage) SetActivationDigest(userId domain.UserId, digest string) error {
	if m.MockSetActivationDigest != nil {
		return m.MockSetActivationDigest(userId, digest)
	}
	return nil
}

func (m *MockAuthStorage) SetResetDigest(userId domain.UserId, digest string, createdAt time.Time) error {
	if m.MockSetResetDigest != nil {
		return m.MockSetResetDigest(userId, digest, createdAt)
	}
	return nil
}

func (m *MockAuthStorage) ConsumeActivation(userId domain.UserId, digest string, activatedAt time.Time) error {
	if m.MockConsumeActivation != nil {
		return m.MockConsumeActivation(userId, digest, activatedAt)
	}
	return nil
}

func (m *MockAuthStorage) ConsumeReset(userId domain.UserId, digest string, newPassHash string) error {
	if m.MockConsumeReset != nil {
		return m.MockConsumeReset(userId, digest, newPassHash)
	}
	return nil
}

type MockEmail struct {
	MockSend func(recipientEmail, subject, body string) error
}

func (m *MockEmail) Send(recipientEmail, subject, body string) error {
	if m.MockSend != nil {
		return m.MockSend(recipientEmail, subject, body)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{Public: config.Public{BaseURL: "http://example.com"}}
}

func newTestAuth(storage AuthStorage, email Email) *Auth {
	return NewAuth(storage, email, testConfig())
}

// extractToken pulls the raw token out of an emailed link of the form
// <base>/<kind>/<token>/edit?email=...
func extractToken(t *testing.T, body, kind string) string {
	t.Helper()
	marker := "/" + kind + "/"
	idx := strings.Index(body, marker)
	require.NotEqual(t, -1, idx, "no %s link in body", kind)
	rest := body[idx+len(marker):]
	end := strings.Index(rest, "/edit")
	require.NotEqual(t, -1, end)
	return rest[:end]
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestSignup(t *testing.T) {
	t.Run("creates unactivated user whose digest matches the emailed token", func(t *testing.T) {
		var saved domain.User
		var sentTo, sentBody string
		storage := &MockAuthStorage{
			MockSaveUser: func(user domain.User) (domain.UserId, error) {
				saved = user
				return 42, nil
			},
		}
		email := &MockEmail{
			MockSend: func(recipientEmail, subject, body string) error {
				sentTo = recipientEmail
				sentBody = body
				return nil
			},
		}
		auth := newTestAuth(storage, email)

		user, err := auth.Signup(SignupParams{
			Username:             "alice",
			Email:                "Alice@Example.com",
			Password:             "secret1",
			PasswordConfirmation: "secret1",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.UserId(42), user.Id)
		assert.Equal(t, "alice", saved.Username)
		assert.Equal(t, "alice@example.com", saved.Email, "email is normalized")
		assert.False(t, saved.Activated)
		assert.NotEmpty(t, saved.ActivationDigest)
		assert.Equal(t, "alice@example.com", sentTo)

		token := extractToken(t, sentBody, "accountActivations")
		assert.True(t, utils.CompareDigest(saved.ActivationDigest, token))
	})

	t.Run("raw token never reaches storage", func(t *testing.T) {
		var saved domain.User
		var sentBody string
		storage := &MockAuthStorage{
			MockSaveUser: func(user domain.User) (domain.UserId, error) {
				saved = user
				return 1, nil
			},
		}
		email := &MockEmail{MockSend: func(_, _, body string) error {
			sentBody = body
			return nil
		}}
		auth := newTestAuth(storage, email)

		_, err := auth.Signup(SignupParams{
			Username:             "alice",
			Email:                "alice@example.com",
			Password:             "secret1",
			PasswordConfirmation: "secret1",
		})
		require.NoError(t, err)

		token := extractToken(t, sentBody, "accountActivations")
		assert.NotContains(t, saved.ActivationDigest, token)
		assert.NotEqual(t, token, saved.ActivationDigest)
	})

	t.Run("validation failures never touch storage", func(t *testing.T) {
		cases := []struct {
			name   string
			params SignupParams
			field  string
		}{
			{"short username", SignupParams{Username: "ab", Email: "a@b.com", Password: "secret1", PasswordConfirmation: "secret1"}, "username"},
			{"bad email", SignupParams{Username: "alice", Email: "not-an-email", Password: "secret1", PasswordConfirmation: "secret1"}, "email"},
			{"short password", SignupParams{Username: "alice", Email: "a@b.com", Password: "abc", PasswordConfirmation: "abc"}, "password"},
			{"confirmation mismatch", SignupParams{Username: "alice", Email: "a@b.com", Password: "secret1", PasswordConfirmation: "secret2"}, "passwordConfirmation"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				storage := &MockAuthStorage{
					MockSaveUser: func(domain.User) (domain.UserId, error) {
						t.Fatal("SaveUser must not be called")
						return 0, nil
					},
				}
				auth := newTestAuth(storage, &MockEmail{})

				_, err := auth.Signup(tc.params)
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Fields, tc.field)
			})
		}
	})

	t.Run("mail failure does not fail signup", func(t *testing.T) {
		email := &MockEmail{MockSend: func(_, _, _ string) error {
			return assert.AnError
		}}
		auth := newTestAuth(&MockAuthStorage{}, email)

		_, err := auth.Signup(SignupParams{
			Username:             "alice",
			Email:                "alice@example.com",
			Password:             "secret1",
			PasswordConfirmation: "secret1",
		})
		assert.NoError(t, err)
	})
}

func TestLogin(t *testing.T) {
	passHash := mustHash(t, "secret1")
	activated := domain.User{Id: 1, Username: "alice", Email: "alice@example.com", PassHash: passHash, Activated: true}

	t.Run("by username", func(t *testing.T) {
		storage := &MockAuthStorage{
			MockUserByUsername: func(username string) (domain.User, error) {
				assert.Equal(t, "alice", username)
				return activated, nil
			},
		}
		auth := newTestAuth(storage, &MockEmail{})

		user, err := auth.Login(domain.Credentials{Login: "alice", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, activated.Id, user.Id)
	})

	t.Run("by email", func(t *testing.T) {
		storage := &MockAuthStorage{
			MockUserByEmail: func(email domain.Email) (domain.User, error) {
				assert.Equal(t, "alice@example.com", email)
				return activated, nil
			},
		}
		auth := newTestAuth(storage, &MockEmail{})

		_, err := auth.Login(domain.Credentials{Login: "Alice@Example.com", Password: "secret1"})
		assert.NoError(t, err)
	})

	t.Run("unknown account and wrong password are the same error", func(t *testing.T) {
		auth := newTestAuth(&MockAuthStorage{}, &MockEmail{})
		_, errUnknown := auth.Login(domain.Credentials{Login: "nobody", Password: "secret1"})

		storage := &MockAuthStorage{
			MockUserByUsername: func(string) (domain.User, error) { return activated, nil },
		}
		auth = newTestAuth(storage, &MockEmail{})
		_, errWrongPass := auth.Login(domain.Credentials{Login: "alice", Password: "wrong"})

		assert.Equal(t, ErrInvalidCredentials, errUnknown)
		assert.Equal(t, ErrInvalidCredentials, errWrongPass)
	})

	t.Run("unactivated account is refused with correct password", func(t *testing.T) {
		unactivated := activated
		unactivated.Activated = false
		storage := &MockAuthStorage{
			MockUserByUsername: func(string) (domain.User, error) { return unactivated, nil },
		}
		auth := newTestAuth(storage, &MockEmail{})

		_, err := auth.Login(domain.Credentials{Login: "alice", Password: "secret1"})
		assert.Equal(t, ErrNotActivated, err)
	})
}

func TestActivate(t *testing.T) {
	token, err := utils.GenerateToken()
	require.NoError(t, err)
	digest, err := utils.Digest(token)
	require.NoError(t, err)

	pending := domain.User{Id: 1, Username: "alice", Email: "alice@example.com", ActivationDigest: digest}

	t.Run("valid token activates and clears the digest", func(t *testing.T) {
		var consumedDigest string
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return pending, nil },
			MockConsumeActivation: func(userId domain.UserId, digest string, activatedAt time.Time) error {
				assert.Equal(t, domain.UserId(1), userId)
				consumedDigest = digest
				return nil
			},
		}
		auth := newTestAuth(storage, &MockEmail{})

		user, err := auth.Activate("alice@example.com", token)
		require.NoError(t, err)
		assert.True(t, user.Activated)
		assert.Empty(t, user.ActivationDigest)
		assert.False(t, user.ActivatedAt.IsZero())
		assert.Equal(t, digest, consumedDigest, "consumption is conditional on the observed digest")
	})

	t.Run("every failure cause yields the same denial", func(t *testing.T) {
		activatedUser := pending
		activatedUser.Activated = true
		noDigest := pending
		noDigest.ActivationDigest = ""

		cases := []struct {
			name  string
			user  *domain.User // nil means not found
			token string
		}{
			{"unknown email", nil, token},
			{"wrong token", &pending, "wrong-token"},
			{"empty token", &pending, ""},
			{"already activated", &activatedUser, token},
			{"no pending digest", &noDigest, token},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				storage := &MockAuthStorage{}
				if tc.user != nil {
					u := *tc.user
					storage.MockUserByEmail = func(domain.Email) (domain.User, error) { return u, nil }
				}
				auth := newTestAuth(storage, &MockEmail{})

				_, err := auth.Activate("alice@example.com", tc.token)
				assert.Equal(t, ErrInvalidActivationLink, err)
			})
		}
	})

	t.Run("losing a concurrent consumption race is the same denial", func(t *testing.T) {
		storage := &MockAuthStorage{
			MockUserByEmail:       func(domain.Email) (domain.User, error) { return pending, nil },
			MockConsumeActivation: func(domain.UserId, string, time.Time) error { return errConflict },
		}
		auth := newTestAuth(storage, &MockEmail{})

		_, err := auth.Activate("alice@example.com", token)
		assert.Equal(t, ErrInvalidActivationLink, err)
	})
}

func TestBeginReset(t *testing.T) {
	user := domain.User{Id: 7, Username: "bob", Email: "bob@example.com", Activated: true}

	t.Run("stores a digest matching the emailed token", func(t *testing.T) {
		var storedDigest string
		var sentBody string
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return user, nil },
			MockSetResetDigest: func(userId domain.UserId, digest string, createdAt time.Time) error {
				assert.Equal(t, domain.UserId(7), userId)
				assert.False(t, createdAt.IsZero())
				storedDigest = digest
				return nil
			},
		}
		email := &MockEmail{MockSend: func(_, _, body string) error {
			sentBody = body
			return nil
		}}
		auth := newTestAuth(storage, email)

		require.NoError(t, auth.BeginReset("bob@example.com"))

		token := extractToken(t, sentBody, "passwordResets")
		assert.True(t, utils.CompareDigest(storedDigest, token))
	})

	t.Run("unknown and malformed emails get the same field error", func(t *testing.T) {
		auth := newTestAuth(&MockAuthStorage{}, &MockEmail{})

		for _, email := range []string{"nobody@example.com", "not-an-email"} {
			err := auth.BeginReset(email)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "Wrong email", verr.Fields["email"])
		}
	})

	t.Run("a new request supersedes the previous digest", func(t *testing.T) {
		var digests []string
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return user, nil },
			MockSetResetDigest: func(_ domain.UserId, digest string, _ time.Time) error {
				digests = append(digests, digest)
				return nil
			},
		}
		auth := newTestAuth(storage, &MockEmail{})

		require.NoError(t, auth.BeginReset("bob@example.com"))
		require.NoError(t, auth.BeginReset("bob@example.com"))

		require.Len(t, digests, 2)
		assert.NotEqual(t, digests[0], digests[1])
	})
}

func TestCheckReset(t *testing.T) {
	token, err := utils.GenerateToken()
	require.NoError(t, err)
	digest, err := utils.Digest(token)
	require.NoError(t, err)

	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	user := domain.User{Id: 7, Username: "bob", Email: "bob@example.com", Activated: true, ResetDigest: digest, ResetCreatedAt: issued}

	newAuthAt := func(user domain.User, at time.Time) *Auth {
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return user, nil },
		}
		auth := newTestAuth(storage, &MockEmail{})
		auth.now = func() time.Time { return at }
		return auth
	}

	t.Run("fresh link verifies", func(t *testing.T) {
		auth := newAuthAt(user, issued.Add(time.Minute))
		got, err := auth.CheckReset("bob@example.com", token)
		require.NoError(t, err)
		assert.Equal(t, user.Id, got.Id)
	})

	t.Run("valid exactly at the expiry boundary", func(t *testing.T) {
		auth := newAuthAt(user, issued.Add(2*time.Hour))
		_, err := auth.CheckReset("bob@example.com", token)
		assert.NoError(t, err)
	})

	t.Run("expired after the window passes", func(t *testing.T) {
		auth := newAuthAt(user, issued.Add(3*time.Hour))
		_, err := auth.CheckReset("bob@example.com", token)
		assert.Equal(t, ErrResetExpired, err)
	})

	t.Run("expiry is only reported for a token that verifies", func(t *testing.T) {
		auth := newAuthAt(user, issued.Add(3*time.Hour))
		_, err := auth.CheckReset("bob@example.com", "wrong-token")
		assert.Equal(t, ErrInvalidResetLink, err)
	})

	t.Run("unactivated account is denied generically", func(t *testing.T) {
		unactivated := user
		unactivated.Activated = false
		auth := newAuthAt(unactivated, issued.Add(time.Minute))
		_, err := auth.CheckReset("bob@example.com", token)
		assert.Equal(t, ErrInvalidResetLink, err)
	})
}

func TestCompleteReset(t *testing.T) {
	token, err := utils.GenerateToken()
	require.NoError(t, err)
	digest, err := utils.Digest(token)
	require.NoError(t, err)

	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	user := domain.User{Id: 7, Username: "bob", Email: "bob@example.com", Activated: true, ResetDigest: digest, ResetCreatedAt: issued}

	params := ResetParams{
		Email:                "bob@example.com",
		Token:                token,
		Password:             "newsecret",
		PasswordConfirmation: "newsecret",
	}

	t.Run("valid submission consumes the digest and applies the password", func(t *testing.T) {
		var newHash string
		var consumedDigest string
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return user, nil },
			MockConsumeReset: func(userId domain.UserId, digest string, passHash string) error {
				consumedDigest = digest
				newHash = passHash
				return nil
			},
		}
		auth := newTestAuth(storage, &MockEmail{})
		auth.now = func() time.Time { return issued.Add(time.Minute) }

		got, err := auth.CompleteReset(params)
		require.NoError(t, err)
		assert.Empty(t, got.ResetDigest)
		assert.Equal(t, digest, consumedDigest)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("newsecret")))
	})

	t.Run("confirmation mismatch leaves the digest consumable", func(t *testing.T) {
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return user, nil },
			MockConsumeReset: func(domain.UserId, string, string) error {
				t.Fatal("ConsumeReset must not be called")
				return nil
			},
		}
		auth := newTestAuth(storage, &MockEmail{})
		auth.now = func() time.Time { return issued.Add(time.Minute) }

		bad := params
		bad.PasswordConfirmation = "different"
		_, err := auth.CompleteReset(bad)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "passwordConfirmation")

		// the same token still works afterwards
		_, err = auth.CompleteReset(params)
		assert.NoError(t, err)
	})

	t.Run("expired at submission time even if the form was loaded in time", func(t *testing.T) {
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return user, nil },
		}
		auth := newTestAuth(storage, &MockEmail{})
		auth.now = func() time.Time { return issued.Add(3 * time.Hour) }

		_, err := auth.CompleteReset(params)
		assert.Equal(t, ErrResetExpired, err)
	})

	t.Run("losing a concurrent consumption race is the generic denial", func(t *testing.T) {
		storage := &MockAuthStorage{
			MockUserByEmail:  func(domain.Email) (domain.User, error) { return user, nil },
			MockConsumeReset: func(domain.UserId, string, string) error { return errConflict },
		}
		auth := newTestAuth(storage, &MockEmail{})
		auth.now = func() time.Time { return issued.Add(time.Minute) }

		_, err := auth.CompleteReset(params)
		assert.Equal(t, ErrInvalidResetLink, err)
	})

	t.Run("reset token does not work as an activation token", func(t *testing.T) {
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return user, nil },
		}
		auth := newTestAuth(storage, &MockEmail{})

		_, err := auth.Activate("bob@example.com", token)
		assert.Equal(t, ErrInvalidActivationLink, err)
	})
}

func TestUpdateProfile(t *testing.T) {
	current := domain.User{Id: 3, Username: "carol", Email: "carol@example.com", PassHash: "stored-hash", Activated: true}

	t.Run("blank password keeps the stored hash", func(t *testing.T) {
		var updated domain.User
		storage := &MockAuthStorage{
			MockUpdateProfile: func(user domain.User) error {
				updated = user
				return nil
			},
		}
		auth := newTestAuth(storage, &MockEmail{})

		got, err := auth.UpdateProfile(current, domain.ProfileUpdate{
			Username: "carol",
			Email:    "carol@example.com",
		})
		require.NoError(t, err)
		assert.Empty(t, updated.PassHash, "no hash sent to storage")
		assert.Equal(t, "stored-hash", got.PassHash)
	})

	t.Run("new password is hashed", func(t *testing.T) {
		var updated domain.User
		storage := &MockAuthStorage{
			MockUpdateProfile: func(user domain.User) error {
				updated = user
				return nil
			},
		}
		auth := newTestAuth(storage, &MockEmail{})

		_, err := auth.UpdateProfile(current, domain.ProfileUpdate{
			Username:             "carol",
			Email:                "carol@example.com",
			Password:             "newsecret",
			PasswordConfirmation: "newsecret",
		})
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PassHash), []byte("newsecret")))
	})

	t.Run("invalid fields are rejected", func(t *testing.T) {
		auth := newTestAuth(&MockAuthStorage{}, &MockEmail{})

		_, err := auth.UpdateProfile(current, domain.ProfileUpdate{
			Username: "x",
			Email:    "carol@example.com",
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "username")
	})

	t.Run("password change invalidates a pending reset link", func(t *testing.T) {
		token, err := utils.GenerateToken()
		require.NoError(t, err)
		digest, err := utils.Digest(token)
		require.NoError(t, err)

		stored := current
		stored.ResetDigest = digest
		stored.ResetCreatedAt = time.Now().UTC()

		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return stored, nil },
			MockUpdateProfile: func(user domain.User) error {
				stored.Username = user.Username
				stored.Email = user.Email
				stored.Protected = user.Protected
				if user.PassHash != "" {
					stored.PassHash = user.PassHash
					stored.ResetDigest = ""
					stored.ResetCreatedAt = time.Time{}
				}
				return nil
			},
			MockConsumeReset: func(domain.UserId, string, string) error {
				t.Fatal("ConsumeReset must not be called")
				return nil
			},
		}
		auth := newTestAuth(storage, &MockEmail{})

		got, err := auth.UpdateProfile(stored, domain.ProfileUpdate{
			Username:             "carol",
			Email:                "carol@example.com",
			Password:             "newsecret",
			PasswordConfirmation: "newsecret",
		})
		require.NoError(t, err)
		assert.Empty(t, got.ResetDigest)
		assert.True(t, got.ResetCreatedAt.IsZero())

		// the link emailed before the change no longer verifies
		_, err = auth.CompleteReset(ResetParams{
			Email:                "carol@example.com",
			Token:                token,
			Password:             "another1",
			PasswordConfirmation: "another1",
		})
		assert.Equal(t, ErrInvalidResetLink, err)
	})

	t.Run("profile edit without a password change keeps the pending reset", func(t *testing.T) {
		stored := current
		stored.ResetDigest = "some-digest"
		stored.ResetCreatedAt = time.Now().UTC()

		storage := &MockAuthStorage{
			MockUpdateProfile: func(user domain.User) error { return nil },
		}
		auth := newTestAuth(storage, &MockEmail{})

		got, err := auth.UpdateProfile(stored, domain.ProfileUpdate{
			Username: "carol",
			Email:    "carol@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "some-digest", got.ResetDigest)
	})
}

func TestResendActivation(t *testing.T) {
	unactivated := domain.User{Id: 9, Username: "dave", Email: "dave@example.com"}

	t.Run("stores a fresh digest matching the emailed token", func(t *testing.T) {
		var storedDigest string
		var sentBody string
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return unactivated, nil },
			MockSetActivationDigest: func(userId domain.UserId, digest string) error {
				assert.Equal(t, domain.UserId(9), userId)
				storedDigest = digest
				return nil
			},
		}
		email := &MockEmail{MockSend: func(_, _, body string) error {
			sentBody = body
			return nil
		}}
		auth := newTestAuth(storage, email)

		require.NoError(t, auth.ResendActivation("Dave@Example.com"))

		token := extractToken(t, sentBody, "accountActivations")
		assert.True(t, utils.CompareDigest(storedDigest, token))
	})

	t.Run("unknown and malformed emails get the same field error", func(t *testing.T) {
		auth := newTestAuth(&MockAuthStorage{}, &MockEmail{})

		for _, email := range []string{"nobody@example.com", "not-an-email"} {
			err := auth.ResendActivation(email)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "Wrong email", verr.Fields["email"])
		}
	})

	t.Run("activated account is refused without issuing a token", func(t *testing.T) {
		activated := unactivated
		activated.Activated = true
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return activated, nil },
			MockSetActivationDigest: func(domain.UserId, string) error {
				t.Fatal("SetActivationDigest must not be called")
				return nil
			},
		}
		auth := newTestAuth(storage, &MockEmail{})

		err := auth.ResendActivation("dave@example.com")
		assert.Equal(t, ErrAlreadyActivated, err)
	})

	t.Run("mail failure does not fail the resend", func(t *testing.T) {
		storage := &MockAuthStorage{
			MockUserByEmail: func(domain.Email) (domain.User, error) { return unactivated, nil },
		}
		email := &MockEmail{MockSend: func(_, _, _ string) error { return assert.AnError }}
		auth := newTestAuth(storage, email)

		assert.NoError(t, auth.ResendActivation("dave@example.com"))
	})
}
