package service

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/utils"
	"github.com/gopolls-dev/gopolls/shared/config"
	"github.com/gopolls-dev/gopolls/shared/errors"
	"github.com/gopolls-dev/gopolls/shared/logger"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Signup(params SignupParams) (domain.User, error)
	Login(creds domain.Credentials) (domain.User, error)
	Activate(email domain.Email, token string) (domain.User, error)
	ResendActivation(email domain.Email) error
	BeginReset(email domain.Email) error
	CheckReset(email domain.Email, token string) (domain.User, error)
	CompleteReset(params ResetParams) (domain.User, error)
	UpdateProfile(current domain.User, upd domain.ProfileUpdate) (domain.User, error)
}

type SignupParams struct {
	Username             string
	Email                domain.Email
	Password             string
	PasswordConfirmation string
	Protected            bool
}

type ResetParams struct {
	Email                domain.Email
	Token                string
	Password             string
	PasswordConfirmation string
}

type AuthStorage interface {
	SaveUser(user domain.User) (domain.UserId, error)
	UserByEmail(email domain.Email) (domain.User, error)
	UserByUsername(username string) (domain.User, error)
	UpdateProfile(user domain.User) error
	SetActivationDigest(userId domain.UserId, digest string) error
	SetResetDigest(userId domain.UserId, digest string, createdAt time.Time) error
	ConsumeActivation(userId domain.UserId, digest string, activatedAt time.Time) error
	ConsumeReset(userId domain.UserId, digest string, newPassHash string) error
}

type Email interface {
	Send(recipientEmail, subject, body string) error
}

// Denials surfaced by the verification protocol. Handlers map these onto
// flash categories; everything else coming out of the service is fatal.
var (
	// One error value for "no such user", "no pending token" and "wrong
	// token" so callers cannot probe which accounts exist.
	ErrInvalidActivationLink = &errors.ErrorWithStatusCode{Message: "Invalid activation link", StatusCode: http.StatusUnauthorized}
	ErrInvalidResetLink      = &errors.ErrorWithStatusCode{Message: "Invalid password reset link", StatusCode: http.StatusUnauthorized}

	// Identity was already proven when expiry is detected, so this one is
	// allowed to be specific.
	ErrResetExpired = &errors.ErrorWithStatusCode{Message: "Password reset has expired.", StatusCode: http.StatusGone}

	ErrInvalidCredentials = &errors.ErrorWithStatusCode{Message: "Invalid credentials", StatusCode: http.StatusUnauthorized}
	ErrNotActivated       = &errors.ErrorWithStatusCode{Message: "Account not activated. Check your email for the activation link.", StatusCode: http.StatusForbidden}
	ErrAlreadyActivated   = &errors.ErrorWithStatusCode{Message: "Account is already activated.", StatusCode: http.StatusConflict}
)

// decoyDigest is compared against when no real digest is available, so the
// failure path costs the same bcrypt work as a mismatch.
var decoyDigest = func() string {
	digest, err := utils.Digest(uuid.NewString())
	if err != nil {
		panic(fmt.Sprintf("failed to precompute decoy digest: %v", err))
	}
	return digest
}()

type Auth struct {
	storage   AuthStorage
	email     Email
	cfg       *config.Config
	validator utils.UserValidator
	now       func() time.Time
}

func NewAuth(storage AuthStorage, email Email, cfg *config.Config) *Auth {
	return &Auth{
		storage: storage,
		email:   email,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Signup validates the form, creates the unactivated user with a pending
// activation digest, and mails the activation link. Mail delivery failure is
// logged, not surfaced: the user can request a fresh link later.
func (a *Auth) Signup(params SignupParams) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))

	verr := domain.NewValidationError()
	mergeFieldErrors(verr, a.validator.Username(params.Username))
	mergeFieldErrors(verr, a.validator.Email(email))
	mergeFieldErrors(verr, a.validator.Password(params.Password, params.PasswordConfirmation))
	if verr.HasErrors() {
		return domain.User{}, verr
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	token, err := utils.GenerateToken()
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to generate activation token: %w", err)
	}
	digest, err := utils.Digest(token)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to derive activation digest: %w", err)
	}

	user := domain.User{
		Username:         params.Username,
		Email:            email,
		PassHash:         string(passHash),
		Protected:        params.Protected,
		ActivationDigest: digest,
	}
	id, err := a.storage.SaveUser(user)
	if err != nil {
		return domain.User{}, err
	}
	user.Id = id

	if err := a.email.Send(email, "Activate your account", a.activationBody(user, token)); err != nil {
		logger.Log.Error("failed to send activation email", "user_id", user.Id, "error", err)
	}

	return user, nil
}

// Login authenticates by username or email address plus password. Unknown
// subject and wrong password are the same failure at this boundary; only the
// server-side log distinguishes them.
func (a *Auth) Login(creds domain.Credentials) (domain.User, error) {
	login := strings.TrimSpace(creds.Login)

	var user domain.User
	var err error
	if strings.Contains(login, "@") {
		user, err = a.storage.UserByEmail(strings.ToLower(login))
	} else {
		user, err = a.storage.UserByUsername(login)
	}
	if err != nil {
		if errors.IsNotFound(err) {
			logger.Log.Warn("login attempt for unknown account")
			// burn the same bcrypt work as a real comparison
			utils.CompareDigest(decoyDigest, creds.Password)
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PassHash), []byte(creds.Password)); err != nil {
		logger.Log.Warn("password verification failed", "user_id", user.Id)
		return domain.User{}, ErrInvalidCredentials
	}

	if !user.Activated {
		return domain.User{}, ErrNotActivated
	}

	return user, nil
}

// Activate consumes an activation token. The digest is cleared and the
// activated flag set in one conditional update, so a replayed or concurrent
// submission gets the same generic denial as a wrong token.
func (a *Auth) Activate(email domain.Email, token string) (domain.User, error) {
	user, err := a.verify(email, domain.PurposeActivation, token)
	if err != nil {
		return domain.User{}, err
	}

	if user.Activated {
		logger.Log.Warn("activation link replay for activated account", "user_id", user.Id)
		return domain.User{}, ErrInvalidActivationLink
	}

	activatedAt := a.now().UTC()
	if err := a.storage.ConsumeActivation(user.Id, user.ActivationDigest, activatedAt); err != nil {
		if errors.StatusCode(err) == http.StatusConflict {
			return domain.User{}, ErrInvalidActivationLink
		}
		return domain.User{}, err
	}

	user.Activated = true
	user.ActivatedAt = activatedAt
	user.ActivationDigest = ""
	return user, nil
}

// ResendActivation issues a fresh activation token for an unactivated
// account and mails the link. The previous token stops verifying once the
// new digest is stored.
func (a *Auth) ResendActivation(email domain.Email) error {
	email = strings.ToLower(strings.TrimSpace(email))

	if !utils.IsEmail(email) {
		verr := domain.NewValidationError()
		verr.Add("email", "Wrong email")
		return verr
	}

	user, err := a.storage.UserByEmail(email)
	if err != nil {
		if errors.IsNotFound(err) {
			logger.Log.Warn("activation resend requested for unknown email")
			verr := domain.NewValidationError()
			verr.Add("email", "Wrong email")
			return verr
		}
		return err
	}
	if user.Activated {
		return ErrAlreadyActivated
	}

	token, err := utils.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate activation token: %w", err)
	}
	digest, err := utils.Digest(token)
	if err != nil {
		return fmt.Errorf("failed to derive activation digest: %w", err)
	}

	if err := a.storage.SetActivationDigest(user.Id, digest); err != nil {
		return err
	}

	if err := a.email.Send(email, "Activate your account", a.activationBody(user, token)); err != nil {
		logger.Log.Error("failed to send activation email", "user_id", user.Id, "error", err)
	}

	return nil
}

// BeginReset issues a reset token and mails the link. A pending digest is
// superseded unconditionally: only the most recently issued token verifies.
func (a *Auth) BeginReset(email domain.Email) error {
	email = strings.ToLower(strings.TrimSpace(email))

	if !utils.IsEmail(email) {
		verr := domain.NewValidationError()
		verr.Add("email", "Wrong email")
		return verr
	}

	user, err := a.storage.UserByEmail(email)
	if err != nil {
		if errors.IsNotFound(err) {
			logger.Log.Warn("password reset requested for unknown email")
			verr := domain.NewValidationError()
			verr.Add("email", "Wrong email")
			return verr
		}
		return err
	}

	token, err := utils.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	digest, err := utils.Digest(token)
	if err != nil {
		return fmt.Errorf("failed to derive reset digest: %w", err)
	}

	if err := a.storage.SetResetDigest(user.Id, digest, a.now().UTC()); err != nil {
		return err
	}

	if err := a.email.Send(email, "Password reset", a.resetBody(user, token)); err != nil {
		logger.Log.Error("failed to send password reset email", "user_id", user.Id, "error", err)
	}

	return nil
}

// CheckReset authenticates a reset link for display of the new-password
// form. Expiry is checked here (read time) and again in CompleteReset
// (write time).
func (a *Auth) CheckReset(email domain.Email, token string) (domain.User, error) {
	user, err := a.verify(email, domain.PurposeReset, token)
	if err != nil {
		return domain.User{}, err
	}
	if !user.Activated {
		logger.Log.Warn("reset link for unactivated account", "user_id", user.Id)
		return domain.User{}, ErrInvalidResetLink
	}
	if a.resetExpired(user) {
		return domain.User{}, ErrResetExpired
	}
	return user, nil
}

// CompleteReset verifies the token once more, validates the new password,
// and applies it. Validation failures leave the digest untouched so the
// form can be resubmitted with the same token.
func (a *Auth) CompleteReset(params ResetParams) (domain.User, error) {
	user, err := a.verify(params.Email, domain.PurposeReset, params.Token)
	if err != nil {
		return domain.User{}, err
	}
	if !user.Activated {
		logger.Log.Warn("reset submission for unactivated account", "user_id", user.Id)
		return domain.User{}, ErrInvalidResetLink
	}
	if a.resetExpired(user) {
		return domain.User{}, ErrResetExpired
	}

	if verr := a.validator.Password(params.Password, params.PasswordConfirmation); verr.HasErrors() {
		return domain.User{}, verr
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := a.storage.ConsumeReset(user.Id, user.ResetDigest, string(passHash)); err != nil {
		if errors.StatusCode(err) == http.StatusConflict {
			return domain.User{}, ErrInvalidResetLink
		}
		return domain.User{}, err
	}

	user.PassHash = string(passHash)
	user.ResetDigest = ""
	return user, nil
}

// UpdateProfile applies the editable fields to the current user's record.
// Blank password fields keep the stored hash.
func (a *Auth) UpdateProfile(current domain.User, upd domain.ProfileUpdate) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(upd.Email))

	verr := domain.NewValidationError()
	mergeFieldErrors(verr, a.validator.Username(upd.Username))
	mergeFieldErrors(verr, a.validator.Email(email))
	changePassword := upd.Password != "" || upd.PasswordConfirmation != ""
	if changePassword {
		mergeFieldErrors(verr, a.validator.Password(upd.Password, upd.PasswordConfirmation))
	}
	if verr.HasErrors() {
		return domain.User{}, verr
	}

	user := current
	user.Username = upd.Username
	user.Email = email
	user.Protected = upd.Protected
	user.PassHash = ""
	if changePassword {
		passHash, err := bcrypt.GenerateFromPassword([]byte(upd.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PassHash = string(passHash)
	}

	if err := a.storage.UpdateProfile(user); err != nil {
		return domain.User{}, err
	}

	if user.PassHash == "" {
		user.PassHash = current.PassHash
	} else {
		// a password change revokes any outstanding reset link
		user.ResetDigest = ""
		user.ResetCreatedAt = time.Time{}
	}
	return user, nil
}

// =========================================================================
// Token codec
// =========================================================================

// verify authenticates a caller-submitted token against the stored digest
// for the purpose. All failure causes behave identically: same error value,
// and the same bcrypt comparison cost whether or not a digest exists.
func (a *Auth) verify(email domain.Email, purpose domain.TokenPurpose, token string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	denial := invalidLinkError(purpose)

	// reject malformed identifiers before any lookup
	if !utils.IsEmail(email) || token == "" {
		utils.CompareDigest(decoyDigest, token)
		return domain.User{}, denial
	}

	user, err := a.storage.UserByEmail(email)
	if err != nil {
		if errors.IsNotFound(err) {
			utils.CompareDigest(decoyDigest, token)
			return domain.User{}, denial
		}
		return domain.User{}, err
	}

	digest := user.ActivationDigest
	if purpose == domain.PurposeReset {
		digest = user.ResetDigest
	}
	if digest == "" {
		utils.CompareDigest(decoyDigest, token)
		return domain.User{}, denial
	}

	if !utils.CompareDigest(digest, token) {
		return domain.User{}, denial
	}

	return user, nil
}

func (a *Auth) resetExpired(user domain.User) bool {
	return a.now().UTC().Sub(user.ResetCreatedAt) > a.cfg.ResetTokenTTL()
}

func invalidLinkError(purpose domain.TokenPurpose) error {
	if purpose == domain.PurposeReset {
		return ErrInvalidResetLink
	}
	return ErrInvalidActivationLink
}

func mergeFieldErrors(dst, src *domain.ValidationError) {
	for field, msg := range src.Fields {
		dst.Add(field, msg)
	}
}

// =========================================================================
// Mail bodies
// =========================================================================

func (a *Auth) activationBody(user domain.User, token string) string {
	link := fmt.Sprintf("%s/accountActivations/%s/edit?email=%s",
		a.cfg.Public.BaseURL, url.PathEscape(token), url.QueryEscape(user.Email))
	return fmt.Sprintf(`Hello %s,

Welcome! Click the link below to activate your account:

%s

If you did not sign up, please ignore this email.
`, user.Username, link)
}

func (a *Auth) resetBody(user domain.User, token string) string {
	link := fmt.Sprintf("%s/passwordResets/%s/edit?email=%s",
		a.cfg.Public.BaseURL, url.PathEscape(token), url.QueryEscape(user.Email))
	return fmt.Sprintf(`Hello %s,

To reset your password click the link below:

%s

This link will expire in two hours. If you did not request a password reset,
please ignore this email.
`, user.Username, link)
}
