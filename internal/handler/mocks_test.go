package handler

import (
	"net/http"

	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/service"
)

type MockAuthService struct {
	MockSignup        func(params service.SignupParams) (domain.User, error)
	MockLogin         func(creds domain.Credentials) (domain.User, error)
	MockActivate      func(email domain.Email, token string) (domain.User, error)
	MockResend        func(email domain.Email) error
	MockBeginReset    func(email domain.Email) error
	MockCheckReset    func(email domain.Email, token string) (domain.User, error)
	MockCompleteReset func(params service.ResetParams) (domain.User, error)
	MockUpdateProfile func(current domain.User, upd domain.ProfileUpdate) (domain.User, error)
}

func (m *MockAuthService) Signup(params service.SignupParams) (domain.User, error) {
	if m.MockSignup != nil {
		return m.MockSignup(params)
	}
	return domain.User{}, nil
}

func (m *MockAuthService) Login(creds domain.Credentials) (domain.User, error) {
	if m.MockLogin != nil {
		return m.MockLogin(creds)
	}
	return domain.User{}, nil
}

func (m *MockAuthService) Activate(email domain.Email, token string) (domain.User, error) {
	if m.MockActivate != nil {
		return m.MockActivate(email, token)
	}
	return domain.User{}, nil
}

func (m *MockAuthService) ResendActivation(email domain.Email) error {
	if m.MockResend != nil {
		return m.MockResend(email)
	}
	return nil
}

func (m *MockAuthService) BeginReset(email domain.Email) error {
	if m.MockBeginReset != nil {
		return m.MockBeginReset(email)
	}
	return nil
}

func (m *MockAuthService) CheckReset(email domain.Email, token string) (domain.User, error) {
	if m.MockCheckReset != nil {
		return m.MockCheckReset(email, token)
	}
	return domain.User{}, nil
}

func (m *MockAuthService) CompleteReset(params service.ResetParams) (domain.User, error) {
	if m.MockCompleteReset != nil {
		return m.MockCompleteReset(params)
	}
	return domain.User{}, nil
}

func (m *MockAuthService) UpdateProfile(current domain.User, upd domain.ProfileUpdate) (domain.User, error) {
	if m.MockUpdateProfile != nil {
		return m.MockUpdateProfile(current, upd)
	}
	return current, nil
}

type MockUserService struct {
	MockDirectory func(params service.DirectoryParams) ([]domain.User, int, error)
	MockProfile   func(username string, viewer *domain.User) (domain.User, []domain.Poll, error)
	MockDelete    func(username string, actor domain.User) error
}

func (m *MockUserService) Directory(params service.DirectoryParams) ([]domain.User, int, error) {
	if m.MockDirectory != nil {
		return m.MockDirectory(params)
	}
	return nil, 0, nil
}

func (m *MockUserService) Profile(username string, viewer *domain.User) (domain.User, []domain.Poll, error) {
	if m.MockProfile != nil {
		return m.MockProfile(username, viewer)
	}
	return domain.User{}, nil, nil
}

func (m *MockUserService) Delete(username string, actor domain.User) error {
	if m.MockDelete != nil {
		return m.MockDelete(username, actor)
	}
	return nil
}

type MockPollService struct {
	MockCreate         func(author domain.User, name, description string, options []string) (domain.Poll, error)
	MockGet            func(author, name string, viewer *domain.User) (domain.Poll, bool, error)
	MockList           func(params service.ListParams) ([]domain.Poll, int, error)
	MockVote           func(author, name string, optionId int64, voter domain.User) error
	MockAddOption      func(author, name, text string, actor domain.User) error
	MockUpdateSettings func(author, name, newName, newDescription string, actor domain.User) error
	MockDelete         func(author, name string, actor domain.User) error
}

func (m *MockPollService) Create(author domain.User, name, description string, options []string) (domain.Poll, error) {
	if m.MockCreate != nil {
		return m.MockCreate(author, name, description, options)
	}
	return domain.Poll{}, nil
}

func (m *MockPollService) Get(author, name string, viewer *domain.User) (domain.Poll, bool, error) {
	if m.MockGet != nil {
		return m.MockGet(author, name, viewer)
	}
	return domain.Poll{}, false, nil
}

func (m *MockPollService) List(params service.ListParams) ([]domain.Poll, int, error) {
	if m.MockList != nil {
		return m.MockList(params)
	}
	return nil, 0, nil
}

func (m *MockPollService) Vote(author, name string, optionId int64, voter domain.User) error {
	if m.MockVote != nil {
		return m.MockVote(author, name, optionId, voter)
	}
	return nil
}

func (m *MockPollService) AddOption(author, name, text string, actor domain.User) error {
	if m.MockAddOption != nil {
		return m.MockAddOption(author, name, text, actor)
	}
	return nil
}

func (m *MockPollService) UpdateSettings(author, name, newName, newDescription string, actor domain.User) error {
	if m.MockUpdateSettings != nil {
		return m.MockUpdateSettings(author, name, newName, newDescription, actor)
	}
	return nil
}

func (m *MockPollService) Delete(author, name string, actor domain.User) error {
	if m.MockDelete != nil {
		return m.MockDelete(author, name, actor)
	}
	return nil
}

type MockSessionService struct {
	MockAttach          func(w http.ResponseWriter, user domain.User) error
	MockClear           func(w http.ResponseWriter)
	MockUserFromRequest func(r *http.Request) (*domain.User, error)
}

func (m *MockSessionService) Attach(w http.ResponseWriter, user domain.User) error {
	if m.MockAttach != nil {
		return m.MockAttach(w, user)
	}
	return nil
}

func (m *MockSessionService) Clear(w http.ResponseWriter) {
	if m.MockClear != nil {
		m.MockClear(w)
	}
}

func (m *MockSessionService) UserFromRequest(r *http.Request) (*domain.User, error) {
	if m.MockUserFromRequest != nil {
		return m.MockUserFromRequest(r)
	}
	return nil, nil
}
