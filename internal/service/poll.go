package service

import (
	"net/http"
	"strings"

	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/storage/pg"
	"github.com/gopolls-dev/gopolls/internal/utils"
	"github.com/gopolls-dev/gopolls/shared/errors"
	"github.com/gopolls-dev/gopolls/shared/logger"
)

type PollService interface {
	Create(author domain.User, name, description string, options []string) (domain.Poll, error)
	Get(author, name string, viewer *domain.User) (domain.Poll, bool, error)
	List(params ListParams) ([]domain.Poll, int, error)
	Vote(author, name string, optionId int64, voter domain.User) error
	AddOption(author, name, text string, actor domain.User) error
	UpdateSettings(author, name, newName, newDescription string, actor domain.User) error
	Delete(author, name string, actor domain.User) error
}

type ListParams struct {
	Search  string
	SortBy  string // "votes" or "updated"
	SortAsc bool
	Page    int
	PerPage int
}

type PollStorage interface {
	SavePoll(poll domain.Poll, options []string) (domain.PollId, error)
	Poll(author, name string) (domain.Poll, error)
	ListPolls(params pg.ListPollsParams) ([]domain.Poll, int, error)
	UpdatePollSettings(pollId domain.PollId, name, description string) error
	AddOption(pollId domain.PollId, text string) (int64, error)
	SaveVote(vote domain.Vote) error
	HasVoted(pollId domain.PollId, voterId domain.UserId) (bool, error)
	DeletePoll(pollId domain.PollId, authorId domain.UserId) error
}

type Polls struct {
	storage   PollStorage
	validator utils.PollValidator
}

func NewPolls(storage PollStorage) *Polls {
	return &Polls{storage: storage}
}

func (p *Polls) Create(author domain.User, name, description string, options []string) (domain.Poll, error) {
	name = strings.TrimSpace(name)
	verr := p.validator.Name(name)
	var cleaned []string
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		mergeFieldErrors(verr, p.validator.OptionText(opt))
		cleaned = append(cleaned, opt)
	}
	if verr.HasErrors() {
		return domain.Poll{}, verr
	}

	poll := domain.Poll{AuthorId: author.Id, Author: author.Username, Name: name, Description: description}
	id, err := p.storage.SavePoll(poll, cleaned)
	if err != nil {
		return domain.Poll{}, err
	}
	poll.Id = id
	return poll, nil
}

// Get returns a poll with options and whether the viewer already voted.
func (p *Polls) Get(author, name string, viewer *domain.User) (domain.Poll, bool, error) {
	poll, err := p.storage.Poll(author, name)
	if err != nil {
		return domain.Poll{}, false, err
	}

	voted := false
	if viewer != nil {
		voted, err = p.storage.HasVoted(poll.Id, viewer.Id)
		if err != nil {
			return domain.Poll{}, false, err
		}
	}
	return poll, voted, nil
}

func (p *Polls) List(params ListParams) ([]domain.Poll, int, error) {
	return p.storage.ListPolls(pg.ListPollsParams{
		Search:  params.Search,
		SortBy:  params.SortBy,
		SortAsc: params.SortAsc,
		Page:    params.Page,
		PerPage: params.PerPage,
	})
}

// Vote records the voter's choice. One vote per user per poll; a second
// attempt comes back as a conflict denial from the storage layer.
func (p *Polls) Vote(author, name string, optionId int64, voter domain.User) error {
	poll, err := p.storage.Poll(author, name)
	if err != nil {
		return err
	}

	valid := false
	for _, opt := range poll.Options {
		if opt.Id == optionId {
			valid = true
			break
		}
	}
	if !valid {
		return &errors.ErrorWithStatusCode{Message: "Unknown poll option", StatusCode: http.StatusBadRequest}
	}

	return p.storage.SaveVote(domain.Vote{PollId: poll.Id, OptionId: optionId, VoterId: voter.Id})
}

func (p *Polls) AddOption(author, name, text string, actor domain.User) error {
	poll, err := p.storage.Poll(author, name)
	if err != nil {
		return err
	}
	if err := p.requireOwner(poll, actor, false); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if verr := p.validator.OptionText(text); verr.HasErrors() {
		return verr
	}
	_, err = p.storage.AddOption(poll.Id, text)
	return err
}

func (p *Polls) UpdateSettings(author, name, newName, newDescription string, actor domain.User) error {
	poll, err := p.storage.Poll(author, name)
	if err != nil {
		return err
	}
	if err := p.requireOwner(poll, actor, false); err != nil {
		return err
	}

	newName = strings.TrimSpace(newName)
	if verr := p.validator.Name(newName); verr.HasErrors() {
		return verr
	}
	if poll.Name == newName && poll.Description == newDescription {
		return nil
	}
	return p.storage.UpdatePollSettings(poll.Id, newName, newDescription)
}

// Delete removes a poll. Owner or admin.
func (p *Polls) Delete(author, name string, actor domain.User) error {
	poll, err := p.storage.Poll(author, name)
	if err != nil {
		return err
	}
	if err := p.requireOwner(poll, actor, true); err != nil {
		return err
	}
	return p.storage.DeletePoll(poll.Id, poll.AuthorId)
}

func (p *Polls) requireOwner(poll domain.Poll, actor domain.User, adminOverride bool) error {
	if poll.AuthorId == actor.Id {
		return nil
	}
	if adminOverride && actor.Admin {
		return nil
	}
	logger.Log.Warn("poll modification denied", "poll_id", poll.Id, "actor_id", actor.Id)
	return &errors.ErrorWithStatusCode{Message: "You can't modify this poll", StatusCode: http.StatusForbidden}
}
