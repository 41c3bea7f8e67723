package domain

import "time"

type PollId = int64

type Poll struct {
	Id          PollId
	AuthorId    UserId
	Author      string // username, joined in by the storage layer
	Name        string
	Description string // markdown source, rendered and sanitized at view time
	Votes       int
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Options []PollOption
}

type PollOption struct {
	Id        int64
	PollId    PollId
	Text      string
	Votes     int
	CreatedAt time.Time
}

type Vote struct {
	PollId   PollId
	OptionId int64
	VoterId  UserId
	VotedAt  time.Time
}
