package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gopolls-dev/gopolls/internal/domain"
	internal_errors "github.com/gopolls-dev/gopolls/shared/errors"
)

// ListPollsParams controls poll listing pagination and ordering.
type ListPollsParams struct {
	Search   string // poll name substring
	AuthorId domain.UserId
	SortBy   string // "votes" or "updated"
	SortAsc  bool
	Page     int
	PerPage  int
}

const pollColumns = `p.id, p.author_id, u.username, p.name, p.description,
    (SELECT COUNT(*) FROM votes v WHERE v.poll_id = p.id), p.created_at, p.updated_at`

// =========================================================================
// Public Methods
// =========================================================================

// SavePoll creates a poll with its initial options and bumps the author's
// poll counter, all in one transaction.
func (s *Storage) SavePoll(poll domain.Poll, options []string) (domain.PollId, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id domain.PollId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.savePoll(tx, poll)
		if err != nil {
			return err
		}
		for _, text := range options {
			if _, err := s.saveOption(tx, id, text); err != nil {
				return err
			}
		}
		return s.adjustPollCounter(tx, poll.AuthorId, 1)
	})
	return id, err
}

// Poll fetches a poll by author username and name, with options and vote
// counts populated.
func (s *Storage) Poll(author, name string) (domain.Poll, error) {
	poll, err := s.poll(s.db, author, name)
	if err != nil {
		return domain.Poll{}, err
	}
	poll.Options, err = s.pollOptions(s.db, poll.Id)
	if err != nil {
		return domain.Poll{}, err
	}
	return poll, nil
}

// ListPolls returns one page of polls plus the total count for the filter.
func (s *Storage) ListPolls(params ListPollsParams) ([]domain.Poll, int, error) {
	return s.listPolls(s.db, params)
}

// UpdatePollSettings renames a poll and replaces its description.
func (s *Storage) UpdatePollSettings(pollId domain.PollId, name, description string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updatePollSettings(tx, pollId, name, description)
	})
}

// AddOption appends a new option to an existing poll.
func (s *Storage) AddOption(pollId domain.PollId, text string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.saveOption(tx, pollId, text)
		return err
	})
	return id, err
}

// SaveVote records a vote. The (poll, voter) primary key makes double
// voting a conflict rather than a second row.
func (s *Storage) SaveVote(vote domain.Vote) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveVote(tx, vote)
	})
}

// HasVoted reports whether the user already voted on the poll.
func (s *Storage) HasVoted(pollId domain.PollId, voterId domain.UserId) (bool, error) {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM votes WHERE poll_id = $1 AND voter_id = $2)", pollId, voterId).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return exists, nil
}

// DeletePoll removes a poll and decrements the author's poll counter.
func (s *Storage) DeletePoll(pollId domain.PollId, authorId domain.UserId) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.deletePoll(tx, pollId); err != nil {
			return err
		}
		return s.adjustPollCounter(tx, authorId, -1)
	})
}

// =========================================================================
// Internal Methods
// =========================================================================

func (s *Storage) savePoll(q Querier, poll domain.Poll) (domain.PollId, error) {
	var id int64
	err := q.QueryRow(`
        INSERT INTO polls(author_id, name, description) VALUES($1, $2, $3) RETURNING id`,
		poll.AuthorId, poll.Name, poll.Description,
	).Scan(&id)
	if err != nil {
		if verr := uniquenessError(err); verr != nil {
			return -1, verr
		}
		return -1, fmt.Errorf("failed to insert poll: %w", err)
	}
	return id, nil
}

func (s *Storage) poll(q Querier, author, name string) (domain.Poll, error) {
	var poll domain.Poll
	err := q.QueryRow(`
        SELECT `+pollColumns+`
        FROM polls p JOIN users u ON u.id = p.author_id
        WHERE u.username = $1 AND p.name = $2`,
		author, name,
	).Scan(&poll.Id, &poll.AuthorId, &poll.Author, &poll.Name, &poll.Description,
		&poll.Votes, &poll.CreatedAt, &poll.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Poll{}, &internal_errors.ErrorWithStatusCode{Message: "Poll not found", StatusCode: http.StatusNotFound}
		}
		return domain.Poll{}, fmt.Errorf("failed to query poll: %w", err)
	}
	return poll, nil
}

func (s *Storage) pollOptions(q Querier, pollId domain.PollId) ([]domain.PollOption, error) {
	rows, err := q.Query(`
        SELECT o.id, o.poll_id, o.text,
            (SELECT COUNT(*) FROM votes v WHERE v.option_id = o.id), o.created_at
        FROM poll_options o WHERE o.poll_id = $1
        ORDER BY o.created_at, o.id`,
		pollId)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll options: %w", err)
	}
	defer rows.Close()

	var options []domain.PollOption
	for rows.Next() {
		var opt domain.PollOption
		if err := rows.Scan(&opt.Id, &opt.PollId, &opt.Text, &opt.Votes, &opt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan option row: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating option rows: %w", err)
	}
	return options, nil
}

func (s *Storage) listPolls(q Querier, params ListPollsParams) ([]domain.Poll, int, error) {
	where := "TRUE"
	args := []interface{}{}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		where += fmt.Sprintf(" AND p.name ILIKE $%d", len(args))
	}
	if params.AuthorId != 0 {
		args = append(args, params.AuthorId)
		where += fmt.Sprintf(" AND p.author_id = $%d", len(args))
	}

	var total int
	if err := q.QueryRow("SELECT COUNT(*) FROM polls p WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count polls: %w", err)
	}

	order := "p.id"
	switch params.SortBy {
	case "votes":
		order = "(SELECT COUNT(*) FROM votes v WHERE v.poll_id = p.id)"
	case "updated":
		order = "p.updated_at"
	}
	dir := "DESC"
	if params.SortAsc {
		dir = "ASC"
	}

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := params.Page
	if page < 1 {
		page = 1
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`
        SELECT %s FROM polls p JOIN users u ON u.id = p.author_id
        WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		pollColumns, where, order, dir, len(args)-1, len(args))

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	var polls []domain.Poll
	for rows.Next() {
		var poll domain.Poll
		if err := rows.Scan(&poll.Id, &poll.AuthorId, &poll.Author, &poll.Name, &poll.Description,
			&poll.Votes, &poll.CreatedAt, &poll.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan poll row: %w", err)
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed iterating poll rows: %w", err)
	}
	return polls, total, nil
}

func (s *Storage) updatePollSettings(q Querier, pollId domain.PollId, name, description string) error {
	result, err := q.Exec(`
        UPDATE polls SET name = $1, description = $2, updated_at = now() WHERE id = $3`,
		name, description, pollId)
	if err != nil {
		if verr := uniquenessError(err); verr != nil {
			return verr
		}
		return fmt.Errorf("failed to update poll settings: %w", err)
	}
	return requireRows(result, "Poll not found for settings update")
}

func (s *Storage) saveOption(q Querier, pollId domain.PollId, text string) (int64, error) {
	var id int64
	err := q.QueryRow("INSERT INTO poll_options(poll_id, text) VALUES($1, $2) RETURNING id", pollId, text).Scan(&id)
	if err != nil {
		return -1, fmt.Errorf("failed to insert poll option: %w", err)
	}
	return id, nil
}

func (s *Storage) saveVote(q Querier, vote domain.Vote) error {
	result, err := q.Exec(`
        INSERT INTO votes(poll_id, option_id, voter_id) VALUES($1, $2, $3)
        ON CONFLICT (poll_id, voter_id) DO NOTHING`,
		vote.PollId, vote.OptionId, vote.VoterId)
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for vote: %w", err)
	}
	if rows == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "You have already voted on this poll", StatusCode: http.StatusConflict}
	}
	return nil
}

func (s *Storage) deletePoll(q Querier, pollId domain.PollId) error {
	result, err := q.Exec("DELETE FROM polls WHERE id = $1", pollId)
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	return requireRows(result, "Poll not found for deletion")
}

func (s *Storage) adjustPollCounter(q Querier, userId domain.UserId, delta int) error {
	_, err := q.Exec("UPDATE users SET polls = polls + $1 WHERE id = $2", delta, userId)
	if err != nil {
		return fmt.Errorf("failed to adjust poll counter: %w", err)
	}
	return nil
}
