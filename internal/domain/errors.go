package domain

import "errors"

var (
	ErrAlreadyVoted   = errors.New("already voted in this poll")
	ErrPollNotActive  = errors.New("poll is not active")
	ErrPollNotFound   = errors.New("poll not found")
	ErrOptionNotFound = errors.New("option not found")
	ErrOwnerRequired  = errors.New("owner role required")
	ErrUserNotFound   = errors.New("user not found")
	ErrUserBanned     = errors.New("user is banned")
)
