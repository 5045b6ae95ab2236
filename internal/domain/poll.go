package domain

import "time"

// PollStatus is the lifecycle state of a poll
type PollStatus string

const (
	PollStatusActive    PollStatus = "active"
	PollStatusCompleted PollStatus = "completed"
)

// DateLayout is the calendar date format used for poll end dates
const DateLayout = "2006-01-02"

// Valid reports whether s is one of the known statuses
func (s PollStatus) Valid() bool {
	return s == PollStatusActive || s == PollStatusCompleted
}

// Toggled returns the status a toggle moves the poll into
func (s PollStatus) Toggled() PollStatus {
	if s == PollStatusActive {
		return PollStatusCompleted
	}
	return PollStatusActive
}

// Poll represents a question with an ordered list of options
type Poll struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Options     []Option   `json:"options"`
	TotalVotes  int        `json:"totalVotes"`
	Status      PollStatus `json:"status"`
	EndDate     string     `json:"endDate"`
}

// Option is one selectable answer within a poll
type Option struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// Clone returns a deep copy of the poll
func (p Poll) Clone() Poll {
	cp := p
	cp.Options = make([]Option, len(p.Options))
	copy(cp.Options, p.Options)
	return cp
}

// FindOption returns the index of the option with the given ID, or -1
func (p *Poll) FindOption(optionID string) int {
	for i := range p.Options {
		if p.Options[i].ID == optionID {
			return i
		}
	}
	return -1
}

// PollFilter narrows a poll listing
type PollFilter struct {
	Status PollStatus
}

// NewPollInput is the payload of a create-poll command
type NewPollInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
}

// VoteRequest is the payload of a vote command
type VoteRequest struct {
	OptionID string `json:"option_id"`
}

// Stats is the aggregate view over the current poll collection
type Stats struct {
	TotalPolls     int `json:"totalPolls"`
	TotalVotes     int `json:"totalVotes"`
	TotalUsers     int `json:"totalUsers"`
	ActivePolls    int `json:"activePolls"`
	CompletedPolls int `json:"completedPolls"`
}

// PollsResponse is the authoritative poll list returned after every read and mutation
type PollsResponse struct {
	Polls     []Poll    `json:"polls"`
	Stats     Stats     `json:"stats"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VotedResponse lists the polls a user has already voted in
type VotedResponse struct {
	PollIDs []string `json:"pollIds"`
}
