// Package tally holds the poll arithmetic shared by the service and the client session:
// vote preconditions, percentages, status toggling, poll creation and aggregate stats.
package tally

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"voting-platform/internal/domain"
)

// DefaultHorizon is how long a new poll stays open
const DefaultHorizon = 7 * 24 * time.Hour

// VotedSet is the set of poll IDs a user has voted in. It is a cache of server state.
type VotedSet struct {
	ids map[string]struct{}
}

// NewVotedSet builds a set from a list of poll IDs
func NewVotedSet(pollIDs ...string) *VotedSet {
	s := &VotedSet{ids: make(map[string]struct{}, len(pollIDs))}
	for _, id := range pollIDs {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *VotedSet) Has(pollID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[pollID]
	return ok
}

func (s *VotedSet) Mark(pollID string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[pollID] = struct{}{}
}

// Unmark forgets a poll, e.g. after it is deleted
func (s *VotedSet) Unmark(pollID string) {
	if s != nil {
		delete(s.ids, pollID)
	}
}

func (s *VotedSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns the poll IDs in sorted order
func (s *VotedSet) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CheckVote validates a vote without changing anything.
// Checks run in order: already voted, poll not active, unknown option.
func CheckVote(poll *domain.Poll, optionID string, hasVoted bool) error {
	if hasVoted {
		return domain.ErrAlreadyVoted
	}
	if poll.Status != domain.PollStatusActive {
		return domain.ErrPollNotActive
	}
	if poll.FindOption(optionID) < 0 {
		return domain.ErrOptionNotFound
	}
	return nil
}

// CastVote records one vote for optionID and marks the poll in voted.
// On error the poll and the set are left untouched.
func CastVote(poll *domain.Poll, optionID string, voted *VotedSet) error {
	if err := CheckVote(poll, optionID, voted.Has(poll.ID)); err != nil {
		return err
	}
	poll.Options[poll.FindOption(optionID)].Votes++
	poll.TotalVotes++
	if voted != nil {
		voted.Mark(poll.ID)
	}
	return nil
}

// Percentage is votes/total*100 rounded to one decimal, or 0 when total is 0
func Percentage(votes, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(total)*1000) / 10
}

// FormatPercentage renders a percentage with exactly one decimal, e.g. "34.1"
func FormatPercentage(votes, total int) string {
	return strconv.FormatFloat(Percentage(votes, total), 'f', 1, 64)
}

// Annotate fills every option's Percentage from the current counts
func Annotate(poll *domain.Poll) {
	for i := range poll.Options {
		poll.Options[i].Percentage = Percentage(poll.Options[i].Votes, poll.TotalVotes)
	}
}

// AnnotateAll annotates every poll in place
func AnnotateAll(polls []domain.Poll) {
	for i := range polls {
		Annotate(&polls[i])
	}
}

// Toggle flips the poll between active and completed. Counts are not touched.
func Toggle(poll *domain.Poll) {
	poll.Status = poll.Status.Toggled()
}

// Consistent reports whether TotalVotes equals the sum of option votes
func Consistent(poll *domain.Poll) bool {
	sum := 0
	for _, o := range poll.Options {
		if o.Votes < 0 {
			return false
		}
		sum += o.Votes
	}
	return sum == poll.TotalVotes
}

// NewPoll validates input and builds an active poll with zero counts.
// IDs are left empty for the store to assign.
func NewPoll(input domain.NewPollInput, now time.Time, horizon time.Duration) (*domain.Poll, error) {
	verr := &ValidationError{}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		verr.add("title", "title is required")
	}

	options := make([]domain.Option, 0, len(input.Options))
	for _, text := range input.Options {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		options = append(options, domain.Option{Text: text})
	}
	if len(options) < 2 {
		verr.add("options", "at least 2 non-empty options are required")
	}

	if verr.HasErrors() {
		return nil, verr
	}

	if horizon <= 0 {
		horizon = DefaultHorizon
	}

	return &domain.Poll{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Options:     options,
		Status:      domain.PollStatusActive,
		EndDate:     now.Add(horizon).Format(domain.DateLayout),
	}, nil
}

// Aggregate derives collection-level stats
func Aggregate(polls []domain.Poll, totalUsers int) domain.Stats {
	stats := domain.Stats{
		TotalPolls: len(polls),
		TotalUsers: totalUsers,
	}
	for _, p := range polls {
		stats.TotalVotes += p.TotalVotes
		if p.Status == domain.PollStatusActive {
			stats.ActivePolls++
		}
	}
	stats.CompletedPolls = stats.TotalPolls - stats.ActivePolls
	return stats
}

// RequireOwner rejects identities without the owner claim
func RequireOwner(id *domain.Identity) error {
	if id == nil || !id.IsOwner {
		return domain.ErrOwnerRequired
	}
	return nil
}
