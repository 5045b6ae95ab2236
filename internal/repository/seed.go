package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"voting-platform/internal/domain"
)

// SamplePolls returns the demo data set: one running poll and one finished poll
func SamplePolls(now time.Time) []domain.Poll {
	option := func(text string, votes int) domain.Option {
		return domain.Option{ID: uuid.NewString(), Text: text, Votes: votes}
	}

	return []domain.Poll{
		{
			ID:          uuid.NewString(),
			Title:       "Platform roadmap",
			Description: "Which feature should we build first?",
			Options: []domain.Option{
				option("Analytics and reports", 42),
				option("Mobile app", 38),
				option("Integration API", 15),
				option("Advanced security", 28),
			},
			TotalVotes: 123,
			Status:     domain.PollStatusActive,
			EndDate:    now.AddDate(0, 0, 7).Format(domain.DateLayout),
		},
		{
			ID:          uuid.NewString(),
			Title:       "Quarterly team review",
			Description: "How effective was the team this quarter?",
			Options: []domain.Option{
				option("Excellent", 67),
				option("Good", 45),
				option("Satisfactory", 12),
				option("Needs improvement", 5),
			},
			TotalVotes: 129,
			Status:     domain.PollStatusCompleted,
			EndDate:    now.AddDate(0, 0, -14).Format(domain.DateLayout),
		},
	}
}

// SeedSamplePolls inserts SamplePolls unless the store already holds polls.
// It returns the number of polls created.
func SeedSamplePolls(ctx context.Context, polls PollRepository, now time.Time) (int, error) {
	existing, err := polls.ListPolls(ctx, domain.PollFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list polls: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	// listings are newest first, so insert in reverse to keep the running poll on top
	samples := SamplePolls(now)
	created := 0
	for i := len(samples) - 1; i >= 0; i-- {
		if err := polls.CreatePoll(ctx, &samples[i], ""); err != nil {
			return created, fmt.Errorf("failed to seed poll %q: %w", samples[i].Title, err)
		}
		created++
	}
	return created, nil
}
