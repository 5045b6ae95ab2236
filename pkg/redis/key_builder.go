package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // staging/prod
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

func (kb *KeyBuilder) KeyPollsAll() string {
	return kb.BuildKey(KeyPollsAll)
}

func (kb *KeyBuilder) KeyPollsByStatus(status string) string {
	return kb.BuildKey(fmt.Sprintf(KeyPollsByStatus, status))
}

// KeyPollListings returns every key a poll mutation must invalidate
func (kb *KeyBuilder) KeyPollListings() []string {
	return []string{
		kb.KeyPollsAll(),
		kb.KeyPollsByStatus("active"),
		kb.KeyPollsByStatus("completed"),
	}
}

func (kb *KeyBuilder) KeyPollsGeneration() string {
	return kb.BuildKey(KeyPollsGen)
}

func (kb *KeyBuilder) KeyUserVoted(userID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyUserVoted, userID))
}

func (kb *KeyBuilder) ChannelPollEvents() string {
	return kb.BuildKey(ChannelPollEvents)
}
