package types

import "testing"

func TestTopicStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to TopicStatus
		want     bool
	}{
		{TopicStatusLocked, TopicStatusActive, true},
		{TopicStatusLocked, TopicStatusArchived, true},
		{TopicStatusLocked, TopicStatusCompleted, false},
		{TopicStatusActive, TopicStatusCompleted, true},
		{TopicStatusActive, TopicStatusArchived, true},
		{TopicStatusActive, TopicStatusLocked, false},
		{TopicStatusCompleted, TopicStatusActive, false},
		{TopicStatusCompleted, TopicStatusArchived, false},
		{TopicStatusArchived, TopicStatusActive, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Fatalf("%s -> %s: got %v want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTopicStatusTerminal(t *testing.T) {
	if TopicStatusLocked.Terminal() || TopicStatusActive.Terminal() {
		t.Fatalf("locked/active must not be terminal")
	}
	if !TopicStatusCompleted.Terminal() || !TopicStatusArchived.Terminal() {
		t.Fatalf("completed/archived must be terminal")
	}
}
