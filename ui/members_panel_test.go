package ui

import (
	"testing"

	"socialchat/models"
)

func TestMemberCandidatesExcludeExistingMembers(t *testing.T) {
	chat := models.Chat{ID: "c1", IsGroup: true, Members: []string{"u1", "u2"}}
	hits := []models.User{
		{ID: "u2", Username: "bob"},
		{ID: "u3", Username: "carol"},
		{ID: "u4", Username: "dave"},
	}

	candidates := memberCandidates(hits, chat)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	for _, candidate := range candidates {
		if chat.HasMember(candidate.ID) {
			t.Fatalf("existing member %s offered as candidate", candidate.ID)
		}
	}
	if candidates[0].ID != "u3" || candidates[1].ID != "u4" {
		t.Fatalf("expected directory order preserved, got %+v", candidates)
	}
}

func TestMemberCandidatesEmptyWhenAllAreMembers(t *testing.T) {
	chat := models.Chat{ID: "c1", IsGroup: true, Members: []string{"u1", "u2"}}
	hits := []models.User{{ID: "u1"}, {ID: "u2"}}

	if candidates := memberCandidates(hits, chat); len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %+v", candidates)
	}
}
