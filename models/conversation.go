package models

import (
	"fmt"
	"sort"
)

// Conversation represents a chat thread between a fixed set of members.
type Conversation struct {
	ConversationID string   `dynamodbav:"conversationId" json:"conversationId"`
	MemberIDs      []string `dynamodbav:"memberIds" json:"memberIds"` // sorted, unique, len >= 2
	IsGroup        bool     `dynamodbav:"isGroup" json:"isGroup"`
	Name           string   `dynamodbav:"name,omitempty" json:"name,omitempty"` // groups only
	CreatedBy      string   `dynamodbav:"createdBy" json:"createdBy"`
	CreatedAt      string   `dynamodbav:"createdAt" json:"createdAt"`
}

// ConversationsTable is the DynamoDB table name for conversations
const ConversationsTable = "Conversations"

// DirectConversationID derives the deterministic ID for a 1:1 conversation.
// The sorted pair doubles as the uniqueness constraint that makes
// find-or-create idempotent under concurrent calls.
func DirectConversationID(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("DIRECT#%s#%s", userA, userB)
}

// NormalizeMembers returns the member set sorted and deduplicated.
func NormalizeMembers(memberIDs []string) []string {
	seen := make(map[string]bool, len(memberIDs))
	normalized := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		normalized = append(normalized, id)
	}
	sort.Strings(normalized)
	return normalized
}

// HasMember reports whether userID belongs to the conversation.
func (c *Conversation) HasMember(userID string) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
