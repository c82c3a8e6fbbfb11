package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnreadCountersAccumulate(t *testing.T) {
	chat, _, _ := newTestChat(t)
	unread := NewUnreadService(chat)

	unread.OnMessageDelivered("bob", "conv-1")
	unread.OnMessageDelivered("bob", "conv-1")
	unread.OnMessageDelivered("bob", "conv-2")

	require.Equal(t, 2, unread.GetConversationCount("bob", "conv-1"))
	require.Equal(t, 1, unread.GetConversationCount("bob", "conv-2"))
	require.Equal(t, 3, unread.GetGlobalTotal("bob"))
	require.Equal(t, 0, unread.GetGlobalTotal("alice"))
}

func TestOpeningConversationZeroesCounter(t *testing.T) {
	chat, _, _ := newTestChat(t)
	unread := NewUnreadService(chat)
	ctx := context.Background()

	conversation, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := chat.AppendMessage(ctx, conversation.ConversationID, "alice", "ping", nil)
		require.NoError(t, err)
		unread.OnMessageDelivered("bob", conversation.ConversationID)
	}
	unread.OnMessageDelivered("bob", "other-conversation")

	updated, err := unread.OnConversationOpened(ctx, "bob", conversation.ConversationID)
	require.NoError(t, err)
	require.Len(t, updated, 3)

	// The opened conversation drops to zero; the other counter is untouched
	// and the total stays non-negative.
	require.Equal(t, 0, unread.GetConversationCount("bob", conversation.ConversationID))
	require.Equal(t, 1, unread.GetGlobalTotal("bob"))

	// Opening again is harmless.
	updated, err = unread.OnConversationOpened(ctx, "bob", conversation.ConversationID)
	require.NoError(t, err)
	require.Empty(t, updated)
	require.Equal(t, 1, unread.GetGlobalTotal("bob"))
}

func TestReconcileReplacesDriftedCounters(t *testing.T) {
	chat, _, _ := newTestChat(t)
	unread := NewUnreadService(chat)
	ctx := context.Background()

	conversation, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	group, err := chat.CreateGroup(ctx, "alice", "Team", []string{"bob"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := chat.AppendMessage(ctx, conversation.ConversationID, "alice", "hey", nil)
		require.NoError(t, err)
	}
	_, err = chat.AppendMessage(ctx, group.ConversationID, "alice", "standup", nil)
	require.NoError(t, err)

	// Cache drifted: one delivery event missed, one phantom conversation.
	unread.OnMessageDelivered("bob", conversation.ConversationID)
	unread.OnMessageDelivered("bob", "ghost-conversation")

	require.NoError(t, unread.Reconcile(ctx, "bob"))

	require.Equal(t, 2, unread.GetConversationCount("bob", conversation.ConversationID))
	require.Equal(t, 1, unread.GetConversationCount("bob", group.ConversationID))
	require.Equal(t, 0, unread.GetConversationCount("bob", "ghost-conversation"))
	require.Equal(t, 3, unread.GetGlobalTotal("bob"))

	// Own messages never count against the sender.
	require.NoError(t, unread.Reconcile(ctx, "alice"))
	require.Equal(t, 0, unread.GetGlobalTotal("alice"))
}
