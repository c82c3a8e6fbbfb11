package services

import (
	"context"
	"sync"
	"testing"

	"dockline_server/models"

	"github.com/stretchr/testify/require"
)

func newTestChat(t *testing.T) (*ConversationService, *fakeDynamo, *stubStorage) {
	t.Helper()
	dynamo := newFakeDynamo()
	storage := &stubStorage{}
	return NewConversationService(dynamo, storage), dynamo, storage
}

func TestFindOrCreateDirectIsIdempotent(t *testing.T) {
	chat, dynamo, _ := newTestChat(t)
	ctx := context.Background()

	first, err := chat.FindOrCreateDirect(ctx, "bob", "alice")
	require.NoError(t, err)
	require.False(t, first.IsGroup)
	require.Equal(t, []string{"alice", "bob"}, first.MemberIDs)

	// Reversed argument order still lands on the same conversation.
	second, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)
	require.Equal(t, 1, dynamo.itemCount(models.ConversationsTable))
}

func TestFindOrCreateDirectConcurrent(t *testing.T) {
	chat, dynamo, _ := newTestChat(t)
	ctx := context.Background()

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conversation, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
			ids[i], errs[i] = conversation.ConversationID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	require.Equal(t, 1, dynamo.itemCount(models.ConversationsTable))
}

func TestFindOrCreateDirectValidation(t *testing.T) {
	chat, _, _ := newTestChat(t)
	ctx := context.Background()

	var validation *models.ValidationError
	_, err := chat.FindOrCreateDirect(ctx, "alice", "alice")
	require.ErrorAs(t, err, &validation)

	_, err = chat.FindOrCreateDirect(ctx, "alice", "")
	require.ErrorAs(t, err, &validation)
}

func TestCreateGroup(t *testing.T) {
	chat, _, _ := newTestChat(t)
	ctx := context.Background()

	group, err := chat.CreateGroup(ctx, "alice", "Filing deadlines", []string{"bob", "carol", "bob"})
	require.NoError(t, err)
	require.True(t, group.IsGroup)
	require.Equal(t, []string{"alice", "bob", "carol"}, group.MemberIDs)

	var validation *models.ValidationError
	_, err = chat.CreateGroup(ctx, "alice", "Just me", []string{"alice"})
	require.ErrorAs(t, err, &validation)

	_, err = chat.CreateGroup(ctx, "alice", "", []string{"bob"})
	require.ErrorAs(t, err, &validation)
}

func TestAppendMessageValidation(t *testing.T) {
	chat, _, _ := newTestChat(t)
	ctx := context.Background()

	conversation, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	var validation *models.ValidationError
	_, err = chat.AppendMessage(ctx, conversation.ConversationID, "alice", "", nil)
	require.ErrorAs(t, err, &validation)

	var forbidden *models.ForbiddenError
	_, err = chat.AppendMessage(ctx, conversation.ConversationID, "mallory", "hi", nil)
	require.ErrorAs(t, err, &forbidden)

	var notFound *models.NotFoundError
	_, err = chat.AppendMessage(ctx, "no-such-conversation", "alice", "hi", nil)
	require.ErrorAs(t, err, &notFound)

	// Attachment-only messages are fine.
	message, err := chat.AppendMessage(ctx, conversation.ConversationID, "alice", "", []models.Attachment{
		{Key: "attachments/abc.png", Filename: "cat.png", MimeType: "image/png", Size: 1024},
	})
	require.NoError(t, err)
	require.Empty(t, message.Text)
	require.Len(t, message.Attachments, 1)
}

func TestListMessagesOrderingAndPagination(t *testing.T) {
	chat, _, _ := newTestChat(t)
	ctx := context.Background()

	conversation, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	texts := []string{"one", "two", "three", "four", "five"}
	for _, text := range texts {
		_, err := chat.AppendMessage(ctx, conversation.ConversationID, "alice", text, nil)
		require.NoError(t, err)
	}

	oldest, _, err := chat.ListMessages(ctx, conversation.ConversationID, 10, "", true)
	require.NoError(t, err)
	require.Len(t, oldest, 5)
	for i, message := range oldest {
		require.Equal(t, texts[i], message.Text)
	}

	// Newest-first paging with a cursor covers every message exactly once.
	page1, cursor, err := chat.ListMessages(ctx, conversation.ConversationID, 2, "", false)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, cursor)
	require.Equal(t, "five", page1[0].Text)

	page2, cursor, err := chat.ListMessages(ctx, conversation.ConversationID, 2, cursor, false)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.Equal(t, "three", page2[0].Text)

	page3, _, err := chat.ListMessages(ctx, conversation.ConversationID, 2, cursor, false)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	require.Equal(t, "one", page3[0].Text)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	chat, _, _ := newTestChat(t)
	ctx := context.Background()

	conversation, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	for _, text := range []string{"hello", "are you there?"} {
		_, err := chat.AppendMessage(ctx, conversation.ConversationID, "alice", text, nil)
		require.NoError(t, err)
	}
	reply, err := chat.AppendMessage(ctx, conversation.ConversationID, "bob", "here", nil)
	require.NoError(t, err)

	updated, err := chat.MarkRead(ctx, conversation.ConversationID, "bob")
	require.NoError(t, err)
	require.Len(t, updated, 2)
	require.NotContains(t, updated, reply.MessageID, "own messages are never marked")

	again, err := chat.MarkRead(ctx, conversation.ConversationID, "bob")
	require.NoError(t, err)
	require.Empty(t, again)

	messages, _, err := chat.ListMessages(ctx, conversation.ConversationID, 10, "", true)
	require.NoError(t, err)
	for _, message := range messages {
		if message.SenderID == "alice" {
			require.True(t, message.ReadBy["bob"])
			require.Len(t, message.ReadBy, 1)
		} else {
			require.Empty(t, message.ReadBy)
		}
	}

	var forbidden *models.ForbiddenError
	_, err = chat.MarkRead(ctx, conversation.ConversationID, "mallory")
	require.ErrorAs(t, err, &forbidden)
}

func TestDirectMessageSeenScenario(t *testing.T) {
	chat, _, _ := newTestChat(t)
	ctx := context.Background()

	conversation, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	sent, err := chat.AppendMessage(ctx, conversation.ConversationID, "alice", "hello", nil)
	require.NoError(t, err)
	require.Empty(t, sent.ReadBy)
	require.False(t, models.Seen(sent, conversation))

	_, err = chat.MarkRead(ctx, conversation.ConversationID, "bob")
	require.NoError(t, err)

	messages, _, err := chat.ListMessages(ctx, conversation.ConversationID, 10, "", true)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.True(t, messages[0].ReadBy["bob"])
	require.True(t, models.Seen(messages[0], conversation))
}

func TestGroupSeenRequiresAllMembers(t *testing.T) {
	chat, _, _ := newTestChat(t)
	ctx := context.Background()

	group, err := chat.CreateGroup(ctx, "alice", "Team", []string{"bob", "carol"})
	require.NoError(t, err)

	_, err = chat.AppendMessage(ctx, group.ConversationID, "alice", "standup?", nil)
	require.NoError(t, err)

	_, err = chat.MarkRead(ctx, group.ConversationID, "bob")
	require.NoError(t, err)

	messages, _, err := chat.ListMessages(ctx, group.ConversationID, 10, "", true)
	require.NoError(t, err)
	require.False(t, models.Seen(messages[0], group), "one of two recipients read")

	_, err = chat.MarkRead(ctx, group.ConversationID, "carol")
	require.NoError(t, err)

	messages, _, err = chat.ListMessages(ctx, group.ConversationID, 10, "", true)
	require.NoError(t, err)
	require.True(t, models.Seen(messages[0], group))
}

func TestDeleteMessage(t *testing.T) {
	chat, dynamo, storage := newTestChat(t)
	ctx := context.Background()

	conversation, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	message, err := chat.AppendMessage(ctx, conversation.ConversationID, "alice", "oops", []models.Attachment{
		{Key: "attachments/doc.pdf", Filename: "doc.pdf", MimeType: "application/pdf", Size: 2048},
	})
	require.NoError(t, err)

	var forbidden *models.ForbiddenError
	err = chat.DeleteMessage(ctx, conversation.ConversationID, message.MessageID, "bob")
	require.ErrorAs(t, err, &forbidden)

	require.NoError(t, chat.DeleteMessage(ctx, conversation.ConversationID, message.MessageID, "alice"))
	require.Contains(t, storage.deletedKeys(), "attachments/doc.pdf")
	require.Equal(t, 0, dynamo.itemCount(models.MessagesTable))

	var notFound *models.NotFoundError
	err = chat.DeleteMessage(ctx, conversation.ConversationID, message.MessageID, "alice")
	require.ErrorAs(t, err, &notFound)
}

func TestDeleteAttachmentTombstone(t *testing.T) {
	chat, _, storage := newTestChat(t)
	ctx := context.Background()

	conversation, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	imageOnly, err := chat.AppendMessage(ctx, conversation.ConversationID, "alice", "", []models.Attachment{
		{Key: "attachments/photo.jpg", Filename: "photo.jpg", MimeType: "image/jpeg", Size: 4096},
	})
	require.NoError(t, err)

	updated, err := chat.DeleteAttachment(ctx, conversation.ConversationID, imageOnly.MessageID, "attachments/photo.jpg", "alice")
	require.NoError(t, err)
	require.True(t, updated.Deleted, "attachment-only message tombstones")
	require.Empty(t, updated.Attachments)
	require.Contains(t, storage.deletedKeys(), "attachments/photo.jpg")

	// Identity survives for ordering.
	messages, _, err := chat.ListMessages(ctx, conversation.ConversationID, 10, "", true)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, imageOnly.MessageID, messages[0].MessageID)
	require.True(t, messages[0].Deleted)

	// A message with text keeps its identity and text.
	withText, err := chat.AppendMessage(ctx, conversation.ConversationID, "alice", "see attached", []models.Attachment{
		{Key: "attachments/brief.pdf", Filename: "brief.pdf", MimeType: "application/pdf", Size: 1000},
	})
	require.NoError(t, err)

	updated, err = chat.DeleteAttachment(ctx, conversation.ConversationID, withText.MessageID, "attachments/brief.pdf", "alice")
	require.NoError(t, err)
	require.False(t, updated.Deleted)
	require.Equal(t, "see attached", updated.Text)
}

// TestAttachmentUploadScenario walks the full multipart path: start, sign
// two parts for a ~6 MB file, complete, attach the key to a message, then
// delete the message and observe the object go away.
func TestAttachmentUploadScenario(t *testing.T) {
	dynamo := newFakeDynamo()
	storage := &stubStorage{}
	chat := NewConversationService(dynamo, storage)
	uploads := NewUploadService(storage)
	ctx := context.Background()

	session, err := uploads.Start(ctx, "deposition.mov", "video/quicktime")
	require.NoError(t, err)

	for part := int32(1); part <= 2; part++ {
		_, err := uploads.SignPart(ctx, session.UploadID, session.Key, part)
		require.NoError(t, err)
	}

	location, err := uploads.Complete(ctx, session.UploadID, session.Key, []models.PartETag{
		{PartNumber: 1, ETag: "etag-1"},
		{PartNumber: 2, ETag: "etag-2"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, location)

	conversation, err := chat.FindOrCreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	message, err := chat.AppendMessage(ctx, conversation.ConversationID, "alice", "", []models.Attachment{
		{Key: session.Key, Filename: "deposition.mov", MimeType: "video/quicktime", Size: 6 * 1024 * 1024},
	})
	require.NoError(t, err)

	require.NoError(t, chat.DeleteMessage(ctx, conversation.ConversationID, message.MessageID, "alice"))
	require.Contains(t, storage.deletedKeys(), session.Key)
}
