package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"dockline_server/models"
	"dockline_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// timestampLayout is RFC3339 with a fixed-width fraction so the createdAt
// sort key orders lexicographically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ObjectRemover is the slice of the storage client the conversation service
// needs: deleting attachment objects when their message goes away.
type ObjectRemover interface {
	DeleteObject(ctx context.Context, key string) error
}

// ConversationService owns the persisted Conversation and Message entities.
type ConversationService struct {
	Dynamo  DynamoAPI
	Storage ObjectRemover

	mu        sync.Mutex
	lastStamp map[string]time.Time // per-conversation createdAt high-water mark
}

// NewConversationService initializes a ConversationService.
func NewConversationService(dynamo DynamoAPI, storage ObjectRemover) *ConversationService {
	return &ConversationService{
		Dynamo:    dynamo,
		Storage:   storage,
		lastStamp: make(map[string]time.Time),
	}
}

// nextTimestamp returns a strictly increasing timestamp for the
// conversation, which keeps message ordering stable even when the clock
// ties and doubles as the insertion-sequence tiebreak.
func (s *ConversationService) nextTimestamp(conversationID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if last, ok := s.lastStamp[conversationID]; ok && !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	s.lastStamp[conversationID] = now
	return now.Format(timestampLayout)
}

// FindOrCreateDirect returns the existing 1:1 conversation between the two
// users, creating it when absent. The deterministic conversation ID plus a
// conditional put make concurrent calls for the same pair converge on a
// single item.
func (s *ConversationService) FindOrCreateDirect(ctx context.Context, userA, userB string) (models.Conversation, error) {
	if userA == "" || userB == "" {
		return models.Conversation{}, &models.ValidationError{Reason: "both user IDs are required"}
	}
	if userA == userB {
		return models.Conversation{}, &models.ValidationError{Reason: "a direct conversation needs two distinct users"}
	}

	conversationID := models.DirectConversationID(userA, userB)
	key := map[string]types.AttributeValue{
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
	}

	item, err := s.Dynamo.GetItem(ctx, models.ConversationsTable, key)
	if err == nil {
		var existing models.Conversation
		if err := attributevalue.UnmarshalMap(item, &existing); err != nil {
			return models.Conversation{}, fmt.Errorf("failed to parse conversation: %w", err)
		}
		return existing, nil
	}
	if !errors.Is(err, ErrItemNotFound) {
		return models.Conversation{}, fmt.Errorf("failed to look up conversation: %w", err)
	}

	conversation := models.Conversation{
		ConversationID: conversationID,
		MemberIDs:      models.NormalizeMembers([]string{userA, userB}),
		IsGroup:        false,
		CreatedBy:      userA,
		CreatedAt:      time.Now().UTC().Format(timestampLayout),
	}

	err = s.Dynamo.PutItemIfAbsent(ctx, models.ConversationsTable, conversation, "conversationId")
	if errors.Is(err, ErrConditionalCheckFailed) {
		// Lost the creation race; the winner's item is authoritative.
		log.Printf("🔁 Direct conversation %s already created concurrently, reusing it", conversationID)
		item, getErr := s.Dynamo.GetItem(ctx, models.ConversationsTable, key)
		if getErr != nil {
			return models.Conversation{}, fmt.Errorf("failed to re-read conversation after race: %w", getErr)
		}
		var existing models.Conversation
		if err := attributevalue.UnmarshalMap(item, &existing); err != nil {
			return models.Conversation{}, fmt.Errorf("failed to parse conversation: %w", err)
		}
		return existing, nil
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}

	log.Printf("✅ Created direct conversation %s", conversationID)
	return conversation, nil
}

// CreateGroup creates a group conversation. The creator is implicitly a
// member and at least one other member is required.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (models.Conversation, error) {
	if creatorID == "" {
		return models.Conversation{}, &models.ValidationError{Reason: "creator ID is required"}
	}
	if name == "" {
		return models.Conversation{}, &models.ValidationError{Reason: "a group conversation needs a name"}
	}

	members := models.NormalizeMembers(append(append([]string{}, memberIDs...), creatorID))
	if len(members) < 2 {
		return models.Conversation{}, &models.ValidationError{Reason: "a group needs at least one member besides the creator"}
	}

	conversation := models.Conversation{
		ConversationID: "GROUP#" + uuid.New().String(),
		MemberIDs:      members,
		IsGroup:        true,
		Name:           name,
		CreatedBy:      creatorID,
		CreatedAt:      time.Now().UTC().Format(timestampLayout),
	}

	if err := s.Dynamo.PutItem(ctx, models.ConversationsTable, conversation); err != nil {
		return models.Conversation{}, fmt.Errorf("failed to create group: %w", err)
	}

	log.Printf("✅ Created group %s (%q) with %d members", conversation.ConversationID, name, len(members))
	return conversation, nil
}

// GetConversation fetches a conversation by ID.
func (s *ConversationService) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	key := map[string]types.AttributeValue{
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
	}
	item, err := s.Dynamo.GetItem(ctx, models.ConversationsTable, key)
	if errors.Is(err, ErrItemNotFound) {
		return models.Conversation{}, &models.NotFoundError{Resource: "conversation", ID: conversationID}
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	var conversation models.Conversation
	if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
		return models.Conversation{}, fmt.Errorf("failed to parse conversation: %w", err)
	}
	return conversation, nil
}

// ListConversations returns every conversation the user belongs to, most
// recently created first.
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	if userID == "" {
		return nil, &models.ValidationError{Reason: "user ID is required"}
	}

	memberFilter := func(item map[string]types.AttributeValue) bool {
		for _, member := range utils.ExtractStringList(item, "memberIds") {
			if member == userID {
				return true
			}
		}
		return false
	}

	var conversations []models.Conversation
	if err := s.Dynamo.ScanWithFilter(ctx, models.ConversationsTable, memberFilter, nil, &conversations); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt > conversations[j].CreatedAt
	})
	return conversations, nil
}

// AppendMessage validates and persists a new message. Either text or at
// least one attachment is required, and the sender must be a member at
// creation time.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID, senderID, text string, attachments []models.Attachment) (models.Message, error) {
	conversation, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if !conversation.HasMember(senderID) {
		return models.Message{}, &models.ForbiddenError{Reason: "sender is not a member of the conversation"}
	}
	if text == "" && len(attachments) == 0 {
		return models.Message{}, &models.ValidationError{Reason: "a message needs text or at least one attachment"}
	}
	for _, attachment := range attachments {
		if attachment.Key == "" {
			return models.Message{}, &models.ValidationError{Reason: "attachment is missing its storage key"}
		}
	}

	message := models.Message{
		ConversationID: conversationID,
		CreatedAt:      s.nextTimestamp(conversationID),
		MessageID:      uuid.New().String(),
		SenderID:       senderID,
		Text:           text,
		Attachments:    attachments,
		ReadBy:         map[string]bool{},
	}

	if err := s.Dynamo.PutItem(ctx, models.MessagesTable, message); err != nil {
		return models.Message{}, fmt.Errorf("failed to store message: %w", err)
	}

	log.Printf("📩 Stored message %s in %s", message.MessageID, conversationID)
	return message, nil
}

// ListMessages returns a page of messages. The cursor is the createdAt sort
// key of the last message seen; paging continues past it in the direction
// of travel, so pages stay stable under concurrent appends.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID string, limit int, cursor string, oldestFirst bool) ([]models.Message, string, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = 50
	}

	keyCondition := "conversationId = :conversationId"
	expressionValues := map[string]types.AttributeValue{
		":conversationId": &types.AttributeValueMemberS{Value: conversationID},
	}
	if cursor != "" {
		if oldestFirst {
			keyCondition += " AND createdAt > :cursor"
		} else {
			keyCondition += " AND createdAt < :cursor"
		}
		expressionValues[":cursor"] = &types.AttributeValueMemberS{Value: cursor}
	}

	items, err := s.Dynamo.QueryItemsWithOptions(ctx, models.MessagesTable, keyCondition, expressionValues, nil, int32(limit), !oldestFirst)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch messages: %w", err)
	}

	messages, err := unmarshalMessages(items)
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(messages) == limit {
		nextCursor = messages[len(messages)-1].CreatedAt
	}
	return messages, nextCursor, nil
}

// MarkRead adds userID to readBy for every message in the conversation not
// sent by the user and not already read. It returns only the message IDs
// actually changed, so a repeat call returns an empty set.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID string) ([]string, error) {
	conversation, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasMember(userID) {
		return nil, &models.ForbiddenError{Reason: "reader is not a member of the conversation"}
	}

	messages, err := s.allMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var updatedIDs []string
	for _, message := range messages {
		if message.SenderID == userID || message.Deleted || message.ReadBy[userID] {
			continue
		}

		key := map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: conversationID},
			"createdAt":      &types.AttributeValueMemberS{Value: message.CreatedAt},
		}
		updateExpression := "SET readBy.#userId = :true"
		expressionValues := map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		}
		expressionNames := map[string]string{
			"#userId": userID,
		}

		if _, err := s.Dynamo.UpdateItem(ctx, models.MessagesTable, updateExpression, key, expressionValues, expressionNames); err != nil {
			return updatedIDs, fmt.Errorf("failed to mark message %s read: %w", message.MessageID, err)
		}
		updatedIDs = append(updatedIDs, message.MessageID)
	}

	if len(updatedIDs) > 0 {
		log.Printf("✅ Marked %d messages read in %s for %s", len(updatedIDs), conversationID, userID)
	}
	return updatedIDs, nil
}

// CountUnread recomputes the number of unread messages for the user from
// the store. Ground truth for reconciling the unread cache.
func (s *ConversationService) CountUnread(ctx context.Context, conversationID, userID string) (int, error) {
	messages, err := s.allMessages(ctx, conversationID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, message := range messages {
		if message.SenderID == userID || message.Deleted || message.ReadBy[userID] {
			continue
		}
		count++
	}
	return count, nil
}

// DeleteMessage removes a message and its attachment objects. Only the
// sender may delete.
func (s *ConversationService) DeleteMessage(ctx context.Context, conversationID, messageID, requesterID string) error {
	message, err := s.getMessage(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != requesterID {
		return &models.ForbiddenError{Reason: "only the sender can delete a message"}
	}

	for _, attachment := range message.Attachments {
		if err := s.Storage.DeleteObject(ctx, attachment.Key); err != nil {
			return &models.UploadError{Op: "deleteObject", Err: err}
		}
	}

	key := map[string]types.AttributeValue{
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		"createdAt":      &types.AttributeValueMemberS{Value: message.CreatedAt},
	}
	if err := s.Dynamo.DeleteItem(ctx, models.MessagesTable, key); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}

	log.Printf("🗑️ Deleted message %s from %s", messageID, conversationID)
	return nil
}

// DeleteAttachment removes one attachment object from a message. When the
// attachment was the message's only content, the message becomes a
// tombstone: content cleared, identity retained for ordering.
func (s *ConversationService) DeleteAttachment(ctx context.Context, conversationID, messageID, attachmentKey, requesterID string) (models.Message, error) {
	message, err := s.getMessage(ctx, conversationID, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if message.SenderID != requesterID {
		return models.Message{}, &models.ForbiddenError{Reason: "only the sender can delete an attachment"}
	}

	remaining := make([]models.Attachment, 0, len(message.Attachments))
	found := false
	for _, attachment := range message.Attachments {
		if attachment.Key == attachmentKey {
			found = true
			continue
		}
		remaining = append(remaining, attachment)
	}
	if !found {
		return models.Message{}, &models.NotFoundError{Resource: "attachment", ID: attachmentKey}
	}

	if err := s.Storage.DeleteObject(ctx, attachmentKey); err != nil {
		return models.Message{}, &models.UploadError{Op: "deleteObject", Err: err}
	}

	key := map[string]types.AttributeValue{
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		"createdAt":      &types.AttributeValueMemberS{Value: message.CreatedAt},
	}

	if message.Text == "" && len(remaining) == 0 {
		updateExpression := "REMOVE attachments SET deleted = :true"
		expressionValues := map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		}
		if _, err := s.Dynamo.UpdateItem(ctx, models.MessagesTable, updateExpression, key, expressionValues, nil); err != nil {
			return models.Message{}, fmt.Errorf("failed to tombstone message %s: %w", messageID, err)
		}
		message.Attachments = nil
		message.Deleted = true
		log.Printf("🪦 Message %s tombstoned after its last attachment was removed", messageID)
		return message, nil
	}

	attachmentsValue, err := attributevalue.Marshal(remaining)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to marshal attachments: %w", err)
	}
	updateExpression := "SET attachments = :attachments"
	expressionValues := map[string]types.AttributeValue{
		":attachments": attachmentsValue,
	}
	if _, err := s.Dynamo.UpdateItem(ctx, models.MessagesTable, updateExpression, key, expressionValues, nil); err != nil {
		return models.Message{}, fmt.Errorf("failed to update attachments on %s: %w", messageID, err)
	}
	message.Attachments = remaining
	return message, nil
}

func (s *ConversationService) allMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	keyCondition := "conversationId = :conversationId"
	expressionValues := map[string]types.AttributeValue{
		":conversationId": &types.AttributeValueMemberS{Value: conversationID},
	}
	items, err := s.Dynamo.QueryItemsWithOptions(ctx, models.MessagesTable, keyCondition, expressionValues, nil, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return unmarshalMessages(items)
}

func (s *ConversationService) getMessage(ctx context.Context, conversationID, messageID string) (models.Message, error) {
	messages, err := s.allMessages(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	for _, message := range messages {
		if message.MessageID == messageID {
			return message, nil
		}
	}
	return models.Message{}, &models.NotFoundError{Resource: "message", ID: messageID}
}

func unmarshalMessages(items []map[string]types.AttributeValue) ([]models.Message, error) {
	var messages []models.Message
	if err := attributevalue.UnmarshalListOfMaps(items, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	return messages, nil
}
