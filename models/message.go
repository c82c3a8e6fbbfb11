package models

// Attachment references an object-storage object attached to a message.
// Attachments are created only from a completed upload session and are
// immutable once attached.
type Attachment struct {
	Key      string `dynamodbav:"key" json:"key"`
	Filename string `dynamodbav:"filename" json:"filename"`
	MimeType string `dynamodbav:"mimeType" json:"mimeType"`
	Size     int64  `dynamodbav:"size" json:"size"`
}

// Message represents one unit of conversation content.
type Message struct {
	ConversationID string          `dynamodbav:"conversationId" json:"conversationId"` // Partition Key
	CreatedAt      string          `dynamodbav:"createdAt" json:"createdAt"`           // Sort Key, monotonic per conversation
	MessageID      string          `dynamodbav:"messageId" json:"messageId"`
	SenderID       string          `dynamodbav:"senderId" json:"senderId"` // empty once the sender account is deleted
	Text           string          `dynamodbav:"text,omitempty" json:"text,omitempty"`
	Attachments    []Attachment    `dynamodbav:"attachments,omitempty" json:"attachments,omitempty"`
	ReadBy         map[string]bool `dynamodbav:"readBy" json:"readBy"` // grow-only, one entry per reader
	Deleted        bool            `dynamodbav:"deleted,omitempty" json:"deleted,omitempty"`
}

// MessagesTable is the DynamoDB table name for chat messages
const MessagesTable = "Messages"

// DeletedUserName is rendered in place of a sender whose account was removed.
const DeletedUserName = "Deleted User"

// SenderDisplayName returns the sender ID, or the deleted-user placeholder
// when the account no longer exists.
func (m *Message) SenderDisplayName() string {
	if m.SenderID == "" {
		return DeletedUserName
	}
	return m.SenderID
}

// ReadByUser reports whether userID has read the message.
func (m *Message) ReadByUser(userID string) bool {
	return m.ReadBy[userID]
}

// Seen computes the sender-facing read tick for a message. It is a pure
// function of readBy relative to the member set and must be recomputed on
// every read: a private chat is seen once any other member has read it, a
// group chat only once every other member has.
func Seen(msg Message, conv Conversation) bool {
	reads := 0
	for userID := range msg.ReadBy {
		if userID != msg.SenderID {
			reads++
		}
	}
	if conv.IsGroup {
		return reads >= len(conv.MemberIDs)-1
	}
	return reads >= 1
}
