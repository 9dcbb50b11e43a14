package models

import (
	"time"

	"chronicle-chat/backend/internal/dice"
)

// MessageType identifies the kind of payload a message carries. The values
// are the wire names consumed by the client.
type MessageType string

const (
	MessageTypeText MessageType = "message"
	MessageTypeFile MessageType = "file"
	MessageTypeDice MessageType = "dice"
)

// SenderMode is the per-message choice of how the author's identity is shown.
type SenderMode string

const (
	// SenderSelf shows the author's real name and avatar.
	SenderSelf SenderMode = "self"
	// SenderAnonymous blanks the displayed name and avatar.
	SenderAnonymous SenderMode = "anonymous"
	// SenderOther substitutes a free-text name and the default avatar.
	SenderOther SenderMode = "other"
)

// Author is the sender snapshot stored on a message. ID is the connection
// identity at creation time and is retained even when the displayed name and
// avatar are blanked or substituted; edit authorization always checks it.
type Author struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	ID     string `json:"id"`
}

// FileAttachment describes an uploaded file referenced by a file message.
type FileAttachment struct {
	Filename    string `json:"filename"`
	OriginalURL string `json:"originalUrl"`
	DisplayName string `json:"displayName,omitempty"`
}

// Message is one record of the append-only chat history. Edits mutate Text
// and the edit metadata; the ID, type, and author snapshot never change.
type Message struct {
	ID            string          `json:"id"`
	User          Author          `json:"user"`
	Timestamp     time.Time       `json:"timestamp"`
	Type          MessageType     `json:"type"`
	CanEdit       bool            `json:"canEdit"`
	SenderMode    SenderMode      `json:"senderType,omitempty"`
	CustomSender  string          `json:"customSender,omitempty"`
	Text          string          `json:"text,omitempty"`
	File          *FileAttachment `json:"file,omitempty"`
	DiceCount     int             `json:"diceCount,omitempty"`
	RollResult    *dice.Result    `json:"rollResult,omitempty"`
	Edited        bool            `json:"edited,omitempty"`
	EditTimestamp *time.Time      `json:"editTimestamp,omitempty"`
	EditedBy      string          `json:"editedBy,omitempty"`
}
