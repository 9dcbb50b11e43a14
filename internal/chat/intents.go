package chat

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"chronicle-chat/backend/internal/models"
)

// IntentKind tags an inbound client intent. The set is closed; the transport
// dispatches over it exhaustively and unknown kinds never become silent no-ops
// deeper in the core.
type IntentKind string

const (
	IntentJoin          IntentKind = "user-join"
	IntentSendMessage   IntentKind = "send-message"
	IntentSendFile      IntentKind = "send-file"
	IntentEditMessage   IntentKind = "edit-message"
	IntentRollDice      IntentKind = "roll-dice"
	IntentUpdateProfile IntentKind = "update-profile"
	IntentLogout        IntentKind = "logout"
)

var validate = validator.New()

// JoinPayload binds a character name to the connection.
type JoinPayload struct {
	Name string `json:"name" validate:"required"`
}

// SendMessagePayload is a text message intent.
type SendMessagePayload struct {
	Text         string `json:"text" validate:"required"`
	SenderMode   string `json:"senderType" validate:"omitempty,oneof=self anonymous other"`
	CustomSender string `json:"customSender"`
}

// SendFilePayload is a file message intent; the URL comes from the upload
// endpoint, the core never sees the blob.
type SendFilePayload struct {
	Filename    string `json:"filename" validate:"required"`
	OriginalURL string `json:"originalUrl" validate:"required"`
	DisplayName string `json:"displayName"`
}

// EditMessagePayload rewrites the text of an existing message.
type EditMessagePayload struct {
	MessageID string `json:"messageId" validate:"required"`
	NewText   string `json:"newText" validate:"required"`
}

// RollDicePayload requests a dice message. The 1..15 bound is the intent
// boundary rule; the engine separately rejects non-positive counts.
type RollDicePayload struct {
	Count int `json:"count" validate:"required,min=1,max=15"`
}

// UpdateProfilePayload is a partial profile edit; nil fields keep the
// current value.
type UpdateProfilePayload struct {
	Name        *string `json:"name"`
	Avatar      *string `json:"avatar"`
	Description *string `json:"description"`
	Sheet       *string `json:"sheet"`
}

// Update returns the profile-field part of the payload.
func (p UpdateProfilePayload) Update() models.ProfileUpdate {
	return models.ProfileUpdate{
		Avatar:      p.Avatar,
		Description: p.Description,
		Sheet:       p.Sheet,
	}
}

// DecodePayload unmarshals raw into payload and validates it. An error means
// the intent must be dropped at the boundary.
func DecodePayload(raw json.RawMessage, payload any) error {
	if err := json.Unmarshal(raw, payload); err != nil {
		return fmt.Errorf("decode intent payload: %w", err)
	}
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("validate intent payload: %w", err)
	}
	return nil
}
