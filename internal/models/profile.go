package models

// DefaultAvatarURL is assigned to profiles created without an uploaded avatar
// and to messages sent under a substituted sender name.
const DefaultAvatarURL = "/uploads/default-avatar.png"

// Profile is the durable, connection-independent record of a character's
// display attributes, keyed by case-sensitive character name.
type Profile struct {
	Avatar      string `json:"avatar"`
	Description string `json:"description"`
	Sheet       string `json:"sheet,omitempty"`
}

// NewProfile returns a profile with default display attributes.
func NewProfile() Profile {
	return Profile{Avatar: DefaultAvatarURL}
}

// ProfileUpdate is a partial update of a profile. A nil field means "keep the
// existing value"; fields are merged one by one so no stored attribute can be
// lost by an unrelated edit.
type ProfileUpdate struct {
	Avatar      *string `json:"avatar"`
	Description *string `json:"description"`
	Sheet       *string `json:"sheet"`
}

// Merge applies the update to p field by field.
func (p Profile) Merge(update ProfileUpdate) Profile {
	if update.Avatar != nil {
		p.Avatar = *update.Avatar
	}
	if update.Description != nil {
		p.Description = *update.Description
	}
	if update.Sheet != nil {
		p.Sheet = *update.Sheet
	}
	return p
}
