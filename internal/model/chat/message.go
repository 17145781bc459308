package chat

import "time"

// Sender names stamped on team-authored messages.
const (
	AssistantName = "AI Assistant"
	SystemName    = "System"
)

// Message is one immutable chat turn belonging to a single member.
type Message struct {
	ID             uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID         string    `json:"userId" gorm:"type:varchar(255);not null;index:idx_chat_user_ts,priority:1"`
	Message        string    `json:"message" gorm:"type:text;not null"`
	IsFromTeam     bool      `json:"isFromTeam" gorm:"not null;default:false"`
	TeamMemberName *string   `json:"teamMemberName" gorm:"type:varchar(255)"`
	Timestamp      time.Time `json:"timestamp" gorm:"not null;index:idx_chat_user_ts,priority:2"`
}

// TableName keeps the table name used by the existing portal schema.
func (Message) TableName() string {
	return "chat_messages"
}

// FromTeam builds an unsaved team message for userID.
func FromTeam(userID, author, text string) Message {
	name := author
	return Message{
		UserID:         userID,
		Message:        text,
		IsFromTeam:     true,
		TeamMemberName: &name,
	}
}

// FromMember builds an unsaved member message.
func FromMember(userID, text string) Message {
	return Message{UserID: userID, Message: text}
}

// Author returns the team member name, or "" for member messages.
func (m Message) Author() string {
	if m.TeamMemberName == nil {
		return ""
	}
	return *m.TeamMemberName
}
