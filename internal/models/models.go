package models

import "time"

// Credential is a login record. The password hash is tagged out of JSON
// so it can never end up in a response body.
type Credential struct {
	ID           string `json:"_id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Admin        bool   `json:"admin"`
	ViewOnly     bool   `json:"viewOnly"`
	Token        string `json:"token,omitempty"`
}

type Team struct {
	ID         string `json:"_id"`
	Team       string `json:"team"`
	Priority   int    `json:"priority"`
	Color      string `json:"color"`
	Col1       string `json:"col1"`
	Col2       string `json:"col2"`
	Col3       string `json:"col3"`
	CheckInCol bool   `json:"checkInCol"`
	Hyperlink  string `json:"hyperlink,omitempty"`
}

// User references its Team by TeamID and carries a denormalized copy of
// the team name in Team, kept in sync by the rename cascade.
type User struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	TeamID     string `json:"teamId"`
	Team       string `json:"team"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Memo       string `json:"memo"`
	Priority   int    `json:"priority"`
	Status     string `json:"status"`
	StatusText string `json:"statusText"`
}

// Mailbox is owned 1:1 by a User and must not outlive it.
type Mailbox struct {
	UserID   string        `json:"userId"`
	Messages []MailMessage `json:"messages"`
}

type MailMessage struct {
	From   string    `json:"from"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sentAt"`
}

type AppMetadata struct {
	AppName string `json:"appName"`
}

// Event is published to the message queue for downstream consumers
// (registrations, team cascades).
type Event struct {
	Kind     string    `json:"kind"`
	Subject  string    `json:"subject"`
	OldName  string    `json:"oldName,omitempty"`
	NewName  string    `json:"newName,omitempty"`
	Affected int       `json:"affected"`
	Failures int       `json:"failures"`
	At       time.Time `json:"at"`
}
