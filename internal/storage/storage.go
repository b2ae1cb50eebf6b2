package storage

import "errors"

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrMailboxNotFound    = errors.New("mailbox not found")
	ErrAppNameNotSet      = errors.New("app name not set")
)
