package model

import (
	"strings"
	"time"

	"telegram-private-group/internal/domain"
)

// TelegramUser is a registered chat participant. InPrivateGroup is only
// changed by the membership reconciler.
type TelegramUser struct {
	ChatID         int64
	Username       string
	FirstName      string
	LastName       string
	IsAdmin        bool
	InPrivateGroup bool
	JoinedAt       time.Time
}

func NewTelegramUser(chatID int64, username, firstName, lastName string) (*TelegramUser, error) {
	username = NormalizeUsername(username)
	if chatID == 0 || username == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &TelegramUser{
		ChatID:    chatID,
		Username:  username,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		JoinedAt:  time.Now(),
	}, nil
}

// NormalizeUsername strips surrounding spaces and the leading "@" of a handle.
func NormalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

// Handle is the username as it is written in chat messages.
func (u *TelegramUser) Handle() string { return "@" + u.Username }

func (u *TelegramUser) IsZero() bool { return u == nil || u.ChatID == 0 }
