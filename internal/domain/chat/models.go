package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	"moneymind/internal/shared/apperr"
)

const (
	// HistoryLimit bounds how many stored messages are replayed or returned.
	HistoryLimit = 150

	// MaxPromptBytes is the largest prompt accepted from a client.
	MaxPromptBytes = 16 * 1024

	// DeleteBatchSize is how many messages are removed per write batch.
	DeleteBatchSize = 500

	defaultTitlePrefix = "New Chat -"
	titleWords         = 7
	maxTitleLen        = 200
)

var ErrSessionNotFound = apperr.NotFoundf("chat session not found")

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Message is one turn. Messages written in the same exchange share a
// Timestamp and are ordered by LogIndex.
type Message struct {
	Role      Role      `json:"role"`
	Parts     []string  `json:"parts"`
	Timestamp time.Time `json:"-"`
	LogIndex  int       `json:"-"`
}

// Text joins the message parts.
func (m Message) Text() string {
	return strings.Join(m.Parts, "\n")
}

// DefaultTitle names a fresh session after its creation time.
func DefaultTitle(now time.Time) string {
	return defaultTitlePrefix + " " + now.UTC().Format("Jan 02, 15:04")
}

// HasDefaultTitle reports whether a session still carries an automatic title.
func HasDefaultTitle(title string) bool {
	return strings.HasPrefix(title, defaultTitlePrefix) || strings.TrimSpace(title) == ""
}

// TitleFromPrompt builds a title from the first words of a prompt.
func TitleFromPrompt(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) <= titleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWords], " ") + "..."
}

func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return apperr.Validation("prompt cannot be empty")
	}
	if len(prompt) > MaxPromptBytes {
		return apperr.Validation("prompt must be at most %d bytes", MaxPromptBytes)
	}
	return nil
}

func ValidateTitle(title string) error {
	if title == "" {
		return apperr.Validation("title cannot be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return apperr.Validation("title must be at most %d characters", maxTitleLen)
	}
	return nil
}
