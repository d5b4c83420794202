package core

import (
	"context"
	"strings"

	"carepath/pkg"
)

// DefaultMessageCap is the number of user messages a session may send.
const DefaultMessageCap = 50

// ChatService runs the briefing chat of a session.  The conversation is kept
// on the session so that it can be saved with the consultation record.
type ChatService struct {
	persona *Persona
	cap     int
}

// NewChatService constructs a ChatService.  A non-positive cap falls back to
// DefaultMessageCap.
func NewChatService(persona *Persona, messageCap int) *ChatService {
	if messageCap <= 0 {
		messageCap = DefaultMessageCap
	}
	return &ChatService{persona: persona, cap: messageCap}
}

// Reply appends the message and the assistant's answer to the session chat.
// Once the session reached the cap the CapMessage is returned, nothing is
// appended and the model is not called.  The caller persists the session.
func (s *ChatService) Reply(ctx context.Context, u *pkg.UserData, sess *pkg.Session, message string) (*pkg.ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, validationError("message is required")
	}
	if sess.SelectedRecordID != nil {
		return nil, ErrRecordReadOnly
	}
	if sess.UserMessageCount() >= s.cap {
		return &pkg.ChatResponse{Reply: CapMessage, Capped: true, History: sess.Chat}, nil
	}

	history := append([]pkg.ChatMessage(nil), sess.Chat...)
	reply := s.persona.Chat(ctx, u, history, message, sess.MedicalMode)

	sess.Chat = append(sess.Chat,
		pkg.ChatMessage{Role: pkg.RoleUser, Content: message},
		pkg.ChatMessage{Role: pkg.RoleAssistant, Content: reply},
	)
	return &pkg.ChatResponse{
		Reply:   reply,
		Capped:  sess.UserMessageCount() >= s.cap,
		History: sess.Chat,
	}, nil
}
