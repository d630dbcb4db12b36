package domain

import "time"

// ChatMessage is one transcript entry. Parsed carries the oracle output for
// user messages so a later confirm can replay the suggested command.
type ChatMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Parsed    *ParsedIntent `json:"parsed,omitempty"`
}

// ChatSession is the append-only transcript of one conversation about an
// itinerary. The most recently created session per itinerary is the active
// one and gets reused for new messages.
type ChatSession struct {
	ID            string        `json:"id"`
	ItineraryID   string        `json:"itinerary_id"`
	UserID        string        `json:"user_id,omitempty"`
	Messages      []ChatMessage `json:"messages"`
	LastMessageAt time.Time     `json:"last_message_at"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Append adds a message to the transcript and advances the activity marker.
func (s *ChatSession) Append(msg ChatMessage) {
	s.Messages = append(s.Messages, msg)
	s.LastMessageAt = msg.Timestamp
}
