package conversation

import "context"

// Store owns Conversation, Ticket and processed-webhook persistence.
type Store interface {
	// RunSession runs fn inside one scoped session. Postgres sessions are a
	// single transaction on one pooled connection; the connection is
	// released when RunSession returns. A non-nil error from fn rolls back
	// every write made through the session.
	RunSession(ctx context.Context, fn func(ctx context.Context, s Session) error) error
	// Get loads a conversation or returns ErrConversationNotFound.
	Get(ctx context.Context, id int64) (*Conversation, error)
	// TicketsForConversation lists tickets owned by a conversation.
	TicketsForConversation(ctx context.Context, conversationID int64) ([]Ticket, error)
}

// Session is the write surface available inside RunSession. Lookups lock
// the returned row until the session ends so writers for the same
// conversation are serialized.
type Session interface {
	TicketSession

	// MarkProcessed records a vendor request id; idempotency.ErrDuplicate when taken.
	MarkProcessed(ctx context.Context, requestID string) error
	// ConversationByExternalID returns nil, nil when no row matches.
	ConversationByExternalID(ctx context.Context, externalID string) (*Conversation, error)
	// ConversationByID returns ErrConversationNotFound when no row matches.
	ConversationByID(ctx context.Context, id int64) (*Conversation, error)
	// InsertConversation assigns c.ID. It returns false without error when
	// c.ExternalID is already taken.
	InsertConversation(ctx context.Context, c *Conversation) (bool, error)
	// UpdateConversation persists the mutable fields and bumps c.Version.
	UpdateConversation(ctx context.Context, c *Conversation) error
}

// TicketSession is the subset used by the ticket issuer.
type TicketSession interface {
	// TicketForConversation returns nil, nil when the conversation has no ticket.
	TicketForConversation(ctx context.Context, conversationID int64) (*Ticket, error)
	InsertTicket(ctx context.Context, t *Ticket) error
	UpdateTicket(ctx context.Context, t *Ticket) error
}
