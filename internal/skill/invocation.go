package skill

import (
	"github.com/google/uuid"

	"github.com/edgard/skillbot/internal/command"
	"github.com/edgard/skillbot/internal/reply"
)

// Principal is the user invoking a skill.
type Principal struct {
	ID    int64
	Name  string
	Admin bool
}

// Origin is where the command was sent.
type Origin struct {
	ChatID int64
	Group  bool
}

// Invocation is one inbound command. It lives until the reply is sent.
type Invocation struct {
	ID        string
	Principal Principal
	Origin    Origin
	Text      string
	Command   command.Command
}

// NewInvocation parses text and assigns a fresh id, which is also the ledger
// reference for the charge and any refund.
func NewInvocation(p Principal, o Origin, text string) Invocation {
	return Invocation{
		ID:        uuid.NewString(),
		Principal: p,
		Origin:    o,
		Text:      text,
		Command:   command.Parse(text),
	}
}

// Recipient returns who the replies are for.
func (inv Invocation) Recipient() reply.Recipient {
	return reply.Recipient{
		ChatID: inv.Origin.ChatID,
		Group:  inv.Origin.Group,
		UserID: inv.Principal.ID,
		Name:   inv.Principal.Name,
	}
}
