package models

import "github.com/google/uuid"

// ensureID assigns a fresh identifier when the caller left it empty.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every model owned by this service, in dependency order.
func All() []any {
	return []any{
		&User{},
		&Agent{},
		&FixerProfile{},
		&AgentFixer{},
		&Order{},
		&Review{},
		&AgentCommission{},
		&Badge{},
		&BadgeAssignment{},
		&BadgeRequest{},
		&Notification{},
	}
}
