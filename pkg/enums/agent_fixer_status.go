package enums

import "fmt"

// AgentFixerStatus tracks whether an agent still manages a fixer.
type AgentFixerStatus string

const (
	AgentFixerStatusActive   AgentFixerStatus = "ACTIVE"
	AgentFixerStatusInactive AgentFixerStatus = "INACTIVE"
)

var validAgentFixerStatuses = []AgentFixerStatus{
	AgentFixerStatusActive,
	AgentFixerStatusInactive,
}

// String implements fmt.Stringer.
func (a AgentFixerStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AgentFixerStatus.
func (a AgentFixerStatus) IsValid() bool {
	for _, candidate := range validAgentFixerStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAgentFixerStatus converts raw input into a AgentFixerStatus.
func ParseAgentFixerStatus(value string) (AgentFixerStatus, error) {
	for _, candidate := range validAgentFixerStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid agent fixer status %q", value)
}
