package enums

import "fmt"

// VetStatus is the vetting decision for an agent/fixer relationship.
type VetStatus string

const (
	VetStatusPending  VetStatus = "PENDING"
	VetStatusApproved VetStatus = "APPROVED"
	VetStatusRejected VetStatus = "REJECTED"
)

var validVetStatuses = []VetStatus{
	VetStatusPending,
	VetStatusApproved,
	VetStatusRejected,
}

// String implements fmt.Stringer.
func (v VetStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VetStatus.
func (v VetStatus) IsValid() bool {
	for _, candidate := range validVetStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVetStatus converts raw input into a VetStatus.
func ParseVetStatus(value string) (VetStatus, error) {
	for _, candidate := range validVetStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vet status %q", value)
}

// IsDecided reports whether the vetting outcome is final.
func (v VetStatus) IsDecided() bool {
	return v == VetStatusApproved || v == VetStatusRejected
}
