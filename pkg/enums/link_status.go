package enums

import "fmt"

// LinkStatus tracks the lifecycle of an order link.
type LinkStatus string

const (
	LinkStatusPendingVerification     LinkStatus = "pending_verification"
	LinkStatusActive                  LinkStatus = "active"
	LinkStatusArchived                LinkStatus = "archived"
	LinkStatusBrokenProviderDeleted   LinkStatus = "broken_provider_deleted"
	LinkStatusBrokenStorefrontDeleted LinkStatus = "broken_storefront_deleted"
)

var validLinkStatuses = []LinkStatus{
	LinkStatusPendingVerification,
	LinkStatusActive,
	LinkStatusArchived,
	LinkStatusBrokenProviderDeleted,
	LinkStatusBrokenStorefrontDeleted,
}

// String implements fmt.Stringer.
func (l LinkStatus) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LinkStatus.
func (l LinkStatus) IsValid() bool {
	for _, candidate := range validLinkStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// IsLive reports whether the link still claims its provider order. A provider
// order can have at most one live link at a time.
func (l LinkStatus) IsLive() bool {
	return l == LinkStatusActive || l == LinkStatusPendingVerification
}

// IsTerminal reports whether the row can no longer transition.
func (l LinkStatus) IsTerminal() bool {
	switch l {
	case LinkStatusArchived, LinkStatusBrokenProviderDeleted, LinkStatusBrokenStorefrontDeleted:
		return true
	default:
		return false
	}
}

// ParseLinkStatus converts raw input into a LinkStatus.
func ParseLinkStatus(value string) (LinkStatus, error) {
	for _, candidate := range validLinkStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid link status %q", value)
}
