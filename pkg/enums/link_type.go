package enums

import "fmt"

// LinkType records how an order link came to exist.
type LinkType string

const (
	LinkTypeAutomatic          LinkType = "automatic"
	LinkTypeManualSystem       LinkType = "manual_system"
	LinkTypeManualUserOverride LinkType = "manual_user_override"
)

var validLinkTypes = []LinkType{
	LinkTypeAutomatic,
	LinkTypeManualSystem,
	LinkTypeManualUserOverride,
}

// String implements fmt.Stringer.
func (l LinkType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LinkType.
func (l LinkType) IsValid() bool {
	for _, candidate := range validLinkTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

// IsManual reports whether the link was created by an operator action.
func (l LinkType) IsManual() bool {
	return l == LinkTypeManualSystem || l == LinkTypeManualUserOverride
}

// ParseLinkType converts raw input into a LinkType.
func ParseLinkType(value string) (LinkType, error) {
	for _, candidate := range validLinkTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid link type %q", value)
}
