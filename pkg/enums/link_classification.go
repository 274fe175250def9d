package enums

import "fmt"

// LinkClassification marks why a provider order is (or is not) expected to have
// a storefront counterpart.
type LinkClassification string

const (
	// LinkClassificationNormal expects a storefront counterpart.
	LinkClassificationNormal LinkClassification = "normal"
	// LinkClassificationCorrective is a reprint/replacement with no counterpart.
	LinkClassificationCorrective LinkClassification = "corrective"
	// LinkClassificationGift is a promotional order with no counterpart.
	LinkClassificationGift LinkClassification = "gift"
)

var validLinkClassifications = []LinkClassification{
	LinkClassificationNormal,
	LinkClassificationCorrective,
	LinkClassificationGift,
}

// String implements fmt.Stringer.
func (l LinkClassification) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LinkClassification.
func (l LinkClassification) IsValid() bool {
	for _, candidate := range validLinkClassifications {
		if candidate == l {
			return true
		}
	}
	return false
}

// RequiresStorefrontOrder reports whether links with this classification must
// reference a storefront order while live.
func (l LinkClassification) RequiresStorefrontOrder() bool {
	return l == LinkClassificationNormal
}

// ParseLinkClassification converts raw input into a LinkClassification.
func ParseLinkClassification(value string) (LinkClassification, error) {
	for _, candidate := range validLinkClassifications {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid link classification %q", value)
}
