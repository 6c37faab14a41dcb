package auth

import "strings"

// OAuthPhonePrefix marks synthetic phone numbers assigned to accounts created through
// an OAuth provider before the user supplied a real number.
const OAuthPhonePrefix = "oauth_"

// IsOAuthPlaceholderPhone reports whether phone is a synthetic OAuth placeholder.
func IsOAuthPlaceholderPhone(phone string) bool {
	return strings.HasPrefix(phone, OAuthPhonePrefix)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
