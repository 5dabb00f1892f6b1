package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/finplay/settlement/internal/models"
)

var htmlPolicy = bluemonday.StrictPolicy()

// SanitizeString removes potentially dangerous characters
func SanitizeString(input string) string {
	// Trim whitespace
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Limit length
	if len(input) > 1000 {
		input = input[:1000]
	}

	return input
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// SanitizeReason cleans free-text reasons before they reach the audit
// trail or the Telegram admin chat.
func SanitizeReason(input string) string {
	return SanitizeHTML(SanitizeString(input))
}

// SanitizeMetadata cleans every value of client-supplied order metadata.
// Keys are dropped when either side sanitizes to empty.
func SanitizeMetadata(metadata models.JSONMap) models.JSONMap {
	if metadata == nil {
		return nil
	}
	clean := models.JSONMap{}
	for k, v := range metadata {
		k = SanitizeHTML(SanitizeString(k))
		v = SanitizeHTML(SanitizeString(v))
		if k == "" || v == "" {
			continue
		}
		clean[k] = v
	}
	return clean
}
