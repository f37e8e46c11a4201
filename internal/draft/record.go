package draft

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Storage layout: payloads live one per key under payloadPrefix, the
// metadata index is a single JSON array under indexKey. The two are always
// mutated together; Manager is their sole owner.
const (
	payloadPrefix = "draft:"
	indexKey      = "draft-index"
)

// Record is a persisted, not-yet-submitted form snapshot. Data is opaque to
// the engine; ClientName and ClientPhone are the only fields ever extracted
// from it, and only by the caller-supplied identity function.
type Record struct {
	FormKey     string          `json:"form_key"`
	Data        json.RawMessage `json:"data"`
	SavedAt     time.Time       `json:"saved_at"`
	Title       string          `json:"title,omitempty"`
	ClientName  string          `json:"client_name,omitempty"`
	ClientPhone string          `json:"client_phone,omitempty"`
	SessionID   string          `json:"session_id"`
}

// MetaEntry is the index row for one Record. The index lets the UI list
// drafts without deserializing any payload.
type MetaEntry struct {
	FormKey     string    `json:"form_key"`
	SavedAt     time.Time `json:"saved_at"`
	Title       string    `json:"title,omitempty"`
	ClientName  string    `json:"client_name,omitempty"`
	ClientPhone string    `json:"client_phone,omitempty"`
	SessionID   string    `json:"session_id"`
}

func payloadKey(formKey string) string { return payloadPrefix + formKey }

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)
var nonDigitRe = regexp.MustCompile(`\D`)

// slug lowercases and collapses every non-alphanumeric run into one hyphen.
func slug(s string) string {
	s = nonSlugRe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

func digitsOnly(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}

// identityGroup is the deduplication grouping key: case- and
// whitespace-normalized name plus the phone's digits.
func identityGroup(name, phone string) string {
	n := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	return n + "|" + digitsOnly(phone)
}

// IdentityKey derives the identity-qualified form key for a base key.
func IdentityKey(baseKey, clientName, clientPhone string) string {
	return baseKey + "-" + slug(clientName) + "-" + digitsOnly(clientPhone)
}

// hasIdentity reports whether the identity fields meet the migration
// threshold: at least 3 runes of name and 8 digits of phone.
func hasIdentity(clientName, clientPhone string) bool {
	name := strings.TrimSpace(clientName)
	return len([]rune(name)) >= 3 && len(digitsOnly(clientPhone)) >= 8
}
