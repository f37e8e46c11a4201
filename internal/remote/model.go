package remote

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/lib/pq"
)

// Draft is the authoritative remote copy of one user's draft for one form
// type. There is no history: a put fully replaces the row.
type Draft struct {
	ID       uint64 `gorm:"primaryKey"`
	UserID   uint64 `gorm:"not null;uniqueIndex:uq_drafts_user_form"`
	FormType string `gorm:"not null;uniqueIndex:uq_drafts_user_form"`

	Data json.RawMessage `gorm:"type:jsonb;not null;default:'{}'::jsonb"`

	// Sections lists the snapshot's top-level field names so list views can
	// show what a draft already covers without parsing the payload.
	Sections pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	LastModified time.Time `gorm:"index;not null;default:now()"`
	CreatedAt    time.Time `gorm:"not null;default:now()"`
}

// ExtractSections returns the sorted top-level keys of a snapshot object.
// Non-object payloads yield none.
func ExtractSections(data json.RawMessage) []string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil || len(m) == 0 {
		return nil
	}

	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
