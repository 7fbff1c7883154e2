package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FollowUpEntry records that a template was sent to a contact
type FollowUpEntry struct {
	TemplateID string    `json:"templateId"`
	SentAt     time.Time `json:"sentAt"`
}

// FollowUpHistory is the append-only, insertion-ordered send ledger stored as jsonb on a contact
type FollowUpHistory []FollowUpEntry

// Has reports whether the history already holds an entry for templateID
func (h FollowUpHistory) Has(templateID string) bool {
	for _, e := range h {
		if e.TemplateID == templateID {
			return true
		}
	}
	return false
}

// Value implements the driver.Valuer interface for FollowUpHistory
func (h FollowUpHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

// Scan implements the sql.Scanner interface for FollowUpHistory
func (h *FollowUpHistory) Scan(value any) error {
	if value == nil {
		*h = FollowUpHistory{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into FollowUpHistory", value)
	}

	return json.Unmarshal(bytes, h)
}
