package inbox

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
)

// Cursor is the last entry of a page.
type Cursor struct {
	LastUpdated    time.Time `json:"ts"`
	ConversationID uuid.UUID `json:"id"`
}

func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeCursor(s string) (Cursor, error) {
	var c Cursor
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, domain.NewValidationError("cursor", domain.ErrInvalidCursor)
	}
	if err := json.Unmarshal(raw, &c); err != nil || c.LastUpdated.IsZero() {
		return Cursor{}, domain.NewValidationError("cursor", domain.ErrInvalidCursor)
	}
	return c, nil
}
