package messagelog

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
)

// Cursor is the position of the last message of a page. A nil MessageID
// selects everything strictly older than Timestamp.
type Cursor struct {
	Timestamp time.Time `json:"ts"`
	MessageID uuid.UUID `json:"id"`
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
	if err := json.Unmarshal(raw, &c); err != nil || c.Timestamp.IsZero() {
		return Cursor{}, domain.NewValidationError("cursor", domain.ErrInvalidCursor)
	}
	return c, nil
}
