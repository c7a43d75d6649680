// Package inbox owns conversations_by_user and its inbox_pointers lookup.
//
// An inbox row is clustered by (lastUpdated descending, conversation id), so
// moving a conversation to the top means writing a new row and deleting the
// old one. inbox_pointers remembers, per (user, conversation), which
// lastUpdated the live row carries.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

const (
	Table        = "conversations_by_user"
	PointerTable = "inbox_pointers"

	DefaultPageSize = 20
	MaxPageSize     = 500

	lockStripes = 256
)

type pointer struct {
	LastUpdated time.Time `json:"last_updated"`
}

type Options struct {
	Logger           *zap.Logger
	ReadConsistency  partition.Consistency
	WriteConsistency partition.Consistency
}

type Index struct {
	store  partition.Store
	log    *zap.Logger
	readC  partition.Consistency
	writeC partition.Consistency

	// Touches of the same (user, conversation) are serialized in-process.
	// Writers in other processes can still interleave; ListConversations
	// cleans up what that leaves behind.
	locks [lockStripes]sync.Mutex
}

func New(store partition.Store, opts Options) *Index {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Index{
		store:  store,
		log:    log,
		readC:  opts.ReadConsistency,
		writeC: opts.WriteConsistency,
	}
}

type Page struct {
	Entries []domain.InboxEntry
	Next    *Cursor
	HasMore bool
}

func entryKey(lastUpdated time.Time, conversationID uuid.UUID) []byte {
	return partition.NewKey().TimeDesc(lastUpdated).UUID(conversationID).Bytes()
}

func pointerKey(conversationID uuid.UUID) []byte {
	return partition.NewKey().UUID(conversationID).Bytes()
}

func (x *Index) stripe(userID, conversationID uuid.UUID) *sync.Mutex {
	var b [32]byte
	copy(b[:16], userID[:])
	copy(b[16:], conversationID[:])
	return &x.locks[xxhash.Sum64(b[:])%lockStripes]
}

// LastUpdated reads the pointer for (user, conversation).
func (x *Index) LastUpdated(ctx context.Context, userID, conversationID uuid.UUID) (time.Time, bool, error) {
	raw, err := x.store.Get(ctx, PointerTable, userID.String(), pointerKey(conversationID), x.readC)
	if errors.Is(err, partition.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read inbox pointer: %w", err)
	}
	var p pointer
	if err := json.Unmarshal(raw, &p); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to decode inbox pointer: %w", err)
	}
	return p.LastUpdated, true, nil
}

// TouchConversation moves conversationID to lastUpdated in userID's inbox and
// removes the row it replaces. A touch older than the indexed one is a no-op,
// so replays and out-of-order touches never move a conversation back.
//
// The new row is written first, then the pointer, then the old row is
// deleted. A failure before the pointer moves leaves the previous state and a
// retry redoes the touch. Once the pointer has moved, ListConversations hides
// the old row on every page, so a failed delete is left to read repair.
func (x *Index) TouchConversation(
	ctx context.Context,
	userID uuid.UUID,
	conversationID uuid.UUID,
	participantID uuid.UUID,
	lastUpdated time.Time,
) error {

	if userID == uuid.Nil || conversationID == uuid.Nil {
		return domain.NewValidationError("inbox_entry", domain.ErrInvalidInput)
	}
	lastUpdated = lastUpdated.UTC()

	mu := x.stripe(userID, conversationID)
	mu.Lock()
	defer mu.Unlock()

	prev, found, err := x.LastUpdated(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if found && prev.After(lastUpdated) {
		return nil
	}

	row, err := json.Marshal(domain.InboxEntry{
		UserID:         userID,
		ConversationID: conversationID,
		ParticipantID:  participantID,
		LastUpdated:    lastUpdated,
	})
	if err != nil {
		return fmt.Errorf("failed to encode inbox entry: %w", err)
	}
	user := userID.String()

	if err := x.store.Put(ctx, Table, user, entryKey(lastUpdated, conversationID), row, x.writeC); err != nil {
		return fmt.Errorf("failed to write inbox entry: %w", err)
	}

	if found && prev.Equal(lastUpdated) {
		return nil
	}

	ptr, err := json.Marshal(pointer{LastUpdated: lastUpdated})
	if err != nil {
		return fmt.Errorf("failed to encode inbox pointer: %w", err)
	}
	if err := x.store.Put(ctx, PointerTable, user, pointerKey(conversationID), ptr, x.writeC); err != nil {
		return fmt.Errorf("failed to write inbox pointer: %w", err)
	}

	if found {
		if err := x.store.Delete(ctx, Table, user, entryKey(prev, conversationID), x.writeC); err != nil {
			x.log.Warn("stale inbox entry left for read repair",
				zap.String("user_id", user),
				zap.String("conversation_id", conversationID.String()),
				zap.Time("last_updated", prev),
				zap.Error(err),
			)
		}
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// ListConversations returns userID's conversations, most recent first. Rows
// superseded by a newer row of the same conversation are skipped and deleted
// best-effort.
func (x *Index) ListConversations(ctx context.Context, userID uuid.UUID, limit int, cursor *Cursor) (*Page, error) {
	limit = normalizeLimit(limit)
	user := userID.String()

	var lower *partition.Bound
	if cursor != nil {
		lower = &partition.Bound{Key: entryKey(cursor.LastUpdated, cursor.ConversationID)}
	}

	var (
		entries  []domain.InboxEntry
		seen     = make(map[uuid.UUID]struct{})
		pointers = make(map[uuid.UUID]*time.Time)
		stale    []domain.InboxEntry
	)

	for len(entries) <= limit {
		want := limit + 1 - len(entries)
		rows, err := x.store.GetRange(ctx, Table, user, partition.RangeQuery{
			Lower:       lower,
			Limit:       want,
			Order:       partition.Ascending,
			Consistency: x.readC,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}

		for _, r := range rows {
			var e domain.InboxEntry
			if err := json.Unmarshal(r.Value, &e); err != nil {
				return nil, fmt.Errorf("failed to decode inbox entry for %s: %w", user, err)
			}

			if _, dup := seen[e.ConversationID]; dup {
				stale = append(stale, e)
				continue
			}

			ptr, err := x.pointerFor(ctx, userID, e.ConversationID, pointers)
			if err != nil {
				return nil, err
			}
			if ptr != nil && e.LastUpdated.Before(*ptr) {
				stale = append(stale, e)
				continue
			}

			seen[e.ConversationID] = struct{}{}
			entries = append(entries, e)
		}

		if len(rows) < want {
			break
		}
		lower = &partition.Bound{Key: rows[len(rows)-1].Clustering}
	}

	x.repair(ctx, stale)

	page := &Page{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.HasMore = true
		last := page.Entries[limit-1]
		page.Next = &Cursor{LastUpdated: last.LastUpdated, ConversationID: last.ConversationID}
	}
	return page, nil
}

func (x *Index) pointerFor(ctx context.Context, userID, conversationID uuid.UUID, memo map[uuid.UUID]*time.Time) (*time.Time, error) {
	if p, ok := memo[conversationID]; ok {
		return p, nil
	}
	ts, found, err := x.LastUpdated(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	var p *time.Time
	if found {
		p = &ts
	}
	memo[conversationID] = p
	return p, nil
}

func (x *Index) repair(ctx context.Context, stale []domain.InboxEntry) {
	for _, e := range stale {
		err := x.store.Delete(ctx, Table, e.UserID.String(), entryKey(e.LastUpdated, e.ConversationID), x.writeC)
		if err != nil {
			x.log.Warn("inbox read repair failed",
				zap.String("user_id", e.UserID.String()),
				zap.String("conversation_id", e.ConversationID.String()),
				zap.Error(err),
			)
			continue
		}
		observability.InboxStaleRowsRepairedTotal.Inc()
		x.log.Info("inbox stale row removed",
			zap.String("user_id", e.UserID.String()),
			zap.String("conversation_id", e.ConversationID.String()),
			zap.Time("last_updated", e.LastUpdated),
		)
	}
}
