// Package store persists messages, space members and tombstones in a
// Pebble database. Values are JSON; keys are namespaced strings so every
// read is a bounded prefix scan.
//
// Key layout:
//
//	space:<space>:channel:<channel>:msg:<created%020d>-<messageId>  message record
//	msgid:<messageId>                                               primary-key index
//	space:<space>:member:<address>                                  member record
//	tombstone:<space>:<channel>:<messageId>                        tombstone record
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/logger"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
	syncpkg "github.com/QuilibriumNetwork/quorum-shared/pkg/sync"
)

// Store is a pebble-backed implementation of the sync storage interfaces.
type Store struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err == nil {
		logger.Info("pebble_closed", "path", s.path)
	}
	return err
}

// Ready reports whether the store is opened.
func (s *Store) Ready() bool { return s.db != nil }

func (s *Store) ready() error {
	if s.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return nil
}

func messageKey(spaceID, channelID string, created uint64, messageID string) []byte {
	return []byte(fmt.Sprintf("space:%s:channel:%s:msg:%020d-%s", spaceID, channelID, created, messageID))
}

func messagePrefix(spaceID, channelID string) []byte {
	return []byte(fmt.Sprintf("space:%s:channel:%s:msg:", spaceID, channelID))
}

func messageIndexKey(messageID string) []byte {
	return []byte("msgid:" + messageID)
}

func memberKey(spaceID, address string) []byte {
	return []byte(fmt.Sprintf("space:%s:member:%s", spaceID, address))
}

func memberPrefix(spaceID string) []byte {
	return []byte(fmt.Sprintf("space:%s:member:", spaceID))
}

func tombstoneKey(t models.Tombstone) []byte {
	return []byte(fmt.Sprintf("tombstone:%s:%s:%s", t.SpaceID, t.ChannelID, t.MessageID))
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// SaveMessage writes a message record and its ID index. Re-saving an
// existing ID replaces the stored record even when the timestamp-sorted
// primary key moved.
func (s *Store) SaveMessage(ctx context.Context, m models.Message) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	key := messageKey(m.SpaceID, m.ChannelID, m.CreatedDate, m.ID)

	// drop a stale primary key when the message moved
	if old, closer, err := s.db.Get(messageIndexKey(m.ID)); err == nil {
		oldKey := append([]byte(nil), old...)
		_ = closer.Close()
		if string(oldKey) != string(key) {
			if err := s.db.Delete(oldKey, pebble.Sync); err != nil {
				return err
			}
		}
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}

	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "space", m.SpaceID, "channel", m.ChannelID, "msg_id", m.ID, "error", err)
		return err
	}
	if err := s.db.Set(messageIndexKey(m.ID), key, pebble.Sync); err != nil {
		logger.Error("save_message_index_failed", "msg_id", m.ID, "error", err)
		return err
	}
	logger.Debug("message_saved", "space", m.SpaceID, "channel", m.ChannelID, "msg_id", m.ID)
	return nil
}

// GetMessage returns the message by ID, or nil when absent or stored under
// a different channel.
func (s *Store) GetMessage(ctx context.Context, spaceID, channelID, messageID string) (*models.Message, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	keyVal, closer, err := s.db.Get(messageIndexKey(messageID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	key := append([]byte(nil), keyVal...)
	_ = closer.Close()

	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	var m models.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, fmt.Errorf("invalid message JSON: %w", err)
	}
	if m.SpaceID != spaceID || m.ChannelID != channelID {
		return nil, nil
	}
	return &m, nil
}

// GetMessages returns one page of a channel's messages ordered by created
// timestamp. Cursor is the last key of the previous page.
func (s *Store) GetMessages(ctx context.Context, req syncpkg.GetMessagesRequest) (syncpkg.GetMessagesResult, error) {
	var res syncpkg.GetMessagesResult
	if err := s.ready(); err != nil {
		return res, err
	}
	prefix := messagePrefix(req.SpaceID, req.ChannelID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return res, err
	}
	defer iter.Close()

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	backward := req.Direction == syncpkg.DirectionBackward

	var valid bool
	switch {
	case req.Cursor != "" && backward:
		valid = iter.SeekLT([]byte(req.Cursor))
	case req.Cursor != "":
		valid = iter.SeekGE([]byte(req.Cursor + "\x00"))
	case backward:
		valid = iter.Last()
	default:
		valid = iter.First()
	}

	var firstKey, lastKey string
	for ; valid && len(res.Messages) < limit; valid = s.advance(iter, backward) {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return res, fmt.Errorf("invalid message JSON at %s: %w", iter.Key(), err)
		}
		if firstKey == "" {
			firstKey = string(iter.Key())
		}
		lastKey = string(iter.Key())
		res.Messages = append(res.Messages, m)
	}
	if err := iter.Error(); err != nil {
		return syncpkg.GetMessagesResult{}, err
	}
	if valid {
		// more rows remain past this page
		res.NextCursor = lastKey
	}
	res.PrevCursor = firstKey
	return res, nil
}

func (s *Store) advance(iter *pebble.Iterator, backward bool) bool {
	if backward {
		return iter.Prev()
	}
	return iter.Next()
}

// DeleteMessage removes a message record and its index. Unknown IDs are a
// no-op.
func (s *Store) DeleteMessage(ctx context.Context, messageID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	keyVal, closer, err := s.db.Get(messageIndexKey(messageID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	key := append([]byte(nil), keyVal...)
	_ = closer.Close()
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return err
	}
	if err := s.db.Delete(messageIndexKey(messageID), pebble.Sync); err != nil {
		return err
	}
	logger.Debug("message_deleted", "msg_id", messageID)
	return nil
}

// GetSpaceMembers returns all members of a space.
func (s *Store) GetSpaceMembers(ctx context.Context, spaceID string) ([]models.Member, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	prefix := memberPrefix(spaceID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Member
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Member
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid member JSON at %s: %w", iter.Key(), err)
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// SaveSpaceMember writes one member record.
func (s *Store) SaveSpaceMember(ctx context.Context, spaceID string, m models.Member) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}
	if err := s.db.Set(memberKey(spaceID, m.Address), data, pebble.Sync); err != nil {
		logger.Error("save_member_failed", "space", spaceID, "address", m.Address, "error", err)
		return err
	}
	return nil
}

// RemoveSpaceMember deletes one member record. Unknown addresses are a
// no-op.
func (s *Store) RemoveSpaceMember(ctx context.Context, spaceID, address string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.Delete(memberKey(spaceID, address), pebble.Sync)
}

// SaveTombstone persists one tombstone record.
func (s *Store) SaveTombstone(ctx context.Context, t models.Tombstone) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal tombstone: %w", err)
	}
	return s.db.Set(tombstoneKey(t), data, pebble.Sync)
}

// ListTombstones returns every persisted tombstone.
func (s *Store) ListTombstones(ctx context.Context) ([]models.Tombstone, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	prefix := []byte("tombstone:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Tombstone
	for iter.First(); iter.Valid(); iter.Next() {
		var t models.Tombstone
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("invalid tombstone JSON at %s: %w", iter.Key(), err)
		}
		out = append(out, t)
	}
	return out, iter.Error()
}

// DeleteTombstone removes one persisted tombstone.
func (s *Store) DeleteTombstone(ctx context.Context, t models.Tombstone) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.Delete(tombstoneKey(t), pebble.Sync)
}
