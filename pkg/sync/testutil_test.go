package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/hashing"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

// hashOf matches the digest builders' field hashing.
func hashOf(s string) string { return hashing.Sum(s) }

// memStore is an in-memory Storage for engine tests.
type memStore struct {
	mu       gosync.Mutex
	messages map[string]models.Message          // id → message
	members  map[string]map[string]models.Member // space → address → member

	failAll error // when set, every call errors
}

func newMemStore() *memStore {
	return &memStore{
		messages: make(map[string]models.Message),
		members:  make(map[string]map[string]models.Member),
	}
}

func (s *memStore) fail(err error) { s.mu.Lock(); s.failAll = err; s.mu.Unlock() }

func (s *memStore) GetMessages(ctx context.Context, req GetMessagesRequest) (GetMessagesResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return GetMessagesResult{}, s.failAll
	}
	var all []models.Message
	for _, m := range s.messages {
		if m.SpaceID == req.SpaceID && m.ChannelID == req.ChannelID {
			all = append(all, m)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedDate != all[j].CreatedDate {
			return all[i].CreatedDate < all[j].CreatedDate
		}
		return all[i].ID < all[j].ID
	})
	if req.Direction == DirectionBackward {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	limit := req.Limit
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	return GetMessagesResult{Messages: all[:limit]}, nil
}

func (s *memStore) GetMessage(ctx context.Context, spaceID, channelID, messageID string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	m, ok := s.messages[messageID]
	if !ok || m.SpaceID != spaceID || m.ChannelID != channelID {
		return nil, nil
	}
	cp := m.Clone()
	return &cp, nil
}

func (s *memStore) SaveMessage(ctx context.Context, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.messages[m.ID] = m.Clone()
	return nil
}

func (s *memStore) DeleteMessage(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	delete(s.messages, messageID)
	return nil
}

func (s *memStore) GetSpaceMembers(ctx context.Context, spaceID string) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	var out []models.Member
	for _, m := range s.members[spaceID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (s *memStore) SaveSpaceMember(ctx context.Context, spaceID string, m models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	if s.members[spaceID] == nil {
		s.members[spaceID] = make(map[string]models.Member)
	}
	s.members[spaceID][m.Address] = m
	return nil
}

func (s *memStore) RemoveSpaceMember(ctx context.Context, spaceID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	delete(s.members[spaceID], address)
	return nil
}

// post builds a plain post message fixture.
func post(id, space, channel string, created uint64, text string) models.Message {
	return models.Message{
		ID:           id,
		SpaceID:      space,
		ChannelID:    channel,
		CreatedDate:  created,
		ModifiedDate: created,
		Content:      models.Content{Kind: models.KindPost, SenderID: "sender-" + id, Text: text},
	}
}

func seedMessages(s *memStore, msgs ...models.Message) {
	for _, m := range msgs {
		if err := s.SaveMessage(context.Background(), m); err != nil {
			panic(fmt.Sprintf("seed: %v", err))
		}
	}
}
