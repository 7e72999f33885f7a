// Package memory provides in-memory implementations of the repository
// interfaces. They back the test suites and local development runs that
// don't need a real Postgres; concurrency-safe, but nothing survives a
// restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/models"
	"github.com/marek-sv/bookcircle/internal/repository"
)

type CommunityStore struct {
	mu          sync.RWMutex
	communities map[uuid.UUID]models.Community
}

func NewCommunityStore() *CommunityStore {
	return &CommunityStore{communities: make(map[uuid.UUID]models.Community)}
}

func (s *CommunityStore) Create(_ context.Context, ownerID uuid.UUID, name, description string, restrictMessaging bool) (*models.Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	com := models.Community{
		ID:                uuid.New(),
		Name:              name,
		Description:       description,
		OwnerID:           ownerID,
		RestrictMessaging: restrictMessaging,
		CreatedAt:         time.Now(),
	}
	s.communities[com.ID] = com
	return &com, nil
}

func (s *CommunityStore) GetByID(_ context.Context, communityID uuid.UUID) (*models.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	com, ok := s.communities[communityID]
	if !ok {
		return nil, nil
	}
	return &com, nil
}

func (s *CommunityStore) List(_ context.Context) ([]models.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	communities := make([]models.Community, 0, len(s.communities))
	for _, com := range s.communities {
		communities = append(communities, com)
	}
	sort.Slice(communities, func(i, j int) bool {
		return communities[i].CreatedAt.After(communities[j].CreatedAt)
	})
	return communities, nil
}

func (s *CommunityStore) SetRestrictMessaging(_ context.Context, communityID uuid.UUID, restrict bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if com, ok := s.communities[communityID]; ok {
		com.RestrictMessaging = restrict
		s.communities[communityID] = com
	}
	return nil
}

type memberKey struct {
	communityID uuid.UUID
	userID      uuid.UUID
}

type MembershipStore struct {
	mu      sync.RWMutex
	members map[memberKey]models.Membership
}

func NewMembershipStore() *MembershipStore {
	return &MembershipStore{members: make(map[memberKey]models.Membership)}
}

func (s *MembershipStore) AddMember(_ context.Context, communityID uuid.UUID, userID uuid.UUID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{communityID, userID}
	// Idempotent like the SQL ON CONFLICT DO NOTHING: a repeat join
	// keeps the existing row (and role).
	if _, ok := s.members[key]; ok {
		return nil
	}
	s.members[key] = models.Membership{
		CommunityID:  communityID,
		UserID:       userID,
		Role:         role,
		LastActiveAt: time.Now(),
	}
	return nil
}

func (s *MembershipStore) RemoveMember(_ context.Context, communityID uuid.UUID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, memberKey{communityID, userID})
	return nil
}

func (s *MembershipStore) ListMembers(_ context.Context, communityID uuid.UUID) ([]models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]models.Membership, 0)
	for key, m := range s.members {
		if key.communityID == communityID {
			members = append(members, m)
		}
	}
	return members, nil
}

func (s *MembershipStore) GetMember(_ context.Context, communityID uuid.UUID, userID uuid.UUID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberKey{communityID, userID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MembershipStore) TouchLastActive(_ context.Context, communityID uuid.UUID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{communityID, userID}
	if m, ok := s.members[key]; ok {
		m.LastActiveAt = time.Now()
		s.members[key] = m
	}
	return nil
}

type MessageStore struct {
	mu       sync.RWMutex
	messages []models.Message
	nextID   int64
}

func NewMessageStore() *MessageStore {
	return &MessageStore{nextID: 1}
}

func (s *MessageStore) Create(_ context.Context, communityID uuid.UUID, senderID uuid.UUID, body, kind string, replyToID *int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.Message{
		ID:          s.nextID,
		CommunityID: communityID,
		SenderID:    senderID,
		Body:        body,
		Kind:        kind,
		ReplyToID:   replyToID,
		CreatedAt:   time.Now(),
	}
	s.nextID++
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *MessageStore) ListByCommunity(_ context.Context, communityID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first, same contract as the Postgres store.
	messages := make([]models.Message, 0)
	for i := len(s.messages) - 1; i >= 0 && len(messages) < limit; i-- {
		msg := s.messages[i]
		if msg.CommunityID != communityID {
			continue
		}
		if before > 0 && msg.ID >= before {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

var (
	_ repository.CommunityRepository  = (*CommunityStore)(nil)
	_ repository.MembershipRepository = (*MembershipStore)(nil)
	_ repository.MessageRepository    = (*MessageStore)(nil)
)
