package modstore

import (
	"context"
	"sync"
	"time"
)

// MemModStore keeps all records in process memory. State is lost on restart;
// fine for tests and single-node deployments that accept that.
type MemModStore struct {
	mu     sync.Mutex
	users  map[string]UserRecord
	groups map[string]GroupSettings
}

var _ ModStore = (*MemModStore)(nil)

func NewMemModStore() *MemModStore {
	return &MemModStore{
		users:  make(map[string]UserRecord),
		groups: make(map[string]GroupSettings),
	}
}

func (s *MemModStore) GetUser(ctx context.Context, userID string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return UserRecord{UserID: userID}, nil
	}
	return cloneUser(u), nil
}

func (s *MemModStore) UpdateUser(ctx context.Context, userID string, fn func(*UserRecord)) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = UserRecord{UserID: userID}
	}
	u = cloneUser(u)
	fn(&u)
	u.UserID = userID
	s.users[userID] = u
	return cloneUser(u), nil
}

func (s *MemModStore) GetGroup(ctx context.Context, groupID string) (GroupSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return DefaultGroupSettings(groupID), nil
	}
	return cloneGroup(g), nil
}

func (s *MemModStore) UpdateGroup(ctx context.Context, groupID string, fn func(*GroupSettings)) (GroupSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		g = DefaultGroupSettings(groupID)
	}
	g = cloneGroup(g)
	fn(&g)
	g.GroupID = groupID
	s.groups[groupID] = g
	return cloneGroup(g), nil
}

// clones keep callers from mutating shared map values outside the store lock

func cloneUser(u UserRecord) UserRecord {
	out := u
	if u.Cooldowns != nil {
		m := make(map[string]time.Time, len(u.Cooldowns))
		for k, v := range u.Cooldowns {
			m[k] = v
		}
		out.Cooldowns = m
	}
	return out
}

func cloneGroup(g GroupSettings) GroupSettings {
	out := g
	if g.EnabledModules != nil {
		m := make(map[string]bool, len(g.EnabledModules))
		for k, v := range g.EnabledModules {
			m[k] = v
		}
		out.EnabledModules = m
	}
	return out
}
