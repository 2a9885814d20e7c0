package engine

import (
	"context"
	"encoding/json"
)

const rosterCacheName = "roster"

// rosterHas reports whether a user is in a group's roster, via the TTL cache.
// The second return is false when the roster couldn't be determined at all;
// callers then act as if the user were present.
func (e *Engine) rosterHas(ctx context.Context, groupID, userID string) (present bool, known bool) {
	if e.Cache == nil {
		return false, false
	}

	var ids []string
	cached, err := e.Cache.Get(ctx, rosterCacheName, groupID)
	if err == nil && cached != "" {
		if err := json.Unmarshal([]byte(cached), &ids); err != nil {
			ids = nil
		}
	}
	if ids == nil {
		roster, err := e.Transport.GetGroupRoster(ctx, groupID)
		if err != nil {
			e.Logger.Warn("fetching group roster", "group", groupID, "err", err)
			return false, false
		}
		ids = make([]string, 0, len(roster))
		for _, p := range roster {
			ids = append(ids, p.ID)
		}
		if raw, err := json.Marshal(ids); err == nil {
			if err := e.Cache.Set(ctx, rosterCacheName, groupID, string(raw)); err != nil {
				e.Logger.Warn("caching group roster", "group", groupID, "err", err)
			}
		}
	}

	for _, id := range ids {
		if id == userID {
			return true, true
		}
	}
	return false, true
}

// purgeRoster invalidates the cached roster after a membership change we
// caused ourselves.
func (e *Engine) purgeRoster(ctx context.Context, groupID string) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.Purge(ctx, rosterCacheName, groupID); err != nil {
		e.Logger.Warn("purging roster cache", "group", groupID, "err", err)
	}
}
