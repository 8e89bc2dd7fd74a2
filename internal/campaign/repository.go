package campaign

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	anonymousUserKey = "anonymous"
	// LastUserKey is the partition mirroring the most recent write of any user.
	LastUserKey = "last_user"

	cacheTimeout = 5 * time.Second
)

// UserKey derives the cache partition for a set of identifiers. The order of
// ids does not matter; an empty set is the anonymous partition.
func UserKey(ids []UserIdentifier) string {
	if len(ids) == 0 {
		return anonymousUserKey
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(int(id.Type))+":"+id.Value)
	}
	slices.Sort(parts)
	parts = slices.Compact(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

type repositoryState struct {
	list           []Campaign
	userIDs        []UserIdentifier
	lastSyncMillis int64
}

func (s *repositoryState) find(id string) int {
	for i := range s.list {
		if s.list[i].ID() == id {
			return i
		}
	}
	return -1
}

// Repository is the source of truth for the campaign list and its consumption state.
type Repository struct {
	cache     Cache
	logger    *slog.Logger
	state     *Lockable[repositoryState]
	persistMu sync.Mutex
}

func NewRepository(cache Cache, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		cache:  cache,
		logger: logger,
		state:  NewLockable(repositoryState{}),
	}
}

// List returns a snapshot of the campaigns in sync order.
func (r *Repository) List() []Campaign {
	var out []Campaign
	r.state.Read(func(s *repositoryState) {
		out = slices.Clone(s.list)
	})
	return out
}

func (r *Repository) Campaign(id string) (Campaign, bool) {
	var (
		out   Campaign
		found bool
	)
	r.state.Read(func(s *repositoryState) {
		if i := s.find(id); i >= 0 {
			out, found = s.list[i], true
		}
	})
	return out, found
}

func (r *Repository) LastSyncMillis() int64 {
	var ts int64
	r.state.Read(func(s *repositoryState) { ts = s.lastSyncMillis })
	return ts
}

func (r *Repository) UserIdentifiers() []UserIdentifier {
	var ids []UserIdentifier
	r.state.Read(func(s *repositoryState) { ids = slices.Clone(s.userIDs) })
	return ids
}

// SetUserIdentifiers switches the active cache partition. It does not reload data.
func (r *Repository) SetUserIdentifiers(ids []UserIdentifier) {
	r.state.WithLock(func(s *repositoryState) { s.userIDs = slices.Clone(ids) })
}

// SyncWith replaces the list with a backend snapshot, keeping consumption
// state per campaign id. When maxImpressions changed, the number of
// impressions already used is carried over instead.
func (r *Repository) SyncWith(list []CampaignData, timestampMillis int64) {
	r.syncFor("", list, timestampMillis)
}

// syncFor applies the snapshot only while the active user still has userKey.
// An empty userKey syncs unconditionally.
func (r *Repository) syncFor(userKey string, list []CampaignData, timestampMillis int64) bool {
	applied := false
	r.state.WithLock(func(s *repositoryState) {
		if userKey != "" && UserKey(s.userIDs) != userKey {
			return
		}
		applied = true
		previous := make(map[string]Campaign, len(s.list))
		for _, c := range s.list {
			previous[c.ID()] = c
		}
		next := make([]Campaign, 0, len(list))
		seen := make(map[string]struct{}, len(list))
		for _, data := range list {
			if data.CampaignID == "" {
				continue
			}
			if _, dup := seen[data.CampaignID]; dup {
				continue
			}
			seen[data.CampaignID] = struct{}{}
			if prev, ok := previous[data.CampaignID]; ok {
				next = append(next, reconcile(prev, data))
			} else {
				next = append(next, NewCampaign(data))
			}
		}
		s.list = next
		s.lastSyncMillis = timestampMillis
	})
	if applied {
		r.persist()
	}
	return applied
}

func reconcile(prev Campaign, data CampaignData) Campaign {
	c := Campaign{Data: data, ImpressionsLeft: prev.ImpressionsLeft, IsOptedOut: prev.IsOptedOut}
	if prev.Data.MaxImpressions != data.MaxImpressions {
		used := prev.Data.MaxImpressions - prev.ImpressionsLeft
		c.ImpressionsLeft = max(0, data.MaxImpressions-used)
	}
	return c
}

// OptOutCampaign marks the campaign as opted out. It reports false for unknown ids.
func (r *Repository) OptOutCampaign(id string) (Campaign, bool) {
	return r.mutate(id, func(c *Campaign) { c.IsOptedOut = true })
}

func (r *Repository) DecrementImpressionsLeftInCampaign(id string) (Campaign, bool) {
	return r.mutate(id, func(c *Campaign) {
		if c.ImpressionsLeft > 0 {
			c.ImpressionsLeft--
		}
	})
}

// IncrementImpressionsLeftInCampaign restores an impression reserved for an abandoned display.
func (r *Repository) IncrementImpressionsLeftInCampaign(id string) (Campaign, bool) {
	return r.mutate(id, func(c *Campaign) { c.ImpressionsLeft++ })
}

func (r *Repository) mutate(id string, fn func(c *Campaign)) (Campaign, bool) {
	var (
		out   Campaign
		found bool
	)
	r.state.WithLock(func(s *repositoryState) {
		i := s.find(id)
		if i < 0 {
			return
		}
		fn(&s.list[i])
		out, found = s.list[i], true
	})
	if found {
		r.persist()
	}
	return out, found
}

// LoadCachedData replaces the list with the active user's cached data. With
// syncWithLastUserData, campaigns only known to the last-user partition are
// added; campaigns already present keep their own consumption state.
// Without a cache every partition is empty, so the list is cleared.
func (r *Repository) LoadCachedData(ctx context.Context, syncWithLastUserData bool) {
	key := UserKey(r.UserIdentifiers())
	list := r.read(ctx, key)

	merged := false
	if syncWithLastUserData {
		present := make(map[string]struct{}, len(list))
		for _, c := range list {
			present[c.ID()] = struct{}{}
		}
		for _, c := range r.read(ctx, LastUserKey) {
			if _, ok := present[c.ID()]; ok {
				continue
			}
			present[c.ID()] = struct{}{}
			list = append(list, c)
			merged = true
		}
	}

	r.state.WithLock(func(s *repositoryState) { s.list = list })
	if merged {
		r.persist()
	}
}

func (r *Repository) read(ctx context.Context, key string) []Campaign {
	if r.cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	data, err := r.cache.GetUserData(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "cache read failed, treating as miss",
			"module", "campaign.repository",
			"operation", "get_user_data",
			"error", err,
		)
		return nil
	}
	if data == nil {
		return nil
	}
	return data.CampaignData
}

// persist writes the current list to the user's partition and mirrors it to
// the last-user partition. Failures never reach callers.
func (r *Repository) persist() {
	if r.cache == nil {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	var (
		list []Campaign
		key  string
	)
	r.state.Read(func(s *repositoryState) {
		list = slices.Clone(s.list)
		key = UserKey(s.userIDs)
	})

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	for _, k := range []string{key, LastUserKey} {
		if err := r.cache.CacheCampaignData(ctx, k, list); err != nil {
			r.logger.WarnContext(ctx, "cache write failed",
				"module", "campaign.repository",
				"operation", "cache_campaign_data",
				"partition", k,
				"error", err,
			)
		}
	}
}
