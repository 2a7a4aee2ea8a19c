package blogservice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/almuhsiny/blogapi/internal/common"
)

const (
	viewTTL    = 7 * 24 * time.Hour
	refreshTTL = 30 * time.Second
)

// ViewCache keeps denormalized blog views in Redis: one JSON document per
// blog plus a list holding every view for the listing endpoint. The cache is
// advisory. Every entry can be reconstructed from the store, so a Redis
// failure degrades reads to store queries instead of failing them.
type ViewCache struct {
	store  common.Cache
	m      *BlogModel
	logger *slog.Logger

	// listMu serializes read-modify-write cycles on the listing key so
	// concurrent background refreshes cannot interleave LRANGE/LSET.
	listMu sync.Mutex
	wg     sync.WaitGroup
}

func newViewCache(store common.Cache, m *BlogModel, logger *slog.Logger) *ViewCache {
	return &ViewCache{store: store, m: m, logger: logger}
}

// wait blocks until every in-flight background refresh has finished. Called
// on shutdown so scheduled refreshes are not abandoned mid-write.
func (c *ViewCache) wait() {
	c.wg.Wait()
}

// background runs fn in a tracked goroutine. A panic inside a refresh must
// not take the process down, it is logged and the goroutine exits.
func (c *ViewCache) background(fn func()) {
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		defer func() {
			if err := recover(); err != nil {
				c.logger.Error("background cache refresh panicked", slog.Any("error", err))
			}
		}()

		fn()
	}()
}

// getView returns the cached view for the blog, or common.ErrCacheMiss when
// the key is absent or holds a document that no longer unmarshals.
func (c *ViewCache) getView(ctx context.Context, id primitive.ObjectID) (*BlogView, error) {
	data, err := c.store.Get(ctx, common.CacheKeyBlog(id.Hex()))
	if err != nil {
		return nil, err
	}

	var view BlogView
	if err := json.Unmarshal(data, &view); err != nil {
		// A corrupt entry is treated as a miss and overwritten by the
		// populate that follows.
		c.logger.Warn("cached blog view is corrupt", slog.String("blog_id", id.Hex()), slog.String("error", err.Error()))
		return nil, common.ErrCacheMiss
	}

	return &view, nil
}

// populate rebuilds the view for one blog from the store and writes it to
// the cache, updating the listing entry in the same pass. The view is
// returned even when the cache write fails, readers must never be blocked by
// Redis.
func (c *ViewCache) populate(ctx context.Context, id primitive.ObjectID) (*BlogView, error) {
	tree, err := c.m.fetchBlogTree(ctx, id)
	if err != nil {
		return nil, err
	}

	view := projectView(tree)

	raw, err := json.Marshal(view)
	if err != nil {
		return view, err
	}

	if err := c.store.Set(ctx, common.CacheKeyBlog(id.Hex()), raw, viewTTL); err != nil {
		return view, err
	}

	if err := c.listUpsert(ctx, view.ID, raw); err != nil {
		return view, err
	}

	return view, nil
}

// refresh schedules a post-response rebuild of the blog's view. When the
// blog has been deleted from the store in the meantime, the stale cache
// entries are evicted instead.
func (c *ViewCache) refresh(id primitive.ObjectID) {
	c.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTTL)
		defer cancel()

		if _, err := c.populate(ctx, id); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				c.evict(ctx, id)
				return
			}
			c.logger.Error("blog view refresh failed", slog.String("blog_id", id.Hex()), slog.String("error", err.Error()))
		}
	})
}

// evictAsync schedules removal of the blog's cache entries.
func (c *ViewCache) evictAsync(id primitive.ObjectID) {
	c.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTTL)
		defer cancel()

		c.evict(ctx, id)
	})
}

func (c *ViewCache) evict(ctx context.Context, id primitive.ObjectID) {
	if err := c.store.Delete(ctx, common.CacheKeyBlog(id.Hex())); err != nil {
		c.logger.Error("blog view eviction failed", slog.String("blog_id", id.Hex()), slog.String("error", err.Error()))
	}

	if err := c.listRemove(ctx, id.Hex()); err != nil {
		c.logger.Error("listing eviction failed", slog.String("blog_id", id.Hex()), slog.String("error", err.Error()))
	}
}

// cachedList returns every view in the listing cache. An absent or empty
// listing is a miss, the caller falls back to the store and schedules a
// rebuild.
func (c *ViewCache) cachedList(ctx context.Context) ([]BlogView, error) {
	raws, err := c.store.LRange(ctx, common.CacheKeyAllBlogs(), 0, -1)
	if err != nil {
		return nil, err
	}

	if len(raws) == 0 {
		return nil, common.ErrCacheMiss
	}

	views := make([]BlogView, 0, len(raws))
	for _, raw := range raws {
		var view BlogView
		if err := json.Unmarshal([]byte(raw), &view); err != nil {
			c.logger.Warn("cached listing entry is corrupt", slog.String("error", err.Error()))
			return nil, common.ErrCacheMiss
		}
		views = append(views, view)
	}

	return views, nil
}

// listUpsert replaces the blog's entry in the listing, or appends it when
// the blog is new. An absent listing is left absent: a partial list would
// serve wrong results, so population is deferred to the next full rebuild.
func (c *ViewCache) listUpsert(ctx context.Context, id string, raw []byte) error {
	c.listMu.Lock()
	defer c.listMu.Unlock()

	raws, err := c.store.LRange(ctx, common.CacheKeyAllBlogs(), 0, -1)
	if err != nil {
		return err
	}

	if len(raws) == 0 {
		return nil
	}

	for i, entry := range raws {
		var view BlogView
		if err := json.Unmarshal([]byte(entry), &view); err != nil {
			continue
		}
		if view.ID == id {
			return c.store.LSet(ctx, common.CacheKeyAllBlogs(), int64(i), string(raw))
		}
	}

	if err := c.store.RPush(ctx, common.CacheKeyAllBlogs(), string(raw)); err != nil {
		return err
	}

	return c.store.Expire(ctx, common.CacheKeyAllBlogs(), viewTTL)
}

func (c *ViewCache) listRemove(ctx context.Context, id string) error {
	c.listMu.Lock()
	defer c.listMu.Unlock()

	raws, err := c.store.LRange(ctx, common.CacheKeyAllBlogs(), 0, -1)
	if err != nil {
		return err
	}

	for _, entry := range raws {
		var view BlogView
		if err := json.Unmarshal([]byte(entry), &view); err != nil {
			continue
		}
		if view.ID == id {
			return c.store.LRem(ctx, common.CacheKeyAllBlogs(), 1, entry)
		}
	}

	return nil
}

// rebuildAsync schedules a full listing rebuild from the store.
func (c *ViewCache) rebuildAsync() {
	c.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := c.rebuild(ctx); err != nil {
			c.logger.Error("listing rebuild failed", slog.String("error", err.Error()))
		}
	})
}

// rebuild repopulates the per-blog keys and the listing from the store. The
// listing key is swapped only after every view has been projected, so
// concurrent readers see either the old listing or the new one, never a
// partial one.
func (c *ViewCache) rebuild(ctx context.Context) error {
	ids, err := c.m.allBlogIDs(ctx)
	if err != nil {
		return err
	}

	raws := make([]string, 0, len(ids))
	for _, id := range ids {
		tree, err := c.m.fetchBlogTree(ctx, id)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				// Deleted between the id scan and the fetch.
				continue
			}
			return err
		}

		raw, err := json.Marshal(projectView(tree))
		if err != nil {
			return err
		}

		if err := c.store.Set(ctx, common.CacheKeyBlog(id.Hex()), raw, viewTTL); err != nil {
			return err
		}

		raws = append(raws, string(raw))
	}

	c.listMu.Lock()
	defer c.listMu.Unlock()

	if err := c.store.Delete(ctx, common.CacheKeyAllBlogs()); err != nil {
		return err
	}

	if len(raws) == 0 {
		return nil
	}

	if err := c.store.RPush(ctx, common.CacheKeyAllBlogs(), raws...); err != nil {
		return err
	}

	return c.store.Expire(ctx, common.CacheKeyAllBlogs(), viewTTL)
}
