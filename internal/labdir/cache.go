package labdir

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/lab-booking/internal/config"
	"github.com/iliyamo/lab-booking/internal/model"
)

// CachedDirectory keeps lab records in Redis as JSON.  Redis failures fall
// through to the wrapped directory.
type CachedDirectory struct {
	next   Directory
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCachedDirectory wraps next with a Redis cache.  When caching is
// disabled or rdb is nil, next is returned unchanged.
func NewCachedDirectory(next Directory, cfg config.CacheConfig, rdb *redis.Client) Directory {
	if !cfg.Enabled || rdb == nil {
		return next
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "labs"
	}
	return &CachedDirectory{next: next, rdb: rdb, ttl: ttl, prefix: prefix}
}

func (d *CachedDirectory) key(id string) string {
	return d.prefix + ":lab:" + id
}

func (d *CachedDirectory) Lab(ctx context.Context, id string) (model.Lab, error) {
	raw, err := d.rdb.Get(ctx, d.key(id)).Bytes()
	switch {
	case err == nil:
		var lab model.Lab
		if jerr := json.Unmarshal(raw, &lab); jerr == nil {
			return lab, nil
		}
		// unreadable entry, refetch and overwrite
	case !errors.Is(err, redis.Nil):
		log.Printf("labdir: cache get %s: %v", id, err)
	}

	lab, err := d.next.Lab(ctx, id)
	if err != nil {
		return model.Lab{}, err
	}
	if bs, jerr := json.Marshal(lab); jerr == nil {
		if serr := d.rdb.Set(ctx, d.key(id), bs, d.ttl).Err(); serr != nil {
			log.Printf("labdir: cache set %s: %v", id, serr)
		}
	}
	return lab, nil
}
