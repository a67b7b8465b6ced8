package settings

import "sync"

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache used by migration rule engines.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *providerConfig) {
		cfg.programCache = cache
	}
}

// NewProgramCache returns an unbounded, concurrency-safe ProgramCache.
func NewProgramCache() ProgramCache {
	return &mapProgramCache{}
}

type mapProgramCache struct {
	programs sync.Map
}

func (c *mapProgramCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

func (c *mapProgramCache) Set(key string, value any) {
	c.programs.Store(key, value)
}
