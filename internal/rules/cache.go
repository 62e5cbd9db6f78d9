package rules

import (
	"regexp"
	"sync"
)

// compiled patterns are reused across evaluations; a pattern that failed to
// compile is cached as failed so it is not retried on every request.
type regexpCache struct {
	mu      sync.RWMutex
	entries map[string]*regexp.Regexp
	failed  map[string]error
}

var regexCache = &regexpCache{
	entries: make(map[string]*regexp.Regexp),
	failed:  make(map[string]error),
}

func (c *regexpCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.entries[pattern]
	if ok {
		c.mu.RUnlock()
		return re, nil
	}
	if err, ok := c.failed[pattern]; ok {
		c.mu.RUnlock()
		return nil, err
	}
	c.mu.RUnlock()

	re, err := regexp.Compile(pattern)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed[pattern] = err
		return nil, err
	}
	c.entries[pattern] = re
	return re, nil
}
