// Package cache memoizes computed results keyed by the canonical form of
// the request that produced them.
package cache

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"shareofsearch/internal/model"
)

// Key identifies a report request. Two keys that differ only in the order
// or case of keywords, the order of location codes, or surrounding
// whitespace produce the same String.
type Key struct {
	Keywords      []string
	LocationCodes []int
	Language      string
	From          time.Time
	To            time.Time
	Granularity   model.Granularity
}

func (k Key) String() string {
	keywords := make([]string, 0, len(k.Keywords))
	seen := make(map[string]struct{}, len(k.Keywords))
	for _, keyword := range k.Keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)

	codes := append([]int(nil), k.LocationCodes...)
	sort.Ints(codes)
	codeStrings := make([]string, 0, len(codes))
	for i, code := range codes {
		if i > 0 && codes[i-1] == code {
			continue
		}
		codeStrings = append(codeStrings, strconv.Itoa(code))
	}

	return strings.Join([]string{
		strings.Join(keywords, ","),
		strings.Join(codeStrings, ","),
		strings.ToLower(strings.TrimSpace(k.Language)),
		formatDate(k.From),
		formatDate(k.To),
		string(k.Granularity),
	}, "|")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// Memo is a size-bounded TTL cache of computed values. It is safe for
// concurrent use; concurrent misses on the same key may compute twice.
type Memo[V any] struct {
	entries *expirable.LRU[string, V]
}

// NewMemo creates a memo holding at most size entries for ttl each.
// A size of zero or less means unbounded.
func NewMemo[V any](size int, ttl time.Duration) *Memo[V] {
	return &Memo[V]{entries: expirable.NewLRU[string, V](size, nil, ttl)}
}

func (m *Memo[V]) Get(key Key) (V, bool) {
	return m.entries.Get(key.String())
}

func (m *Memo[V]) Set(key Key, value V) {
	m.entries.Add(key.String(), value)
}

// GetOrCompute returns the cached value for key, or calls compute and
// stores its result. Errors are returned and never cached.
func (m *Memo[V]) GetOrCompute(key Key, compute func() (V, error)) (V, error) {
	id := key.String()
	if value, ok := m.entries.Get(id); ok {
		return value, nil
	}
	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	m.entries.Add(id, value)
	return value, nil
}

func (m *Memo[V]) Len() int {
	return m.entries.Len()
}

func (m *Memo[V]) Purge() {
	m.entries.Purge()
}
