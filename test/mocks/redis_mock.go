package mocks

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockRedisClient implements the key, list and counter commands used by the
// redisstore adapters, with per-command error injection.
type MockRedisClient struct {
	mu    sync.RWMutex
	data  map[string]mockRedisValue
	lists map[string][]string

	// Error injection
	SetError    error
	GetError    error
	DelError    error
	ExistsError error
	LPushError  error
	LRangeError error
	IncrError   error
	// ExpireErrors fail that many ExpireNX calls before succeeding.
	ExpireErrors int

	// Call tracking
	SetCalls int
}

var errExpire = errors.New("mock: expire failed")

type mockRedisValue struct {
	value     string
	expiresAt time.Time
}

// NewMockRedisClient creates a new mock Redis client.
func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		data:  make(map[string]mockRedisValue),
		lists: make(map[string][]string),
	}
}

// Set stores a value with optional expiration.
func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewStatusCmd(ctx)
	m.SetCalls++

	if m.SetError != nil {
		cmd.SetErr(m.SetError)
		return cmd
	}

	expiresAt := time.Time{}
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	m.data[key] = mockRedisValue{
		value:     value.(string),
		expiresAt: expiresAt,
	}

	cmd.SetVal("OK")
	return cmd
}

// SetXX stores a value only when the key already exists and has not expired.
func (m *MockRedisClient) SetXX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewBoolCmd(ctx)
	m.SetCalls++

	if m.SetError != nil {
		cmd.SetErr(m.SetError)
		return cmd
	}

	cur, ok := m.data[key]
	if !ok || (!cur.expiresAt.IsZero() && time.Now().After(cur.expiresAt)) {
		cmd.SetVal(false)
		return cmd
	}

	expiresAt := time.Time{}
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}
	m.data[key] = mockRedisValue{value: value.(string), expiresAt: expiresAt}
	cmd.SetVal(true)
	return cmd
}

// Get retrieves a value by key.
func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cmd := redis.NewStringCmd(ctx)

	if m.GetError != nil {
		cmd.SetErr(m.GetError)
		return cmd
	}

	val, ok := m.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}

	// Check expiration
	if !val.expiresAt.IsZero() && time.Now().After(val.expiresAt) {
		cmd.SetErr(redis.Nil)
		return cmd
	}

	cmd.SetVal(val.value)
	return cmd
}

// Del deletes keys.
func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewIntCmd(ctx)

	if m.DelError != nil {
		cmd.SetErr(m.DelError)
		return cmd
	}

	var deleted int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			deleted++
		}
		if _, ok := m.lists[key]; ok {
			delete(m.lists, key)
			deleted++
		}
	}

	cmd.SetVal(deleted)
	return cmd
}

// Exists checks if keys exist.
func (m *MockRedisClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cmd := redis.NewIntCmd(ctx)

	if m.ExistsError != nil {
		cmd.SetErr(m.ExistsError)
		return cmd
	}

	var count int64
	for _, key := range keys {
		val, ok := m.data[key]
		if ok && (val.expiresAt.IsZero() || time.Now().Before(val.expiresAt)) {
			count++
		}
	}

	cmd.SetVal(count)
	return cmd
}

// Ping checks connection.
func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

// Reset clears all data.
func (m *MockRedisClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]mockRedisValue)
	m.lists = make(map[string][]string)
	m.SetError = nil
	m.GetError = nil
	m.DelError = nil
	m.ExistsError = nil
	m.LPushError = nil
	m.LRangeError = nil
	m.IncrError = nil
	m.SetCalls = 0
}

// SetKey directly sets a key (for test setup).
func (m *MockRedisClient) SetKey(key, value string, expiration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt := time.Time{}
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	m.data[key] = mockRedisValue{
		value:     value,
		expiresAt: expiresAt,
	}
}

// HasKey checks if a key exists (for test assertions).
func (m *MockRedisClient) HasKey(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return false
	}
	if !val.expiresAt.IsZero() && time.Now().After(val.expiresAt) {
		return false
	}
	return true
}

// LPush prepends values to a list, last value ending up at the head.
func (m *MockRedisClient) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewIntCmd(ctx)
	if m.LPushError != nil {
		cmd.SetErr(m.LPushError)
		return cmd
	}
	for _, v := range values {
		m.lists[key] = append([]string{v.(string)}, m.lists[key]...)
	}
	cmd.SetVal(int64(len(m.lists[key])))
	return cmd
}

// LTrim keeps the inclusive range [start, stop] of a list.
func (m *MockRedisClient) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewStatusCmd(ctx)
	m.lists[key] = listRange(m.lists[key], start, stop)
	cmd.SetVal("OK")
	return cmd
}

// LRange returns the inclusive range [start, stop] of a list.
func (m *MockRedisClient) LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cmd := redis.NewStringSliceCmd(ctx)
	if m.LRangeError != nil {
		cmd.SetErr(m.LRangeError)
		return cmd
	}
	cmd.SetVal(listRange(m.lists[key], start, stop))
	return cmd
}

func listRange(list []string, start, stop int64) []string {
	n := int64(len(list))
	if stop < 0 {
		stop = n + stop
	}
	if stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop {
		return []string{}
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out
}

// Incr increments an integer key, creating it at 1.
func (m *MockRedisClient) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewIntCmd(ctx)
	if m.IncrError != nil {
		cmd.SetErr(m.IncrError)
		return cmd
	}
	val, ok := m.data[key]
	if ok && !val.expiresAt.IsZero() && time.Now().After(val.expiresAt) {
		ok = false
	}
	var n int64
	if ok {
		n, _ = strconv.ParseInt(val.value, 10, 64)
	} else {
		val = mockRedisValue{}
	}
	n++
	val.value = strconv.FormatInt(n, 10)
	m.data[key] = val
	cmd.SetVal(n)
	return cmd
}

// ExpireNX sets a TTL only on an existing key that has none.
func (m *MockRedisClient) ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewBoolCmd(ctx)
	if m.ExpireErrors > 0 {
		m.ExpireErrors--
		cmd.SetErr(errExpire)
		return cmd
	}
	val, ok := m.data[key]
	if !ok || !val.expiresAt.IsZero() {
		cmd.SetVal(false)
		return cmd
	}
	val.expiresAt = time.Now().Add(expiration)
	m.data[key] = val
	cmd.SetVal(true)
	return cmd
}

// TTL returns the remaining lifetime of a key, or 0 when it has none.
func (m *MockRedisClient) TTL(key string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok || val.expiresAt.IsZero() {
		return 0
	}
	return time.Until(val.expiresAt)
}

// ListLen returns the length of a list (for test assertions).
func (m *MockRedisClient) ListLen(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lists[key])
}
