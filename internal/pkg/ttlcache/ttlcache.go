// Package ttlcache はプロセス内のTTL付きキャッシュを提供する
// エントリは常に丸ごと差し替えられるため、読み書きの競合は発生しない
package ttlcache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache はTTL付きのキー・バリューキャッシュ
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// New は新しいキャッシュを作成する
func New[V any](defaultTTL time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// NewWithClock は時刻関数を差し替えたキャッシュを作成する（テスト用）
func NewWithClock[V any](defaultTTL time.Duration, now func() time.Time) *Cache[V] {
	c := New[V](defaultTTL)
	c.now = now
	return c
}

// Get はキャッシュからエントリを取得する
// 期限切れのエントリはミス扱いになる
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set はデフォルトTTLでエントリを保存する
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL は指定したTTLでエントリを保存する
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete はエントリを削除する
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear は全エントリを削除する（設定変更時の明示的な無効化用）
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len は有効期限に関係なく現在のエントリ数を返す
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// sweep は期限切れエントリをまとめて削除する
func (c *Cache[V]) sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper は期限切れエントリを定期的に掃除するゴルーチンを起動する
// コンテキストのキャンセルで停止する
func (c *Cache[V]) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}
