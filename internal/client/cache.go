package client

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultStaleTime はキャッシュエントリが新鮮とみなされる期間。
	DefaultStaleTime = 5 * time.Minute
	// DefaultGCTime は参照されなくなったエントリを破棄するまでの期間。
	DefaultGCTime = 10 * time.Minute
)

// Key はキャッシュキー。先頭から順に粒度が細かくなるよう構成する。
// 例: {"restaurants"} ⊇ {"restaurants", "detail", "3"}
type Key []string

// HasPrefix はkがprefixで始まるかを返す。
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	return strings.Join(k, "\x1f")
}

// State は1つのキャッシュキーの状態。DataとErrorが同時に設定されることはない。
type State struct {
	Data    any
	Error   string
	Loading bool
}

type cacheEntry struct {
	key       Key
	data      any
	err       string
	loading   bool
	stale     bool
	gen       uint64 // Invalidateのたびに進む
	inflight  int
	updatedAt time.Time
	lastUsed  time.Time
}

// CacheConfig はQueryCacheの設定。
type CacheConfig struct {
	StaleTime time.Duration
	GCTime    time.Duration
}

// QueryCache はキー単位で取得結果を保持し、同一キーの同時取得を1回にまとめる。
// 破棄は時間ベースのみで、件数による上限は持たない。
type QueryCache struct {
	config CacheConfig

	mu      sync.Mutex
	entries map[string]*cacheEntry
	group   singleflight.Group
	genSeq  uint64

	now func() time.Time
}

// NewQueryCache はQueryCacheを生成する。ゼロ値の項目はデフォルト値を使う。
func NewQueryCache(config CacheConfig) *QueryCache {
	if config.StaleTime <= 0 {
		config.StaleTime = DefaultStaleTime
	}
	if config.GCTime <= 0 {
		config.GCTime = DefaultGCTime
	}
	return &QueryCache{
		config:  config,
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
}

// Fetch はkeyの値を返す。新鮮なエントリがあればfetchを呼ばない。
// 同じkeyの取得が進行中であれば、その結果を共有する。ただしInvalidate以降の呼び出しは
// 進行中の取得に合流せず、新しく取得し直す。
//
// fetchは呼び出し元のキャンセルから切り離して実行する。ctxがキャンセルされた場合は
// 待機をやめてctx.Err()を返すが、合流している他の呼び出しには影響しない。
func (c *QueryCache) Fetch(ctx context.Context, key Key, fetch func(ctx context.Context) (any, error)) (any, error) {
	id := key.String()

	c.mu.Lock()
	c.collectLocked()
	now := c.now()
	e, ok := c.entries[id]
	if !ok {
		e = &cacheEntry{key: append(Key(nil), key...), gen: c.nextGenLocked()}
		c.entries[id] = e
	}
	e.lastUsed = now
	if c.freshLocked(e, now) {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	e.loading = true
	gen := e.gen
	c.mu.Unlock()

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		started := c.begin(id)
		data, err := fetch(shared)
		c.store(id, started, gen, data, err)
		return data, err
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// nextGenLocked はキャッシュ全体で一意な世代番号を返す。
// Clear後に作り直したエントリも以前の取得結果と区別できる。
func (c *QueryCache) nextGenLocked() uint64 {
	c.genSeq++
	return c.genSeq
}

func (c *QueryCache) begin(id string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil
	}
	e.inflight++
	e.loading = true
	return e
}

// store は取得結果を書き込む。失敗時は古いデータを残さない。
// 取得開始後にInvalidateまたはClearされていた場合、結果はキャッシュしない。
func (c *QueryCache) store(id string, started *cacheEntry, gen uint64, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if started != nil {
		started.inflight--
		started.loading = started.inflight > 0
	}
	e, ok := c.entries[id]
	if !ok || e.gen != gen {
		return
	}
	e.stale = false
	e.updatedAt = c.now()
	if err != nil {
		e.data = nil
		e.err = err.Error()
		return
	}
	e.data = data
	e.err = ""
}

func (c *QueryCache) freshLocked(e *cacheEntry, now time.Time) bool {
	if e.updatedAt.IsZero() || e.stale || e.err != "" {
		return false
	}
	return now.Sub(e.updatedAt) < c.config.StaleTime
}

// State はkeyの現在の状態を返す。
func (c *QueryCache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return State{}
	}
	return State{Data: e.data, Error: e.err, Loading: e.loading}
}

// Invalidate はprefixで始まるすべてのエントリを古いものとして扱い、次回のFetchで再取得させる。
// 無効化したエントリ数を返す。
func (c *QueryCache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
			e.gen = c.nextGenLocked()
			n++
		}
	}
	return n
}

// Clear はすべてのエントリを破棄する。サインアウト時に使用する。
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Collect はGCTimeを超えて参照されていないエントリを破棄し、破棄した件数を返す。
func (c *QueryCache) Collect() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collectLocked()
}

func (c *QueryCache) collectLocked() int {
	now := c.now()
	n := 0
	for id, e := range c.entries {
		if e.loading {
			continue
		}
		if now.Sub(e.lastUsed) > c.config.GCTime {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// Len は保持しているエントリ数を返す。
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
