package circuitbreaker

import "sync"

// Group 按路由键管理熔断器，惰性创建，路由之间互不加锁
type Group struct {
	cfg      Config
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

func NewGroup(cfg Config) *Group {
	return &Group{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

func (g *Group) Get(route string) *Breaker {
	g.mu.RLock()
	b, ok := g.breakers[route]
	g.mu.RUnlock()
	if ok {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok = g.breakers[route]; ok {
		return b
	}
	b = NewBreaker(g.cfg)
	g.breakers[route] = b
	return b
}

// Snapshots 所有已知路由的状态快照，供监控读取
func (g *Group) Snapshots() map[string]Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	snapshots := make(map[string]Snapshot, len(g.breakers))
	for route, b := range g.breakers {
		snapshots[route] = b.Snapshot()
	}
	return snapshots
}
