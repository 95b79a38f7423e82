package resilience

import (
	"sort"
	"sync"

	"github.com/yeisme/photovault/pkg/configs"
)

// Registry 按后端名称懒创建并缓存熔断器，保证同名后端共享同一个状态.
type Registry struct {
	mu       sync.Mutex
	cfg      configs.ResilienceConfig
	breakers map[string]*Breaker
}

// NewRegistry 创建注册表.
func NewRegistry(cfg configs.ResilienceConfig) *Registry {
	return &Registry{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Breaker 返回 name 对应的熔断器.
func (r *Registry) Breaker(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	b := NewBreaker(name, r.cfg.ForBackend(name))
	r.breakers[name] = b

	return b
}

// Retrier 返回 name 对应的重试器.
func (r *Registry) Retrier(name string) Retrier {
	return NewRetrier(name, r.cfg.Retry)
}

// BreakerState 熔断器名称与状态.
type BreakerState struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// States 返回全部熔断器的当前状态，按名称排序.
func (r *Registry) States() []BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]BreakerState, 0, len(r.breakers))
	for name, b := range r.breakers {
		out = append(out, BreakerState{Name: name, State: b.State()})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}
