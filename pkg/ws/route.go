package ws

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Handler 路由处理器，所有回调均可为空
type Handler struct {
	// HandleHeaders 握手前校验请求头，返回 false 时以 401 拒绝
	HandleHeaders func(ctx context.Context, header http.Header) bool
	// OnOpen 中间件放行后调用
	OnOpen func(ctx context.Context, c *Conn) error
	// OnMessage 每条消息在中间件放行后调用
	OnMessage func(ctx context.Context, c *Conn, msg Message) error
	// OnClose 连接关闭时调用
	OnClose func(ctx context.Context, c *Conn, code int, reason string) error

	// Middlewares 处理器自带的中间件，排在路由中间件之前
	Middlewares []*Middleware
}

// Route 已注册的路由，注册后只读
type Route struct {
	Pattern string
	Handler *Handler

	middlewares []*Middleware
	segments    []segment
	chain       []*Middleware // Freeze 后的完整链路（全局 + 路由）
}

// Middlewares 返回路由级中间件（不含全局中间件）
func (r *Route) Middlewares() []*Middleware {
	return append([]*Middleware(nil), r.middlewares...)
}

type segment struct {
	value string
	param bool
}

// Group 共享前缀与中间件的一组路由
type Group struct {
	routes []groupRoute
}

type groupRoute struct {
	path        string
	handler     *Handler
	middlewares []*Middleware
}

// NewGroup 创建路由组
func NewGroup() *Group {
	return &Group{}
}

// Route 向组内添加路由
func (g *Group) Route(path string, h *Handler, mws ...*Middleware) *Group {
	g.routes = append(g.routes, groupRoute{path: path, handler: h, middlewares: mws})
	return g
}

// Registry 路由表
//
// 匹配按注册顺序线性进行，第一个段数相同且每段都匹配的模式胜出。
type Registry struct {
	mu     sync.RWMutex
	routes []*Route
	index  map[string]int // pattern -> routes 下标
	strict bool
	frozen bool
}

// NewRegistry 创建路由表，strict 为 true 时重复模式返回 ErrDuplicatePattern
func NewRegistry(strict bool) *Registry {
	return &Registry{
		index:  make(map[string]int),
		strict: strict,
	}
}

// Register 注册路由，相同模式默认后注册者覆盖，位置保持不变
func (r *Registry) Register(pattern string, h *Handler, mws ...*Middleware) error {
	route, err := newRoute(normalizePath(pattern), h, mws)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(route.Pattern); err != nil {
		return err
	}
	r.putLocked(route)
	return nil
}

// Group 将组内路由挂到 prefix 下，组中间件排在路由中间件之前
func (r *Registry) Group(prefix string, g *Group, mws ...*Middleware) error {
	if g == nil {
		return nil
	}

	routes := make([]*Route, 0, len(g.routes))
	seen := make(map[string]struct{}, len(g.routes))
	for _, gr := range g.routes {
		var handlerMws []*Middleware
		if gr.handler != nil {
			handlerMws = gr.handler.Middlewares
		}
		merged := mergeMiddlewares(mws, handlerMws, gr.middlewares)

		route, err := newRoute(joinPath(prefix, gr.path), gr.handler, nil)
		if err != nil {
			return err
		}
		route.middlewares = merged

		if _, dup := seen[route.Pattern]; dup && r.strict {
			return fmt.Errorf("%w: %q", ErrDuplicatePattern, route.Pattern)
		}
		seen[route.Pattern] = struct{}{}
		routes = append(routes, route)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, route := range routes {
		if err := r.checkLocked(route.Pattern); err != nil {
			return err
		}
	}
	for _, route := range routes {
		r.putLocked(route)
	}
	return nil
}

// List 按注册顺序返回所有路由
func (r *Registry) List() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Route(nil), r.routes...)
}

// Len 路由数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Remove 删除路由
func (r *Registry) Remove(pattern string) error {
	pattern = normalizePath(pattern)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	i, ok := r.index[pattern]
	if !ok {
		return ErrRouteNotFound
	}
	r.routes = append(r.routes[:i], r.routes[i+1:]...)
	r.reindexLocked()
	return nil
}

// Clear 删除所有路由
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	r.routes = nil
	r.index = make(map[string]int)
	return nil
}

// Freeze 预编译每条路由的中间件链，此后路由表只读
func (r *Registry) Freeze(global []*Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return
	}
	for _, route := range r.routes {
		route.chain = mergeMiddlewares(global, route.middlewares)
	}
	r.frozen = true
}

// Frozen 是否已冻结
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Match 解析路径，返回路由与路径参数
func (r *Registry) Match(path string) (*Route, map[string]string, error) {
	parts := splitPath(normalizePath(path))

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, route := range r.routes {
		if params, ok := route.match(parts); ok {
			return route, params, nil
		}
	}
	return nil, nil, ErrRouteNotFound
}

func (r *Registry) checkLocked(pattern string) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, exists := r.index[pattern]; exists && r.strict {
		return fmt.Errorf("%w: %q", ErrDuplicatePattern, pattern)
	}
	return nil
}

func (r *Registry) putLocked(route *Route) {
	if i, exists := r.index[route.Pattern]; exists {
		r.routes[i] = route
		return
	}
	r.index[route.Pattern] = len(r.routes)
	r.routes = append(r.routes, route)
}

func (r *Registry) reindexLocked() {
	r.index = make(map[string]int, len(r.routes))
	for i, route := range r.routes {
		r.index[route.Pattern] = i
	}
}

func newRoute(pattern string, h *Handler, mws []*Middleware) (*Route, error) {
	if h == nil {
		h = &Handler{}
	}

	parts := splitPath(pattern)
	segments := make([]segment, len(parts))
	names := make(map[string]struct{})
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			name := p[1:]
			if name == "" {
				return nil, fmt.Errorf("%w: empty parameter name in %q", ErrInvalidPattern, pattern)
			}
			if _, dup := names[name]; dup {
				return nil, fmt.Errorf("%w: duplicate parameter %q in %q", ErrInvalidPattern, name, pattern)
			}
			names[name] = struct{}{}
			segments[i] = segment{value: name, param: true}
			continue
		}
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPattern, pattern)
		}
		segments[i] = segment{value: p}
	}

	return &Route{
		Pattern:     pattern,
		Handler:     h,
		middlewares: mergeMiddlewares(h.Middlewares, mws),
		segments:    segments,
	}, nil
}

func (r *Route) match(parts []string) (map[string]string, bool) {
	if len(parts) != len(r.segments) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range r.segments {
		if seg.param {
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.value] = parts[i]
			continue
		}
		if seg.value != parts[i] {
			return nil, false
		}
	}
	if params == nil {
		params = map[string]string{}
	}
	return params, true
}

// normalizePath 去掉首尾斜杠
func normalizePath(p string) string {
	return strings.Trim(p, "/")
}

// joinPath 拼接并规范化路径
func joinPath(prefix, path string) string {
	prefix, path = normalizePath(prefix), normalizePath(path)
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	default:
		return prefix + "/" + path
	}
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
