package provider

import (
	"sort"
	"strings"
)

// Registry 按供应商标识查找客户端（不区分大小写）
type Registry struct {
	clients map[string]Client
}

func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		r.clients[strings.ToLower(c.Name())] = c
	}
	return r
}

func (r *Registry) Get(name string) (Client, bool) {
	c, ok := r.clients[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Names 已注册的供应商，按字母排序
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
