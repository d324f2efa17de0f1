package instruments

import "github.com/uafrontender/newnew-sub010/scope"

// ScopeKey is where a session scope keeps its Cache.
const ScopeKey scope.Key = "instruments.cache"

// Provide registers c in s; the scope closes it on disposal.
func Provide(s *scope.Scope, c *Cache) error { return scope.Provide(s, ScopeKey, c) }

// FromScope returns the session Cache.
func FromScope(s *scope.Scope) (*Cache, error) { return scope.TryGet[Cache](s, ScopeKey) }
