package memory

import (
	"fmt"
	"sync"
)

// ReclaimablePool is the only thing reclamation needs from a pool.
type ReclaimablePool interface {
	PutAny(any)
}

// Pool is a typed object pool. reset, when set, runs on every object on its
// way back in.
type Pool[T any] struct {
	p     *sync.Pool
	reset func(*T)
}

func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
		reset: reset,
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// PutAny lets Pool[T] satisfy ReclaimablePool.
func (p *Pool[T]) PutAny(v any) {
	obj, ok := v.(*T)
	if !ok {
		panic(fmt.Sprintf("memory.Pool[%T]: PutAny received %T", (*T)(nil), v))
	}
	p.Put(obj)
}

// Recycler is a deleter that returns the object to the pool immediately.
// Use a Retirer instead when readers may still hold the object.
func (p *Pool[T]) Recycler() func(*T) {
	return p.Put
}
