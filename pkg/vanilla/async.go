package vanilla

import "context"

// Async is the callback form of Storage. Each call runs on its own
// goroutine and invokes its callback exactly once; a nil callback is
// allowed. Calls are not ordered relative to each other: issue a dependent
// call from inside the previous callback.
type Async struct {
	s   *Storage
	ctx context.Context
}

// Async returns the callback view of s bound to ctx.
func (s *Storage) Async(ctx context.Context) Async {
	return Async{s: s, ctx: ctx}
}

// OpenAsync runs Open on a goroutine and reports through ready.
func OpenAsync(ctx context.Context, opts Options, ready func(*Storage, error)) {
	go func() {
		s, err := Open(ctx, opts)
		if ready != nil {
			ready(s, err)
		}
	}()
}

func (a Async) Get(key string, cb func(any, error)) {
	go func() {
		v, err := a.s.Get(a.ctx, key)
		if cb != nil {
			cb(v, err)
		}
	}()
}

func (a Async) GetAll(cb func([]Entry, error)) {
	go func() {
		entries, err := a.s.GetAll(a.ctx)
		if cb != nil {
			cb(entries, err)
		}
	}()
}

func (a Async) Save(key string, value any, cb func(any, error)) {
	go func() {
		v, err := a.s.Save(a.ctx, key, value)
		if cb != nil {
			cb(v, err)
		}
	}()
}

func (a Async) Drop(key string, cb func(error)) {
	go func() {
		err := a.s.Drop(a.ctx, key)
		if cb != nil {
			cb(err)
		}
	}()
}

func (a Async) Nuke(cb func(error)) {
	go func() {
		err := a.s.Nuke(a.ctx)
		if cb != nil {
			cb(err)
		}
	}()
}
