package scraper

import (
	"sync"
	"time"
)

// recycler owns one long-lived handle that is created lazily and replaced
// once it is older than maxAge. The age check runs on acquire, so an idle
// process is never restarted in the background.
type recycler[T any] struct {
	maxAge  time.Duration
	now     func() time.Time
	create  func() (T, error)
	destroy func(T)

	mu        sync.Mutex
	handle    T
	live      bool
	createdAt time.Time
	restarts  int
}

// acquire returns the current handle, creating or recycling it first when
// needed.
func (r *recycler[T]) acquire() (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live && r.maxAge > 0 && r.now().Sub(r.createdAt) >= r.maxAge {
		r.dropLocked()
		r.restarts++
	}
	if !r.live {
		h, err := r.create()
		if err != nil {
			var zero T
			return zero, err
		}
		r.handle = h
		r.live = true
		r.createdAt = r.now()
	}
	return r.handle, nil
}

// close destroys the handle, if any. A later acquire creates a new one.
func (r *recycler[T]) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked()
}

func (r *recycler[T]) dropLocked() {
	if !r.live {
		return
	}
	old := r.handle
	var zero T
	r.handle = zero
	r.live = false
	r.destroy(old)
}

// stats reports whether a handle is live, its age and the restart count.
func (r *recycler[T]) stats() (live bool, age time.Duration, restarts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live {
		age = r.now().Sub(r.createdAt)
	}
	return r.live, age, r.restarts
}
