package scene

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	// Formats accepted for image layers.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/behind/internal/logx"
)

// Resource is an image that becomes available asynchronously. It resolves
// exactly once, either with an image or with an error.
type Resource struct {
	done chan struct{}
	once sync.Once

	mu    sync.Mutex
	img   image.Image
	err   error
	subs  []func()
	fired bool
}

// NewResource returns an unresolved resource.
func NewResource() *Resource {
	return &Resource{done: make(chan struct{})}
}

// Loaded returns a resource already resolved with img.
func Loaded(img image.Image) *Resource {
	r := NewResource()
	r.Resolve(img, nil)
	return r
}

// Resolve settles the resource. Calls after the first are ignored.
func (r *Resource) Resolve(img image.Image, err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.img, r.err = img, err
		if err == nil && img == nil {
			r.err = fmt.Errorf("scene: resolved with nil image")
		}
		subs := r.subs
		r.subs = nil
		r.fired = true
		r.mu.Unlock()

		for _, fn := range subs {
			fn()
		}
		close(r.done)
	})
}

// Done is closed once the resource resolves.
func (r *Resource) Done() <-chan struct{} { return r.done }

// Ready reports whether the resource resolved successfully.
func (r *Resource) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired && r.err == nil
}

// Image returns the decoded image, or nil while pending or after a failure.
func (r *Resource) Image() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil
	}
	return r.img
}

// Err returns the resolution error, if any.
func (r *Resource) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Wait blocks until the resource resolves or ctx is done.
func (r *Resource) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// subscribe registers fn to run when r resolves. It reports false, without
// calling fn, if r has already resolved.
func (r *Resource) subscribe(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fired {
		return false
	}
	r.subs = append(r.subs, fn)
	return true
}

// Store tracks the image resources of image layers by layer ID. It is safe
// for concurrent use; decode goroutines resolve resources while the scene is
// being edited.
type Store struct {
	mu      sync.Mutex
	items   map[ID]*Resource
	onReady func(ID, error)
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{items: make(map[ID]*Resource)}
}

// SetOnReady registers fn to be called whenever a resource of a layer still
// in the store resolves. fn runs on the resolving goroutine.
func (s *Store) SetOnReady(fn func(ID, error)) {
	s.mu.Lock()
	s.onReady = fn
	s.mu.Unlock()
}

// Attach associates res with id, replacing any previous resource. The
// ready callback fires when a pending res resolves; a res that is already
// resolved never fires it, so Attach never calls back into its caller.
func (s *Store) Attach(id ID, res *Resource) {
	s.mu.Lock()
	s.items[id] = res
	s.mu.Unlock()
	res.subscribe(func() { s.notify(id, res) })
}

// Decode attaches a pending resource for id and decodes data into it on a
// new goroutine.
func (s *Store) Decode(id ID, data []byte) *Resource {
	res := NewResource()
	s.Attach(id, res)
	go func() {
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("scene: decode image layer %s: %w", id, err)
			logx.Get().Warn("scene: image decode failed", "layer", id, "err", err)
		} else {
			logx.Get().Debug("scene: image decoded", "layer", id, "format", format,
				"size", img.Bounds().Size())
		}
		res.Resolve(img, err)
	}()
	return res
}

// Get returns the resource attached to id.
func (s *Store) Get(id ID) (*Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	return r, ok
}

// Release forgets the resource of id. A decode still in flight completes but
// no longer notifies.
func (s *Store) Release(id ID) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// Len returns the number of attached resources.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) notify(id ID, res *Resource) {
	s.mu.Lock()
	current := s.items[id] == res
	fn := s.onReady
	s.mu.Unlock()
	if current && fn != nil {
		fn(id, res.Err())
	}
}
