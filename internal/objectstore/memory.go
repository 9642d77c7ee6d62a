package objectstore

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// Memory is an in-process Store with fault injection on Get.
type Memory struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	gets     int
	failGets []error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// FailNextGets makes the next len(errs) Get calls return errs in order.
func (m *Memory) FailNextGets(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGets = append(m.failGets, errs...)
}

// Gets returns the number of Get calls observed, including injected failures.
func (m *Memory) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Object returns a stored object and its content type.
func (m *Memory) Object(bucket, key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	return data, m.types[bucket+"/"+key], ok
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gets++
	if len(m.failGets) > 0 {
		err := m.failGets[0]
		m.failGets = m.failGets[1:]
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "objectstore: get mem://%s/%s", bucket, key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data := make([]byte, len(body))
	copy(data, body)
	m.objects[bucket+"/"+key] = data
	m.types[bucket+"/"+key] = contentType
	return nil
}
