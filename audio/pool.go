package audio

import "sync"

type poolKey struct {
	numChannels int
	length      int
}

// Pool recycles buses of the same layout.
type Pool struct {
	key  poolKey
	pool sync.Pool
}

var pools = struct {
	sync.Mutex
	m map[poolKey]*Pool
}{
	m: map[poolKey]*Pool{},
}

// GetPool returns pool for provided layout. Pools are cached internally,
// so multiple calls with the same layout return the same pool instance.
func GetPool(numChannels, length int) *Pool {
	pools.Lock()
	defer pools.Unlock()
	k := poolKey{numChannels: numChannels, length: length}
	if p, ok := pools.m[k]; ok {
		return p
	}
	p := &Pool{key: k}
	p.pool.New = func() any {
		return NewBus(k.numChannels, k.length)
	}
	pools.m[k] = p
	return p
}

// WipePools cleans up internal cache of pools.
func WipePools() {
	pools.Lock()
	defer pools.Unlock()
	pools.m = map[poolKey]*Pool{}
}

// Get returns a silent bus from the pool.
func (p *Pool) Get() *Bus {
	b := p.pool.Get().(*Bus)
	b.Zero()
	return b
}

// Put returns bus to the pool. Buses of another layout are ignored.
func (p *Pool) Put(b *Bus) {
	if b == nil || b.NumChannels() != p.key.numChannels || b.Len() != p.key.length {
		return
	}
	p.pool.Put(b)
}

// NumChannels of pooled buses.
func (p *Pool) NumChannels() int {
	return p.key.numChannels
}

// Len of pooled buses.
func (p *Pool) Len() int {
	return p.key.length
}
