package clock

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Clock supplies the current UTC time. Injected everywhere so tests can pin
// the wall clock.
type Clock interface {
	Now() time.Time
}

// Random supplies uniform random numbers. The production implementation is
// cryptographically secure; winner draws depend on it.
type Random interface {
	// Intn returns a uniform integer in [0, n). n must be > 0.
	Intn(n int) int
	// Uint64 returns a uniform 64-bit value.
	Uint64() uint64
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func System() Clock { return systemClock{} }

// Fixed is a settable clock for tests.
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{t: t.UTC()} }

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = t.UTC()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

type cryptoRandom struct{}

func (cryptoRandom) Intn(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("clock: Intn called with n=%d", n))
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("clock: crypto rand failed: %v", err))
	}
	return int(v.Int64())
}

func (cryptoRandom) Uint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("clock: crypto rand failed: %v", err))
	}
	return binary.BigEndian.Uint64(buf[:])
}

func CryptoRandom() Random { return cryptoRandom{} }

// SeededRandom is a deterministic Random for tests. Not secure.
type SeededRandom struct {
	mu    sync.Mutex
	state uint64
}

func NewSeededRandom(seed uint64) *SeededRandom {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &SeededRandom{state: seed}
}

func (r *SeededRandom) next() uint64 {
	// xorshift64
	r.state ^= r.state << 13
	r.state ^= r.state >> 7
	r.state ^= r.state << 17
	return r.state
}

func (r *SeededRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.next() % uint64(n))
}

func (r *SeededRandom) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next()
}
