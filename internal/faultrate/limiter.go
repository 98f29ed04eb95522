package faultrate

// Category identifies a class of fault for dedup purposes: the same
// task repeating the same fault tag is one category.
type Category struct {
	Task string
	Tag  string
}

// Rates is a single sliding window: at most Count events per Window
// ticks, per category.
type Rates struct {
	Window int64
	Count  int
}

// Limiter tracks, per Category, the ticks at which recent events were
// allowed, and reports whether a new event at a given tick is still
// within the configured rate. Unlike catrate.Limiter this is not
// goroutine-safe on its own — every caller already runs inside the
// kernel's single global critical section, so no internal locking is
// needed.
type Limiter struct {
	rates      Rates
	categories map[Category]*ring[int64]
}

func NewLimiter(rates Rates) *Limiter {
	return &Limiter{
		rates:      rates,
		categories: make(map[Category]*ring[int64]),
	}
}

// Allow records an event for category at tick and reports whether it
// falls within the configured rate (true: should be logged/acted on;
// false: suppressed as a duplicate within the window).
func (l *Limiter) Allow(cat Category, tick int64) bool {
	if l.rates.Window <= 0 || l.rates.Count <= 0 {
		return true
	}
	events, ok := l.categories[cat]
	if !ok {
		events = newRing[int64](l.rates.Count)
		l.categories[cat] = events
	}
	boundary := tick - l.rates.Window
	events.DropBefore(func(stamp int64) bool { return stamp > boundary })
	allow := events.Len() < l.rates.Count
	events.Push(tick)
	return allow
}
