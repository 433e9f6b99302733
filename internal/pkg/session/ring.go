package session

// Screenshot is one cached image owned by a player. Index is monotonic per
// owner: it keeps increasing even after older entries are evicted, so it is
// an identity, not a buffer position.
type Screenshot struct {
	Index       int32
	Player      string
	Description string
	Image       []byte
}

// ScreenshotRing holds the most recent screenshots for one session,
// newest-first, with fixed capacity. Not safe for concurrent use; the owning
// Session serializes access under its lock.
type ScreenshotRing struct {
	entries []Screenshot
	used    int
	next    int32 // index assigned to the next push
}

// NewScreenshotRing creates a ring with the given capacity. A non-positive
// capacity gets the default backlog.
func NewScreenshotRing(capacity int) *ScreenshotRing {
	if capacity <= 0 {
		capacity = DefaultScreenshotBacklog
	}
	return &ScreenshotRing{entries: make([]Screenshot, capacity)}
}

// Push stores a new screenshot at the head, shifting existing entries one
// slot toward higher age and dropping the oldest once full. It returns the
// stored screenshot with its assigned index.
func (r *ScreenshotRing) Push(player, description string, image []byte) Screenshot {
	shot := Screenshot{
		Index:       r.next,
		Player:      player,
		Description: description,
		Image:       image,
	}
	r.next++
	copy(r.entries[1:], r.entries)
	r.entries[0] = shot
	if r.used < len(r.entries) {
		r.used++
	}
	return shot
}

// Latest returns the newest screenshot, if any.
func (r *ScreenshotRing) Latest() (Screenshot, bool) {
	if r.used == 0 {
		return Screenshot{}, false
	}
	return r.entries[0], true
}

// ByIndex scans for the screenshot with the given monotonic index. Absence
// is a valid result: the caller falls back to "no cached image".
func (r *ScreenshotRing) ByIndex(index int32) (Screenshot, bool) {
	for i := 0; i < r.used; i++ {
		if r.entries[i].Index == index {
			return r.entries[i], true
		}
	}
	return Screenshot{}, false
}

// Len returns the number of cached screenshots.
func (r *ScreenshotRing) Len() int {
	return r.used
}

// Clear drops all entries and restarts the index sequence, for slot reuse.
func (r *ScreenshotRing) Clear() {
	for i := range r.entries {
		r.entries[i] = Screenshot{}
	}
	r.used = 0
	r.next = 0
}
