// Package nowplaying keeps the most recent stream title.
package nowplaying

import (
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

type Track struct {
	Station string    `json:"station"`
	Title   string    `json:"title"`
	Updated time.Time `json:"updated"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mtx   sync.RWMutex
	track Track
	now   func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

func (t *Tracker) SetStation(name string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.track.Station = name
}

// Update records title and reports whether it differs from the previous one.
func (t *Tracker) Update(title string) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	changed := t.track.Updated.IsZero() || t.track.Title != title
	t.track.Title = title
	t.track.Updated = t.now()

	return changed
}

// Current returns the last recorded track. Updated is zero until the first
// title arrives.
func (t *Tracker) Current() Track {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.track
}

func (t *Tracker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	track := t.Current()
	if track.Updated.IsZero() {
		http.Error(w, "nothing playing yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(track); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
