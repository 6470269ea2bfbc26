package core

// Queue represents a playback queue. Insertion order is playback order.
type Queue struct {
	Tracks       []Track `json:"tracks"`
	CurrentIndex int     `json:"current_index"`
}

// Current returns the current track, or nil if the queue is empty.
func (q *Queue) Current() *Track {
	if q == nil || len(q.Tracks) == 0 || q.CurrentIndex < 0 || q.CurrentIndex >= len(q.Tracks) {
		return nil
	}
	return &q.Tracks[q.CurrentIndex]
}

// Upcoming returns tracks after the current position.
func (q *Queue) Upcoming() []Track {
	if q == nil || len(q.Tracks) == 0 || q.CurrentIndex < 0 || q.CurrentIndex >= len(q.Tracks)-1 {
		return nil
	}
	return q.Tracks[q.CurrentIndex+1:]
}

// Append adds tracks to the end of the queue.
func (q *Queue) Append(tracks ...Track) {
	q.Tracks = append(q.Tracks, tracks...)
}

// Next advances to the following track and returns it, or nil at the end.
func (q *Queue) Next() *Track {
	if q == nil || q.CurrentIndex >= len(q.Tracks)-1 {
		return nil
	}
	q.CurrentIndex++
	return q.Current()
}

// Prev steps back to the previous track and returns it, or nil at the start.
func (q *Queue) Prev() *Track {
	if q == nil || q.CurrentIndex <= 0 || len(q.Tracks) == 0 {
		return nil
	}
	q.CurrentIndex--
	return q.Current()
}

// Len returns the total number of tracks in the queue.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Tracks)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}
