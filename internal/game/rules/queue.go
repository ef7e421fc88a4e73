package rules

import (
	"encoding/json"
	"sort"

	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
)

// Bucket holds one caster's pending requests in build order.
type Bucket struct {
	Caster   grid.Marker
	Requests []Request
}

// MarshalJSON encodes the bucket as a [caster, requests] pair.
func (b Bucket) MarshalJSON() ([]byte, error) {
	reqs := b.Requests
	if reqs == nil {
		reqs = []Request{}
	}
	return json.Marshal([2]any{b.Caster, reqs})
}

func (b *Bucket) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &b.Caster); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &b.Requests)
}

// InitiativeFunc reports a caster's ordering initiative. ok is false when the
// caster has none, including when it is no longer placed.
type InitiativeFunc func(caster grid.Marker) (initiative int, ok bool)

// Queue is the pending request queue, grouped per caster. Buckets keep the
// position of their first insertion until Order rearranges them.
//
// Queue is not safe for concurrent use; the owning session serializes access.
type Queue struct {
	buckets []Bucket
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{buckets: make([]Bucket, 0, 8)}
}

// Insert appends reqs to caster's bucket, creating it at the back if needed.
func (q *Queue) Insert(caster grid.Marker, reqs ...Request) {
	for i := range q.buckets {
		if q.buckets[i].Caster == caster {
			q.buckets[i].Requests = append(q.buckets[i].Requests, reqs...)
			return
		}
	}
	q.buckets = append(q.buckets, Bucket{Caster: caster, Requests: append([]Request(nil), reqs...)})
}

// Order sorts the buckets by caster initiative, highest first. Casters with
// no initiative go last. Equal initiatives, and the no-initiative group, keep
// their current relative bucket order. The flattened order is returned.
func (q *Queue) Order(initiative InitiativeFunc) []Request {
	type keyed struct {
		init int
		has  bool
	}
	keys := make(map[grid.Marker]keyed, len(q.buckets))
	for _, b := range q.buckets {
		v, ok := initiative(b.Caster)
		keys[b.Caster] = keyed{init: v, has: ok}
	}
	sort.SliceStable(q.buckets, func(i, j int) bool {
		a, b := keys[q.buckets[i].Caster], keys[q.buckets[j].Caster]
		if a.has != b.has {
			return a.has
		}
		return a.has && a.init > b.init
	})
	return q.Flatten()
}

// Flatten returns every pending request, bucket by bucket.
func (q *Queue) Flatten() []Request {
	out := make([]Request, 0, q.Len())
	for _, b := range q.buckets {
		for _, r := range b.Requests {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Remove deletes a request by ID, dropping its bucket if it empties.
func (q *Queue) Remove(id string) (Request, bool) {
	for bi := range q.buckets {
		reqs := q.buckets[bi].Requests
		for ri := range reqs {
			if reqs[ri].ID != id {
				continue
			}
			req := reqs[ri]
			q.buckets[bi].Requests = append(reqs[:ri:ri], reqs[ri+1:]...)
			if len(q.buckets[bi].Requests) == 0 {
				q.buckets = append(q.buckets[:bi:bi], q.buckets[bi+1:]...)
			}
			return req, true
		}
	}
	return Request{}, false
}

// Len returns the number of pending requests across all buckets.
func (q *Queue) Len() int {
	n := 0
	for _, b := range q.buckets {
		n += len(b.Requests)
	}
	return n
}

// IsEmpty returns whether nothing is pending.
func (q *Queue) IsEmpty() bool { return q.Len() == 0 }

// Clear drops every bucket.
func (q *Queue) Clear() { q.buckets = q.buckets[:0] }

// Buckets returns a deep copy of the buckets in queue order.
func (q *Queue) Buckets() []Bucket {
	out := make([]Bucket, len(q.buckets))
	for i, b := range q.buckets {
		reqs := make([]Request, len(b.Requests))
		for j, r := range b.Requests {
			reqs[j] = r.Clone()
		}
		out[i] = Bucket{Caster: b.Caster, Requests: reqs}
	}
	return out
}

// Replace swaps the contents for a copy of buckets. Buckets for the same
// caster are merged into the first one.
func (q *Queue) Replace(buckets []Bucket) {
	q.buckets = make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		reqs := make([]Request, len(b.Requests))
		for j, r := range b.Requests {
			reqs[j] = r.Clone()
		}
		q.Insert(b.Caster, reqs...)
	}
}
