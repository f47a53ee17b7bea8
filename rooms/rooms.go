package rooms

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mvent/mvent/telemetry"
	"github.com/mvent/mvent/watch"
)

// Connect makes room discoverable by List even before anything is sent to
// it. It is a no-op if the room already exists.
func (r *RoomSockets) Connect(room string) error {
	key := r.roomKey(room)
	_, ok, err := r.p.Get(key)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return r.p.Set(key, nil, 0)
}

// Send publishes payload to room and returns its sequence number within
// the room.
func (r *RoomSockets) Send(room string, payload any) (uint64, error) {
	seq, err := r.p.SetWithVersion(r.roomKey(room), payload, 0)
	if err == nil {
		telemetry.RoomsMessagesTotal.With(room).Inc()
	}
	return seq, err
}

// Subscribe registers fn to be called for every message sent to room after
// this call returns. The returned cancel function stops delivery to fn and
// forgets it was ever registered with the room's Disconnect bookkeeping.
func (r *RoomSockets) Subscribe(room string, fn func(Message)) (cancel func()) {
	key := r.roomKey(room)

	raw := r.w.Subscribe(func(c watch.Change) {
		if c.Key != key || c.Type != watch.ChangeSet {
			return
		}
		payload, ok, err := r.p.Get(key)
		if err != nil || !ok || payload == nil {
			return
		}
		fn(Message{Room: room, Seq: c.Version, Payload: payload})
	})

	id := r.nextID.Add(1)
	r.mu.Lock()
	if r.subs[room] == nil {
		r.subs[room] = make(map[uint64]func())
	}
	r.subs[room][id] = raw
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs[room], id)
		r.mu.Unlock()
		raw()
	}
}

// Disconnect cancels every subscriber currently attached to room. It does
// not remove the room's content; other processes may still be using it.
func (r *RoomSockets) Disconnect(room string) {
	r.mu.Lock()
	cancels := r.subs[room]
	delete(r.subs, room)
	r.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}

// List returns the connected room names (minus the shared prefix) whose
// name matches the glob pattern. An empty pattern matches every room.
func (r *RoomSockets) List(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}

	snap := r.p.Snapshot()
	rooms := make([]string, 0, len(snap))
	for k := range snap {
		if !strings.HasPrefix(k, r.prefix) {
			continue
		}
		room := strings.TrimPrefix(k, r.prefix)
		if g.Match(room) {
			rooms = append(rooms, room)
		}
	}
	sort.Strings(rooms)
	telemetry.RoomsActiveCount.Set(float64(len(rooms)))
	return rooms, nil
}
