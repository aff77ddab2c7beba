package gesture

import (
	"errors"
	"fmt"
)

// HandlerFunc handles one event.
type HandlerFunc func(Event) error

type listenerKey struct {
	target Target
	typ    Type
}

type listener struct {
	id uint32
	fn HandlerFunc
}

// Listeners is the listener set owned by one widget instance.
// It is not safe for concurrent use; the owner serializes dispatch.
type Listeners struct {
	byKey  map[listenerKey][]listener
	nextID uint32
}

// Handle detaches a registered listener.
type Handle struct {
	id  uint32
	key listenerKey
	set *Listeners
}

// NewListeners returns an empty listener set.
func NewListeners() *Listeners {
	return &Listeners{byKey: make(map[listenerKey][]listener)}
}

// On attaches fn for events of typ delivered to target.
func (l *Listeners) On(target Target, typ Type, fn HandlerFunc) Handle {
	l.nextID++
	key := listenerKey{target: target, typ: typ}
	l.byKey[key] = append(l.byKey[key], listener{id: l.nextID, fn: fn})
	return Handle{id: l.nextID, key: key, set: l}
}

// Remove detaches the listener. Removing twice or a zero Handle is a no-op.
func (h Handle) Remove() {
	if h.set == nil {
		return
	}
	s := h.set.byKey[h.key]
	for i := range s {
		if s[i].id == h.id {
			copy(s[i:], s[i+1:])
			s[len(s)-1] = listener{}
			s = s[:len(s)-1]
			break
		}
	}
	if len(s) == 0 {
		delete(h.set.byKey, h.key)
	} else {
		h.set.byKey[h.key] = s
	}
}

// Attached reports whether the listener is still registered.
func (h Handle) Attached() bool {
	if h.set == nil {
		return false
	}
	for _, l := range h.set.byKey[h.key] {
		if l.id == h.id {
			return true
		}
	}
	return false
}

// Count returns the number of listeners for target and typ.
func (l *Listeners) Count(target Target, typ Type) int {
	return len(l.byKey[listenerKey{target: target, typ: typ}])
}

// Len returns the total number of attached listeners.
func (l *Listeners) Len() int {
	n := 0
	for _, s := range l.byKey {
		n += len(s)
	}
	return n
}

// Clear detaches every listener.
func (l *Listeners) Clear() {
	l.byKey = make(map[listenerKey][]listener)
}

// Dispatch delivers ev to the listeners of target, then bubbles it to the
// document listeners. Listeners attached during dispatch first fire on the
// next event; listeners removed during dispatch do not fire again.
func (l *Listeners) Dispatch(target Target, ev Event) error {
	if !target.Valid() {
		return fmt.Errorf("%w: target %q", ErrUnknownEvent, target)
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	err := l.fire(target, ev)
	if target != Document {
		err = errors.Join(err, l.fire(Document, ev))
	}
	return err
}

func (l *Listeners) fire(target Target, ev Event) error {
	key := listenerKey{target: target, typ: ev.Type}
	s := l.byKey[key]
	if len(s) == 0 {
		return nil
	}
	snapshot := make([]listener, len(s))
	copy(snapshot, s)
	var errs []error
	for _, ls := range snapshot {
		if !(Handle{id: ls.id, key: key, set: l}).Attached() {
			continue
		}
		if err := ls.fn(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
