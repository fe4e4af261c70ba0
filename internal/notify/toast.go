package notify

import (
	"sync/atomic"
	"time"

	"github.com/johndauphine/propfolio/internal/observable"
)

// Toast levels
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// MaxToasts is the number of toasts kept visible; older ones drop off.
const MaxToasts = 5

// Toast is one transient user-facing message.
type Toast struct {
	ID        int64
	Level     string
	Title     string
	Message   string
	CreatedAt time.Time
}

// Toasts is the toast center. Each UI owns one and injects it where needed.
type Toasts struct {
	store  *observable.Store[[]Toast]
	nextID atomic.Int64
}

// NewToasts returns an empty toast center.
func NewToasts() *Toasts {
	return &Toasts{store: observable.New[[]Toast](nil)}
}

// Push adds a toast and returns its id.
func (t *Toasts) Push(level, title, message string) int64 {
	id := t.nextID.Add(1)
	toast := Toast{ID: id, Level: level, Title: title, Message: message, CreatedAt: time.Now()}
	t.store.Update(func(list []Toast) []Toast {
		next := make([]Toast, 0, MaxToasts)
		if len(list) >= MaxToasts {
			list = list[len(list)-MaxToasts+1:]
		}
		next = append(next, list...)
		return append(next, toast)
	})
	return id
}

// Dismiss removes the toast with id.
func (t *Toasts) Dismiss(id int64) {
	t.store.Update(func(list []Toast) []Toast {
		next := make([]Toast, 0, len(list))
		for _, toast := range list {
			if toast.ID != id {
				next = append(next, toast)
			}
		}
		return next
	})
}

// List returns the visible toasts, oldest first.
func (t *Toasts) List() []Toast {
	return t.store.Snapshot()
}

// Subscribe registers fn for changes to the visible toasts.
func (t *Toasts) Subscribe(fn func([]Toast)) func() {
	return t.store.Subscribe(fn)
}
