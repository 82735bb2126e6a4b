// Package api is the public notification surface for kill confirmations.
package api

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/killindicator/extension/pkg/core"
)

// EnemyDead is delivered whenever a kill is confirmed. On the authority Player
// and Item come from attribution. On a client they describe the local player
// and are nil when no fresh prediction matched the death. A death whose
// confirmation was already shown is not delivered again.
type EnemyDead struct {
	Entity core.EntityID
	Player *core.Agent
	Item   *core.Item
	Delay  int64
}

// KillIndicator is delivered whenever a kill confirmation is shown on this
// node, whether predicted, reconciled late or drawn by the engine itself.
type KillIndicator struct {
	Entity core.EntityID
	Item   *core.Item
	Delay  int64
}

type entry[T any] struct {
	id uint64
	fn func(T)
}

// Listeners fans events out to subscribers in registration order. A panicking
// subscriber is logged and does not stop delivery to the rest.
type Listeners struct {
	mu            sync.RWMutex
	next          uint64
	enemyDead     []entry[EnemyDead]
	killIndicator []entry[KillIndicator]
	logger        *slog.Logger
}

// NewListeners creates an empty registry.
func NewListeners(logger *slog.Logger) *Listeners {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listeners{logger: logger}
}

// OnEnemyDead subscribes fn. The returned func unsubscribes it.
func (l *Listeners) OnEnemyDead(fn func(EnemyDead)) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	l.enemyDead = append(l.enemyDead, entry[EnemyDead]{id: id, fn: fn})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.enemyDead = without(l.enemyDead, id)
	}
}

// OnKillIndicator subscribes fn. The returned func unsubscribes it.
func (l *Listeners) OnKillIndicator(fn func(KillIndicator)) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	l.killIndicator = append(l.killIndicator, entry[KillIndicator]{id: id, fn: fn})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.killIndicator = without(l.killIndicator, id)
	}
}

// EmitEnemyDead notifies every EnemyDead subscriber.
func (l *Listeners) EmitEnemyDead(ev EnemyDead) {
	l.mu.RLock()
	subs := append([]entry[EnemyDead](nil), l.enemyDead...)
	l.mu.RUnlock()
	for _, s := range subs {
		deliver(l.logger, "enemy_dead", s.fn, ev)
	}
}

// EmitKillIndicator notifies every KillIndicator subscriber.
func (l *Listeners) EmitKillIndicator(ev KillIndicator) {
	l.mu.RLock()
	subs := append([]entry[KillIndicator](nil), l.killIndicator...)
	l.mu.RUnlock()
	for _, s := range subs {
		deliver(l.logger, "kill_indicator", s.fn, ev)
	}
}

// Len returns the number of subscribers across both events.
func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.enemyDead) + len(l.killIndicator)
}

func deliver[T any](logger *slog.Logger, event string, fn func(T), ev T) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("listener panicked", "event", event, "error", fmt.Sprint(r))
		}
	}()
	fn(ev)
}

func without[T any](s []entry[T], id uint64) []entry[T] {
	out := s[:0:0]
	for _, e := range s {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}
