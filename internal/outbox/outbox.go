// Package outbox queues everything the core asks the host to do. The host
// drains it once per frame; nothing here blocks the caller.
package outbox

import (
	"github.com/killindicator/extension/internal/queue"
	"github.com/killindicator/extension/pkg/core"
)

// Kind names an outward action.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindHitMarker    Kind = "hitmarker"
	KindFriendly     Kind = "friendly"
	KindSend         Kind = "send"
)

// Action is one outward call, serialised as JSON for the host.
type Action struct {
	Kind   Kind          `json:"kind"`
	Entity core.EntityID `json:"entity"` // 0 is a valid entity
	// Handle is the host's own handle for Entity, resolved on this node.
	Handle   uint64     `json:"handle,omitempty"`
	Position *core.Vec3 `json:"position,omitempty"`
	Item     *core.Item `json:"item,omitempty"`
	Delay    int64      `json:"delay,omitempty"`

	Limb     uint8 `json:"limb,omitempty"`
	Weakspot bool  `json:"weakspot,omitempty"`
	WillDie  bool  `json:"willDie,omitempty"`
	Armor    bool  `json:"armor,omitempty"`

	Recipient core.NodeID `json:"recipient,omitempty"`
	Payload   []byte      `json:"payload,omitempty"` // base64 in JSON
}

// Handles resolves stable ids to host handles.
type Handles interface {
	Handle(id core.EntityID) (uint64, bool)
}

// Outbox implements the display and transport sides of the core.
type Outbox struct {
	q       *queue.Queue[Action]
	handles Handles
}

// New creates an outbox holding at most limit pending actions.
func New(handles Handles, limit int) *Outbox {
	return &Outbox{q: queue.NewBounded[Action](limit), handles: handles}
}

func (o *Outbox) ShowConfirmation(entity core.EntityID, pos core.Vec3, item *core.Item, delay int64) {
	o.q.Push(Action{
		Kind:     KindConfirmation,
		Entity:   entity,
		Handle:   o.handle(entity),
		Position: &pos,
		Item:     item,
		Delay:    delay,
	})
}

func (o *Outbox) ShowHitMarker(entity core.EntityID, m core.HitIndicator, pos core.Vec3) {
	o.q.Push(Action{
		Kind:     KindHitMarker,
		Entity:   entity,
		Handle:   o.handle(entity),
		Position: &pos,
		Limb:     m.Limb,
		Weakspot: m.HitWeakspot,
		WillDie:  m.WillDie,
		Armor:    m.HitArmor,
	})
}

func (o *Outbox) PopFriendlyTarget() {
	o.q.Push(Action{Kind: KindFriendly})
}

// SendBytes queues payload for delivery to one node. Delivery is the host's
// job and is fire-and-forget.
func (o *Outbox) SendBytes(recipient core.NodeID, payload []byte) error {
	o.q.Push(Action{Kind: KindSend, Recipient: recipient, Payload: payload})
	return nil
}

// Drain removes up to max pending actions, oldest first. max <= 0 drains all.
func (o *Outbox) Drain(max int) []Action {
	if max <= 0 {
		return o.q.GetAndEmpty()
	}
	return o.q.PopN(max)
}

func (o *Outbox) Len() int {
	return o.q.Len()
}

// Dropped returns how many actions overflowed the bound.
func (o *Outbox) Dropped() uint64 {
	return o.q.Dropped()
}

// Clear discards pending actions.
func (o *Outbox) Clear() {
	o.q.Clear()
}

func (o *Outbox) handle(id core.EntityID) uint64 {
	if o.handles == nil {
		return 0
	}
	h, _ := o.handles.Handle(id)
	return h
}
