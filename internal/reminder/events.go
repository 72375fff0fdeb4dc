package reminder

import (
	"remindbot/internal/eventbus"
)

// Event types published on the bus.
const (
	EventSet            = "reminder.set"
	EventModified       = "reminder.modified"
	EventDeleted        = "reminder.deleted"
	EventDelivered      = "reminder.delivered"
	EventDeliveryFailed = "reminder.delivery_failed"
)

// EventData is the payload of every reminder.* event.
type EventData struct {
	Owner    Owner
	Reminder Reminder
	Previous *Reminder // set for modifications
	Err      string
}

func publish(bus eventbus.Bus, now Clock, typ string, owner Owner, r Reminder, prev *Reminder, err error) {
	if bus == nil {
		return
	}
	d := EventData{Owner: owner, Reminder: r, Previous: prev}
	if err != nil {
		d.Err = err.Error()
	}
	bus.Publish(eventbus.Event{Type: typ, Time: now(), Data: d})
}
