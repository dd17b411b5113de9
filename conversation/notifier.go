package conversation

// Notifiers fans one lifecycle event out to several notifiers.
type Notifiers []Notifier

// SessionEvent implements Notifier.
func (ns Notifiers) SessionEvent(event string, summary Summary) {
	for _, n := range ns {
		if n != nil {
			n.SessionEvent(event, summary)
		}
	}
}
