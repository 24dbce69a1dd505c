// Package events publishes authentication lifecycle events to the
// distribution exchange. Publication is detached from the request path:
// callers hand an event to the Dispatcher and never learn whether delivery
// succeeded.
package events

// Event types. Consumers filter on the event_type attribute, so values are
// part of the external contract.
const (
	TypeUserRegistered = "user_registered"
	TypeUserLoggedIn   = "user_loggedIn"
)

// Attribute keys attached to every event for subscriber-side filtering.
const (
	AttrEventType = "event_type"
	AttrBusiness  = "business"
)

// Event is the outbound message: a type, flat attributes the broker routes
// on, and the payload the consumer renders.
type Event struct {
	Type       string            `json:"event_type"`
	Attributes map[string]string `json:"attributes"`
	Payload    map[string]any    `json:"payload"`
}

// UserRegistered builds the signup lifecycle event.
func UserRegistered(userID, email, name, business string) Event {
	return Event{
		Type: TypeUserRegistered,
		Attributes: map[string]string{
			AttrEventType: TypeUserRegistered,
			AttrBusiness:  business,
		},
		Payload: map[string]any{
			"user_id":  userID,
			"email":    email,
			"name":     name,
			"business": business,
		},
	}
}

// UserLoggedIn builds the login lifecycle event.
func UserLoggedIn(userID, email, name, business string) Event {
	return Event{
		Type: TypeUserLoggedIn,
		Attributes: map[string]string{
			AttrEventType: TypeUserLoggedIn,
			AttrBusiness:  business,
		},
		Payload: map[string]any{
			"user_id":  userID,
			"email":    email,
			"name":     name,
			"business": business,
		},
	}
}
