// Package push turns inbound push messages into notifications and routes
// notification clicks to a location in the application.
package push

import (
	"encoding/json"
	"fmt"
)

// Action is a notification button.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Payload is the notification shown for a push message.
type Payload struct {
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon"`
	Badge              string         `json:"badge"`
	Tag                string         `json:"tag"`
	RequireInteraction bool           `json:"requireInteraction"`
	Actions            []Action       `json:"actions"`
	Data               map[string]any `json:"data,omitempty"`
}

// DefaultPayload returns the notification shown when a push message carries
// nothing usable.
func DefaultPayload() Payload {
	return Payload{
		Title: "Offline Runtime",
		Body:  "You have a new update.",
		Icon:  "/icons/icon-192x192.png",
		Badge: "/icons/icon-72x72.png",
		Tag:   "default",
		Actions: []Action{
			{Action: ActionViewTools, Title: "View Tools"},
			{Action: ActionDismiss, Title: "Dismiss"},
		},
	}
}

// ParseError reports a push message that is not a JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse push payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse merges the JSON object in data over DefaultPayload. Empty data
// yields the defaults. Malformed data yields the defaults and a *ParseError.
func Parse(data []byte) (Payload, error) {
	p := DefaultPayload()
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return DefaultPayload(), &ParseError{Err: err}
	}
	return p, nil
}
