package stripex

import "encoding/json"

// EventCheckoutCompleted is the only event class that triggers
// reconciliation; everything else is acknowledged and ignored.
const EventCheckoutCompleted = "checkout.session.completed"

const PaymentStatusPaid = "paid"

type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object Session `json:"object"`
	} `json:"data"`
}

func ParseEvent(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
