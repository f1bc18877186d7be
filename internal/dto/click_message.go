package dto

// ClickMessageType is the only message type carried on the click stream.
const ClickMessageType = "LINK_CLICK"

// ClickData is the payload body of a click message. Field names are
// case-sensitive camelCase on the wire.
type ClickData struct {
	ID          string   `json:"id" validate:"required"`
	AccountID   string   `json:"accountId" validate:"required"`
	Country     string   `json:"country" validate:"required"`
	Destination string   `json:"destination" validate:"required,url"`
	ClickedTime int64    `json:"clickedTime" validate:"required"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// ClickMessage is the channel payload emitted by the redirect handler and
// consumed by the click processor. Messages failing schema validation are
// routed to the dead-letter stream unmodified.
type ClickMessage struct {
	Type string    `json:"type" validate:"required,eq=LINK_CLICK"`
	Data ClickData `json:"data" validate:"required"`
}
