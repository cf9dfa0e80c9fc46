package modules

// Packet is the JSON control frame exchanged over the encode websocket.
type Packet struct {
	Act  string         `json:"act"`
	Code int            `json:"code"`
	Msg  string         `json:"msg,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}
