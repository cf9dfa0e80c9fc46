package encode

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"Prism/modules"
	"Prism/service/capture"
	"Prism/service/codec"
	"Prism/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 16,
	CheckOrigin: func(r *http.Request) bool {
		// Agents sit behind the controller's key check, not browser
		// origin policy.
		return true
	},
}

// startRequest opens an encode session: one feature context, the dynamic
// parameters, and where input frames come from.
type startRequest struct {
	Feature   codec.FeatureContext `json:"feature"`
	Width     int32                `json:"width"`
	Height    int32                `json:"height"`
	KBitrate  int32                `json:"kbitrate"`
	Framerate int32                `json:"framerate"`
	GOP       int32                `json:"gop"`
	// Source selects where frames come from: "stream" (binary websocket
	// messages, default) or "screen" (agent-side display capture).
	Source    string `json:"source"`
	Display   int    `json:"display"`
	TimeoutMS int64  `json:"timeoutMs"`
}

// EncodeStream upgrades to a websocket and runs one encode session on it.
// Input frames arrive as binary messages (or from display capture in screen
// mode); every produced frame goes back as a binary packet.
func (h *Handler) EncodeStream(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	req, ok := readStart(conn)
	if !ok {
		return
	}
	if req.TimeoutMS <= 0 {
		req.TimeoutMS = 1000
	}
	enc, err := codec.NewEncoder(codec.EncodeContext{
		Feature: req.Feature,
		Dynamic: codec.DynamicContext{
			Width:     req.Width,
			Height:    req.Height,
			KBitrate:  req.KBitrate,
			Framerate: req.Framerate,
			GOP:       req.GOP,
		},
	})
	if err != nil {
		writePacket(conn, modules.Packet{Act: "QUIT", Code: 1, Msg: err.Error()})
		return
	}
	defer enc.Close()
	writePacket(conn, modules.Packet{Act: "ENCODE_READY"})
	logger.Infof("encode session started backend=%s format=%s %dx%d",
		req.Feature.Backend, req.Feature.Format, req.Width, req.Height)

	if req.Source == "screen" {
		h.runScreenSession(conn, enc, req)
		return
	}
	h.runStreamSession(conn, enc, req)
}

func readStart(conn *websocket.Conn) (startRequest, bool) {
	var req startRequest
	msgType, raw, err := conn.ReadMessage()
	if err != nil || msgType != websocket.TextMessage {
		return req, false
	}
	if err := utils.JSON.Unmarshal(raw, &req); err != nil {
		writePacket(conn, modules.Packet{Act: "QUIT", Code: 1, Msg: "bad start request"})
		return req, false
	}
	return req, true
}

// runStreamSession reads frames off the socket and echoes encoded output.
// Text messages in between are control packets.
func (h *Handler) runStreamSession(conn *websocket.Conn, enc *codec.Encoder, req startRequest) {
	var pts int64
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.TextMessage:
			var pack modules.Packet
			if utils.JSON.Unmarshal(raw, &pack) != nil {
				continue
			}
			if !h.handleControl(conn, enc, pack) {
				return
			}
		case websocket.BinaryMessage:
			frames, err := enc.Encode(codec.InputFrame{Data: raw, PTS: pts}, req.TimeoutMS)
			if err != nil {
				code := 0
				if encErr, ok := err.(*codec.EncodeError); ok {
					code = int(encErr.Code)
				}
				writePacket(conn, modules.Packet{Act: "ENCODE_ERROR", Code: code, Msg: err.Error()})
				continue
			}
			if !writeFrames(conn, frames) {
				return
			}
			if req.Framerate > 0 {
				pts += 1000 / int64(req.Framerate)
			}
		}
	}
}

// runScreenSession captures the agent's own display at the configured rate.
// Capture and encode are decoupled by a one-deep channel: if encoding falls
// behind, fresh frames replace queued ones rather than backing up.
func (h *Handler) runScreenSession(conn *websocket.Conn, enc *codec.Encoder, req startRequest) {
	if req.Framerate <= 0 {
		req.Framerate = 30
	}
	frames := make(chan []byte, 1)
	quit := make(chan struct{})
	defer close(quit)

	// Control reader; also notices the peer going away.
	ctrl := make(chan modules.Packet, 4)
	go func() {
		defer close(ctrl)
		for {
			msgType, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			var pack modules.Packet
			if utils.JSON.Unmarshal(raw, &pack) == nil {
				select {
				case ctrl <- pack:
				case <-quit:
					return
				}
			}
		}
	}()

	go func() {
		interval := time.Second / time.Duration(req.Framerate)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				img, err := capture.Grab(req.Display)
				if err != nil {
					continue
				}
				packed := capture.Repack(img, int(req.Width), int(req.Height))
				select {
				case frames <- packed:
				default:
					// Encoder busy; drop this capture.
				}
			}
		}
	}()

	var pts int64
	for {
		select {
		case pack, ok := <-ctrl:
			if !ok {
				return
			}
			if !h.handleControl(conn, enc, pack) {
				return
			}
		case data := <-frames:
			out, err := enc.Encode(codec.InputFrame{Data: data, PTS: pts}, req.TimeoutMS)
			if err != nil {
				continue
			}
			if !writeFrames(conn, out) {
				return
			}
			pts += 1000 / int64(req.Framerate)
		}
	}
}

// handleControl applies one control packet; false means the session is over.
func (h *Handler) handleControl(conn *websocket.Conn, enc *codec.Encoder, pack modules.Packet) bool {
	switch pack.Act {
	case "STOP":
		writePacket(conn, modules.Packet{Act: "QUIT"})
		return false
	case "SET_BITRATE":
		if kbps, ok := dataInt32(pack.Data, "kbps"); ok {
			if err := enc.SetBitrate(kbps); err != nil {
				writePacket(conn, modules.Packet{Act: "SET_BITRATE", Code: 1, Msg: err.Error()})
				return true
			}
		}
		writePacket(conn, modules.Packet{Act: "SET_BITRATE"})
	case "SET_FRAMERATE":
		if fps, ok := dataInt32(pack.Data, "fps"); ok {
			if err := enc.SetFramerate(fps); err != nil {
				writePacket(conn, modules.Packet{Act: "SET_FRAMERATE", Code: 1, Msg: err.Error()})
				return true
			}
		}
		writePacket(conn, modules.Packet{Act: "SET_FRAMERATE"})
	}
	return true
}

func writeFrames(conn *websocket.Conn, frames []codec.EncodeFrame) bool {
	for _, frame := range frames {
		if err := conn.WriteMessage(websocket.BinaryMessage, packFrame(frame)); err != nil {
			return false
		}
	}
	return true
}

func writePacket(conn *websocket.Conn, pack modules.Packet) bool {
	raw, err := utils.JSON.Marshal(pack)
	if err != nil {
		return false
	}
	return conn.WriteMessage(websocket.TextMessage, raw) == nil
}

func dataInt32(data map[string]any, key string) (int32, bool) {
	if data == nil {
		return 0, false
	}
	switch v := data[key].(type) {
	case float64:
		return int32(v), true
	case int:
		return int32(v), true
	case int64:
		return int32(v), true
	}
	return 0, false
}
