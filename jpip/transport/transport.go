// Package transport implements the JPIP wire transport: a
// WebSocket-framed request/response channel carrying cache.DataBin
// payloads between jpip/server and jpip/client.
//
// Grounded on the dimse/scp accept/serve shape (net.Listener,
// per-connection goroutine, graceful Shutdown via sync.Once),
// generalized from a raw TCP/DUL association to an HTTP-upgraded
// WebSocket connection, using github.com/gorilla/websocket for the
// upgrade and framed read/write.
package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// MessageType distinguishes JPIP transport frames.
type MessageType string

const (
	MessageCreateSession MessageType = "create_session"
	MessageRequestRegion MessageType = "request_region"
	MessageRequestSlices MessageType = "request_slices"
	MessageViewportUpdate MessageType = "viewport_update"
	MessageDataBin       MessageType = "data_bin"
	MessageError         MessageType = "error"
	MessageDisconnect    MessageType = "disconnect"
)

// Message is the envelope carried over the WebSocket connection; Payload
// is left as raw JSON so the server/client packages can decode it into
// their own request/response types without this package depending on
// them.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Conn wraps a *websocket.Conn with JSON message framing in both
// directions. It is safe for one concurrent writer and one concurrent
// reader, matching gorilla/websocket's own concurrency contract.
type Conn struct {
	ws *websocket.Conn
}

// NewConn wraps an already-established WebSocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Upgrader upgrades an incoming HTTP request to a transport Conn. It
// embeds the gorilla upgrader so callers can tune buffer sizes/origin
// checks the same way they would with the library directly.
type Upgrader struct {
	websocket.Upgrader
}

// NewUpgrader returns an Upgrader with permissive defaults suitable for
// a same-origin viewer client; CheckOrigin should be tightened by
// callers serving across origins.
func NewUpgrader() *Upgrader {
	return &Upgrader{Upgrader: websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}}
}

// Upgrade upgrades w/r into a transport Conn.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := u.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: upgrade: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// Dial connects to a JPIP server's WebSocket endpoint.
func Dial(url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// Send encodes payload as JSON and writes it as msgType.
func (c *Conn) Send(msgType MessageType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal payload: %w", err)
	}
	msg := Message{Type: msgType, Payload: raw}
	return c.ws.WriteJSON(msg)
}

// Receive reads the next frame.
func (c *Conn) Receive() (Message, error) {
	var msg Message
	if err := c.ws.ReadJSON(&msg); err != nil {
		return Message{}, fmt.Errorf("transport: read: %w", err)
	}
	return msg, nil
}

// Close closes the underlying connection with a normal-closure frame.
func (c *Conn) Close() error {
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}

// DataBinPayload is the wire shape of a single delivered data bin.
type DataBinPayload struct {
	BinID           uint64 `json:"bin_id"`
	TileX           int    `json:"tile_x"`
	TileY           int    `json:"tile_y"`
	TileZ           int    `json:"tile_z"`
	ResolutionLevel int    `json:"resolution_level"`
	QualityLayer    int    `json:"quality_layer"`
	Bytes           []byte `json:"bytes"`
	IsComplete      bool   `json:"is_complete"`
}

// ErrorPayload reports a request-scoped failure over the wire without
// tearing down the connection.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
