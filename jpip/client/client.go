// Package client implements the JPIP streaming client: connecting to
// a jpip/server endpoint, opening a session, and requesting regions or
// slice ranges with viewport-driven cancellation of stale in-flight
// requests.
//
// Grounded on the request/response shape of the jpeg2000_roi example
// (build a request, block on a result, surface errors through the
// module's own *Error type), generalized to an asynchronous WebSocket
// round trip over jpip/transport, with context.Context threaded
// through every blocking call per this module's ambient-stack
// convention.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/jpip/delivery"
	"github.com/cocosip/go-jp3d/jpip/transport"
)

// CreateSessionRequest is sent to open a session against a registered
// volume.
type CreateSessionRequest struct {
	Volume       string    `json:"volume"`
	Frustum      jp3d.Region `json:"frustum"`
	Mode         delivery.Mode `json:"mode"`
	BandwidthBps float64   `json:"bandwidth_bps"`
}

// RegionRequest asks the server to schedule bins for a region within
// an existing session.
type RegionRequest struct {
	SessionID string    `json:"session_id"`
	Region    jp3d.Region `json:"region"`
}

// SliceRangeRequest asks the server to schedule bins for a Z range
// within an existing session's frustum.
type SliceRangeRequest struct {
	SessionID string `json:"session_id"`
	ZStart    int    `json:"z_start"`
	ZEnd      int    `json:"z_end"`
}

// inFlight tracks one outstanding request so a viewport update can
// cancel it without tearing down the connection.
type inFlight struct {
	cancel context.CancelFunc
}

// Client is a JPIP streaming client connected to one server endpoint.
type Client struct {
	conn      *transport.Conn
	mu        sync.Mutex
	sessionID string
	requests  map[int]*inFlight
	nextReqID int
}

// Connect dials the given JPIP WebSocket endpoint.
func Connect(url string) (*Client, error) {
	conn, err := transport.Dial(url)
	if err != nil {
		return nil, jp3d.WrapError(jp3d.KindIO, "connect to jpip endpoint", err)
	}
	return &Client{conn: conn, requests: make(map[int]*inFlight)}, nil
}

// CreateSession opens a streaming session against volume and stores
// the resulting session ID for subsequent requests.
func (c *Client) CreateSession(req CreateSessionRequest) error {
	if c.conn == nil {
		return jp3d.NewError(jp3d.KindNotConnected, "client not connected")
	}
	if err := c.conn.Send(transport.MessageCreateSession, req); err != nil {
		return jp3d.WrapError(jp3d.KindIO, "send create_session", err)
	}
	msg, err := c.conn.Receive()
	if err != nil {
		return jp3d.WrapError(jp3d.KindIO, "receive create_session response", err)
	}
	if msg.Type == transport.MessageError {
		return decodeErrorPayload(msg.Payload)
	}
	var sessionID string
	if err := json.Unmarshal(msg.Payload, &sessionID); err != nil {
		return jp3d.WrapError(jp3d.KindParseError, "decode session id", err)
	}
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
	return nil
}

// RequestRegion requests a region within the active session. The call
// blocks until a response arrives, ctx is cancelled, or a later
// HandleViewportUpdate cancels it; HandleViewportUpdate cancels every
// in-flight request, whatever region it covers.
func (c *Client) RequestRegion(ctx context.Context, region jp3d.Region) ([]transport.DataBinPayload, error) {
	return c.request(ctx, transport.MessageRequestRegion, RegionRequest{SessionID: c.currentSession(), Region: region})
}

// RequestSliceRange requests a contiguous Z range within the active
// session.
func (c *Client) RequestSliceRange(ctx context.Context, zStart, zEnd int) ([]transport.DataBinPayload, error) {
	return c.request(ctx, transport.MessageRequestSlices, SliceRangeRequest{SessionID: c.currentSession(), ZStart: zStart, ZEnd: zEnd})
}

func (c *Client) currentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) request(ctx context.Context, msgType transport.MessageType, payload any) ([]transport.DataBinPayload, error) {
	if c.conn == nil {
		return nil, jp3d.NewError(jp3d.KindNotConnected, "client not connected")
	}
	if c.currentSession() == "" {
		return nil, jp3d.NewError(jp3d.KindNoSession, "no active session; call CreateSession first")
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	id := c.nextReqID
	c.nextReqID++
	c.requests[id] = &inFlight{cancel: cancel}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.requests, id)
		c.mu.Unlock()
	}()

	if err := c.conn.Send(msgType, payload); err != nil {
		return nil, jp3d.WrapError(jp3d.KindIO, "send request", err)
	}

	type result struct {
		bins []transport.DataBinPayload
		err  error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := c.conn.Receive()
		if err != nil {
			done <- result{err: jp3d.WrapError(jp3d.KindIO, "receive response", err)}
			return
		}
		if msg.Type == transport.MessageError {
			done <- result{err: decodeErrorPayload(msg.Payload)}
			return
		}
		var bins []transport.DataBinPayload
		if err := json.Unmarshal(msg.Payload, &bins); err != nil {
			done <- result{err: jp3d.WrapError(jp3d.KindParseError, "decode data bins", err)}
			return
		}
		done <- result{bins: bins}
	}()

	select {
	case <-reqCtx.Done():
		return nil, jp3d.ErrCancelled
	case r := <-done:
		return r.bins, r.err
	}
}

// HandleViewportUpdate cancels every in-flight request, since any
// result computed against the prior viewport is now stale. Callers
// should immediately issue a new RequestRegion for the updated
// viewport.
func (c *Client) HandleViewportUpdate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, f := range c.requests {
		f.cancel()
		delete(c.requests, id)
	}
}

// Disconnect closes the underlying connection.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	c.HandleViewportUpdate()
	return c.conn.Close()
}

func decodeErrorPayload(raw json.RawMessage) error {
	var ep transport.ErrorPayload
	if err := json.Unmarshal(raw, &ep); err != nil {
		return jp3d.WrapError(jp3d.KindParseError, "decode error payload", err)
	}
	return fmt.Errorf("jpip: server error (%s): %s", ep.Kind, ep.Message)
}
