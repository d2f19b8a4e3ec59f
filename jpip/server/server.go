// Package server implements the JPIP streaming server: volume
// registration, session lifecycle, and per-request region handling
// against a shared jpip/cache and jpip/delivery schedule.
//
// Grounded on the dimse/scp server's shape: a Config/NewServer
// constructor, a net.Listener-backed accept loop run in a goroutine
// from Start, a session map guarded by sync.RWMutex, an
// active-connection counter, and a sync.Once-guarded graceful Stop
// that closes the listener and waits on a sync.WaitGroup — generalized
// from DICOM associations to JPIP sessions and from raw TCP to the
// jpip/transport WebSocket layer. Session identifiers use
// github.com/google/uuid, deriving stable identifiers through the
// uuid package rather than hand-rolled random strings.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/jpip/cache"
	"github.com/cocosip/go-jp3d/jpip/delivery"
	"github.com/cocosip/go-jp3d/jpip/transport"
)

// VolumeSource supplies read access to a registered volume's
// dimensions and its precinct encoder, without the server package
// depending on the encode/decode pipeline directly.
type VolumeSource struct {
	Name               string
	Width, Height, Depth int
	MaxResolutionLevel int
	Components         int
	EncodePrecinct     func(jp3d.Precinct3D) []byte
}

// Config configures a Server.
type Config struct {
	Addr              string
	MaxSessions       int
	MaxFullVolumeBytes int64
	CacheParams       cache.Params
	Logger            interface {
		Info(msg string, args ...any)
		Error(msg string, args ...any)
	}
}

// Session is one client's streaming context against one registered
// volume.
type Session struct {
	ID       string
	Volume   string
	Frustum  jp3d.Region
	Delivery *delivery.Delivery
	conn     *transport.Conn
	created  time.Time
}

// Server is the JPIP streaming server.
type Server struct {
	config   Config
	cache    *cache.Cache
	volumes  map[string]*VolumeSource
	sessions map[string]*Session

	mu sync.RWMutex

	httpServer *http.Server
	wg         sync.WaitGroup
	activeConns int32

	running      bool
	shutdownOnce sync.Once
}

// New constructs a Server. MaxSessions defaults to 64 and
// MaxFullVolumeBytes to 256 MiB when left at zero.
func New(config Config) *Server {
	if config.MaxSessions == 0 {
		config.MaxSessions = 64
	}
	if config.MaxFullVolumeBytes == 0 {
		config.MaxFullVolumeBytes = 256 << 20
	}
	return &Server{
		config:   config,
		cache:    cache.New(config.CacheParams),
		volumes:  make(map[string]*VolumeSource),
		sessions: make(map[string]*Session),
	}
}

// RegisterVolume makes src available for new sessions to request.
func (s *Server) RegisterVolume(src *VolumeSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes[src.Name] = src
}

// Start begins serving HTTP/WebSocket connections on Config.Addr. It
// returns KindAlreadyRunning if called twice without an intervening
// Stop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return jp3d.NewError(jp3d.KindAlreadyRunning, "server already running")
	}
	s.running = true
	s.shutdownOnce = sync.Once{}
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/jpip", s.handleUpgrade)
	s.httpServer = &http.Server{Addr: s.config.Addr, Handler: mux}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server: listen: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.httpServer.Serve(ln)
	}()

	return nil
}

// Stop gracefully shuts the HTTP server down and waits for the serve
// goroutine to return; registered sessions are left in the session
// map. It returns KindNotRunning if the server is not running (never
// started, or already stopped).
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return jp3d.NewError(jp3d.KindNotRunning, "server not running")
	}
	s.running = false
	s.mu.Unlock()

	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.httpServer.Shutdown(ctx)
		s.wg.Wait()
	})
	return shutdownErr
}

// CreateSession establishes a new streaming session against volume,
// bounded by an initial viewport frustum.
func (s *Server) CreateSession(volume string, frustum jp3d.Region, mode delivery.Mode, bandwidthBps float64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.volumes[volume]
	if !ok {
		return nil, jp3d.NewError(jp3d.KindUnknownVolume, "unknown volume: "+volume)
	}
	if len(s.sessions) >= s.config.MaxSessions {
		return nil, jp3d.NewError(jp3d.KindSessionLimitExceeded, "session limit exceeded")
	}
	full := jp3d.NewRegion(0, 0, 0, src.Width, src.Height, src.Depth)
	if _, intersects := frustum.Intersect(full); !intersects {
		return nil, jp3d.NewError(jp3d.KindEmptyFrustum, "frustum does not intersect registered volume")
	}

	sess := &Session{
		ID:       uuid.NewString(),
		Volume:   volume,
		Frustum:  frustum,
		Delivery: delivery.New(mode, bandwidthBps),
		created:  time.Now(),
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

// EndSession tears down a session by ID.
func (s *Server) EndSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// HandleRequest serves a region request within an existing session:
// the requested region is clipped to the session's current frustum,
// its precincts enumerated, and a delivery.Schedule built against the
// shared cache. A full-volume request (region covering the entire
// registered volume) is rejected with KindVolumeTooLarge once its
// estimated byte size exceeds Config.MaxFullVolumeBytes.
func (s *Server) HandleRequest(sessionID string, region jp3d.Region) (delivery.Schedule, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.RUnlock()
		return delivery.Schedule{}, jp3d.NewError(jp3d.KindNoSession, "unknown session: "+sessionID)
	}
	src, ok := s.volumes[sess.Volume]
	s.mu.RUnlock()
	if !ok {
		return delivery.Schedule{}, jp3d.NewError(jp3d.KindUnknownVolume, "unknown volume: "+sess.Volume)
	}

	clipped, ok := region.Intersect(sess.Frustum)
	if !ok {
		return delivery.Schedule{}, nil
	}

	full := jp3d.NewRegion(0, 0, 0, src.Width, src.Height, src.Depth)
	if clipped == full {
		estimate := clipped.Volume() * int64(src.Components)
		if estimate > s.config.MaxFullVolumeBytes {
			return delivery.Schedule{}, jp3d.NewError(jp3d.KindVolumeTooLarge, "full-volume request exceeds server cap")
		}
	}

	units := enumeratePrecinctUnits(clipped, src)
	return sess.Delivery.Schedule(units, s.cache, src.EncodePrecinct), nil
}

// ActiveSessions returns the number of live sessions.
func (s *Server) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func enumeratePrecinctUnits(region jp3d.Region, src *VolumeSource) []delivery.PrecinctUnit {
	var units []delivery.PrecinctUnit
	tiling := jp3d.TilingConfig{TileWidth: region.Width(), TileHeight: region.Height(), TileDepth: region.Depth()}
	if tiling.TileWidth <= 0 || tiling.TileHeight <= 0 || tiling.TileDepth <= 0 {
		return nil
	}
	for comp := 0; comp < src.Components; comp++ {
		for res := 0; res <= src.MaxResolutionLevel; res++ {
			key := jp3d.Precinct3D{
				IX: region.X0, IY: region.Y0, IZ: region.Z0,
				ResolutionLevel: res, Component: comp, Subband: jp3d.SubbandLLL,
			}
			units = append(units, delivery.PrecinctUnit{Key: key, RegionHint: region, QualityLayer: 0, Bytes: 4096})
		}
	}
	return units
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	up := transport.NewUpgrader()
	conn, err := up.Upgrade(w, r)
	if err != nil {
		return
	}
	atomic.AddInt32(&s.activeConns, 1)
	defer atomic.AddInt32(&s.activeConns, -1)
	defer conn.Close()

	for {
		msg, err := conn.Receive()
		if err != nil {
			return
		}
		s.dispatch(conn, msg)
	}
}

// sessionRequest, regionRequest and sliceRangeRequest mirror the JSON
// shapes jpip/client sends as the payload of, respectively,
// MessageCreateSession, MessageRequestRegion and MessageRequestSlices
// (jpip/client.CreateSessionRequest/RegionRequest/SliceRangeRequest).
// viewportUpdateRequest is the payload accepted for
// MessageViewportUpdate, which jpip/client does not send. They are declared independently
// here rather than imported from jpip/client so this package does not
// depend on its own client; json.Unmarshal only cares about the
// field tags matching.
type sessionRequest struct {
	Volume       string        `json:"volume"`
	Frustum      jp3d.Region   `json:"frustum"`
	Mode         delivery.Mode `json:"mode"`
	BandwidthBps float64       `json:"bandwidth_bps"`
}

type regionRequest struct {
	SessionID string      `json:"session_id"`
	Region    jp3d.Region `json:"region"`
}

type sliceRangeRequest struct {
	SessionID string `json:"session_id"`
	ZStart    int    `json:"z_start"`
	ZEnd      int    `json:"z_end"`
}

type viewportUpdateRequest struct {
	SessionID string      `json:"session_id"`
	Frustum   jp3d.Region `json:"frustum"`
}

// dispatch routes one decoded transport.Message to the session/region
// handling it names, replying over conn with either the successful
// result or a transport.MessageError payload.
func (s *Server) dispatch(conn *transport.Conn, msg transport.Message) {
	switch msg.Type {
	case transport.MessageCreateSession:
		s.dispatchCreateSession(conn, msg.Payload)
	case transport.MessageRequestRegion:
		s.dispatchRegionRequest(conn, msg.Payload)
	case transport.MessageRequestSlices:
		s.dispatchSliceRequest(conn, msg.Payload)
	case transport.MessageViewportUpdate:
		s.dispatchViewportUpdate(conn, msg.Payload)
	case transport.MessageDisconnect:
		return
	default:
		s.sendError(conn, jp3d.NewError(jp3d.KindUnsupportedFeature, "unhandled message type"))
	}
}

func (s *Server) dispatchCreateSession(conn *transport.Conn, payload json.RawMessage) {
	var req sessionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(conn, jp3d.WrapError(jp3d.KindParseError, "decode create_session request", err))
		return
	}
	sess, err := s.CreateSession(req.Volume, req.Frustum, req.Mode, req.BandwidthBps)
	if err != nil {
		s.sendError(conn, err)
		return
	}
	_ = conn.Send(transport.MessageCreateSession, sess.ID)
}

func (s *Server) dispatchRegionRequest(conn *transport.Conn, payload json.RawMessage) {
	var req regionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(conn, jp3d.WrapError(jp3d.KindParseError, "decode request_region request", err))
		return
	}
	sched, err := s.HandleRequest(req.SessionID, req.Region)
	if err != nil {
		s.sendError(conn, err)
		return
	}
	_ = conn.Send(transport.MessageDataBin, scheduleToPayloads(sched))
}

func (s *Server) dispatchSliceRequest(conn *transport.Conn, payload json.RawMessage) {
	var req sliceRangeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(conn, jp3d.WrapError(jp3d.KindParseError, "decode request_slices request", err))
		return
	}
	s.mu.RLock()
	sess, ok := s.sessions[req.SessionID]
	s.mu.RUnlock()
	if !ok {
		s.sendError(conn, jp3d.NewError(jp3d.KindNoSession, "unknown session: "+req.SessionID))
		return
	}
	region := jp3d.NewRegion(sess.Frustum.X0, sess.Frustum.Y0, req.ZStart,
		sess.Frustum.X1-sess.Frustum.X0, sess.Frustum.Y1-sess.Frustum.Y0, req.ZEnd-req.ZStart)
	sched, err := s.HandleRequest(req.SessionID, region)
	if err != nil {
		s.sendError(conn, err)
		return
	}
	_ = conn.Send(transport.MessageDataBin, scheduleToPayloads(sched))
}

func (s *Server) dispatchViewportUpdate(conn *transport.Conn, payload json.RawMessage) {
	var req viewportUpdateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(conn, jp3d.WrapError(jp3d.KindParseError, "decode viewport_update request", err))
		return
	}
	s.mu.Lock()
	if sess, ok := s.sessions[req.SessionID]; ok {
		sess.Frustum = req.Frustum
	}
	s.mu.Unlock()
}

// sendError reports a request-scoped failure back over conn without
// tearing down the connection, matching the KindXxx the failing
// operation returned.
func (s *Server) sendError(conn *transport.Conn, err error) {
	var jerr *jp3d.Error
	if errors.As(err, &jerr) {
		_ = conn.Send(transport.MessageError, transport.ErrorPayload{Kind: jerr.Kind.String(), Message: jerr.Message})
		return
	}
	_ = conn.Send(transport.MessageError, transport.ErrorPayload{Kind: "unknown", Message: err.Error()})
}

func scheduleToPayloads(sched delivery.Schedule) []transport.DataBinPayload {
	out := make([]transport.DataBinPayload, 0, len(sched.Bins))
	for _, b := range sched.Bins {
		out = append(out, transport.DataBinPayload{
			BinID:           b.BinID,
			TileX:           b.TileX,
			TileY:           b.TileY,
			TileZ:           b.TileZ,
			ResolutionLevel: b.ResolutionLevel,
			QualityLayer:    b.QualityLayer,
			Bytes:           b.Bytes,
			IsComplete:      b.IsComplete,
		})
	}
	return out
}
