// Package remote owns the host registry, claims, setup assignments,
// pending requests and active sessions, and implements the consent
// protocol plus the frame/input relay. It reads room membership from the
// rooms engine; the rooms engine never calls back into this package.
package remote

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Screen/internal/app/rooms"
	"github.com/dkeye/Screen/internal/core"
	"github.com/dkeye/Screen/internal/domain"
)

const (
	// DefaultRequestTTL bounds the consent phase of a session request.
	DefaultRequestTTL = 45 * time.Second
	// DefaultSetupTTL bounds the consent phase of a host-setup request.
	DefaultSetupTTL = 45 * time.Second
	// DefaultAssignmentTTL bounds a pre-authorized host-setup assignment.
	DefaultAssignmentTTL = 15 * time.Minute
)

type host struct {
	id              domain.HostID
	connID          domain.ConnID
	activeSessionID domain.SessionID
	networkID       string
}

type claim struct {
	connID domain.ConnID
	roomID domain.RoomID
}

type assignment struct {
	targetConnID domain.ConnID
	roomID       domain.RoomID
	expiresAt    time.Time
	timer        *time.Timer
}

type pendingRequest struct {
	id               domain.RequestID
	hostID           domain.HostID
	hostConnID       domain.ConnID
	controllerConnID domain.ConnID
	requesterPeerID  domain.PeerID
	roomID           domain.RoomID
	approverConnID   domain.ConnID
	timer            *time.Timer
}

type pendingSetup struct {
	id              domain.RequestID
	requesterConnID domain.ConnID
	requesterPeerID domain.PeerID
	targetConnID    domain.ConnID
	targetPeerID    domain.PeerID
	roomID          domain.RoomID
	suggestedHostID domain.HostID
	timer           *time.Timer
}

type session struct {
	id               domain.SessionID
	hostID           domain.HostID
	hostConnID       domain.ConnID
	controllerConnID domain.ConnID

	frames     uint64
	frameBytes uint64
	inputs     uint64
	debugStop  chan struct{}
}

// Options tune the engine; zero values take the defaults above.
type Options struct {
	AllowSameMachine bool
	Debug            bool
	RequestTTL       time.Duration
	SetupTTL         time.Duration
	AssignmentTTL    time.Duration
}

// Engine owns every remote-control registry behind one mutex. Lock order
// across engines is remote before rooms: methods here may call into the
// rooms engine while holding mu, never the reverse.
type Engine struct {
	mu    sync.Mutex
	gw    core.Gateway
	reg   *core.Registry
	rooms *rooms.Engine
	opts  Options

	hosts       map[domain.HostID]*host
	claims      map[domain.HostID]*claim
	assignments map[domain.HostID]*assignment
	requests    map[domain.RequestID]*pendingRequest
	setups      map[domain.RequestID]*pendingSetup
	sessions    map[domain.SessionID]*session

	now func() time.Time
}

func NewEngine(gw core.Gateway, reg *core.Registry, roomEng *rooms.Engine, opts Options) *Engine {
	if opts.RequestTTL <= 0 {
		opts.RequestTTL = DefaultRequestTTL
	}
	if opts.SetupTTL <= 0 {
		opts.SetupTTL = DefaultSetupTTL
	}
	if opts.AssignmentTTL <= 0 {
		opts.AssignmentTTL = DefaultAssignmentTTL
	}
	return &Engine{
		gw:          gw,
		reg:         reg,
		rooms:       roomEng,
		opts:        opts,
		hosts:       make(map[domain.HostID]*host),
		claims:      make(map[domain.HostID]*claim),
		assignments: make(map[domain.HostID]*assignment),
		requests:    make(map[domain.RequestID]*pendingRequest),
		setups:      make(map[domain.RequestID]*pendingSetup),
		sessions:    make(map[domain.SessionID]*session),
		now:         time.Now,
	}
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Engine) emitError(connID domain.ConnID, code string) {
	e.emitErrorMsg(connID, code, domain.MessageFor(code))
}

func (e *Engine) emitErrorMsg(connID domain.ConnID, code, message string) {
	e.gw.EmitToConnection(connID, "remote-session-error", errorPayload{Code: code, Message: message})
}

// removeRequest deletes a pending request, stops its timer and clears the
// requester stamp. Idempotent against an already removed record. Caller
// holds mu.
func (e *Engine) removeRequest(rec *pendingRequest) {
	if _, ok := e.requests[rec.id]; !ok {
		return
	}
	delete(e.requests, rec.id)
	if rec.timer != nil {
		rec.timer.Stop()
	}
	if c, ok := e.reg.Get(rec.controllerConnID); ok {
		c.Update(func(a *core.Attached) {
			if a.PendingRemoteRequestID == rec.id {
				a.PendingRemoteRequestID = ""
			}
		})
	}
}

// removeSetup deletes a pending setup request, stops its timer and clears
// both connection stamps. Caller holds mu.
func (e *Engine) removeSetup(rec *pendingSetup) {
	if _, ok := e.setups[rec.id]; !ok {
		return
	}
	delete(e.setups, rec.id)
	if rec.timer != nil {
		rec.timer.Stop()
	}
	if c, ok := e.reg.Get(rec.requesterConnID); ok {
		c.Update(func(a *core.Attached) {
			if a.PendingSetupRequestID == rec.id {
				a.PendingSetupRequestID = ""
			}
		})
	}
	if c, ok := e.reg.Get(rec.targetConnID); ok {
		c.Update(func(a *core.Attached) {
			if a.IncomingSetupRequestID == rec.id {
				a.IncomingSetupRequestID = ""
			}
		})
	}
}

// clearAssignment drops the assignment for a host id and stops its timer.
// Caller holds mu.
func (e *Engine) clearAssignment(hostID domain.HostID) {
	a, ok := e.assignments[hostID]
	if !ok {
		return
	}
	delete(e.assignments, hostID)
	if a.timer != nil {
		a.timer.Stop()
	}
}

// liveAssignment returns the assignment for hostID if it has not expired.
// Caller holds mu.
func (e *Engine) liveAssignment(hostID domain.HostID) (*assignment, bool) {
	a, ok := e.assignments[hostID]
	if !ok {
		return nil, false
	}
	if e.now().After(a.expiresAt) {
		e.clearAssignment(hostID)
		return nil, false
	}
	return a, true
}

// requestForHost finds the pending request targeting a host id, if any.
// Caller holds mu.
func (e *Engine) requestForHost(hostID domain.HostID) *pendingRequest {
	for _, rec := range e.requests {
		if rec.hostID == hostID {
			return rec
		}
	}
	return nil
}

func (e *Engine) expireRequest(id domain.RequestID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.requests[id]
	if !ok {
		// Raced an explicit cancel or decision; nothing to do.
		return
	}
	e.removeRequest(rec)
	log.Info().Str("module", "app.remote").Str("request", string(id)).Str("host", string(rec.hostID)).Msg("session request timed out")
	e.emitError(rec.controllerConnID, domain.CodeRequestTimeout)
}

func (e *Engine) expireSetup(id domain.RequestID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.setups[id]
	if !ok {
		return
	}
	e.removeSetup(rec)
	log.Info().Str("module", "app.remote").Str("request", string(id)).Msg("host-setup request timed out")
	e.gw.EmitToConnection(rec.requesterConnID, "remote-host-setup-result", setupResultPayload{
		RequestID:       rec.id,
		Status:          "timeout",
		TargetPeerID:    rec.targetPeerID,
		SuggestedHostID: rec.suggestedHostID,
	})
}

func (e *Engine) expireAssignment(hostID domain.HostID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.assignments[hostID]
	if !ok {
		return
	}
	if e.now().Before(a.expiresAt) {
		// Re-armed by a newer assignment under the same host id.
		return
	}
	e.clearAssignment(hostID)
	log.Info().Str("module", "app.remote").Str("host", string(hostID)).Msg("host-setup assignment expired")
}
