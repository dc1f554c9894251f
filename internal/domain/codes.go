package domain

// Stable error-code vocabulary carried on remote-session-error events and
// inlined in setup results. Clients select UX by code; Message is advisory.
const (
	CodeRoomRequired = "room-required"

	CodeHostRequired = "host-required"
	CodeHostNotFound = "host-not-found"
	CodeHostOffline  = "host-offline"
	CodeHostIDInUse  = "host-id-in-use"
	CodeHostBusy     = "host-busy"
	CodeHostPending  = "host-pending"

	CodeControllerBusy    = "controller-busy"
	CodeControllerPending = "controller-pending"

	CodeHostOwnerUnclaimed     = "host-owner-unclaimed"
	CodeHostClaimedByOther     = "host-claimed-by-other"
	CodeHostClaimAssignedOther = "host-claim-assigned-other"
	CodeHostClaimOwnerMismatch = "host-claim-owner-mismatch"

	CodeSelfHostRequestBlocked = "self-host-request-blocked"
	CodeSelfHostMachineBlocked = "self-host-machine-blocked"

	CodeRequestRejected  = "request-rejected"
	CodeRequestCancelled = "request-cancelled"
	CodeRequestTimeout   = "request-timeout"

	CodeHostDisconnected       = "host-disconnected"
	CodeControllerDisconnected = "controller-disconnected"
	CodeApproverDisconnected   = "approver-disconnected"

	CodeParticipantRequired = "participant-required"
	CodeParticipantNotFound = "participant-not-found"
	CodeParticipantInvalid  = "participant-invalid"
)

var codeMessages = map[string]string{
	CodeRoomRequired:           "join a room first",
	CodeHostRequired:           "host id is required",
	CodeHostNotFound:           "host is not registered",
	CodeHostOffline:            "host is offline",
	CodeHostIDInUse:            "host id is already registered",
	CodeHostBusy:               "host is already in a session",
	CodeHostPending:            "host already has a pending request",
	CodeControllerBusy:         "you already control another host",
	CodeControllerPending:      "you already have a pending request",
	CodeHostOwnerUnclaimed:     "nobody in this room has claimed the host",
	CodeHostClaimedByOther:     "host is claimed by another participant",
	CodeHostClaimAssignedOther: "host is assigned to another participant",
	CodeHostClaimOwnerMismatch: "host belongs to a different network origin",
	CodeSelfHostRequestBlocked: "you cannot request control of your own host",
	CodeSelfHostMachineBlocked: "requesting control of this machine is blocked",
	CodeRequestRejected:        "request was rejected",
	CodeRequestCancelled:       "request was cancelled",
	CodeRequestTimeout:         "request timed out",
	CodeHostDisconnected:       "host disconnected",
	CodeControllerDisconnected: "controller disconnected",
	CodeApproverDisconnected:   "approver disconnected",
	CodeParticipantRequired:    "a target participant is required",
	CodeParticipantNotFound:    "participant not found in this room",
	CodeParticipantInvalid:     "invalid participant",
}

// MessageFor returns the default human-readable message for a code.
func MessageFor(code string) string {
	if m, ok := codeMessages[code]; ok {
		return m
	}
	return code
}
