// Package gateway exposes the command surface over HTTP and streams
// server events over websockets. It owns framing only; every command is
// validated by the protocol package and executed by the dispatcher.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/decred/slog"

	"fun-euchre/euchre"
	"fun-euchre/internal/protocol"
	"fun-euchre/internal/runtime"
)

// RequestIDHeader carries the requestId when the body omits it.
const RequestIDHeader = "X-Request-Id"

// HTTPHandler serves the lobby and game command endpoints.
type HTTPHandler struct {
	dispatcher *runtime.Dispatcher
	log        slog.Logger
}

// NewHTTPHandler creates a handler over the given dispatcher.
func NewHTTPHandler(d *runtime.Dispatcher, log slog.Logger) *HTTPHandler {
	return &HTTPHandler{dispatcher: d, log: log}
}

// RegisterRoutes registers the HTTP routes on the provided mux.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/lobbies/create", h.commandRoute(protocol.CmdLobbyCreate))
	mux.HandleFunc("/lobbies/join", h.commandRoute(protocol.CmdLobbyJoin))
	mux.HandleFunc("/lobbies/update-name", h.commandRoute(protocol.CmdLobbyUpdateName))
	mux.HandleFunc("/lobbies/start", h.commandRoute(protocol.CmdLobbyStart))
	mux.HandleFunc("/actions", h.handleActions)
	mux.HandleFunc("/health", h.handleHealth)
}

type successEnvelope struct {
	RequestID string            `json:"requestId"`
	Outbound  []protocol.Event  `json:"outbound"`
	Identity  *runtime.Identity `json:"identity,omitempty"`
}

type errorEnvelope struct {
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// commandRoute builds a handler for one fixed command type. The body's
// type field, if present, must agree with the route.
func (h *HTTPHandler) commandRoute(cmdType protocol.CommandType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeReject(w, "", euchre.NewReject(euchre.CodeInvalidAction, "method not allowed"))
			return
		}
		ev, ok := h.decodeEvent(w, r)
		if !ok {
			return
		}
		if ev.Type != "" && ev.Type != string(cmdType) {
			writeReject(w, ev.RequestID, euchre.NewReject(euchre.CodeInvalidAction,
				"type %q does not match this route", ev.Type))
			return
		}
		ev.Type = string(cmdType)
		h.execute(w, ev)
	}
}

// handleActions dispatches game commands; the body's type field selects
// the subcommand.
func (h *HTTPHandler) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeReject(w, "", euchre.NewReject(euchre.CodeInvalidAction, "method not allowed"))
		return
	}
	ev, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}
	if !protocol.CommandType(ev.Type).IsGameCommand() {
		writeReject(w, ev.RequestID, euchre.NewReject(euchre.CodeInvalidAction,
			"type %q is not a game action", ev.Type))
		return
	}
	h.execute(w, ev)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	default:
		writeReject(w, "", euchre.NewReject(euchre.CodeInvalidAction, "method not allowed"))
	}
}

// decodeEvent parses the request envelope, filling requestId from the
// header when the body omits it.
func (h *HTTPHandler) decodeEvent(w http.ResponseWriter, r *http.Request) (protocol.ClientEvent, bool) {
	var ev protocol.ClientEvent
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		writeReject(w, r.Header.Get(RequestIDHeader),
			euchre.NewReject(euchre.CodeInvalidAction, "malformed request body"))
		return protocol.ClientEvent{}, false
	}
	if ev.RequestID == "" {
		ev.RequestID = r.Header.Get(RequestIDHeader)
	}
	return ev, true
}

// execute validates and dispatches one command, then writes the result
// envelope. Game-rule rejects arrive as a lone action.rejected event and
// are surfaced with the same status mapping as direct rejects.
func (h *HTTPHandler) execute(w http.ResponseWriter, ev protocol.ClientEvent) {
	cmd, rej := protocol.ToDomainCommand(ev)
	if rej != nil {
		writeReject(w, ev.RequestID, rej)
		return
	}
	h.log.Debugf("dispatching %s (requestId %q)", cmd.Type, cmd.RequestID)

	resp := h.dispatcher.Dispatch(cmd)
	if resp.Reject != nil {
		writeReject(w, ev.RequestID, resp.Reject)
		return
	}
	if rejected, ok := rejectedOutbound(resp.Outbound); ok {
		writeJSON(w, statusForCode(rejected.Code), errorEnvelope{
			RequestID: ev.RequestID,
			Code:      rejected.Code,
			Message:   rejected.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope{
		RequestID: ev.RequestID,
		Outbound:  resp.Outbound,
		Identity:  resp.Identity,
	})
}

// rejectedOutbound detects a dispatch whose leading outbound event is an
// action.rejected, so the HTTP status can reflect the rule failure. A
// duplicate-requestId reject also carries the current game.state behind
// the reject; the status still comes from the reject.
func rejectedOutbound(outbound []protocol.Event) (protocol.RejectedPayload, bool) {
	if len(outbound) == 0 || outbound[0].Type != protocol.EventActionRejected {
		return protocol.RejectedPayload{}, false
	}
	var payload protocol.RejectedPayload
	if err := json.Unmarshal(outbound[0].Payload, &payload); err != nil {
		return protocol.RejectedPayload{}, false
	}
	return payload, true
}

func statusForCode(code string) int {
	switch code {
	case euchre.CodeInvalidAction:
		return http.StatusBadRequest
	case euchre.CodeUnauthorized:
		return http.StatusForbidden
	case euchre.CodeInvalidState, euchre.CodeNotYourTurn:
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func writeReject(w http.ResponseWriter, requestID string, rej *euchre.Reject) {
	writeJSON(w, statusForCode(rej.Code), errorEnvelope{
		RequestID: requestID,
		Code:      rej.Code,
		Message:   rej.Message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
