package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const sessionIDHeader = "Mcp-Session-Id"

// rpcErrorCode names the JSON-RPC error codes the session-routing layer
// returns before ever reaching the underlying MCP handler.
type rpcErrorCode int

const (
	codeSessionMissing rpcErrorCode = -32001
	codeSessionInvalid rpcErrorCode = -32002
	codeSessionUnknown rpcErrorCode = -32003
	codeBadRequest     rpcErrorCode = -32004
	codeInternal       rpcErrorCode = -32000
)

// Handler serves POST/GET/DELETE /mcp, routing each request to its
// session's bound MCP handler by Mcp-Session-Id, enforcing cfg's
// required headers, and creating new sessions on a bare initialize call.
type Handler struct {
	Store           *SessionStore
	RequiredHeaders map[string]string
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/mcp" {
		http.NotFound(w, r)
		return
	}

	for name, want := range h.RequiredHeaders {
		if got := r.Header.Get(name); got != want {
			http.Error(w, "missing or mismatched required header: "+name, http.StatusForbidden)
			return
		}
	}

	id := r.Header.Get(sessionIDHeader)

	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r, id)
	case http.MethodGet, http.MethodDelete:
		h.routeExisting(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request, id string) {
	if id != "" {
		h.routeExisting(w, r, id)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPCError(w, codeBadRequest, "failed to read request body")
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if !looksLikeInitialize(body) {
		writeRPCError(w, codeBadRequest, "request carries no session id and is not an initialize call")
		return
	}

	newID := uuid.NewString()
	e, err := h.Store.Create(newID)
	if err != nil {
		writeRPCError(w, codeInternal, "failed to create session: "+err.Error())
		return
	}

	w.Header().Set(sessionIDHeader, newID)
	e.inner.ServeHTTP(w, r)
}

func (h *Handler) routeExisting(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeRPCError(w, codeSessionMissing, "Mcp-Session-Id header required")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		writeRPCError(w, codeSessionInvalid, "Mcp-Session-Id header is not a valid session id")
		return
	}

	e, ok := h.Store.Get(id)
	if !ok {
		writeRPCError(w, codeSessionUnknown, "unknown session id")
		return
	}
	h.Store.Touch(id)

	if r.Method == http.MethodDelete {
		h.Store.Close(id)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	e.inner.ServeHTTP(w, r)
}

// looksLikeInitialize reports whether body is a JSON-RPC request whose
// method is "initialize", without fully decoding the MCP request shape.
func looksLikeInitialize(body []byte) bool {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Method == "initialize"
}

type rpcErrorBody struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      any          `json:"id"`
	Error   rpcErrorInfo `json:"error"`
}

type rpcErrorInfo struct {
	Code    rpcErrorCode `json:"code"`
	Message string       `json:"message"`
}

func writeRPCError(w http.ResponseWriter, code rpcErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(rpcErrorBody{
		JSONRPC: "2.0",
		Error:   rpcErrorInfo{Code: code, Message: message},
	})
}
