package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"prism/core/host"
	"prism/core/types"
	"prism/native/router"
	"prism/observability"
	"prism/observability/logging"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeCallRejected   = -32010
)

// Server exposes the actor runtime over JSON-RPC. Admin-only methods require
// a bearer token; read methods are open.
type Server struct {
	rt         *host.Runtime
	routerAddr types.Address
	coreAddr   types.Address
	adminAddr  types.Address
	authToken  string
	log        *slog.Logger
}

// NewServer wires a server over the supplied runtime. The token guards the
// mutating methods; an empty token leaves them disabled.
func NewServer(rt *host.Runtime, routerAddr, coreAddr, adminAddr types.Address, authToken string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		rt:         rt,
		routerAddr: routerAddr,
		coreAddr:   coreAddr,
		adminAddr:  adminAddr,
		authToken:  strings.TrimSpace(authToken),
		log:        log,
	}
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	status := s.route(w, r, req)
	observability.ModuleMetrics().Observe("rpc", req.Method, status, time.Since(start))
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, req *RPCRequest) int {
	switch req.Method {
	case "prism_execute":
		return s.handleExecute(w, r, req)
	case "prism_registerLogic":
		if status := s.requireAuth(w, r, req); status != 0 {
			return status
		}
		return s.handleRegisterLogic(w, req)
	case "prism_pause":
		if status := s.requireAuth(w, r, req); status != 0 {
			return status
		}
		return s.handlePause(w, req)
	case "prism_unpause":
		if status := s.requireAuth(w, r, req); status != 0 {
			return status
		}
		return s.handleAdminCall(w, req, router.MethodUnpause, nil)
	case "prism_emergencySwitch":
		if status := s.requireAuth(w, r, req); status != 0 {
			return status
		}
		return s.handleEmergencySwitch(w, req)
	case "prism_activateRoute":
		if status := s.requireAuth(w, r, req); status != 0 {
			return status
		}
		return s.handleRouteToggle(w, req, true)
	case "prism_deactivateRoute":
		if status := s.requireAuth(w, r, req); status != 0 {
			return status
		}
		return s.handleRouteToggle(w, req, false)
	case "prism_transferAdmin":
		if status := s.requireAuth(w, r, req); status != 0 {
			return status
		}
		return s.handleTransferAdmin(w, req)
	case "prism_status":
		return s.handleStatus(w, req)
	case "prism_getRoute":
		return s.handleGetRoute(w, req)
	case "prism_getTotalVolume":
		return s.handleReadBig(w, req, "get_total_volume")
	case "prism_getRewardPool":
		return s.handleReadBig(w, req, "get_total_reward_pool")
	case "prism_getMerchantVolume":
		return s.handleReadBig(w, req, "get_total_merchant_volume")
	case "prism_getHighestPrice":
		return s.handleReadBig(w, req, "get_highest_price")
	case "prism_getSessionVolume":
		return s.handleGetSessionVolume(w, req)
	case "prism_getBalance":
		return s.handleGetBalance(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return http.StatusNotFound
	}
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest) int {
	if authErr := s.checkAuth(r); authErr != nil {
		s.log.Warn("unauthorized RPC request",
			"method", req.Method,
			"remote", r.RemoteAddr,
			"reason", authErr.Message,
			logging.MaskField("authorization", r.Header.Get("Authorization")),
		)
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return http.StatusUnauthorized
	}
	return 0
}

func (s *Server) checkAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}
