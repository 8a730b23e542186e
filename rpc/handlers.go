package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/host"
	"prism/core/types"
	"prism/native/prism"
	"prism/native/router"
	"prism/observability"
)

type executeParams struct {
	From   string `json:"from"`
	Role   string `json:"role"`
	Method string `json:"method"`
	Params string `json:"params,omitempty"`
	Value  string `json:"value,omitempty"`
}

type registerLogicParams struct {
	Logic         string           `json:"logic"`
	MaxContextAge uint64           `json:"maxContextAge,omitempty"`
	RestrictedTo  string           `json:"restrictedTo,omitempty"`
	Extensions    []extensionParam `json:"extensions,omitempty"`
}

type extensionParam struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

type pauseParams struct {
	Reason string `json:"reason"`
}

type switchParams struct {
	Role   string `json:"role"`
	Backup string `json:"backup"`
}

type roleParams struct {
	Role string `json:"role"`
}

type addressParams struct {
	Address string `json:"address"`
}

type sessionParams struct {
	Session uint64 `json:"session"`
}

type statusResult struct {
	Paused bool   `json:"paused"`
	Admin  string `json:"admin"`
	Nonce  uint64 `json:"nonce"`
}

type routeResult struct {
	Role          string `json:"role"`
	Logic         string `json:"logic"`
	Active        bool   `json:"active"`
	MaxContextAge uint64 `json:"maxContextAge"`
	RestrictedTo  string `json:"restrictedTo,omitempty"`
}

func decodeParams(req *RPCRequest, out any) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("params required")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseHexBytes(value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return nil, nil
	}
	return hex.DecodeString(trimmed)
}

func parseValue(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid value %q", value)
	}
	return parsed, nil
}

// writeCallError distinguishes transport faults from application rejections so
// clients can tell a broken call apart from a refused one.
func (s *Server) writeCallError(w http.ResponseWriter, id interface{}, err error) int {
	if host.IsTransport(err) {
		writeError(w, http.StatusInternalServerError, id, codeServerError, "call failed", err.Error())
		return http.StatusInternalServerError
	}
	callErr := prism.NewCallError(err)
	writeError(w, http.StatusOK, id, codeCallRejected, callErr.Code, callErr.Detail)
	return http.StatusOK
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, req *RPCRequest) int {
	var params executeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid execute params", err.Error())
		return http.StatusBadRequest
	}
	from, err := types.ParseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return http.StatusBadRequest
	}
	opArgs, err := parseHexBytes(params.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "params must be hex encoded", err.Error())
		return http.StatusBadRequest
	}
	value, err := parseValue(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid value", err.Error())
		return http.StatusBadRequest
	}
	args, err := rlp.EncodeToBytes(router.ExecuteArgs{Op: router.Operation{
		Role:   params.Role,
		Method: params.Method,
		Args:   opArgs,
	}})
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "encode operation", err.Error())
		return http.StatusInternalServerError
	}
	start := time.Now()
	reply, err := s.rt.Submit(from, s.routerAddr, router.MethodExecute, args, value)
	observability.Router().ObserveOperation(params.Role, time.Since(start), err)
	if err != nil {
		if !host.IsTransport(err) {
			observability.Router().RecordRejection(params.Role, prism.NewCallError(err).Code)
		}
		return s.writeCallError(w, req.ID, err)
	}
	writeResult(w, req.ID, "0x"+hex.EncodeToString(reply))
	return http.StatusOK
}

func (s *Server) handleRegisterLogic(w http.ResponseWriter, req *RPCRequest) int {
	var params registerLogicParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid registerLogic params", err.Error())
		return http.StatusBadRequest
	}
	logic, err := types.ParseAddress(params.Logic)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid logic address", err.Error())
		return http.StatusBadRequest
	}
	restricted := types.ZeroAddress
	if strings.TrimSpace(params.RestrictedTo) != "" {
		restricted, err = types.ParseAddress(params.RestrictedTo)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid restrictedTo address", err.Error())
			return http.StatusBadRequest
		}
	}
	extensions := make([]prism.ExtensionEntry, 0, len(params.Extensions))
	for _, ext := range params.Extensions {
		addr, err := types.ParseAddress(ext.Addr)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid extension address", err.Error())
			return http.StatusBadRequest
		}
		extensions = append(extensions, prism.ExtensionEntry{Name: ext.Name, Addr: addr})
	}
	args, err := rlp.EncodeToBytes(router.RegisterLogicArgs{
		Logic:         logic,
		MaxContextAge: params.MaxContextAge,
		RestrictedTo:  restricted,
		Extensions:    extensions,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "encode args", err.Error())
		return http.StatusInternalServerError
	}
	return s.submitAdmin(w, req, router.MethodRegisterLogic, args)
}

func (s *Server) handlePause(w http.ResponseWriter, req *RPCRequest) int {
	var params pauseParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid pause params", err.Error())
		return http.StatusBadRequest
	}
	args, err := rlp.EncodeToBytes(router.PauseArgs{Reason: params.Reason})
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "encode args", err.Error())
		return http.StatusInternalServerError
	}
	return s.submitAdmin(w, req, router.MethodPause, args)
}

func (s *Server) handleEmergencySwitch(w http.ResponseWriter, req *RPCRequest) int {
	var params switchParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid emergencySwitch params", err.Error())
		return http.StatusBadRequest
	}
	backup, err := types.ParseAddress(params.Backup)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid backup address", err.Error())
		return http.StatusBadRequest
	}
	args, err := rlp.EncodeToBytes(router.SwitchArgs{Role: params.Role, Backup: backup})
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "encode args", err.Error())
		return http.StatusInternalServerError
	}
	return s.submitAdmin(w, req, router.MethodEmergencySwitchLogic, args)
}

func (s *Server) handleRouteToggle(w http.ResponseWriter, req *RPCRequest, activate bool) int {
	var params roleParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid route params", err.Error())
		return http.StatusBadRequest
	}
	args, err := rlp.EncodeToBytes(router.RoleArgs{Role: params.Role})
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "encode args", err.Error())
		return http.StatusInternalServerError
	}
	method := router.MethodDeactivateRoute
	if activate {
		method = router.MethodActivateRoute
	}
	return s.submitAdmin(w, req, method, args)
}

func (s *Server) handleTransferAdmin(w http.ResponseWriter, req *RPCRequest) int {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid transferAdmin params", err.Error())
		return http.StatusBadRequest
	}
	next, err := types.ParseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return http.StatusBadRequest
	}
	args, err := rlp.EncodeToBytes(router.AddressArgs{Addr: next})
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "encode args", err.Error())
		return http.StatusInternalServerError
	}
	return s.submitAdmin(w, req, router.MethodTransferAdmin, args)
}

func (s *Server) handleAdminCall(w http.ResponseWriter, req *RPCRequest, method prism.MethodID, args []byte) int {
	return s.submitAdmin(w, req, method, args)
}

func (s *Server) submitAdmin(w http.ResponseWriter, req *RPCRequest, method prism.MethodID, args []byte) int {
	if _, err := s.rt.Submit(s.adminAddr, s.routerAddr, method, args, nil); err != nil {
		return s.writeCallError(w, req.ID, err)
	}
	writeResult(w, req.ID, true)
	return http.StatusOK
}

func (s *Server) handleStatus(w http.ResponseWriter, req *RPCRequest) int {
	var paused bool
	reply, err := s.rt.Query(s.routerAddr, router.MethodIsPaused, nil)
	if err != nil {
		return s.writeCallError(w, req.ID, err)
	}
	if err := rlp.DecodeBytes(reply, &paused); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "decode status", err.Error())
		return http.StatusInternalServerError
	}
	var admin types.Address
	reply, err = s.rt.Query(s.routerAddr, router.MethodGetAdmin, nil)
	if err != nil {
		return s.writeCallError(w, req.ID, err)
	}
	if err := rlp.DecodeBytes(reply, &admin); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "decode admin", err.Error())
		return http.StatusInternalServerError
	}
	var nonce uint64
	reply, err = s.rt.Query(s.routerAddr, router.MethodGetNonce, nil)
	if err != nil {
		return s.writeCallError(w, req.ID, err)
	}
	if err := rlp.DecodeBytes(reply, &nonce); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "decode nonce", err.Error())
		return http.StatusInternalServerError
	}
	writeResult(w, req.ID, statusResult{Paused: paused, Admin: admin.Hex(), Nonce: nonce})
	return http.StatusOK
}

func (s *Server) handleGetRoute(w http.ResponseWriter, req *RPCRequest) int {
	var params roleParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid route params", err.Error())
		return http.StatusBadRequest
	}
	args, err := rlp.EncodeToBytes(router.RoleArgs{Role: params.Role})
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "encode args", err.Error())
		return http.StatusInternalServerError
	}
	reply, err := s.rt.Query(s.routerAddr, router.MethodGetRoute, args)
	if err != nil {
		return s.writeCallError(w, req.ID, err)
	}
	var route router.Route
	if err := rlp.DecodeBytes(reply, &route); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "decode route", err.Error())
		return http.StatusInternalServerError
	}
	result := routeResult{
		Role:          params.Role,
		Logic:         route.Logic.Hex(),
		Active:        route.Active,
		MaxContextAge: route.MaxContextAge,
	}
	if !route.RestrictedTo.IsZero() {
		result.RestrictedTo = route.RestrictedTo.Hex()
	}
	writeResult(w, req.ID, result)
	return http.StatusOK
}

func (s *Server) handleReadBig(w http.ResponseWriter, req *RPCRequest, method string) int {
	reply, err := s.rt.Query(s.coreAddr, prism.SelectorOf(method), nil)
	if err != nil {
		return s.writeCallError(w, req.ID, err)
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(reply, value); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "decode result", err.Error())
		return http.StatusInternalServerError
	}
	writeResult(w, req.ID, value.String())
	return http.StatusOK
}

func (s *Server) handleGetSessionVolume(w http.ResponseWriter, req *RPCRequest) int {
	var params sessionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid session params", err.Error())
		return http.StatusBadRequest
	}
	args, err := rlp.EncodeToBytes(struct{ Session uint64 }{Session: params.Session})
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "encode args", err.Error())
		return http.StatusInternalServerError
	}
	reply, err := s.rt.Query(s.coreAddr, prism.SelectorOf("get_session_volume"), args)
	if err != nil {
		return s.writeCallError(w, req.ID, err)
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(reply, value); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "decode result", err.Error())
		return http.StatusInternalServerError
	}
	observability.Rewards().RecordSessionVolume(params.Session, value)
	writeResult(w, req.ID, value.String())
	return http.StatusOK
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) int {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid balance params", err.Error())
		return http.StatusBadRequest
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return http.StatusBadRequest
	}
	balance, err := s.rt.BalanceOf(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "read balance", err.Error())
		return http.StatusInternalServerError
	}
	writeResult(w, req.ID, balance.String())
	return http.StatusOK
}
