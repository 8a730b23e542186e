package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/host"
	"prism/core/state"
	"prism/core/types"
	"prism/native/pool"
	"prism/native/prism"
	"prism/native/rewards"
	"prism/native/router"
	"prism/observability/logging"
	"prism/storage"
)

const testToken = "super-secret-token"

func addr(b byte) types.Address {
	var a types.Address
	a[types.AddressLength-1] = b
	return a
}

var (
	routerAddr = addr(1)
	storeAddr  = addr(2)
	poolAddr   = addr(3)
	adminAddr  = addr(4)
	userAddr   = addr(5)
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	rt := host.NewRuntime(state.NewManager(storage.NewMemDB()), &host.ManualClock{Time: 1_000_000})
	store, err := rewards.NewStore(storeAddr, rt.State(), routerAddr, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	logic, err := pool.NewLogic(poolAddr, rt.State(), 0)
	if err != nil {
		t.Fatalf("new logic: %v", err)
	}
	rtr, err := router.NewRouter(routerAddr, rt.State(), adminAddr, storeAddr, nil)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	for _, actor := range []host.Actor{store, logic, rtr} {
		if err := rt.Register(actor); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := rt.State().Commit(); err != nil {
		t.Fatalf("commit bootstrap: %v", err)
	}
	return NewServer(rt, routerAddr, storeAddr, adminAddr, token, nil)
}

func call(t *testing.T, s *Server, token, method string, params any) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	req := map[string]any{"jsonrpc": jsonRPCVersion, "id": 1, "method": method}
	if params != nil {
		req["params"] = []any{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return post(t, s, token, body)
}

func post(t *testing.T, s *Server, token string, body []byte) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.handle(recorder, httpReq)
	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return recorder, resp
}

func registerPool(t *testing.T, s *Server) {
	t.Helper()
	recorder, resp := call(t, s, testToken, "prism_registerLogic", registerLogicParams{Logic: poolAddr.Hex()})
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("register logic: status %d error %+v", recorder.Code, resp.Error)
	}
}

func sessionOpHex(t *testing.T, session uint64) string {
	t.Helper()
	encoded, err := rlp.EncodeToBytes(struct{ Session uint64 }{Session: session})
	if err != nil {
		t.Fatalf("encode session: %v", err)
	}
	return "0x" + hex.EncodeToString(encoded)
}

func TestAdminMethodsRequireAuth(t *testing.T) {
	s := newTestServer(t, testToken)
	params := pauseParams{Reason: "maintenance"}

	recorder, resp := call(t, s, "", "prism_pause", params)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status %d without token", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("error %+v", resp.Error)
	}

	recorder, resp = call(t, s, "wrong-token", "prism_pause", params)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status %d with bad token", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Message != "invalid RPC credentials" {
		t.Fatalf("error %+v", resp.Error)
	}

	recorder, resp = call(t, s, testToken, "prism_pause", params)
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("status %d error %+v with valid token", recorder.Code, resp.Error)
	}
}

func TestAuthFailureLogRedactsCredentials(t *testing.T) {
	s := newTestServer(t, testToken)
	var buf bytes.Buffer
	s.log = slog.New(slog.NewJSONHandler(&buf, nil))

	recorder, _ := call(t, s, "wrong-token", "prism_pause", pauseParams{Reason: "maintenance"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", recorder.Code)
	}
	logged := buf.String()
	if !strings.Contains(logged, logging.RedactedValue) {
		t.Fatalf("authorization header not redacted: %s", logged)
	}
	if strings.Contains(logged, "wrong-token") {
		t.Fatalf("raw credential leaked into log: %s", logged)
	}
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	s := newTestServer(t, "")
	recorder, resp := call(t, s, testToken, "prism_pause", pauseParams{Reason: "maintenance"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", recorder.Code)
	}
	if resp.Error == nil || !strings.Contains(resp.Error.Message, "not configured") {
		t.Fatalf("error %+v", resp.Error)
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, testToken)
	recorder, resp := call(t, s, "", "prism_status", nil)
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("status %d error %+v", recorder.Code, resp.Error)
	}
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("remarshal result: %v", err)
	}
	var status statusResult
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if status.Paused {
		t.Fatalf("paused on fresh server")
	}
	if status.Admin != adminAddr.Hex() {
		t.Fatalf("admin %s", status.Admin)
	}
	if status.Nonce != 0 {
		t.Fatalf("nonce %d", status.Nonce)
	}
}

func TestExecuteEndToEnd(t *testing.T) {
	s := newTestServer(t, testToken)
	registerPool(t, s)

	recorder, resp := call(t, s, "", "prism_execute", executeParams{
		From:   userAddr.Hex(),
		Role:   pool.Role,
		Method: pool.MethodNameUpdatePoolAndRetrieve,
		Params: sessionOpHex(t, 1),
	})
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("status %d error %+v", recorder.Code, resp.Error)
	}
	result, ok := resp.Result.(string)
	if !ok || !strings.HasPrefix(result, "0x") {
		t.Fatalf("result %v", resp.Result)
	}

	_, resp = call(t, s, "", "prism_status", nil)
	payload, _ := json.Marshal(resp.Result)
	var status statusResult
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Nonce != 1 {
		t.Fatalf("nonce after execute %d", status.Nonce)
	}
}

func TestExecuteRejectionMapsToCallError(t *testing.T) {
	s := newTestServer(t, testToken)
	recorder, resp := call(t, s, "", "prism_execute", executeParams{
		From:   userAddr.Hex(),
		Role:   "nonexistent",
		Method: "anything",
	})
	// Application rejections ride a 200 with the taxonomy code as message.
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeCallRejected {
		t.Fatalf("error %+v", resp.Error)
	}
	if resp.Error.Message != "route_not_found" {
		t.Fatalf("taxonomy code %q", resp.Error.Message)
	}
}

func TestExecuteWhilePaused(t *testing.T) {
	s := newTestServer(t, testToken)
	registerPool(t, s)
	if _, resp := call(t, s, testToken, "prism_pause", pauseParams{Reason: "security_incident"}); resp.Error != nil {
		t.Fatalf("pause: %+v", resp.Error)
	}
	_, resp := call(t, s, "", "prism_execute", executeParams{
		From:   userAddr.Hex(),
		Role:   pool.Role,
		Method: pool.MethodNameUpdatePoolAndRetrieve,
		Params: sessionOpHex(t, 1),
	})
	if resp.Error == nil || resp.Error.Message != "paused" {
		t.Fatalf("error %+v", resp.Error)
	}
}

func TestGetRoute(t *testing.T) {
	s := newTestServer(t, testToken)
	registerPool(t, s)

	recorder, resp := call(t, s, "", "prism_getRoute", roleParams{Role: pool.Role})
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("status %d error %+v", recorder.Code, resp.Error)
	}
	payload, _ := json.Marshal(resp.Result)
	var route routeResult
	if err := json.Unmarshal(payload, &route); err != nil {
		t.Fatalf("decode route: %v", err)
	}
	if route.Logic != poolAddr.Hex() || !route.Active {
		t.Fatalf("route %+v", route)
	}
	if route.MaxContextAge != prism.DefaultMaxContextAge {
		t.Fatalf("max age %d", route.MaxContextAge)
	}
}

func TestReadEndpoints(t *testing.T) {
	s := newTestServer(t, testToken)
	for _, method := range []string{
		"prism_getTotalVolume",
		"prism_getRewardPool",
		"prism_getMerchantVolume",
		"prism_getHighestPrice",
	} {
		recorder, resp := call(t, s, "", method, nil)
		if recorder.Code != http.StatusOK || resp.Error != nil {
			t.Fatalf("%s: status %d error %+v", method, recorder.Code, resp.Error)
		}
		if resp.Result != "0" {
			t.Fatalf("%s: result %v", method, resp.Result)
		}
	}

	recorder, resp := call(t, s, "", "prism_getSessionVolume", sessionParams{Session: 1})
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("session volume: status %d error %+v", recorder.Code, resp.Error)
	}
	if resp.Result != "0" {
		t.Fatalf("session volume result %v", resp.Result)
	}

	recorder, resp = call(t, s, "", "prism_getBalance", addressParams{Address: userAddr.Hex()})
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("balance: status %d error %+v", recorder.Code, resp.Error)
	}
	if resp.Result != "0" {
		t.Fatalf("balance result %v", resp.Result)
	}
}

func TestMethodNotFound(t *testing.T) {
	s := newTestServer(t, testToken)
	recorder, resp := call(t, s, "", "prism_noSuchMethod", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("error %+v", resp.Error)
	}
}

func TestMalformedRequests(t *testing.T) {
	s := newTestServer(t, testToken)

	recorder, resp := post(t, s, "", []byte("{not json"))
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("parse error: status %d error %+v", recorder.Code, resp.Error)
	}

	recorder, resp = post(t, s, "", []byte("  "))
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("empty body: status %d error %+v", recorder.Code, resp.Error)
	}

	recorder, resp = post(t, s, "", []byte(`{"jsonrpc":"1.0","method":"prism_status","id":1}`))
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("bad version: status %d error %+v", recorder.Code, resp.Error)
	}

	recorder, resp = post(t, s, "", []byte(`{"jsonrpc":"2.0","id":1}`))
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("missing method: status %d error %+v", recorder.Code, resp.Error)
	}
}

func TestInvalidExecuteParams(t *testing.T) {
	s := newTestServer(t, testToken)

	recorder, resp := call(t, s, "", "prism_execute", nil)
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("missing params: status %d error %+v", recorder.Code, resp.Error)
	}

	recorder, resp = call(t, s, "", "prism_execute", executeParams{From: "not-an-address", Role: pool.Role})
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("bad from: status %d error %+v", recorder.Code, resp.Error)
	}

	recorder, resp = call(t, s, "", "prism_execute", executeParams{From: userAddr.Hex(), Role: pool.Role, Value: "-5"})
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("bad value: status %d error %+v", recorder.Code, resp.Error)
	}
}
