package prism

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/types"
)

// Handshake methods every logic actor answers so a router can register it.
var (
	MethodGetCapabilities   = SelectorOf("get_capabilities")
	MethodInitializeStorage = SelectorOf("initialize_storage")
)

// Capability is a logic actor's declaration of the roles it serves.
type Capability struct {
	Roles   []string
	Version uint64
}

// InitializeStorageArgs carries the storage core address and the extension
// bindings handed to a logic actor at registration time.
type InitializeStorageArgs struct {
	Core       types.Address
	Extensions []ExtensionEntry
}

// Envelope wraps the capability context together with the RLP-encoded
// operation parameters of a logic call. The context rides alongside the
// parameters rather than inside them so the callee can validate it before
// decoding anything operation specific.
type Envelope struct {
	Ctx    Context
	Params []byte
}

// EncodeEnvelope serializes params and wraps them with ctx.
func EncodeEnvelope(ctx Context, params any) ([]byte, error) {
	var raw []byte
	if params != nil {
		encoded, err := rlp.EncodeToBytes(params)
		if err != nil {
			return nil, fmt.Errorf("prism: encode params: %w", err)
		}
		raw = encoded
	}
	return rlp.EncodeToBytes(&Envelope{Ctx: ctx, Params: raw})
}

// WrapEnvelope wraps already-encoded params with ctx. Routers use it to
// forward an operation payload they never inspect.
func WrapEnvelope(ctx Context, rawParams []byte) ([]byte, error) {
	return rlp.EncodeToBytes(&Envelope{Ctx: ctx, Params: rawParams})
}

// DecodeEnvelope unwraps the context and, when params is non-nil, decodes the
// operation parameters into it.
func DecodeEnvelope(data []byte, params any) (Context, error) {
	var env Envelope
	if err := rlp.DecodeBytes(data, &env); err != nil {
		return Context{}, fmt.Errorf("prism: decode envelope: %w", err)
	}
	if params != nil {
		if err := rlp.DecodeBytes(env.Params, params); err != nil {
			return Context{}, fmt.Errorf("prism: decode params: %w", err)
		}
	}
	return env.Ctx, nil
}
