// Package rpc implements the wiki synchronization protocol: JSON-RPC 2.0
// requests sent by HTTP POST to <wiki base URL>/rpc.
//
// Binary payloads are []byte fields and travel base64-encoded, so page deltas
// survive the JSON encoding unchanged.
package rpc

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the version spoken by this package. Remotes reporting a
// lower version are not supported.
const ProtocolVersion = 1

// Path is appended to a wiki base URL to reach its RPC endpoint.
const Path = "rpc"

// Method names.
const (
	MethodIdentity  = "wikisync.identity"
	MethodListPages = "wikisync.listPages"
	MethodGetDiff   = "wikisync.getDiff"
	MethodMergeDiff = "wikisync.mergeDiff"
)

// Application fault codes.
const (
	FaultNotExist       = "NOT_EXIST"
	FaultFromRevInvalid = "FROMREV_INVALID"
	FaultToRevInvalid   = "TOREV_INVALID"
	FaultLastRevInvalid = "LASTREV_INVALID"
	FaultNotAllowed     = "NOT_ALLOWED"
	FaultInvalidDiff    = "INVALID_DIFF"
	FaultInternal       = "INTERNAL_ERROR"
)

// Result statuses.
const (
	StatusSuccess        = "SUCCESS"
	StatusAlreadyCurrent = "ALREADY_CURRENT"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeFault          = -32000
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      int64           `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

type wireError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *faultData `json:"data,omitempty"`
}

type faultData struct {
	Fault string `json:"fault"`
}

// Fault is an application-level refusal reported by a remote wiki.
type Fault struct {
	Code    string
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// NewFault returns a Fault with a formatted message.
func NewFault(code, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

// MethodNotFoundError is returned when the remote does not know a method.
type MethodNotFoundError struct {
	Method string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("remote does not implement %s", e.Method)
}

// ProtocolError reports a response that is not a valid protocol message.
type ProtocolError struct {
	Method string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("invalid response to %s: %v", e.Method, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IdentityResult is returned by wikisync.identity.
type IdentityResult struct {
	// InterwikiName is empty for an anonymous wiki.
	InterwikiName   string `json:"interwikiName"`
	IWID            string `json:"iwid"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// ListOptions are the parameters of wikisync.listPages.
type ListOptions struct {
	IncludeRevision    bool   `json:"includeRevision"`
	IncludeDeleted     bool   `json:"includeDeleted"`
	ExcludeNonWritable bool   `json:"excludeNonWritable"`
	Prefix             string `json:"prefix"`
	// ExplicitList holds canonical names. Nil means no restriction.
	ExplicitList []string `json:"explicitList,omitempty"`
}

// PageEntry is one element of the wikisync.listPages result. Name is the
// concrete page name on the listed wiki.
type PageEntry struct {
	Name     string `json:"name"`
	Revision int    `json:"revision"`
	Deleted  bool   `json:"deleted"`
}

// DiffParams are the parameters of wikisync.getDiff. A FromRevision of 0 is
// the empty revision before the page existed; a ToRevision of 0 is the
// current revision.
type DiffParams struct {
	Name         string `json:"name"`
	FromRevision int    `json:"fromRevision"`
	ToRevision   int    `json:"toRevision"`
}

// DiffResult is returned by wikisync.getDiff.
type DiffResult struct {
	Status string `json:"status"`
	Diff   []byte `json:"diff,omitempty"`
	// Current is the current revision of the page.
	Current int `json:"current"`
	// Conflict is set when the current body holds unresolved conflict markers.
	Conflict bool `json:"conflict"`
}

// MergeParams are the parameters of wikisync.mergeDiff.
type MergeParams struct {
	Name string `json:"name"`
	Diff []byte `json:"diff"`
	// LocalRevision is the caller's revision the merged content corresponds to.
	LocalRevision int `json:"localRevision"`
	// DeltaRemoteRevision is the revision Diff applies to (0 = empty body).
	DeltaRemoteRevision int `json:"deltaRemoteRevision"`
	// LastRemoteRevision must equal the current revision unless it is 0.
	LastRemoteRevision int `json:"lastRemoteRevision"`
	// InterwikiName is the identity token of the calling wiki.
	InterwikiName string `json:"interwikiName"`
	CanonicalName string `json:"canonicalName"`
}

// MergeResult is returned by wikisync.mergeDiff.
type MergeResult struct {
	Status  string `json:"status"`
	Current int    `json:"current"`
}
