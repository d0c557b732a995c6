package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/klauern/wikisync/internal/delta"
	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagename"
	"github.com/klauern/wikisync/internal/pagestore"
	"github.com/klauern/wikisync/internal/tagstore"
)

const maxRequestSize = 64 << 20

// ServerOptions configures a Server.
type ServerOptions struct {
	// Identity is reported by wikisync.identity and used nowhere else.
	Identity model.Identity
	Store    pagestore.Store
	// TagRoot is the data directory holding the tag logs of Store's pages.
	TagRoot string
	// ReadOnly reports pages that remote wikis may not write.
	ReadOnly        func(name string) bool
	TagWriteTimeout time.Duration
	Logger          *slog.Logger
}

// Server exposes a local wiki to remote synchronization clients.
type Server struct {
	opts     ServerOptions
	logger   *slog.Logger
	mux      *http.ServeMux
	handlers map[string]handlerFunc
}

// NewServer returns a server for the wiki described by opts.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("rpc server requires a page store")
	}
	if opts.TagRoot == "" {
		return nil, errors.New("rpc server requires a tag root")
	}
	if opts.Identity.IWID == "" {
		return nil, errors.New("rpc server requires an IWID")
	}
	if opts.ReadOnly == nil {
		opts.ReadOnly = func(string) bool { return false }
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	s := &Server{opts: opts, logger: logger}
	s.handlers = map[string]handlerFunc{
		MethodIdentity:  s.identity,
		MethodListPages: s.listPages,
		MethodGetDiff:   s.getDiff,
		MethodMergeDiff: s.mergeDiff,
	}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /"+Path, s.handleRPC)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		http.Error(w, "read request", http.StatusBadRequest)
		return
	}

	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		s.writeResponse(w, response{JSONRPC: "2.0", Error: &wireError{Code: codeParseError, Message: err.Error()}})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.writeResponse(w, response{JSONRPC: "2.0", ID: req.ID, Error: &wireError{Code: codeInvalidRequest, Message: "not a JSON-RPC 2.0 request"}})
		return
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		s.writeResponse(w, response{JSONRPC: "2.0", ID: req.ID, Error: &wireError{Code: codeMethodNotFound, Message: "unknown method " + req.Method}})
		return
	}

	result, err := handler(r.Context(), req.Params)
	resp := response{JSONRPC: "2.0", ID: req.ID}
	if err != nil {
		resp.Error = s.toWireError(req.Method, err)
	} else if resp.Result, err = json.Marshal(result); err != nil {
		resp.Error = s.toWireError(req.Method, err)
	}
	s.writeResponse(w, resp)
}

func (s *Server) toWireError(method string, err error) *wireError {
	var (
		fault     *Fault
		paramsErr *invalidParamsError
	)
	switch {
	case errors.As(err, &fault):
		s.logger.Debug("rpc fault", logging.Operation(method), slog.String("fault", fault.Code), logging.Err(err))
		return &wireError{Code: codeFault, Message: fault.Message, Data: &faultData{Fault: fault.Code}}
	case errors.As(err, &paramsErr):
		return &wireError{Code: codeInvalidParams, Message: paramsErr.Error()}
	default:
		s.logger.Error("rpc handler failed", logging.Operation(method), logging.Err(err))
		return &wireError{Code: codeInternalError, Message: err.Error(), Data: &faultData{Fault: FaultInternal}}
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("write rpc response", logging.Err(err))
	}
}

type invalidParamsError struct {
	err error
}

func (e *invalidParamsError) Error() string { return "invalid params: " + e.err.Error() }

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &invalidParamsError{err: err}
	}
	return nil
}

func (s *Server) identity(context.Context, json.RawMessage) (any, error) {
	return IdentityResult{
		InterwikiName:   s.opts.Identity.InterwikiName,
		IWID:            s.opts.Identity.IWID,
		ProtocolVersion: ProtocolVersion,
	}, nil
}

func (s *Server) listPages(ctx context.Context, raw json.RawMessage) (any, error) {
	var opts ListOptions
	if err := decodeParams(raw, &opts); err != nil {
		return nil, err
	}

	filter := pagestore.ListFilter{Prefix: opts.Prefix, IncludeDeleted: opts.IncludeDeleted}
	if opts.ExplicitList != nil {
		filter.Match = func(name string) bool {
			canonical, ok := pagename.Normalize(name, opts.Prefix)
			return ok && slices.Contains(opts.ExplicitList, canonical)
		}
	}
	infos, err := s.opts.Store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]PageEntry, 0, len(infos))
	for _, info := range infos {
		if opts.ExcludeNonWritable && s.opts.ReadOnly(info.Name) {
			continue
		}
		entry := PageEntry{Name: info.Name, Deleted: info.Deleted}
		if opts.IncludeRevision {
			entry.Revision = info.Revision
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Server) getDiff(ctx context.Context, raw json.RawMessage) (any, error) {
	var p DiffParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	current, err := s.opts.Store.RealRevision(ctx, p.Name)
	if errors.Is(err, pagestore.ErrNotFound) {
		return nil, NewFault(FaultNotExist, "page %q does not exist", p.Name)
	}
	if err != nil {
		return nil, err
	}

	to := p.ToRevision
	if to == 0 {
		to = current
	}
	if to < 1 || to > current {
		return nil, NewFault(FaultToRevInvalid, "revision %d of page %q does not exist", p.ToRevision, p.Name)
	}
	if p.FromRevision < 0 || p.FromRevision > current {
		return nil, NewFault(FaultFromRevInvalid, "revision %d of page %q does not exist", p.FromRevision, p.Name)
	}

	currentBody, err := s.opts.Store.RawBody(ctx, p.Name, current)
	if err != nil {
		return nil, err
	}
	result := DiffResult{
		Current:  current,
		Conflict: model.HasConflictMarkers(string(currentBody)),
	}
	if p.FromRevision == current && to == current {
		result.Status = StatusAlreadyCurrent
		return result, nil
	}

	var oldBody []byte
	if p.FromRevision > 0 {
		if oldBody, err = s.opts.Store.RawBody(ctx, p.Name, p.FromRevision); err != nil {
			return nil, err
		}
	}
	newBody, err := s.opts.Store.RawBody(ctx, p.Name, to)
	if err != nil {
		return nil, err
	}
	if result.Diff, err = delta.Make(oldBody, newBody); err != nil {
		return nil, err
	}
	result.Status = StatusSuccess
	return result, nil
}

func (s *Server) mergeDiff(ctx context.Context, raw json.RawMessage) (any, error) {
	var p MergeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Name == "" || p.CanonicalName == "" || p.InterwikiName == "" {
		return nil, &invalidParamsError{err: errors.New("name, canonicalName and interwikiName are required")}
	}
	logger := s.logger.With(logging.Page(p.Name), logging.Wiki(p.InterwikiName))

	if s.opts.ReadOnly(p.Name) {
		return nil, NewFault(FaultNotAllowed, "page %q may not be written by remote wikis", p.Name)
	}

	current, err := s.opts.Store.RealRevision(ctx, p.Name)
	if err != nil && !errors.Is(err, pagestore.ErrNotFound) {
		return nil, err
	}
	if current == 0 && len(p.Diff) == 0 {
		return nil, NewFault(FaultNotExist, "page %q does not exist and no diff was sent", p.Name)
	}
	if p.LastRemoteRevision != 0 && p.LastRemoteRevision != current {
		return nil, NewFault(FaultLastRevInvalid, "page %q is at revision %d, not %d", p.Name, current, p.LastRemoteRevision)
	}

	var base []byte
	if p.DeltaRemoteRevision > 0 {
		base, err = s.opts.Store.RawBody(ctx, p.Name, p.DeltaRemoteRevision)
		if errors.Is(err, pagestore.ErrRevisionNotFound) || errors.Is(err, pagestore.ErrNotFound) {
			return nil, NewFault(FaultFromRevInvalid, "revision %d of page %q does not exist", p.DeltaRemoteRevision, p.Name)
		}
		if err != nil {
			return nil, err
		}
	}
	body, err := delta.Apply(base, p.Diff)
	if err != nil {
		return nil, NewFault(FaultInvalidDiff, "cannot apply diff to revision %d of page %q: %v", p.DeltaRemoteRevision, p.Name, err)
	}

	newRev, err := s.opts.Store.Save(ctx, p.Name, body, p.LastRemoteRevision, "merged from "+model.ParseIdentity(p.InterwikiName).DisplayName())
	switch {
	case errors.Is(err, pagestore.ErrUnchanged):
		logger.Debug("merge left page unchanged", logging.Revision(newRev))
	case errors.Is(err, pagestore.ErrEditConflict):
		return nil, NewFault(FaultLastRevInvalid, "page %q changed during the merge", p.Name)
	case err != nil:
		return nil, err
	}

	tags, err := tagstore.Open(s.opts.TagRoot, p.Name, tagstore.WithWriteTimeout(s.opts.TagWriteTimeout), tagstore.WithLogger(s.logger))
	if err == nil {
		var tag model.Tag
		tag, err = model.NewTag(p.InterwikiName, p.LocalRevision, newRev, model.DirectionBoth, p.CanonicalName)
		if err == nil {
			err = tags.Add(ctx, tag)
		}
	}
	if err != nil {
		logger.Warn("merge applied but tag not recorded", logging.Err(err))
	}

	logger.Info("merged remote diff", logging.Revision(newRev))
	return MergeResult{Status: StatusSuccess, Current: newRev}, nil
}
