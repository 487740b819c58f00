package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
)

// doSync runs one sync exchange for one entity kind. Shared by the HTTP and
// WebSocket transports.
func (s *Server) doSync(ctx context.Context, owner string, kind coresync.Kind, req SyncRequest) (*SyncResponse, error) {
	if err := s.validator.validateAll(req.Entities); err != nil {
		return nil, err
	}

	uploads := make([]coresync.Entity, 0, len(req.Entities))
	for _, dto := range req.Entities {
		uploads = append(uploads, toEntity(dto))
	}

	res, err := s.engine.Orchestrator.Sync(ctx, kind, owner, req.DeviceID, lastSyncFrom(req.LastSyncTime), uploads)
	return fromResult(res, err), nil
}

func (s *Server) doBatchSync(ctx context.Context, owner string, req BatchSyncRequest) (*BatchSyncResponse, error) {
	if err := s.validator.validateAll(req.CalculationRecords); err != nil {
		return nil, err
	}
	if err := s.validator.validateAll(req.ParameterSets); err != nil {
		return nil, err
	}

	calcs := make([]coresync.Entity, 0, len(req.CalculationRecords))
	for _, dto := range req.CalculationRecords {
		calcs = append(calcs, toEntity(dto))
	}
	params := make([]coresync.Entity, 0, len(req.ParameterSets))
	for _, dto := range req.ParameterSets {
		params = append(params, toEntity(dto))
	}

	res := s.engine.Coordinator.BatchSync(ctx, owner, req.DeviceID, lastSyncFrom(req.LastSyncTime), calcs, params)

	return &BatchSyncResponse{
		Success:           res.Succeeded(),
		OverallStatistics: fromStats(res.Overall),
		CalculationResult: fromResult(res.Calculations.Result, res.Calculations.Err),
		ParameterResult:   fromResult(res.Parameters.Result, res.Parameters.Err),
	}, nil
}

func (s *Server) doResolve(ctx context.Context, owner string, req ResolveRequest) (*ResolveResponse, error) {
	kind, err := coresync.ParseKind(req.RecordType)
	if err != nil {
		return nil, err
	}
	resolution, err := coresync.ParseResolution(req.Resolution)
	if err != nil {
		return nil, err
	}

	final, err := s.engine.Resolver.Resolve(ctx, kind, owner, req.RecordID, resolution, coresync.Payload(req.ClientData), req.DeviceID)
	if err != nil {
		return nil, err
	}

	dto := fromEntity(*final)
	return &ResolveResponse{Success: true, Record: &dto}, nil
}

func (s *Server) handleSync(kind coresync.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.doSync(r.Context(), ownerFrom(r.Context()), kind, req)
		if err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleBatchSync(w http.ResponseWriter, r *http.Request) {
	var req BatchSyncRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.doBatchSync(r.Context(), ownerFrom(r.Context()), req)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.doResolve(r.Context(), ownerFrom(r.Context()), req)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	if pageSize <= 0 {
		pageSize = 50
	}

	filter := coresync.LogFilter{
		OwnerID:  ownerFrom(r.Context()),
		DeviceID: q.Get("deviceId"),
		Page:     page,
		PageSize: pageSize,
	}
	entries, total, err := s.engine.Logs.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	resp := LogsResponse{Logs: make([]LogEntryDTO, 0, len(entries)), TotalCount: total}
	for _, e := range entries {
		resp.Logs = append(resp.Logs, fromLogEntry(e))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleChanges is the read-only incremental pull used by the download half
// of sync and by fresh-device bootstrap.
func (s *Server) handleChanges(kind coresync.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var since *int64
		if raw := r.URL.Query().Get("since"); raw != "" {
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err)
				return
			}
			since = &ms
		}

		entities, err := s.engine.Entities.UpdatedSince(r.Context(), kind, ownerFrom(r.Context()), lastSyncFrom(since))
		if err != nil {
			s.writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		s.writeJSON(w, http.StatusOK, ChangesResponse{Entities: fromEntities(entities)})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, coresync.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coresync.ErrInvalidKind),
		errors.Is(err, coresync.ErrInvalidResolution),
		errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, coresync.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
