package server

import (
	"time"

	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
)

// EntityDTO is the wire form of a synchronized record. Timestamps travel as
// Unix milliseconds.
type EntityDTO struct {
	ID        string         `json:"id"`
	Payload   map[string]any `json:"payload"`
	CreatedAt int64          `json:"createdAt,omitempty"`
	UpdatedAt int64          `json:"updatedAt"`
	DeviceID  string         `json:"deviceId,omitempty"`
}

type StatisticsDTO struct {
	UploadedCount   int `json:"uploadedCount"`
	DownloadedCount int `json:"downloadedCount"`
	ConflictCount   int `json:"conflictCount"`
}

type FailureDTO struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type SyncRequest struct {
	DeviceID     string      `json:"deviceId"`
	LastSyncTime *int64      `json:"lastSyncTime,omitempty"`
	Entities     []EntityDTO `json:"entities"`
}

type SyncResponse struct {
	Success    bool          `json:"success"`
	Statistics StatisticsDTO `json:"statistics"`
	Conflicts  []EntityDTO   `json:"conflicts,omitempty"`
	Failed     []FailureDTO  `json:"failed,omitempty"`
	Data       []EntityDTO   `json:"data"`
	Error      string        `json:"error,omitempty"`
}

type BatchSyncRequest struct {
	DeviceID           string      `json:"deviceId"`
	LastSyncTime       *int64      `json:"lastSyncTime,omitempty"`
	CalculationRecords []EntityDTO `json:"calculationRecords"`
	ParameterSets      []EntityDTO `json:"parameterSets"`
}

type BatchSyncResponse struct {
	Success           bool          `json:"success"`
	OverallStatistics StatisticsDTO `json:"overallStatistics"`
	CalculationResult *SyncResponse `json:"calculationResult"`
	ParameterResult   *SyncResponse `json:"parameterResult"`
}

type ResolveRequest struct {
	RecordID   string         `json:"recordId"`
	RecordType string         `json:"recordType"`
	Resolution string         `json:"resolution"`
	ClientData map[string]any `json:"clientData,omitempty"`
	DeviceID   string         `json:"deviceId"`
}

type ResolveResponse struct {
	Success bool       `json:"success"`
	Record  *EntityDTO `json:"record,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type LogEntryDTO struct {
	ID           string `json:"id"`
	DeviceID     string `json:"deviceId"`
	SyncType     string `json:"syncType"`
	RecordCount  int    `json:"recordCount"`
	SyncTime     int64  `json:"syncTime"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type LogsResponse struct {
	Logs       []LogEntryDTO `json:"logs"`
	TotalCount int64         `json:"totalCount"`
}

type ChangesResponse struct {
	Entities []EntityDTO `json:"entities"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func toEntity(dto EntityDTO) coresync.Entity {
	e := coresync.Entity{
		ID:        dto.ID,
		Payload:   coresync.Payload(dto.Payload),
		UpdatedAt: time.UnixMilli(dto.UpdatedAt).UTC(),
	}
	if dto.CreatedAt > 0 {
		e.CreatedAt = time.UnixMilli(dto.CreatedAt).UTC()
	}
	return e
}

func fromEntity(e coresync.Entity) EntityDTO {
	return EntityDTO{
		ID:        e.ID,
		Payload:   map[string]any(e.Payload),
		CreatedAt: e.CreatedAt.UnixMilli(),
		UpdatedAt: e.UpdatedAt.UnixMilli(),
		DeviceID:  e.OriginDeviceID,
	}
}

func fromEntities(es []coresync.Entity) []EntityDTO {
	out := make([]EntityDTO, 0, len(es))
	for _, e := range es {
		out = append(out, fromEntity(e))
	}
	return out
}

func fromStats(s coresync.Statistics) StatisticsDTO {
	return StatisticsDTO{
		UploadedCount:   s.Uploaded,
		DownloadedCount: s.Downloaded,
		ConflictCount:   s.Conflicts,
	}
}

func fromResult(res *coresync.Result, err error) *SyncResponse {
	if res == nil {
		resp := &SyncResponse{}
		if err != nil {
			resp.Error = err.Error()
		}
		return resp
	}
	resp := &SyncResponse{
		Success:    err == nil,
		Statistics: fromStats(res.Stats),
		Conflicts:  fromEntities(res.Conflicts),
		Data:       fromEntities(res.Download),
	}
	if resp.Data == nil {
		resp.Data = []EntityDTO{}
	}
	for _, f := range res.Failed {
		resp.Failed = append(resp.Failed, FailureDTO{ID: f.ID, Error: f.Err})
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func fromLogEntry(e coresync.LogEntry) LogEntryDTO {
	return LogEntryDTO{
		ID:           e.ID,
		DeviceID:     e.DeviceID,
		SyncType:     string(e.SyncType),
		RecordCount:  e.RecordCount,
		SyncTime:     e.SyncTime.UnixMilli(),
		Status:       string(e.Status),
		ErrorMessage: e.ErrorMessage,
	}
}

func lastSyncFrom(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
