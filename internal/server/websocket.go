package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
	"github.com/fieldsync/fieldsync/internal/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Frame types accepted over the WebSocket transport. Each carries the same
// request body as its HTTP counterpart and answers with the matching
// response body.
const (
	frameSyncRecords    = "sync_records"
	frameSyncParameters = "sync_parameters"
	frameBatchSync      = "batch_sync"
	frameResolve        = "resolve_conflict"
)

// wsFrame is one request or response on the socket. ID is echoed back so
// clients can correlate concurrent exchanges.
type wsFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// handleWebSocket serves sync exchanges as frames over one long-lived
// connection. Mobile clients on flaky links keep the socket open instead of
// re-establishing HTTP requests.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", log.Error(err))
		return
	}
	defer conn.Close()

	connLogger := s.logger.With(
		log.String("owner_id", owner),
		log.String("remote_addr", conn.RemoteAddr().String()))
	connLogger.Debug("websocket session started")
	defer connLogger.Debug("websocket session ended")

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				connLogger.Warn("websocket read failed", log.Error(err))
			}
			return
		}

		reply := s.dispatchFrame(r, owner, frame)
		if err := conn.WriteJSON(reply); err != nil {
			connLogger.Warn("websocket write failed", log.Error(err))
			return
		}
	}
}

func (s *Server) dispatchFrame(r *http.Request, owner string, frame wsFrame) wsFrame {
	reply := wsFrame{Type: frame.Type, ID: frame.ID}

	var (
		body any
		err  error
	)
	switch frame.Type {
	case frameSyncRecords, frameSyncParameters:
		kind := coresync.KindCalculationRecord
		if frame.Type == frameSyncParameters {
			kind = coresync.KindParameterSet
		}
		var req SyncRequest
		if err = json.Unmarshal(frame.Payload, &req); err == nil {
			body, err = s.doSync(r.Context(), owner, kind, req)
		}
	case frameBatchSync:
		var req BatchSyncRequest
		if err = json.Unmarshal(frame.Payload, &req); err == nil {
			body, err = s.doBatchSync(r.Context(), owner, req)
		}
	case frameResolve:
		var req ResolveRequest
		if err = json.Unmarshal(frame.Payload, &req); err == nil {
			body, err = s.doResolve(r.Context(), owner, req)
		}
	default:
		err = ErrUnknownFrame
	}

	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	payload, err := json.Marshal(body)
	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.Payload = payload
	return reply
}
