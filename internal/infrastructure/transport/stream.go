package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"testgen/internal/infrastructure/metrics"
)

const writeWait = 10 * time.Second

// GET /api/v1/metrics/stream
//
// Pushes a metrics snapshot right away and then every StreamInterval until the
// client goes away.
func (h *Handler) handleMetricsStream(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer ws.Close()

	metrics.IncWSConnections()
	defer metrics.DecWSConnections()

	// The reader only exists to notice the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.svc.StreamInterval)
	defer ticker.Stop()

	for {
		if err := h.pushSnapshot(ws); err != nil {
			h.logger.Debug("metrics stream closed", "err", err)
			return
		}
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) pushSnapshot(ws *websocket.Conn) error {
	resp := metricsResp{}
	if s, ok := h.svc.Metrics.Snapshot(); ok {
		resp.Metrics = &s
	} else {
		resp.Message = "no metrics recorded"
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(resp)
}
