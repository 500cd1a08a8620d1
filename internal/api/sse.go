package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/timekeeper/internal/timer"
)

// heartbeatInterval keeps idle proxies from closing the stream.
const heartbeatInterval = 15 * time.Second

// timerEvents streams every timer tick as an SSE "tick" event.
func (h *handlers) timerEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// Slow clients drop ticks rather than stall the timer.
	events := make(chan timer.TickEvent, 16)
	cancel := h.svc.OnTick(func(ev timer.TickEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	defer cancel()

	writeSSE(c.Writer, "connected", gin.H{"type": "connected"})
	if st, ok, _ := h.svc.ActiveTimer(); ok {
		writeSSE(c.Writer, "tick", timer.TickEvent{TaskID: st.TaskID, ElapsedSeconds: st.ElapsedSeconds})
	}
	c.Writer.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)})
			c.Writer.Flush()
		case ev := <-events:
			writeSSE(c.Writer, "tick", ev)
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}
