package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/avetan/studio/internal/app"
	"github.com/avetan/studio/internal/domain"
	"github.com/avetan/studio/internal/record"
)

type controlHandlers struct {
	agent *app.Agent
}

func (h *controlHandlers) state(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session":   h.agent.Machine.Snapshot(),
		"recording": h.agent.Coordinator.Session(),
	})
}

func (h *controlHandlers) devices(c *gin.Context) {
	list, err := h.agent.Devices.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *controlHandlers) join(c *gin.Context) {
	if err := h.agent.JoinRoom(c.Request.Context()); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrInvalidOperation) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.agent.Machine.Snapshot())
}

func (h *controlHandlers) leave(c *gin.Context) {
	h.agent.Leave(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"phase": h.agent.Machine.Phase().String()})
}

func (h *controlHandlers) startRecording(c *gin.Context) {
	sess, err := h.agent.StartRecording(c.Request.Context())
	var partial *record.PartialRecordingFailure
	switch {
	case errors.As(err, &partial):
		// Degraded, not failed: the session is live minus the listed
		// participants.
		failed := make([]domain.ParticipantID, 0, len(partial.Failures))
		for id := range partial.Failures {
			failed = append(failed, id)
		}
		c.JSON(http.StatusOK, gin.H{"recording": sess, "degraded": failed})
	case errors.Is(err, domain.ErrInvalidOperation):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"recording": sess})
	}
}

func (h *controlHandlers) stopRecording(c *gin.Context) {
	summary, err := h.agent.StopRecording(c.Request.Context())
	switch {
	case errors.Is(err, domain.ErrInvalidOperation):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		// Close failures are reported alongside the finalized summary.
		c.JSON(http.StatusOK, gin.H{"summary": summary, "close_errors": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"summary": summary})
	}
}

func (h *controlHandlers) setTrack(c *gin.Context) {
	var kind webrtc.RTPCodecType
	switch c.Param("kind") {
	case "audio":
		kind = webrtc.RTPCodecTypeAudio
	case "video":
		kind = webrtc.RTPCodecTypeVideo
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be audio or video"})
		return
	}

	var body struct {
		Enabled  *bool  `json:"enabled"`
		DeviceID string `json:"device_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}

	if body.DeviceID != "" {
		if err := h.agent.SwapDevice(c.Request.Context(), kind, body.DeviceID); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
	}
	if body.Enabled != nil {
		if err := h.agent.SetTrackEnabled(c.Request.Context(), kind, *body.Enabled); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, domain.ErrInvalidOperation) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, h.agent.Machine.Snapshot())
}
