package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openplaud/plaudsync/internal/common"
	"github.com/openplaud/plaudsync/internal/server/models"
)

// maxUploadBytes caps manual audio uploads.
const maxUploadBytes = 512 << 20

// recordingView is the JSON shape for a recording.
type recordingView struct {
	ID          string    `json:"id"`
	PlaudFileID string    `json:"plaud_file_id"`
	Filename    string    `json:"filename"`
	DurationMS  int64     `json:"duration_ms"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	FileSize    int64     `json:"file_size"`
	Scene       int       `json:"scene"`
	Trashed     bool      `json:"trashed"`
}

func toRecordingView(r *models.Recording) recordingView {
	return recordingView{
		ID:          r.ID,
		PlaudFileID: r.PlaudFileID,
		Filename:    r.Filename,
		DurationMS:  r.DurationMS,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		FileSize:    r.FileSize,
		Scene:       r.Scene,
		Trashed:     r.Trashed,
	}
}

// fail maps sentinel errors to HTTP status codes.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, common.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error(c.Request.Context(), "request failed",
			"path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) runSync(c *gin.Context) {
	res, err := s.sync.Sync(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) listRecordings(c *gin.Context) {
	recs, err := s.recordings.List(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]recordingView, 0, len(recs))
	for _, r := range recs {
		views = append(views, toRecordingView(r))
	}
	c.JSON(http.StatusOK, gin.H{"recordings": views})
}

func (s *Server) getRecording(c *gin.Context) {
	rec, err := s.recordings.Get(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecordingView(rec))
}

func (s *Server) renameRecording(c *gin.Context) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	rec, err := s.recordings.Rename(c.Request.Context(), ownerID(c), c.Param("id"), req.Filename)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecordingView(rec))
}

func (s *Server) recordingURL(c *gin.Context) {
	url, err := s.recordings.DownloadURL(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) getTranscription(c *gin.Context) {
	tr, err := s.recordings.GetTranscription(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recording_id": tr.RecordingID,
		"text":         tr.Text,
		"language":     tr.Language,
		"model":        tr.Model,
	})
}

func (s *Server) uploadRecording(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	rec, err := s.recordings.Upload(c.Request.Context(), ownerID(c), header.Filename, data)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRecordingView(rec))
}

func (s *Server) removeSilence(c *gin.Context) {
	rec, err := s.transform.RemoveSilence(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRecordingView(rec))
}

func (s *Server) splitRecording(c *gin.Context) {
	parts, err := s.transform.Split(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]recordingView, 0, len(parts))
	for _, p := range parts {
		views = append(views, toRecordingView(p))
	}
	c.JSON(http.StatusCreated, gin.H{"parts": views})
}

func (s *Server) transcribeRecording(c *gin.Context) {
	tr, err := s.transcribe.Transcribe(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recording_id": tr.RecordingID,
		"text":         tr.Text,
		"language":     tr.Language,
		"model":        tr.Model,
	})
}

func (s *Server) setConnection(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Endpoint string `json:"endpoint"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := s.connections.Set(c.Request.Context(), ownerID(c), req.Token, req.Endpoint); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) connectionStatus(c *gin.Context) {
	st, err := s.connections.Status(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) deleteConnection(c *gin.Context) {
	if err := s.connections.Disconnect(c.Request.Context(), ownerID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
