package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/forPelevin/vid2gif/internal/domain/clip"
	"github.com/forPelevin/vid2gif/internal/logging"
	"github.com/forPelevin/vid2gif/internal/session"
	"github.com/forPelevin/vid2gif/internal/types"
	"github.com/forPelevin/vid2gif/internal/usecase"
)

// convertRequest accepts form or JSON bodies. Missing fields take the form
// defaults 0, 5 and 1.
type convertRequest struct {
	Start *float64 `form:"start" json:"start"`
	End   *float64 `form:"end" json:"end"`
	Speed *float64 `form:"speed" json:"speed"`
}

func (r convertRequest) params() (types.TimeWindow, float64) {
	w := types.TimeWindow{StartSec: clip.DefaultStartSec, EndSec: clip.DefaultEndSec}
	speed := clip.DefaultSpeed
	if r.Start != nil {
		w.StartSec = *r.Start
	}
	if r.End != nil {
		w.EndSec = *r.End
	}
	if r.Speed != nil {
		speed = *r.Speed
	}
	return w, speed
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "workspaces": s.sessions.Len()})
}

func (s *Server) index(c *gin.Context) {
	if id := s.cookie.Current(c); id != "" {
		if _, err := s.sessions.Get(id); err == nil {
			c.Redirect(http.StatusFound, "/w/"+id)
			return
		}
	}
	c.HTML(http.StatusOK, "index", gin.H{"Title": "Upload", "MaxUpload": s.cfg.MaxUploadBytes})
}

func (s *Server) upload(c *gin.Context) {
	tooLargeMsg := fmt.Sprintf("video is larger than %s", formatBytes(s.cfg.MaxUploadBytes))
	if c.Request.ContentLength > s.cfg.MaxUploadBytes {
		s.uploadError(c, http.StatusRequestEntityTooLarge, tooLargeMsg)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	fh, err := c.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.uploadError(c, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return
		}
		s.logger.Warn("upload without video file", "error", err)
		s.uploadError(c, http.StatusBadRequest, "video file is required")
		return
	}
	ext, ok := allowedExt(fh.Filename)
	if !ok {
		s.uploadError(c, http.StatusBadRequest, "unsupported file type; use mp4, avi, mov or mkv")
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.logger.Error("failed to open uploaded file", "error", err)
		s.uploadError(c, http.StatusInternalServerError, "failed to read upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.logger.Error("failed to read uploaded file", "error", err)
		s.uploadError(c, http.StatusInternalServerError, "failed to read upload")
		return
	}

	format, err := DetectVideo(data)
	if err != nil || format == "" {
		s.logger.Warn("upload is not a video", "filename", fh.Filename, "bytes", len(data))
		s.uploadError(c, http.StatusBadRequest, "uploaded file is not a supported video")
		return
	}

	v, err := s.sessions.Create(data, ext)
	if err != nil {
		s.logger.Error("failed to create workspace", "error", err)
		s.uploadError(c, http.StatusInternalServerError, "failed to store upload")
		return
	}
	s.logger.Info("video uploaded", "workspace", v.ID, "format", format, "bytes", v.Size)

	if err := s.cookie.Set(c, v.ID); err != nil {
		s.logger.Warn("failed to save session cookie", "error", err)
	}
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{
			"id":     v.ID,
			"format": format,
			"bytes":  v.Size,
			"url":    "/w/" + v.ID,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/w/"+v.ID)
}

func (s *Server) showWorkspace(c *gin.Context) {
	id := c.Param("id")
	v, err := s.sessions.Get(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, workspaceJSON(v))
		return
	}
	_ = s.cookie.Set(c, id)
	c.HTML(http.StatusOK, "workspace", s.workspaceData(c, v, nil, ""))
}

func (s *Server) video(c *gin.Context) {
	p, err := s.sessions.VideoPath(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.File(p)
}

func (s *Server) convert(c *gin.Context) {
	id := c.Param("id")
	var req convertRequest
	if err := c.ShouldBind(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "start, end and speed must be numbers", id, nil)
		return
	}
	window, speed := req.params()

	videoPath, done, err := s.sessions.Acquire(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("conversion started", "workspace", id, "start", window.StartSec, "end", window.EndSec, "speed", speed)
	res, err := s.uc.Convert(c.Request.Context(), usecase.Input{
		VideoPath: videoPath,
		Window:    window,
		Speed:     speed,
		MaxWindow: s.cfg.MaxWindow,
		Logf:      logging.Logf(s.logger),
	})
	if err != nil {
		done(nil, types.Stats{})
		s.logger.Warn("conversion failed", "workspace", id, "error", err)
		s.respondError(c, statusFor(err), err.Error(), id, &req)
		return
	}
	done(&res.Artifact, res.Stats)
	s.logger.Info("conversion finished", "workspace", id, "frames", res.Stats.Frames, "bytes", res.Stats.Bytes)

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"id":           id,
			"stats":        res.Stats,
			"gif_url":      "/w/" + id + "/gif",
			"download_url": "/w/" + id + "/gif/download",
		})
		return
	}
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/w/%s?start=%g&end=%g&speed=%g", id, window.StartSec, window.EndSec, speed))
}

func (s *Server) gif(c *gin.Context) {
	s.serveGIF(c, false)
}

func (s *Server) downloadGIF(c *gin.Context) {
	s.serveGIF(c, true)
}

func (s *Server) serveGIF(c *gin.Context, attachment bool) {
	v, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if v.Artifact == nil {
		s.respondError(c, http.StatusNotFound, "no gif has been created yet", "", nil)
		return
	}
	if attachment {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", v.Artifact.Filename))
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, v.Artifact.MimeType, v.Artifact.Data)
}

func (s *Server) release(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Release(id); err != nil {
		s.fail(c, err)
		return
	}
	if s.cookie.Current(c) == id {
		_ = s.cookie.Clear(c)
	}
	s.logger.Info("workspace released", "workspace", id)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"released": id})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// fail maps lookup and conversion errors to a status and renders them.
func (s *Server) fail(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err.Error(), "", nil)
}

func (s *Server) respondError(c *gin.Context, status int, msg, id string, req *convertRequest) {
	if wantsJSON(c) {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	if id != "" && status != http.StatusNotFound {
		if v, err := s.sessions.Get(id); err == nil {
			c.HTML(status, "workspace", s.workspaceData(c, v, req, msg))
			return
		}
	}
	c.HTML(status, "error", gin.H{"Title": http.StatusText(status), "Error": msg})
}

func (s *Server) uploadError(c *gin.Context, status int, msg string) {
	if wantsJSON(c) {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.HTML(status, "index", gin.H{"Title": "Upload", "Error": msg, "MaxUpload": s.cfg.MaxUploadBytes})
}

func (s *Server) workspaceData(c *gin.Context, v session.View, req *convertRequest, errMsg string) gin.H {
	if req == nil {
		req = &convertRequest{
			Start: queryFloat(c, "start"),
			End:   queryFloat(c, "end"),
			Speed: queryFloat(c, "speed"),
		}
	}
	window, speed := req.params()
	h := gin.H{
		"Title":  "Workspace",
		"ID":     v.ID,
		"Start":  window.StartSec,
		"End":    window.EndSec,
		"Speed":  speed,
		"HasGIF": v.Artifact != nil,
		"Stats":  v.Stats,
		"Error":  errMsg,
	}
	if v.Artifact != nil {
		h["Version"] = v.Artifact.CreatedAt.UnixNano()
	}
	return h
}

func queryFloat(c *gin.Context, key string) *float64 {
	f, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil {
		return nil
	}
	return &f
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, clip.ErrInvalidWindow), errors.Is(err, clip.ErrInvalidSpeed):
		return http.StatusBadRequest
	case errors.Is(err, clip.ErrEmptyClip), clip.IsDecode(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func wantsJSON(c *gin.Context) bool {
	if c.ContentType() == gin.MIMEJSON {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), gin.MIMEJSON)
}

func workspaceJSON(v session.View) gin.H {
	h := gin.H{
		"id":         v.ID,
		"bytes":      v.Size,
		"created_at": v.CreatedAt,
		"busy":       v.Busy,
		"has_gif":    v.Artifact != nil,
	}
	if v.Artifact != nil {
		h["stats"] = v.Stats
	}
	return h
}
