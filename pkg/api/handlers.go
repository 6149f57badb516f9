package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dixieflatline76/Jitter/pkg/augment"
	"github.com/dixieflatline76/Jitter/util/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 32 << 20

type formPage struct {
	Error       string
	Caption     string
	Kind        string
	MaxUploadMB int64
	Version     string
}

type resultPage struct {
	Kind    string
	URL     string
	Path    string
	Width   int
	Height  int
	Frames  int
	Applied string
	Version string
}

// AugmentResponse is the JSON body of POST /api/augment.
type AugmentResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	URL     string `json:"url,omitempty"`
	Frames  int    `json:"frames,omitempty"`
	Kind    string `json:"kind"`
	Job     string `json:"job"`
}

// uploadError is a request that never reached the augmenter.
type uploadError struct {
	status int
	msg    string
}

func (e *uploadError) Error() string { return e.msg }

// parseUpload reads the multipart form into a Request. The raw kind value is
// returned so forms can be re-rendered with the user's choice.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (augment.Request, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return augment.Request{}, "", &uploadError{
				status: http.StatusRequestEntityTooLarge,
				msg:    fmt.Sprintf("file is larger than %d MB", s.opts.MaxUploadBytes>>20),
			}
		}
		return augment.Request{}, "", &uploadError{status: http.StatusBadRequest, msg: "upload could not be read"}
	}

	rawKind := r.FormValue("kind")
	req := augment.Request{
		ID:      r.FormValue("job"),
		Caption: r.FormValue("caption"),
	}
	if _, err := uuid.Parse(req.ID); err != nil {
		req.ID = uuid.NewString()
	}
	// An unknown kind is left as zero; the augmenter reports it.
	req.Kind, _ = augment.ParseKind(rawKind)

	file, _, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Empty payload, reported by the augmenter.
	case err != nil:
		return augment.Request{}, rawKind, &uploadError{status: http.StatusBadRequest, msg: "upload could not be read"}
	default:
		defer file.Close()
		req.Payload, err = io.ReadAll(file)
		if err != nil {
			return augment.Request{}, rawKind, &uploadError{status: http.StatusBadRequest, msg: "upload could not be read"}
		}
	}
	return req, rawKind, nil
}

func statusFor(res augment.Result) int {
	switch res.Status {
	case augment.Success:
		return http.StatusOK
	case augment.InvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleIndex shows the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", s.newFormPage("", "", "video"))
}

// handleAugmentForm runs a job from the HTML form and renders the outcome.
func (s *Server) handleAugmentForm(w http.ResponseWriter, r *http.Request) {
	req, rawKind, err := s.parseUpload(w, r)
	if err != nil {
		var ue *uploadError
		errors.As(err, &ue)
		s.render(w, ue.status, "index.html", s.newFormPage(ue.msg, "", rawKind))
		return
	}

	res, ok := s.runJob(r.Context(), req)
	if !ok {
		return
	}
	if !res.OK() {
		s.render(w, statusFor(res), "index.html", s.newFormPage(res.Message(), req.Caption, rawKind))
		return
	}

	page := resultPage{
		Kind:    res.Kind.String(),
		URL:     s.outputURL(res),
		Path:    res.Path,
		Width:   res.Width,
		Height:  res.Height,
		Frames:  res.Frames,
		Version: s.opts.Version,
	}
	if res.Kind == augment.KindImage {
		page.Applied = res.Record.String()
	}
	s.render(w, http.StatusOK, "result.html", page)
}

// handleAugmentAPI is the JSON flavour of handleAugmentForm.
func (s *Server) handleAugmentAPI(w http.ResponseWriter, r *http.Request) {
	req, rawKind, err := s.parseUpload(w, r)
	if err != nil {
		var ue *uploadError
		errors.As(err, &ue)
		writeJSON(w, ue.status, AugmentResponse{Status: "rejected", Message: ue.msg, Kind: rawKind})
		return
	}

	res, ok := s.runJob(r.Context(), req)
	if !ok {
		return
	}

	kind := rawKind
	if res.Kind == augment.KindImage || res.Kind == augment.KindVideo {
		kind = res.Kind.String()
	}
	writeJSON(w, statusFor(res), AugmentResponse{
		Status:  res.Status.String(),
		Code:    string(res.Code),
		Message: res.Message(),
		Path:    res.Path,
		URL:     s.outputURL(res),
		Frames:  res.Frames,
		Kind:    kind,
		Job:     res.JobID,
	})
}

// handleOutput serves a produced file. Add ?inline=1 to display it instead
// of downloading it.
func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	path, err := s.files.Resolve(name)
	if err != nil {
		log.Debugf("Output %q not served: %v", name, err)
		http.NotFound(w, r)
		return
	}
	if r.URL.Query().Get("inline") == "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	http.ServeFile(w, r, path)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "running",
		"version": s.opts.Version,
		"jobs":    s.InFlight(),
		"clients": s.hub.ClientCount(),
		"ffmpeg":  s.opts.Tools.Available(),
	})
}

// handleWebSocket upgrades the connection and subscribes it to progress messages.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.hub.register(conn)
	defer s.hub.unregister(conn)

	// Clients only listen; reading keeps control frames flowing and notices disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) newFormPage(errMsg, caption, kind string) formPage {
	if kind == "" {
		kind = "video"
	}
	return formPage{
		Error:       errMsg,
		Caption:     caption,
		Kind:        kind,
		MaxUploadMB: s.opts.MaxUploadBytes >> 20,
		Version:     s.opts.Version,
	}
}

// render buffers the page so a template error can still become a 500.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.assets.Render(&buf, name, data); err != nil {
		log.Printf("Failed to render %s: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}
