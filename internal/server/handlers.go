package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"pdfchat/internal/domain"
)

const (
	msgUploadFailed  = "It seems like the file was not uploaded correctly. Please try again with a valid file."
	msgUploadOK      = "Thank you for providing your PDF document. You can now ask me any questions regarding its content!"
	msgUploadTooBig  = "The file is too large. Please upload a smaller PDF document."
	msgNoDocument    = "Please upload a PDF document first so I can answer questions about it."
	msgEmptyQuestion = "Please type a question."
	msgBadRequest    = "Sorry, I could not read that message."
	msgInternal      = "Sorry, something went wrong while processing your request. Please try again."
)

type messageRequest struct {
	UserMessage string `json:"userMessage"`
}

type botResponse struct {
	BotResponse string `json:"botResponse"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBot(w http.ResponseWriter, code int, text string) {
	writeJSON(w, code, botResponse{BotResponse: text})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, nil); err != nil {
		s.log.Error("render index", "req_id", RequestID(r.Context()), "err", err)
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBot(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	answer, err := s.qa.Ask(r.Context(), req.UserMessage)
	switch {
	case err == nil:
		writeBot(w, http.StatusOK, answer)
	case errors.Is(err, domain.ErrEmptyQuestion):
		writeBot(w, http.StatusBadRequest, msgEmptyQuestion)
	case errors.Is(err, domain.ErrNoDocument):
		writeBot(w, http.StatusConflict, msgNoDocument)
	default:
		s.log.Error("process message", "req_id", RequestID(r.Context()), "err", err)
		writeBot(w, http.StatusInternalServerError, msgInternal)
	}
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	reqID := RequestID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeBot(w, http.StatusRequestEntityTooLarge, msgUploadTooBig)
			return
		}
		s.log.Debug("upload without file", "req_id", reqID, "err", err)
		writeBot(w, http.StatusBadRequest, msgUploadFailed)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		writeBot(w, http.StatusBadRequest, msgUploadFailed)
		return
	}
	path := filepath.Join(s.cfg.UploadDir, name)
	if err := saveUpload(path, file); err != nil {
		s.log.Error("save upload", "req_id", reqID, "path", path, "err", err)
		writeBot(w, http.StatusInternalServerError, msgInternal)
		return
	}

	stats, err := s.qa.Ingest(r.Context(), path)
	switch {
	case err == nil:
		s.log.Info("upload indexed", "req_id", reqID, "file", name, "chunks", stats.Chunks)
		writeBot(w, http.StatusOK, msgUploadOK)
	case errors.Is(err, domain.ErrUnsupportedDocument), errors.Is(err, domain.ErrEmptyDocument):
		s.log.Warn("upload rejected", "req_id", reqID, "file", name, "err", err)
		writeBot(w, http.StatusBadRequest, msgUploadFailed)
	default:
		s.log.Error("process document", "req_id", reqID, "file", name, "err", err)
		writeBot(w, http.StatusInternalServerError, msgInternal)
	}
}

// saveUpload writes src to path, replacing any earlier file of the same name.
func saveUpload(path string, src io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
