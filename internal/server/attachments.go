package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rhflow/internal/domain"
	"rhflow/internal/engine"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing; larger
// parts spill to temp files.
const maxUploadMemory = 32 << 20

// Attachment upload and download bypass huma: multipart requests and binary
// streaming responses are handled as plain chi routes.
func registerAttachmentRoutes(r chi.Router, basePath string, eng engine.Engine, logger *zap.Logger) {
	r.Post(basePath+"/tasks/{id}/updates/{updateID}/attachments", func(w http.ResponseWriter, req *http.Request) {
		actor, ok := actorOrError(w, req, eng)
		if !ok {
			return
		}
		taskID, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid task id", nil))
			return
		}
		updateID, err := strconv.ParseInt(chi.URLParam(req, "updateID"), 10, 64)
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid update id", nil))
			return
		}
		if err := req.ParseMultipartForm(maxUploadMemory); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid multipart request", nil))
			return
		}
		defer req.MultipartForm.RemoveAll()

		headers := req.MultipartForm.File["files"]
		if len(headers) == 0 {
			headers = req.MultipartForm.File["file"]
		}
		if len(headers) == 0 {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "No file provided", nil))
			return
		}

		files := make([]engine.FileUpload, 0, len(headers))
		for _, h := range headers {
			f, err := readUpload(h)
			if err != nil {
				logger.Warn("read upload", zap.String("filename", h.Filename), zap.Error(err))
				respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "failed to read uploaded file", nil))
				return
			}
			files = append(files, f)
		}

		results, err := eng.AttachFiles(req.Context(), actor, taskID, updateID, files)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	})

	r.Get(basePath+"/attachments/{id}", func(w http.ResponseWriter, req *http.Request) {
		if _, ok := actorOrError(w, req, eng); !ok {
			return
		}
		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid attachment id", nil))
			return
		}
		a, data, err := eng.OpenAttachment(req.Context(), id)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
		w.Write(data)
	})
}

func actorOrError(w http.ResponseWriter, req *http.Request, eng engine.Engine) (domain.UserProfile, bool) {
	actor, err := currentActor(req.Context(), eng)
	if err != nil {
		if se, ok := err.(huma.StatusError); ok {
			respondStatusError(w, se)
		} else {
			respondStatusError(w, handleError(err))
		}
		return domain.UserProfile{}, false
	}
	return actor, true
}

func readUpload(h *multipart.FileHeader) (engine.FileUpload, error) {
	f, err := h.Open()
	if err != nil {
		return engine.FileUpload{}, err
	}
	defer f.Close()
	// One byte past the cap is enough to trip the size check downstream.
	data, err := io.ReadAll(io.LimitReader(f, engine.MaxAttachmentSize+1))
	if err != nil {
		return engine.FileUpload{}, err
	}
	return engine.FileUpload{
		Filename:    h.Filename,
		ContentType: h.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
