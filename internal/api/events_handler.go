package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/vialegal/docket/internal/chain"
	"github.com/vialegal/docket/internal/common"
	"github.com/vialegal/docket/internal/extract"
	"github.com/vialegal/docket/internal/loader"
	"github.com/vialegal/docket/internal/manager"
	"github.com/vialegal/docket/internal/record"
)

// sendAttempts bounds the retry of a document send. Model calls and the
// append transaction are retried as one unit; 4xx-mapped errors are not.
const sendAttempts = 3

type eventResponse struct {
	Event       *chain.CaseEvent            `json:"event"`
	Document    *chain.Document             `json:"document,omitempty"`
	Suggestions []chain.CaseEventSuggestion `json:"suggestions,omitempty"`
}

func (s *Server) documentEventHandler(kind record.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.handleDocumentEvent(w, r, kind)
	}
}

func (s *Server) handleDocumentEvent(w http.ResponseWriter, r *http.Request, kind record.Kind) {
	logger := common.Logger()
	ctx := r.Context()
	caseID := chi.URLParam(r, "caseID")

	const maxMemory = 64 << 20 // 64 MiB of in-memory file parts
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse upload form: %w", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	simulated := strings.EqualFold(r.FormValue("simulated"), "true")

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("no file uploaded"))
		return
	}
	if len(headers) > 1 && !isInstrumentKind(kind) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%s events accept a single file", kind))
		return
	}

	workspace, err := os.MkdirTemp(s.uploadRoot, "upload-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("create workspace: %w", err))
		return
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			logger.Warn("api: cleanup workspace failed", "workspace", workspace, "error", err)
		}
	}()

	var (
		paths   []string
		uploads []manager.Upload
	)
	for i, hdr := range headers {
		path, data, err := saveUpload(workspace, i, hdr)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := loader.ValidateFile(path); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		paths = append(paths, path)
		uploads = append(uploads, manager.Upload{Filename: hdr.Filename, Data: data})
	}

	var (
		ev  *chain.CaseEvent
		doc *chain.Document
	)
	send := func(ctx context.Context) error {
		info, err := s.extractDocument(ctx, kind, paths)
		if err != nil {
			return err
		}
		ev, doc, err = s.manager.Process(ctx, caseID, simulated, info, uploads)
		return err
	}
	if err := retrySend(ctx, send); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	resp := eventResponse{Event: ev, Document: doc}
	if ev.Type == chain.EventExceptions {
		info, err := doc.Decode()
		if err != nil {
			logger.Warn("api: decode filing for suggestions failed", "event", ev.ID, "error", err)
		} else if created, err := s.manager.CreateSuggestions(ctx, ev, info); err != nil {
			logger.Warn("api: create suggestions failed", "event", ev.ID, "error", err)
		} else {
			resp.Suggestions = created
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// extractDocument runs the registered extraction pipeline for a kind.
// Instrument uploads (bills, notes) may span several files and are merged
// into one demand record.
func (s *Server) extractDocument(ctx context.Context, kind record.Kind, paths []string) (record.Information, error) {
	extractor, ok := s.extractors[kind]
	if !ok {
		return nil, fmt.Errorf("no extractor registered for %s", kind)
	}
	if isInstrumentKind(kind) {
		inputs := make([]extract.MergeInput, len(paths))
		for i, path := range paths {
			inputs[i] = extract.MergeInput{Extractor: extractor, Path: path}
		}
		merged, _, err := extract.MergeInstruments(ctx, s.provider, inputs, extract.DefaultMergeWorkers)
		if err != nil {
			return nil, err
		}
		return merged, nil
	}
	info, _, err := extractor.ExtractFile(ctx, paths[0])
	if err != nil {
		return nil, err
	}
	return info, nil
}

func isInstrumentKind(kind record.Kind) bool {
	return kind == record.KindBill || kind == record.KindPromissoryNote
}

// retrySend re-runs the whole send on transient failure. Errors that map
// to a 4xx status describe the request, not the infrastructure, so they
// surface immediately.
func retrySend(ctx context.Context, send func(context.Context) error) error {
	logger := common.Logger()
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err = send(ctx); err == nil {
			return nil
		}
		if statusForError(err) < http.StatusInternalServerError {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt < sendAttempts {
			logger.Warn("api: document send failed, retrying", "attempt", attempt, "error", err)
		}
	}
	return err
}

func saveUpload(workspace string, index int, hdr *multipart.FileHeader) (string, []byte, error) {
	src, err := hdr.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open upload %s: %w", hdr.Filename, err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return "", nil, fmt.Errorf("read upload %s: %w", hdr.Filename, err)
	}
	name := filepath.Base(hdr.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	path := filepath.Join(workspace, fmt.Sprintf("%d_%s", index, name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("store upload %s: %w", hdr.Filename, err)
	}
	return path, data, nil
}
