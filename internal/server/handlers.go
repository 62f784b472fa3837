package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/common"
	"github.com/joseph-ayodele/elsai-console/internal/export"
	"github.com/joseph-ayodele/elsai-console/internal/extract"
	"github.com/joseph-ayodele/elsai-console/internal/intake"
	"github.com/joseph-ayodele/elsai-console/internal/prompts"
	"github.com/joseph-ayodele/elsai-console/internal/repository"
)

const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"

	// room for multipart framing and the form fields around the file
	multipartOverhead = 1 << 20
	maxPromptBody     = 64 << 10
)

type apiResponse struct {
	Status  string          `json:"status"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Result  *extract.Result `json:"result,omitempty"`
	Prompt  *prompts.Prompt `json:"prompt,omitempty"`
}

func failure(err error) apiResponse {
	st := statusError
	if common.SeverityOf(err) == common.SeverityWarning {
		st = statusWarning
	}
	return apiResponse{Status: st, Code: common.CodeOf(err), Message: common.UserMessage(err)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func logLevelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

type upload struct {
	extractor string
	file      *intake.File
}

// readUpload streams the multipart body, staging the "file" part straight into
// a temporary file. On error no staged file is left behind.
func (s *HTTPServer) readUpload(w http.ResponseWriter, r *http.Request) (u upload, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.Stager.MaxBytes()+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return u, common.InvalidInput("expected a multipart/form-data upload")
	}
	defer func() {
		if err != nil {
			_ = u.file.Release()
			u.file = nil
		}
	}()

	for {
		part, perr := mr.NextPart()
		if errors.Is(perr, io.EOF) {
			break
		}
		if perr != nil {
			return u, uploadError(perr)
		}
		switch part.FormName() {
		case "extractor":
			b, rerr := io.ReadAll(io.LimitReader(part, 256))
			if rerr != nil {
				_ = part.Close()
				return u, uploadError(rerr)
			}
			u.extractor = strings.TrimSpace(string(b))
		case "file":
			if part.FileName() == "" {
				break
			}
			if u.file != nil {
				_ = part.Close()
				return u, common.InvalidUpload("upload one file at a time")
			}
			f, serr := s.deps.Stager.Stage(r.Context(), part.FileName(), part)
			if serr != nil {
				_ = part.Close()
				return u, uploadError(serr)
			}
			u.file = f
		}
		_ = part.Close()
	}
	if u.file == nil {
		return u, common.InvalidUpload("upload a PDF or CSV file")
	}
	return u, nil
}

func uploadError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return common.InvalidUpload(fmt.Sprintf("upload exceeds the %d byte limit", mbe.Limit-multipartOverhead))
	}
	var ae *common.AppError
	if errors.As(err, &ae) {
		return err
	}
	return common.InvalidInput(fmt.Sprintf("read upload: %v", err))
}

// runExtraction hands the staged file to the dispatcher, which releases it.
func (s *HTTPServer) runExtraction(r *http.Request, u upload) (extract.Result, error) {
	b, err := constants.ParseBackend(u.extractor)
	if err != nil {
		_ = u.file.Release()
		return extract.Result{}, common.InvalidInput(err.Error())
	}
	return s.deps.Dispatcher.Dispatch(r.Context(), b, u.file)
}

func (s *HTTPServer) handleBackends(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"backends": s.deps.Dispatcher.Backends()})
}

func (s *HTTPServer) handleExtractAPI(w http.ResponseWriter, r *http.Request) {
	u, err := s.readUpload(w, r)
	if err != nil {
		writeJSON(w, common.HTTPStatus(err), failure(err))
		return
	}
	name := u.file.Name
	res, err := s.runExtraction(r, u)
	if err != nil {
		writeJSON(w, common.HTTPStatus(err), failure(err))
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		b, err := s.deps.Export.ResultXLSX(res)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, failure(common.WrapError(err, "export")))
			return
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".xlsx"))
		_, _ = w.Write(b)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: statusOK, Result: &res})
}

func (s *HTTPServer) handlePromptAPI(w http.ResponseWriter, r *http.Request) {
	var req prompts.Request
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPromptBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failure(common.InvalidInput(err.Error())))
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, failure(common.InvalidInput("invalid JSON body: "+err.Error())))
			return
		}
	}
	p, err := s.deps.Prompts.Fetch(r.Context(), req)
	if err != nil {
		writeJSON(w, common.HTTPStatus(err), failure(err))
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: statusOK, Prompt: &p})
}

func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, failure(common.InvalidInput("limit must be a non-negative integer")))
			return
		}
		limit = n
	}
	runs, err := s.deps.Runs.Recent(r.Context(), limit)
	if err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Error("runs.list_failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, failure(common.WrapError(err, "list runs")))
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		b, err := s.deps.Export.RunsXLSX(runs)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, failure(common.WrapError(err, "export")))
			return
		}
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="runs.xlsx"`)
		_, _ = w.Write(b)
		return
	}
	if runs == nil {
		runs = []repository.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// page

var templateFuncs = template.FuncMap{
	"prettyJSON": func(raw json.RawMessage) string {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return string(raw)
		}
		return buf.String()
	},
}

type pageData struct {
	Tab          string // "ocr" | "prompts"
	Backends     []extract.BackendInfo
	Selected     constants.Backend
	Environments []constants.Environment
	Prompt       prompts.Request
	MaxUploadMB  int64
	Extraction   *extractionView
	PromptResult *promptView
}

type extractionView struct {
	FileName string
	Result   *extract.Result
	Warning  string
	Error    string
}

type promptView struct {
	Prompt  *prompts.Prompt
	Warning string
	Error   string
}

func (s *HTTPServer) newPage(tab string) pageData {
	return pageData{
		Tab:          tab,
		Backends:     s.deps.Dispatcher.Backends(),
		Selected:     constants.Backends[0],
		Environments: constants.Environments,
		Prompt:       s.deps.Prompts.Defaults(),
		MaxUploadMB:  s.deps.Stager.MaxBytes() >> 20,
	}
}

func (s *HTTPServer) render(w http.ResponseWriter, r *http.Request, data pageData) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Error("http.render_failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	tab := "ocr"
	if r.URL.Query().Get("tab") == "prompts" {
		tab = "prompts"
	}
	s.render(w, r, s.newPage(tab))
}

func (s *HTTPServer) handleExtractForm(w http.ResponseWriter, r *http.Request) {
	data := s.newPage("ocr")
	view := &extractionView{}
	data.Extraction = view

	u, err := s.readUpload(w, r)
	if b, perr := constants.ParseBackend(u.extractor); perr == nil {
		data.Selected = b
	}
	if err == nil {
		view.FileName = u.file.Name
		var res extract.Result
		res, err = s.runExtraction(r, u)
		if err == nil {
			view.Result = &res
		}
	}
	switch common.SeverityOf(err) {
	case common.SeverityNone:
	case common.SeverityWarning:
		view.Warning = common.UserMessage(err)
	default:
		view.Error = "Error during extraction: " + common.UserMessage(err)
	}
	s.render(w, r, data)
}

func (s *HTTPServer) handlePromptForm(w http.ResponseWriter, r *http.Request) {
	data := s.newPage("prompts")
	view := &promptView{}
	data.PromptResult = view

	r.Body = http.MaxBytesReader(w, r.Body, maxPromptBody)
	if err := r.ParseForm(); err != nil {
		view.Error = "Error fetching prompt: " + err.Error()
		s.render(w, r, data)
		return
	}
	req := prompts.Request{
		APIKey:      r.PostForm.Get("api_key"),
		ProjectID:   r.PostForm.Get("project_id"),
		ServerURL:   r.PostForm.Get("server_url"),
		Environment: r.PostForm.Get("environment"),
		Name:        r.PostForm.Get("name"),
	}
	data.Prompt = req

	p, err := s.deps.Prompts.Fetch(r.Context(), req)
	switch common.SeverityOf(err) {
	case common.SeverityNone:
		view.Prompt = &p
	case common.SeverityWarning:
		view.Warning = common.UserMessage(err)
	default:
		view.Error = "Error fetching prompt: " + common.UserMessage(err)
	}
	s.render(w, r, data)
}
