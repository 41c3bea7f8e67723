package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/middleware"
	"github.com/gopolls-dev/gopolls/shared/logger"
)

// CommonTemplateData holds fields common to all page templates, available
// as .Common via the TemplateData wrapper.
type CommonTemplateData struct {
	User      *domain.User
	Flash     *domain.Flash
	CSRFToken string
	Errors    map[string]string // field-level validation messages
}

// TemplateData wraps page-specific data with common template data.
// Templates access page data via .Data and common data via .Common.
type TemplateData struct {
	Data   any
	Common CommonTemplateData
}

func (h *Handler) initCommonTemplateData(w http.ResponseWriter, r *http.Request) CommonTemplateData {
	return CommonTemplateData{
		User:      middleware.GetUserFromContext(r),
		Flash:     h.readFlash(w, r),
		CSRFToken: middleware.GetCSRFTokenFromContext(r),
	}
}

func (h *Handler) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	h.renderTemplateWithErrors(w, r, name, data, nil)
}

// renderTemplateWithErrors re-renders a form page with field-level
// validation messages.
func (h *Handler) renderTemplateWithErrors(w http.ResponseWriter, r *http.Request, name string, data any, fieldErrors map[string]string) {
	tmpl, ok := h.Templates[name]
	if !ok {
		logger.Log.Error("template not found", "template", name)
		http.Error(w, fmt.Sprintf("Template %s not found", name), http.StatusInternalServerError)
		return
	}

	common := h.initCommonTemplateData(w, r)
	common.Errors = fieldErrors

	wrapped := TemplateData{
		Data:   data,
		Common: common,
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, wrapped); err != nil {
		logger.Log.Error("error executing template", "template", name, "error", err)
		http.Error(w, "Internal Server Error rendering template", http.StatusInternalServerError)
		return
	}

	_, _ = buf.WriteTo(w)
}

// serverError is the generic fault handler: details go to the log, the
// client gets an opaque response.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Log.Error("internal error", "path", r.URL.Path, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
