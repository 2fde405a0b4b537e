package httpx

import (
	"context"
	"errors"
	"maps"
	"net/http"

	apperrors "github.com/target/microshop-ui/internal/errors"
)

// FormParser parses form data from an HTTP request and returns the parsed data
// along with any field-level validation errors.
type FormParser[T any] func(r *http.Request) (T, map[string]string)

// FormSubmit sends a parsed form to the backing service.
type FormSubmit[T any] func(ctx context.Context, req T) error

// FormRenderer renders the form template with the given status and data.
type FormRenderer func(w http.ResponseWriter, r *http.Request, status int, data map[string]any)

// FormHandlerOpts contains all options needed to handle a form submission.
type FormHandlerOpts[T any] struct {
	W        http.ResponseWriter
	R        *http.Request
	Mode     FormMode
	Parser   FormParser[T]
	Submit   FormSubmit[T]
	Renderer FormRenderer
	// SuccessURL is where the browser goes after a successful submit.
	SuccessURL string
	PageMeta   PageMeta
	// ExtraData is merged into the template data when the form is re-rendered.
	ExtraData map[string]any
	// ErrorStatus is used for field errors; defaults to 422.
	ErrorStatus int
}

// HandleForm parses, validates and submits a create or edit form. Field
// errors, from the parser or from a service validation error naming a field,
// re-render the form with the submitted values preserved.
func HandleForm[T any](opts FormHandlerOpts[T]) {
	if opts.Parser == nil || opts.Submit == nil || opts.Renderer == nil {
		http.Error(opts.W, "misconfigured form handler", http.StatusInternalServerError)
		return
	}
	switch opts.Mode {
	case FormModeCreate, FormModeEdit:
	default:
		http.Error(opts.W, "invalid form mode", http.StatusBadRequest)
		return
	}

	data, fieldErrors := opts.Parser(opts.R)
	if len(fieldErrors) > 0 {
		opts.renderFormError(opts.fieldErrorStatus(), fieldErrors, "", data)
		return
	}

	if err := opts.Submit(opts.R.Context(), data); err != nil {
		handleFormServiceError(opts, err, data)
		return
	}

	redirectAfterPost(opts.W, opts.R, opts.SuccessURL)
}

func (fh FormHandlerOpts[T]) fieldErrorStatus() int {
	if fh.ErrorStatus != 0 {
		return fh.ErrorStatus
	}
	return http.StatusUnprocessableEntity
}

func handleFormServiceError[T any](opts FormHandlerOpts[T], err error, data T) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		http.Error(opts.W, "request canceled", http.StatusRequestTimeout)
		return
	}

	if apperrors.IsValidation(err) {
		if field := apperrors.GetField(err); field != "" {
			opts.renderFormError(opts.fieldErrorStatus(), map[string]string{field: apperrors.Message(err)}, "", data)
			return
		}
	}

	opts.renderFormError(StatusForError(err), nil, "Unable to save: "+userMessage(err), data)
}

// renderFormError renders the form with errors and preserves form data.
func (fh FormHandlerOpts[T]) renderFormError(status int, fieldErrors map[string]string, generalError string, data T) {
	b := NewTemplateData(fh.R, fh.PageMeta).WithFieldErrors(fieldErrors)
	switch {
	case generalError != "":
		b.WithError(generalError)
	case len(fieldErrors) > 0:
		b.WithError(errMsgFixBelow)
	}
	b.With("Mode", fh.Mode)

	out := b.Build()
	if _, ok := out["Errors"]; !ok {
		out["Errors"] = map[string]string{}
	}
	maps.Copy(out, fh.ExtraData)
	out["FormData"] = data
	fh.Renderer(fh.W, fh.R, status, out)
}
