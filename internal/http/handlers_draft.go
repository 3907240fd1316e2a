package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"spendly/internal/core"
	"spendly/internal/log"
	"spendly/internal/receipt"
)

func (s *Server) writeDraft(w http.ResponseWriter, userID string, form *receipt.Form) {
	NewResponse().JSON(toDraftJSON(form.Snapshot(), s.credentialStatus(userID))).Write(w)
}

func (s *Server) credentialStatus(userID string) receipt.CredentialStatus {
	if s.deps.Credentials == nil {
		return receipt.CredentialUnknown
	}
	return s.deps.Credentials.Status(userID)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r).ID
	s.writeDraft(w, userID, s.deps.Drafts.Get(userID))
}

// handleUpdateDraft replaces the draft fields. Missing keys keep their
// current value; the amount is stored as typed and checked on submit.
func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	userID := currentUser(r).ID
	form := s.deps.Drafts.Get(userID)

	fields := form.Snapshot().Fields
	if p.Has("amount") {
		fields.Amount = p.Get("amount")
	}
	if p.Has("description") {
		fields.Description = p.Get("description")
	}
	if p.Has("category") {
		c, err := core.ParseCategory(p.Get("category"))
		if err != nil {
			s.writeError(w, r, log.OpUpdate, err)
			return
		}
		fields.Category = c
	}
	if err := form.SetFields(fields); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.writeDraft(w, userID, form)
}

func (s *Server) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	s.deps.Drafts.Discard(currentUser(r).ID)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleCaptureImage stores the multipart "image" part in the draft.
func (s *Server) handleCaptureImage(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.deps.MaxImageBytes)
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, "capture", receipt.ErrImageTooLarge)
			return
		}
		s.writeError(w, r, "capture", fmt.Errorf("%w: multipart form with an image part expected", errBadRequest))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, r, "capture", fmt.Errorf("%w: missing image part", errBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.writeError(w, r, "capture", fmt.Errorf("read image: %w", err))
		return
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}

	userID := currentUser(r).ID
	form := s.deps.Drafts.Get(userID)
	if err := form.CaptureImage(receipt.Image{Data: data, MIMEType: mime}); err != nil {
		s.writeError(w, r, "capture", err)
		return
	}
	s.writeDraft(w, userID, form)
}

func (s *Server) handleClearImage(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r).ID
	form := s.deps.Drafts.Get(userID)
	if err := form.ClearImage(); err != nil {
		s.writeError(w, r, "clear_image", err)
		return
	}
	s.writeDraft(w, userID, form)
}

// handleRecognize runs a recognition on the draft image and blocks until it
// finishes. A failure leaves the draft with its message set.
func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r).ID
	form := s.deps.Drafts.Get(userID)

	res, err := s.deps.Recognizer.Recognize(r.Context(), userID, form)
	if err != nil {
		switch {
		case errors.Is(err, receipt.ErrNoImage), errors.Is(err, receipt.ErrBusy), errors.Is(err, receipt.ErrDiscarded):
		default:
			err = fmt.Errorf("%w: %w", errExtraction, err)
		}
		s.writeError(w, r, log.OpRecognize, err)
		return
	}

	NewResponse().JSON(recognizeJSON{
		Applied: appliedJSON{
			Amount:      res.Applied.Amount,
			Description: res.Applied.Description,
			Category:    res.Applied.Category,
		},
		Draft: toDraftJSON(res.Snapshot, s.credentialStatus(userID)),
	}).Write(w)
}

// handleSubmitDraft validates the draft and creates the expense. The draft
// is frozen while the expense is written and discarded only once the write
// succeeded.
func (s *Server) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r).ID
	form := s.deps.Drafts.Get(userID)
	snap, err := form.BeginSubmit()
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	e, err := s.createFromDraft(r, userID, snap.Fields)
	if err != nil {
		form.EndSubmit()
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.deps.Drafts.DiscardForm(userID, form)
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID).
		JSON(toExpenseJSON(e, s.deps.Location)).
		Write(w)
}

func (s *Server) createFromDraft(r *http.Request, userID string, fields receipt.Fields) (core.Expense, error) {
	amount, err := core.ParseAmount(fields.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	edit := core.ExpenseEdit{
		Amount:      amount,
		Category:    fields.Category,
		Description: fields.Description,
	}
	if err := edit.Validate(); err != nil {
		return core.Expense{}, err
	}
	return s.deps.Expenses.Create(r.Context(), userID, edit)
}

// handleSetCredential stores the user's own extraction key.
func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, "credential", err)
		return
	}
	userID := currentUser(r).ID
	if err := s.deps.Keyring.Set(userID, p.Get("api_key")); err != nil {
		s.writeError(w, r, "credential", err)
		return
	}
	s.deps.Credentials.Confirm(userID)
	NewResponse().JSON(map[string]string{
		"credential": s.credentialStatus(userID).String(),
	}).Write(w)
}
