package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"leadsdash/auth"
	"leadsdash/forms"
	"leadsdash/handlers/api"
	"leadsdash/leads"
	"leadsdash/middleware"
	"leadsdash/utils"
)

// LeadsHandler serves the dashboard and its actions. Every action changes
// the session's controller and redirects back to the dashboard.
type LeadsHandler struct {
	leads *leads.Registry
	loc   *time.Location
}

// NewLeadsHandler creates the dashboard handler
func NewLeadsHandler(registry *leads.Registry, loc *time.Location) *LeadsHandler {
	return &LeadsHandler{leads: registry, loc: loc}
}

func (h *LeadsHandler) controller(c *fiber.Ctx) (*leads.Controller, *auth.Session) {
	return h.leads.Get(middleware.SessionID(c)), middleware.CurrentSession(c)
}

// upstreamError handles errors of calls to the leads API. A rejected token
// logs the session out; other errors are already part of the view state.
func (h *LeadsHandler) upstreamError(c *fiber.Ctx, s *auth.Session, err error) (bool, error) {
	switch {
	case err == nil, errors.Is(err, leads.ErrStaleResponse):
		return false, nil
	case errors.Is(err, api.ErrUnauthorized):
		utils.Log.WithField("session", middleware.SessionID(c)).Info("leads API rejected the session token")
		if lerr := s.Reject(); lerr != nil {
			utils.Log.Warn("failed to clear rejected token: %v", lerr)
		}
		return true, c.Redirect("/login")
	default:
		utils.Log.Error("leads API call failed: %v", err)
		return false, nil
	}
}

func (h *LeadsHandler) back(c *fiber.Ctx) error {
	return c.Redirect("/", fiber.StatusSeeOther)
}

// Dashboard loads the page when its inputs changed and renders it
func (h *LeadsHandler) Dashboard(c *fiber.Ctx) error {
	ctrl, s := h.controller(c)

	err := ctrl.Sync(c.UserContext(), s.Token())
	if done, rerr := h.upstreamError(c, s, err); done {
		return rerr
	}

	return h.renderDashboard(c, ctrl, fiber.StatusOK, nil)
}

func (h *LeadsHandler) renderDashboard(c *fiber.Ctx, ctrl *leads.Controller, status int, filters *forms.Form) error {
	view := ctrl.Snapshot()
	if filters == nil {
		filters = forms.NewFilterForm(view.Draft)
	}

	data := fiber.Map{
		"View":    view,
		"Filters": filters,
	}
	if view.Editing != nil {
		form := forms.NewLeadForm(view.Editing.Lead, view.Editing.Status)
		form.SetErrors(view.Editing.Errors, middleware.Localizer(c))
		data["EditForm"] = form
		data["EditLeadID"] = view.Editing.Lead.ID
	}

	return render(c, status, "dashboard", data)
}

// ApplyFilters makes the submitted filter bar the applied filters
func (h *LeadsHandler) ApplyFilters(c *fiber.Ctx) error {
	ctrl, _ := h.controller(c)

	form := forms.NewFilterForm(ctrl.Snapshot().Draft)
	form.Bind(formValues(c))
	if !form.Validate(middleware.Localizer(c)) {
		ctrl.SetDraft(form.Filters())
		return h.renderDashboard(c, ctrl, fiber.StatusBadRequest, form)
	}

	ctrl.ApplyFilters(form.Filters())
	return h.back(c)
}

// ClearFilters resets the filter bar
func (h *LeadsHandler) ClearFilters(c *fiber.Ctx) error {
	ctrl, _ := h.controller(c)
	ctrl.ClearFilters()
	return h.back(c)
}

// NextPage moves to the next page when there is one
func (h *LeadsHandler) NextPage(c *fiber.Ctx) error {
	ctrl, _ := h.controller(c)
	ctrl.NextPage()
	return h.back(c)
}

// PrevPage moves to the previous page when there is one
func (h *LeadsHandler) PrevPage(c *fiber.Ctx) error {
	ctrl, _ := h.controller(c)
	ctrl.PrevPage()
	return h.back(c)
}

// Refresh reloads the current page
func (h *LeadsHandler) Refresh(c *fiber.Ctx) error {
	ctrl, s := h.controller(c)
	err := ctrl.Refresh(c.UserContext(), s.Token())
	if done, rerr := h.upstreamError(c, s, err); done {
		return rerr
	}
	return h.back(c)
}

// ToggleRow shows or hides the collected data of a row
func (h *LeadsHandler) ToggleRow(c *fiber.Ctx) error {
	ctrl, _ := h.controller(c)
	ctrl.ToggleRow(c.Params("id"))
	return h.back(c)
}

// Edit opens the edit modal for a lead on the current page
func (h *LeadsHandler) Edit(c *fiber.Ctx) error {
	ctrl, _ := h.controller(c)
	if err := ctrl.Edit(c.Params("id")); err != nil {
		utils.Log.Debug("cannot edit lead %s: %v", c.Params("id"), err)
	}
	return h.back(c)
}

// CancelEdit closes the edit modal without saving
func (h *LeadsHandler) CancelEdit(c *fiber.Ctx) error {
	ctrl, _ := h.controller(c)
	ctrl.CancelEdit()
	return h.back(c)
}

// Save submits the edit modal
func (h *LeadsHandler) Save(c *fiber.Ctx) error {
	ctrl, s := h.controller(c)

	editing, ok := ctrl.Editing()
	if !ok || editing.Lead.ID != c.Params("id") {
		return h.back(c)
	}

	form := forms.NewLeadForm(editing.Lead, editing.Status)
	form.Bind(formValues(c))
	update := form.LeadUpdate(editing.Lead.ID)
	if !form.Validate(middleware.Localizer(c)) {
		if err := ctrl.KeepEditDraft(update, form.Errors()); err != nil {
			utils.Log.Debug("edit session closed meanwhile: %v", err)
		}
		return h.back(c)
	}

	_, err := ctrl.Save(c.UserContext(), s.Token(), update)
	if done, rerr := h.upstreamError(c, s, err); done {
		return rerr
	}
	return h.back(c)
}

// Summary returns the copy-summary text of a lead on the current page
func (h *LeadsHandler) Summary(c *fiber.Ctx) error {
	ctrl, _ := h.controller(c)
	lead, ok := ctrl.Lead(c.Params("id"))
	if !ok {
		return utils.NotFoundError("error_lead_not_found", nil)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(leads.Summary(lead, middleware.Localizer(c), h.loc))
}
