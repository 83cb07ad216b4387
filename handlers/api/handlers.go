package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"leadsdash/forms"
	"leadsdash/leads"
	"leadsdash/middleware"
	"leadsdash/models"
	"leadsdash/utils"
)

const maxPageSize = 100

// LeadsHandler exposes the leads of the signed-in user as JSON
type LeadsHandler struct {
	client   *Client
	leads    *leads.Registry
	pageSize int
	loc      *time.Location
}

// NewLeadsHandler creates the JSON leads handler
func NewLeadsHandler(client *Client, registry *leads.Registry, pageSize int, loc *time.Location) *LeadsHandler {
	return &LeadsHandler{
		client:   client,
		leads:    registry,
		pageSize: pageSize,
		loc:      loc,
	}
}

// rejected answers 401 after logging the session out when the API refused
// its token
func rejected(c *fiber.Ctx, err error) (bool, error) {
	if !errors.Is(err, ErrUnauthorized) {
		return false, nil
	}
	if s := middleware.CurrentSession(c); s != nil {
		if lerr := s.Reject(); lerr != nil {
			utils.Log.Warn("failed to clear rejected token: %v", lerr)
		}
	}
	return true, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": utils.T(middleware.Localizer(c), "error_session_expired"),
	})
}

// ListLeads proxies GET /leads with the session token
func (h *LeadsHandler) ListLeads(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", h.pageSize)
	if limit <= 0 || limit > maxPageSize {
		return utils.BadRequestError("limit must be between 1 and "+strconv.Itoa(maxPageSize), nil)
	}
	skip := c.QueryInt("skip", 0)
	if skip < 0 {
		return utils.BadRequestError("skip must not be negative", nil)
	}

	q := models.ListQuery{
		Skip:  skip,
		Limit: limit,
		Filters: models.LeadFilters{
			ID:       strings.TrimSpace(c.Query("lead_id")),
			Name:     strings.TrimSpace(c.Query("name")),
			IsActive: c.Query("is_active"),
			Status:   c.Query("status"),
		},
	}

	page, err := h.client.ListLeads(c.UserContext(), middleware.CurrentSession(c).Token(), q)
	if err != nil {
		if done, rerr := rejected(c, err); done {
			return rerr
		}
		return utils.BadGatewayError("error_load_failed", err)
	}

	return c.JSON(page)
}

// UpdateLead validates and forwards an update. A status outside the known
// list is accepted only when it is the lead's status on the dashboard's
// current page. The dashboard's copy of the lead is refreshed with the
// server's answer.
func (h *LeadsHandler) UpdateLead(c *fiber.Ctx) error {
	var update models.LeadUpdate
	if err := c.BodyParser(&update); err != nil {
		return utils.BadRequestError("invalid request body", err)
	}
	update.ID = c.Params("id")

	ctrl := h.leads.Get(middleware.SessionID(c))
	current := ""
	if lead, ok := ctrl.Lead(update.ID); ok {
		current = lead.Status
	}

	localizer := middleware.Localizer(c)
	form := forms.NewLeadForm(update, current)
	if !form.Validate(localizer) {
		errs := map[string]string{}
		for _, f := range form.Fields {
			if f.Error != "" {
				errs[f.Name] = f.Error
			}
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": errs})
	}

	lead, err := h.client.UpdateLead(c.UserContext(), middleware.CurrentSession(c).Token(), form.LeadUpdate(update.ID))
	if err != nil {
		if done, rerr := rejected(c, err); done {
			return rerr
		}
		return utils.BadGatewayError("error_save_failed", err)
	}

	ctrl.Replace(*lead)
	return c.JSON(lead)
}

// Summary returns the copy-summary of a lead on the dashboard's current page
func (h *LeadsHandler) Summary(c *fiber.Ctx) error {
	lead, ok := h.leads.Get(middleware.SessionID(c)).Lead(c.Params("id"))
	if !ok {
		return utils.NotFoundError("error_lead_not_found", nil)
	}

	return c.JSON(fiber.Map{
		"id":      lead.ID,
		"summary": leads.Summary(lead, middleware.Localizer(c), h.loc),
	})
}
