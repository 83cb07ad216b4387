package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/valyala/fasthttp"

	"leadsdash/models"
)

// EncodeListQuery builds the query string of GET /leads. Empty filters are
// left out; is_active is sent only for exactly "true" or "false".
func EncodeListQuery(q models.ListQuery) string {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)

	args.Add("skip", strconv.Itoa(q.Skip))
	args.Add("limit", strconv.Itoa(q.Limit))
	if q.Filters.ID != "" {
		args.Add("lead_id", q.Filters.ID)
	}
	if q.Filters.Name != "" {
		args.Add("name", q.Filters.Name)
	}
	if active, ok := q.Filters.ActiveValue(); ok {
		args.Add("is_active", strconv.FormatBool(active))
	}
	if q.Filters.Status != "" {
		args.Add("status", q.Filters.Status)
	}

	return args.String()
}

// ListLeads fetches one page of leads
func (c *Client) ListLeads(ctx context.Context, token string, q models.ListQuery) (*models.LeadPage, error) {
	const op = "list_leads"

	req := c.newRequest(fasthttp.MethodGet, "/leads?"+EncodeListQuery(q), token)
	defer fasthttp.ReleaseRequest(req)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := c.do(ctx, op, req, resp); err != nil {
		return nil, err
	}

	var page models.LeadPage
	if err := decodeJSON(op, resp, &page); err != nil {
		return nil, err
	}
	if page.Leads == nil {
		page.Leads = []models.Lead{}
	}
	return &page, nil
}

// UpdateLead sends the mutable fields of a lead and returns the server's
// representation of the result
func (c *Client) UpdateLead(ctx context.Context, token string, update models.LeadUpdate) (*models.Lead, error) {
	const op = "update_lead"

	req := c.newRequest(fasthttp.MethodPut, "/leads/"+url.PathEscape(update.ID), token)
	defer fasthttp.ReleaseRequest(req)

	if err := setJSONBody(req, update); err != nil {
		return nil, err
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := c.do(ctx, op, req, resp); err != nil {
		return nil, err
	}

	var lead models.Lead
	if err := decodeJSON(op, resp, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}
