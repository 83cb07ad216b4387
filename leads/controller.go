// Package leads owns the state behind the leads dashboard: filters, the
// pagination cursor, the fetched page and the edit session.
package leads

import (
	"context"
	"errors"
	"sync"

	"leadsdash/models"
)

// Message ids of the user-visible errors the controller sets
const (
	MsgNotAuthenticated = "error_not_authenticated"
	MsgLoadFailed       = "error_load_failed"
	MsgSaveFailed       = "error_save_failed"
	MsgLeadNotFound     = "error_lead_not_found"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a token and
	// there is none
	ErrNotAuthenticated = errors.New("leads: not authenticated")
	// ErrNoEditSession is returned by Save when no lead is being edited
	ErrNoEditSession = errors.New("leads: no lead is being edited")
	// ErrLeadNotFound is returned when an id is not on the current page
	ErrLeadNotFound = errors.New("leads: lead not on current page")
	// ErrStaleResponse is returned when a newer fetch superseded this one
	ErrStaleResponse = errors.New("leads: response superseded by a newer fetch")
)

// Service is the part of the leads API the controller uses
type Service interface {
	ListLeads(ctx context.Context, token string, q models.ListQuery) (*models.LeadPage, error)
	UpdateLead(ctx context.Context, token string, update models.LeadUpdate) (*models.Lead, error)
}

// EditSession is an open edit modal
type EditSession struct {
	Lead   models.LeadUpdate
	Errors map[string]string // field name -> message id
	// Status is the lead's status when editing began. The form offers it
	// even when it is not one of models.Statuses.
	Status string
}

// deps are the values whose change triggers a new fetch
type deps struct {
	page    int
	limit   int
	applied models.LeadFilters
	token   string
}

// Controller is the per-session state of the leads dashboard. It is safe for
// concurrent use; the lock is never held across a network call.
type Controller struct {
	svc Service

	mu       sync.Mutex
	limit    int
	page     int
	draft    models.LeadFilters
	applied  models.LeadFilters
	leads    []models.Lead
	total    int
	expanded map[string]bool
	editing  *EditSession
	errMsg   string
	loading  bool

	seq      uint64 // id of the latest issued fetch
	fetched  bool
	lastDeps deps

	onStale func()
}

// NewController creates a controller with a fixed page size
func NewController(svc Service, limit int) *Controller {
	if limit <= 0 {
		limit = 10
	}
	return &Controller{
		svc:      svc,
		limit:    limit,
		leads:    []models.Lead{},
		expanded: make(map[string]bool),
	}
}

// OnStale registers a hook run whenever an out-of-order response is dropped
func (c *Controller) OnStale(fn func()) {
	c.mu.Lock()
	c.onStale = fn
	c.mu.Unlock()
}

func (c *Controller) depsLocked(token string) deps {
	return deps{page: c.page, limit: c.limit, applied: c.applied, token: token}
}

// Sync fetches when page, limit, applied filters or token changed since the
// last fetch, and does nothing otherwise.
func (c *Controller) Sync(ctx context.Context, token string) error {
	c.mu.Lock()
	d := c.depsLocked(token)
	if c.fetched && d == c.lastDeps {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.Fetch(ctx, token)
}

// Refresh fetches unconditionally; it is the user's retry
func (c *Controller) Refresh(ctx context.Context, token string) error {
	return c.Fetch(ctx, token)
}

// Fetch loads the current page with the applied filters. Without a token it
// sets the not-authenticated error and sends nothing. On failure the previous
// page is kept. A response is dropped with ErrStaleResponse when a newer fetch
// was issued while it was in flight.
func (c *Controller) Fetch(ctx context.Context, token string) error {
	c.mu.Lock()
	if token == "" {
		c.errMsg = MsgNotAuthenticated
		c.loading = false
		c.mu.Unlock()
		return ErrNotAuthenticated
	}

	c.seq++
	seq := c.seq
	c.fetched = true
	c.lastDeps = c.depsLocked(token)
	q := models.ListQuery{
		Filters: c.applied,
		Skip:    c.page * c.limit,
		Limit:   c.limit,
	}
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()

	page, err := c.svc.ListLeads(ctx, token, q)

	c.mu.Lock()
	if seq != c.seq {
		hook := c.onStale
		c.mu.Unlock()
		if hook != nil {
			hook()
		}
		return ErrStaleResponse
	}
	defer c.mu.Unlock()

	c.loading = false
	if err != nil {
		c.errMsg = MsgLoadFailed
		return err
	}

	c.leads = page.Leads
	c.total = page.Total
	return nil
}

// SetDraft stores in-progress filter values without applying them
func (c *Controller) SetDraft(f models.LeadFilters) {
	c.mu.Lock()
	c.draft = f
	c.mu.Unlock()
}

// ApplyFilters makes f the applied filters and goes back to the first page
func (c *Controller) ApplyFilters(f models.LeadFilters) {
	c.mu.Lock()
	c.draft = f
	c.applied = f
	c.page = 0
	c.mu.Unlock()
}

// ClearFilters resets draft and applied filters and goes back to the first
// page
func (c *Controller) ClearFilters() {
	c.mu.Lock()
	c.draft = models.LeadFilters{}
	c.applied = models.LeadFilters{}
	c.page = 0
	c.mu.Unlock()
}

// NextPage advances the cursor unless the current page is the last one
func (c *Controller) NextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paginationLocked().HasNext() {
		return false
	}
	c.page++
	return true
}

// PrevPage moves the cursor back unless it is on the first page
func (c *Controller) PrevPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.page == 0 {
		return false
	}
	c.page--
	return true
}

func (c *Controller) paginationLocked() models.Pagination {
	return models.Pagination{Page: c.page, Limit: c.limit, Total: c.total}
}

// ToggleRow expands or collapses the row of id
func (c *Controller) ToggleRow(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expanded[id] {
		delete(c.expanded, id)
	} else {
		c.expanded[id] = true
	}
}

// Expanded reports whether the row of id shows its collected data
func (c *Controller) Expanded(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expanded[id]
}

// Lead returns the lead with id from the current page
func (c *Controller) Lead(id string) (models.Lead, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return models.Lead{}, false
	}
	return c.leads[i], true
}

func (c *Controller) indexLocked(id string) int {
	for i, l := range c.leads {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Edit opens the edit session seeded from the lead with id
func (c *Controller) Edit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		c.errMsg = MsgLeadNotFound
		return ErrLeadNotFound
	}
	c.editing = &EditSession{Lead: c.leads[i].Editable(), Status: c.leads[i].Status}
	c.errMsg = ""
	return nil
}

// CancelEdit closes the edit session
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.editing = nil
	c.mu.Unlock()
}

// Editing returns a copy of the open edit session
func (c *Controller) Editing() (EditSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editing == nil {
		return EditSession{}, false
	}
	return c.editing.clone(), true
}

// KeepEditDraft leaves the modal open showing the submitted values and their
// validation errors
func (c *Controller) KeepEditDraft(update models.LeadUpdate, fieldErrors map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editing == nil {
		return ErrNoEditSession
	}
	update.ID = c.editing.Lead.ID
	c.editing = &EditSession{Lead: update, Errors: fieldErrors, Status: c.editing.Status}
	return nil
}

// Save sends update for the lead being edited. On success the row is replaced
// with the server's representation and the modal closes. On failure the modal
// stays open with the submitted values and the save error is set.
func (c *Controller) Save(ctx context.Context, token string, update models.LeadUpdate) (*models.Lead, error) {
	c.mu.Lock()
	if c.editing == nil {
		c.mu.Unlock()
		return nil, ErrNoEditSession
	}
	update.ID = c.editing.Lead.ID
	status := c.editing.Status
	if token == "" {
		c.errMsg = MsgNotAuthenticated
		c.editing = &EditSession{Lead: update, Status: status}
		c.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	c.loading = true
	c.mu.Unlock()

	saved, err := c.svc.UpdateLead(ctx, token, update)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.loading = false
	if err != nil {
		c.errMsg = MsgSaveFailed
		c.editing = &EditSession{Lead: update, Status: status}
		return nil, err
	}

	c.replaceLocked(*saved)
	c.editing = nil
	c.errMsg = ""
	return saved, nil
}

// Replace merges a lead updated elsewhere into the current page
func (c *Controller) Replace(lead models.Lead) {
	c.mu.Lock()
	c.replaceLocked(lead)
	c.mu.Unlock()
}

func (c *Controller) replaceLocked(lead models.Lead) {
	if i := c.indexLocked(lead.ID); i >= 0 {
		leads := make([]models.Lead, len(c.leads))
		copy(leads, c.leads)
		leads[i] = lead
		c.leads = leads
	}
}

// DismissError clears the page-level error
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
}

// View is an immutable snapshot for rendering
type View struct {
	Leads      []models.Lead
	Pagination models.Pagination
	Draft      models.LeadFilters
	Applied    models.LeadFilters
	Expanded   map[string]bool
	Editing    *EditSession
	Error      string // message id, empty when none
	Loading    bool
}

// Snapshot copies the current state
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	expanded := make(map[string]bool, len(c.expanded))
	for id := range c.expanded {
		expanded[id] = true
	}

	v := View{
		Leads:      c.leads,
		Pagination: c.paginationLocked(),
		Draft:      c.draft,
		Applied:    c.applied,
		Expanded:   expanded,
		Error:      c.errMsg,
		Loading:    c.loading,
	}
	if c.editing != nil {
		e := c.editing.clone()
		v.Editing = &e
	}
	return v
}

func (e *EditSession) clone() EditSession {
	out := EditSession{Lead: e.Lead, Status: e.Status}
	if e.Errors != nil {
		out.Errors = make(map[string]string, len(e.Errors))
		for k, v := range e.Errors {
			out.Errors[k] = v
		}
	}
	return out
}
