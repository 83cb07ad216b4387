package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Status values a lead moves through. The server may send others; those are
// shown verbatim.
const (
	StatusContacted   = "contacted"
	StatusResponded   = "responded"
	StatusCompleted   = "completed"
	StatusQuoted      = "quoted"
	StatusRecontacted = "recontacted"
)

// Statuses lists the known statuses in display order.
var Statuses = []string{
	StatusContacted,
	StatusResponded,
	StatusCompleted,
	StatusQuoted,
	StatusRecontacted,
}

// Lead represents a prospective customer as returned by the leads API
type Lead struct {
	ID            string        `json:"id"` // phone-number-like identifier
	Name          string        `json:"name"`
	IsActive      bool          `json:"is_active"`
	Status        string        `json:"status"`
	CreatedAt     string        `json:"created_at"`
	CollectedData CollectedData `json:"collected_data"`
}

// LeadUpdate holds the mutable fields of a lead
type LeadUpdate struct {
	ID       string `json:"-"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	Status   string `json:"status"`
}

// Editable extracts the fields the edit form works on.
func (l Lead) Editable() LeadUpdate {
	return LeadUpdate{
		ID:       l.ID,
		Name:     l.Name,
		IsActive: l.IsActive,
		Status:   l.Status,
	}
}

// LeadPage is one page of the lead listing
type LeadPage struct {
	Leads []Lead `json:"leads"`
	Total int    `json:"total"`
}

// DataEntry is a single collected_data pair.
type DataEntry struct {
	Key   string
	Value string
}

// CollectedData keeps the free-form key/value data gathered about a lead in
// the order the server sent it.
type CollectedData []DataEntry

// Get returns the value stored under key.
func (d CollectedData) Get(key string) (string, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// UnmarshalJSON decodes a JSON object (or null) keeping key order. Values
// that are not strings are kept as their JSON text.
func (d *CollectedData) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("collected_data: expected object, got %v", tok)
	}

	entries := CollectedData{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("collected_data: unexpected key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("collected_data: value for %q: %w", key, err)
		}

		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			value = strings.TrimSpace(string(raw))
		}
		entries = append(entries, DataEntry{Key: key, Value: value})
	}

	*d = entries
	return nil
}

// MarshalJSON encodes the entries back into a JSON object in order.
func (d CollectedData) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
