package models

import (
	"bytes"
	"encoding/json"
)

// User is the account returned by the login endpoint. It is never fetched on
// its own.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// DisplayName returns the best available name for the header bar.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// UserID accepts both string and numeric ids from the API.
type UserID string

// UnmarshalJSON implements json.Unmarshaler
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = UserID(n.String())
	return nil
}

// Credentials is what the login and registration forms collect.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
