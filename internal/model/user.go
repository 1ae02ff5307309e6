package model

import "encoding/json"

// User is a row of the user relation. ViewUser rows share the same shape.
type User struct {
	ID                int64           `json:"id"`
	UserName          string          `json:"user_name"`
	Email             *string         `json:"email,omitempty"`
	UserIdentificator string          `json:"user_identificator"`
	UserData          json.RawMessage `json:"user_data,omitempty"`
	CreatedAt         *Timestamp      `json:"created_at,omitempty"`
	UpdatedAt         *Timestamp      `json:"updated_at,omitempty"`
}

// ViewUser is a row of the read-only view_user relation used by the fallback login.
type ViewUser = User

// EmailOrEmpty returns the user's email, or "" when unset.
func (u *User) EmailOrEmpty() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}
