package models

import "encoding/json"

// User is the authenticated account as reported by the backend.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// UnmarshalJSON accepts both "id" and the storage "_id" key.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string `json:"id"`
		StoreID  string `json:"_id"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	if u.ID == "" {
		u.ID = raw.StoreID
	}
	u.Name = raw.Name
	if u.Name == "" {
		u.Name = raw.Username
	}
	u.Email = raw.Email
	return nil
}

// AuthResult is returned by the login and register endpoints.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
