package types

import "time"

// User is the identity record returned by GET /users/me and POST /register.
type User struct {
	ID        int        `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	FullName  string     `json:"full_name,omitempty"`
	Disabled  bool       `json:"disabled"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// DisplayName returns the full name when known, otherwise the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Token is the bearer credential issued by POST /login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserLogin is the POST /login body.
type UserLogin struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserCreate is the POST /register body.
type UserCreate struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// HealthStatus is the GET /health body.
type HealthStatus struct {
	Status string `json:"status"`
}
