package model

import "time"

// User is the record stored per local session. The primary account lives at
// the top level; additional linked accounts are kept in Accounts.
type User struct {
	ID              string      `json:"id"`
	PUUID           string      `json:"puuid,omitempty"`
	Username        string      `json:"username,omitempty"`
	Region          string      `json:"region,omitempty"`
	Auth            *AuthBundle `json:"auth,omitempty"`
	AuthFailures    int         `json:"authFailures"`
	LastFetchedData int64       `json:"lastFetchedData"` // epoch ms
	Accounts        []*User     `json:"accounts,omitempty"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// AuthBundle holds whatever is needed to talk to the game backend or to
// re-derive tokens later.
type AuthBundle struct {
	AccessToken string            `json:"rso,omitempty"`
	IDToken     string            `json:"idt,omitempty"`
	Entitlement string            `json:"ent,omitempty"`
	Cookies     map[string]string `json:"cookies,omitempty"`
	Login       string            `json:"login,omitempty"`
	Password    string            `json:"password,omitempty"` // base64
	Pending2FA  int64             `json:"waiting2FA,omitempty"`
}

// PublicUser is the subset of a user record returned to the browser.
type PublicUser struct {
	Username string `json:"username"`
	Region   string `json:"region"`
	PUUID    string `json:"puuid"`
}

// IsPending reports whether a second-factor challenge is outstanding.
func (a *AuthBundle) IsPending() bool {
	return a != nil && a.Pending2FA > 0
}

// HasTokens reports whether the bundle carries a usable bearer token.
// A pending challenge supersedes any token fields.
func (a *AuthBundle) HasTokens() bool {
	return a != nil && !a.IsPending() && a.AccessToken != ""
}

// HasCookies reports whether the bundle can re-derive tokens from cookies.
func (a *AuthBundle) HasCookies() bool {
	return a != nil && len(a.Cookies) > 0
}

// HasCredentials reports whether stored credentials are available.
func (a *AuthBundle) HasCredentials() bool {
	return a != nil && a.Login != "" && a.Password != ""
}

// Account returns the record for puuid, falling back to the primary account.
func (u *User) Account(puuid string) *User {
	if puuid == "" || puuid == u.PUUID {
		return u
	}
	for _, acc := range u.Accounts {
		if acc != nil && acc.PUUID == puuid {
			return acc
		}
	}
	return u
}

// Public returns the browser-facing view of the record.
func (u *User) Public() PublicUser {
	return PublicUser{
		Username: u.Username,
		Region:   u.Region,
		PUUID:    u.PUUID,
	}
}

// PendingSince returns when the outstanding challenge was issued.
func (u *User) PendingSince() time.Time {
	if u.Auth == nil || u.Auth.Pending2FA == 0 {
		return time.Time{}
	}
	return time.UnixMilli(u.Auth.Pending2FA)
}
