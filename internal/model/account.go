package model

// Account is the sync-server user as returned by the accounts API.
type Account struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	MaxBackups int    `json:"max_backups"`
}
