package models

// TokenReference records a currently-issued, not-yet-rotated token pair.
// Rows are written at sign-up, sign-in and refresh; rotation replaces the
// row for the superseded pair inside the same transaction that blacklists it.
type TokenReference struct {
	AccessToken  string `gorm:"type:text;primaryKey"`       // Issued access token.
	RefreshToken string `gorm:"type:text;primaryKey;index"` // Issued refresh token.
}

// TableName keeps the composite-key table under its historical name.
func (TokenReference) TableName() string { return "token_reference" }

// TokenBlacklist marks a token string as revoked. Checked on every
// validation; entries persist until the expiry sweep removes them.
type TokenBlacklist struct {
	Token string `gorm:"type:text;primaryKey"` // Revoked token literal.
}

// TableName keeps the blacklist table under its historical name.
func (TokenBlacklist) TableName() string { return "tokenblacklist" }
