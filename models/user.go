package models

// AdminUser is a moderator or administrator account.
type AdminUser struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	AccountEnabled bool      `json:"accountEnabled"`
	EmailVerified  bool      `json:"emailVerified"`
	FirstLogin     LocalTime `json:"firstLogin"`
	LastLogin      LocalTime `json:"lastLogin"`
	CreatedDate    LocalTime `json:"createdDate"`
	UpdatedDate    LocalTime `json:"updatedDate"`
}

// UserStats summarizes the admin accounts.
type UserStats struct {
	TotalUsers               int64 `json:"totalUsers"`
	ActiveUsers              int64 `json:"activeUsers"`
	PendingVerificationUsers int64 `json:"pendingVerificationUsers"`
}

// LoginResult is the payload returned by the login endpoint.
type LoginResult struct {
	Token      string    `json:"token"`
	Username   string    `json:"username"`
	UserID     string    `json:"userId"`
	Role       Role      `json:"role"`
	FirstLogin LocalTime `json:"firstLogin"`
	LastLogin  LocalTime `json:"lastLogin"`
}

// RegisterResult is returned when an admin creates an account.
type RegisterResult struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Message  string `json:"message"`
}
