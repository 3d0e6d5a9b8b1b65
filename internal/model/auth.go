package model

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest creates a user and its role profile in one step. Exactly
// one of Doctor or Patient must be set, matching Role.
type RegisterRequest struct {
	Email     string                 `json:"email" binding:"required,email"`
	Password  string                 `json:"password" binding:"required,min=8,max=72"`
	FirstName string                 `json:"first_name" binding:"required,max=100"`
	LastName  string                 `json:"last_name" binding:"required,max=100"`
	Phone     string                 `json:"phone" binding:"omitempty,max=30"`
	Role      Role                   `json:"role" binding:"required,registrable_role"`
	Doctor    *DoctorProfileRequest  `json:"doctor"`
	Patient   *PatientProfileRequest `json:"patient"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPair is returned on login, registration and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// AuthResponse bundles the signed-in user with its profile and tokens.
type AuthResponse struct {
	User    *User      `json:"user"`
	Doctor  *Doctor    `json:"doctor,omitempty"`
	Patient *Patient   `json:"patient,omitempty"`
	Tokens  *TokenPair `json:"tokens,omitempty"`
}
