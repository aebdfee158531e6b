package model

// Student is a minimal student identity as known to the client.
type Student struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	ClassID string `json:"class_id"`
}

// LoginRequest is the payload for a student login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginResponse carries the issued bearer token and the student it belongs to.
type LoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}
