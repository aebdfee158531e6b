package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication.
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// Validation.
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources.
	ErrNotFound  ErrCode = "NOT_FOUND"
	ErrForbidden ErrCode = "FORBIDDEN"

	// Exam-specific.
	ErrExamNotOpen      ErrCode = "EXAM_NOT_OPEN"
	ErrExamWindowClosed ErrCode = "EXAM_WINDOW_CLOSED"
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"

	// Server.
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// Message returns a human-readable message for a given error code.
func Message(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The identifier format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrExamNotOpen:
		return "This exam is not open yet."
	case ErrExamWindowClosed:
		return "The exam window has closed."
	case ErrAlreadySubmitted:
		return "This exam has already been submitted."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
