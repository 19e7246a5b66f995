package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrExamMismatch      ErrCode = "EXAM_MISMATCH"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidOption  ErrCode = "INVALID_OPTION"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrNoContent       ErrCode = "NO_CONTENT"
	ErrExamNotStarted  ErrCode = "EXAM_NOT_STARTED"
	ErrExamEnded       ErrCode = "EXAM_ENDED"
	ErrSessionLocked   ErrCode = "SESSION_LOCKED"
	ErrSessionInactive ErrCode = "SESSION_NOT_ACTIVE"
	ErrSubmitFailed    ErrCode = "SUBMIT_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrExamMismatch:
		return "Your token does not grant access to this exam."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidOption:
		return "The selected option does not exist for this question."

	case ErrNotFound:
		return "Resource not found."
	case ErrNoContent:
		return "This exam has no questions available."
	case ErrExamNotStarted:
		return "This exam has not started yet."
	case ErrExamEnded:
		return "This exam has already ended."
	case ErrSessionLocked:
		return "Your exam is being submitted. Answers can no longer be changed."
	case ErrSessionInactive:
		return "Your exam session is not active."
	case ErrSubmitFailed:
		return "Submitting your exam failed. Please try again."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
