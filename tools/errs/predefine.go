package errs

import "net/http"

const (
	ServerInternalError = 500
	ArgsError           = 1001
	NoPermissionError   = 1002
	RecordNotFoundError = 1004
	ConflictError       = 1005
	FileTooLargeError   = 1006
	FileTypeError       = 1007
	UnavailableError    = 1008
	TokenInvalidError   = 1501
	TokenExpiredError   = 1502
	AccountDisabled     = 1503
	PasswordError       = 1504
)

var (
	ErrInternal       = NewCodeError(ServerInternalError, "ServerInternalError", http.StatusInternalServerError)
	ErrArgs           = NewCodeError(ArgsError, "ArgsError", http.StatusBadRequest)
	ErrNoPermission   = NewCodeError(NoPermissionError, "NoPermissionError", http.StatusForbidden)
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "RecordNotFoundError", http.StatusNotFound)
	ErrConflict       = NewCodeError(ConflictError, "ConflictError", http.StatusConflict)
	ErrFileTooLarge   = NewCodeError(FileTooLargeError, "FileTooLargeError", http.StatusBadRequest)
	ErrFileType       = NewCodeError(FileTypeError, "FileTypeError", http.StatusUnsupportedMediaType)
	ErrUnavailable    = NewCodeError(UnavailableError, "ServiceUnavailable", http.StatusServiceUnavailable)
	ErrTokenInvalid   = NewCodeError(TokenInvalidError, "TokenInvalidError", http.StatusUnauthorized)
	ErrTokenExpired   = NewCodeError(TokenExpiredError, "TokenExpiredError", http.StatusUnauthorized)
	ErrAccountDisable = NewCodeError(AccountDisabled, "AccountDisabled", http.StatusForbidden)
	ErrPassword       = NewCodeError(PasswordError, "PasswordError", http.StatusUnauthorized)
)
