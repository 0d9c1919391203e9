package apperr

import (
	"fmt"
)

// Generic Action Messages
const (
	MsgBindFailed     = "failed to bind"
	MsgValidateFailed = "failed to validate"
	MsgProcessFailed  = "failed to process"
)

// MapError wraps err into an AppError whose message reads "<service> <msg>".
func MapError(serviceName string, err error, code int, msg string, httpStatus int) *AppError {
	if err == nil {
		return nil
	}

	formattedMsg := fmt.Sprintf("%s %s", serviceName, msg)
	return Wrap(err, code, formattedMsg, httpStatus)
}
