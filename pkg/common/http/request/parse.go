package request

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/adharris/fifu-queue/pkg/common/apperr"
	"github.com/adharris/fifu-queue/pkg/common/http/response"
)

var validate = validator.New()

// ParseRequest binds the JSON body into T, then checks its `validate` tags.
// An empty body leaves T at its zero value, including a chunked body whose
// length is not known up front.
func ParseRequest[T any](c *gin.Context) (*T, error) {
	var req T
	if hasBody(c.Request) {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			return nil, apperr.Wrap(err, response.CodeParamInvalid, apperr.MsgBindFailed, http.StatusBadRequest)
		}
	}

	if err := validate.Struct(req); err != nil {
		return nil, apperr.Wrap(err, response.CodeValidationFailed, apperr.MsgValidateFailed, http.StatusUnprocessableEntity)
	}

	return &req, nil
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}
