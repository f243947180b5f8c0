package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reusedev/detect-hub/internal/modules/errs"
)

var (
	ParamError            = gin.H{"code": 10001, "message": "param error"}
	ParamErrorWithMessage = func(message string) gin.H {
		return gin.H{"code": 10001, "message": message}
	}

	InternalError = gin.H{"code": 10002, "message": "internal error"}

	NotFoundWithMessage = func(message string) gin.H {
		return gin.H{"code": 10003, "message": message}
	}

	InferenceError = gin.H{"code": 10004, "message": "inference error"}
)

// FromError maps a classified error to a status and body. Persistence and
// unclassified errors never leak their message.
func FromError(err error) (int, gin.H) {
	status := errs.HTTPStatus(err)
	switch status {
	case http.StatusBadRequest:
		return status, ParamErrorWithMessage(err.Error())
	case http.StatusNotFound:
		return status, NotFoundWithMessage(err.Error())
	case http.StatusBadGateway:
		return status, InferenceError
	default:
		return status, InternalError
	}
}
