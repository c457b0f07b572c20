package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keygate/core"
)

type errorResponse struct {
	Kind      core.Kind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable,omitempty"`
}

func errorBody(err error) (int, errorResponse) {
	var cerr *core.Error
	if !errors.As(err, &cerr) {
		return http.StatusInternalServerError, errorResponse{Kind: core.KindInternal, Message: "internal error"}
	}
	return cerr.HTTPStatus(), errorResponse{Kind: cerr.Kind, Message: cerr.Message, Retryable: cerr.Retryable()}
}

func writeError(c *gin.Context, err error) {
	status, body := errorBody(err)
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	status, body := errorBody(err)
	c.AbortWithStatusJSON(status, body)
}
