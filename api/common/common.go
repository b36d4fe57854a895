package common

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seyalabs/media-hub/internal/transform"
)

type Response struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, httpStatus int, status string, code string, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Status: status,
		Code:   code,
		Msg:    message,
		Data:   data,
	})
}

// RespondSuccess sends a success response with data.
func RespondSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, "success", "", "", data)
}

// RespondSuccessMessage sends a success response with message and data.
func RespondSuccessMessage(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusOK, "success", "", message, data)
}

// RespondError sends an error response with message.
func RespondError(c *gin.Context, httpStatus int, message string) {
	Respond(c, httpStatus, "error", "", message, nil)
}

// RespondTransformError 按错误分类返回状态码与稳定错误码
func RespondTransformError(c *gin.Context, err error) {
	kind := transform.KindOf(err)
	c.Header("Cache-Control", "no-store")
	Respond(c, kind.HTTPStatus(), "error", string(kind), transform.PublicMessage(err), nil)
}
