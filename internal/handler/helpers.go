package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/intellipatent/intellipatent/internal/middleware"
	"github.com/intellipatent/intellipatent/internal/pkg/errcode"
	appErr "github.com/intellipatent/intellipatent/internal/pkg/errors"
	"github.com/intellipatent/intellipatent/internal/pkg/response"
)

func getSessionID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextSessionIDKey)
	sessionID, _ := value.(string)
	return sessionID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case appErr.IsClassification(err):
		response.Error(c, http.StatusBadGateway, errcode.ErrClassification, "unable to classify your query, please try again")
	case appErr.IsRetrievalStage(err):
		response.Error(c, http.StatusBadGateway, errcode.ErrRetrieval, "patent retrieval failed, please try again")
	case appErr.IsNotFound(err):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}
