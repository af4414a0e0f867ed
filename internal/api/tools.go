package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/toolpane/toolpane/internal/app"
	"github.com/toolpane/toolpane/internal/invoke"
	"github.com/toolpane/toolpane/pkg/types"
)

func (s *Server) getAppHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.app.Info())
	}
}

func (s *Server) listToolsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tools := s.app.Tools()
		out := make([]types.ToolInfo, len(tools))
		for i, t := range tools {
			out[i] = t.Info()
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) getToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		t, ok := s.app.Tool(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "tool not found: " + id})
			return
		}
		c.JSON(http.StatusOK, t.Info())
	}
}

// invokeToolHandler calls a named function of a tool.
// A settled invocation is always a 200; whether it was fulfilled or rejected is in the body.
func (s *Server) invokeToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.InvokeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Function == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "function is required"})
			return
		}

		res, err := s.app.Invoke(
			c.Request.Context(),
			c.Param("id"),
			invoke.Request{Function: req.Function, Params: req.Params},
			nil,
		)
		if err != nil {
			s.writeInvokeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res.Response())
	}
}

// invokeOperationHandler calls the function a tool's content uses for an operation,
// eg- POST /tools/users/ops/load runs the loader of the users table.
func (s *Server) invokeOperationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.OperationRequest
		// the body is optional for operations without parameters
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := s.app.InvokeOperation(
			c.Request.Context(),
			c.Param("id"),
			types.Operation(c.Param("operation")),
			req.Params,
			nil,
		)
		if err != nil {
			s.writeInvokeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res.Response())
	}
}

func (s *Server) writeInvokeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrToolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrOperationNotSupported):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
