package util

import (
	"fmt"
	"runtime/debug"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// ErrorGuard converts handler panics into tool error results so one bad
// argument cast cannot take the whole server down.
func ErrorGuard(handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(arguments map[string]interface{}) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithFields(logrus.Fields{
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("Tool handler panicked")
				result = mcp.NewToolResultError(fmt.Sprintf("tool panicked: %v", r))
				err = nil
			}
		}()
		return handler(arguments)
	}
}
