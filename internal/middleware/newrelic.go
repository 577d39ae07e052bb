package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"

	"ridehail/internal/logging"
)

// NewRelicAttributes decorates the transaction started by nrgin with the
// request id and caller identity, and reports handler errors on it.
// It must be registered after nrgin.Middleware and the identity middleware.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if id := logging.RequestID(c.Request.Context()); id != "" {
			txn.AddAttribute("request_id", id)
		}
		if id := UserID(c); id != "" {
			txn.AddAttribute("user_id", id)
			txn.AddAttribute("user_role", string(Role(c)))
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
