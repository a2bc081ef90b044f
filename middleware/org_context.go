package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pos-service/models"
)

const orgContextKey = "org_context"

// OrgContext reads the organizational scope from gateway headers into the
// request context. Authentication happens upstream; by the time a request
// reaches this service the gateway has already stamped these headers.
// RegisterID is the one hard requirement here, since every cart operation
// is keyed by register.
func OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		org := models.OrgContext{
			TenantID:   c.GetHeader("X-Tenant-ID"),
			CompanyID:  c.GetHeader("X-Company-ID"),
			LocationID: c.GetHeader("X-Location-ID"),
			RegisterID: c.GetHeader("X-Register-ID"),
			ClerkID:    c.GetHeader("X-Clerk-ID"),
		}

		if org.RegisterID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-Register-ID header"})
			c.Abort()
			return
		}

		c.Set(orgContextKey, org)
		c.Next()
	}
}

// OrgFrom returns the org context stamped on the request.
func OrgFrom(c *gin.Context) models.OrgContext {
	if v, ok := c.Get(orgContextKey); ok {
		if org, ok := v.(models.OrgContext); ok {
			return org
		}
	}
	return models.OrgContext{}
}
