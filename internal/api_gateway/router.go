package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/invoice-reconciliation/internal/api_gateway/handler"
	"github.com/invoice-reconciliation/internal/api_gateway/middleware"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	reconciliationHandler *handler.ReconciliationHandler,
	ruleHandler *handler.RuleHandler,
	checks map[string]HealthChecker,
) {
	// Recovery must stay inside Logger for recovered panics to be logged as 500s
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/reconciliations", reconciliationHandler.Create)

		invoices := v1.Group("/invoices")
		{
			invoices.GET("/:id/reconciliation", reconciliationHandler.GetInvoiceReconciliation)
			invoices.POST("/:id/approval", reconciliationHandler.RecordApproval)
		}

		v1.GET("/line-items/:id/validation", reconciliationHandler.GetLineItemValidation)

		rules := v1.Group("/rules")
		{
			rules.GET("", ruleHandler.List)
			rules.POST("", ruleHandler.Create)
			rules.POST("/validate", ruleHandler.Validate)
			rules.PUT("/:id", ruleHandler.Supersede)
		}

		v1.POST("/hms-mappings", ruleHandler.UpsertMapping)
	}

	r.GET("/health", healthHandler(checks))
}

// healthHandler pings every dependency; any failure turns the response into 503
func healthHandler(checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dependencies := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				dependencies[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			dependencies[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "dependencies": dependencies, "timestamp": time.Now().UTC()})
	}
}
