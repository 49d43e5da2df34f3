package api

import (
	"github.com/gin-gonic/gin"

	"github.com/escrowhq/escrow"
	"github.com/escrowhq/escrow/api/middleware"
	"github.com/escrowhq/escrow/config"
)

type Api struct {
	escrow *escrow.Escrow
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/transactions", a.CreateTransaction)
	router.GET("/transactions", a.GetAllTransactions)
	router.GET("/transactions/:id", a.GetTransaction)
	router.POST("/transactions/:id/submit-completion", a.SubmitWorkCompletion)
	router.POST("/transactions/:id/approve", a.ApproveWork)
	router.POST("/transactions/:id/request-revision", a.RequestRevision)
	router.POST("/transactions/:id/refund", a.RefundTransaction)
	router.POST("/transactions/:id/disputes", a.OpenDispute)
	router.GET("/transactions/:id/disputes", a.GetDisputesByTransaction)

	router.GET("/disputes/:id", a.GetDispute)
	router.POST("/disputes/:id/resolve", a.ResolveDispute)

	return a.router
}

func NewAPI(e *escrow.Escrow) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	a := &Api{escrow: e, router: r}
	r.POST("/webhooks/gateway", a.GatewayWebhook)

	return a
}
