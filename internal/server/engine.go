package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/signgw/internal/health"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

func newEngine() *gin.Engine {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})
	return gin.New()
}

// NewGatewayEngine routes every request to handler. The catch-all route
// keeps gin from writing its own 404 and 405 responses.
func NewGatewayEngine(handler http.Handler) *gin.Engine {
	engine := newEngine()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.Any("/*path", gin.WrapH(handler))
	return engine
}

// NewAdminEngine serves metrics at metricsPath and the health probes.
func NewAdminEngine(metricsPath string, metrics http.Handler, probes *health.Handler) *gin.Engine {
	engine := newEngine()
	engine.Use(gin.Recovery())
	if metrics != nil {
		engine.GET(metricsPath, gin.WrapH(metrics))
	}
	if probes != nil {
		probes.RegisterRoutes(engine)
	}
	return engine
}
