package wsgate

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteInfo /routes 返回的路由信息
type RouteInfo struct {
	Pattern     string   `json:"pattern"`
	Middlewares []string `json:"middlewares"`
}

func (e *Engine) registerAdmin() {
	prefix := e.config.Admin.Prefix
	e.engine.GET(joinAdminPath(prefix, "/healthz"), e.healthz)
	e.engine.GET(joinAdminPath(prefix, "/stats"), e.stats)
	e.engine.GET(joinAdminPath(prefix, "/routes"), e.routes)

	metrics := e.config.Admin.MetricsPath
	if metrics == "" {
		metrics = "/metrics"
	}
	e.engine.GET(joinAdminPath(prefix, metrics), gin.WrapH(promhttp.HandlerFor(e.config.Gatherer, promhttp.HandlerOpts{})))
}

func (e *Engine) healthz(c *gin.Context) {
	if e.gateway.ShuttingDown() {
		respond(c, http.StatusServiceUnavailable, Fail(http.StatusServiceUnavailable, "shutting down"))
		return
	}
	respond(c, http.StatusOK, Success(gin.H{"status": "ok"}))
}

func (e *Engine) stats(c *gin.Context) {
	respond(c, http.StatusOK, Success(e.gateway.Stats()))
}

func (e *Engine) routes(c *gin.Context) {
	routes := e.gateway.Routes()
	out := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		info := RouteInfo{Pattern: r.Pattern, Middlewares: []string{}}
		for _, m := range r.Middlewares() {
			info.Middlewares = append(info.Middlewares, m.Name())
		}
		out = append(out, info)
	}
	respond(c, http.StatusOK, Success(out))
}

func joinAdminPath(prefix, path string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix + path
}
