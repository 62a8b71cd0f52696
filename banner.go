package wsgate

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tokmz/wsgate/pkg/ws"
)

// Version 网关版本号
const Version = "0.3.0"

// banner ASCII Art
const banner = `
██╗    ██╗███████╗ ██████╗  █████╗ ████████╗███████╗
██║    ██║██╔════╝██╔════╝ ██╔══██╗╚══██╔══╝██╔════╝   WebSocket 网关
██║ █╗ ██║███████╗██║  ███╗███████║   ██║   █████╗     路由 / 中间件 / 主题广播 / 持久化发送队列
██║███╗██║╚════██║██║   ██║██╔══██║   ██║   ██╔══╝     open: %s
╚███╔███╔╝███████║╚██████╔╝██║  ██║   ██║   ███████╗   version: %s
 ╚══╝╚══╝ ╚══════╝ ╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚══════╝
`

// printBanner 打印启动 banner、管理端点与 WebSocket 路由表
func (e *Engine) printBanner(addr string) {
	out := os.Stdout

	var open string
	switch {
	case strings.HasPrefix(addr, ":"):
		open = "ws://127.0.0.1" + addr
	case strings.Contains(addr, ":"):
		open = "ws://" + addr
	default:
		open = "ws://127.0.0.1:" + addr
	}

	fPrint(out, banner, open, Version)
	fPrint(out, "\n")

	if routes := e.engine.Routes(); len(routes) > 0 {
		printRoutes(out, routes, e.config.Mode)
	}
	printWSRoutes(out, e.gateway.Routes(), e.config.Mode)
	fPrint(out, "\n")

	mode := e.config.Mode
	if mode == gin.DebugMode {
		fPrint(out, "[wsgate] Running in \"%s\" mode. Switch to \"release\" mode in production.\n", mode)
	} else {
		fPrint(out, "[wsgate] Running in \"%s\" mode.\n", mode)
	}
	fPrint(out, "[wsgate] Go version: %s | OS: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fPrint(out, "[wsgate] Listening on %s\n", addr)
}

// methodColor 根据 HTTP 方法返回 ANSI 颜色码
func methodColor(method string) string {
	switch method {
	case "GET":
		return "\033[34m"
	case "POST":
		return "\033[32m"
	case "WS":
		return "\033[36m"
	default:
		return "\033[0m"
	}
}

const resetColor = "\033[0m"

// printRoutes 格式化打印 HTTP 路由表（Gin 风格 + 颜色）
func printRoutes(out io.Writer, routes gin.RoutesInfo, mode string) {
	maxPathLen := 0
	for _, r := range routes {
		maxPathLen = max(maxPathLen, len(r.Path))
	}
	for _, r := range routes {
		fPrint(out, "[wsgate-%s] %s %-7s %s %-*s --> %s\n",
			mode,
			methodColor(r.Method), r.Method, resetColor,
			maxPathLen, r.Path,
			r.Handler)
	}
}

// printWSRoutes 打印 WebSocket 路由及其路由级中间件
func printWSRoutes(out io.Writer, routes []*ws.Route, mode string) {
	maxPathLen := 0
	for _, r := range routes {
		maxPathLen = max(maxPathLen, len(r.Pattern))
	}
	for _, r := range routes {
		names := make([]string, 0, len(r.Middlewares()))
		for _, m := range r.Middlewares() {
			names = append(names, m.Name())
		}
		fPrint(out, "[wsgate-%s] %s %-7s %s %-*s --> [%s]\n",
			mode,
			methodColor("WS"), "WS", resetColor,
			maxPathLen, r.Pattern,
			strings.Join(names, ", "))
	}
}

// silenceGin 静默 Gin 的默认输出
func silenceGin() {
	gin.DefaultWriter = io.Discard
	gin.DefaultErrorWriter = io.Discard
}

// fPrint 打印到 writer，忽略错误（banner 输出场景）
func fPrint(out io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(out, format, a...)
}
