package middleware

import (
	"fundus-go/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS 跨域中间件
func CORS(cfg *config.Config) gin.HandlerFunc {
	return cors.New(CORSConfig(cfg))
}

// CORSConfig 由配置生成 gin-contrib/cors 的配置
//
// origins 含 "*" 时放行所有来源，此时不能同时携带凭证。
func CORSConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()

	allowAll := len(cfg.CORS.Origins) == 0
	for _, o := range cfg.CORS.Origins {
		if o == "*" {
			allowAll = true
			break
		}
	}
	if allowAll {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORS.Origins
		c.AllowCredentials = cfg.CORS.AllowCredentials
	}

	if len(cfg.CORS.AllowMethods) > 0 {
		c.AllowMethods = cfg.CORS.AllowMethods
	}
	if len(cfg.CORS.AllowHeaders) > 0 {
		c.AllowHeaders = cfg.CORS.AllowHeaders
	}
	// 下载报告时前端需要读取文件名
	c.ExposeHeaders = []string{"Content-Disposition"}
	return c
}
