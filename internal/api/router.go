package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "usage-analytics/docs"
	"usage-analytics/internal/api/handler"
	"usage-analytics/pkg/router"
)

func RegisterRoutes(r *router.Router, d *handler.Dashboard, g *Gate) {
	r.Use(g.Middleware)

	r.POST("/api/v1/login", g.Login)
	r.POST("/api/v1/logout", g.Logout)
	r.GET("/api/v1/status", d.Status)
	r.GET("/api/v1/overview", d.Overview)
	r.GET("/api/v1/funnel", d.Funnel)
	r.GET("/api/v1/loads", d.ListLoads)
	// More specific routes first
	r.GET("/api/v1/companies", d.Companies)
	r.GET("/api/v1/companies/export", d.ExportCompanies)
	r.GET("/api/v1/companies/search", d.SearchCompanies)
	// Generic company route last
	r.GET("/api/v1/companies/*", d.CompanyDetail)

	r.Handle("/swagger/*", httpSwagger.WrapHandler)
}
