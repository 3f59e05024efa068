package handler

import "github.com/gofiber/fiber/v2"

// Routes groups the handlers mounted by Register.
type Routes struct {
	Health     *HealthHandler
	Campaigns  *CampaignHandler
	Batches    *BatchHandler
	Redemption *RedemptionHandler
	// RedeemLimit guards the redemption endpoints. Nil disables limiting.
	RedeemLimit fiber.Handler
}

// Register mounts every API route on app.
func (r Routes) Register(app *fiber.App) {
	app.Get("/health", r.Health.Check)
	app.Get("/metrics", Metrics())

	api := app.Group("/api")

	api.Post("/campaigns", r.Campaigns.Create)
	api.Get("/campaigns", r.Campaigns.List)
	api.Get("/campaigns/active", r.Campaigns.ListActive)
	api.Get("/campaigns/:id", r.Campaigns.Get)
	api.Put("/campaigns/:id", r.Campaigns.Update)
	api.Delete("/campaigns/:id", r.Campaigns.Deactivate)
	api.Post("/campaigns/:id/reactivate", r.Campaigns.Reactivate)
	api.Get("/campaigns/:id/batches", r.Batches.ListByCampaign)

	api.Post("/batches", r.Batches.Create)
	api.Get("/batches", r.Batches.List)
	api.Get("/batches/:id", r.Batches.Get)
	api.Put("/batches/:id", r.Batches.Update)
	api.Post("/batches/:id/coupons", r.Batches.TopUp)
	api.Delete("/batches/:id", r.Batches.Deactivate)
	api.Post("/batches/:id/reactivate", r.Batches.Reactivate)
	api.Get("/batches/:id/export", r.Batches.Export)
	api.Get("/coupons/export", r.Batches.ExportAll)

	public := api.Group("/public")
	redeem := []fiber.Handler{r.Redemption.Redeem}
	redeemByCode := []fiber.Handler{r.Redemption.RedeemByCode}
	if r.RedeemLimit != nil {
		redeem = append([]fiber.Handler{r.RedeemLimit}, redeem...)
		redeemByCode = append([]fiber.Handler{r.RedeemLimit}, redeemByCode...)
	}
	public.Post("/redeem", redeem...)
	public.Get("/redeem/:code", redeemByCode...)
	public.Get("/coupon/:code", r.Redemption.Lookup)
}
