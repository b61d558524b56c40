package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
)

type Deps struct {
	SessionHandler      *SessionHTTP
	CartHandler         *CartHTTP
	CheckoutHandler     *CheckoutHTTP
	CatalogHandler      *CatalogHTTP
	NotificationHandler *NotificationHTTP
	UIHandler           *UIHTTP
	OrdersHandler       *OrdersHTTP
	AdminHandler        *AdminHTTP

	Guard *middleware.SessionGuard
	// Ready reports whether the process can serve session-bound requests.
	Ready func() bool
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil && !d.Ready() {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	e.GET("/session", d.SessionHandler.GetSession)
	e.POST("/session/login", d.SessionHandler.Login)
	e.POST("/session/logout", d.SessionHandler.Logout)
	e.POST("/session/onboarding", d.SessionHandler.CompleteOnboarding, d.Guard.RequireSignedIn)

	profile := e.Group("/profile", d.Guard.RequireSession)
	profile.PUT("", d.SessionHandler.UpdateProfile)
	profile.DELETE("", d.SessionHandler.DeleteAccount)

	products := e.Group("/products", d.Guard.RequireSession)
	products.GET("", d.CatalogHandler.ListProducts)
	products.GET("/search", d.CatalogHandler.Search)

	cart := e.Group("/cart", d.Guard.RequireSession)
	cart.GET("", d.CartHandler.GetCart)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.POST("/:id", d.CartHandler.AddToCart)
	cart.DELETE("/:id", d.CartHandler.RemoveFromCart)

	e.POST("/checkout", d.CheckoutHandler.PlaceOrder, d.Guard.RequireRole(models.RoleBuyer))

	e.GET("/orders", d.OrdersHandler.ListBuyerOrders, d.Guard.RequireRole(models.RoleBuyer))

	seller := e.Group("/seller", d.Guard.RequireRole(models.RoleSeller))
	seller.GET("/products", d.OrdersHandler.ListSellerProducts)
	seller.POST("/products", d.OrdersHandler.CreateSellerProduct)
	seller.DELETE("/products/:id", d.OrdersHandler.DeleteSellerProduct)
	seller.GET("/orders", d.OrdersHandler.ListSellerOrders)
	seller.PUT("/orders/:id", d.OrdersHandler.UpdateSellerOrderStatus)

	admin := e.Group("/admin", d.Guard.RequireRole(models.RoleAdmin))
	admin.GET("/dashboard", d.AdminHandler.Dashboard)
	admin.GET("/stats", d.AdminHandler.Stats)
	admin.GET("/users", d.AdminHandler.ListUsers)
	admin.DELETE("/users/:id", d.AdminHandler.DeleteUser)
	admin.PATCH("/users/:id/status", d.AdminHandler.UpdateUserStatus)
	admin.GET("/orders", d.AdminHandler.ListOrders)
	admin.PATCH("/orders/:id/status", d.AdminHandler.UpdateOrderStatus)

	notifications := e.Group("/notifications", d.Guard.RequireSession)
	notifications.GET("", d.NotificationHandler.List)
	notifications.DELETE("", d.NotificationHandler.ClearAll)
	notifications.GET("/stats", d.NotificationHandler.Stats)
	notifications.POST("/refresh", d.NotificationHandler.Refresh)
	notifications.POST("/read-all", d.NotificationHandler.MarkAllAsRead)
	notifications.POST("/:id/read", d.NotificationHandler.MarkAsRead)
	notifications.DELETE("/:id", d.NotificationHandler.Delete)

	e.GET("/ui/toggles", d.UIHandler.List)
	e.POST("/ui/toggles/:name", d.UIHandler.Toggle)
}
