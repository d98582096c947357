package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/app/controllers"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/middleware"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/ratelimit"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", ratelimit.New(h.deps.RateLimit))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	authController := controllers.NewAuthController(h.deps.Auth)
	courseController := controllers.NewCourseController(h.deps.Catalog)
	checkoutController := controllers.NewCheckoutController(h.deps.Checkout, h.deps.Ledger)
	adminController := controllers.NewAdminController(h.deps.Statistics)

	requireCredential := middleware.RequireCredential(h.deps.Auth)

	user := v1.Group("/user")
	user.Post("/signup", authController.HandleUserSignup)
	user.Post("/login", authController.HandleUserLogin)
	user.Get("/logout", requireCredential, authController.HandleLogout)
	user.Post("/logout", requireCredential, authController.HandleLogout)
	user.Get("/me", requireCredential, middleware.RequireUser, authController.HandleMe)
	user.Get("/purchases", requireCredential, middleware.RequireUser, checkoutController.HandlePurchases)

	admin := v1.Group("/admin")
	admin.Post("/signup", authController.HandleAdminSignup)
	admin.Post("/login", authController.HandleAdminLogin)
	admin.Get("/logout", requireCredential, authController.HandleLogout)
	admin.Post("/logout", requireCredential, authController.HandleLogout)
	admin.Get("/me", requireCredential, middleware.RequireAdmin, authController.HandleMe)
	admin.Get("/dashboard", requireCredential, middleware.RequireAdmin, adminController.HandleDashboard)

	course := v1.Group("/course")
	course.Get("/courses", courseController.HandleListCourses)
	course.Post("/create", requireCredential, middleware.RequireAdmin, courseController.HandleCreateCourse)
	course.Put("/update/:courseId", requireCredential, middleware.RequireAdmin, courseController.HandleUpdateCourse)
	course.Delete("/delete/:courseId", requireCredential, middleware.RequireAdmin, courseController.HandleDeleteCourse)
	course.Post("/buy/:courseId", requireCredential, middleware.RequireUser, checkoutController.HandleBuyCourse)
	course.Get("/:courseId", courseController.HandleGetCourse)

	v1.Post("/order", requireCredential, middleware.RequireUser, checkoutController.HandleOrder)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
