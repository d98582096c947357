package usercontext

// Locals keys shared by middlewares and controllers
const (
	KeyAccount    = "ACCOUNT_CONTEXT"
	KeyCredential = "credential"
	CookieName    = "jwt"
)
