package middleware

import "github.com/labstack/echo/v4"

// cameraID returns the camera authenticated by JWTAuth, or "anon" on
// public routes.
func cameraID(c echo.Context) string {
	if s, ok := c.Get(CtxCameraID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
