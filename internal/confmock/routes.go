package confmock

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupRoutes builds the gin engine serving the mock conference API.
func SetupRoutes(api *API, timeout time.Duration, allowedOrigins string) *gin.Engine {
	r := gin.New()
	r.Use(Honeybadger())
	r.Use(gin.Recovery())
	r.Use(CORS(allowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	public := r.Group("")
	public.Use(RequestTimeout(timeout))

	public.GET("/all", api.GetAll)
	public.POST("/users/verify", api.VerifyCode)
	public.POST("/votes", api.PostVote)
	public.DELETE("/votes", api.DeleteVote)
	public.POST("/favorites", api.PostFavorite)
	public.DELETE("/favorites", api.DeleteFavorite)

	admin := r.Group("/admin")
	admin.Use(RequestTimeout(timeout))
	admin.POST("/sessions", api.CreateSession)

	return r
}
