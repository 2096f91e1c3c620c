package confmock

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/confsync/confsync/internal/logger"
	"github.com/confsync/confsync/internal/remote"
	"github.com/confsync/confsync/internal/schedule"
)

// API holds the HTTP handlers of the mock service.
type API struct {
	state     *State
	fixture   *FixtureStore
	validator *validator.Validate
}

// NewAPI creates the handler set. A nil fixture store disables persistence
// of admin-created sessions; reads and votes work the same either way.
func NewAPI(state *State, fixture *FixtureStore) *API {
	return &API{state: state, fixture: fixture, validator: validator.New()}
}

// GetAll handles GET /all - the full-state fetch, personalized by userId.
func (a *API) GetAll(c *gin.Context) {
	userID := c.Query("userId")
	logger.WithComponent("mock-api").Debugf("GET /all handler called (userId=%q)", userID)

	if userID != "" && !a.state.ValidCode(userID) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	c.JSON(http.StatusOK, a.state.AllFor(userID))
}

// VerifyCode handles POST /users/verify - checks a one-time voting code.
func (a *API) VerifyCode(c *gin.Context) {
	logger.WithComponent("mock-api").Debugf("POST /users/verify handler called")

	var body struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if !a.state.ValidCode(body.Code) {
		logger.WithComponent("mock-api").Debugf("code rejected")
		c.JSON(http.StatusNotAcceptable, gin.H{"error": "code not recognized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "code accepted"})
}

// PostVote handles POST /votes - records a rating within the voting window.
func (a *API) PostVote(c *gin.Context) {
	userID := c.Query("userId")
	logger.WithComponent("mock-api").Debugf("POST /votes handler called (userId=%q)", userID)

	var vote schedule.Vote
	if err := c.ShouldBindJSON(&vote); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if vote.SessionID == "" || !vote.Rating.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and a known rating are required"})
		return
	}

	if err := a.state.AddVote(userID, vote.SessionID, vote.Rating); err != nil {
		a.stateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "vote recorded"})
}

// DeleteVote handles DELETE /votes - retracts the rating named in the body.
func (a *API) DeleteVote(c *gin.Context) {
	userID := c.Query("userId")
	logger.WithComponent("mock-api").Debugf("DELETE /votes handler called (userId=%q)", userID)

	var vote schedule.Vote
	if err := c.ShouldBindJSON(&vote); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if vote.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	if err := a.state.RemoveVote(userID, vote.SessionID); err != nil {
		a.stateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "vote removed"})
}

// PostFavorite handles POST /favorites.
func (a *API) PostFavorite(c *gin.Context) {
	userID := c.Query("userId")
	logger.WithComponent("mock-api").Debugf("POST /favorites handler called (userId=%q)", userID)

	var fav schedule.Favorite
	if err := c.ShouldBindJSON(&fav); err != nil || fav.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	if err := a.state.AddFavorite(userID, fav.SessionID); err != nil {
		a.stateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "favorite recorded"})
}

// DeleteFavorite handles DELETE /favorites.
func (a *API) DeleteFavorite(c *gin.Context) {
	userID := c.Query("userId")
	logger.WithComponent("mock-api").Debugf("DELETE /favorites handler called (userId=%q)", userID)

	var fav schedule.Favorite
	if err := c.ShouldBindJSON(&fav); err != nil || fav.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	if err := a.state.RemoveFavorite(userID, fav.SessionID); err != nil {
		a.stateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "favorite removed"})
}

// CreateSession handles POST /admin/sessions - seeds a session at runtime
// with a server-assigned id and persists it to the fixture.
func (a *API) CreateSession(c *gin.Context) {
	logger.WithComponent("mock-api").Debugf("POST /admin/sessions handler called")

	var session schedule.Session
	if err := c.ShouldBindJSON(&session); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	session.ID = uuid.NewString()
	session.IsFavorite = false

	if err := a.validator.Struct(&session); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a.state.AddSession(session)

	if a.fixture != nil {
		doc := a.state.Fixture()
		if err := a.fixture.Save(&doc); err != nil {
			logger.WithComponent("mock-api").Errorf("persist fixture: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist fixture"})
			return
		}
	}

	c.JSON(http.StatusCreated, session)
}

// stateError translates state outcomes into the wire statuses the sync layer
// classifies on.
func (a *API) stateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errUnknownCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
	case errors.Is(err, errUnknownSession):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, errVotingNotOpen):
		c.JSON(remote.StatusTooEarly, gin.H{"error": "voting has not opened for this session"})
	case errors.Is(err, errVotingClosed):
		c.JSON(remote.StatusTooLate, gin.H{"error": "voting has closed"})
	default:
		logger.WithComponent("mock-api").Errorf("unexpected state error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
