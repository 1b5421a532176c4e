package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/civic_reporting_system/internal/config"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	issueService service.IssueService
	userService  service.UserService
	imageStore   service.ImageStore
	redisClient  *redis.Client
	wsHandler    http.HandlerFunc
	logger       *logrus.Logger
	validate     *validator.Validate
	cfg          *config.Config
}

// NewHandler собирает обработчики. imageStore, redisClient и wsHandler могут быть nil:
// тогда загрузки отвечают 503, лимит отключен, websocket не регистрируется.
func NewHandler(
	issueService service.IssueService,
	userService service.UserService,
	imageStore service.ImageStore,
	redisClient *redis.Client,
	wsHandler http.HandlerFunc,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		issueService: issueService,
		userService:  userService,
		imageStore:   imageStore,
		redisClient:  redisClient,
		wsHandler:    wsHandler,
		logger:       logger,
		validate:     validator.New(),
		cfg:          cfg,
	}
}

// writeError выбирает HTTP-статус по классу ошибки сервиса
func (h *Handler) writeError(c *gin.Context, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		log.WithError(err).Warn("Resource not found")
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrValidation):
		log.WithError(err).Warn("Request rejected by service")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		log.WithError(err).Warn("Concurrent modification")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("Service call failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// bind разбирает и проверяет тело запроса. Возвращает false, если ответ уже записан.
func (h *Handler) bind(c *gin.Context, log *logrus.Entry, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func parseIssueID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue ID"})
		return uuid.Nil, false
	}
	return id, true
}

// @Summary Report a new issue
// @Description Create a new issue in pending_verification status. Rate limited per user.
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param issue body CreateIssueRequest true "Issue creation request"
// @Success 201 {object} IssueResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 429 {object} map[string]string "Rate limit exceeded"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues [post]
func (h *Handler) createIssue(c *gin.Context) {
	var input CreateIssueRequest
	log := h.logger.WithField("method", "createIssue")

	if !h.bind(c, log, &input) {
		return
	}

	model := DTOToIssueModel(input)
	model.UserID = callerID(c)

	created, err := h.issueService.CreateIssue(c.Request.Context(), model)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToIssueResponse(created))
}

// @Summary List issues
// @Description List issues newest first. scope=mine returns only the caller's reports.
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param scope query string false "mine or all" default(all)
// @Success 200 {array} IssueSummaryResponse
// @Failure 400 {object} map[string]string "Invalid scope"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues [get]
func (h *Handler) listIssues(c *gin.Context) {
	log := h.logger.WithField("method", "listIssues")

	var filter models.IssueFilter
	switch c.DefaultQuery("scope", "all") {
	case "all":
	case "mine":
		id := callerID(c)
		filter.UserID = &id
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be mine or all"})
		return
	}

	issues, err := h.issueService.ListIssues(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIssueSummaries(issues))
}

// @Summary Get issue by ID
// @Description Get a single issue with its full update history.
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Success 200 {object} IssueResponse
// @Failure 400 {object} map[string]string "Invalid issue ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Issue not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues/{id} [get]
func (h *Handler) getIssue(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getIssue").WithField("id", id)

	issue, err := h.issueService.GetIssue(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIssueResponse(issue))
}

// @Summary Update issue status
// @Description Move a verified issue along verified -> in_progress -> resolved. Admin only.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Param body body UpdateStatusRequest true "Target status and notes"
// @Success 200 {object} IssueResponse
// @Failure 400 {object} map[string]string "Invalid transition or validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Issue not found"
// @Failure 409 {object} map[string]string "Concurrent modification"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues/{id}/status [patch]
func (h *Handler) updateIssueStatus(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "updateIssueStatus").WithField("id", id)

	var input UpdateStatusRequest
	if !h.bind(c, log, &input) {
		return
	}

	issue, err := h.issueService.UpdateStatus(c.Request.Context(), id, models.IssueStatus(input.Status), input.Notes, callerID(c))
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIssueResponse(issue))
}

// @Summary Verify or reject an issue
// @Description Record the verification decision for a pending issue. Admin only.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Param body body VerifyIssueRequest true "Verification decision"
// @Success 200 {object} IssueResponse
// @Failure 400 {object} map[string]string "Invalid transition or validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Issue not found"
// @Failure 409 {object} map[string]string "Concurrent modification"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues/{id}/verify [post]
func (h *Handler) verifyIssue(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "verifyIssue").WithField("id", id)

	var input VerifyIssueRequest
	if !h.bind(c, log, &input) {
		return
	}

	issue, err := h.issueService.VerifyIssue(c.Request.Context(), id, *input.IsVerified, input.VerificationNotes, callerID(c))
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIssueResponse(issue))
}

// @Summary Edit issue text
// @Description Change title and description without touching status or history. Admin only.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue ID"
// @Param body body EditIssueRequest true "New title and description"
// @Success 200 {object} IssueResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Issue not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /issues/{id} [put]
func (h *Handler) editIssue(c *gin.Context) {
	id, ok := parseIssueID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "editIssue").WithField("id", id)

	var input EditIssueRequest
	if !h.bind(c, log, &input) {
		return
	}

	issue, err := h.issueService.EditIssue(c.Request.Context(), id, input.Title, input.Description)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIssueResponse(issue))
}

// @Summary List users
// @Description List users with the number of issues each one reported. Admin only.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserSummary
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /users [get]
func (h *Handler) listUsers(c *gin.Context) {
	log := h.logger.WithField("method", "listUsers")

	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary Get own profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/me [get]
func (h *Handler) getProfile(c *gin.Context) {
	log := h.logger.WithField("method", "getProfile")

	user, err := h.userService.GetProfile(c.Request.Context(), callerID(c))
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToProfileResponse(user))
}

// @Summary Update own profile
// @Description Partially update fullName and profilePic.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/me [patch]
func (h *Handler) updateProfile(c *gin.Context) {
	log := h.logger.WithField("method", "updateProfile")

	var input UpdateProfileRequest
	if !h.bind(c, log, &input) {
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), callerID(c), input.FullName, input.ProfilePic)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToProfileResponse(user))
}

// @Summary Get own issue statistics
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserStats
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/me/stats [get]
func (h *Handler) getUserStats(c *gin.Context) {
	log := h.logger.WithField("method", "getUserStats")

	stats, err := h.userService.GetStats(c.Request.Context(), callerID(c))
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Register push token
// @Description Store the device push token. An empty token disables pushes.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body PushTokenRequest true "Push token"
// @Success 200 {object} map[string]string "Status OK"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /users/me/push-token [post]
func (h *Handler) updatePushToken(c *gin.Context) {
	log := h.logger.WithField("method", "updatePushToken")

	var input PushTokenRequest
	if !h.bind(c, log, &input) {
		return
	}

	if err := h.userService.UpdatePushToken(c.Request.Context(), callerID(c), input.PushToken); err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Upload an issue image
// @Description Store an image and return its URL for use as imageUrl.
// @Tags Issues
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image file"
// @Success 201 {object} UploadResponse
// @Failure 400 {object} map[string]string "Missing file or unsupported type"
// @Failure 413 {object} map[string]string "File too large"
// @Failure 503 {object} map[string]string "Uploads are not configured"
// @Router /uploads [post]
func (h *Handler) uploadImage(c *gin.Context) {
	log := h.logger.WithField("method", "uploadImage")

	if h.imageStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		log.WithError(err).Warn("Missing file in form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		log.WithError(err).Error("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	defer file.Close()

	url, err := h.imageStore.Upload(c.Request.Context(), callerID(c), header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, UploadResponse{URL: url})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
