package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github/itish2003/manual-assistant/models"
	"github/itish2003/manual-assistant/services"
)

const (
	// SessionHeader carries the session ID in both directions.
	SessionHeader = "X-Session-ID"

	sessionKey = "session"

	blankFeedbackWarning = "Please enter feedback before submitting."
)

// SessionResolver maps a client supplied session ID to a session. Every
// resolved session is handed back with Release once the request is done.
type SessionResolver interface {
	GetOrCreate(ctx context.Context, id string) (*services.Session, error)
	Release(s *services.Session)
}

// FeedbackSubmitter scores and records feedback.
type FeedbackSubmitter interface {
	Submit(ctx context.Context, text string) (*models.FeedbackRecord, error)
}

// RAGController handles the HTTP requests for the manual assistant API.
type RAGController struct {
	ragService     services.RAGService
	sessions       SessionResolver
	feedback       FeedbackSubmitter
	maxUploadBytes int64
	log            *zap.Logger
}

func NewRAGController(service services.RAGService, sessions SessionResolver, feedback FeedbackSubmitter, maxUploadBytes int64, log *zap.Logger) *RAGController {
	return &RAGController{
		ragService:     service,
		sessions:       sessions,
		feedback:       feedback,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// SessionMiddleware resolves X-Session-ID to a session and echoes the
// resolved ID back. Unknown or missing IDs get a new session.
func (c *RAGController) SessionMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		s, err := c.sessions.GetOrCreate(ctx.Request.Context(), ctx.GetHeader(SessionHeader))
		if err != nil {
			c.log.Error("failed to resolve session", zap.Error(err))
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to open session"})
			return
		}
		defer c.sessions.Release(s)
		ctx.Set(sessionKey, s)
		ctx.Header(SessionHeader, s.ID)
		ctx.Next()
	}
}

func sessionFrom(ctx *gin.Context) *services.Session {
	return ctx.MustGet(sessionKey).(*services.Session)
}

// UploadManual is the Gin handler for POST /api/v1/manuals.
func (c *RAGController) UploadManual(ctx *gin.Context) {
	if c.maxUploadBytes > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.maxUploadBytes)
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ctx.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: fmt.Sprintf("File exceeds %d bytes", maxErr.Limit)})
			return
		}
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing multipart field 'file': " + err.Error()})
		return
	}

	f, err := fh.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Could not read uploaded file"})
		return
	}
	defer f.Close()

	response, err := c.ragService.UploadManual(ctx.Request.Context(), sessionFrom(ctx), fh.Filename, f)
	if err != nil {
		c.writeError(ctx, err, "Failed to process manual")
		return
	}
	ctx.JSON(http.StatusCreated, response)
}

// QueryRAG is the Gin handler for POST /api/v1/query.
func (c *RAGController) QueryRAG(ctx *gin.Context) {
	var req models.QueryTextRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	response, err := c.ragService.QueryRAG(ctx.Request.Context(), sessionFrom(ctx), req)
	if err != nil {
		c.writeError(ctx, err, "Failed to generate AI response")
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// GetSession is the Gin handler for GET /api/v1/session.
func (c *RAGController) GetSession(ctx *gin.Context) {
	response, err := c.ragService.GetSession(ctx.Request.Context(), sessionFrom(ctx))
	if err != nil {
		c.writeError(ctx, err, "Failed to read session")
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// SubmitFeedback is the Gin handler for POST /api/v1/feedback.
func (c *RAGController) SubmitFeedback(ctx *gin.Context) {
	var req models.FeedbackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	rec, err := c.feedback.Submit(ctx.Request.Context(), req.Feedback)
	if err != nil {
		c.writeError(ctx, err, "Failed to record feedback")
		return
	}
	ctx.JSON(http.StatusOK, models.FeedbackResponse{
		Sentiment: rec.Sentiment,
		Label:     rec.Label,
		Result:    rec.Result,
	})
}

// writeError maps service errors to status codes. Unknown errors are logged
// and reported with the generic message.
func (c *RAGController) writeError(ctx *gin.Context, err error, generic string) {
	switch {
	case errors.Is(err, services.ErrBlankFeedback):
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Warning: blankFeedbackWarning})
	case errors.Is(err, services.ErrUnsupportedFile):
		ctx.JSON(http.StatusUnsupportedMediaType, models.ErrorResponse{Error: "Only PDF manuals are supported"})
	case errors.Is(err, services.ErrExtractionFailed):
		ctx.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "Could not extract text from the PDF: " + err.Error()})
	case errors.Is(err, services.ErrBackendUnavailable):
		c.log.Warn("model backend unavailable", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "Model backend unavailable, try again later"})
	default:
		c.log.Error(generic, zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: generic})
	}
}

// RegisterRoutes mounts the health check and the /api/v1 group on router.
func (c *RAGController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Manual Assistant API",
			"version": "1.0.0",
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/feedback", c.SubmitFeedback)

		scoped := apiV1.Group("", c.SessionMiddleware())
		scoped.POST("/manuals", c.UploadManual)
		scoped.POST("/query", c.QueryRAG)
		scoped.GET("/session", c.GetSession)
	}
}
