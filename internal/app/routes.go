package app

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/contentforge/studio/internal/middleware"
	"github.com/contentforge/studio/internal/models"
	"github.com/contentforge/studio/internal/modules/gateway"
	"github.com/contentforge/studio/internal/modules/preview"
	"github.com/contentforge/studio/internal/modules/session"
	"github.com/contentforge/studio/internal/modules/syncer"
	"github.com/contentforge/studio/internal/pkg/apiclient"
	pkgcron "github.com/contentforge/studio/internal/pkg/cron"
	"github.com/contentforge/studio/internal/pkg/pagination"
	"github.com/contentforge/studio/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type submitRequest struct {
	Prompt      string             `json:"prompt"`
	ContentType models.ContentType `json:"contentType"`
}

type saveRequest struct {
	Title string  `json:"title"`
	Body  *string `json:"body"`
}

func (a *App) registerRoutes() {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFoundMsg(c, "not found")
	})
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	root := r.Group("")
	root.Use(middleware.AccessToken(a.cfg.AccessToken))
	gateway.RegisterRoutes(root, a.hub)

	api := root.Group("/api")
	api.GET("/health", a.health)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", a.login)
	authGroup.POST("/register", a.register)
	authGroup.POST("/logout", a.logout)
	authGroup.GET("/me", a.me)

	signedIn := middleware.RequireSession(func() bool { return a.session.Token() != "" })
	once := middleware.Idempotence(a.idem)

	jobs := api.Group("/jobs", signedIn)
	jobs.GET("", a.listJobs)
	jobs.POST("", a.submitJob)
	jobs.POST("/refresh", a.refresh)
	jobs.POST("/save-all", once, a.saveAll)
	jobs.POST("/:jobId/save", once, a.saveJob)
	jobs.GET("/:jobId/delete-plan", a.deletePlan)
	jobs.DELETE("/:jobId", a.deleteJob)
	jobs.GET("/:jobId/preview", a.previewJob)

	library := api.Group("/library", signedIn)
	library.GET("", a.listLibrary)
	library.PUT("/:id", a.updateLibraryEntry)
	library.DELETE("/:id", a.deleteLibraryEntry)
	library.GET("/:id/preview", a.previewLibraryEntry)

	cron := api.Group("/cron")
	cron.GET("", func(c *gin.Context) { response.OK(c, a.sched.List()) })
	cron.POST("/:name/run", a.runCronJob)
}

func (a *App) health(c *gin.Context) {
	st := a.session.State()
	response.OK(c, gin.H{
		"ok":            1,
		"signedIn":      st.SignedIn(),
		"state":         a.coord.State(),
		"pushConnected": a.listener.Connected(),
		"clients":       a.hub.ClientCount(),
		"uptime":        formatUptime(time.Since(a.started)),
	})
}

func (a *App) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and password are required")
		return
	}
	user, err := a.session.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(c, err)
		return
	}
	response.OK(c, a.sessionPayload(user))
}

func (a *App) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and password are required")
		return
	}
	user, err := a.session.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		a.writeError(c, err)
		return
	}
	response.Created(c, a.sessionPayload(user))
}

func (a *App) sessionPayload(user *models.User) gin.H {
	st := a.session.State()
	return gin.H{"user": user, "expiresAt": st.ExpiresAt}
}

func (a *App) logout(c *gin.Context) {
	a.session.Logout(c.Request.Context())
	response.NoContent(c)
}

func (a *App) me(c *gin.Context) {
	user, ok := a.session.User()
	if !ok {
		response.UnauthorizedMsg(c, "sign in first")
		return
	}
	response.OK(c, a.sessionPayload(user))
}

func (a *App) listJobs(c *gin.Context) {
	response.OK(c, a.coord.View(c.Request.Context()))
}

func (a *App) submitJob(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	res, err := a.coord.Submit(c.Request.Context(), req.Prompt, req.ContentType)
	if err != nil {
		a.writeError(c, err)
		return
	}
	response.Accepted(c, res)
}

func (a *App) refresh(c *gin.Context) {
	if err := a.coord.Refresh(c.Request.Context(), "manual"); err != nil {
		a.writeError(c, err)
		return
	}
	response.OK(c, a.coord.View(c.Request.Context()))
}

func (a *App) saveJob(c *gin.Context) {
	var req saveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}
	saved, err := a.coord.Save(c.Request.Context(), syncer.SaveRequest{
		JobID: c.Param("jobId"),
		Title: req.Title,
		Body:  req.Body,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	response.OK(c, saved)
}

func (a *App) saveAll(c *gin.Context) {
	res, err := a.coord.SaveAll(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	response.OK(c, res)
}

func (a *App) deletePlan(c *gin.Context) {
	plan, err := a.coord.PlanDelete(c.Param("jobId"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	response.OK(c, plan)
}

func (a *App) deleteJob(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	plan, err := a.coord.Delete(c.Request.Context(), c.Param("jobId"), confirmed)
	if errors.Is(err, syncer.ErrNotConfirmed) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"ok": 0, "code": http.StatusConflict, "message": err.Error(), "plan": plan,
		})
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	response.OK(c, plan)
}

func (a *App) previewJob(c *gin.Context) {
	view, ok := a.coord.JobView(c.Param("jobId"))
	if !ok {
		response.NotFoundMsg(c, syncer.ErrNotFound.Error())
		return
	}
	a.writePreview(c, preview.Document{
		Title: view.Prompt,
		Meta:  string(view.ContentType) + " · " + string(view.Status),
		Body:  view.Content(),
	})
}

func (a *App) listLibrary(c *gin.Context) {
	entries, err := a.coord.SearchLibrary(c.Request.Context(), c.Query("search"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	if pagination.Requested(c) {
		page, meta := pagination.Slice(entries, pagination.FromContext(c))
		response.Paged(c, page, meta)
		return
	}
	response.OK(c, entries)
}

func (a *App) updateLibraryEntry(c *gin.Context) {
	var patch models.ContentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	updated, err := a.coord.UpdateLibraryEntry(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		a.writeError(c, err)
		return
	}
	response.OK(c, updated)
}

func (a *App) deleteLibraryEntry(c *gin.Context) {
	if err := a.coord.DeleteLibraryEntry(c.Request.Context(), c.Param("id")); err != nil {
		a.writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (a *App) previewLibraryEntry(c *gin.Context) {
	entry, ok := a.coord.LibraryEntry(c.Param("id"))
	if !ok {
		response.NotFoundMsg(c, "library entry not found")
		return
	}
	a.writePreview(c, preview.Document{Title: entry.Title, Meta: entry.Type, Body: entry.Body})
}

func (a *App) writePreview(c *gin.Context, doc preview.Document) {
	page, err := preview.RenderDocument(doc)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (a *App) runCronJob(c *gin.Context) {
	if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
		if errors.Is(err, pkgcron.ErrJobNotFound) {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, a.sched.List())
}

// writeError maps domain and backend errors onto response envelopes.
func (a *App) writeError(c *gin.Context, err error) {
	var apiErr *apiclient.Error
	switch {
	case errors.Is(err, syncer.ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, syncer.ErrEmptyPrompt),
		errors.Is(err, syncer.ErrInvalidContentType),
		errors.Is(err, syncer.ErrEmptyPatch),
		errors.Is(err, session.ErrMissingCredential):
		response.BadRequest(c, err.Error())
	case errors.Is(err, syncer.ErrNotCompleted):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, syncer.ErrNotConfirmed):
		response.Conflict(c, err.Error())
	case errors.Is(err, session.ErrNotAuthenticated):
		response.UnauthorizedMsg(c, err.Error())
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Status)
		}
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			response.UnauthorizedMsg(c, msg)
		case apiErr.Status >= 400 && apiErr.Status < 500:
			response.Error(c, apiErr.Status, msg)
		default:
			response.BadGateway(c, err.Error())
		}
	default:
		a.logger.Debug("request failed", zap.Error(err))
		response.BadGateway(c, err.Error())
	}
}
