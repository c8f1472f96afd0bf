package controllers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"content-approval-api/exceptions"
	"content-approval-api/middleware"
	"content-approval-api/models"
	"content-approval-api/services"
	"content-approval-api/store"

	"github.com/gin-gonic/gin"
)

type CreateApprovalRequest struct {
	PostID         string  `json:"post_id" binding:"required"`
	RequestMessage *string `json:"request_message"`
}

type ProcessApprovalRequest struct {
	Comment *string `json:"comment"`
}

type ApprovalController struct {
	service *services.ApprovalService
}

func NewApprovalController(service *services.ApprovalService) *ApprovalController {
	return &ApprovalController{service: service}
}

// POST /api/v1/approvals
func (ac *ApprovalController) Create(c *gin.Context) {
	var req CreateApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	created, err := ac.service.Create(c.Request.Context(), currentActor(c), services.CreateRequestInput{
		PostID:         req.PostID,
		RequestMessage: req.RequestMessage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	ac.respondRequest(c, http.StatusCreated, created)
}

// GET /api/v1/approvals/:id
func (ac *ApprovalController) Get(c *gin.Context) {
	req, err := ac.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ac.respondRequest(c, http.StatusOK, req)
}

// GET /api/v1/posts/:id/approval
// data is null when the post has never been submitted.
func (ac *ApprovalController) GetByPost(c *gin.Context) {
	req, err := ac.service.GetByPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if req == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": nil})
		return
	}
	ac.respondRequest(c, http.StatusOK, req)
}

// GET /api/v1/approvals/pending
func (ac *ApprovalController) ListPending(c *gin.Context) {
	list, err := ac.service.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ac.respondList(c, list)
}

// GET /api/v1/approvals/mine
func (ac *ApprovalController) ListMine(c *gin.Context) {
	list, err := ac.service.ListByRequester(c.Request.Context(), currentActor(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	ac.respondList(c, list)
}

// POST /api/v1/approvals/:id/approve
func (ac *ApprovalController) Approve(c *gin.Context) {
	ac.process(c, ac.service.Approve)
}

// POST /api/v1/approvals/:id/reject
func (ac *ApprovalController) Reject(c *gin.Context) {
	ac.process(c, ac.service.Reject)
}

// POST /api/v1/approvals/:id/cancel
func (ac *ApprovalController) Cancel(c *gin.Context) {
	updated, err := ac.service.Cancel(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ac.respondRequest(c, http.StatusOK, updated)
}

// POST /api/v1/approvals/:id/comments
func (ac *ApprovalController) AddComment(c *gin.Context) {
	body, ok := bindOptionalJSON(c)
	if !ok {
		return
	}

	action, err := ac.service.AddComment(c.Request.Context(), currentActor(c), services.ProcessInput{
		RequestID: c.Param("id"),
		Comment:   body.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": action})
}

type decisionFunc func(context.Context, services.Actor, services.ProcessInput) (*models.ApprovalRequest, error)

func (ac *ApprovalController) process(c *gin.Context, decide decisionFunc) {
	body, ok := bindOptionalJSON(c)
	if !ok {
		return
	}

	updated, err := decide(c.Request.Context(), currentActor(c), services.ProcessInput{
		RequestID: c.Param("id"),
		Comment:   body.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	ac.respondRequest(c, http.StatusOK, updated)
}

func (ac *ApprovalController) respondRequest(c *gin.Context, status int, req *models.ApprovalRequest) {
	if rel := parseInclude(c); rel.Any() {
		if err := ac.service.WithRelations(c.Request.Context(), req, rel); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(status, gin.H{"success": true, "data": req})
}

func (ac *ApprovalController) respondList(c *gin.Context, list []models.ApprovalRequest) {
	if rel := parseInclude(c); rel.Any() {
		for i := range list {
			if err := ac.service.WithRelations(c.Request.Context(), &list[i], rel); err != nil {
				respondError(c, err)
				return
			}
		}
	}
	if list == nil {
		list = []models.ApprovalRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list, "total": len(list)})
}

// bindOptionalJSON accepts an empty body as "no comment".
func bindOptionalJSON(c *gin.Context) (ProcessApprovalRequest, bool) {
	var body ProcessApprovalRequest
	if c.Request.ContentLength == 0 {
		return body, true
	}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return body, false
	}
	return body, true
}

// parseInclude reads ?include=post,requester,approvers.
func parseInclude(c *gin.Context) store.Relations {
	var rel store.Relations
	for _, part := range strings.Split(c.Query("include"), ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "post":
			rel.Post = true
		case "requester":
			rel.Requester = true
		case "approvers":
			rel.Approvers = true
		}
	}
	return rel
}

func currentActor(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:     c.GetString(middleware.ContextUserID),
		Privileged: c.GetBool(middleware.ContextPrivileged),
	}
}

func respondError(c *gin.Context, err error) {
	status := exceptions.StatusCode(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"success": false, "error": "Internal server error", "kind": exceptions.KindName(err)})
		return
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error(), "kind": exceptions.KindName(err)})
}
