package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quypq/blogapi/internal/entity"
	"github.com/quypq/blogapi/internal/modules/reaction/dto"
	reaction "github.com/quypq/blogapi/internal/modules/reaction/service"
	"github.com/quypq/blogapi/pkg/apperror"
	"github.com/quypq/blogapi/pkg/response"
	"github.com/quypq/blogapi/pkg/validator"
)

type ReactionHandler struct {
	service reaction.ReactionService
}

func NewReactionHandler(service reaction.ReactionService) *ReactionHandler {
	return &ReactionHandler{service: service}
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.New(http.StatusBadRequest, "invalid id", apperror.ErrBadRequest)
	}
	return id, nil
}

// ReactToPost upserts the caller's reaction on a post. Repeated calls
// replace the previous kind, so this always answers 201.
func (h *ReactionHandler) ReactToPost(c *gin.Context) {
	h.react(c, entity.TargetPost)
}

func (h *ReactionHandler) ReactToComment(c *gin.Context) {
	h.react(c, entity.TargetComment)
}

func (h *ReactionHandler) react(c *gin.Context, targetType string) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	targetID, err := parseIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.UpsertReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, &apperror.ValidationError{Fields: validator.FieldErrors(err)})
		return
	}

	result, err := h.service.Upsert(c.Request.Context(), userID, targetType, targetID, req.Type)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result.Reaction)
}

func (h *ReactionHandler) ListForPost(c *gin.Context) {
	h.list(c, entity.TargetPost)
}

func (h *ReactionHandler) ListForComment(c *gin.Context) {
	h.list(c, entity.TargetComment)
}

func (h *ReactionHandler) list(c *gin.Context, targetType string) {
	targetID, err := parseIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	reactions, err := h.service.ListByTarget(c.Request.Context(), targetType, targetID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, reactions)
}

func (h *ReactionHandler) Update(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	reactionID, err := parseIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.UpdateReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, &apperror.ValidationError{Fields: validator.FieldErrors(err)})
		return
	}

	resp, err := h.service.UpdateType(c.Request.Context(), userID, reactionID, req.Type)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ReactionHandler) Delete(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	reactionID, err := parseIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, reactionID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
