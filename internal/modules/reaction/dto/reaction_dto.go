package dto

type UpsertReactionRequest struct {
	Type string `json:"type" binding:"required"`
}

type UpdateReactionRequest struct {
	Type string `json:"type" binding:"required"`
}
