package handler

import (
	"time"

	"erasure/internal/account/service"
)

type deletionRequestResponse struct {
	Status            string    `json:"status"`
	DeleteScheduledAt time.Time `json:"deleteScheduledAt"`
}

type deletionCancelResponse struct {
	Status string `json:"status"`
}

type deletionStatusResponse struct {
	Status            string     `json:"status"`
	DeleteScheduledAt *time.Time `json:"deleteScheduledAt"`
	ServerNow         time.Time  `json:"serverNow"`
}

type meResponse struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	Nickname          *string    `json:"nickname"`
	Email             *string    `json:"email"`
	Phone             *string    `json:"phone"`
	CreatedAt         time.Time  `json:"createdAt"`
	DeleteScheduledAt *time.Time `json:"deleteScheduledAt,omitempty"`
}

func toMeResponse(identity *service.Identity) meResponse {
	return meResponse{
		ID:                identity.AccountID.String(),
		Status:            string(identity.Status),
		Nickname:          identity.Nickname,
		Email:             identity.Email,
		Phone:             identity.Phone,
		CreatedAt:         identity.CreatedAt,
		DeleteScheduledAt: identity.DeleteScheduledAt,
	}
}
