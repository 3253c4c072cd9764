package user

import (
	"time"

	"github.com/google/uuid"
)

// CreateRequest is the JSON body for POST /users. It also carries the
// initial settings for the polling config created alongside the user, since
// a user never exists without exactly one.
type CreateRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,min=2"`
	Password    string `json:"password" validate:"required,min=8"`
	Role        string `json:"role" validate:"required"`

	Interval            string `json:"interval" validate:"required,oneof=WEEKLY BIWEEKLY MONTHLY"`
	EmailEnabled        bool   `json:"email_enabled"`
	SMSEnabled          bool   `json:"sms_enabled"`
	GracePeriod1Days    int    `json:"grace_period_1_days" validate:"omitempty,min=1,max=30"`
	GracePeriod2Days    int    `json:"grace_period_2_days" validate:"omitempty,min=1,max=30"`
	GracePeriod3Days    int    `json:"grace_period_3_days" validate:"omitempty,min=1,max=30"`
	MissedBeforeTrigger int    `json:"missed_checkins_before_trigger" validate:"omitempty,min=1"`
}

// UpdateRequest is the JSON body for PUT /users/{id}.
type UpdateRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,min=2"`
	Role        string `json:"role" validate:"required"`
}

// UpdatePollingConfigRequest is the JSON body for
// PUT /users/{id}/polling-config — the only path through which a
// user's interval, grace periods, or channel flags change after creation.
type UpdatePollingConfigRequest struct {
	Interval            string `json:"interval" validate:"required,oneof=WEEKLY BIWEEKLY MONTHLY"`
	EmailEnabled        bool   `json:"email_enabled"`
	SMSEnabled          bool   `json:"sms_enabled"`
	GracePeriod1Days    int    `json:"grace_period_1_days" validate:"required,min=1,max=30"`
	GracePeriod2Days    int    `json:"grace_period_2_days" validate:"required,min=1,max=30"`
	GracePeriod3Days    int    `json:"grace_period_3_days" validate:"required,min=1,max=30"`
	MissedBeforeTrigger int    `json:"missed_checkins_before_trigger" validate:"required,min=1"`
}

// Response is the JSON response for a single user.
type Response struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PollingConfigResponse is the JSON response for a user's polling config.
type PollingConfigResponse struct {
	Interval            string    `json:"interval"`
	EmailEnabled        bool      `json:"email_enabled"`
	SMSEnabled          bool      `json:"sms_enabled"`
	GracePeriod1Days    int       `json:"grace_period_1_days"`
	GracePeriod2Days    int       `json:"grace_period_2_days"`
	GracePeriod3Days    int       `json:"grace_period_3_days"`
	MissedBeforeTrigger int       `json:"missed_checkins_before_trigger"`
	Status              string    `json:"status"`
	NextCheckInDue      time.Time `json:"next_checkin_due"`
}
