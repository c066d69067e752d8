package httpapi

import (
	"context"
	"net/http"
	"time"

	"med-reminder/internal/calls"
	"med-reminder/internal/journal"
	"med-reminder/internal/prompts"

	"github.com/gin-gonic/gin"
)

// Dispatcher starts an outbound call session. Satisfied by
// *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, call calls.Context) (string, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, build the call context, dispatch,
// return JSON.

type Handlers struct {
	Dispatcher Dispatcher

	// Journal is optional; without it the summary endpoint reports 503.
	Journal *journal.Service
}

type medicineInfo struct {
	Name         string `json:"name" binding:"required"`
	Dosage       string `json:"dosage"`
	NextDoseTime string `json:"next_dose_time"`
	Instructions string `json:"instructions,omitempty"`
}

func (m medicineInfo) toModel() calls.Medicine {
	return calls.Medicine{
		Name:         m.Name,
		Dosage:       m.Dosage,
		NextDoseTime: m.NextDoseTime,
		Instructions: m.Instructions,
	}
}

// phone_number carries no binding tag: kid calls are rerouted to the
// head-of-family chain and may omit it. The handlers check it per user type.
type callReminderRequest struct {
	PhoneNumber        string         `json:"phone_number"`
	UserName           string         `json:"user_name" binding:"required"`
	UserType           calls.UserType `json:"user_type" binding:"required"`
	Medicine           medicineInfo   `json:"medicine" binding:"required"`
	HeadOfFamilyPhones []string       `json:"head_of_family_phones"`
	IsHeadOfFamilyCall bool           `json:"is_head_of_family_call"`
	PatientName        string         `json:"patient_name"`
}

type callBuyRequest struct {
	PhoneNumber        string         `json:"phone_number"`
	UserName           string         `json:"user_name" binding:"required"`
	UserType           calls.UserType `json:"user_type" binding:"required"`
	Medicine           medicineInfo   `json:"medicine" binding:"required"`
	RemainingCount     int            `json:"remaining_count"`
	DaysSupplyLeft     int            `json:"days_supply_left"`
	HeadOfFamilyPhones []string       `json:"head_of_family_phones"`
}

type callResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DispatchID string `json:"dispatch_id,omitempty"`
}

// CallReminder dispatches a medication reminder call.
//
// Kids are never called directly: the first head-of-family contact gets the
// call and the rest become the backup chain.
func (h Handlers) CallReminder(c *gin.Context) {
	var req callReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !calls.ValidUserType(req.UserType) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_type must be 'senior', 'adult', or 'kid'"})
		return
	}
	if req.UserType == calls.UserTypeKid && len(req.HeadOfFamilyPhones) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "head_of_family_phones is required for kid patients"})
		return
	}
	if req.UserType != calls.UserTypeKid && req.PhoneNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number is required"})
		return
	}

	med := req.Medicine.toModel()
	call := calls.Context{
		CallType:           calls.CallTypeReminder,
		UserName:           req.UserName,
		UserType:           req.UserType,
		MedicineName:       med.Name,
		Dosage:             med.Dosage,
		NextDoseTime:       med.NextDoseTime,
		IsHeadOfFamilyCall: req.IsHeadOfFamilyCall,
	}

	switch {
	case req.UserType == calls.UserTypeKid:
		call.PhoneNumber = req.HeadOfFamilyPhones[0]
		call.HeadOfFamilyPhones = req.HeadOfFamilyPhones[1:]
		call.IsHeadOfFamilyCall = true
		call.OriginalPatient = req.UserName
		call.Prompt = prompts.ReminderHeadOfFamily(req.UserName, req.UserName, med)
	case req.IsHeadOfFamilyCall:
		call.PhoneNumber = req.PhoneNumber
		call.HeadOfFamilyPhones = req.HeadOfFamilyPhones
		call.OriginalPatient = req.PatientName
		call.Prompt = prompts.ReminderHeadOfFamily(req.UserName, req.PatientName, med)
	default:
		call.PhoneNumber = req.PhoneNumber
		call.HeadOfFamilyPhones = req.HeadOfFamilyPhones
		call.Prompt = prompts.Reminder(req.UserName, req.UserType, med)
	}

	dispatchID, err := h.Dispatcher.Dispatch(c.Request.Context(), call)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, callResponse{
		Success:    true,
		Message:    "Reminder call dispatched to " + call.PhoneNumber,
		DispatchID: dispatchID,
	})
}

// CallBuy dispatches a refill-reminder call.
func (h Handlers) CallBuy(c *gin.Context) {
	var req callBuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !calls.ValidUserType(req.UserType) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_type must be 'senior', 'adult', or 'kid'"})
		return
	}
	if req.UserType == calls.UserTypeKid && len(req.HeadOfFamilyPhones) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "head_of_family_phones is required for kid patients"})
		return
	}
	if req.UserType != calls.UserTypeKid && req.PhoneNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number is required"})
		return
	}

	med := req.Medicine.toModel()
	call := calls.Context{
		CallType:       calls.CallTypeBuy,
		UserName:       req.UserName,
		UserType:       req.UserType,
		MedicineName:   med.Name,
		Dosage:         med.Dosage,
		NextDoseTime:   med.NextDoseTime,
		RemainingCount: req.RemainingCount,
		DaysSupplyLeft: req.DaysSupplyLeft,
		Prompt:         prompts.Buy(req.UserName, req.UserType, med, req.RemainingCount, req.DaysSupplyLeft),
	}
	if req.UserType == calls.UserTypeKid {
		call.PhoneNumber = req.HeadOfFamilyPhones[0]
		call.HeadOfFamilyPhones = req.HeadOfFamilyPhones[1:]
		call.IsHeadOfFamilyCall = true
		call.OriginalPatient = req.UserName
	} else {
		call.PhoneNumber = req.PhoneNumber
		call.HeadOfFamilyPhones = req.HeadOfFamilyPhones
	}

	dispatchID, err := h.Dispatcher.Dispatch(c.Request.Context(), call)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, callResponse{
		Success:    true,
		Message:    "Purchase reminder call dispatched to " + call.PhoneNumber,
		DispatchID: dispatchID,
	})
}

// Health is the liveness endpoint.
func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// CallsSummary aggregates journaled outcomes over a window. Defaults to the
// last 24 hours; `from` and `to` accept RFC 3339 timestamps.
func (h Handlers) CallsSummary(c *gin.Context) {
	if h.Journal == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "journal not configured"})
		return
	}

	now := time.Now().UTC()
	from, to := now.Add(-24*time.Hour), now
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
		to = t
	}

	sum, err := h.Journal.Summarize(c.Request.Context(), from, to)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}
