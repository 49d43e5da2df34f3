package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	model2 "github.com/escrowhq/escrow/api/model"
	"github.com/escrowhq/escrow/internal/apierror"
	"github.com/escrowhq/escrow/model"
)

// GatewayWebhook is the intake for payment processor events. Hold captures
// drive pending transactions into escrow; connect account events refresh the
// payee read model. Unrecognized event types are acknowledged and ignored so
// the processor does not retry them forever.
func (a Api) GatewayWebhook(c *gin.Context) {
	var event model2.GatewayEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := event.ValidateGatewayEvent(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	switch event.Type {
	case "hold.succeeded":
		if event.Data.TransactionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id is required for hold events"})
			return
		}
		_, err := a.escrow.ConfirmEscrowPayment(c.Request.Context(), event.Data.TransactionID, event.Data.HoldRef)
		if err != nil {
			if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrInvalidTransition {
				// Redelivered event for a hold already confirmed.
				c.JSON(http.StatusOK, gin.H{"message": "event already processed"})
				return
			}
			c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "escrow payment confirmed"})

	case "account.updated", "account.created":
		if event.Data.PrincipalID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "principal_id is required for account events"})
			return
		}
		account := &model.ConnectAccount{
			PrincipalID:        event.Data.PrincipalID,
			AccountRef:         event.Data.AccountRef,
			Status:             model.AccountStatus(event.Data.Status),
			OnboardingComplete: event.Data.OnboardingComplete,
			ChargesEnabled:     event.Data.ChargesEnabled,
			PayoutsEnabled:     event.Data.PayoutsEnabled,
			RoleCategory:       event.Data.RoleCategory,
			UpdatedAt:          time.Now(),
		}
		if err := a.escrow.UpsertConnectAccount(c.Request.Context(), account); err != nil {
			c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "account updated"})

	default:
		logrus.Infof("ignoring gateway event type %s", event.Type)
		c.JSON(http.StatusOK, gin.H{"message": "event ignored"})
	}
}
