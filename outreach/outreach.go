package outreach

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mohinkhan13/MyBlog-Api/auth"
	"github.com/mohinkhan13/MyBlog-Api/common"
	"github.com/mohinkhan13/MyBlog-Api/email"
	"github.com/mohinkhan13/MyBlog-Api/engagement"
	"github.com/mohinkhan13/MyBlog-Api/models"
)

// OutreachModule serves the contact form and the newsletter list.
// Contacts are append-only plus admin read; the newsletter collection is
// write-only self-service plus admin list.
type OutreachModule struct {
	db       *gorm.DB
	recorder *engagement.Recorder
	auth     *auth.AuthModule
	mailer   *email.EmailService
}

func NewOutreachModule(db *gorm.DB, recorder *engagement.Recorder, authModule *auth.AuthModule) *OutreachModule {
	return &OutreachModule{
		db:       db,
		recorder: recorder,
		auth:     authModule,
		mailer:   email.NewEmailService(),
	}
}

func (m *OutreachModule) RegisterRoutes(router *gin.Engine) {
	contacts := router.Group("/api/contacts")
	{
		contacts.POST("", m.auth.OptionalAuth, m.createContact)
		contacts.GET("", m.auth.RequireAuth, m.auth.RequireAdmin, m.listContacts)
		contacts.GET("/:id", m.auth.RequireAuth, m.auth.RequireAdmin, m.getContact)
		// Contact messages are immutable history, even for admins.
		contacts.PUT("/:id", m.notPermitted)
		contacts.PATCH("/:id", m.notPermitted)
		contacts.DELETE("/:id", m.notPermitted)
	}

	newsletter := router.Group("/api/newsletter")
	{
		newsletter.POST("", m.auth.OptionalAuth, m.subscribe)
		newsletter.PATCH("/:id", m.updateSubscription)
		newsletter.GET("", m.auth.RequireAuth, m.auth.RequireAdmin, m.listSubscriptions)
		// Individual subscriptions are never exposed, even to admins.
		newsletter.GET("/:id", m.notPermitted)
		newsletter.PUT("/:id", m.auth.RequireAuth, m.auth.RequireAdmin, m.updateSubscription)
		newsletter.DELETE("/:id", m.auth.RequireAuth, m.auth.RequireAdmin, m.deleteSubscription)
	}
}

func (m *OutreachModule) notPermitted(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "This action is not permitted"})
}

// --- contacts ---

type createContactInput struct {
	Name    string `json:"name" binding:"required,min=2,max=100"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject" binding:"max=255"`
	Message string `json:"message" binding:"required,min=1"`
}

func (m *OutreachModule) createContact(c *gin.Context) {
	var input createContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": common.FieldErrors(err)})
		return
	}

	contact := models.Contact{
		Name:    input.Name,
		Email:   input.Email,
		Subject: input.Subject,
		Message: input.Message,
	}
	if user := auth.CurrentUser(c); user != nil {
		userID := user.ID
		contact.UserID = &userID
	}

	if err := m.db.Create(&contact).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit contact message"})
		return
	}

	m.recorder.Record(models.ActivityLog{
		UserID: contact.UserID,
		Action: engagement.ActionContactSubmission,
	})

	c.JSON(http.StatusCreated, contact)
}

func (m *OutreachModule) listContacts(c *gin.Context) {
	var contacts []models.Contact
	if err := m.db.Order("created_at DESC").Find(&contacts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load contacts"})
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (m *OutreachModule) getContact(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contact ID"})
		return
	}

	var contact models.Contact
	if err := m.db.First(&contact, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}
	c.JSON(http.StatusOK, contact)
}

// --- newsletter ---

type subscribeInput struct {
	Email string `json:"email" binding:"required,email"`
}

func (m *OutreachModule) subscribe(c *gin.Context) {
	var input subscribeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": common.FieldErrors(err)})
		return
	}

	subscription := models.Newsletter{Email: input.Email, Active: true}
	if user := auth.CurrentUser(c); user != nil {
		userID := user.ID
		subscription.UserID = &userID
	}

	if err := m.db.Create(&subscription).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"email": "Email is already subscribed."}})
		return
	}

	m.recorder.Record(models.ActivityLog{
		UserID: subscription.UserID,
		Action: engagement.ActionSubscribeNewsletter,
	})

	// The welcome mail is a courtesy; the subscription already exists.
	if err := m.mailer.SendNewsletterWelcome(subscription.Email); err != nil {
		log.Printf("newsletter welcome mail to %s failed: %v", subscription.Email, err)
	}

	c.JSON(http.StatusCreated, subscription)
}

type updateSubscriptionInput struct {
	Active *bool `json:"active"`
}

// updateSubscription is the self-service unsubscribe/resubscribe toggle.
func (m *OutreachModule) updateSubscription(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	var subscription models.Newsletter
	if err := m.db.First(&subscription, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	var input updateSubscriptionInput
	if err := c.ShouldBindJSON(&input); err != nil || input.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"active": "This field is required."}})
		return
	}

	subscription.Active = *input.Active
	if err := m.db.Save(&subscription).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func (m *OutreachModule) listSubscriptions(c *gin.Context) {
	var subscriptions []models.Newsletter
	if err := m.db.Order("created_at DESC").Find(&subscriptions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}
	c.JSON(http.StatusOK, subscriptions)
}

func (m *OutreachModule) deleteSubscription(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	result := m.db.Delete(&models.Newsletter{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete subscription"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscription deleted"})
}
