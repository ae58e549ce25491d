package community

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mohinkhan13/MyBlog-Api/auth"
	"github.com/mohinkhan13/MyBlog-Api/common"
	"github.com/mohinkhan13/MyBlog-Api/engagement"
	"github.com/mohinkhan13/MyBlog-Api/models"
)

// CommunityModule serves comments and replies. Reads are public; writes
// need an authenticated caller whose identity is attached server-side.
type CommunityModule struct {
	db       *gorm.DB
	recorder *engagement.Recorder
	auth     *auth.AuthModule
}

func NewCommunityModule(db *gorm.DB, recorder *engagement.Recorder, authModule *auth.AuthModule) *CommunityModule {
	return &CommunityModule{db: db, recorder: recorder, auth: authModule}
}

func (m *CommunityModule) RegisterRoutes(router *gin.Engine) {
	comments := router.Group("/api/comments")
	{
		comments.GET("", m.listComments)
		comments.GET("/:id", m.getComment)
		comments.POST("", m.auth.RequireAuth, m.createComment)
		comments.PUT("/:id", m.auth.RequireAuth, m.updateComment)
		comments.PATCH("/:id", m.auth.RequireAuth, m.updateComment)
		comments.DELETE("/:id", m.auth.RequireAuth, m.deleteComment)
	}

	replies := router.Group("/api/replies")
	{
		replies.GET("", m.listReplies)
		replies.GET("/:id", m.getReply)
		replies.POST("", m.auth.RequireAuth, m.createReply)
		replies.PUT("/:id", m.auth.RequireAuth, m.updateReply)
		replies.PATCH("/:id", m.auth.RequireAuth, m.updateReply)
		replies.DELETE("/:id", m.auth.RequireAuth, m.deleteReply)
	}
}

// --- comments ---

func (m *CommunityModule) listComments(c *gin.Context) {
	query := m.db.Model(&models.Comment{})
	if postID := c.Query("post"); postID != "" {
		query = query.Where("post_id = ?", postID)
	}

	var comments []models.Comment
	if err := query.Order("created_at DESC").Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load comments"})
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (m *CommunityModule) getComment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID"})
		return
	}

	var comment models.Comment
	if err := m.db.First(&comment, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}
	c.JSON(http.StatusOK, comment)
}

type createCommentInput struct {
	PostID  int    `json:"post_id" binding:"required"`
	Content string `json:"content" binding:"required,min=1"`
}

func (m *CommunityModule) createComment(c *gin.Context) {
	var input createCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": common.FieldErrors(err)})
		return
	}

	var post models.Post
	if err := m.db.First(&post, input.PostID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	userID := c.GetInt("user_id")
	comment := models.Comment{
		PostID:  input.PostID,
		UserID:  &userID,
		Content: input.Content,
	}

	// The counter moves in the same transaction as the comment insert so a
	// failure cannot leave the two out of step.
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return engagement.CommentAdded(tx, input.PostID)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	postID := post.ID
	m.recorder.Record(models.ActivityLog{
		UserID: &userID,
		PostID: &postID,
		Action: engagement.ActionComment,
	})

	c.JSON(http.StatusCreated, comment)
}

type updateCommentInput struct {
	Content string `json:"content" binding:"required,min=1"`
}

func (m *CommunityModule) updateComment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID"})
		return
	}

	var comment models.Comment
	if err := m.db.First(&comment, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}

	var input updateCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": common.FieldErrors(err)})
		return
	}

	comment.Content = input.Content
	if err := m.db.Save(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update comment"})
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (m *CommunityModule) deleteComment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID"})
		return
	}

	var comment models.Comment
	if err := m.db.First(&comment, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", id).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return err
		}
		return engagement.CommentRemoved(tx, comment.PostID)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}

// --- replies ---

func (m *CommunityModule) listReplies(c *gin.Context) {
	query := m.db.Model(&models.Reply{})
	if commentID := c.Query("comment"); commentID != "" {
		query = query.Where("comment_id = ?", commentID)
	}

	var replies []models.Reply
	if err := query.Order("created_at DESC").Find(&replies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load replies"})
		return
	}
	c.JSON(http.StatusOK, replies)
}

func (m *CommunityModule) getReply(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reply ID"})
		return
	}

	var reply models.Reply
	if err := m.db.First(&reply, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reply not found"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

type createReplyInput struct {
	CommentID int    `json:"comment_id" binding:"required"`
	Content   string `json:"content" binding:"required,min=1"`
}

func (m *CommunityModule) createReply(c *gin.Context) {
	var input createReplyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": common.FieldErrors(err)})
		return
	}

	var comment models.Comment
	if err := m.db.First(&comment, input.CommentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}

	userID := c.GetInt("user_id")
	reply := models.Reply{
		CommentID: input.CommentID,
		UserID:    &userID,
		Content:   input.Content,
	}
	if err := m.db.Create(&reply).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create reply"})
		return
	}

	// The log entry links both the post (through the parent comment) and
	// the comment being replied to.
	postID := comment.PostID
	commentID := comment.ID
	m.recorder.Record(models.ActivityLog{
		UserID:    &userID,
		PostID:    &postID,
		CommentID: &commentID,
		Action:    engagement.ActionReply,
	})

	c.JSON(http.StatusCreated, reply)
}

type updateReplyInput struct {
	Content string `json:"content" binding:"required,min=1"`
}

func (m *CommunityModule) updateReply(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reply ID"})
		return
	}

	var reply models.Reply
	if err := m.db.First(&reply, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reply not found"})
		return
	}

	var input updateReplyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": common.FieldErrors(err)})
		return
	}

	reply.Content = input.Content
	if err := m.db.Save(&reply).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update reply"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (m *CommunityModule) deleteReply(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reply ID"})
		return
	}

	result := m.db.Delete(&models.Reply{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete reply"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reply not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reply deleted"})
}
