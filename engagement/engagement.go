package engagement

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mohinkhan13/MyBlog-Api/models"
)

// EngagementModule serves the post-stats collection and the two custom
// actions (post_of_the_week, toggle_like), and owns the activity recorder
// shared by the other modules.
type EngagementModule struct {
	db       *gorm.DB
	recorder *Recorder
}

func NewEngagementModule(db *gorm.DB) *EngagementModule {
	return &EngagementModule{
		db:       db,
		recorder: NewRecorder(db),
	}
}

func (e *EngagementModule) Recorder() *Recorder {
	return e.recorder
}

func (e *EngagementModule) DB() *gorm.DB {
	return e.db
}

func (e *EngagementModule) RegisterRoutes(router *gin.Engine, requireAuth gin.HandlerFunc) {
	statsGroup := router.Group("/api/post-stats")
	{
		statsGroup.GET("", e.listStats)
		statsGroup.GET("/post_of_the_week", e.postOfTheWeek)
		statsGroup.GET("/:id", e.getStats)
		statsGroup.POST("", e.createStats)
		statsGroup.PUT("/:id", e.updateStats)
		statsGroup.PATCH("/:id", e.updateStats)
		statsGroup.DELETE("/:id", e.deleteStats)
		statsGroup.POST("/:id/toggle_like", requireAuth, e.toggleLike)
	}
}

func (e *EngagementModule) listStats(c *gin.Context) {
	var stats []models.PostStats
	if err := e.db.Order("id ASC").Find(&stats).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load post stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (e *EngagementModule) getStats(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stats ID"})
		return
	}

	var stats models.PostStats
	if err := e.db.First(&stats, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post stats not found"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type createStatsInput struct {
	PostID   int  `json:"post_id" binding:"required"`
	Views    uint `json:"views"`
	Likes    uint `json:"likes"`
	Comments uint `json:"comments"`
	Shares   uint `json:"shares"`
}

func (e *EngagementModule) createStats(c *gin.Context) {
	var input createStatsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	var post models.Post
	if err := e.db.First(&post, input.PostID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	var existing int64
	e.db.Model(&models.PostStats{}).Where("post_id = ?", input.PostID).Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"post_id": "Stats already exist for this post"}})
		return
	}

	stats := models.PostStats{
		PostID:   input.PostID,
		Views:    input.Views,
		Likes:    input.Likes,
		Comments: input.Comments,
		Shares:   input.Shares,
	}
	if err := e.db.Create(&stats).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post stats"})
		return
	}
	c.JSON(http.StatusCreated, stats)
}

type updateStatsInput struct {
	Views    *uint `json:"views"`
	Likes    *uint `json:"likes"`
	Comments *uint `json:"comments"`
	Shares   *uint `json:"shares"`
}

// updateStats applies counter changes and emits the transition-driven log
// entries: SHARE_POST when shares first rises above zero, VIEW_POST with
// the view delta as time spent.
func (e *EngagementModule) updateStats(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stats ID"})
		return
	}

	var input updateStatsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	var stats models.PostStats
	if err := e.db.First(&stats, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post stats not found"})
		return
	}

	oldViews := stats.Views
	oldShares := stats.Shares

	if input.Views != nil {
		stats.Views = *input.Views
	}
	if input.Likes != nil {
		stats.Likes = *input.Likes
	}
	if input.Comments != nil {
		stats.Comments = *input.Comments
	}
	if input.Shares != nil {
		stats.Shares = *input.Shares
	}

	if err := e.db.Save(&stats).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post stats"})
		return
	}

	var post models.Post
	if err := e.db.First(&post, stats.PostID).Error; err == nil {
		postID := post.ID
		if oldShares == 0 && stats.Shares > 0 {
			e.recorder.Record(models.ActivityLog{
				UserID: post.AuthorID,
				PostID: &postID,
				Action: ActionSharePost,
			})
		}
		if stats.Views > oldViews {
			e.recorder.Record(models.ActivityLog{
				UserID:    post.AuthorID,
				PostID:    &postID,
				Action:    ActionViewPost,
				TimeSpent: stats.Views - oldViews,
			})
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (e *EngagementModule) deleteStats(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stats ID"})
		return
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM post_likes WHERE post_stats_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.PostStats{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post stats not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post stats deleted"})
}

func (e *EngagementModule) postOfTheWeek(c *gin.Context) {
	post, stats, err := PostOfTheWeek(e.db, time.Now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No posts available"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rank posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post":  post,
		"stats": stats,
		"score": Score(stats),
	})
}

func (e *EngagementModule) toggleLike(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stats ID"})
		return
	}
	userID := c.GetInt("user_id")

	liked, stats, err := ToggleLike(e.db, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post stats not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle like"})
		return
	}

	// Toggling off intentionally leaves no trace; only likes are logged.
	if liked {
		postID := stats.PostID
		e.recorder.Record(models.ActivityLog{
			UserID: &userID,
			PostID: &postID,
			Action: ActionLikePost,
		})
	}

	c.JSON(http.StatusOK, gin.H{"liked": liked, "likes": stats.Likes})
}
