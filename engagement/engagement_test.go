package engagement

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mohinkhan13/MyBlog-Api/database"
	"github.com/mohinkhan13/MyBlog-Api/models"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	if err := database.RunMigrations(db); err != nil {
		panic("failed to run migrations")
	}
	return db
}

// fakeAuth stands in for the JWT middleware and authenticates everyone as
// the given user.
func fakeAuth(userID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

func setupTestRouter(module *EngagementModule, userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	module.RegisterRoutes(router, fakeAuth(userID))
	return router
}

func createTestUser(db *gorm.DB) *models.User {
	user := &models.User{
		Email:        "author@example.com",
		PasswordHash: "hashedpassword",
		FName:        "Test",
		LName:        "Author",
	}
	db.Create(user)
	return user
}

func createTestPost(db *gorm.DB, authorID int, createdAt time.Time) *models.Post {
	post := &models.Post{
		Title:     "Test Post",
		Slug:      "test-post-" + createdAt.Format("20060102150405.000000000"),
		Content:   "content",
		Status:    models.StatusPublish,
		AuthorID:  &authorID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	db.Create(post)
	return post
}

func statsFor(db *gorm.DB, postID int) *models.PostStats {
	var stats models.PostStats
	if err := db.Where("post_id = ?", postID).First(&stats).Error; err != nil {
		return nil
	}
	return &stats
}

func TestScore(t *testing.T) {
	stats := &models.PostStats{Views: 10, Likes: 5, Comments: 2, Shares: 1}
	assert.InDelta(t, 4.3, Score(stats), 1e-9)
}

func TestScore_Zero(t *testing.T) {
	assert.Equal(t, 0.0, Score(&models.PostStats{}))
}

func TestCreateStats(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	post := createTestPost(db, user.ID, time.Now())

	err := db.Transaction(func(tx *gorm.DB) error {
		return CreateStats(tx, post.ID)
	})
	assert.NoError(t, err)

	stats := statsFor(db, post.ID)
	assert.NotNil(t, stats)
	assert.Equal(t, uint(0), stats.Views)
	assert.Equal(t, uint(0), stats.Comments)
}

func TestReconcileStats_CreatesMissingRows(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)

	withStats := createTestPost(db, user.ID, time.Now())
	db.Create(&models.PostStats{PostID: withStats.ID})
	missing1 := createTestPost(db, user.ID, time.Now().Add(time.Second))
	missing2 := createTestPost(db, user.ID, time.Now().Add(2*time.Second))

	created, err := ReconcileStats(db)
	assert.NoError(t, err)
	assert.Equal(t, 2, created)

	assert.NotNil(t, statsFor(db, missing1.ID))
	assert.NotNil(t, statsFor(db, missing2.ID))

	// A second pass finds nothing to heal.
	created, err = ReconcileStats(db)
	assert.NoError(t, err)
	assert.Equal(t, 0, created)

	var count int64
	db.Model(&models.PostStats{}).Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestCommentCounter_TracksLiveCount(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	post := createTestPost(db, user.ID, time.Now())
	db.Create(&models.PostStats{PostID: post.ID})

	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			comment := models.Comment{PostID: post.ID, Content: "hi"}
			if err := tx.Create(&comment).Error; err != nil {
				return err
			}
			return CommentAdded(tx, post.ID)
		})
		assert.NoError(t, err)
	}

	stats := statsFor(db, post.ID)
	var live int64
	db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&live)
	assert.Equal(t, int64(3), live)
	assert.Equal(t, uint(3), stats.Comments)

	var comment models.Comment
	db.Where("post_id = ?", post.ID).First(&comment)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&comment).Error; err != nil {
			return err
		}
		return CommentRemoved(tx, post.ID)
	})
	assert.NoError(t, err)

	stats = statsFor(db, post.ID)
	db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&live)
	assert.Equal(t, int64(2), live)
	assert.Equal(t, uint(2), stats.Comments)
}

func TestCommentCounter_FlooredAtZero(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	post := createTestPost(db, user.ID, time.Now())
	db.Create(&models.PostStats{PostID: post.ID})

	err := db.Transaction(func(tx *gorm.DB) error {
		return CommentRemoved(tx, post.ID)
	})
	assert.NoError(t, err)

	stats := statsFor(db, post.ID)
	assert.Equal(t, uint(0), stats.Comments)
}

func TestCommentAdded_CreatesMissingStatsRow(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	post := createTestPost(db, user.ID, time.Now())

	err := db.Transaction(func(tx *gorm.DB) error {
		return CommentAdded(tx, post.ID)
	})
	assert.NoError(t, err)

	stats := statsFor(db, post.ID)
	assert.NotNil(t, stats)
	assert.Equal(t, uint(1), stats.Comments)
}

func TestToggleLike_IsItsOwnInverse(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	post := createTestPost(db, user.ID, time.Now())
	db.Create(&models.PostStats{PostID: post.ID, Likes: 4})

	stats := statsFor(db, post.ID)

	liked, updated, err := ToggleLike(db, stats.ID, user.ID)
	assert.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, uint(5), updated.Likes)

	liked, updated, err = ToggleLike(db, stats.ID, user.ID)
	assert.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, uint(4), updated.Likes)

	var membership int64
	db.Table("post_likes").Where("post_stats_id = ? AND user_id = ?", stats.ID, user.ID).Count(&membership)
	assert.Equal(t, int64(0), membership)
}

func TestToggleLike_UnlikeFlooredAtZero(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	post := createTestPost(db, user.ID, time.Now())
	db.Create(&models.PostStats{PostID: post.ID})
	stats := statsFor(db, post.ID)

	// Membership without a matching counter; unlike must not underflow.
	db.Exec("INSERT INTO post_likes (post_stats_id, user_id) VALUES (?, ?)", stats.ID, user.ID)

	liked, updated, err := ToggleLike(db, stats.ID, user.ID)
	assert.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, uint(0), updated.Likes)
}

func TestPostOfTheWeek_PrefersCurrentWeek(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	now := time.Now()

	oldPost := createTestPost(db, user.ID, now.AddDate(0, -2, 0))
	db.Create(&models.PostStats{PostID: oldPost.ID, Views: 1000, Likes: 500})

	weekPost := createTestPost(db, user.ID, now)
	db.Create(&models.PostStats{PostID: weekPost.ID, Views: 10, Likes: 5, Comments: 2, Shares: 1})

	post, stats, err := PostOfTheWeek(db, now)
	assert.NoError(t, err)
	assert.Equal(t, weekPost.ID, post.ID)
	assert.InDelta(t, 4.3, Score(stats), 1e-9)
}

func TestPostOfTheWeek_FallsBackToAllPosts(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	now := time.Now()

	low := createTestPost(db, user.ID, now.AddDate(0, -2, 0))
	db.Create(&models.PostStats{PostID: low.ID, Views: 1})
	high := createTestPost(db, user.ID, now.AddDate(0, -1, 0))
	db.Create(&models.PostStats{PostID: high.ID, Views: 100})

	post, _, err := PostOfTheWeek(db, now)
	assert.NoError(t, err)
	assert.Equal(t, high.ID, post.ID)
}

func TestPostOfTheWeek_TieKeepsFirstRow(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	now := time.Now()

	first := createTestPost(db, user.ID, now)
	db.Create(&models.PostStats{PostID: first.ID, Views: 10})
	second := createTestPost(db, user.ID, now.Add(time.Second))
	db.Create(&models.PostStats{PostID: second.ID, Views: 10})

	post, _, err := PostOfTheWeek(db, now)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, post.ID)
}

func TestPostOfTheWeek_NoPosts(t *testing.T) {
	db := setupTestDB()

	_, _, err := PostOfTheWeek(db, time.Now())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostOfTheWeek_MissingStatsScoreZero(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	now := time.Now()

	scored := createTestPost(db, user.ID, now)
	db.Create(&models.PostStats{PostID: scored.ID, Views: 1})
	createTestPost(db, user.ID, now.Add(time.Second)) // no stats row at all

	post, _, err := PostOfTheWeek(db, now)
	assert.NoError(t, err)
	assert.Equal(t, scored.ID, post.ID)
}

func TestRecorder_AppendsEntry(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	recorder := NewRecorder(db)

	userID := user.ID
	recorder.Record(models.ActivityLog{UserID: &userID, Action: ActionLogin, IPAddress: "127.0.0.1"})

	var logs []models.ActivityLog
	db.Find(&logs)
	assert.Len(t, logs, 1)
	assert.Equal(t, ActionLogin, logs[0].Action)
	assert.Equal(t, "127.0.0.1", logs[0].IPAddress)
}

func TestUpdateStats_LogsShareAndViewTransitions(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	post := createTestPost(db, user.ID, time.Now())
	db.Create(&models.PostStats{PostID: post.ID, Views: 5})
	stats := statsFor(db, post.ID)

	module := NewEngagementModule(db)
	router := setupTestRouter(module, user.ID)

	body, _ := json.Marshal(map[string]uint{"views": 9, "shares": 2})
	req, _ := http.NewRequest("PATCH", "/api/post-stats/"+itoa(stats.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var shareLogs []models.ActivityLog
	db.Where("action = ?", ActionSharePost).Find(&shareLogs)
	assert.Len(t, shareLogs, 1)

	var viewLogs []models.ActivityLog
	db.Where("action = ?", ActionViewPost).Find(&viewLogs)
	assert.Len(t, viewLogs, 1)
	assert.Equal(t, uint(4), viewLogs[0].TimeSpent)

	// Raising shares further must not log SHARE_POST again.
	body, _ = json.Marshal(map[string]uint{"shares": 3})
	req, _ = http.NewRequest("PATCH", "/api/post-stats/"+itoa(stats.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	db.Where("action = ?", ActionSharePost).Find(&shareLogs)
	assert.Len(t, shareLogs, 1)
}

func TestToggleLikeEndpoint_LogsOnlyLikes(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	post := createTestPost(db, user.ID, time.Now())
	db.Create(&models.PostStats{PostID: post.ID})
	stats := statsFor(db, post.ID)

	module := NewEngagementModule(db)
	router := setupTestRouter(module, user.ID)

	toggle := func() *httptest.ResponseRecorder {
		req, _ := http.NewRequest("POST", "/api/post-stats/"+itoa(stats.ID)+"/toggle_like", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := toggle()
	assert.Equal(t, http.StatusOK, w.Code)
	w = toggle()
	assert.Equal(t, http.StatusOK, w.Code)

	// Two toggles, one LIKE_POST entry: unlike leaves no trace.
	var likeLogs []models.ActivityLog
	db.Where("action = ?", ActionLikePost).Find(&likeLogs)
	assert.Len(t, likeLogs, 1)

	updated := statsFor(db, post.ID)
	assert.Equal(t, uint(0), updated.Likes)
}

func TestPostOfTheWeekEndpoint_NotFoundWhenEmpty(t *testing.T) {
	db := setupTestDB()
	module := NewEngagementModule(db)
	router := setupTestRouter(module, 1)

	req, _ := http.NewRequest("GET", "/api/post-stats/post_of_the_week", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateStatsEndpoint_RejectsDuplicate(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	post := createTestPost(db, user.ID, time.Now())
	db.Create(&models.PostStats{PostID: post.ID})

	module := NewEngagementModule(db)
	router := setupTestRouter(module, user.ID)

	body, _ := json.Marshal(map[string]int{"post_id": post.ID})
	req, _ := http.NewRequest("POST", "/api/post-stats", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
