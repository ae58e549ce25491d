package content

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"

	"github.com/mohinkhan13/MyBlog-Api/auth"
	"github.com/mohinkhan13/MyBlog-Api/cache"
	"github.com/mohinkhan13/MyBlog-Api/engagement"
	"github.com/mohinkhan13/MyBlog-Api/models"
)

const (
	maxImageSize   = 5 << 20 // 5 MB
	renderCacheTTL = time.Hour
)

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // allow raw HTML passthrough in Markdown
	),
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

type ContentModule struct {
	db       *gorm.DB
	recorder *engagement.Recorder
	auth     *auth.AuthModule
}

func NewContentModule(db *gorm.DB, recorder *engagement.Recorder, authModule *auth.AuthModule) *ContentModule {
	return &ContentModule{db: db, recorder: recorder, auth: authModule}
}

func (m *ContentModule) RegisterRoutes(router *gin.Engine) {
	posts := router.Group("/api/posts")
	posts.Use(m.auth.OptionalAuth)
	{
		posts.GET("", m.listPosts)
		posts.GET("/:id", m.getPost)
		posts.GET("/slug/:slug", m.getPostBySlug)
		posts.POST("", m.requireAdmin, m.createPost)
		posts.PUT("/:id", m.requireAdmin, m.updatePost)
		posts.PATCH("/:id", m.requireAdmin, m.updatePost)
		posts.DELETE("/:id", m.requireAdmin, m.deletePost)
	}

	categories := router.Group("/api/categories")
	categories.Use(m.auth.OptionalAuth)
	{
		categories.GET("", m.listCategories)
		categories.GET("/:id", m.getCategory)
		categories.POST("", m.requireAdmin, m.createCategory)
		categories.PUT("/:id", m.requireAdmin, m.updateCategory)
		categories.PATCH("/:id", m.requireAdmin, m.updateCategory)
		categories.DELETE("/:id", m.requireAdmin, m.deleteCategory)
	}
}

// requireAdmin rejects both anonymous and non-admin callers with 403.
// Post and category writes are admin actions, not merely authenticated ones.
func (m *ContentModule) requireAdmin(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil || !(user.IsAdmin || user.IsSuperuser) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin privilege required"})
		return
	}
	c.Next()
}

// --- view models ---

type CategoryView struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image,omitempty"`
}

type AuthorView struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	FName string `json:"fname"`
	LName string `json:"lname"`
}

type PostView struct {
	ID          int           `json:"id"`
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	Content     string        `json:"content"`
	ContentHTML string        `json:"content_html,omitempty"`
	Category    *CategoryView `json:"category"`
	Tags        string        `json:"tags"`
	TagList     []string      `json:"tag_list"`
	Status      string        `json:"status"`
	Image       string        `json:"image,omitempty"`
	Author      *AuthorView   `json:"author"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func splitTags(tags string) []string {
	var out []string
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// newPostView builds the wire representation. withHTML renders the markdown
// body (served from the file cache when fresh) for detail responses.
func (m *ContentModule) newPostView(post *models.Post, withHTML bool) PostView {
	view := PostView{
		ID:        post.ID,
		Title:     post.Title,
		Slug:      post.Slug,
		Content:   post.Content,
		Tags:      post.Tags,
		TagList:   splitTags(post.Tags),
		Status:    post.Status,
		Image:     post.Image,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}

	if post.CategoryID != nil {
		var category models.Category
		if err := m.db.First(&category, *post.CategoryID).Error; err == nil {
			view.Category = &CategoryView{
				ID:    category.ID,
				Name:  category.Name,
				Slug:  category.Slug,
				Image: category.Image,
			}
		}
	}

	if post.AuthorID != nil {
		var author models.User
		if err := m.db.First(&author, *post.AuthorID).Error; err == nil {
			view.Author = &AuthorView{
				ID:    author.ID,
				Email: author.Email,
				FName: author.FName,
				LName: author.LName,
			}
		}
	}

	if withHTML {
		view.ContentHTML = m.renderedContent(post)
	}

	return view
}

func (m *ContentModule) renderedContent(post *models.Post) string {
	if html, ok := cache.ReadCache("posts", post.Slug, renderCacheTTL); ok {
		return html
	}

	html := renderMarkdown(post.Content)
	if err := cache.WriteCache("posts", post.Slug, html); err == nil {
		return html
	}
	return html
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		// On render failure return the raw content instead of breaking the response.
		return content
	}
	return buf.String()
}

// --- slugs ---

func slugify(title string) string {
	accentMap := map[rune]rune{
		'á': 'a', 'à': 'a', 'ã': 'a', 'â': 'a', 'ä': 'a', 'å': 'a', 'ā': 'a',
		'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e', 'ē': 'e',
		'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i', 'ī': 'i',
		'ó': 'o', 'ò': 'o', 'õ': 'o', 'ô': 'o', 'ö': 'o', 'ø': 'o', 'ō': 'o',
		'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u', 'ū': 'u',
		'ç': 'c', 'ć': 'c', 'č': 'c',
		'ñ': 'n', 'ń': 'n',
		'ý': 'y', 'ÿ': 'y',
		'ß': 's',
	}

	slug := strings.ToLower(title)
	slug = strings.Map(func(r rune) rune {
		if replacement, exists := accentMap[r]; exists {
			return replacement
		}
		return r
	}, slug)

	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		if r == ' ' {
			return '-'
		}
		return -1
	}, slug)

	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	return slug
}

// uniqueSlug disambiguates colliding slugs with -1, -2, ... suffixes. It
// must run inside the transaction that inserts the row so concurrent
// creations cannot race onto the same slug.
func uniqueSlug(tx *gorm.DB, model interface{}, title, fallback string) (string, error) {
	base := slugify(title)
	if base == "" {
		base = fallback
	}

	slug := base
	for counter := 1; ; counter++ {
		var count int64
		if err := tx.Model(model).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

// --- image upload ---

func saveUploadedImage(c *gin.Context, file *multipart.FileHeader, subdir string) (string, string) {
	if file.Size > maxImageSize {
		return "", "Image must be smaller than 5 MB."
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		return "", "Unsupported image type. Use jpg, png, webp or gif."
	}

	name := uuid.NewString() + ext
	dest := filepath.Join("uploads", subdir, name)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		return "", "Failed to store image."
	}
	return dest, ""
}

// --- posts ---

func (m *ContentModule) visiblePosts(c *gin.Context) *gorm.DB {
	query := m.db.Model(&models.Post{})
	user := auth.CurrentUser(c)
	if user == nil || !user.IsSuperuser {
		query = query.Where("status = ?", models.StatusPublish)
	}
	return query
}

func (m *ContentModule) listPosts(c *gin.Context) {
	query := m.visiblePosts(c)
	if categoryID := c.Query("category"); categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}

	var posts []models.Post
	if err := query.Order("created_at DESC").Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load posts"})
		return
	}

	views := make([]PostView, 0, len(posts))
	for i := range posts {
		views = append(views, m.newPostView(&posts[i], false))
	}
	c.JSON(http.StatusOK, views)
}

func (m *ContentModule) getPost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var post models.Post
	if err := m.visiblePosts(c).Where("id = ?", id).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	c.JSON(http.StatusOK, m.newPostView(&post, true))
}

func (m *ContentModule) getPostBySlug(c *gin.Context) {
	slug := c.Param("slug")

	var post models.Post
	if err := m.visiblePosts(c).Where("slug = ?", slug).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	c.JSON(http.StatusOK, m.newPostView(&post, true))
}

func validStatus(status string) bool {
	return status == models.StatusDraft ||
		status == models.StatusPublish ||
		status == models.StatusScheduled
}

func (m *ContentModule) createPost(c *gin.Context) {
	title := c.PostForm("title")
	content := c.PostForm("content")
	tags := c.PostForm("tags")
	status := c.PostForm("status")
	if status == "" {
		status = models.StatusDraft
	}

	fieldErrors := gin.H{}
	if title == "" {
		fieldErrors["title"] = "This field is required."
	}
	if content == "" {
		fieldErrors["content"] = "This field is required."
	}
	if !validStatus(status) {
		fieldErrors["status"] = "Status must be draft, publish or scheduled."
	}

	var categoryID *int
	if raw := c.PostForm("category_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			fieldErrors["category_id"] = "Invalid category."
		} else {
			var count int64
			m.db.Model(&models.Category{}).Where("id = ?", id).Count(&count)
			if count == 0 {
				fieldErrors["category_id"] = "Invalid category."
			} else {
				categoryID = &id
			}
		}
	}

	imagePath := ""
	if file, err := c.FormFile("image"); err == nil {
		path, msg := saveUploadedImage(c, file, "post_images")
		if msg != "" {
			fieldErrors["image"] = msg
		} else {
			imagePath = path
		}
	}

	if len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	// The author is always the authenticated caller, never client-supplied.
	author := auth.CurrentUser(c)
	authorID := author.ID

	post := models.Post{
		Title:      title,
		Content:    content,
		CategoryID: categoryID,
		Tags:       tags,
		Status:     status,
		Image:      imagePath,
		AuthorID:   &authorID,
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueSlug(tx, &models.Post{}, title, "post")
		if err != nil {
			return err
		}
		post.Slug = slug

		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		// The 1:1 stats row is part of the same transaction as the post.
		return engagement.CreateStats(tx, post.ID)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	m.recorder.RecordPostAction(engagement.ActionCreatePost, &post)

	c.JSON(http.StatusCreated, m.newPostView(&post, false))
}

func (m *ContentModule) updatePost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var post models.Post
	if err := m.db.First(&post, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	fieldErrors := gin.H{}
	if title, ok := c.GetPostForm("title"); ok {
		if title == "" {
			fieldErrors["title"] = "This field is required."
		} else {
			post.Title = title
		}
	}
	if content, ok := c.GetPostForm("content"); ok {
		post.Content = content
	}
	if tags, ok := c.GetPostForm("tags"); ok {
		post.Tags = tags
	}
	if status, ok := c.GetPostForm("status"); ok {
		if !validStatus(status) {
			fieldErrors["status"] = "Status must be draft, publish or scheduled."
		} else {
			post.Status = status
		}
	}
	if raw, ok := c.GetPostForm("category_id"); ok {
		if raw == "" {
			post.CategoryID = nil
		} else if categoryID, err := strconv.Atoi(raw); err != nil {
			fieldErrors["category_id"] = "Invalid category."
		} else {
			var count int64
			m.db.Model(&models.Category{}).Where("id = ?", categoryID).Count(&count)
			if count == 0 {
				fieldErrors["category_id"] = "Invalid category."
			} else {
				post.CategoryID = &categoryID
			}
		}
	}
	if file, err := c.FormFile("image"); err == nil {
		path, msg := saveUploadedImage(c, file, "post_images")
		if msg != "" {
			fieldErrors["image"] = msg
		} else {
			post.Image = path
		}
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	if err := m.db.Save(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
		return
	}

	cache.ClearCache("posts", post.Slug)
	m.recorder.RecordPostAction(engagement.ActionEditPost, &post)

	c.JSON(http.StatusOK, m.newPostView(&post, false))
}

// deletePost removes the post and everything it owns: comments, their
// replies, the stats row and its like memberships.
func (m *ContentModule) deletePost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var post models.Post
	if err := m.db.First(&post, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		var commentIDs []int
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", id).
			Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.Reply{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}

		var stats models.PostStats
		if err := tx.Where("post_id = ?", id).First(&stats).Error; err == nil {
			if err := tx.Exec("DELETE FROM post_likes WHERE post_stats_id = ?", stats.ID).Error; err != nil {
				return err
			}
			if err := tx.Delete(&stats).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}

	cache.ClearCache("posts", post.Slug)
	m.recorder.RecordPostAction(engagement.ActionDeletePost, &post)

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// --- categories ---

func (m *ContentModule) listCategories(c *gin.Context) {
	var categories []models.Category
	if err := m.db.Order("name ASC").Find(&categories).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load categories"})
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (m *ContentModule) getCategory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	var category models.Category
	if err := m.db.First(&category, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}
	c.JSON(http.StatusOK, category)
}

func (m *ContentModule) createCategory(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"name": "This field is required."}})
		return
	}

	imagePath := ""
	if file, err := c.FormFile("image"); err == nil {
		path, msg := saveUploadedImage(c, file, "category_images")
		if msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"image": msg}})
			return
		}
		imagePath = path
	}

	category := models.Category{Name: name, Image: imagePath}
	err := m.db.Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueSlug(tx, &models.Category{}, name, "category")
		if err != nil {
			return err
		}
		category.Slug = slug
		return tx.Create(&category).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (m *ContentModule) updateCategory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	var category models.Category
	if err := m.db.First(&category, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	if name, ok := c.GetPostForm("name"); ok {
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"name": "This field is required."}})
			return
		}
		category.Name = name
	}
	if file, err := c.FormFile("image"); err == nil {
		path, msg := saveUploadedImage(c, file, "category_images")
		if msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"image": msg}})
			return
		}
		category.Image = path
	}

	if err := m.db.Save(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update category"})
		return
	}
	c.JSON(http.StatusOK, category)
}

// deleteCategory nulls the category reference on its posts before removing
// the row; posts survive category deletion.
func (m *ContentModule) deleteCategory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Category{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}
