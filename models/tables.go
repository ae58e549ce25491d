package models

import "time"

// Post publication states.
const (
	StatusDraft     = "draft"
	StatusPublish   = "publish"
	StatusScheduled = "scheduled"
)

type User struct {
	ID           int        `gorm:"primary_key;autoIncrement" json:"id"`
	Email        string     `gorm:"unique;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
	FName        string     `gorm:"not null" json:"fname"`
	LName        string     `gorm:"not null" json:"lname"`
	Phone        string     `json:"phone"`
	IsAdmin      bool       `gorm:"default:false" json:"is_admin"`
	IsStaff      bool       `gorm:"default:false" json:"is_staff"`
	IsSuperuser  bool       `gorm:"default:false" json:"is_superuser"`
	JoinedOn     time.Time  `gorm:"autoCreateTime" json:"joined_on"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

type Category struct {
	ID    int    `gorm:"primary_key;autoIncrement" json:"id"`
	Name  string `gorm:"not null" json:"name"`
	Slug  string `gorm:"unique;not null;index" json:"slug"`
	Image string `json:"image"`
}

type Post struct {
	ID         int       `gorm:"primary_key;autoIncrement" json:"id"`
	Title      string    `gorm:"not null" json:"title"`
	Slug       string    `gorm:"unique;not null;index" json:"slug"`
	Content    string    `gorm:"type:text" json:"content"`
	CategoryID *int      `gorm:"index" json:"category_id"` // nulled when the category is deleted
	Tags       string    `json:"tags"`                     // comma-separated
	Status     string    `gorm:"not null;default:'draft'" json:"status"`
	Image      string    `json:"image"`
	AuthorID   *int      `gorm:"index" json:"author_id"` // nulled when the author is deleted
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PostStats holds the engagement counters for exactly one post. A row is
// created together with the post and healed by the reconciliation pass.
type PostStats struct {
	ID       int    `gorm:"primary_key;autoIncrement" json:"id"`
	PostID   int    `gorm:"uniqueIndex;not null" json:"post_id"`
	Views    uint   `gorm:"default:0;index" json:"views"`
	Likes    uint   `gorm:"default:0;index" json:"likes"`
	Comments uint   `gorm:"default:0" json:"comments"`
	Shares   uint   `gorm:"default:0" json:"shares"`
	LikedBy  []User `gorm:"many2many:post_likes" json:"-"`
}

type Comment struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	PostID    int       `gorm:"not null;index" json:"post_id"`
	UserID    *int      `gorm:"index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Reply struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	CommentID int       `gorm:"not null;index" json:"comment_id"`
	UserID    *int      `gorm:"index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Contact struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	UserID    *int      `gorm:"index" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null" json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Newsletter struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	Email     string    `gorm:"unique;not null" json:"email"`
	UserID    *int      `gorm:"index" json:"user_id"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityLog is append-only. References to users, posts and comments are
// weak so the history outlives its subjects.
type ActivityLog struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	UserID    *int      `gorm:"index" json:"user_id"`
	PostID    *int      `gorm:"index" json:"post_id"`
	CommentID *int      `gorm:"index" json:"comment_id"`
	Action    string    `gorm:"not null;index" json:"action"`
	IPAddress string    `json:"ip_address"`
	TimeSpent uint      `json:"time_spent"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// RevokedToken blacklists refresh-token JTIs after logout. Rows past
// ExpiresAt are dead weight and can be purged at any time.
type RevokedToken struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	JTI       string    `gorm:"unique;not null" json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
