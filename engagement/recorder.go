package engagement

import (
	"log"

	"gorm.io/gorm"

	"github.com/mohinkhan13/MyBlog-Api/models"
)

// Action kinds recorded in the activity log.
const (
	ActionCreatePost          = "CREATE_POST"
	ActionEditPost            = "EDIT_POST"
	ActionDeletePost          = "DELETE_POST"
	ActionComment             = "COMMENT"
	ActionReply               = "REPLY"
	ActionLikePost            = "LIKE_POST"
	ActionSharePost           = "SHARE_POST"
	ActionViewPost            = "VIEW_POST"
	ActionLogin               = "LOGIN"
	ActionAdminLogin          = "ADMIN_LOGIN"
	ActionLogout              = "LOGOUT"
	ActionSubscribeNewsletter = "SUBSCRIBE_NEWSLETTER"
	ActionContactSubmission   = "CONTACT_SUBMISSION"
)

// Recorder appends entries to the activity log. Appends are best-effort:
// a failed append is logged and swallowed so it can never abort the
// primary write that triggered it.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(entry models.ActivityLog) {
	if err := r.db.Create(&entry).Error; err != nil {
		log.Printf("activity log append failed (action=%s): %v", entry.Action, err)
	}
}

// RecordPostAction logs a post lifecycle event with the post's author as
// the acting user.
func (r *Recorder) RecordPostAction(action string, post *models.Post) {
	postID := post.ID
	r.Record(models.ActivityLog{
		UserID: post.AuthorID,
		PostID: &postID,
		Action: action,
	})
}

// RecordAuthAction logs a login/logout event with the caller's IP.
func (r *Recorder) RecordAuthAction(action string, userID int, ip string) {
	r.Record(models.ActivityLog{
		UserID:    &userID,
		Action:    action,
		IPAddress: ip,
	})
}
