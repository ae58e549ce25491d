package engagement

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mohinkhan13/MyBlog-Api/models"
)

// Score weights for the post-of-the-week ranking.
const (
	weightViews    = 0.2
	weightLikes    = 0.3
	weightComments = 0.3
	weightShares   = 0.2
)

// Score computes the weighted engagement score for a stats row.
func Score(s *models.PostStats) float64 {
	return weightViews*float64(s.Views) +
		weightLikes*float64(s.Likes) +
		weightComments*float64(s.Comments) +
		weightShares*float64(s.Shares)
}

// CreateStats creates the zeroed 1:1 stats row for a freshly created post.
// Must run inside the same transaction as the post insert.
func CreateStats(tx *gorm.DB, postID int) error {
	return tx.Create(&models.PostStats{PostID: postID}).Error
}

// getOrCreateStats returns the stats row for a post, creating a zeroed one
// when it is missing (e.g. bulk-loaded posts the reconciliation pass has
// not seen yet).
func getOrCreateStats(tx *gorm.DB, postID int) (*models.PostStats, error) {
	var stats models.PostStats
	err := tx.Where(models.PostStats{PostID: postID}).FirstOrCreate(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// CommentAdded bumps the comments counter for a post. Must run inside the
// transaction that inserts the comment so a failure rolls both back.
func CommentAdded(tx *gorm.DB, postID int) error {
	stats, err := getOrCreateStats(tx, postID)
	if err != nil {
		return err
	}
	return tx.Model(stats).
		UpdateColumn("comments", gorm.Expr("comments + 1")).Error
}

// CommentRemoved decrements the comments counter, floored at zero.
func CommentRemoved(tx *gorm.DB, postID int) error {
	return tx.Model(&models.PostStats{}).
		Where("post_id = ?", postID).
		UpdateColumn("comments", gorm.Expr("CASE WHEN comments > 0 THEN comments - 1 ELSE 0 END")).
		Error
}

// ReconcileStats scans all posts and creates a stats row for any post
// missing one. Runs synchronously at startup after migrations; it is not
// safe to run concurrently with traffic.
func ReconcileStats(db *gorm.DB) (int, error) {
	var posts []models.Post
	if err := db.Find(&posts).Error; err != nil {
		return 0, err
	}

	created := 0
	for _, post := range posts {
		var count int64
		if err := db.Model(&models.PostStats{}).Where("post_id = ?", post.ID).Count(&count).Error; err != nil {
			return created, err
		}
		if count == 0 {
			if err := db.Create(&models.PostStats{PostID: post.ID}).Error; err != nil {
				return created, err
			}
			created++
		}
	}

	if created > 0 {
		log.Printf("reconciliation created %d missing post stats rows", created)
	}
	return created, nil
}

// ToggleLike flips the caller's membership in the liked-by set and moves
// the likes counter with it, all under one transaction with a row lock so
// concurrent toggles by the same user cannot double-apply.
func ToggleLike(db *gorm.DB, statsID, userID int) (liked bool, stats *models.PostStats, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		var s models.PostStats
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, statsID).Error; err != nil {
			return err
		}

		var member int64
		if err := tx.Table("post_likes").
			Where("post_stats_id = ? AND user_id = ?", s.ID, userID).
			Count(&member).Error; err != nil {
			return err
		}

		if member > 0 {
			if err := tx.Exec("DELETE FROM post_likes WHERE post_stats_id = ? AND user_id = ?",
				s.ID, userID).Error; err != nil {
				return err
			}
			if err := tx.Model(&s).
				UpdateColumn("likes", gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")).
				Error; err != nil {
				return err
			}
			liked = false
		} else {
			if err := tx.Exec("INSERT INTO post_likes (post_stats_id, user_id) VALUES (?, ?)",
				s.ID, userID).Error; err != nil {
				return err
			}
			if err := tx.Model(&s).
				UpdateColumn("likes", gorm.Expr("likes + 1")).Error; err != nil {
				return err
			}
			liked = true
		}

		if err := tx.First(&s, statsID).Error; err != nil {
			return err
		}
		stats = &s
		return nil
	})
	return liked, stats, err
}

// PostOfTheWeek picks the highest-scoring post created in the current
// calendar week (ISO week-of-year). When the week has no posts it falls
// back to the highest-scoring post overall. Returns gorm.ErrRecordNotFound
// only when there are no posts at all. Ties keep the first row in
// primary-key order.
func PostOfTheWeek(db *gorm.DB, now time.Time) (*models.Post, *models.PostStats, error) {
	var posts []models.Post
	if err := db.Order("id ASC").Find(&posts).Error; err != nil {
		return nil, nil, err
	}
	if len(posts) == 0 {
		return nil, nil, gorm.ErrRecordNotFound
	}

	year, week := now.ISOWeek()
	var candidates []models.Post
	for _, p := range posts {
		py, pw := p.CreatedAt.ISOWeek()
		if py == year && pw == week {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		candidates = posts
	}

	var bestPost *models.Post
	var bestStats *models.PostStats
	bestScore := -1.0
	for i := range candidates {
		post := &candidates[i]
		var stats models.PostStats
		err := db.Where("post_id = ?", post.ID).First(&stats).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stats = models.PostStats{PostID: post.ID}
		} else if err != nil {
			return nil, nil, err
		}
		if score := Score(&stats); score > bestScore {
			bestScore = score
			bestPost = post
			s := stats
			bestStats = &s
		}
	}

	return bestPost, bestStats, nil
}
