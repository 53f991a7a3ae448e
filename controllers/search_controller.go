package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"klik-api/cache"
	"klik-api/models"
	"klik-api/services"
	"klik-api/utils"
)

const (
	profileSearchLimit = 10
	trendingWindow     = 100
	trendingLimit      = 10
)

type SearchController struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewSearchController(db *gorm.DB, cache *cache.Cache) *SearchController {
	return &SearchController{db: db, cache: cache}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern builds a case-insensitive substring pattern for use with
// "LIKE ? ESCAPE '!'".
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
}

// hidden restricts query to rows whose column is not a blocked user of the viewer.
func (sc *SearchController) hidden(c *gin.Context, query *gorm.DB, column string) (*gorm.DB, bool) {
	userID := currentUserID(c)
	if userID == "" {
		return query, true
	}
	ids, err := services.HiddenUserIDs(sc.db, userID)
	if err != nil {
		SendServiceError(c, err, "Search failed")
		return nil, false
	}
	if len(ids) > 0 {
		query = query.Where(column+" NOT IN ?", ids)
	}
	return query, true
}

func (sc *SearchController) SearchProfiles(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"users": []models.ProfileSummary{}})
		return
	}

	pattern := likePattern(q)
	query := sc.db.Where("LOWER(username) LIKE ? ESCAPE '!' OR LOWER(display_name) LIKE ? ESCAPE '!'", pattern, pattern)
	query, ok := sc.hidden(c, query, "id")
	if !ok {
		return
	}

	var profiles []models.Profile
	if err := query.Order("followers_count DESC").Limit(profileSearchLimit).Find(&profiles).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Search failed")
		return
	}

	users := make([]models.ProfileSummary, 0, len(profiles))
	for i := range profiles {
		users = append(users, profiles[i].Summary())
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (sc *SearchController) SearchPosts(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		utils.SendValidationError(c, "q is required")
		return
	}
	sc.sendPosts(c, sc.db.Model(&models.Post{}).Where("LOWER(content) LIKE ? ESCAPE '!'", likePattern(q)))
}

// SearchHashtag lists posts containing #tag, newest first.
func (sc *SearchController) SearchHashtag(c *gin.Context) {
	tag := strings.TrimPrefix(strings.TrimSpace(c.Param("tag")), "#")
	if tag == "" {
		utils.SendValidationError(c, "tag is required")
		return
	}
	sc.sendPosts(c, sc.db.Model(&models.Post{}).Where("LOWER(content) LIKE ? ESCAPE '!'", likePattern("#"+tag)))
}

func (sc *SearchController) sendPosts(c *gin.Context, query *gorm.DB) {
	page, limit, offset := utils.ParsePagination(c, 10)
	query, ok := sc.hidden(c, query, "author_id")
	if !ok {
		return
	}

	var total int64
	query.Session(&gorm.Session{}).Count(&total)

	var posts []models.Post
	if err := query.Session(&gorm.Session{}).Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Search failed")
		return
	}

	views, err := buildPostViews(sc.db, currentUserID(c), posts)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Search failed")
		return
	}
	c.JSON(http.StatusOK, models.FeedResponse{
		Posts:      views,
		Pagination: models.NewPagination(page, limit, total),
	})
}

// GetTrending counts hashtags over the most recent posts that carry one.
func (sc *SearchController) GetTrending(c *gin.Context) {
	hashtags, err := sc.cache.GetTrending(func() ([]utils.HashtagCount, error) {
		var contents []string
		err := sc.db.Model(&models.Post{}).
			Where("content LIKE ?", "%#%").
			Order("created_at DESC").
			Limit(trendingWindow).
			Pluck("content", &contents).Error
		if err != nil {
			return nil, err
		}
		return utils.CountHashtags(contents, trendingLimit), nil
	})
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to load trending hashtags")
		return
	}
	c.JSON(http.StatusOK, gin.H{"hashtags": hashtags})
}
