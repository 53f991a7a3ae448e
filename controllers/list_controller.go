package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"klik-api/models"
	"klik-api/utils"
)

type ListController struct {
	db *gorm.DB
}

func NewListController(db *gorm.DB) *ListController {
	return &ListController{db: db}
}

type CreateListRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (lc *ListController) CreateList(c *gin.Context) {
	var req CreateListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || utils.RuneLen(name) > 100 {
		utils.SendValidationError(c, "List name must be between 1 and 100 characters")
		return
	}

	list := models.UserList{
		ID:          uuid.New().String(),
		OwnerID:     currentUserID(c),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsPrivate:   req.IsPrivate,
	}
	if err := lc.db.Create(&list).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to create list")
		return
	}
	c.JSON(http.StatusCreated, models.UserListWithCount{UserList: list})
}

// GetMyLists returns the caller's lists with their member counts.
func (lc *ListController) GetMyLists(c *gin.Context) {
	var lists []models.UserListWithCount
	err := lc.db.Model(&models.UserList{}).
		Select("user_lists.*, (SELECT COUNT(*) FROM user_list_members WHERE user_list_members.list_id = user_lists.id) AS member_count").
		Where("owner_id = ?", currentUserID(c)).
		Order("created_at DESC").
		Scan(&lists).Error
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch lists")
		return
	}
	if lists == nil {
		lists = []models.UserListWithCount{}
	}
	c.JSON(http.StatusOK, gin.H{"lists": lists})
}

func (lc *ListController) ownedList(c *gin.Context) (*models.UserList, bool) {
	var list models.UserList
	if err := lc.db.First(&list, "id = ? AND owner_id = ?", c.Param("id"), currentUserID(c)).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "List not found")
		return nil, false
	}
	return &list, true
}

func (lc *ListController) DeleteList(c *gin.Context) {
	list, ok := lc.ownedList(c)
	if !ok {
		return
	}

	err := lc.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("list_id = ?", list.ID).Delete(&models.UserListMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(list).Error
	})
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to delete list")
		return
	}
	utils.SendSuccess(c, "List deleted", nil)
}

func (lc *ListController) GetMembers(c *gin.Context) {
	list, ok := lc.ownedList(c)
	if !ok {
		return
	}

	var members []models.UserListMember
	if err := lc.db.Preload("Member").Where("list_id = ?", list.ID).Order("created_at ASC").Find(&members).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch members")
		return
	}

	users := make([]models.ProfileSummary, 0, len(members))
	for i := range members {
		users = append(users, members[i].Member.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"list": list, "members": users})
}

func (lc *ListController) AddMember(c *gin.Context) {
	list, ok := lc.ownedList(c)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	var user models.Profile
	if err := lc.db.First(&user, "id = ?", req.UserID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}

	err := lc.db.Create(&models.UserListMember{ListID: list.ID, MemberID: user.ID}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.SendError(c, http.StatusConflict, "User is already in this list")
		return
	}
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to add member")
		return
	}
	utils.SendCreated(c, "Member added", user.Summary())
}

func (lc *ListController) RemoveMember(c *gin.Context) {
	list, ok := lc.ownedList(c)
	if !ok {
		return
	}

	result := lc.db.Where("list_id = ? AND member_id = ?", list.ID, c.Param("userId")).Delete(&models.UserListMember{})
	if result.Error != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to remove member")
		return
	}
	if result.RowsAffected == 0 {
		utils.SendError(c, http.StatusNotFound, "User is not in this list")
		return
	}
	utils.SendSuccess(c, "Member removed", nil)
}

// GetListsContaining returns the ids of the caller's lists that include :userId.
func (lc *ListController) GetListsContaining(c *gin.Context) {
	var ids []string
	err := lc.db.Model(&models.UserListMember{}).
		Joins("JOIN user_lists ON user_lists.id = user_list_members.list_id").
		Where("user_lists.owner_id = ? AND user_list_members.member_id = ?", currentUserID(c), c.Param("userId")).
		Pluck("user_list_members.list_id", &ids).Error
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch lists")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"list_ids": ids})
}
