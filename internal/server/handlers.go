package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/framelab/dailyframe/internal/posts"
	"github.com/framelab/dailyframe/internal/seed"
	"github.com/framelab/dailyframe/internal/topics"
	"github.com/framelab/dailyframe/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type tokenRequestPayload struct {
	IDToken string `json:"id_token"`
}

type tokenResponsePayload struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   int64         `json:"expires_in"`
	TokenType   string        `json:"token_type"`
	User        users.Profile `json:"user"`
}

// handleTokenExchange swaps a verified identity-provider token for a session
// token, creating the user on first sign-in.
func (h *httpHandler) handleTokenExchange(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("identity token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.users.ResolveUser(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to resolve user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user_resolution_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User:        user.Profile(),
	})
}

type topicPayload struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Keywords    []string  `json:"keywords"`
	Date        time.Time `json:"date"`
	IsActive    bool      `json:"is_active"`
}

func topicToPayload(topic topics.Topic) topicPayload {
	keywords := topic.KeywordList()
	if keywords == nil {
		keywords = []string{}
	}
	return topicPayload{
		ID:          topic.ID,
		Title:       topic.Title,
		Description: topic.Description,
		Keywords:    keywords,
		Date:        topic.Date,
		IsActive:    topic.IsActive,
	}
}

func (h *httpHandler) handleActiveTopic(c *gin.Context) {
	topic, err := h.topics.ActiveTopic(c.Request.Context())
	if err == topics.ErrNoActiveTopic {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_active_topic"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topicToPayload(topic))
}

func (h *httpHandler) handleGetTopic(c *gin.Context) {
	topic, err := h.topics.GetTopic(c.Request.Context(), c.Param("id"))
	if err == topics.ErrTopicNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topicToPayload(topic))
}

func (h *httpHandler) handleTopicPosts(c *gin.Context) {
	page, err := h.posts.ListTopicPosts(c.Request.Context(), c.Param("id"), queryInt(c, "limit"), c.Query("cursor"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) handleTodaysFeed(c *gin.Context) {
	feed, err := h.posts.TodaysFeed(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": feed})
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	view, err := h.posts.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	page, err := h.posts.ListComments(c.Request.Context(), c.Param("id"), queryInt(c, "limit"), c.Query("cursor"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// handleCreatePost accepts a multipart form with a topic_id field and an
// image file.
func (h *httpHandler) handleCreatePost(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	topicID := strings.TrimSpace(c.PostForm("topic_id"))
	fileHeader, err := c.FormFile("image")
	if topicID == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	view, err := h.posts.CreatePost(c.Request.Context(), userID, posts.CreatePostInput{
		TopicID:   topicID,
		ImageData: data,
		ImageType: fileHeader.Header.Get("Content-Type"),
		FileName:  fileHeader.Filename,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

type votePayload struct {
	Type string `json:"type"`
}

func (h *httpHandler) handleApplyVote(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request votePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	outcome, err := h.posts.ApplyVote(c.Request.Context(), userID, c.Param("id"), posts.VoteType(strings.ToUpper(strings.TrimSpace(request.Type))))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *httpHandler) handleUserVote(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	voteType, err := h.posts.UserVote(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, votePayload{Type: string(voteType)})
}

type commentRequestPayload struct {
	Content string `json:"content"`
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request commentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	view, err := h.posts.CreateComment(c.Request.Context(), userID, c.Param("id"), request.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

type mePayload struct {
	Profile users.Profile `json:"profile"`
	Stats   users.Stats   `json:"stats"`
}

func (h *httpHandler) handleMe(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err == users.ErrUserNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	stats, err := h.users.GetStats(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mePayload{Profile: user.Profile(), Stats: stats})
}

func (h *httpHandler) handleMyPosts(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	page, err := h.posts.ListUserPosts(c.Request.Context(), userID, queryInt(c, "limit"), c.Query("cursor"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type rotationPayload struct {
	Topic  topicPayload `json:"topic"`
	Reused bool         `json:"reused"`
	Pruned int          `json:"pruned"`
}

func (h *httpHandler) handleRotateTopic(c *gin.Context) {
	result, err := h.topics.Rotate(c.Request.Context())
	if err != nil {
		h.logger.Error("topic rotation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rotation_failed"})
		return
	}
	c.JSON(http.StatusOK, rotationPayload{
		Topic:  topicToPayload(result.Topic),
		Reused: result.Reused,
		Pruned: result.Pruned,
	})
}

type seedRequestPayload struct {
	Users  int `json:"users"`
	Topics int `json:"topics"`
}

func (h *httpHandler) handleSeed(c *gin.Context) {
	if h.seeder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	var request seedRequestPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}
	result, err := h.seeder.Seed(c.Request.Context(), seed.Options{Users: request.Users, Topics: request.Topics})
	if err != nil {
		h.logger.Error("seeding failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "seed_failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleReset(c *gin.Context) {
	if h.seeder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err := h.seeder.Reset(c.Request.Context()); err != nil {
		h.logger.Error("reset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func queryInt(c *gin.Context, name string) int {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
