package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edgard/codegenius/internal/gateway"
)

type codeRequest struct {
	Code     string `json:"code"     binding:"required"`
	Language string `json:"language" binding:"required,supported_language"`
}

type translateRequest struct {
	Code         string `json:"code"         binding:"required"`
	FromLanguage string `json:"fromLanguage" binding:"required,supported_language"`
	ToLanguage   string `json:"toLanguage"   binding:"required,supported_language"`
}

type chatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages     []chatMessage `json:"messages"     binding:"required,min=1,dive"`
	SystemPrompt string        `json:"systemPrompt"`
}

func (s *Server) handleDebug(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := s.svc.AnalyzeCode(c.Request.Context(), strings.TrimSpace(req.Code), req.Language)
	if err != nil {
		s.respondGatewayError(c, gateway.OpDebug, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTranslate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := s.svc.TranslateCode(c.Request.Context(), strings.TrimSpace(req.Code), req.FromLanguage, req.ToLanguage)
	if err != nil {
		s.respondGatewayError(c, gateway.OpTranslate, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExplain(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := s.svc.ExplainCode(c.Request.Context(), strings.TrimSpace(req.Code), req.Language)
	if err != nil {
		s.respondGatewayError(c, gateway.OpExplain, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	messages := make([]gateway.ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = gateway.ChatMessage{Role: gateway.Role(m.Role), Content: m.Content}
	}

	reply, err := s.svc.ChatWithModel(c.Request.Context(), messages, req.SystemPrompt)
	if err != nil {
		s.respondGatewayError(c, gateway.OpChat, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "codegenius",
		"languages": SupportedLanguages(),
	})
}

func handleNotFound(c *gin.Context) {
	RespondError(c, http.StatusNotFound, ErrCodeNotFound, "Route not found")
}
