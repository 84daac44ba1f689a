package handlers

import (
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"

	"github.com/gin-gonic/gin"
)

// ChatbotHandler serves assistant conversations and the FAQ list.
type ChatbotHandler struct {
	Chatbot *services.ChatbotService
}

func NewChatbotHandler(chatbot *services.ChatbotService) *ChatbotHandler {
	return &ChatbotHandler{Chatbot: chatbot}
}

// AskRequest is a message sent to the assistant.
type AskRequest struct {
	Content string `json:"content" binding:"required,max=2000"`
}

// FaqQuery filters the FAQ listings.
type FaqQuery struct {
	Locale string `form:"locale" binding:"omitempty,oneof=vi en"`
}

// StartSession opens a conversation for the logged-in user.
func (h *ChatbotHandler) StartSession(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req services.StartSessionInput
	if c.Request.ContentLength > 0 && !utils.BindAndValidate(c, &req) {
		return
	}
	session, err := h.Chatbot.StartSession(c.Request.Context(), actor, req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Chat session started", session)
}

// GetTranscript returns a session with its messages.
func (h *ChatbotHandler) GetTranscript(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	session, err := h.Chatbot.Transcript(c.Request.Context(), actor, c.Param("token"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Chat session fetched successfully", session)
}

// Ask posts a message and returns the assistant's answer.
func (h *ChatbotHandler) Ask(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req AskRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	reply, err := h.Chatbot.Ask(c.Request.Context(), actor, c.Param("token"), req.Content)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Message sent successfully", reply)
}

// EndSession closes a conversation.
func (h *ChatbotHandler) EndSession(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	session, err := h.Chatbot.EndSession(c.Request.Context(), actor, c.Param("token"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Chat session ended", session)
}

// ListFaqs lists enabled FAQ entries.
func (h *ChatbotHandler) ListFaqs(c *gin.Context) {
	var q FaqQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	faqs, err := h.Chatbot.ListFaqs(c.Request.Context(), q.Locale, true)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "FAQs fetched successfully", faqs)
}

// ListAllFaqs lists every FAQ entry, disabled ones included.
func (h *ChatbotHandler) ListAllFaqs(c *gin.Context) {
	var q FaqQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	faqs, err := h.Chatbot.ListFaqs(c.Request.Context(), q.Locale, false)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "FAQs fetched successfully", faqs)
}

func (h *ChatbotHandler) CreateFaq(c *gin.Context) {
	var req services.FaqInput
	if !utils.BindAndValidate(c, &req) {
		return
	}
	faq, err := h.Chatbot.CreateFaq(c.Request.Context(), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "FAQ created successfully", faq)
}

func (h *ChatbotHandler) UpdateFaq(c *gin.Context) {
	var req services.FaqInput
	if !utils.BindAndValidate(c, &req) {
		return
	}
	faq, err := h.Chatbot.UpdateFaq(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "FAQ updated successfully", faq)
}

func (h *ChatbotHandler) DeleteFaq(c *gin.Context) {
	if err := h.Chatbot.DeleteFaq(c.Request.Context(), c.Param("id")); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "FAQ deleted successfully", nil)
}
