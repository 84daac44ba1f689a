package services

import (
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const minFaqScore = 2

var fallbackAnswers = map[string]string{
	"vi": "Xin lỗi, tôi chưa có câu trả lời cho câu hỏi này. Vui lòng liên hệ quầy lễ tân.",
	"en": "Sorry, I do not have an answer for that yet. Please contact the front desk.",
}

// ChatbotService runs assistant conversations answered from the FAQ list.
type ChatbotService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewChatbotService(db *gorm.DB, log *zap.Logger, now func() time.Time) *ChatbotService {
	if now == nil {
		now = time.Now
	}
	return &ChatbotService{db: db, log: log, now: now}
}

// StartSessionInput opens a conversation.
type StartSessionInput struct {
	Channel string `json:"channel" binding:"omitempty,oneof=WEB APP"`
	Locale  string `json:"locale" binding:"omitempty,oneof=vi en"`
}

// FaqInput creates or replaces an FAQ entry.
type FaqInput struct {
	Question string `json:"question" binding:"required,max=500"`
	Answer   string `json:"answer" binding:"required"`
	Tags     string `json:"tags" binding:"max=255"`
	Locale   string `json:"locale" binding:"omitempty,oneof=vi en"`
	Enabled  *bool  `json:"enabled"`
}

// ChatReply is the user's message and the assistant's answer.
type ChatReply struct {
	Question models.ChatbotMessage `json:"question"`
	Answer   models.ChatbotMessage `json:"answer"`
}

func newSessionToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// StartSession opens an active conversation owned by the actor.
func (s *ChatbotService) StartSession(ctx context.Context, actor Actor, in StartSessionInput) (*models.ChatbotSession, error) {
	if actor.IsSystem() {
		return nil, utils.ErrForbidden
	}
	session := models.ChatbotSession{
		UserID:       actor.UserID,
		SessionToken: newSessionToken(),
		Channel:      defaultString(in.Channel, "WEB"),
		Locale:       defaultString(in.Locale, "vi"),
		State:        models.ChatSessionActive,
		StartedAt:    s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// sessionFor loads a session by token. Admins may read any session; everyone
// else only their own.
func sessionFor(tx *gorm.DB, actor Actor, token string) (*models.ChatbotSession, error) {
	var session models.ChatbotSession
	if err := tx.Where("session_token = ?", token).First(&session).Error; err != nil {
		return nil, notFound("chat session", err)
	}
	if session.UserID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("chat session: %w", utils.ErrNotFound)
	}
	return &session, nil
}

// Transcript returns a session with its messages in order.
func (s *ChatbotService) Transcript(ctx context.Context, actor Actor, token string) (*models.ChatbotSession, error) {
	db := s.db.WithContext(ctx)
	session, err := sessionFor(db, actor, token)
	if err != nil {
		return nil, err
	}
	if err := db.Where("session_id = ?", session.ID).Order("created_at, id").Find(&session.Messages).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// Ask stores the user's message and the assistant's answer.
func (s *ChatbotService) Ask(ctx context.Context, actor Actor, token, content string) (*ChatReply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content is required: %w", utils.ErrValidation)
	}

	var reply ChatReply
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := sessionFor(tx, actor, token)
		if err != nil {
			return err
		}
		if session.UserID != actor.UserID {
			return utils.ErrForbidden
		}
		if session.State != models.ChatSessionActive {
			return fmt.Errorf("chat session has ended: %w", utils.ErrValidation)
		}

		var faqs []models.ChatbotFaq
		if err := tx.Where("enabled = ? AND locale = ?", true, session.Locale).
			Order("created_at, id").Find(&faqs).Error; err != nil {
			return err
		}

		reply.Question = models.ChatbotMessage{SessionID: session.ID, Sender: models.ChatSenderUser, Content: content}
		if err := tx.Create(&reply.Question).Error; err != nil {
			return err
		}

		reply.Answer = models.ChatbotMessage{SessionID: session.ID, Sender: models.ChatSenderBot}
		if faq := MatchFaq(faqs, content); faq != nil {
			faqID := faq.ID
			reply.Answer.Content = faq.Answer
			reply.Answer.FaqID = &faqID
		} else {
			reply.Answer.Content = fallbackAnswer(session.Locale)
		}
		return tx.Create(&reply.Answer).Error
	})
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// EndSession closes an active session. Ending an ended session is a no-op.
func (s *ChatbotService) EndSession(ctx context.Context, actor Actor, token string) (*models.ChatbotSession, error) {
	db := s.db.WithContext(ctx)
	session, err := sessionFor(db, actor, token)
	if err != nil {
		return nil, err
	}
	if session.State == models.ChatSessionEnded {
		return session, nil
	}
	ended := s.now().UTC()
	if err := db.Model(session).Updates(map[string]interface{}{
		"state":    models.ChatSessionEnded,
		"ended_at": ended,
	}).Error; err != nil {
		return nil, err
	}
	session.State = models.ChatSessionEnded
	session.EndedAt = &ended
	s.log.Info("chat session ended", zap.String("session_id", session.ID), zap.String("actor_id", actor.UserID))
	return session, nil
}

// ListFaqs lists FAQ entries, optionally only the enabled ones of a locale.
func (s *ChatbotService) ListFaqs(ctx context.Context, locale string, enabledOnly bool) ([]models.ChatbotFaq, error) {
	q := s.db.WithContext(ctx).Order("locale, question")
	if locale != "" {
		q = q.Where("locale = ?", locale)
	}
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var faqs []models.ChatbotFaq
	if err := q.Find(&faqs).Error; err != nil {
		return nil, err
	}
	return faqs, nil
}

func (s *ChatbotService) CreateFaq(ctx context.Context, in FaqInput) (*models.ChatbotFaq, error) {
	faq := models.ChatbotFaq{}
	applyFaq(&faq, in)
	if err := s.db.WithContext(ctx).Create(&faq).Error; err != nil {
		return nil, err
	}
	s.log.Info("faq created", zap.String("faq_id", faq.ID), zap.String("locale", faq.Locale))
	return &faq, nil
}

func (s *ChatbotService) UpdateFaq(ctx context.Context, id string, in FaqInput) (*models.ChatbotFaq, error) {
	db := s.db.WithContext(ctx)
	var faq models.ChatbotFaq
	if err := db.Where("id = ?", id).First(&faq).Error; err != nil {
		return nil, notFound("faq", err)
	}
	applyFaq(&faq, in)
	if err := db.Save(&faq).Error; err != nil {
		return nil, err
	}
	return &faq, nil
}

func (s *ChatbotService) DeleteFaq(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ChatbotFaq{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("faq: %w", utils.ErrNotFound)
	}
	return nil
}

func applyFaq(faq *models.ChatbotFaq, in FaqInput) {
	faq.Question = strings.TrimSpace(in.Question)
	faq.Answer = strings.TrimSpace(in.Answer)
	faq.Tags = strings.TrimSpace(in.Tags)
	faq.Locale = defaultString(in.Locale, "vi")
	faq.Enabled = in.Enabled == nil || *in.Enabled
}

// chatSessionForBooking returns the active session of the booking actor.
func chatSessionForBooking(tx *gorm.DB, actor Actor, token string) (*models.ChatbotSession, error) {
	session, err := sessionFor(tx, actor, token)
	if err != nil {
		return nil, err
	}
	if session.UserID != actor.UserID {
		return nil, utils.ErrForbidden
	}
	if session.State != models.ChatSessionActive {
		return nil, fmt.Errorf("chat session has ended: %w", utils.ErrValidation)
	}
	return session, nil
}

// MatchFaq picks the FAQ that best matches a question. A word found in the
// FAQ tags scores 2, a word of the FAQ question scores 1. Matching ignores case and diacritics.
// It returns nil when no entry reaches the minimum score; ties keep the
// earlier entry.
func MatchFaq(faqs []models.ChatbotFaq, question string) *models.ChatbotFaq {
	words := keywords(question)
	if len(words) == 0 {
		return nil
	}

	var best *models.ChatbotFaq
	bestScore := 0
	for i := range faqs {
		tags := map[string]bool{}
		for _, w := range keywords(faqs[i].Tags) {
			tags[w] = true
		}
		questionWords := map[string]bool{}
		for _, w := range keywords(faqs[i].Question) {
			questionWords[w] = true
		}

		score := 0
		for _, w := range words {
			switch {
			case tags[w]:
				score += 2
			case questionWords[w]:
				score++
			}
		}
		if score > bestScore {
			best, bestScore = &faqs[i], score
		}
	}
	if bestScore < minFaqScore {
		return nil
	}
	return best
}

// keywords splits text into distinct folded words of two or more letters.
func keywords(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.FieldsFunc(foldText(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) < 2 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

var dStroke = strings.NewReplacer("đ", "d", "Đ", "d")

// foldText lowercases text and strips Vietnamese diacritics.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, dStroke.Replace(s))
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func fallbackAnswer(locale string) string {
	if answer, ok := fallbackAnswers[locale]; ok {
		return answer
	}
	return fallbackAnswers["vi"]
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
