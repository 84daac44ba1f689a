package routes

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-app-server/internal/config"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

type server struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)
	now := func() time.Time { return time.Date(2025, 3, 10, 7, 0, 0, 0, loc) }

	db := testutil.NewDB(t)
	log := zap.NewNop()
	cfg := &config.Config{
		Origin:                    "http://localhost:3000",
		Environment:               "test",
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
		LoginRatePerMinute:        100,
		LoginBurst:                100,
		Clinic:                    config.ClinicConfig{Name: "Phòng khám Test", Timezone: "Asia/Ho_Chi_Minh"},
	}

	pricing := services.NewPricingResolver(db, nil, log)
	slots := services.NewSlotService(db, loc, now)
	router := NewRouter(Deps{
		DB:        db,
		Cfg:       cfg,
		Log:       log,
		Loc:       loc,
		Pricing:   pricing,
		Schedules: services.NewScheduleService(db, loc, log),
		Slots:     slots,
		Appointments: services.NewAppointmentService(db, slots, pricing, nil, log, services.AppointmentConfig{
			Location:          loc,
			BookingWindowDays: 5,
			CancelBefore:      2 * time.Hour,
			Now:               now,
		}),
		Billing: services.NewBillingService(db, pricing, nil, log, now),
		Reports: services.NewReportService(db, loc, now),
		Chatbot: services.NewChatbotService(db, log, now),
	})
	return &server{t: t, db: db, router: router}
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) data(w *httptest.ResponseRecorder, out interface{}) {
	s.t.Helper()
	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.NoError(s.t, json.Unmarshal(env.Data, out))
}

func (s *server) login(email string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	s.data(w, &resp)
	require.NotEmpty(s.t, resp.AccessToken)
	return resp.AccessToken
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "UP")
}

func TestRegisterLoginAndAccessControl(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"fullName": "Nguyễn Thị Lan",
		"email":    "Lan@Example.com",
		"password": "password123",
		"cccd":     "079200001234",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"fullName": "Someone Else",
		"email":    "other@example.com",
		"password": "password123",
		"cccd":     "12ab",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"fullName": "Duplicate",
		"email":    "lan@example.com",
		"password": "password123",
		"cccd":     "079200009999",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	token := s.login("lan@example.com")

	w = s.do(http.MethodGet, "/api/v1/patients/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var profile models.PatientProfile
	s.data(w, &profile)
	assert.Equal(t, "079200001234", profile.CCCD)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/patients/me", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/users", token, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/reports/dashboard", token, nil).Code)
}

func TestInactiveUserCannotLogin(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, models.RoleStaff)
	require.NoError(t, s.db.Model(user).Update("is_active", false).Error)

	w := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": user.Email, "password": "password123"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": user.Email, "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVisitFlowOverHTTP(t *testing.T) {
	s := newServer(t)

	patient := testutil.CreatePatient(t, s.db)
	doctor := testutil.CreateDoctor(t, s.db, "Thạc sĩ")
	staff := testutil.CreateUser(t, s.db, models.RoleStaff)
	testutil.CreateSchedule(t, s.db, doctor.ID, "2025-03-11", "08:00", "09:00", 30)

	w := s.do(http.MethodGet, "/api/v1/doctors/"+doctor.ID+"/slots?date=2025-03-11", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var slots []services.Slot
	s.data(w, &slots)
	require.Len(t, slots, 2)
	assert.Equal(t, "08:00", slots[0].Start)
	assert.True(t, slots[0].Available)

	patientToken := s.login(patient.User.Email)
	doctorToken := s.login(doctor.User.Email)
	staffToken := s.login(staff.Email)

	booking := map[string]string{"doctorId": doctor.ID, "date": "2025-03-11", "time": "08:00", "reason": "Headache"}
	w = s.do(http.MethodPost, "/api/v1/appointments", patientToken, booking)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var appt models.Appointment
	s.data(w, &appt)
	assert.Equal(t, models.StatusPending, appt.Status)

	w = s.do(http.MethodPost, "/api/v1/appointments", patientToken, booking)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Patients cannot drive the visit.
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPatch, "/api/v1/appointments/"+appt.ID+"/start", patientToken, nil).Code)

	base := "/api/v1/appointments/" + appt.ID
	require.Equal(t, http.StatusOK, s.do(http.MethodPatch, base+"/confirm", doctorToken, nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPatch, base+"/start", doctorToken, nil).Code)

	w = s.do(http.MethodPut, base+"/record", doctorToken, map[string]string{"symptoms": "Đau đầu", "diagnosis": "Migraine"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPatch, base+"/complete", doctorToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var invoice models.Invoice
	s.data(w, &invoice)
	assert.True(t, invoice.AmountDue.Equal(decimal.NewFromInt(300000)), invoice.AmountDue.String())
	assert.Equal(t, models.InvoiceUnpaid, invoice.Status)

	// Only the front desk takes payments.
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/invoices/"+invoice.ID+"/pay", doctorToken, nil).Code)

	w = s.do(http.MethodPost, "/api/v1/invoices/"+invoice.ID+"/pay", staffToken, map[string]string{"note": "cash"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.data(w, &invoice)
	assert.Equal(t, models.InvoicePaid, invoice.Status)

	w = s.do(http.MethodPost, "/api/v1/invoices/"+invoice.ID+"/print", staffToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "original")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = s.do(http.MethodGet, base+"/summary.pdf", patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = s.do(http.MethodGet, "/api/v1/patients/me/history", patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var history []models.Appointment
	s.data(w, &history)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].MedicalRecord)
	assert.Equal(t, "Migraine", history[0].MedicalRecord.Diagnosis)
}

func TestChatbotOverHTTP(t *testing.T) {
	s := newServer(t)
	admin := testutil.CreateUser(t, s.db, models.RoleAdmin)
	staff := testutil.CreateUser(t, s.db, models.RoleStaff)
	patient := testutil.CreatePatient(t, s.db)

	adminToken := s.login(admin.Email)
	staffToken := s.login(staff.Email)
	patientToken := s.login(patient.User.Email)

	faq := map[string]string{"question": "Phòng khám mở cửa lúc mấy giờ?", "answer": "07:00 - 17:00", "tags": "giờ, mở cửa"}
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/chatbot/faqs", patientToken, faq).Code)
	w := s.do(http.MethodPost, "/api/v1/chatbot/faqs", adminToken, faq)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/chatbot/faqs", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var faqs []models.ChatbotFaq
	s.data(w, &faqs)
	assert.Len(t, faqs, 1)

	w = s.do(http.MethodPost, "/api/v1/chatbot/sessions", patientToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var session models.ChatbotSession
	s.data(w, &session)
	require.NotEmpty(t, session.SessionToken)

	path := "/api/v1/chatbot/sessions/" + session.SessionToken
	w = s.do(http.MethodPost, path+"/messages", patientToken, map[string]string{"content": "Mấy giờ mở cửa vậy?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reply services.ChatReply
	s.data(w, &reply)
	assert.Equal(t, "07:00 - 17:00", reply.Answer.Content)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, staffToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/chatbot/sessions", "", nil).Code)

	// deleting an account removes its conversations
	w = s.do(http.MethodPost, "/api/v1/chatbot/sessions", staffToken, map[string]string{"locale": "en"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodDelete, "/api/v1/users/"+staff.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var remaining int64
	require.NoError(t, s.db.Model(&models.ChatbotSession{}).Where("user_id = ?", staff.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
}
