package routes

import (
	"clinic-app-server/internal/config"
	"clinic-app-server/internal/documents"
	"clinic-app-server/internal/handlers"
	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/storage"
	"clinic-app-server/internal/utils"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	DB           *gorm.DB
	Cfg          *config.Config
	Log          *zap.Logger
	Loc          *time.Location
	Avatars      storage.AvatarStore
	Pricing      *services.PricingResolver
	Schedules    *services.ScheduleService
	Slots        *services.SlotService
	Appointments *services.AppointmentService
	Billing      *services.BillingService
	Reports      *services.ReportService
	Chatbot      *services.ChatbotService
}

// NewRouter builds the gin engine with the global middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.RegisterValidators()

	router := gin.New()
	router.Use(middleware.Recovery(d.Log), middleware.RequestLogger(d.Log))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{d.Cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	SetupRoutes(router, d)
	return router
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, d Deps) {
	clinic := documents.ClinicInfo{
		Name:    d.Cfg.Clinic.Name,
		Address: d.Cfg.Clinic.Address,
		Phone:   d.Cfg.Clinic.Phone,
	}

	authHandler := handlers.NewAuthHandler(d.DB, d.Cfg, d.Avatars, d.Log)
	userHandler := handlers.NewUserHandler(d.DB, d.Avatars, d.Log)
	patientHandler := handlers.NewPatientHandler(d.DB, d.Log)
	staffHandler := handlers.NewStaffHandler(d.DB)
	doctorHandler := handlers.NewDoctorHandler(d.DB, d.Pricing, d.Log)
	catalogHandler := handlers.NewCatalogHandler(d.DB, d.Pricing, d.Log)
	scheduleHandler := handlers.NewScheduleHandler(d.Schedules, d.Slots)
	appointmentHandler := handlers.NewAppointmentHandler(d.Appointments)
	medicalRecordHandler := handlers.NewMedicalRecordHandler(d.Appointments, clinic)
	invoiceHandler := handlers.NewInvoiceHandler(d.Billing, clinic, d.Loc)
	reportHandler := handlers.NewReportHandler(d.Reports)
	chatbotHandler := handlers.NewChatbotHandler(d.Chatbot)

	loginLimiter := middleware.NewIPRateLimiter(d.Cfg.LoginRatePerMinute, d.Cfg.LoginBurst)

	admin := middleware.RoleAuthMiddleware(models.RoleAdmin)
	frontDesk := middleware.RoleAuthMiddleware(models.RoleStaff, models.RoleAdmin)
	clinician := middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", loginLimiter.Middleware(), authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
			authRoutes.POST("/logout", authHandler.Logout)
		}

		public.GET("/specialties", catalogHandler.ListSpecialties)
		public.GET("/doctors", doctorHandler.ListDoctors)
		public.GET("/doctors/:id", doctorHandler.GetDoctor)
		public.GET("/doctors/:id/slots", scheduleHandler.AvailableSlots)
		public.GET("/chatbot/faqs", chatbotHandler.ListFaqs)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(d.Cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
			authRoutesPrivate.POST("/change-password", authHandler.ChangePassword)
			authRoutesPrivate.POST("/avatar", authHandler.UploadAvatar)
		}

		userRoutes := private.Group("/users", admin)
		{
			userRoutes.POST("", userHandler.CreateUser)
			userRoutes.GET("", userHandler.GetUsers)
			userRoutes.GET("/:id", userHandler.GetUserByID)
			userRoutes.PUT("/:id", userHandler.UpdateUser)
			userRoutes.PATCH("/:id/active", userHandler.SetActive)
			userRoutes.DELETE("/:id", userHandler.DeleteUser)
		}

		patientRoutes := private.Group("/patients")
		{
			self := middleware.RoleAuthMiddleware(models.RolePatient)
			patientRoutes.GET("/me", self, patientHandler.GetMyProfile)
			patientRoutes.PUT("/me", self, patientHandler.UpdateMyProfile)
			patientRoutes.GET("/me/history", self, medicalRecordHandler.PatientHistory)

			patientRoutes.GET("", frontDesk, patientHandler.ListPatients)
			patientRoutes.POST("", frontDesk, patientHandler.CreatePatient)
			patientRoutes.GET("/:id", frontDesk, patientHandler.GetPatient)
			patientRoutes.PUT("/:id", frontDesk, patientHandler.UpdatePatient)
			// Doctors only see patients they have treated; checked in the service.
			patientRoutes.GET("/:id/history",
				middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleStaff, models.RoleAdmin),
				medicalRecordHandler.PatientHistory)
		}

		staffRoutes := private.Group("/staff")
		{
			self := middleware.RoleAuthMiddleware(models.RoleStaff)
			staffRoutes.GET("/me", self, staffHandler.GetMyProfile)
			staffRoutes.PUT("/me", self, staffHandler.UpdateMyProfile)
			staffRoutes.GET("", admin, staffHandler.ListStaff)
			staffRoutes.PUT("/:id", admin, staffHandler.UpdateStaff)
		}

		doctorAdmin := private.Group("/doctors", admin)
		{
			doctorAdmin.POST("", doctorHandler.CreateDoctor)
			doctorAdmin.PUT("/:id", doctorHandler.UpdateDoctor)
			doctorAdmin.PATCH("/:id/toggle-active", doctorHandler.ToggleActive)
		}

		doctorBoard := private.Group("/doctor", middleware.RoleAuthMiddleware(models.RoleDoctor))
		{
			doctorBoard.GET("/appointments/today", appointmentHandler.DoctorToday)
			doctorBoard.GET("/appointments/pending", appointmentHandler.DoctorPending)
		}

		catalogRoutes := private.Group("")
		{
			catalogRoutes.POST("/specialties", admin, catalogHandler.CreateSpecialty)
			catalogRoutes.PUT("/specialties/:id", admin, catalogHandler.UpdateSpecialty)
			catalogRoutes.DELETE("/specialties/:id", admin, catalogHandler.DeleteSpecialty)

			catalogRoutes.GET("/drugs",
				middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleStaff, models.RoleAdmin),
				catalogHandler.ListDrugs)
			catalogRoutes.POST("/drugs", admin, catalogHandler.CreateDrug)
			catalogRoutes.PUT("/drugs/:id", admin, catalogHandler.UpdateDrug)
			catalogRoutes.DELETE("/drugs/:id", admin, catalogHandler.DeleteDrug)

			catalogRoutes.GET("/rank-fees", admin, catalogHandler.ListRankFees)
			catalogRoutes.PUT("/rank-fees", admin, catalogHandler.UpsertRankFee)
			catalogRoutes.DELETE("/rank-fees/:id", admin, catalogHandler.DeleteRankFee)
		}

		scheduleRoutes := private.Group("/schedules",
			middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleStaff, models.RoleAdmin))
		{
			scheduleRoutes.POST("", scheduleHandler.CreateSchedule)
			scheduleRoutes.GET("", scheduleHandler.ListSchedules)
			scheduleRoutes.PATCH("/:id/open", scheduleHandler.OpenSchedule)
			scheduleRoutes.PATCH("/:id/close", scheduleHandler.CloseSchedule)
		}

		// Ownership rules for each transition are enforced by the service.
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("",
				middleware.RoleAuthMiddleware(models.RolePatient, models.RoleStaff, models.RoleAdmin),
				appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PATCH("/:id/confirm", appointmentHandler.ConfirmAppointment)
			appointmentRoutes.PATCH("/:id/cancel", appointmentHandler.CancelAppointment)
			appointmentRoutes.PATCH("/:id/start", clinician, appointmentHandler.StartAppointment)
			appointmentRoutes.PATCH("/:id/complete", clinician, appointmentHandler.CompleteAppointment)
			appointmentRoutes.PATCH("/:id/no-show", appointmentHandler.MarkNoShow)

			appointmentRoutes.PUT("/:id/record", clinician, medicalRecordHandler.SaveRecord)
			appointmentRoutes.PUT("/:id/prescriptions", clinician, medicalRecordHandler.SetPrescriptions)
			appointmentRoutes.GET("/:id/summary.pdf", medicalRecordHandler.VisitSummaryPDF)
		}

		invoiceRoutes := private.Group("/invoices")
		{
			invoiceRoutes.GET("", invoiceHandler.ListInvoices)
			invoiceRoutes.GET("/:id", invoiceHandler.GetInvoice)
			invoiceRoutes.POST("/:id/items", frontDesk, invoiceHandler.AddItem)
			invoiceRoutes.DELETE("/:id/items/:itemId", frontDesk, invoiceHandler.RemoveItem)
			invoiceRoutes.PATCH("/:id/discount", frontDesk, invoiceHandler.SetDiscount)
			invoiceRoutes.POST("/:id/pay", frontDesk, invoiceHandler.PayInvoice)
			invoiceRoutes.POST("/:id/print", frontDesk, invoiceHandler.PrintInvoice)
			invoiceRoutes.POST("/:id/void", frontDesk, invoiceHandler.VoidInvoice)
			invoiceRoutes.POST("/:id/refund", admin, invoiceHandler.RefundInvoice)
		}

		chatbotRoutes := private.Group("/chatbot")
		{
			chatbotRoutes.POST("/sessions", chatbotHandler.StartSession)
			chatbotRoutes.GET("/sessions/:token", chatbotHandler.GetTranscript)
			chatbotRoutes.POST("/sessions/:token/messages", chatbotHandler.Ask)
			chatbotRoutes.PATCH("/sessions/:token/end", chatbotHandler.EndSession)

			chatbotRoutes.GET("/faqs/all", admin, chatbotHandler.ListAllFaqs)
			chatbotRoutes.POST("/faqs", admin, chatbotHandler.CreateFaq)
			chatbotRoutes.PUT("/faqs/:id", admin, chatbotHandler.UpdateFaq)
			chatbotRoutes.DELETE("/faqs/:id", admin, chatbotHandler.DeleteFaq)
		}

		reportRoutes := private.Group("/reports", admin)
		{
			reportRoutes.GET("/dashboard", reportHandler.Dashboard)
			reportRoutes.GET("/appointments.xlsx", reportHandler.ExportAppointments)
			reportRoutes.GET("/invoices.xlsx", reportHandler.ExportInvoices)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
