package main

import (
	"log"
	"os"

	"content-approval-api/config"
	"content-approval-api/middleware"
	"content-approval-api/models"
	"content-approval-api/routes"
	"content-approval-api/services"
	"content-approval-api/store"
	"content-approval-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	settings := config.Load()
	logFile, logWriter := config.InitLogging(settings)
	if logFile != nil {
		defer logFile.Close()
	}

	if settings.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	st, err := openStore(settings)
	if err != nil {
		log.Fatal("Failed to open store: ", err)
	}

	publishers := services.MultiPublisher{services.LogPublisher{Logger: log.Default()}}
	if mailer := config.NewMailer(settings); settings.NotifyEmail && mailer.Configured() {
		publishers = append(publishers, services.NewMailPublisher(mailer, st, settings.ApproverEmails))
		log.Printf("Email notifications enabled via %s", settings.SMTPHost)
	}

	service := services.NewApprovalService(st, services.WithPublisher(publishers))

	// Set Gin mode
	if settings.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(logWriter))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(settings.CORSAllowedOrigins))
	router.Use(middleware.MetricsMiddleware())

	routes.SetupRoutes(router, routes.Dependencies{
		Settings: settings,
		Store:    st,
		Service:  service,
	})

	log.Printf("Server starting on port %s (store=%s)", settings.ServerPort, settings.StoreDriver)
	if err := router.Run(":" + settings.ServerPort); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}

func openStore(settings config.Settings) (store.Store, error) {
	if settings.StoreDriver != "memory" {
		db, err := config.InitDB(settings)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(db), nil
	}

	log.Println("Using in-memory store; data is lost on restart")
	mem := store.NewMemoryStore()
	if err := seedDemoData(mem); err != nil {
		return nil, err
	}
	return mem, nil
}

// seedDemoData creates one approver, one author and a draft post so the
// memory store is usable without a database.
func seedDemoData(mem *store.MemoryStore) error {
	password := os.Getenv("DEMO_PASSWORD")
	if password == "" {
		password = "changeme"
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.Role{ID: "role-admin", Code: "admin", Name: "Administrator", IsActive: true}
	author := models.Role{ID: "role-author", Code: "author", Name: "Author", IsActive: true}

	mem.PutUser(&models.User{
		ID: "demo-admin", Email: "admin@example.org", Name: "Demo Admin", Password: hash,
		Roles: []models.UserRole{{UserID: "demo-admin", RoleID: admin.ID, Role: admin}},
	})
	mem.PutUser(&models.User{
		ID: "demo-author", Email: "author@example.org", Name: "Demo Author", Password: hash,
		Roles: []models.UserRole{{UserID: "demo-author", RoleID: author.ID, Role: author}},
	})
	mem.PutPost(&models.Post{ID: "demo-post", AuthorID: "demo-author", Title: "Hello, world"})
	return nil
}
