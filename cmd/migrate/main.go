// cmd/migrate/main.go
// Creates the schema, seeds the default roles and hashes plaintext passwords.
package main

import (
	"flag"
	"log"
	"strings"

	"content-approval-api/config"
	"content-approval-api/models"
	"content-approval-api/store"
	"content-approval-api/utils"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var defaultRoles = []models.Role{
	{Code: "admin", Name: "Administrator", IsActive: true},
	{Code: "author", Name: "Author", IsActive: true},
}

func main() {
	var (
		grantAdmin string
		skipHash   bool
	)
	flag.StringVar(&grantAdmin, "grant-admin", "", "comma-separated emails to grant the admin role (optional)")
	flag.BoolVar(&skipHash, "skip-password-hash", false, "do not hash plaintext passwords")
	flag.Parse()

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	settings := config.Load()
	logFile, _ := config.InitLogging(settings)
	if logFile != nil {
		defer logFile.Close()
	}

	db, err := config.InitDB(settings)
	if err != nil {
		log.Fatal(err)
	}

	if err := db.AutoMigrate(store.Models()...); err != nil {
		log.Fatal("Failed to migrate schema:", err)
	}
	log.Println("Schema migrated")

	for _, role := range defaultRoles {
		role := role
		if err := db.Where(models.Role{Code: role.Code}).FirstOrCreate(&role).Error; err != nil {
			log.Fatalf("Failed to seed role %s: %v", role.Code, err)
		}
	}

	for _, email := range strings.Split(grantAdmin, ",") {
		if email = strings.TrimSpace(email); email == "" {
			continue
		}
		if err := grantRole(db, email, "admin"); err != nil {
			log.Printf("Failed to grant admin to %s: %v", email, err)
			continue
		}
		log.Printf("Granted admin to %s", email)
	}

	if !skipHash {
		hashPlaintextPasswords(db)
	}

	log.Println("Migration completed!")
}

func grantRole(db *gorm.DB, email, code string) error {
	var user models.User
	if err := db.Where("email = ? AND deleted_at IS NULL", email).First(&user).Error; err != nil {
		return err
	}
	var role models.Role
	if err := db.Where("code = ?", code).First(&role).Error; err != nil {
		return err
	}
	link := models.UserRole{UserID: user.ID, RoleID: role.ID}
	return db.Omit("Role").Where(link).FirstOrCreate(&link).Error
}

func hashPlaintextPasswords(db *gorm.DB) {
	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		log.Fatal("Failed to fetch users:", err)
	}

	for _, user := range users {
		// Skip if already hashed (bcrypt hashes start with $2)
		if user.Password == "" || strings.HasPrefix(user.Password, "$2") {
			continue
		}

		hashedPassword, err := utils.HashPassword(user.Password)
		if err != nil {
			log.Printf("Failed to hash password for user %s: %v", user.Email, err)
			continue
		}

		if err := db.Model(&user).Update("password", hashedPassword).Error; err != nil {
			log.Printf("Failed to update password for user %s: %v", user.Email, err)
			continue
		}

		log.Printf("Hashed password for user %s", user.Email)
	}
}
