package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/xelth-com/eckvideo/internal/config"
	"github.com/xelth-com/eckvideo/internal/database"
	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/utils"
)

func main() {
	fmt.Println("🌱 eckVideo Demo Data Seeder")
	fmt.Println(strings.Repeat("=", 60))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	fmt.Println("🔨 Running database migrations...")
	if err := database.Migrate(db.DB); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	var orderCount int64
	db.Model(&models.VideoOrder{}).Count(&orderCount)
	if orderCount > 0 {
		fmt.Printf("⚠️  Database already has %d orders. Clear it first? (y/N): ", orderCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE assignment_events CASCADE")
		db.Exec("TRUNCATE TABLE quota_restrictions CASCADE")
		db.Exec("TRUNCATE TABLE video_orders RESTART IDENTITY CASCADE")
		db.Exec("TRUNCATE TABLE workers CASCADE")
		fmt.Println("✅ Data cleared")
	}

	fmt.Println()
	fmt.Println("👤 Creating workers...")
	workers := []struct {
		username string
		name     string
		role     string
	}{
		{"admin", "Studio Admin", models.RoleAdmin},
		{"alice", "Alice Editor", models.RoleWorker},
		{"bob", "Bob Editor", models.RoleWorker},
		{"carol", "Carol Editor", models.RoleWorker},
	}
	for _, w := range workers {
		hash, err := utils.HashPassword("demo1234")
		if err != nil {
			log.Fatalf("❌ Failed to hash password: %v", err)
		}
		worker := models.Worker{
			Username: w.username,
			Password: hash,
			Email:    w.username + "@eckvideo.local",
			Name:     w.name,
			Role:     w.role,
			IsActive: true,
		}
		if err := db.Create(&worker).Error; err != nil {
			fmt.Printf("   ⚠️  Failed to create worker %s: %v\n", w.username, err)
		} else {
			fmt.Printf("   ✓ Created worker: %s (%s)\n", worker.Username, worker.Role)
		}
	}
	fmt.Printf("✅ Created %d workers (password: demo1234)\n\n", len(workers))

	fmt.Println("🎬 Creating orders...")
	orders := []models.VideoOrder{
		{OrderNumber: "VID-DEMO-001", CustomerName: "Müller Bau GmbH", Title: "Company portrait", Brief: "60s portrait for the website header"},
		{OrderNumber: "VID-DEMO-002", CustomerName: "Bäckerei Schmidt", Title: "Product teaser", Brief: "Three 15s clips for social media"},
		{OrderNumber: "VID-DEMO-003", CustomerName: "Autohaus Weber", Title: "Showroom tour", Brief: "Walkthrough with drone opener"},
		{OrderNumber: "VID-DEMO-004", CustomerName: "Praxis Dr. Klein", Title: "Patient onboarding", Brief: "Explainer with subtitles"},
		{OrderNumber: "VID-DEMO-005", CustomerName: "Hotel Seeblick", Title: "Seasonal campaign", Brief: "Summer cut and winter cut"},
		{OrderNumber: "VID-DEMO-006", CustomerName: "Tischlerei Braun", Title: "Recruiting spot", Brief: "Apprentice testimonials"},
	}
	for _, o := range orders {
		if err := db.Create(&o).Error; err != nil {
			fmt.Printf("   ⚠️  Failed to create order %s: %v\n", o.OrderNumber, err)
		} else {
			fmt.Printf("   ✓ Created order: [%s] %s - %s\n", o.OrderNumber, o.Title, o.CustomerName)
		}
	}
	fmt.Printf("✅ Created %d orders\n\n", len(orders))

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("🎉 Demo data seeded. Log in as admin/demo1234 to start assigning.")
}
