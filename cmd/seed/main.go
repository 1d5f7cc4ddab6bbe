// Command seed fills the database with demo tenants, branches and content.
package main

import (
	"context"
	"flag"
	"log"

	"chif/internal/config"
	"chif/internal/database"
	"chif/internal/seed"
	"chif/internal/tenant"
)

func main() {
	branches := flag.Int("branches", seed.DefaultOptions.BranchesPerSite, "Branches to create per site")
	events := flag.Int("events", seed.DefaultOptions.EventsPerSite, "Events to create per site")
	sermons := flag.Int("sermons", seed.DefaultOptions.SermonsPerSite, "Sermons to create per site")
	seedValue := flag.Int64("seed", 0, "Random seed; 0 picks a fresh one")
	shouldClean := flag.Bool("clean", true, "Clean branch and content tables before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target per site: %d branches, %d events, %d sermons, clean=%v\n", *branches, *events, *sermons, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Seeding always reads tenants from the file; the sites table is what it
	// writes.
	reg, err := tenant.LoadFile(cfg.SitesFile)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", cfg.SitesFile, err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		log.Fatalf("❌ Schema apply failed: %v", err)
	}

	opts := seed.Options{
		BranchesPerSite: *branches,
		EventsPerSite:   *events,
		SermonsPerSite:  *sermons,
		Seed:            *seedValue,
		ShouldClean:     *shouldClean,
	}
	sum, err := seed.NewSeeder(db, opts.Seed).Run(ctx, reg, opts)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d sites, %d branches, %d events, %d sermons.", sum.Sites, sum.Branches, sum.Events, sum.Sermons)
}
