package main

import (
	"database/sql"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Seeds an installed shop for local development so the admin API can reach
// Shopify without going through the OAuth install flow.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	shop := flag.String("shop", os.Getenv("SHOPIFY_SHOP_DOMAIN"), "shop domain, e.g. demo.myshopify.com")
	token := flag.String("token", os.Getenv("SHOPIFY_ACCESS_TOKEN"), "offline Admin API access token")
	scope := flag.String("scope", "write_products,read_orders", "granted scopes")
	onboarded := flag.Bool("onboarded", false, "mark onboarding as complete")
	withAnalytics := flag.Bool("analytics", false, "seed a zeroed analytics row")
	flag.Parse()

	domain := strings.ToLower(strings.TrimSpace(*shop))
	if domain == "" {
		log.Fatal("shop domain is required (-shop or SHOPIFY_SHOP_DOMAIN)")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedSession(db, domain, strings.TrimSpace(*token), *scope, *onboarded)
	if *withAnalytics {
		seedAnalytics(db, domain)
	}

	log.Printf("Seeded shop %s", domain)
}

func seedSession(db *sql.DB, shop, token, scope string, onboarded bool) {
	_, err := db.Exec(`
		INSERT INTO shop_sessions (id, shop, access_token, scope, onboarded)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shop) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    scope = EXCLUDED.scope,
		    onboarded = shop_sessions.onboarded OR EXCLUDED.onboarded
	`, "offline_"+shop, shop, token, scope, onboarded)
	if err != nil {
		log.Fatalf("Failed to seed session: %v", err)
	}
	if token == "" {
		log.Println("Session seeded without an access token; Admin API calls will be rejected")
	}
}

func seedAnalytics(db *sql.DB, shop string) {
	_, err := db.Exec(`
		INSERT INTO shop_analytics (shop, revenue, orders, currency)
		VALUES ($1, 0, 0, '$')
		ON CONFLICT (shop) DO NOTHING
	`, shop)
	if err != nil {
		log.Fatalf("Failed to seed analytics: %v", err)
	}
}
