package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/stripe/stripe-go/v78"

	"streetparking/internal/api"
	"streetparking/internal/auth"
	"streetparking/internal/repository"
	"streetparking/internal/service"
)

func main() {
	godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")

	serviceID := os.Getenv("PARKING_SERVICE_ID")
	if serviceID == "" {
		serviceID = "street-parking-ledger"
	}

	registryRepo := repository.NewRegistryRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	operatorRepo := repository.NewOperatorAuthRepository(db)
	jobRepo := repository.NewJobRepository(db)

	registrySvc := service.NewRegistryService(registryRepo)
	senderSvc := service.NewSenderService(registryRepo)
	ledgerSvc := service.NewLedgerService(ledgerRepo, registrySvc, serviceID).
		WithStripe(service.NewStripeService()).
		WithNotifier(senderSvc)
	operatorAuthSvc := service.NewOperatorAuthService(operatorRepo)
	jobSvc := service.NewJobService(jobRepo, senderSvc)

	registryHandler := api.NewRegistryHandler(registrySvc, ledgerSvc)
	parkingHandler := api.NewParkingHandler(ledgerSvc)
	adminHandler := api.NewAdminHandler(registrySvc, ledgerSvc)
	adminAuthHandler := api.NewAdminAuthHandler(operatorAuthSvc)
	stripeHandler := api.NewStripeWebhookHandler(os.Getenv("STRIPE_WEBHOOK_SECRET"), ledgerSvc)

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/auth/login", adminAuthHandler.Login).Methods("POST")
	r.HandleFunc("/api/cars/{plate}", registryHandler.GetCarInfo).Methods("GET")
	r.HandleFunc("/api/cars/{plate}/authorized/{person}", registryHandler.IsAuthorized).Methods("GET")
	r.HandleFunc("/api/parking/{plate}", parkingHandler.GetAccount).Methods("GET")
	r.HandleFunc("/api/stripe/webhook", stripeHandler.HandleWebhook).Methods("POST")

	// Caller endpoints (authenticated identity required)
	caller := r.PathPrefix("/api").Subrouter()
	caller.Use(auth.CallerAuthMiddleware([]byte(jwtSecret)))
	caller.HandleFunc("/cars", registryHandler.MintCar).Methods("POST")
	caller.HandleFunc("/cars/{plate}/allowed", registryHandler.AddAllowedPerson).Methods("POST")
	caller.HandleFunc("/cars/{plate}/allowed", registryHandler.RemoveAllowedPerson).Methods("DELETE")
	caller.HandleFunc("/cars/{plate}/transfer", registryHandler.TransferCar).Methods("POST")
	caller.HandleFunc("/parking/{plate}/start", parkingHandler.StartParking).Methods("POST")
	caller.HandleFunc("/parking/{plate}/stop", parkingHandler.StopParking).Methods("POST")
	caller.HandleFunc("/parking/{plate}/balance", parkingHandler.AddBalance).Methods("POST")
	caller.HandleFunc("/parking/{plate}/withdraw", parkingHandler.WithdrawBalance).Methods("POST")
	caller.HandleFunc("/parking/{plate}/fine", parkingHandler.PayFine).Methods("POST")
	caller.HandleFunc("/parking/{plate}/topup", parkingHandler.CreateTopUp).Methods("POST")

	// Admin endpoints (protected)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(auth.AdminAuthMiddleware([]byte(jwtSecret)))
	admin.HandleFunc("/operators", adminAuthHandler.CreateOperator).Methods("POST")
	admin.HandleFunc("/registry/costs", adminHandler.SetCosts).Methods("PUT")
	admin.HandleFunc("/registry/service-callers", adminHandler.RegisterServiceCaller).Methods("POST")
	admin.HandleFunc("/parking/rates", adminHandler.SetRates).Methods("PUT")
	admin.HandleFunc("/parking/surplus", adminHandler.WithdrawSurplus).Methods("POST")
	admin.HandleFunc("/stats", adminHandler.GetStats).Methods("GET")

	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() {
		if err := jobSvc.WarnOvertimeSessions(); err != nil {
			log.Printf("Overtime sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule overtime sweep: %v", err)
	}
	c.Start()
	defer c.Stop()

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, corsHandler))
}
