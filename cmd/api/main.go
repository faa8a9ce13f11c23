package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"escrowflow/auth"
	"escrowflow/crank"
	"escrowflow/db"
	"escrowflow/escrow"
	"escrowflow/ledger"
)

func main() {
	ctx := context.Background()

	connString := os.Getenv("DATABASE_URL")
	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	authority := escrow.Address(os.Getenv("AUTHORITY_WALLET"))
	feeWallet := escrow.Address(os.Getenv("FEE_WALLET"))
	if authority == "" || feeWallet == "" {
		log.Fatal("AUTHORITY_WALLET and FEE_WALLET are required")
	}

	ledgerRepo := ledger.NewRepository(pool)
	escrowSvc := escrow.NewService(pool, escrow.NewPGRepository(pool), ledgerRepo)
	authSvc := auth.NewService(auth.NewPGRepository(pool), jwtSecret)

	worker := crank.NewWorker(escrowSvc, authority, 10*time.Second)
	go func() {
		if err := worker.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("crank stopped: %v", err)
		}
	}()

	srv := &server{
		escrow:    escrowSvc,
		ledger:    ledger.NewService(ledgerRepo),
		auth:      authSvc,
		authority: authority,
		feeWallet: feeWallet,
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("escrow api listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
