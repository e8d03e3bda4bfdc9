// keyadmin is the operator CLI for the license store. It talks to the
// same backend as the service, so bans and deletions work even while the
// API is down.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/soremlabs/keyserve/internal/adapters/repository"
	"github.com/soremlabs/keyserve/internal/core/domain"
	"github.com/soremlabs/keyserve/internal/core/ports"
	"github.com/soremlabs/keyserve/internal/keysign"
)

func main() {
	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	createKey := createCmd.String("key", "", "License key (SRM-....)")
	createHWID := createCmd.String("hwid", "", "Hardware id the key was issued for")

	banCmd := flag.NewFlagSet("ban", flag.ExitOnError)
	banKey := banCmd.String("key", "", "License key to ban")
	banReason := banCmd.String("reason", "", "Ban reason shown to the client")

	deactivateCmd := flag.NewFlagSet("deactivate", flag.ExitOnError)
	deactivateKey := deactivateCmd.String("key", "", "License key to deactivate")
	deactivateReason := deactivateCmd.String("reason", "", "Deactivation reason shown to the client")

	keyOnly := func(name string) (*flag.FlagSet, *string) {
		fs := flag.NewFlagSet(name, flag.ExitOnError)
		return fs, fs.String("key", "", "License key")
	}
	unbanCmd, unbanKey := keyOnly("unban")
	reactivateCmd, reactivateKey := keyOnly("reactivate")
	deleteCmd, deleteKey := keyOnly("delete")
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Println("expected 'create', 'ban', 'unban', 'deactivate', 'reactivate', 'delete' or 'list' subcommands")
		os.Exit(1)
	}

	repo := openRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	switch os.Args[1] {
	case "create":
		parse(createCmd)
		requireKey(*createKey)
		if *createHWID == "" {
			log.Fatal("-hwid is required")
		}
		rec := &domain.IssuedKey{
			ID:        uuid.New().String(),
			Key:       keysign.Normalize(*createKey),
			HWID:      keysign.Normalize(*createHWID),
			CreatedAt: now,
		}
		if err := repo.CreateIssued(ctx, rec); err != nil {
			log.Fatalf("create failed: %v", err)
		}
		fmt.Printf("Created %s for hwid %s\n", rec.Key, rec.HWID)
	case "ban":
		parse(banCmd)
		requireKey(*banKey)
		ban := &domain.Ban{
			ID:       uuid.New().String(),
			Key:      keysign.Normalize(*banKey),
			Reason:   reasonOrDefault(*banReason),
			BannedAt: now,
		}
		if err := repo.Ban(ctx, ban); err != nil {
			log.Fatalf("ban failed: %v", err)
		}
		fmt.Printf("Banned %s (%s)\n", ban.Key, ban.Reason)
	case "unban":
		parse(unbanCmd)
		requireKey(*unbanKey)
		if err := repo.Unban(ctx, keysign.Normalize(*unbanKey)); err != nil {
			log.Fatalf("unban failed: %v", err)
		}
		fmt.Printf("Unbanned %s\n", keysign.Normalize(*unbanKey))
	case "deactivate":
		parse(deactivateCmd)
		requireKey(*deactivateKey)
		d := &domain.Deactivation{
			ID:            uuid.New().String(),
			Key:           keysign.Normalize(*deactivateKey),
			Reason:        reasonOrDefault(*deactivateReason),
			DeactivatedAt: now,
		}
		if err := repo.Deactivate(ctx, d); err != nil {
			log.Fatalf("deactivate failed: %v", err)
		}
		fmt.Printf("Deactivated %s (%s)\n", d.Key, d.Reason)
	case "reactivate":
		parse(reactivateCmd)
		requireKey(*reactivateKey)
		if err := repo.Reactivate(ctx, keysign.Normalize(*reactivateKey)); err != nil {
			log.Fatalf("reactivate failed: %v", err)
		}
		fmt.Printf("Reactivated %s\n", keysign.Normalize(*reactivateKey))
	case "delete":
		parse(deleteCmd)
		requireKey(*deleteKey)
		if err := repo.Delete(ctx, keysign.Normalize(*deleteKey)); err != nil {
			log.Fatalf("delete failed: %v", err)
		}
		fmt.Printf("Deleted %s\n", keysign.Normalize(*deleteKey))
	case "list":
		parse(listCmd)
		listAll(ctx, repo)
	default:
		fmt.Println("expected 'create', 'ban', 'unban', 'deactivate', 'reactivate', 'delete' or 'list' subcommands")
		os.Exit(1)
	}
}

func parse(fs *flag.FlagSet) {
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}
}

func requireKey(key string) {
	if key == "" {
		log.Fatal("-key is required")
	}
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return domain.DefaultReason
	}
	return reason
}

func openRepo() ports.LicenseRepository {
	if dbURL := os.Getenv("KEYSERVE_DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("pgx", dbURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		return repository.NewPostgresRepository(db)
	}

	path := os.Getenv("KEYSERVE_DATA_FILE")
	if path == "" {
		path = "keys_data.json"
	}
	repo, err := repository.NewFileRepository(path)
	if err != nil {
		log.Fatalf("failed to open store file: %v", err)
	}
	return repo
}

func listAll(ctx context.Context, repo ports.LicenseRepository) {
	snap, err := repo.ListAll(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Issued keys (%d):\n", len(snap.Keys))
	fmt.Printf("%-26s %-16s %-23s %s\n", "KEY", "HWID", "CREATED", "LAST SEEN")
	for _, k := range snap.Keys {
		lastSeen := "never"
		if k.LastSeen != nil {
			lastSeen = k.LastSeen.Format(domain.TimeLayout)
		}
		fmt.Printf("%-26s %-16s %-23s %s\n", k.Key, k.HWID, k.CreatedAt.Format(domain.TimeLayout), lastSeen)
	}

	fmt.Printf("\nBanned (%d):\n", len(snap.Banned))
	for _, b := range snap.Banned {
		fmt.Printf("%-26s %-16s %s - %s\n", b.Key, b.HWID, b.BannedAt.Format(domain.TimeLayout), b.Reason)
	}

	fmt.Printf("\nDeactivated (%d):\n", len(snap.Deactivated))
	for _, d := range snap.Deactivated {
		fmt.Printf("%-26s %s - %s\n", d.Key, d.DeactivatedAt.Format(domain.TimeLayout), d.Reason)
	}
}
