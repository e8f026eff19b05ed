package main

import (
	"fmt"
	"log"
	"os"

	"github.com/crisispulse/CrisisPulse/app/models"
	"github.com/crisispulse/CrisisPulse/app/repository"
	"github.com/crisispulse/CrisisPulse/internal/pkg/database"
	"github.com/crisispulse/CrisisPulse/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	users := repository.GetGlobalFactory().GetUserRepository()

	switch os.Args[1] {
	case "create":
		if len(os.Args) < 5 {
			log.Fatalf("Usage: useradmin create <name> <email> <password> [role]")
		}
		role := models.ROLE_CITIZEN
		if len(os.Args) > 5 {
			role = os.Args[5]
			if !models.IsValidRole(role) {
				log.Fatalf("Invalid role %q (citizen, volunteer, ngo, admin)", role)
			}
		}

		user, err := models.CreateUser(os.Args[2], os.Args[3], os.Args[4], role)
		if err != nil {
			log.Fatalf("Failed to build user: %v", err)
		}
		if err := users.Create(user); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		log.Printf("Created user %d (%s, role %s)", user.ID, user.Email, user.Role)

	case "issue-key":
		if len(os.Args) < 3 {
			log.Fatalf("Usage: useradmin issue-key <email>")
		}
		user, err := users.GetByEmail(os.Args[2])
		if err != nil {
			log.Fatalf("Failed to load user %s: %v", os.Args[2], err)
		}

		rawKey, err := user.GenerateAPIKey()
		if err != nil {
			log.Fatalf("Failed to generate API key: %v", err)
		}
		if err := users.Update(user); err != nil {
			log.Fatalf("Failed to store API key hash: %v", err)
		}

		// The raw key is printed exactly once; only its hash is stored.
		fmt.Println(rawKey)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/useradmin/main.go [command]")
	fmt.Println("Available commands:")
	fmt.Println("  create <name> <email> <password> [role] - Create a user account")
	fmt.Println("  issue-key <email>                       - Generate and print a fresh API key")
}
