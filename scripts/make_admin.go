package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Quick utility to promote an account to admin with a fresh password
// Usage: go run scripts/make_admin.go <ID> <password>
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run scripts/make_admin.go <ID> <password>")
		fmt.Println("Example: go run scripts/make_admin.go root 0i2rinbcp12yc31h")
		os.Exit(1)
	}

	id, password := os.Args[1], os.Args[2]
	if id == "admin" {
		fmt.Println("The ID \"admin\" is reserved for the support staff room")
		os.Exit(1)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Error generating hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ID: %s\n", id)
	fmt.Printf("Bcrypt Hash: %s\n", string(hashedPassword))
	fmt.Printf("\nTo create or promote the account in MongoDB, run:\n")
	fmt.Printf("db.users.updateOne(\n")
	fmt.Printf("  {\"_id\": \"%s\"},\n", id)
	fmt.Printf("  {$set: {\"password\": \"%s\", \"role\": \"admin\"}, $setOnInsert: {\"team\": \"\", \"email\": \"\"}},\n", string(hashedPassword))
	fmt.Printf("  {upsert: true}\n")
	fmt.Printf(")\n")
}
