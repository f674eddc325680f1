// CLI tool to create a user with a bcrypt-hashed password and a full profile.
// Usage: go run ./cmd/create-user
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"horus/nutrition-api/internal/config"
)

var (
	genders    = []string{"masculino", "feminino"}
	levels     = []string{"sedentario", "levemente_ativo", "consideravelmente_ativo", "ativo_com_frequencia"}
	objectives = []string{"emagrecer", "manutencao", "ganhar_massa"}
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, cfg.Database.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label + ": ")
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	name := prompt("Name")
	email := strings.ToLower(prompt("Email"))
	password := prompt("Password")
	if len(password) < 6 {
		fatalf("password must be at least 6 characters")
	}
	age := mustNumber(prompt("Age"))
	weight := mustNumber(prompt("Weight (kg)"))
	height := mustNumber(prompt("Height (cm)"))
	gender := mustOneOf(prompt("Gender ("+strings.Join(genders, "/")+")"), genders)
	level := mustOneOf(prompt("Level ("+strings.Join(levels, "/")+")"), levels)
	objective := mustOneOf(prompt("Objective ("+strings.Join(objectives, "/")+")"), objectives)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fatalf("Error hashing password: %v", err)
	}

	authToken := uuid.New().String()

	var userID int
	err = conn.QueryRow(ctx,
		`INSERT INTO users (name, email, password, auth_token, age, weight_kg, height_cm, gender, level, objective)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		name, email, string(hash), authToken, int(age), weight, height, gender, level, objective,
	).Scan(&userID)
	if err != nil {
		fatalf("Error creating user: %v", err)
	}

	fmt.Printf("\nUser created successfully!\n")
	fmt.Printf("  ID:         %d\n", userID)
	fmt.Printf("  Name:       %s\n", name)
	fmt.Printf("  Auth Token: %s\n", authToken)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func mustNumber(s string) float64 {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		fatalf("%q is not a non-negative number", s)
	}
	return n
}

func mustOneOf(s string, allowed []string) string {
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	fatalf("%q must be one of: %s", s, strings.Join(allowed, ", "))
	return ""
}
