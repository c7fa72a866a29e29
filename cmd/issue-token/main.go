// Command issue-token mints an operator access token for depot terminals and
// local testing. With -schema it also lists the deposit tables present in
// DATABASE_URL.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/dispatchly/dispatch-api/internal/config"
	"github.com/dispatchly/dispatch-api/internal/pkg/database"
	"github.com/dispatchly/dispatch-api/internal/pkg/jwt"
	"github.com/dispatchly/dispatch-api/internal/pkg/validator"
)

var depositTables = []string{
	"orders", "order_items", "deposit_refunds", "deposit_commits",
	"deposit_credits", "deposit_payouts", "deduction_item_types",
}

func main() {
	operator := flag.String("operator", "", "operator UUID (random when empty)")
	role := flag.String("role", "driver", "operator role: driver, dispatcher or admin")
	depot := flag.String("depot", "", "depot id embedded in the token")
	schema := flag.Bool("schema", false, "list deposit tables in DATABASE_URL")
	flag.Parse()

	cfg := config.Load()

	svc := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	token, operatorID, err := issue(svc, *operator, *role, *depot)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Fprintf(os.Stderr, "operator %s (%s), valid %s\n", operatorID, *role, svc.GetAccessTTL())
	fmt.Println(token)

	if *schema {
		if err := printSchema(cfg); err != nil {
			log.Fatalf("inspect schema: %v", err)
		}
	}
}

func issue(svc *jwt.Service, operator, role, depot string) (string, uuid.UUID, error) {
	if err := validator.ValidateVar(role, "required,operator_role"); err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid role %q", role)
	}

	operatorID := uuid.New()
	if operator != "" {
		parsed, err := uuid.Parse(operator)
		if err != nil {
			return "", uuid.Nil, fmt.Errorf("invalid operator id: %w", err)
		}
		operatorID = parsed
	}

	token, err := svc.GenerateAccessToken(operatorID, role, depot)
	if err != nil {
		return "", uuid.Nil, err
	}
	return token, operatorID, nil
}

func printSchema(cfg *config.Config) error {
	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{MaxOpen: 1, MaxIdle: 1})
	if err != nil {
		return err
	}
	defer database.ClosePostgres(db)

	fmt.Fprintln(os.Stderr, "--- deposit tables ---")
	for _, table := range depositTables {
		var columns int
		err := db.Get(&columns, `SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1`, table)
		if err != nil {
			return err
		}
		status := "missing"
		if columns > 0 {
			status = fmt.Sprintf("%d columns", columns)
		}
		fmt.Fprintf(os.Stderr, "%-22s %s\n", table, status)
	}
	return nil
}
