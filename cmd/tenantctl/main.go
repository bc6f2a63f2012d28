// tenantctl is the administrative surface for tenant stores: creating a
// tenant with its physical database, and re-applying tenant schemas.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/internal/tenant"
	"github.com/thisloadme/one-ecommerce/pkg/config"
	"github.com/thisloadme/one-ecommerce/pkg/database"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "tenantctl",
		Short: "Manage tenants and their physical stores",
	}
	root.AddCommand(createCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRegistry() (*tenant.Registry, error) {
	appConfig, err := config.Load("one-ecommerce")
	if err != nil {
		return nil, err
	}
	shared, err := database.Connect(appConfig)
	if err != nil {
		return nil, err
	}
	opener, err := store.NewPgOpener(&appConfig.DB)
	if err != nil {
		return nil, err
	}
	router := store.NewRouter(shared, opener)
	return tenant.NewRegistry(shared, opener, router), nil
}

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tenant, provision its store and apply the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := newRegistry()
			if err != nil {
				return err
			}

			name := args[0]
			fmt.Printf("Creating tenant: %s\n", name)
			fmt.Printf("Store: %s\n", tenant.StoreIDFor(name))

			created, err := registry.Create(context.Background(), name)
			if err != nil {
				return fmt.Errorf("failed to create tenant: %w", err)
			}

			fmt.Printf("Tenant %d created successfully\n", created.ID)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var tenantID uint
	var fresh bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Re-apply the tenant schema to one tenant or all tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := newRegistry()
			if err != nil {
				return err
			}

			ctx := context.Background()
			if tenantID != 0 {
				if err := registry.Migrate(ctx, tenantID, fresh); err != nil {
					return fmt.Errorf("failed to migrate tenant %d: %w", tenantID, err)
				}
				fmt.Printf("Migrations completed for tenant %d\n", tenantID)
				return nil
			}

			fmt.Println("Running migrations for all tenants...")
			return registry.MigrateAll(ctx, fresh)
		},
	}

	cmd.Flags().UintVar(&tenantID, "tenant", 0, "migrate only this tenant id")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "drop tenant tables before migrating")
	return cmd
}
