// Command cleanup-unit-fields removes the legacy unit and unit_name keys
// from items that already reference a unit by id.
package main

import (
	"context"
	"os"

	"boqunits/repository"
	"boqunits/services"
)

func main() {
	os.Exit(services.RunJob("cleanup-unit-fields", services.JobOptions{Gorm: true}, func(ctx context.Context, env *services.JobEnv) error {
		svc := services.NewUnitCleanupService(repository.NewGormStore(env.Gorm), env.Logger, env.Config.CleanupStrict)
		report, err := svc.Run(ctx, services.BatchOptions{DryRun: env.Config.DryRun, CompanyIDs: env.Config.CompanyIDs})
		if err != nil {
			return err
		}
		return services.WriteJSON(os.Stdout, report)
	}))
}
