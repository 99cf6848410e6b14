// Command migrate-units links free-text BOQ item units to company unit
// records, creating units that do not exist yet.
package main

import (
	"context"
	"os"

	"boqunits/repository"
	"boqunits/services"
)

func main() {
	os.Exit(services.RunJob("migrate-units", services.JobOptions{Gorm: true}, func(ctx context.Context, env *services.JobEnv) error {
		svc := services.NewUnitMigrationService(
			repository.NewGormStore(env.Gorm),
			services.NewUnitResolver(env.Config.UnitTieBreak),
			env.Logger,
		)
		report, err := svc.Run(ctx, services.BatchOptions{DryRun: env.Config.DryRun, CompanyIDs: env.Config.CompanyIDs})
		if err != nil {
			return err
		}
		return services.WriteJSON(os.Stdout, report)
	}))
}
