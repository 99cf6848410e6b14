// Command normalize-units fills missing unit_abbreviation values on BOQ items.
// It is safe to run repeatedly.
package main

import (
	"context"
	"os"

	"boqunits/repository"
	"boqunits/services"
)

func main() {
	os.Exit(services.RunJob("normalize-units", services.JobOptions{Gorm: true}, func(ctx context.Context, env *services.JobEnv) error {
		svc := services.NewUnitNormalizationService(
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
