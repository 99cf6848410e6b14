// Command audit-units prints a read-only report of BOQ unit data quality.
package main

import (
	"context"
	"os"

	"boqunits/repository"
	"boqunits/services"
)

func main() {
	os.Exit(services.RunJob("audit-units", services.JobOptions{}, func(ctx context.Context, env *services.JobEnv) error {
		svc := services.NewUnitAuditService(repository.NewBOQReader(env.DB), env.Logger, env.Config.AuditSampleSize)
		report, err := svc.Run(ctx, env.Config.CompanyIDs)
		if err != nil {
			return err
		}
		return report.WriteText(os.Stdout)
	}))
}
