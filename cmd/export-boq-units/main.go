// Command export-boq-units writes one CSV row per BOQ item, plus an XLSX copy.
package main

import (
	"context"
	"os"

	"boqunits/repository"
	"boqunits/services"
)

func main() {
	os.Exit(services.RunJob("export-boq-units", services.JobOptions{}, func(ctx context.Context, env *services.JobEnv) error {
		svc := services.NewBOQExportService(repository.NewBOQReader(env.DB), env.Logger)
		summary, err := svc.Export(ctx, env.Config.ExportPath, env.Config.CompanyIDs)
		if err != nil {
			return err
		}
		return services.WriteJSON(os.Stdout, summary)
	}))
}
