package main

import (
	"context"
	"fmt"

	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/school"
)

func (cli *commandLine) createSchool(name, format, sep string) error {
	ctx := context.Background()

	ns := school.NewSchool{
		Name:            name,
		AdmissionFormat: admission.Format(format),
		BranchSeparator: sep,
	}
	if err := ns.Validate(ctx, cli.schSvc); err != nil {
		return err
	}

	sch, err := cli.schSvc.Create(ctx, ns)
	if err != nil {
		return err
	}
	fmt.Printf("school created: %s (%s)\n", sch.Name, sch.ID)
	return nil
}
