package main

import (
	"context"
	"fmt"

	"github.com/trezcool/academia/core/tenant"
)

// repairSequences raises a school's admission counters to match the numbers
// actually on record. Safe to run repeatedly.
func (cli *commandLine) repairSequences(schoolID string) error {
	scope := tenant.Scope{SchoolID: schoolID, Operator: true}

	raised, err := cli.seqGen.Repair(context.Background(), scope)
	if err != nil {
		return err
	}
	if len(raised) == 0 {
		fmt.Println("all counters up to date")
		return nil
	}
	for year, value := range raised {
		fmt.Printf("%d: counter raised to %d\n", year, value)
	}
	return nil
}
