package main

import (
	"log"
	"os"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/school"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	svcLogger := logsvc.NewRollbarLogger(logger, core.Conf)
	svcLogger.Enable(false)

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// set up repos & services
	schRepo := sqlxrepos.NewSchoolRepository(db)
	stdRepo := sqlxrepos.NewStudentRepository(db)
	seqRepo := sqlxrepos.NewSequenceRepository(db)
	schSvc := school.NewService(schRepo, svcLogger)

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: sqlxrepos.NewUserRepository(db),
		schSvc:  schSvc,
		seqGen:  admission.NewGenerator(seqRepo, schSvc, stdRepo, svcLogger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
