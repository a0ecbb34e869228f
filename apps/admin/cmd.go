package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/school"
	"github.com/trezcool/academia/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	schSvc  *school.Service
	seqGen  *admission.Generator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args]                         - run DB migrations (goose commands)")
	fmt.Println("  addoperator -username USERNAME -email EMAIL    - create or update a platform operator account")
	fmt.Println("  resetpassword -username USERNAME|EMAIL         - reset a user's password")
	fmt.Println("  createschool -name NAME -format FORMAT         - provision a new school")
	fmt.Println("  repairseq -school SCHOOL_ID                    - re-sync admission sequence counters")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addOperatorCmd := flag.NewFlagSet("addoperator", flag.ExitOnError)
	addOperatorUname := addOperatorCmd.String("username", "", "The operator's username. The password will be prompted next.")
	addOperatorEmail := addOperatorCmd.String("email", "", "The operator's email address.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	createSchoolCmd := flag.NewFlagSet("createschool", flag.ExitOnError)
	createSchoolName := createSchoolCmd.String("name", "", "The school's name.")
	createSchoolFormat := createSchoolCmd.String("format", string(admission.FormatNoBranch),
		"Admission number format: NO_BRANCH, BRANCH_PREFIX_START, BRANCH_PREFIX_MIDDLE or BRANCH_PREFIX_END.")
	createSchoolSep := createSchoolCmd.String("separator", "", "Branch separator character (defaults to '-').")

	repairSeqCmd := flag.NewFlagSet("repairseq", flag.ExitOnError)
	repairSeqSchool := repairSeqCmd.String("school", "", "The school's ID.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addoperator":
		if err := addOperatorCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addOperatorUname == "" || *addOperatorEmail == "" {
			addOperatorCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addOperatorCmd.Usage()
			return errHelp
		}
		return cli.addOperator(*addOperatorUname, *addOperatorEmail, string(pwd))
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, string(pwd))
	case "createschool":
		if err := createSchoolCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createSchoolName == "" || *createSchoolFormat == "" {
			createSchoolCmd.Usage()
			return errHelp
		}
		return cli.createSchool(*createSchoolName, *createSchoolFormat, *createSchoolSep)
	case "repairseq":
		if err := repairSeqCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *repairSeqSchool == "" {
			repairSeqCmd.Usage()
			return errHelp
		}
		return cli.repairSequences(*repairSeqSchool)
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() ([]byte, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	return pwd, err
}
