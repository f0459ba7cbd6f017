package main

import (
	"log"
	"os"

	"github.com/eduflow/stms/core"
	"github.com/eduflow/stms/core/user"
	emailsvc "github.com/eduflow/stms/services/email"
	logsvc "github.com/eduflow/stms/services/logger"
	"github.com/eduflow/stms/storage/database"
	sqlxrepos "github.com/eduflow/stms/storage/database/sqlx"
)

var (
	build  = "develop"
	logger *log.Logger
)

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig(build)
	errAndDie(err)

	errAndDie(database.CreateIfNotExist(conf))

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(db.Ping())

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(false) // CLI errors stay local

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleService(conf), appLogger, conf.AppName)

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
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
