package main

import (
	"log"
	"os"

	echoapi "github.com/eduflow/stms/api/echo"
	"github.com/eduflow/stms/core"
	"github.com/eduflow/stms/core/study"
	"github.com/eduflow/stms/core/user"
	emailsvc "github.com/eduflow/stms/services/email"
	logsvc "github.com/eduflow/stms/services/logger"
	"github.com/eduflow/stms/storage/database"
	sqlxrepos "github.com/eduflow/stms/storage/database/sqlx"
)

// build is injected at compile time via -ldflags.
var build = "develop"

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig(build)
	if err != nil {
		std.Fatal(err)
	}

	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()
	if err = database.Migrate(db); err != nil {
		logger.Fatal("migrating database", err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, logger, conf.AppName)
	studySvc := study.NewService(sqlxrepos.NewStudyRepository(db))

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Addr:     conf.Server.Address(),
			Conf:     conf,
			Logger:   logger,
			UserSvc:  usrSvc,
			StudySvc: studySvc,
		},
	)
	app.Start()
}
