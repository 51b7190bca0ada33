package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/linesmerrill/member-portal/api/handlers"
	"github.com/linesmerrill/member-portal/api/scheduler"
	"github.com/linesmerrill/member-portal/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	flagSet := pflag.NewFlagSet("member-portal", pflag.ContinueOnError)
	flagSet.StringVar(&a.Config.DepartmentsFile, "departments", a.Config.DepartmentsFile, "YAML file listing department chat rooms and their passwords")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatal(err)
	}

	if err := a.Config.LoadDepartments(); err != nil {
		zap.S().Fatalw("failed to load departments",
			"file", a.Config.DepartmentsFile,
			"error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	//initialize database, real-time hub and router
	if err := a.Initialize(ctx); err != nil {
		zap.S().Fatalw("failed to initialize", "error", err)
	}

	s := scheduler.NewScheduler(a.Hub, a.Config.SupportRoomRetention)
	s.Start()
	defer s.Stop()

	zap.S().Infow("member-portal is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
		"departments", a.Config.Departments.Names(),
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", a.Config.Port), a.Router))
}
