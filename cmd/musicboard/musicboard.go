package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/oklog/run"
	"github.com/peterbourgon/ff"

	"go.senan.xyz/musicboard"
	"go.senan.xyz/musicboard/covercache"
	"go.senan.xyz/musicboard/covers"
	"go.senan.xyz/musicboard/db"
	"go.senan.xyz/musicboard/lastfm"
	"go.senan.xyz/musicboard/server"
	"go.senan.xyz/musicboard/spotify"
	"go.senan.xyz/musicboard/uploads"
)

func main() {
	set := flag.NewFlagSet(musicboard.Name, flag.ExitOnError)
	confListenAddr := set.String("listen-addr", "0.0.0.0:4848", "listen address (optional)")

	confTLSCert := set.String("tls-cert", "", "path to TLS certificate (optional)")
	confTLSKey := set.String("tls-key", "", "path to TLS private key (optional)")

	confDBPath := set.String("db-path", "musicboard.db", "path to database (optional)")
	confUploadsPath := set.String("uploads-path", "uploads", "path to store uploaded covers (optional)")

	confLastFMAPIKey := set.String("lastfm-api-key", "", "last.fm api key, falls back to the db setting (optional)")

	confHTTPLog := set.Bool("http-log", true, "http request logging (optional)")

	confShowVersion := set.Bool("version", false, "show musicboard version")
	_ = set.String("config-path", "", "path to config (optional)")

	if err := ff.Parse(set, os.Args[1:],
		ff.WithConfigFileFlag("config-path"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix(musicboard.NameUpper),
	); err != nil {
		log.Fatalf("error parsing args: %v\n", err)
	}

	if *confShowVersion {
		fmt.Printf("v%s\n", musicboard.Version)
		os.Exit(0)
	}

	dbc, err := db.New(*confDBPath, db.DefaultOptions())
	if err != nil {
		log.Fatalf("error opening database: %v\n", err)
	}
	defer dbc.Close()

	if err := dbc.Migrate(db.MigrationContext{UploadsPath: *confUploadsPath}); err != nil {
		log.Panicf("error migrating database: %v\n", err)
	}

	log.Printf("starting musicboard v%s\n", musicboard.Version)
	log.Printf("provided config\n")
	set.VisitAll(func(f *flag.Flag) {
		value := strings.ReplaceAll(f.Value.String(), "\n", "")
		log.Printf("    %-25s %s\n", f.Name, value)
	})

	lastfmAPIKeyFunc := func() (string, error) {
		if *confLastFMAPIKey != "" {
			return *confLastFMAPIKey, nil
		}
		apiKey, _ := dbc.GetSetting(db.LastFMAPIKey)
		if apiKey == "" {
			return "", fmt.Errorf("not configured")
		}
		return apiKey, nil
	}

	spotifyClient := spotify.NewClient()
	lastfmClient := lastfm.NewClient(lastfmAPIKeyFunc)

	uploadManager, err := uploads.New(*confUploadsPath, "uploads/covers")
	if err != nil {
		log.Panicf("error creating uploads manager: %v\n", err)
	}

	engine := covers.NewEngine(covercache.New(dbc), spotifyClient, lastfmClient, uploadManager)

	mux := mux.NewRouter()
	server.AddRoutes(server.New(dbc, engine, uploadManager), mux, *confHTTPLog)

	noCleanup := func(_ error) {}

	var g run.Group
	g.Add(func() error {
		log.Print("starting job 'http'\n")
		server := &http.Server{
			Addr:              *confListenAddr,
			Handler:           mux,
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      80 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if *confTLSCert != "" && *confTLSKey != "" {
			return server.ListenAndServeTLS(*confTLSCert, *confTLSKey)
		}
		return server.ListenAndServe()
	}, noCleanup)

	if err := g.Run(); err != nil {
		log.Panicf("error in job: %v", err)
	}
}
