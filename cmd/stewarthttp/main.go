// Command stewarthttp exposes control of a six-leg Stewart-platform
// target-positioning device over HTTP.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/stewartctl/stewart"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build.
	Version = "dev"

	// ConfigFileName is what it sounds like
	ConfigFileName = "stewart-http.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(stewart.DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `stewarthttp exposes control of a six-leg Stewart-platform
target-positioning device over HTTP.
This enables a server-client architecture,
and the clients can leverage the excellent HTTP
libraries for any programming language,
instead of custom socket logic.

Usage:
	stewarthttp <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `stewarthttp is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Keys are not case-sensitive.
The command mkconf generates the configuration file with the default values.
There is no need to do this unless you want to start from the prepopulated defaults when making
a config file.

Set System.Simulation to true to run without a motion controller or encoder service attached.`
	fmt.Println(str)
}

func mkconf() {
	c := stewart.Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := stewart.Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("stewarthttp version %v\n", Version)
}

func run() {
	cfg := stewart.Config{}
	k.Unmarshal("", &cfg)

	dev, err := stewart.NewDevice(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Shutdown()

	w := stewart.NewHTTPStewart(dev)
	mux := chi.NewRouter()
	w.RT().Bind(mux)

	log.Println("now listening for requests at", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, mux))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
