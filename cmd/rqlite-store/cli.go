package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/preslavrachev/rqlitestore/adapters/rqlite"
	"github.com/preslavrachev/rqlitestore/config"
	"github.com/preslavrachev/rqlitestore/core"
	"github.com/preslavrachev/rqlitestore/ui"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type cmdLoad struct {
	Base string `arg:"" help:"Entity base (namespace), may be empty."`
	Name string `arg:"" help:"Entity name."`
	ID   string `arg:"" help:"Identifier of the entity to load."`
}

type cmdSave struct {
	Base   string `arg:"" help:"Entity base (namespace), may be empty."`
	Name   string `arg:"" help:"Entity name."`
	Entity string `arg:"" optional:"" help:"Entity as a JSON object. Read from stdin when omitted or -."`
}

type cmdList struct {
	Base   string   `arg:"" help:"Entity base (namespace), may be empty."`
	Name   string   `arg:"" help:"Entity name."`
	Where  []string `short:"w" help:"Exact-match filter as field=value; field=null matches NULL. Repeatable."`
	Sort   string   `short:"s" help:"Field to sort by."`
	Desc   bool     `help:"Sort in descending order."`
	Limit  int      `short:"l" help:"Maximum number of entities, 0 for all."`
	Offset int      `help:"Number of entities to skip."`
	Fields []string `short:"f" help:"Fields to return. Repeatable."`
}

type cmdRemove struct {
	Base string `arg:"" help:"Entity base (namespace), may be empty."`
	Name string `arg:"" help:"Entity name."`
	ID   string `arg:"" help:"Identifier of the entity to remove."`
}

type cmdPurge struct {
	Base  string   `arg:"" help:"Entity base (namespace), may be empty."`
	Name  string   `arg:"" help:"Entity name."`
	Where []string `short:"w" help:"Exact-match filter as field=value. Without filters every row is removed."`
}

type cmdDescribe struct {
	Base string `arg:"" help:"Entity base (namespace), may be empty."`
	Name string `arg:"" help:"Entity name."`
}

type cmdServe struct {
	Addr     string   `default:":8080" help:"Address to listen on."`
	Entities []string `name:"entity" short:"e" help:"Entity to expose as base/name or name. Repeatable."`
}

type cliArgs struct {
	Protocol     string        `enum:"http,https" default:"${protocol}" help:"Protocol used to reach rqlite."`
	Host         string        `default:"${host}" help:"rqlite host."`
	Port         int           `default:"${port}" help:"rqlite port."`
	Level        string        `enum:"none,weak,strong" default:"${level}" help:"Read consistency level."`
	MaxRedirects int           `name:"max-redirects" default:"${maxredirects}" help:"Maximum number of redirects to the leader."`
	Timeout      time.Duration `default:"${timeout}" help:"HTTP request timeout."`
	NoMerge      bool          `name:"no-merge" help:"Overwrite rows on save instead of merging the stored fields."`
	IgnoreTables bool          `name:"ignore-missing-tables" help:"Treat missing tables as empty on load, list and remove."`
	Debug        bool          `short:"d" help:"Log every statement sent to rqlite on stderr."`

	Load     cmdLoad     `cmd:"" help:"Load an entity by id and print it as JSON."`
	Save     cmdSave     `cmd:"" help:"Save an entity and print what was stored."`
	List     cmdList     `cmd:"" help:"List entities as JSON lines."`
	Remove   cmdRemove   `cmd:"" help:"Remove an entity by id."`
	Purge    cmdPurge    `cmd:"" help:"Remove every entity matching the filters."`
	Describe cmdDescribe `cmd:"" help:"Print the columns of an entity's table."`
	Serve    cmdServe    `cmd:"" help:"Serve the dump and metrics pages."`
}

// exitCode is raised by kong's exit hook and recovered by Run
type exitCode int

// Run parses args, executes the selected command and returns the process exit code
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) (rc int) {
	defer func() {
		if r := recover(); r != nil {
			code, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			rc = int(code)
		}
	}()

	base := config.LoadConfig()

	var cli cliArgs
	parser, err := kong.New(&cli,
		kong.Name("rqlite-store"),
		kong.Description("Load, save, list and remove entities stored in rqlite."),
		kong.Exit(func(code int) { panic(exitCode(code)) }),
		kong.Writers(stdout, stderr),
		kong.Vars{
			"protocol":     base.Protocol,
			"host":         base.Host,
			"port":         strconv.Itoa(base.Port),
			"level":        base.ConsistencyLevel,
			"maxredirects": strconv.Itoa(base.MaxRedirects),
			"timeout":      base.Timeout.String(),
		},
	)
	if err != nil {
		fmt.Fprintf(stderr, "rqlite-store: %v\n", err)
		return exitError
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "rqlite-store: error: %v\n", err)
		return exitUsage
	}

	cfg := cli.config(base)
	r := &runner{cli: &cli, cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr}

	if err := r.run(ctx.Command()); err != nil {
		fmt.Fprintf(stderr, "rqlite-store: %v\n", err)
		var usage usageError
		if errors.As(err, &usage) {
			return exitUsage
		}
		return exitError
	}
	return exitOK
}

// config overlays the global flags on the loaded configuration
func (c *cliArgs) config(base config.Config) config.Config {
	cfg := base
	cfg.Protocol = c.Protocol
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.ConsistencyLevel = c.Level
	cfg.MaxRedirects = c.MaxRedirects
	cfg.Timeout = c.Timeout
	if c.NoMerge {
		cfg.Merge = false
	}
	if c.IgnoreTables {
		cfg.IgnoreNoSuchTableError = true
	}
	if c.Debug {
		cfg.DebugEnabled = true
	}
	return cfg
}

// usageError marks errors caused by malformed command arguments
type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}

type runner struct {
	cli    *cliArgs
	cfg    config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (r *runner) run(cmd string) error {
	if r.cfg.DebugEnabled {
		log.SetOutput(r.stderr)
	}

	switch cmd {
	case "load <base> <name> <id>":
		return r.load()
	case "save <base> <name>", "save <base> <name> <entity>":
		return r.save()
	case "list <base> <name>":
		return r.list()
	case "remove <base> <name> <id>":
		return r.remove()
	case "purge <base> <name>":
		return r.purge()
	case "describe <base> <name>":
		return r.describe()
	case "serve":
		return r.serve()
	default:
		return usageError{msg: "unknown command " + cmd}
	}
}

func (r *runner) entities(opts ...rqlite.Option) (*core.Entities, error) {
	adapter, err := rqlite.New(r.cfg, opts...)
	if err != nil {
		return nil, err
	}
	return core.New(adapter), nil
}

func (r *runner) load() error {
	entities, err := r.entities()
	if err != nil {
		return err
	}

	entity, err := entities.Make(r.cli.Load.Base, r.cli.Load.Name).Load(context.Background(), r.cli.Load.ID)
	if err != nil {
		return err
	}
	return r.print(entity)
}

func (r *runner) save() error {
	raw := r.cli.Save.Entity
	if raw == "" || raw == "-" {
		data, err := io.ReadAll(r.stdin)
		if err != nil {
			return fmt.Errorf("failed to read entity from stdin: %w", err)
		}
		raw = string(data)
	}

	var entity core.Entity
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&entity); err != nil {
		return usageError{msg: fmt.Sprintf("invalid entity JSON: %v", err)}
	}

	entities, err := r.entities()
	if err != nil {
		return err
	}

	saved, err := entities.Make(r.cli.Save.Base, r.cli.Save.Name).Save(context.Background(), entity)
	if err != nil {
		return err
	}
	return r.print(saved)
}

func (r *runner) list() error {
	args := r.cli.List
	query := core.NewQuery()

	filters, err := parseFilters(args.Where)
	if err != nil {
		return err
	}
	query.WithFilters(filters)

	if args.Sort != "" {
		direction := core.SortAsc
		if args.Desc {
			direction = core.SortDesc
		}
		query.WithSort(args.Sort, direction)
	}
	query.WithPagination(args.Limit, args.Offset)
	query.WithFields(args.Fields...)

	entities, err := r.entities()
	if err != nil {
		return err
	}

	rows, err := entities.Make(args.Base, args.Name).List(context.Background(), query)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := r.print(row); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) remove() error {
	entities, err := r.entities()
	if err != nil {
		return err
	}

	removed, err := entities.Make(r.cli.Remove.Base, r.cli.Remove.Name).Remove(context.Background(), r.cli.Remove.ID)
	if err != nil {
		return err
	}
	return r.print(map[string]any{"removed": removed})
}

func (r *runner) purge() error {
	filters, err := parseFilters(r.cli.Purge.Where)
	if err != nil {
		return err
	}

	entities, err := r.entities()
	if err != nil {
		return err
	}

	count, err := entities.Make(r.cli.Purge.Base, r.cli.Purge.Name).RemoveAll(context.Background(), core.NewQuery().WithFilters(filters))
	if err != nil {
		return err
	}
	return r.print(map[string]any{"removed": count})
}

func (r *runner) describe() error {
	entities, err := r.entities()
	if err != nil {
		return err
	}

	schema, err := entities.Make(r.cli.Describe.Base, r.cli.Describe.Name).Describe(context.Background())
	if err != nil {
		return err
	}
	return r.print(schema)
}

func (r *runner) serve() error {
	server, err := r.newServer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[SERVE] Listening on %s, dump at %s/dump", server.Addr, strings.TrimSuffix(r.cfg.Prefix, "/"))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// newServer builds the HTTP server exposing the dump and metrics pages
func (r *runner) newServer() (*http.Server, error) {
	cfg := r.cfg
	cfg.Web.Dump = true

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	adapter, err := rqlite.New(cfg, rqlite.WithMetrics(rqlite.NewMetrics(reg)))
	if err != nil {
		return nil, err
	}

	entities := core.New(adapter)
	for _, s := range r.cli.Serve.Entities {
		ref, err := core.ParseEntityRef(s)
		if err != nil {
			return nil, usageError{msg: err.Error()}
		}
		entities.Make(ref.Base, ref.Name)
	}

	return &http.Server{
		Addr:              r.cli.Serve.Addr,
		Handler:           ui.Handler(entities, cfg, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func (r *runner) print(v any) error {
	return json.NewEncoder(r.stdout).Encode(v)
}

// parseFilters parses field=value pairs; the literal null matches NULL
func parseFilters(pairs []string) (map[string]any, error) {
	filters := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		if !ok || field == "" {
			return nil, usageError{msg: fmt.Sprintf("invalid filter %q, expected field=value", pair)}
		}
		if value == "null" {
			filters[field] = nil
			continue
		}
		filters[field] = value
	}
	return filters, nil
}
