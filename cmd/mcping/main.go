// main is the entry point of the mcping command line tool.
// It queries one server or a YAML list of servers and prints the results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/batch"
	"github.com/woozymasta/craftping/internal/logger"
	"github.com/woozymasta/craftping/internal/output"
	"github.com/woozymasta/craftping/internal/query"
	"github.com/woozymasta/craftping/internal/vars"
)

type CLI struct {
	Status  StatusCmd  `cmd:"" default:"withargs" help:"Query a single server (default)."`
	Batch   BatchCmd   `cmd:"" help:"Query every server listed in a YAML file."`
	Version VersionCmd `cmd:"" help:"Print version."`
}

type StatusCmd struct {
	Address     string        `arg:"" name:"address" help:"Server address, host[:port]."`
	Type        string        `short:"t" enum:"java,bedrock" default:"java" help:"Minecraft edition."`
	Timeout     time.Duration `default:"5s" help:"Time budget for the whole query."`
	NoSRV       bool          `name:"no-srv" help:"Do not follow Java SRV records."`
	Nameservers []string      `name:"nameserver" help:"DNS servers for SRV lookups (repeatable)."`
	Output      string        `short:"o" enum:"pretty,json" default:"pretty" help:"Output format."`
	Verbose     bool          `short:"v" help:"Enable verbose logging."`
	Debug       bool          `help:"Enable debug logging."`
}

type BatchCmd struct {
	File        string   `arg:"" name:"file" type:"existingfile" help:"YAML file with targets."`
	Parallel    int      `short:"p" default:"0" help:"Concurrent queries, overrides the file value."`
	NoSRV       bool     `name:"no-srv" help:"Do not follow Java SRV records."`
	Nameservers []string `name:"nameserver" help:"DNS servers for SRV lookups (repeatable)."`
	Output      string   `short:"o" enum:"pretty,json" default:"pretty" help:"Output format."`
	Verbose     bool     `short:"v" help:"Enable verbose logging."`
	Debug       bool     `help:"Enable debug logging."`
}

type VersionCmd struct{}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("mcping"),
		kong.Description("Query Minecraft Java and Bedrock servers for their status."),
	)

	if ctx.Selected() != nil && ctx.Selected().Name == "version" {
		vars.Print(os.Stdout)
		return
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var code int
	if ctx.Selected() != nil && ctx.Selected().Name == "batch" {
		setupLogger(cli.Batch.Verbose, cli.Batch.Debug)
		code = runBatch(sigCtx, cli.Batch)
	} else {
		setupLogger(cli.Status.Verbose, cli.Status.Debug)
		code = runStatus(sigCtx, cli.Status)
	}

	stop()
	os.Exit(code)
}

func runStatus(ctx context.Context, cmd StatusCmd) int {
	svc := query.New(query.Options{
		Timeout:     cmd.Timeout,
		SRV:         !cmd.NoSRV,
		Nameservers: cmd.Nameservers,
	})

	result := svc.QueryServer(ctx, cmd.Address, 0, cmd.Type, cmd.Timeout)

	var (
		rendered string
		err      error
	)
	if cmd.Output == "json" {
		rendered, err = output.RenderJSON(result)
	} else {
		rendered = output.RenderPretty(result)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Println(rendered)
	if !result.Online {
		return 2
	}
	return 0
}

func runBatch(ctx context.Context, cmd BatchCmd) int {
	file, err := batch.Load(cmd.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	svc := query.New(query.Options{
		SRV:         !cmd.NoSRV,
		Nameservers: cmd.Nameservers,
	})

	results := batch.Run(ctx, svc, file, cmd.Parallel)

	var rendered string
	if cmd.Output == "json" {
		rendered, err = output.RenderJSON(results)
	} else {
		rendered = output.RenderPrettyTable(results)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Println(rendered)
	for _, r := range results {
		if !r.Online {
			return 2
		}
	}
	return 0
}

// setupLogger sends logs to stderr so stdout carries only the rendered results.
func setupLogger(verbose, debug bool) {
	level := zerolog.WarnLevel
	switch {
	case debug:
		level = zerolog.DebugLevel
	case verbose:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = logger.New(os.Stderr, "console")
}
