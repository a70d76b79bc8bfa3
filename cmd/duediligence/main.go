// Command duediligence evaluates pitch transcripts from the command line or
// over HTTP.
//
//	duediligence evaluate -transcript pitch.txt
//	duediligence verify -founder "Ada Lovelace" -company fintech -school MIT
//	duediligence serve
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/zhenghchen/calhacks2025/src/app"
	"github.com/zhenghchen/calhacks2025/src/logging"
	"github.com/zhenghchen/calhacks2025/src/types"
)

const usage = `usage: duediligence <command> [flags]

commands:
  evaluate   run the full review on a transcript file (or stdin)
  verify     check a single founder claim against the web
  serve      start the HTTP API`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "evaluate":
		err = runEvaluate(args)
	case "verify":
		err = runVerify(args)
	case "serve":
		err = runServe(args)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		log.Fatalf("unknown command %q\n\n%s", cmd, usage)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func runEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	transcriptFlag := fs.String("transcript", "-", "Transcript file, or - for stdin")
	saveFlag := fs.Bool("save", true, "Persist the decision when a database is configured")
	_ = fs.Parse(args)

	transcript, err := readTranscript(*transcriptFlag)
	if err != nil {
		return err
	}

	a, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	decision, err := a.Orchestrator.Evaluate(ctx, transcript)
	if err != nil {
		return err
	}
	if *saveFlag && a.Decisions != nil {
		if err := a.Decisions.Save(ctx, transcript, decision); err != nil {
			logger.Warnf("persist decision %s: %v", decision.ID, err)
		}
	}
	return printJSON(decision)
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	founderFlag := fs.String("founder", "", "Founder name")
	companyFlag := fs.String("company", "", "Company or industry")
	schoolFlag := fs.String("school", "", "School or pedigree")
	traceFlag := fs.Bool("trace", false, "Print the state trace to stderr")
	_ = fs.Parse(args)

	a, _, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	claim := types.FounderClaim{
		FounderName: strings.TrimSpace(*founderFlag),
		Company:     strings.TrimSpace(*companyFlag),
		School:      strings.TrimSpace(*schoolFlag),
	}
	result, trace := a.Verifier.VerifyWithTrace(context.Background(), claim)
	if *traceFlag {
		fmt.Fprintf(os.Stderr, "states=%v model_calls=%d tool_calls=%d elapsed=%s\n",
			trace.States, trace.ModelCalls, trace.ToolCalls, trace.Elapsed)
		if trace.Err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", trace.Err)
		}
	}
	return printJSON(result)
}

func bootstrap() (*app.App, logging.Logger, error) {
	logger := logging.New("duediligence", os.Stderr, os.Getenv("LOG_LEVEL"))
	cfg, db, err := app.LoadConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	logger = logging.New("duediligence", os.Stderr, cfg.LogLevel)
	a, err := app.New(context.Background(), cfg, db, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func readTranscript(path string) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "" || path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(raw), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
