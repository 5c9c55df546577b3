package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"mammo-report/config"
	"mammo-report/internal/container"
	"mammo-report/internal/domain/entity"
	"mammo-report/internal/logging"
)

const usage = `Commands:
  <image path> [notes]           generate a report
  :submit <image path> [notes]   generate and add to the triage queue
  :queue                         show the triage queue
  :quit                          exit`

func main() {
	err := mainImpl()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainImpl() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Логи консоли идут только в файл, чтобы не мешать вводу.
	logger, logCloser, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := context.Background()
	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	fmt.Printf("Loading %s...\n", cfg.Model.ID)
	if err := c.Models.Load(ctx, cfg.Model.LoadRetries); err != nil {
		return err
	}
	defer c.Models.Unload(ctx)

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	fmt.Println(usage)
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF
			break
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case line == ":quit":
			return nil
		case line == ":queue":
			printQueue(ctx, c)
		case strings.HasPrefix(line, ":submit "):
			submit(ctx, c, strings.TrimPrefix(line, ":submit "))
		case strings.HasPrefix(line, ":"):
			fmt.Println(usage)
		default:
			generate(ctx, c, line)
		}
	}
	return nil
}

func readScan(args string) (entity.ScanUpload, error) {
	path, notes, _ := strings.Cut(strings.TrimSpace(args), " ")
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.ScanUpload{}, err
	}
	return entity.ScanUpload{
		FileName: filepath.Base(path),
		FileType: "image/" + strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Notes:    strings.TrimSpace(notes),
		Image:    data,
	}, nil
}

func generate(ctx context.Context, c *container.Container, args string) {
	scan, err := readScan(args)
	if err != nil {
		fmt.Println(err)
		return
	}

	finding, err := c.ReportService.GenerateReport(ctx, entity.ReportRequest{Image: scan.Image, Notes: scan.Notes})
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("Findings: %s\nUrgency:  %s\n", orDash(finding.Report), scoreOrDash(finding.UrgencyScore))
}

func submit(ctx context.Context, c *container.Container, args string) {
	scan, err := readScan(args)
	if err != nil {
		fmt.Println(err)
		return
	}

	item, err := c.TriageService.Submit(ctx, scan)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("Queued %s: %s %s\n", item.ID, item.UrgencyLevel, scoreOrDash(item.UrgencyScore))
}

func printQueue(ctx context.Context, c *container.Container) {
	items, err := c.TriageService.List(ctx, 0)
	if err != nil {
		fmt.Println(err)
		return
	}
	if len(items) == 0 {
		fmt.Println("Queue is empty")
		return
	}
	for _, item := range items {
		fmt.Printf("%-36s  %-8s  %-5s  %-11s  %s\n",
			item.ID, item.UrgencyLevel, scoreOrDash(item.UrgencyScore), item.Status, item.FileName)
	}
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func scoreOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
