package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/app"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/changes"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/services"
)

func main() {
	var (
		documentID = flag.String("document", "", "document id (uuid)")
		userID     = flag.String("user", "", "acting user id (uuid)")
		chatIDStr  = flag.String("chat", "", "chat session id (uuid, optional)")
		message    = flag.String("message", "", "instruction for the agent")
		mode       = flag.String("mode", "", "optional mode hint passed to the agent")
		startLine  = flag.Int("start-line", 0, "optional focus range start (1-based)")
		endLine    = flag.Int("end-line", 0, "optional focus range end (inclusive)")
		resolve    = flag.String("resolve", "", "resolve pending changes instead of running the agent: accept|reject (change ids as trailing args)")
	)
	flag.Parse()

	docID, err := uuid.Parse(*documentID)
	if err != nil {
		fmt.Printf("invalid -document: %v\n", err)
		os.Exit(1)
	}
	uID, err := uuid.Parse(*userID)
	if err != nil {
		fmt.Printf("invalid -user: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Shutdown(context.Background())

	if *resolve != "" {
		runResolve(ctx, a, docID, uID, *resolve, flag.Args())
		return
	}

	if *message == "" {
		fmt.Println("missing -message")
		os.Exit(1)
	}

	in := services.MutateInput{
		DocumentID:  docID,
		UserID:      uID,
		UserMessage: *message,
		Mode:        *mode,
	}
	if *chatIDStr != "" {
		chatID, err := uuid.Parse(*chatIDStr)
		if err != nil {
			fmt.Printf("invalid -chat: %v\n", err)
			os.Exit(1)
		}
		in.ChatID = &chatID
	}
	if *startLine > 0 && *endLine >= *startLine {
		in.StartLine = startLine
		in.EndLine = endLine
	}

	out, err := a.Mutation.Mutate(ctx, in)
	if err != nil {
		fmt.Printf("agent run failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(out)
}

func runResolve(ctx context.Context, a *app.App, docID, userID uuid.UUID, decision string, ids []string) {
	if len(ids) == 0 {
		fmt.Println("pass change ids as trailing arguments with -resolve")
		os.Exit(1)
	}
	out, err := a.Mutation.Resolve(ctx, services.ResolveInput{
		DocumentID: docID,
		UserID:     userID,
		ChangeIDs:  ids,
		Decision:   changes.Decision(decision),
	})
	if err != nil {
		fmt.Printf("resolve failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(out)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}
