// ABOUTME: FAQ CLI command
// ABOUTME: Answers a customer question with the tier's FAQ prompt and logs it
package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"
)

// FAQCommand answers a question passed as the remaining arguments.
func FAQCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("faq", flag.ExitOnError)
	tier := fs.String("tier", "entry", "Customer tier: entry, mid, or top")
	customerID := fs.String("customer", "", "Customer ID to record with the question")
	_ = fs.Parse(args)

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: retainiq faq [--tier T] [--customer ID] <question>")
	}

	ctx := context.Background()
	// Nothing is delivered, so the logging collaborators stand in for Google.
	engine, cleanup, err := app.BuildEngine(ctx, true)
	if err != nil {
		return err
	}
	defer cleanup()

	answer, err := engine.AnswerFAQ(ctx, question, *tier, *customerID)
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}
