package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/dukex/journeys/pkg/cmd"
	"github.com/dukex/journeys/pkg/conditions"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/steptree"
	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"
)

var (
	ErrInvalidDefinition = errors.New("invalid automation definition")
	ErrNothingToValidate = errors.New("either --file or --database-url is required")
)

// builderDocument is the builder's submission: either a bare array of steps
// or an object holding them under "steps".
type builderDocument struct {
	AutomationID int64                  `json:"automation_id"`
	Steps        []steptree.BuilderStep `json:"steps" validate:"dive"`
}

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate step trees from a builder document or from the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Builder JSON document with nested yes_branch/no_branch steps",
			},
			databaseFlag(false),
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := slog.With("module", "journeys-worker", "action", "validate")
			out := command.Root().Writer
			known := conditions.NewDefaultRegistry(nil).Kinds()

			switch {
			case command.String("file") != "":
				return validateFile(command.String("file"), known, out)
			case command.String("database-url") != "":
				return validateDatabase(ctx, logger, command.String("database-url"), known, out)
			default:
				return ErrNothingToValidate
			}
		},
	}
}

func validateFile(path string, known []string, out io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := parseBuilderDocument(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, path, err)
	}

	err = validator.New(validator.WithRequiredStructEnabled()).Struct(doc)
	if err != nil {
		_, _ = fmt.Fprintf(out, "%s: %v\n", path, err)

		return fmt.Errorf("%w: %s", ErrInvalidDefinition, path)
	}

	automationID := doc.AutomationID
	if automationID == 0 {
		automationID = 1
	}

	documentProblems := steptree.Problems(steptree.CheckDocument(doc.Steps))
	tree := steptree.Build(automationID, steptree.Flatten(automationID, doc.Steps, steptree.SequentialIDs(steptree.MaxID(doc.Steps)+1)))

	if !report(out, path, tree, known, documentProblems...) {
		return fmt.Errorf("%w: %s", ErrInvalidDefinition, path)
	}

	return nil
}

func parseBuilderDocument(raw []byte) (*builderDocument, error) {
	doc := &builderDocument{}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return doc, json.Unmarshal(trimmed, &doc.Steps)
	}

	return doc, json.Unmarshal(trimmed, doc)
}

func validateDatabase(ctx context.Context, logger *slog.Logger, databaseURL string, known []string, out io.Writer) error {
	store, err := cmd.NewPersistence(ctx, logger, databaseURL)
	if err != nil {
		return err
	}

	defer func() {
		err := store.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	automations, err := store.AutomationRepository().All(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch automations: %w", err)
	}

	invalid := 0

	for _, automation := range automations {
		steps, err := store.StepRepository().StepsByAutomation(ctx, automation.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch steps of automation %d: %w", automation.ID, err)
		}

		label := fmt.Sprintf("automation %d (%s)", automation.ID, automation.Name)

		if _, ok := automation.TriggerTarget(); !ok && automation.TriggerType == models.TriggerContactAddedToList {
			_, _ = fmt.Fprintf(out, "%s: trigger has no usable list_id\n", label)
			invalid++
		}

		if !report(out, label, steptree.Build(automation.ID, steps), known) {
			invalid++
		}
	}

	_, _ = fmt.Fprintf(out, "%d automations checked, %d invalid\n", len(automations), invalid)

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d automations", ErrInvalidDefinition, invalid, len(automations))
	}

	return nil
}

// report prints the problems of tree, after any found earlier, under label and
// tells whether it was valid.
func report(out io.Writer, label string, tree *steptree.Tree, known []string, earlier ...error) bool {
	problems := slices.Concat(earlier, steptree.Problems(tree.Validate(known)))
	if len(problems) == 0 {
		_, _ = fmt.Fprintf(out, "%s: ok (%d steps)\n", label, tree.Len())

		return true
	}

	_, _ = fmt.Fprintf(out, "%s: %d problems\n", label, len(problems))
	for _, problem := range problems {
		_, _ = fmt.Fprintf(out, "  - %v\n", problem)
	}

	return false
}
