// Package file provides file-based persistence for automations and journeys.
//
// Every collection is a JSON document under the root directory. Writes go
// through a temporary file and a rename. A single mutex serialises all
// mutations, which makes the store safe for one process only.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/journeys/pkg/persistence"
)

const (
	automationsFile = "automations.json"
	stepsFile       = "automation_steps.json"
	journeysFile    = "automation_queue.json"
	mailerFile      = "mailer_queue.json"
	opensFile       = "email_opens.json"
	logsFile        = "automation_logs.json"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string
	mu   sync.Mutex

	automationRepo *AutomationRepository
	stepRepo       *StepRepository
	journeyRepo    *JourneyRepository
	mailerRepo     *MailerRepository
	logRepo        *LogRepository
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.automationRepo = &AutomationRepository{store: p}
	p.stepRepo = &StepRepository{store: p}
	p.journeyRepo = &JourneyRepository{store: p}
	p.mailerRepo = &MailerRepository{store: p}
	p.logRepo = &LogRepository{store: p}

	return p
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) AutomationRepository() persistence.AutomationRepository {
	return fp.automationRepo
}

func (fp *Persistence) StepRepository() persistence.StepRepository {
	return fp.stepRepo
}

func (fp *Persistence) JourneyRepository() persistence.JourneyRepository {
	return fp.journeyRepo
}

func (fp *Persistence) DispatchQueue() persistence.DispatchQueue {
	return fp.mailerRepo
}

func (fp *Persistence) OpenHistory() persistence.OpenHistory {
	return fp.mailerRepo
}

func (fp *Persistence) LogRepository() persistence.LogRepository {
	return fp.logRepo
}

// Mailer exposes the concrete mailer repository, which also records opens.
func (fp *Persistence) Mailer() *MailerRepository {
	return fp.mailerRepo
}

// Logs exposes the concrete log repository.
func (fp *Persistence) Logs() *LogRepository {
	return fp.logRepo
}

// load reads a collection. A missing file leaves v untouched.
func (fp *Persistence) load(name string, v any) error {
	body, err := os.ReadFile(filepath.Join(fp.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}

	return nil
}

func (fp *Persistence) store(name string, v any) error {
	err := os.MkdirAll(fp.root, 0750)
	if err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(fp.root, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	err = os.Rename(tmp.Name(), filepath.Join(fp.root, name))
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	return nil
}

// update loads a collection, applies fn and writes it back when fn succeeds,
// all under the store mutex.
func update[T any](fp *Persistence, name string, fn func(items *T) error) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	var items T

	err := fp.load(name, &items)
	if err != nil {
		return err
	}

	err = fn(&items)
	if err != nil {
		return err
	}

	return fp.store(name, items)
}

func read[T any](fp *Persistence, name string) (T, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	var items T

	err := fp.load(name, &items)

	return items, err
}
